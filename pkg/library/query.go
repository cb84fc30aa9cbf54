package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/papercomputeco/jukebox/pkg/filter"
	"github.com/papercomputeco/jukebox/pkg/tagkey"
)

// ErrOutsideRoot is returned by Ls for directories that escape the music directory.
var ErrOutsideRoot = errors.New("directory is outside the music directory")

// Entry is one indexed file in a directory listing.
type Entry struct {
	ID   uint32 `json:"id"`
	Path string `json:"path"`
}

// Listing is the content of one music directory.
type Listing struct {
	Dirs  []string `json:"dirs"`
	Files []Entry  `json:"files"`
}

// Ls lists the subdirectories and indexed songs of dir, which is relative to
// the music directory. Paths in the result are relative too.
func (l *Library) Ls(dir string) (Listing, error) {
	abs := filepath.Join(l.root, filepath.FromSlash(dir))
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Listing{}, fmt.Errorf("%s: %w", dir, ErrOutsideRoot)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return Listing{}, fmt.Errorf("read directory %s: %w", dir, err)
	}

	out := Listing{Dirs: []string{}, Files: []Entry{}}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range entries {
		path := filepath.Join(abs, e.Name())
		relPath, _ := filepath.Rel(l.root, path)
		relPath = filepath.ToSlash(relPath)

		if e.IsDir() {
			out.Dirs = append(out.Dirs, relPath)
			continue
		}
		if i, ok := l.byPath[path]; ok {
			out.Files = append(out.Files, Entry{ID: l.songs[i].ID, Path: relPath})
		}
	}
	return out, nil
}

// Metadata returns, for every id, the values of tags. A song missing from
// the library yields nil; a tag missing from a song yields a nil value.
func (l *Library) Metadata(ids []uint32, tags []tagkey.Key) []map[string]*string {
	out := make([]map[string]*string, len(ids))
	for i, id := range ids {
		song, err := l.SongByID(id)
		if err != nil {
			continue
		}
		out[i] = pick(song.Tags, tags)
	}
	return out
}

// MetadataByPath is Metadata for songs addressed by path.
func (l *Library) MetadataByPath(paths []string, tags []tagkey.Key) []map[string]*string {
	out := make([]map[string]*string, len(paths))
	for i, p := range paths {
		song, err := l.SongByPath(p)
		if err != nil {
			continue
		}
		out[i] = pick(song.Tags, tags)
	}
	return out
}

func pick(m Metadata, tags []tagkey.Key) map[string]*string {
	values := make(map[string]*string, len(tags))
	for _, t := range tags {
		values[t.String()] = m.Value(t)
	}
	return values
}

// Select returns the ids of songs matching expr, sorted by comparators.
// Songs that compare equal keep id order.
func (l *Library) Select(expr *filter.Expr, comparators []filter.Comparator) []uint32 {
	l.mu.RLock()
	matched := make([]Song, 0, len(l.songs))
	for _, s := range l.songs {
		if expr.Matches(s.Tags) {
			matched = append(matched, s)
		}
	}
	l.mu.RUnlock()

	if len(comparators) > 0 {
		cmp := filter.Chain(comparators)
		sort.SliceStable(matched, func(i, j int) bool {
			return cmp(matched[i].Tags, matched[j].Tags) < 0
		})
	}

	ids := make([]uint32, len(matched))
	for i, s := range matched {
		ids[i] = s.ID
	}
	return ids
}

// Group is one result of Unique: the values of the group-by tags and the
// distinct values of the selected tag among the songs of that group.
type Group map[string]any

// Unique returns the distinct values of tag among songs matching expr,
// grouped by the combination of groupBy values. Groups are ordered by their
// group-by values and the values within a group are sorted, nil first.
func (l *Library) Unique(tag tagkey.Key, expr *filter.Expr, groupBy []tagkey.Key) []Group {
	type bucket struct {
		combination []*string
		values      map[string]*string
	}
	buckets := map[string]*bucket{}

	l.mu.RLock()
	for _, s := range l.songs {
		if !expr.Matches(s.Tags) {
			continue
		}
		combination := make([]*string, len(groupBy))
		for i, g := range groupBy {
			combination[i] = s.Tags.Value(g)
		}
		key := comboKey(combination)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{combination: combination, values: map[string]*string{}}
			buckets[key] = b
		}
		v := s.Tags.Value(tag)
		b.values[comboKey([]*string{v})] = v
	}
	l.mu.RUnlock()

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		g := make(Group, len(groupBy)+1)
		for i, t := range groupBy {
			g[t.String()] = b.combination[i]
		}

		vkeys := make([]string, 0, len(b.values))
		for vk := range b.values {
			vkeys = append(vkeys, vk)
		}
		slices.Sort(vkeys)
		values := make([]*string, len(vkeys))
		for i, vk := range vkeys {
			values[i] = b.values[vk]
		}
		g[tag.String()] = values

		out = append(out, g)
	}
	return out
}

// comboKey encodes a list of optional values so that nil sorts before any
// string and lists sort element-wise.
func comboKey(values []*string) string {
	var b strings.Builder
	for _, v := range values {
		if v == nil {
			b.WriteString("\x00")
		} else {
			b.WriteString("\x01")
			b.WriteString(*v)
		}
		b.WriteString("\x00\x00")
	}
	return b.String()
}
