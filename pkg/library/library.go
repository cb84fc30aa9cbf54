package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultExtensions are the file extensions indexed when none are configured.
var DefaultExtensions = []string{"mp3", "wav", "flac", "ogg"}

// Options configures a Library.
type Options struct {
	// MusicDir is the root of the music collection. All relative paths are
	// resolved against it.
	MusicDir string

	// Extensions lists the indexed file extensions, without dots.
	Extensions []string

	// Store persists the index. Defaults to a MemoryStore.
	Store Store

	// Reader extracts tags. Defaults to FileTagReader.
	Reader TagReader

	Logger *zap.Logger
}

// Library is the in-memory song index.
type Library struct {
	root   string
	exts   map[string]bool
	store  Store
	reader TagReader
	logger *zap.Logger

	// updateMu serializes Update; mu guards the index itself.
	updateMu sync.Mutex

	mu     sync.RWMutex
	songs  []Song // sorted by id
	byPath map[string]int
	lastID uint32
}

// New opens the library: it loads the stored index and reconciles it with
// the music directory.
func New(ctx context.Context, opts Options) (*Library, error) {
	root, err := filepath.Abs(opts.MusicDir)
	if err != nil {
		return nil, fmt.Errorf("resolve music dir: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("music dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("music dir %s is not a directory", root)
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	l := &Library{
		root:   root,
		exts:   make(map[string]bool, len(exts)),
		store:  opts.Store,
		reader: opts.Reader,
		logger: opts.Logger,
	}
	for _, ext := range exts {
		l.exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	if l.store == nil {
		l.store = NewMemoryStore()
	}
	if l.reader == nil {
		l.reader = FileTagReader{}
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}

	stored, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	l.setSongs(stored)

	newFiles, err := l.Update(ctx)
	if err != nil {
		return nil, err
	}

	l.logger.Info("library ready",
		zap.String("music_dir", root),
		zap.Int("songs", l.Len()),
		zap.Int("new_files", newFiles),
	)

	return l, nil
}

// Root returns the absolute music directory.
func (l *Library) Root() string {
	return l.root
}

// Len returns the number of indexed songs.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.songs)
}

// setSongs replaces the index. Caller must hold the write lock or own l exclusively.
func (l *Library) setSongs(songs []Song) {
	sort.Slice(songs, func(i, j int) bool { return songs[i].ID < songs[j].ID })
	l.songs = songs
	l.byPath = make(map[string]int, len(songs))
	for i, s := range songs {
		l.byPath[s.Path] = i
		if s.ID > l.lastID {
			l.lastID = s.ID
		}
	}
}

// Update re-reads modified files, drops removed ones and indexes new ones.
// It returns the number of new files. Tags are read without holding the
// index lock, so lookups keep working during a long scan; concurrent updates
// run one at a time.
func (l *Library) Update(ctx context.Context) (int, error) {
	l.updateMu.Lock()
	defer l.updateMu.Unlock()

	paths, err := l.walk()
	if err != nil {
		return 0, err
	}

	// Only Update replaces l.songs, so this snapshot stays current until the
	// merge below.
	current := l.Songs()

	onDisk := make(map[string]fs.FileInfo, len(paths))
	for _, p := range paths {
		onDisk[p.path] = p.info
	}

	kept := make([]Song, 0, len(current))
	for _, song := range current {
		info, ok := onDisk[song.Path]
		if !ok {
			l.logger.Debug("song removed", zap.String("path", song.Rel))
			continue
		}
		if info.ModTime().UnixNano() != song.ModTime.UnixNano() {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			updated, err := l.read(song.Path, info)
			if err != nil {
				l.logger.Warn("could not re-read song", zap.String("path", song.Rel), zap.Error(err))
				continue
			}
			updated.ID = song.ID
			song = updated
		}
		kept = append(kept, song)
	}

	known := make(map[string]bool, len(kept))
	for _, s := range current {
		known[s.Path] = true
	}

	var added []Song
	for _, p := range paths {
		if known[p.path] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		song, err := l.read(p.path, p.info)
		if err != nil {
			l.logger.Warn("could not read song", zap.String("path", p.path), zap.Error(err))
			continue
		}
		added = append(added, song)
	}

	l.mu.Lock()
	for i := range added {
		l.lastID++
		added[i].ID = l.lastID
	}
	l.setSongs(append(kept, added...))
	l.mu.Unlock()

	if err := l.store.Save(ctx, l.Songs()); err != nil {
		return len(added), fmt.Errorf("save index: %w", err)
	}

	return len(added), nil
}

type walked struct {
	path string
	info fs.FileInfo
}

// walk returns the indexable files under root in lexical order.
func (l *Library) walk() ([]walked, error) {
	var out []walked
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.allowed(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		out = append(out, walked{path: path, info: info})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", l.root, err)
	}
	return out, nil
}

func (l *Library) allowed(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return l.exts[ext]
}

func (l *Library) read(path string, info fs.FileInfo) (Song, error) {
	tags, duration, err := l.reader.Read(path)
	if err != nil {
		return Song{}, err
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return Song{}, err
	}
	return Song{
		Path:     path,
		Rel:      filepath.ToSlash(rel),
		ModTime:  info.ModTime(),
		Duration: duration,
		Tags:     tags,
	}, nil
}

// SongByID looks a song up by library id.
func (l *Library) SongByID(id uint32) (Song, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := sort.Search(len(l.songs), func(i int) bool { return l.songs[i].ID >= id })
	if i < len(l.songs) && l.songs[i].ID == id {
		return l.songs[i], nil
	}
	return Song{}, ErrNotFound{ID: id}
}

// SongByPath looks a song up by a path that is absolute or relative to the
// music directory.
func (l *Library) SongByPath(path string) (Song, error) {
	abs := l.resolve(path)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if i, ok := l.byPath[abs]; ok {
		return l.songs[i], nil
	}
	return Song{}, ErrNotFound{Path: path}
}

func (l *Library) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// Songs returns a snapshot of the index ordered by id.
func (l *Library) Songs() []Song {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Song(nil), l.songs...)
}
