package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"github.com/papercomputeco/jukebox/pkg/tagkey"
)

// TagReader extracts metadata and duration from an audio file.
type TagReader interface {
	Read(path string) (Metadata, time.Duration, error)
}

// FileTagReader reads ID3, MP4, FLAC and Vorbis tags with dhowden/tag and
// probes durations from container headers where that is cheap.
type FileTagReader struct{}

// rawKeys maps tags without a dedicated accessor in dhowden/tag to the raw
// frame or comment names used by the common tag formats (lowercased).
var rawKeys = map[tagkey.Key][]string{
	tagkey.Arranger:        {"arranger"},
	tagkey.Bpm:             {"tbpm", "bpm", "tmpo"},
	tagkey.Conductor:       {"tpe3", "conductor"},
	tagkey.Ensemble:        {"ensemble"},
	tagkey.Label:           {"tpub", "label", "organization", "publisher"},
	tagkey.Language:        {"tlan", "language"},
	tagkey.Lyricist:        {"text", "lyricist"},
	tagkey.Mood:            {"tmoo", "mood"},
	tagkey.MovementName:    {"mvnm", "movementname"},
	tagkey.MovementNumber:  {"mvin", "movement", "movementnumber"},
	tagkey.Part:            {"part"},
	tagkey.PartTotal:       {"parttotal"},
	tagkey.Performer:       {"performer"},
	tagkey.Producer:        {"producer"},
	tagkey.Script:          {"script"},
	tagkey.SortAlbum:       {"tsoa", "albumsort", "soal"},
	tagkey.SortAlbumArtist: {"tso2", "albumartistsort", "soaa"},
	tagkey.SortArtist:      {"tsop", "artistsort", "soar"},
	tagkey.SortComposer:    {"tsoc", "composersort", "soco"},
	tagkey.SortTrackTitle:  {"tsot", "titlesort", "sonm"},
}

// Read implements TagReader. Files without any tags yield empty metadata.
func (FileTagReader) Read(path string) (Metadata, time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	duration := probeDuration(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek %s: %w", path, err)
	}

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return Metadata{}, duration, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read tags of %s: %w", path, err)
	}

	return fromTag(m), duration, nil
}

func fromTag(m tag.Metadata) Metadata {
	meta := Metadata{}
	set := func(k tagkey.Key, v string) {
		v = strings.TrimSpace(v)
		if v != "" {
			meta[k] = v
		}
	}

	set(tagkey.TrackTitle, m.Title())
	set(tagkey.Album, m.Album())
	set(tagkey.Artist, m.Artist())
	set(tagkey.AlbumArtist, m.AlbumArtist())
	set(tagkey.Composer, m.Composer())
	set(tagkey.Genre, m.Genre())
	if year := m.Year(); year > 0 {
		set(tagkey.Date, strconv.Itoa(year))
	}
	if n, total := m.Track(); n > 0 {
		set(tagkey.TrackNumber, outOf(n, total))
	}
	if n, total := m.Disc(); n > 0 {
		set(tagkey.DiscNumber, outOf(n, total))
		if total > 0 {
			set(tagkey.DiscTotal, strconv.Itoa(total))
		}
	}

	raw := make(map[string]any, len(m.Raw()))
	for k, v := range m.Raw() {
		raw[strings.ToLower(k)] = v
	}
	for key, names := range rawKeys {
		for _, name := range names {
			if s, ok := rawString(raw[name]); ok {
				set(key, s)
				break
			}
		}
	}

	return meta
}

func outOf(n, total int) string {
	if total > 0 {
		return strconv.Itoa(n) + "/" + strconv.Itoa(total)
	}
	return strconv.Itoa(n)
}

func rawString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case int:
		return strconv.Itoa(t), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return "", false
	}
}

func itoa(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
