// Package playlist stores playlists as m3u files in one directory.
package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Ext is the file extension of stored playlists.
const Ext = ".m3u"

// ErrNotFound is returned for playlists that do not exist.
type ErrNotFound struct {
	Name string
}

func (e ErrNotFound) Error() string {
	return "playlist `" + e.Name + "` not found"
}

// ErrInvalidName is returned for names that are empty or contain a path separator.
var ErrInvalidName = errors.New("invalid playlist name")

// ErrPosition is returned when removing from a position the playlist does not have.
var ErrPosition = errors.New("position out of range")

// Parse reads m3u lines. Lines starting with '#' are comments; blank lines are skipped.
func Parse(r io.Reader) ([]string, error) {
	var songs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		songs = append(songs, line)
	}
	return songs, sc.Err()
}

// Write renders songs as an extended m3u file.
func Write(w io.Writer, songs []string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("#EXTM3U\n")
	for _, s := range songs {
		bw.WriteString(s)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Slice returns the inclusive range [start, end] of songs, clamped to the
// playlist bounds. A nil range selects everything.
func Slice(songs []string, rng *[2]int) []string {
	if rng == nil {
		return songs
	}
	start, end := max(rng[0], 0), min(rng[1], len(songs)-1)
	if start > end {
		return nil
	}
	return songs[start : end+1]
}

// Dir is a directory of playlists.
type Dir struct {
	root string
}

// Open returns the playlist directory at root, creating it if needed.
func Open(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create playlist dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) path(name string) (string, error) {
	name = strings.TrimSuffix(name, Ext)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, name+Ext), nil
}

// Names lists the stored playlists, sorted, without extension.
func (d *Dir) Names() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read playlist dir: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	slices.Sort(names)
	return names, nil
}

// Songs returns the song paths of a playlist.
func (d *Dir) Songs(name string) ([]string, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("open playlist: %w", err)
	}
	defer f.Close()

	songs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read playlist %s: %w", name, err)
	}
	if songs == nil {
		songs = []string{}
	}
	return songs, nil
}

// Save writes songs as playlist name, replacing any existing content.
func (d *Dir) Save(name string, songs []string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.root, ".playlist-*")
	if err != nil {
		return fmt.Errorf("create playlist: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, songs); err != nil {
		tmp.Close()
		return fmt.Errorf("write playlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}
	return os.Rename(tmp.Name(), p)
}

// Append adds a song to the end of a playlist, creating the playlist if it
// does not exist.
func (d *Dir) Append(name, song string) error {
	songs, err := d.Songs(name)
	var nf ErrNotFound
	if err != nil && !errors.As(err, &nf) {
		return err
	}
	return d.Save(name, append(songs, song))
}

// RemoveAt deletes the song at pos (0-based) from a playlist.
func (d *Dir) RemoveAt(name string, pos int) error {
	songs, err := d.Songs(name)
	if err != nil {
		return err
	}
	if pos < 0 || pos >= len(songs) {
		return fmt.Errorf("%w: %d", ErrPosition, pos)
	}
	return d.Save(name, slices.Delete(songs, pos, pos+1))
}
