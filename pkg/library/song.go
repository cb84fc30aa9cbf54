// Package library indexes the music directory and answers queries about it:
// listing directories, reading metadata, filtering, sorting and grouping songs.
package library

import (
	"time"

	"github.com/papercomputeco/jukebox/pkg/tagkey"
)

// Metadata holds the tag values of one song.
type Metadata map[tagkey.Key]string

// Get implements filter.Tags.
func (m Metadata) Get(key tagkey.Key) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Value returns the tag value or nil when the song does not carry the tag.
func (m Metadata) Value(key tagkey.Key) *string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	return &v
}

// Song is one indexed audio file.
type Song struct {
	// ID is the library id, stable for the lifetime of the index.
	ID uint32 `json:"id"`

	// Path is absolute; Rel is relative to the music directory, slash separated.
	Path string `json:"path"`
	Rel  string `json:"rel"`

	ModTime time.Time `json:"mod_time"`

	// Duration is zero when it could not be determined.
	Duration time.Duration `json:"duration"`

	Tags Metadata `json:"tags"`
}

// ErrNotFound is returned when a song is not in the library.
type ErrNotFound struct {
	ID   uint32
	Path string
}

func (e ErrNotFound) Error() string {
	if e.Path != "" {
		return "song `" + e.Path + "` not found in the database"
	}
	return "song with id `" + itoa(e.ID) + "` not found in the database"
}
