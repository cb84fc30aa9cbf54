// Package tagkey defines the metadata tags the library understands and how
// their values compare.
package tagkey

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind determines how values of a tag are compared.
type Kind int

const (
	String Kind = iota
	Integer
	// OutOf values are written as "n/total", e.g. track 3 of 12 is "3/12".
	OutOf
)

// Key is a known tag name.
type Key string

const (
	Album           Key = "album"
	AlbumArtist     Key = "albumartist"
	Arranger        Key = "arranger"
	Artist          Key = "artist"
	Bpm             Key = "bpm"
	Composer        Key = "composer"
	Conductor       Key = "conductor"
	Date            Key = "date"
	DiscNumber      Key = "discnumber"
	DiscTotal       Key = "disctotal"
	Ensemble        Key = "ensemble"
	Genre           Key = "genre"
	Label           Key = "label"
	Language        Key = "language"
	Lyricist        Key = "lyricist"
	Mood            Key = "mood"
	MovementName    Key = "movementname"
	MovementNumber  Key = "movementnumber"
	Part            Key = "part"
	PartTotal       Key = "parttotal"
	Performer       Key = "performer"
	Producer        Key = "producer"
	Script          Key = "script"
	SortAlbum       Key = "sortalbum"
	SortAlbumArtist Key = "sortalbumartist"
	SortArtist      Key = "sortartist"
	SortComposer    Key = "sortcomposer"
	SortTrackTitle  Key = "sorttracktitle"
	TrackNumber     Key = "tracknumber"
	TrackTitle      Key = "tracktitle"
)

var kinds = map[Key]Kind{
	Album: String, AlbumArtist: String, Arranger: String, Artist: String,
	Bpm: Integer, Composer: String, Conductor: String, Date: String,
	DiscNumber: OutOf, DiscTotal: String, Ensemble: String, Genre: String,
	Label: String, Language: String, Lyricist: String, Mood: String,
	MovementName: String, MovementNumber: OutOf, Part: String, PartTotal: String,
	Performer: String, Producer: String, Script: String, SortAlbum: String,
	SortAlbumArtist: String, SortArtist: String, SortComposer: String,
	SortTrackTitle: String, TrackNumber: OutOf, TrackTitle: String,
}

// ErrUnknown is returned by Parse for names that are not tags.
type ErrUnknown struct {
	Name string
}

func (e ErrUnknown) Error() string {
	return fmt.Sprintf("invalid tag name `%s`", e.Name)
}

// Parse validates a tag name.
func Parse(name string) (Key, error) {
	k := Key(name)
	if _, ok := kinds[k]; !ok {
		return "", ErrUnknown{Name: name}
	}
	return k, nil
}

// ParseAll validates a list of tag names, failing on the first unknown one.
func ParseAll(names []string) ([]Key, error) {
	keys := make([]Key, 0, len(names))
	for _, name := range names {
		k, err := Parse(name)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// All returns every known tag, sorted by name.
func All() []Key {
	keys := make([]Key, 0, len(kinds))
	for k := range kinds {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Kind reports how values of k compare.
func (k Key) Kind() Kind {
	return kinds[k]
}

func (k Key) String() string {
	return string(k)
}

// CompareValues orders two values of tag k. Numeric tags whose values do not
// parse compare equal.
func (k Key) CompareValues(lhs, rhs string) int {
	switch k.Kind() {
	case Integer:
		l, lerr := strconv.Atoi(strings.TrimSpace(lhs))
		r, rerr := strconv.Atoi(strings.TrimSpace(rhs))
		if lerr != nil || rerr != nil {
			return 0
		}
		return cmpInt(l, r)
	case OutOf:
		// "10/12" sorts after "2/12", so only the numerators are compared.
		l, lok := numerator(lhs)
		r, rok := numerator(rhs)
		if !lok || !rok {
			return 0
		}
		return cmpInt(l, r)
	default:
		return strings.Compare(lhs, rhs)
	}
}

func numerator(s string) (int, bool) {
	head, _, _ := strings.Cut(s, "/")
	n, err := strconv.Atoi(strings.TrimSpace(head))
	return n, err == nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
