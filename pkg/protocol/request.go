// Package protocol defines the JSON requests and responses exchanged over
// the wire framing, and the per-connection state diff.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/papercomputeco/jukebox/pkg/filter"
	"github.com/papercomputeco/jukebox/pkg/tagkey"
)

// Kind names a request.
type Kind string

const (
	KindLs       Kind = "ls"
	KindMetadata Kind = "metadata"
	KindSelect   Kind = "select"
	KindUnique   Kind = "unique"
	KindUpdate   Kind = "update"

	KindEnable  Kind = "enable"
	KindDisable Kind = "disable"
	KindListDev Kind = "listdev"

	KindSetVol    Kind = "setvol"
	KindChangeVol Kind = "changevol"
	KindSeek      Kind = "seek"
	KindSpeed     Kind = "speed"
	KindGapless   Kind = "gapless"
	KindPause     Kind = "pause"
	KindResume    Kind = "resume"
	KindStop      Kind = "stop"
	KindToggle    Kind = "toggle"

	KindPlaylists      Kind = "playlists"
	KindListSongs      Kind = "listsongs"
	KindAddPlaylist    Kind = "addplaylist"
	KindRemovePlaylist Kind = "removeplaylist"
	KindLoad           Kind = "load"
	KindSave           Kind = "save"

	KindAdd        Kind = "add"
	KindRemove     Kind = "remove"
	KindPlay       Kind = "play"
	KindClear      Kind = "clear"
	KindNext       Kind = "next"
	KindPrevious   Kind = "previous"
	KindRandom     Kind = "random"
	KindSequential Kind = "sequential"
	KindSingle     Kind = "single"

	KindState   Kind = "state"
	KindCurrent Kind = "current"
	KindElapsed Kind = "elapsed"
	KindQueue   Kind = "queue"
	KindVolume  Kind = "volume"
	KindReset   Kind = "reset"
)

// aliases are accepted on the wire and normalized to their canonical kind.
var aliases = map[Kind]Kind{
	"addqueue":    KindAdd,
	"removequeue": KindRemove,
}

// Group is the subsystem a request is routed to.
type Group int

const (
	GroupLibrary Group = iota
	GroupDevice
	GroupPlayback
	GroupPlaylist
	GroupQueue
	GroupStatus
)

type kindSpec struct {
	group    Group
	required []string
	// oneOf lists alternative keys of which at least one must be present.
	oneOf []string
}

var kinds = map[Kind]kindSpec{
	KindLs:       {group: GroupLibrary, required: []string{"dir"}},
	KindMetadata: {group: GroupLibrary, required: []string{"tags"}, oneOf: []string{"ids", "paths"}},
	KindSelect:   {group: GroupLibrary},
	KindUnique:   {group: GroupLibrary, required: []string{"tag"}},
	KindUpdate:   {group: GroupLibrary},

	KindEnable:  {group: GroupDevice, required: []string{"device"}},
	KindDisable: {group: GroupDevice, required: []string{"device"}},
	KindListDev: {group: GroupDevice},

	KindSetVol:    {group: GroupPlayback, required: []string{"volume"}},
	KindChangeVol: {group: GroupPlayback, required: []string{"delta"}},
	KindSeek:      {group: GroupPlayback, required: []string{"seconds"}},
	KindSpeed:     {group: GroupPlayback, required: []string{"speed"}},
	KindGapless:   {group: GroupPlayback},
	KindPause:     {group: GroupPlayback},
	KindResume:    {group: GroupPlayback},
	KindStop:      {group: GroupPlayback},
	KindToggle:    {group: GroupPlayback},

	KindPlaylists:      {group: GroupPlaylist},
	KindListSongs:      {group: GroupPlaylist, required: []string{"playlist"}},
	KindAddPlaylist:    {group: GroupPlaylist, required: []string{"playlist", "song"}},
	KindRemovePlaylist: {group: GroupPlaylist, required: []string{"playlist", "pos"}},
	KindLoad:           {group: GroupPlaylist, required: []string{"playlist"}},
	KindSave:           {group: GroupPlaylist, required: []string{"path"}},

	KindAdd:        {group: GroupQueue, oneOf: []string{"ids", "paths"}},
	KindRemove:     {group: GroupQueue, required: []string{"ids"}},
	KindPlay:       {group: GroupQueue, required: []string{"id"}},
	KindClear:      {group: GroupQueue},
	KindNext:       {group: GroupQueue},
	KindPrevious:   {group: GroupQueue},
	KindRandom:     {group: GroupQueue},
	KindSequential: {group: GroupQueue},
	KindSingle:     {group: GroupQueue},

	KindState:   {group: GroupStatus},
	KindCurrent: {group: GroupStatus},
	KindElapsed: {group: GroupStatus},
	KindQueue:   {group: GroupStatus},
	KindVolume:  {group: GroupStatus},
	KindReset:   {group: GroupStatus},
}

// Kinds returns every canonical request kind, sorted.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Group returns the subsystem of k. Unknown kinds report false.
func (k Kind) Group() (Group, bool) {
	spec, ok := kinds[k]
	return spec.group, ok
}

// FilterSpec is a filter object on the wire.
type FilterSpec struct {
	Kind     string `json:"kind"`
	Tag      string `json:"tag"`
	Regex    string `json:"regex"`
	Inverted bool   `json:"inverted,omitempty"`
}

// ComparatorSpec is a comparator object on the wire.
type ComparatorSpec struct {
	Tag   string `json:"tag"`
	Order string `json:"order,omitempty"`
}

// Request is the union of every request's keys. Which keys are meaningful
// depends on Kind.
type Request struct {
	Kind Kind `json:"kind"`

	Dir         *string          `json:"dir,omitempty"`
	IDs         []uint32         `json:"ids,omitempty"`
	Paths       []string         `json:"paths,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Tag         string           `json:"tag,omitempty"`
	Filters     []FilterSpec     `json:"filters,omitempty"`
	Filter      string           `json:"filter,omitempty"`
	Comparators []ComparatorSpec `json:"comparators,omitempty"`
	GroupBy     []string         `json:"group_by,omitempty"`

	Device string `json:"device,omitempty"`

	Volume  *int `json:"volume,omitempty"`
	Delta   *int `json:"delta,omitempty"`
	Seconds *int `json:"seconds,omitempty"`
	Speed   *int `json:"speed,omitempty"`

	Playlist string  `json:"playlist,omitempty"`
	Song     string  `json:"song,omitempty"`
	Path     string  `json:"path,omitempty"`
	Pos      *int    `json:"pos,omitempty"`
	Range    *[2]int `json:"range,omitempty"`
	ID       *uint32 `json:"id,omitempty"`
}

// Error is a request that could not be parsed.
type Error struct {
	Msg string
}

func (e Error) Error() string {
	return e.Msg
}

func errorf(format string, args ...any) error {
	return Error{Msg: fmt.Sprintf(format, args...)}
}

// ErrNotObject is returned for requests that are not JSON objects.
var ErrNotObject = Error{Msg: "a request must be a JSON object"}

// Parse decodes and validates one request payload.
func Parse(data []byte) (*Request, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		if !json.Valid(data) {
			return nil, errorf("invalid JSON")
		}
		return nil, ErrNotObject
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errorf("invalid JSON: %v", err)
	}

	rawKind, ok := raw["kind"]
	if !ok {
		return nil, errorf("key `kind` not found")
	}
	var kind Kind
	if err := json.Unmarshal(rawKind, &kind); err != nil {
		return nil, errorf("invalid value of key `kind`: %s", rawKind)
	}
	if canonical, ok := aliases[kind]; ok {
		kind = canonical
	}
	spec, ok := kinds[kind]
	if !ok {
		return nil, errorf("invalid value of key `kind`: `%s`", kind)
	}

	for _, key := range spec.required {
		if _, ok := raw[key]; !ok {
			return nil, errorf("key `%s` not found", key)
		}
	}
	if len(spec.oneOf) > 0 {
		found := false
		for _, key := range spec.oneOf {
			if _, ok := raw[key]; ok {
				found = true
			}
		}
		if !found {
			return nil, errorf("key `%s` not found", spec.oneOf[0])
		}
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, errorf("invalid value of key `%s`", typeErr.Field)
		}
		return nil, errorf("invalid request: %v", err)
	}
	req.Kind = kind

	if err := req.validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Check reports a missing value that the request's kind cannot do without.
// Parse already guarantees this for decoded requests; Check covers requests
// built in code.
func (r *Request) Check() error {
	var missing string
	switch r.Kind {
	case KindLs:
		if r.Dir == nil {
			missing = "dir"
		}
	case KindSetVol:
		if r.Volume == nil {
			missing = "volume"
		}
	case KindChangeVol:
		if r.Delta == nil {
			missing = "delta"
		}
	case KindSeek:
		if r.Seconds == nil {
			missing = "seconds"
		}
	case KindSpeed:
		if r.Speed == nil {
			missing = "speed"
		}
	case KindRemovePlaylist:
		if r.Pos == nil {
			missing = "pos"
		}
	case KindPlay:
		if r.ID == nil {
			missing = "id"
		}
	}
	if missing != "" {
		return errorf("key `%s` not found", missing)
	}
	return nil
}

func (r *Request) validate() error {
	if err := r.Check(); err != nil {
		return err
	}
	if r.Volume != nil && (*r.Volume < 0 || *r.Volume > 100) {
		return errorf("`volume` must be between 0 and 100")
	}
	if r.Pos != nil && *r.Pos < 0 {
		return errorf("`pos` must not be negative")
	}
	if r.Range != nil && (r.Range[0] < 0 || r.Range[1] < r.Range[0]) {
		return errorf("`range` must be [start, end] with 0 <= start <= end")
	}
	for _, f := range r.Filters {
		if f.Kind != "regex" {
			return errorf("invalid filter kind `%s`", f.Kind)
		}
	}
	return nil
}

// Expr compiles the request's filter list and filter expression into one
// expression; both must match.
func (r *Request) Expr() (*filter.Expr, error) {
	filters := make([]filter.Filter, 0, len(r.Filters))
	for _, f := range r.Filters {
		re, err := filter.NewRegex(f.Tag, f.Regex, f.Inverted)
		if err != nil {
			return nil, err
		}
		filters = append(filters, re)
	}
	expr := filter.All(filters...)

	if r.Filter != "" {
		parsed, err := filter.Parse(r.Filter)
		if err != nil {
			return nil, err
		}
		expr = expr.And(parsed)
	}
	return expr, nil
}

// Sorters compiles the request's comparators.
func (r *Request) Sorters() ([]filter.Comparator, error) {
	out := make([]filter.Comparator, 0, len(r.Comparators))
	for _, c := range r.Comparators {
		cmp, err := filter.NewComparator(c.Tag, c.Order)
		if err != nil {
			return nil, err
		}
		out = append(out, cmp)
	}
	return out, nil
}

// TagKeys parses the request's tag list.
func (r *Request) TagKeys() ([]tagkey.Key, error) {
	return tagkey.ParseAll(r.Tags)
}

// GroupKeys parses the request's group-by list.
func (r *Request) GroupKeys() ([]tagkey.Key, error) {
	return tagkey.ParseAll(r.GroupBy)
}
