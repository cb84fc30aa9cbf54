// Package queue implements the play queue: an ordered list of songs with a
// cursor and sequential, random or single playback modes.
package queue

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

// Mode selects how the cursor advances.
type Mode int

const (
	// Sequential plays the queue in order.
	Sequential Mode = iota

	// Random plays every not yet played entry once in random order.
	Random

	// Single stops playback once the current song ends.
	Single
)

func (m Mode) String() string {
	switch m {
	case Random:
		return "random"
	case Single:
		return "single"
	default:
		return "sequential"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "sequential", "":
		return Sequential, nil
	case "random":
		return Random, nil
	case "single":
		return Single, nil
	default:
		return Sequential, fmt.Errorf("unknown queue mode %q", s)
	}
}

// Entry is one queued song.
type Entry struct {
	// ID identifies the entry in the queue; ids start at 1 and are never reused.
	ID uint32 `json:"id"`

	// SongID is the library id of the song.
	SongID uint32 `json:"song_id"`

	// Path is the song path relative to the music directory.
	Path string `json:"path"`
}

// Queue is not safe for concurrent use; the player owns it.
type Queue struct {
	list    []Entry
	pos     int // -1 when there is no current entry
	history map[uint32]bool
	nextID  uint32
	mode    Mode

	// pool holds the unplayed entry ids in random mode; the next entry is
	// popped from the end.
	pool []uint32
	rng  *rand.Rand
}

// New returns an empty queue in sequential mode.
func New() *Queue {
	return NewWithRand(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// NewWithRand returns an empty queue that draws random order from rng.
func NewWithRand(rng *rand.Rand) *Queue {
	return &Queue{pos: -1, history: map[uint32]bool{}, rng: rng}
}

func (q *Queue) find(id uint32) int {
	return slices.IndexFunc(q.list, func(e Entry) bool { return e.ID == id })
}

// Entries returns a copy of the queue in play order.
func (q *Queue) Entries() []Entry {
	return slices.Clone(q.list)
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	return len(q.list)
}

// Mode returns the current mode.
func (q *Queue) Mode() Mode {
	return q.mode
}

// Current returns the entry under the cursor.
func (q *Queue) Current() (Entry, bool) {
	if q.pos < 0 {
		return Entry{}, false
	}
	return q.list[q.pos], true
}

// Get returns the entry with the given queue id.
func (q *Queue) Get(id uint32) (Entry, bool) {
	i := q.find(id)
	if i < 0 {
		return Entry{}, false
	}
	return q.list[i], true
}

// Reset clears the cursor without touching the entries.
func (q *Queue) Reset() {
	q.pos = -1
}

func (q *Queue) markPlayed() {
	if cur, ok := q.Current(); ok {
		q.history[cur.ID] = true
	}
}

// Next advances the cursor. In random mode it moves to the next unplayed
// entry; otherwise it moves forward and falls off the end. From no cursor it
// starts at the first entry.
func (q *Queue) Next() (Entry, bool) {
	q.markPlayed()

	if q.mode == Random {
		q.pos = -1
		for len(q.pool) > 0 && q.pos < 0 {
			id := q.pool[len(q.pool)-1]
			q.pool = q.pool[:len(q.pool)-1]
			q.pos = q.find(id)
		}
		return q.Current()
	}

	switch {
	case q.pos >= 0 && q.pos < len(q.list)-1:
		q.pos++
	case q.pos < 0 && len(q.list) > 0:
		q.pos = 0
	default:
		q.pos = -1
	}
	return q.Current()
}

// Prev moves the cursor back. From no cursor it moves to the last entry.
func (q *Queue) Prev() (Entry, bool) {
	switch {
	case q.pos > 0:
		q.pos--
	case q.pos < 0 && len(q.list) > 0:
		q.pos = len(q.list) - 1
	default:
		q.pos = -1
	}
	return q.Current()
}

// MoveTo places the cursor on the entry with the given queue id.
func (q *Queue) MoveTo(id uint32) (Entry, bool) {
	q.dropFromPool(id)

	i := q.find(id)
	if i < 0 {
		return Entry{}, false
	}
	q.markPlayed()
	q.pos = i
	return q.list[i], true
}

// Add queues a song at pos, or appends it when pos is nil or past the end.
// It returns the new entry.
func (q *Queue) Add(songID uint32, path string, pos *int) Entry {
	q.nextID++
	e := Entry{ID: q.nextID, SongID: songID, Path: path}

	if pos != nil && *pos >= 0 && *pos <= len(q.list) {
		q.list = slices.Insert(q.list, *pos, e)
		if q.pos >= *pos {
			q.pos++
		}
	} else {
		q.list = append(q.list, e)
	}

	if q.mode == Random {
		if len(q.pool) == 0 {
			q.pool = append(q.pool, e.ID)
		} else {
			i := q.rng.IntN(len(q.pool))
			q.pool = append(q.pool, q.pool[i])
			q.pool[i] = e.ID
		}
	}
	return e
}

// Remove deletes the entry with the given queue id. found reports whether it
// existed; current whether it was under the cursor, in which case the cursor
// is cleared.
func (q *Queue) Remove(id uint32) (found, current bool) {
	q.dropFromPool(id)
	delete(q.history, id)

	i := q.find(id)
	if i < 0 {
		return false, false
	}
	q.list = slices.Delete(q.list, i, i+1)

	switch {
	case q.pos == i:
		q.pos = -1
		return true, true
	case q.pos > i:
		q.pos--
	}
	return true, false
}

// Clear empties the queue, its history and the random pool.
func (q *Queue) Clear() {
	q.list = nil
	q.pos = -1
	q.history = map[uint32]bool{}
	q.pool = nil
}

// SetMode switches modes. Entering random mode shuffles every entry that has
// not been played yet, excluding the current one.
func (q *Queue) SetMode(m Mode) {
	if m == q.mode {
		return
	}
	q.mode = m
	q.pool = nil
	if m != Random {
		return
	}

	cur, hasCur := q.Current()
	for _, e := range q.list {
		if q.history[e.ID] || (hasCur && e.ID == cur.ID) {
			continue
		}
		q.pool = append(q.pool, e.ID)
	}
	q.rng.Shuffle(len(q.pool), func(i, j int) {
		q.pool[i], q.pool[j] = q.pool[j], q.pool[i]
	})
}

func (q *Queue) dropFromPool(id uint32) {
	q.pool = slices.DeleteFunc(q.pool, func(p uint32) bool { return p == id })
}

// Restore replaces the queue content with entries keeping their ids. The
// cursor is cleared and the next id continues after the highest one.
func (q *Queue) Restore(entries []Entry, mode Mode) {
	q.Clear()
	q.mode = Sequential
	q.list = slices.Clone(entries)
	for _, e := range entries {
		if e.ID > q.nextID {
			q.nextID = e.ID
		}
	}
	q.SetMode(mode)
}
