package protocol

import (
	"bytes"
	"encoding/json"
)

// Differ remembers the last state sent on one connection and reduces the
// next state to the items that changed. Items that disappeared are reported
// as nil.
type Differ struct {
	last map[string][]byte
}

// Diff returns the changed items of state and records state as the new baseline.
func (d *Differ) Diff(state map[string]any) (map[string]any, error) {
	next := make(map[string][]byte, len(state))
	for k, v := range state {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		next[k] = b
	}

	out := make(map[string]any)
	for k, v := range state {
		if prev, ok := d.last[k]; !ok || !bytes.Equal(prev, next[k]) {
			out[k] = v
		}
	}
	for k := range d.last {
		if _, ok := next[k]; !ok {
			out[k] = nil
		}
	}

	d.last = next
	return out, nil
}

// Reset forgets the baseline so the next Diff returns the full state.
func (d *Differ) Reset() {
	d.last = nil
}
