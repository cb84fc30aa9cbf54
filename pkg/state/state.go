// Package state persists the player settings and queue between daemon runs.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/papercomputeco/jukebox/pkg/audio"
	"github.com/papercomputeco/jukebox/pkg/queue"
)

// State is the content of the state file.
type State struct {
	Volume  int           `json:"volume"`
	Speed   int           `json:"speed"`
	Gapless bool          `json:"gapless"`
	Mode    string        `json:"mode"`
	Devices []string      `json:"devices,omitempty"`
	Queue   []queue.Entry `json:"queue"`
}

// Default is the state of a fresh daemon.
func Default() State {
	return State{
		Volume: audio.DefaultVolume,
		Speed:  audio.DefaultSpeed,
		Mode:   queue.Sequential.String(),
		Queue:  []queue.Entry{},
	}
}

// Load reads the state file. A missing file yields Default.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state file: %w", err)
	}

	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode state file %s: %w", path, err)
	}
	return s, nil
}

// Save writes the state file, replacing it atomically.
func Save(path string, s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
