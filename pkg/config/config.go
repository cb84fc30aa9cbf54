// Package config loads the jukebox TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/jukebox/pkg/audio"
	"github.com/papercomputeco/jukebox/pkg/client"
	"github.com/papercomputeco/jukebox/pkg/library"
)

const appName = "jukebox"

// Config is the full daemon and client configuration.
type Config struct {
	Server  Server  `toml:"server"`
	Library Library `toml:"library"`
	Player  Player  `toml:"player"`
	Log     Log     `toml:"log"`
}

type Server struct {
	// Listen is the TCP address of the request protocol.
	Listen string `toml:"listen"`
	// HTTP is the address of the status API; empty disables it.
	HTTP string `toml:"http"`
}

type Library struct {
	MusicDir   string   `toml:"music_dir"`
	Extensions []string `toml:"extensions"`
	// Index is the SQLite index file; empty keeps the index in memory.
	Index    string   `toml:"index"`
	Watch    bool     `toml:"watch"`
	Debounce Duration `toml:"debounce"`
}

type Player struct {
	Devices          []string `toml:"devices"`
	PlaylistDir      string   `toml:"playlist_dir"`
	StateFile        string   `toml:"state_file"`
	FallbackDuration Duration `toml:"fallback_duration"`
}

type Log struct {
	Debug bool `toml:"debug"`
	// File additionally receives JSON log lines when set.
	File string `toml:"file"`
}

// Duration is a time.Duration written as a string such as "2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: Server{Listen: client.DefaultAddr},
		Library: Library{
			MusicDir:   ".",
			Extensions: append([]string(nil), library.DefaultExtensions...),
			Debounce:   Duration{library.DefaultDebounce},
		},
		Player: Player{
			Devices:          []string{"default"},
			PlaylistDir:      filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), appName, "playlists"),
			StateFile:        filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), appName, "state.json"),
			FallbackDuration: Duration{audio.DefaultFallbackDuration},
		},
		Log: Log{
			File: filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), appName, appName+".log"),
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/jukebox/jukebox.toml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appName, appName+".toml")
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// Load reads the file at path over the defaults. A missing file is not an
// error. Keys the configuration does not know about are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values a daemon cannot start with.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return errors.New("server.listen must not be empty")
	}
	if c.Library.MusicDir == "" {
		return errors.New("library.music_dir must not be empty")
	}
	if len(c.Player.Devices) == 0 {
		return errors.New("player.devices must name at least one device")
	}
	if c.Library.Debounce.Duration < 0 || c.Player.FallbackDuration.Duration <= 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

// Write encodes c as TOML.
func Write(w io.Writer, c *Config) error {
	return toml.NewEncoder(w).Encode(c)
}

// Save writes c to path atomically, creating the parent directory.
func Save(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := Write(f, c); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
