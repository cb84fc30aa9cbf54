package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/jukebox/cmd/jukebox/settings"
	"github.com/papercomputeco/jukebox/pkg/audio"
	"github.com/papercomputeco/jukebox/pkg/config"
	"github.com/papercomputeco/jukebox/pkg/library"
	"github.com/papercomputeco/jukebox/pkg/logger"
	"github.com/papercomputeco/jukebox/pkg/player"
	"github.com/papercomputeco/jukebox/pkg/playlist"
	"github.com/papercomputeco/jukebox/server"
)

const serveLongDesc string = `Run the jukebox daemon.

Indexes the music directory, restores the saved queue and serves the
request protocol on server.listen. Flags override the config file.

Examples:
  jukebox serve --music ~/Music
  jukebox serve --listen 127.0.0.1:4000 --http 127.0.0.1:4001 --watch
  jukebox serve --index ~/.cache/jukebox/index.db --device default --device spare`

const serveShortDesc string = "Run the jukebox daemon"

type serveCommander struct {
	listen      string
	http        string
	musicDir    string
	index       string
	watch       bool
	devices     []string
	stateFile   string
	playlistDir string
	logFile     string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := settings.Load(cmd)
			if err != nil {
				return err
			}
			cmder.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "TCP address of the request protocol")
	cmd.Flags().StringVar(&cmder.http, "http", "", "Address of the HTTP status API (empty disables it)")
	cmd.Flags().StringVarP(&cmder.musicDir, "music", "m", "", "Path to the music directory")
	cmd.Flags().StringVar(&cmder.index, "index", "", "Path to the SQLite library index (default: in-memory)")
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Update the library when files change")
	cmd.Flags().StringSliceVarP(&cmder.devices, "device", "d", nil, "Audio device names")
	cmd.Flags().StringVar(&cmder.stateFile, "state-file", "", "Path of the saved player state")
	cmd.Flags().StringVar(&cmder.playlistDir, "playlist-dir", "", "Directory of m3u playlists")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Path of the JSON log file")

	return cmd
}

// apply overrides cfg with the flags given on the command line.
func (c *serveCommander) apply(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("listen", &cfg.Server.Listen, c.listen)
	set("http", &cfg.Server.HTTP, c.http)
	set("music", &cfg.Library.MusicDir, c.musicDir)
	set("index", &cfg.Library.Index, c.index)
	set("state-file", &cfg.Player.StateFile, c.stateFile)
	set("playlist-dir", &cfg.Player.PlaylistDir, c.playlistDir)
	set("log-file", &cfg.Log.File, c.logFile)
	if cmd.Flags().Changed("watch") {
		cfg.Library.Watch = c.watch
	}
	if cmd.Flags().Changed("device") {
		cfg.Player.Devices = c.devices
	}
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config) error {
	log, closeLog, err := logger.New(logger.Options{Debug: cfg.Log.Debug, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closeLog()

	log.Info("jukebox starting",
		zap.String("version", settings.Version),
		zap.String("listen", cfg.Server.Listen),
		zap.String("music_dir", cfg.Library.MusicDir),
		zap.Bool("debug", cfg.Log.Debug),
	)

	d, err := Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Run(ctx)
}

// Daemon is a fully wired jukebox daemon.
type Daemon struct {
	Config  *config.Config
	Library *library.Library
	Player  *player.Player
	Server  *server.Server
	API     *server.API

	store   library.Store
	engine  *audio.Engine
	watcher *library.Watcher
	logger  *zap.Logger
}

// Build wires the library, audio engine, player and servers described by cfg.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Daemon, error) {
	d := &Daemon{Config: cfg, logger: log}

	if cfg.Library.Index != "" {
		store, err := library.NewSQLiteStore(cfg.Library.Index)
		if err != nil {
			return nil, fmt.Errorf("could not open library index %s: %w", cfg.Library.Index, err)
		}
		d.store = store
	} else {
		d.store = library.NewMemoryStore()
	}

	lib, err := library.New(ctx, library.Options{
		MusicDir:   cfg.Library.MusicDir,
		Extensions: cfg.Library.Extensions,
		Store:      d.store,
		Logger:     log.Named("library"),
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("could not load library: %w", err)
	}
	d.Library = lib

	playlists, err := playlist.Open(cfg.Player.PlaylistDir)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("could not open playlist directory: %w", err)
	}

	devices := make([]audio.Device, 0, len(cfg.Player.Devices))
	for _, name := range cfg.Player.Devices {
		devices = append(devices, audio.NewNullDevice(name, log.Named("audio")))
	}
	engine, err := audio.New(audio.Options{
		Devices:          devices,
		FallbackDuration: cfg.Player.FallbackDuration.Duration,
		Logger:           log.Named("audio"),
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("could not start audio engine: %w", err)
	}
	d.engine = engine

	p, err := player.New(player.Options{
		Library:   lib,
		Playlists: playlists,
		Engine:    engine,
		StateFile: cfg.Player.StateFile,
		Logger:    log.Named("player"),
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("could not create player: %w", err)
	}
	d.Player = p

	if cfg.Library.Watch {
		w, err := library.NewWatcher(lib.Root(), cfg.Library.Debounce.Duration, d.update, log.Named("watcher"))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("could not watch music directory: %w", err)
		}
		d.watcher = w
	}

	d.Server = server.New(server.Config{
		ListenAddr: cfg.Server.Listen,
		Version:    settings.Version,
	}, p, log.Named("server"))
	if cfg.Server.HTTP != "" {
		d.API = server.NewAPI(p, settings.Version, log.Named("http"))
	}

	return d, nil
}

// update is the watcher's callback.
func (d *Daemon) update(ctx context.Context) error {
	n, err := d.Library.Update(ctx)
	if err != nil {
		return err
	}
	d.logger.Info("library updated by watcher", zap.Int("new_files", n))
	return nil
}

// Run serves until ctx is done. The player saves its state on the way out.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.Player.Run(ctx) })
	g.Go(func() error { return d.Server.Run(ctx) })
	if d.API != nil {
		g.Go(func() error { return d.API.Run(ctx, d.Config.Server.HTTP) })
	}
	if d.watcher != nil {
		g.Go(func() error { return d.watcher.Run(ctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.logger.Info("jukebox stopped")
	return err
}

// Close releases what Build opened. It is safe to call on a partly built
// daemon.
func (d *Daemon) Close() {
	if d.engine != nil {
		d.engine.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("closing library index", zap.Error(err))
		}
	}
}
