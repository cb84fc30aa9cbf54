// Package player owns the playback engine, the queue and the playlists, and
// serializes every request that touches them through one goroutine.
package player

import (
	"context"
	"errors"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/papercomputeco/jukebox/pkg/audio"
	"github.com/papercomputeco/jukebox/pkg/library"
	"github.com/papercomputeco/jukebox/pkg/playlist"
	"github.com/papercomputeco/jukebox/pkg/protocol"
	"github.com/papercomputeco/jukebox/pkg/queue"
	"github.com/papercomputeco/jukebox/pkg/state"
)

// ErrClosed is returned by Do once the player has stopped.
var ErrClosed = errors.New("player is closed")

// Options configures a Player.
type Options struct {
	Library   *library.Library
	Playlists *playlist.Dir
	Engine    *audio.Engine

	// Queue defaults to an empty queue.
	Queue *queue.Queue

	// StateFile is read at start and written when Run returns. Empty
	// disables persistence.
	StateFile string

	Logger *zap.Logger
}

type call struct {
	req   *protocol.Request
	reply chan *protocol.Response
}

// Player is the actor. Create it with New, start Run in its own goroutine
// and talk to it with Do.
type Player struct {
	lib       *library.Library
	playlists *playlist.Dir
	engine    *audio.Engine
	queue     *queue.Queue
	stateFile string
	logger    *zap.Logger

	calls chan call
	done  chan struct{}
}

// New builds a player and restores the saved state, if any.
func New(opts Options) (*Player, error) {
	p := &Player{
		lib:       opts.Library,
		playlists: opts.Playlists,
		engine:    opts.Engine,
		queue:     opts.Queue,
		stateFile: opts.StateFile,
		logger:    opts.Logger,
		calls:     make(chan call),
		done:      make(chan struct{}),
	}
	if p.queue == nil {
		p.queue = queue.New()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	if p.stateFile != "" {
		s, err := state.Load(p.stateFile)
		if err != nil {
			// A corrupt state file should not keep the daemon down.
			p.logger.Error("state file error", zap.String("path", p.stateFile), zap.Error(err))
			s = state.Default()
		}
		p.restore(s)
	}
	return p, nil
}

func (p *Player) restore(s state.State) {
	p.engine.SetVolume(s.Volume)
	if err := p.engine.SetSpeed(s.Speed); err != nil {
		p.logger.Warn("ignoring saved speed", zap.Int("speed", s.Speed))
	}
	p.engine.SetGapless(s.Gapless)

	if len(s.Devices) > 0 {
		for _, d := range p.engine.Devices() {
			var err error
			if slices.Contains(s.Devices, d.Device) {
				err = p.engine.Enable(d.Device)
			} else {
				err = p.engine.Disable(d.Device)
			}
			if err != nil {
				p.logger.Warn("could not restore device", zap.String("device", d.Device), zap.Error(err))
			}
		}
	}

	// Library ids are only stable with a persistent index, so entries are
	// matched by path.
	entries := make([]queue.Entry, 0, len(s.Queue))
	for _, e := range s.Queue {
		song, err := p.lib.SongByPath(e.Path)
		if err != nil {
			p.logger.Warn("dropping queued song", zap.String("path", e.Path), zap.Error(err))
			continue
		}
		e.SongID = song.ID
		e.Path = song.Rel
		entries = append(entries, e)
	}

	mode, err := queue.ParseMode(s.Mode)
	if err != nil {
		p.logger.Warn("ignoring saved mode", zap.String("mode", s.Mode))
	}
	p.queue.Restore(entries, mode)

	p.logger.Debug("state restored",
		zap.Int("volume", p.engine.Volume()),
		zap.Int("queue", len(entries)),
		zap.String("mode", mode.String()),
	)
}

func (p *Player) snapshot() state.State {
	var devices []string
	for _, d := range p.engine.Devices() {
		if d.Enabled {
			devices = append(devices, d.Device)
		}
	}
	return state.State{
		Volume:  p.engine.Volume(),
		Speed:   p.engine.Speed(),
		Gapless: p.engine.Gapless(),
		Mode:    p.queue.Mode().String(),
		Devices: devices,
		Queue:   p.queue.Entries(),
	}
}

// Run serves requests and song-over events until ctx is done, then stops
// playback and saves the state file.
func (p *Player) Run(ctx context.Context) error {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return p.shutdown()

		case c := <-p.calls:
			c.reply <- p.handle(c.req)

		case gen := <-p.engine.Over():
			if p.engine.Finished(gen) {
				p.songOver()
			}
		}
	}
}

func (p *Player) shutdown() error {
	p.engine.Stop()
	if p.stateFile == "" {
		return nil
	}
	if err := state.Save(p.stateFile, p.snapshot()); err != nil {
		return err
	}
	p.logger.Info("state saved", zap.String("path", p.stateFile))
	return nil
}

// Do executes one request. Library queries run on the caller's goroutine;
// everything else is handed to the player goroutine.
func (p *Player) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := req.Check(); err != nil {
		return protocol.Err(err), nil
	}
	if g, ok := req.Kind.Group(); ok && g == protocol.GroupLibrary {
		return p.libraryRequest(ctx, req), nil
	}

	c := call{req: req, reply: make(chan *protocol.Response, 1)}
	select {
	case p.calls <- c:
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-c.reply:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Player) songOver() {
	cur, _ := p.queue.Current()
	p.logger.Debug("song over", zap.Uint32("id", cur.ID), zap.String("path", cur.Path))

	if p.queue.Mode() == queue.Single {
		p.engine.Stop()
		return
	}
	if _, ok := p.nextPlayable(p.queue.Next); !ok {
		p.queue.Reset()
		p.engine.Stop()
	}
}

// nextPlayable moves with step until an entry starts playing. Entries that
// cannot be played are logged and skipped.
func (p *Player) nextPlayable(step func() (queue.Entry, bool)) (queue.Entry, bool) {
	for {
		e, ok := step()
		if !ok {
			return queue.Entry{}, false
		}
		if err := p.start(e); err != nil {
			p.logger.Error("playback error", zap.String("path", e.Path), zap.Error(err))
			continue
		}
		return e, true
	}
}

func (p *Player) start(e queue.Entry) error {
	song, err := p.lib.SongByID(e.SongID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(song.Path); err != nil {
		return err
	}
	return p.engine.Start(audio.Track{QueueID: e.ID, Path: song.Path, Duration: song.Duration})
}
