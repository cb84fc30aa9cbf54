// Package audio is the playback engine: output devices, volume, speed, and a
// playback clock that reports when the current song is over.
package audio

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// State is the playback state. Its numeric values are part of the protocol.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

const (
	DefaultVolume           = 50
	DefaultSpeed            = 100
	MinSpeed                = 25
	MaxSpeed                = 400
	DefaultFallbackDuration = 3 * time.Minute
)

// ErrSpeed is returned for speeds outside [MinSpeed, MaxSpeed].
var ErrSpeed = fmt.Errorf("speed must be between %d and %d percent", MinSpeed, MaxSpeed)

// ErrNotPlaying is returned by operations that need a current song.
var ErrNotPlaying = errors.New("nothing is playing")

// Track is what the engine plays.
type Track struct {
	// QueueID is the queue entry the track came from.
	QueueID uint32
	Path    string

	// Duration is zero when unknown.
	Duration time.Duration
}

// Options configures an Engine.
type Options struct {
	// Devices are the available outputs; Enabled names the ones switched on
	// at start. With no Enabled names every device is enabled.
	Devices []Device
	Enabled []string

	// FallbackDuration is assumed for tracks of unknown length.
	FallbackDuration time.Duration

	Clock  Clock
	Logger *zap.Logger
}

type output struct {
	dev     Device
	enabled bool
}

// Engine is not safe for concurrent use, apart from the channel returned by
// Over. The player goroutine owns it.
type Engine struct {
	outputs  []*output
	fallback time.Duration
	clock    Clock
	logger   *zap.Logger

	state   State
	volume  int
	speed   int
	gapless bool

	track    Track
	duration time.Duration

	// elapsed is the song position at since; while playing the position
	// advances with wall time scaled by speed.
	elapsed time.Duration
	since   time.Time

	gen   uint64
	timer Timer
	over  chan uint64
	done  chan struct{}
}

// New builds an engine with all devices idle and playback stopped.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		fallback: opts.FallbackDuration,
		clock:    opts.Clock,
		logger:   opts.Logger,
		volume:   DefaultVolume,
		speed:    DefaultSpeed,
		over:     make(chan uint64, 1),
		done:     make(chan struct{}),
	}
	if e.fallback <= 0 {
		e.fallback = DefaultFallbackDuration
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	for _, d := range opts.Devices {
		e.outputs = append(e.outputs, &output{dev: d, enabled: len(opts.Enabled) == 0})
	}
	for _, name := range opts.Enabled {
		o := e.find(name)
		if o == nil {
			return nil, ErrUnknownDevice{Name: name}
		}
		o.enabled = true
	}
	return e, nil
}

// Close stops playback and releases the over channel's senders.
func (e *Engine) Close() {
	e.Stop()
	close(e.done)
}

func (e *Engine) find(name string) *output {
	for _, o := range e.outputs {
		if o.dev.Name() == name {
			return o
		}
	}
	return nil
}

func (e *Engine) each(f func(Device) error) {
	for _, o := range e.outputs {
		if !o.enabled {
			continue
		}
		if err := f(o.dev); err != nil {
			e.logger.Warn("device error", zap.String("device", o.dev.Name()), zap.Error(err))
		}
	}
}

// Devices lists the outputs in configuration order.
func (e *Engine) Devices() []DeviceStatus {
	out := make([]DeviceStatus, len(e.outputs))
	for i, o := range e.outputs {
		out[i] = DeviceStatus{Device: o.dev.Name(), Enabled: o.enabled}
	}
	return out
}

// Enable switches a device on. If a song is loaded the device joins it.
func (e *Engine) Enable(name string) error {
	o := e.find(name)
	if o == nil {
		return ErrUnknownDevice{Name: name}
	}
	if o.enabled {
		return nil
	}
	if e.state != Stopped {
		if err := o.dev.Start(e.track); err != nil {
			return fmt.Errorf("start device %s: %w", name, err)
		}
		if e.state == Paused {
			if err := o.dev.Pause(); err != nil {
				return fmt.Errorf("pause device %s: %w", name, err)
			}
		}
	}
	o.enabled = true
	return nil
}

// Disable switches a device off.
func (e *Engine) Disable(name string) error {
	o := e.find(name)
	if o == nil {
		return ErrUnknownDevice{Name: name}
	}
	if o.enabled && e.state != Stopped {
		if err := o.dev.Stop(); err != nil {
			e.logger.Warn("device error", zap.String("device", name), zap.Error(err))
		}
	}
	o.enabled = false
	return nil
}

// Over delivers the generation of a song whose clock ran out. Use Finished
// to discard stale deliveries.
func (e *Engine) Over() <-chan uint64 {
	return e.over
}

// Finished reports whether gen is the current song and it has ended.
func (e *Engine) Finished(gen uint64) bool {
	return gen == e.gen && e.state == Playing && e.Elapsed() >= e.duration
}

// Start plays t from the beginning.
func (e *Engine) Start(t Track) error {
	e.stopTimer()
	if e.state != Stopped {
		e.each(Device.Stop)
	}

	e.track = t
	e.duration = t.Duration
	if e.duration <= 0 {
		e.duration = e.fallback
	}
	e.elapsed = 0
	e.since = e.clock.Now()
	e.gen++

	for _, o := range e.outputs {
		if !o.enabled {
			continue
		}
		if err := o.dev.Start(t); err != nil {
			e.state = Stopped
			return fmt.Errorf("start device %s: %w", o.dev.Name(), err)
		}
	}

	e.state = Playing
	e.schedule()
	return nil
}

// Pause freezes the clock. It is a no-op unless playing.
func (e *Engine) Pause() {
	if e.state != Playing {
		return
	}
	e.elapsed = e.Elapsed()
	e.stopTimer()
	e.each(Device.Pause)
	e.state = Paused
}

// Resume restarts the clock. It is a no-op unless paused.
func (e *Engine) Resume() {
	if e.state != Paused {
		return
	}
	e.since = e.clock.Now()
	e.each(Device.Resume)
	e.state = Playing
	e.schedule()
}

// Toggle pauses when playing and resumes when paused.
func (e *Engine) Toggle() {
	switch e.state {
	case Playing:
		e.Pause()
	case Paused:
		e.Resume()
	}
}

// Stop unloads the current song.
func (e *Engine) Stop() {
	e.stopTimer()
	if e.state != Stopped {
		e.each(Device.Stop)
	}
	e.state = Stopped
	e.track = Track{}
	e.duration = 0
	e.elapsed = 0
	e.gen++
}

// Seek moves the position by secs, clamped to the song bounds.
func (e *Engine) Seek(secs int) error {
	if e.state == Stopped {
		return ErrNotPlaying
	}
	pos := e.Elapsed() + time.Duration(secs)*time.Second
	e.elapsed = min(max(pos, 0), e.duration)
	e.since = e.clock.Now()
	if e.state == Playing {
		e.schedule()
	}
	return nil
}

// SetVolume sets the volume, clamped to [0, 100].
func (e *Engine) SetVolume(v int) {
	e.volume = min(max(v, 0), 100)
}

// ChangeVolume adds delta to the volume, clamped to [0, 100].
func (e *Engine) ChangeVolume(delta int) {
	e.SetVolume(e.volume + delta)
}

// SetSpeed sets the playback speed in percent.
func (e *Engine) SetSpeed(percent int) error {
	if percent < MinSpeed || percent > MaxSpeed {
		return ErrSpeed
	}
	if e.state == Playing {
		e.elapsed = e.Elapsed()
		e.since = e.clock.Now()
	}
	e.speed = percent
	if e.state == Playing {
		e.schedule()
	}
	return nil
}

// ToggleGapless flips gapless playback and returns the new setting.
func (e *Engine) ToggleGapless() bool {
	e.gapless = !e.gapless
	return e.gapless
}

// SetGapless sets gapless playback.
func (e *Engine) SetGapless(on bool) {
	e.gapless = on
}

func (e *Engine) State() State            { return e.state }
func (e *Engine) Volume() int             { return e.volume }
func (e *Engine) Speed() int              { return e.speed }
func (e *Engine) Gapless() bool           { return e.gapless }
func (e *Engine) Track() Track            { return e.track }
func (e *Engine) Duration() time.Duration { return e.duration }

// Elapsed returns the position in the current song.
func (e *Engine) Elapsed() time.Duration {
	if e.state != Playing {
		return e.elapsed
	}
	wall := e.clock.Now().Sub(e.since)
	pos := e.elapsed + wall*time.Duration(e.speed)/100
	return min(pos, e.duration)
}

func (e *Engine) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// schedule arms the song-over timer for the remaining wall time.
func (e *Engine) schedule() {
	e.stopTimer()
	remaining := e.duration - e.Elapsed()
	speed := time.Duration(e.speed)
	// Round up so that Elapsed has reached the duration when the timer fires.
	wall := (remaining*100 + speed - 1) / speed
	gen := e.gen
	e.timer = e.clock.AfterFunc(max(wall, 0), func() {
		select {
		case e.over <- gen:
		case <-e.done:
		}
	})
}
