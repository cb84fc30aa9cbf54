package audio

import (
	"go.uber.org/zap"
)

// Device is an audio output. The engine drives every enabled device through
// the same start, pause, resume and stop transitions.
type Device interface {
	Name() string
	Start(t Track) error
	Pause() error
	Resume() error
	Stop() error
}

// DeviceStatus is one line of a device listing.
type DeviceStatus struct {
	Device  string `json:"device"`
	Enabled bool   `json:"enabled"`
}

// ErrUnknownDevice is returned for device names the engine does not know.
type ErrUnknownDevice struct {
	Name string
}

func (e ErrUnknownDevice) Error() string {
	return "audio device `" + e.Name + "` unavailable"
}

// NullDevice renders nothing. It logs its transitions at debug level.
type NullDevice struct {
	name   string
	logger *zap.Logger
}

// NewNullDevice returns a silent device called name.
func NewNullDevice(name string, logger *zap.Logger) *NullDevice {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NullDevice{name: name, logger: logger.With(zap.String("device", name))}
}

func (d *NullDevice) Name() string { return d.name }

func (d *NullDevice) Start(t Track) error {
	d.logger.Debug("start", zap.String("path", t.Path), zap.Duration("duration", t.Duration))
	return nil
}

func (d *NullDevice) Pause() error {
	d.logger.Debug("pause")
	return nil
}

func (d *NullDevice) Resume() error {
	d.logger.Debug("resume")
	return nil
}

func (d *NullDevice) Stop() error {
	d.logger.Debug("stop")
	return nil
}
