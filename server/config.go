package server

// Config is the daemon's network configuration.
type Config struct {
	// ListenAddr is the TCP address of the control protocol (e.g. "127.0.0.1:2137").
	ListenAddr string

	// Version is announced in the greeting frame.
	Version string
}
