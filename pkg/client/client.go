// Package client talks to a jukebox daemon over the framed JSON protocol.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/jukebox/pkg/protocol"
	"github.com/papercomputeco/jukebox/pkg/wire"
)

// DefaultAddr is where the daemon listens by default.
const DefaultAddr = "127.0.0.1:2137"

// ErrClosed is returned by calls on a client whose connection was closed,
// either by Close or after an exchange failed part way.
var ErrClosed = errors.New("client connection closed")

// Client is one connection to the daemon. Requests are answered in order;
// concurrent calls are serialized.
type Client struct {
	mu       sync.Mutex
	conn     net.Conn
	closed   atomic.Bool
	greeting protocol.Greeting
}

// Dial connects to addr and reads the greeting.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	c := &Client{conn: conn}
	if err := c.withDeadline(ctx, func() error {
		return wire.ReadJSON(conn, &c.greeting)
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	return c, nil
}

// Greeting returns what the daemon announced on connect.
func (c *Client) Greeting() protocol.Greeting {
	return c.greeting
}

// Close closes the connection. It does not wait for a call in flight, which
// then fails.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// Do sends req and waits for its response.
func (c *Client) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.DoRaw(ctx, payload)
}

// DoRaw sends a JSON payload as-is and waits for the response.
func (c *Client) DoRaw(ctx context.Context, payload []byte) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return nil, ErrClosed
	}

	var resp protocol.Response
	err := c.withDeadline(ctx, func() error {
		if err := wire.WriteFrame(c.conn, payload); err != nil {
			return err
		}
		return wire.ReadJSON(c.conn, &resp)
	})
	if err != nil {
		// A late reply to this request may still arrive and would be read
		// as the answer to the next one.
		c.Close()
		return nil, err
	}
	return &resp, nil
}

// withDeadline applies ctx's deadline to the socket for the duration of f and
// aborts pending IO when ctx is cancelled.
func (c *Client) withDeadline(ctx context.Context, f func() error) error {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
	} else {
		c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	err := f()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// The socket deadline can fire before the context notices its own.
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return err
}
