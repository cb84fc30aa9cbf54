package client

import (
	"context"
	"sync"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

// Redialer is a Client that reconnects on the call after a failed one. It
// suits long-lived callers such as the MCP bridge, where one cancelled call
// must not end the session. Each reconnect starts a new state baseline.
type Redialer struct {
	addr string

	mu sync.Mutex
	c  *Client
}

// NewRedialer connects to addr once, so that a wrong address fails early.
func NewRedialer(ctx context.Context, addr string) (*Redialer, error) {
	c, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Redialer{addr: addr, c: c}, nil
}

func (r *Redialer) client(ctx context.Context) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		c, err := Dial(ctx, r.addr)
		if err != nil {
			return nil, err
		}
		r.c = c
	}
	return r.c, nil
}

// drop forgets c if it is still the current connection.
func (r *Redialer) drop(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == c {
		r.c.Close()
		r.c = nil
	}
}

// Do implements the same call as Client.Do.
func (r *Redialer) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	c, err := r.client(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		r.drop(c)
	}
	return resp, err
}

// DoRaw implements the same call as Client.DoRaw.
func (r *Redialer) DoRaw(ctx context.Context, payload []byte) (*protocol.Response, error) {
	c, err := r.client(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.DoRaw(ctx, payload)
	if err != nil {
		r.drop(c)
	}
	return resp, err
}

// Close closes the current connection, if any.
func (r *Redialer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return nil
	}
	err := r.c.Close()
	r.c = nil
	return err
}
