// Package server exposes a Handler over the length-prefixed JSON protocol on
// TCP, and optionally a read-only HTTP status API.
package server

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/jukebox/pkg/protocol"
	"github.com/papercomputeco/jukebox/pkg/wire"
)

var (
	connsActive = expvar.NewInt("connections_active")
	connsTotal  = expvar.NewInt("connections_total")
	requests    = expvar.NewMap("requests")
	failures    = expvar.NewMap("request_errors")
)

// Handler executes requests. *player.Player implements it.
type Handler interface {
	Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// Server accepts protocol connections and answers their requests with a Handler.
type Server struct {
	config  Config
	handler Handler
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a Server.
func New(config Config, handler Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config:  config,
		handler: handler,
		logger:  logger,
		conns:   map[net.Conn]struct{}{},
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. It closes ln and every
// open connection before returning, and waits for their handlers to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting protocol server",
		zap.String("listen", ln.Addr().String()),
		zap.String("version", s.config.Version),
	)

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.closeConns()
	})
	defer stop()

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("accept: %w", err)
			}
			break
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}

	ln.Close()
	s.closeConns()
	s.wg.Wait()
	s.logger.Info("protocol server stopped")
	return acceptErr
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
	connsActive.Add(1)
	connsTotal.Add(1)
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		connsActive.Add(-1)
	}
	conn.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("client connected")
	defer logger.Debug("client disconnected")

	if err := wire.WriteJSON(conn, protocol.Greeting{Version: s.config.Version}); err != nil {
		logger.Warn("failed to send greeting", zap.Error(err))
		return
	}

	var differ protocol.Differ
	for {
		payload, err := wire.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn("closing connection", zap.Error(err))
			}
			return
		}

		resp := s.answer(ctx, &differ, payload, logger)
		if err := wire.WriteJSON(conn, resp); err != nil {
			logger.Warn("failed to send response", zap.Error(err))
			return
		}
	}
}

// answer turns one request payload into a response. Status diffs and resets
// are per connection, so they are resolved here rather than by the handler.
func (s *Server) answer(ctx context.Context, differ *protocol.Differ, payload []byte, logger *zap.Logger) *protocol.Response {
	req, err := protocol.Parse(payload)
	if err != nil {
		failures.Add("parse", 1)
		logger.Debug("bad request", zap.String("payload", truncate(string(payload), 100)), zap.Error(err))
		return protocol.Err(err)
	}
	requests.Add(string(req.Kind), 1)

	if req.Kind == protocol.KindReset {
		differ.Reset()
		return protocol.OK()
	}

	resp, err := s.handler.Do(ctx, req)
	if err != nil {
		failures.Add(string(req.Kind), 1)
		logger.Error("request failed", zap.String("kind", string(req.Kind)), zap.Error(err))
		return protocol.Err(err)
	}
	if !resp.IsOK() {
		failures.Add(string(req.Kind), 1)
		logger.Debug("request rejected", zap.String("kind", string(req.Kind)), zap.String("reason", resp.Reason))
		return resp
	}

	if req.Kind == protocol.KindState {
		changed, err := differ.Diff(resp.Items)
		if err != nil {
			return protocol.Err(err)
		}
		resp = &protocol.Response{Status: protocol.StatusOK, Items: changed}
	}
	return resp
}

// truncate shortens a string for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
