package server

import (
	"context"
	"expvar"
	"fmt"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/jukebox/pkg/protocol"
)

// ErrorResponse is the body of failed HTTP requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// API is the read-only HTTP status surface.
type API struct {
	handler Handler
	logger  *zap.Logger
	app     *fiber.App
}

// NewAPI builds the status API routes.
func NewAPI(handler Handler, version string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	a := &API{handler: handler, logger: logger, app: app}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok", "version": version})
	})
	app.Get("/state", a.status(protocol.KindState))
	app.Get("/queue", a.status(protocol.KindQueue))
	app.Get("/current", a.status(protocol.KindCurrent))
	app.Get("/devices", a.status(protocol.KindListDev))
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))

	return a
}

// App returns the underlying fiber app, for tests.
func (a *API) App() *fiber.App {
	return a.app
}

// Run serves on addr until ctx is done.
func (a *API) Run(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	stop := context.AfterFunc(ctx, func() {
		if err := a.app.Shutdown(); err != nil {
			a.logger.Warn("http shutdown", zap.Error(err))
		}
	})
	defer stop()

	a.logger.Info("starting http status api", zap.String("listen", ln.Addr().String()))
	return a.app.Listener(ln)
}

// status answers a GET with the handler's response to a request of kind k.
func (a *API) status(k protocol.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp, err := a.handler.Do(c.UserContext(), &protocol.Request{Kind: k})
		if err != nil {
			a.logger.Error("status request failed", zap.String("kind", string(k)), zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: err.Error()})
		}
		if !resp.IsOK() {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: resp.Reason})
		}
		return c.JSON(resp.Items)
	}
}
