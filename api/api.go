package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http/pprof"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/tapestream/pkg/persistence"
	"github.com/papercomputeco/tapestream/pkg/storage"
)

// Records reads persisted conversation records.
type Records interface {
	ListMessages(ctx context.Context, conversationID string) ([]*storage.Message, error)
	ListInteractions(ctx context.Context, conversationID string) ([]*storage.Interaction, error)
}

// Persistence is the part of the persister the API exposes.
// *persistence.Persister implements it.
type Persistence interface {
	SaveAgentData(ctx context.Context, conversationID, agentID, dataType string, data any, expiresAt *time.Time) error
	GetAgentData(ctx context.Context, conversationID, agentID, dataType string) (json.RawMessage, error)
	CleanupExpiredData(ctx context.Context) (int64, error)
	Stats() persistence.Stats
}

// Server is the API server for inspecting and maintaining tapestream state.
type Server struct {
	config      Config
	records     Records
	persistence Persistence
	logger      *slog.Logger
	app         *fiber.App
	now         func() time.Time
}

// NewServer creates a new API server. The records reader and the persister
// are injected so they can be shared with the proxy.
func NewServer(config Config, records Records, p Persistence, logger *slog.Logger) (*Server, error) {
	if records == nil {
		return nil, errors.New("records reader is required")
	}
	if p == nil {
		return nil, errors.New("persistence is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(compress.New())

	s := &Server{
		config:      config,
		records:     records,
		persistence: p,
		logger:      logger.With("component", "api"),
		app:         app,
		now:         time.Now,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/stats", s.handleStats)
	app.Post("/v1/maintenance/cleanup", s.handleCleanup)

	conv := app.Group("/v1/conversations/:id")
	conv.Get("/messages", s.handleListMessages)
	conv.Get("/interactions", s.handleListInteractions)
	conv.Get("/agents/:agent/data/:type", s.handleGetAgentData)
	conv.Put("/agents/:agent/data/:type", s.handlePutAgentData)

	if config.Pprof {
		mountPprof(app)
	}

	return s, nil
}

func mountPprof(app *fiber.App) {
	debug := app.Group("/debug/pprof")
	debug.Get("/cmdline", adaptor.HTTPHandlerFunc(pprof.Cmdline))
	debug.Get("/profile", adaptor.HTTPHandlerFunc(pprof.Profile))
	debug.Get("/symbol", adaptor.HTTPHandlerFunc(pprof.Symbol))
	debug.Post("/symbol", adaptor.HTTPHandlerFunc(pprof.Symbol))
	debug.Get("/trace", adaptor.HTTPHandlerFunc(pprof.Trace))
	debug.Get("/*", adaptor.HTTPHandlerFunc(pprof.Index))
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"pprof", s.config.Pprof,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
		"pprof", s.config.Pprof,
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ShutdownWithContext is Shutdown bounded by ctx.
func (s *Server) ShutdownWithContext(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
