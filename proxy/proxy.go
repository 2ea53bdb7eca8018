// Package proxy is the streaming front door of tapestream. It accepts chat
// turns from thin clients, forwards them to the configured upstream runtime
// and relays the answer back as the simplified conversationId/chunk/end
// event stream, reporting agent events to the persister along the way.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/tapestream/pkg/stream"
	"github.com/papercomputeco/tapestream/pkg/storage"
	"github.com/papercomputeco/tapestream/proxy/header"
)

// Recorder receives the agent events of every relayed stream.
// *persistence.Persister implements it.
type Recorder interface {
	stream.EventSink

	// OpenStream marks the start of a new turn of conversationID.
	OpenStream(conversationID string)
}

// Proxy relays chat turns between clients and the upstream runtime.
type Proxy struct {
	config        Config
	recorder      Recorder
	store         storage.MessageStore
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy. Agent events go to recorder; client-side
// backstop messages are written synchronously to store.
func New(config Config, recorder Recorder, store storage.MessageStore, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if recorder == nil {
		return nil, errors.New("recorder is required")
	}
	if store == nil {
		return nil, errors.New("message store is required")
	}
	if _, err := stream.NewTranslator(config.Provider); err != nil {
		return nil, fmt.Errorf("could not create translator: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultUpstreamTimeout}
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})
	app.Use(recover.New())

	p := &Proxy{
		config:        config,
		recorder:      recorder,
		store:         store,
		logger:        logger.With("component", "proxy", "provider", config.Provider),
		httpClient:    httpClient,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	app.Post("/v1/chat", p.handleChat)
	app.Post("/v1/conversations/:id/messages", p.handleSaveMessage)

	return p, nil
}

// Run starts the proxy server on the configured listening address.
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.upstreamEndpoint(),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.upstreamEndpoint(),
	)

	return p.server.Listener(listener)
}

// Close stops accepting requests and waits for in-flight handlers. The
// recorder is owned by the caller and is not closed.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// ShutdownWithContext is Close bounded by ctx.
func (p *Proxy) ShutdownWithContext(ctx context.Context) error {
	return p.server.ShutdownWithContext(ctx)
}
