// Package relay provides the streaming chat relay that sits between the
// editor extension and a local Ollama server. It validates chat requests,
// normalizes user-authored text, forwards the request to Ollama's streaming
// chat endpoint, and re-streams the line-delimited response while
// translating backend error conditions into client-actionable messages.
package relay

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

// preloadTimeout bounds the model preload convenience call. Unlike /chat,
// preload is explicitly allowed to give up: a model still loading after the
// deadline is reported as "timeout", not an error.
const preloadTimeout = 60 * time.Second

// Relay is the streaming chat relay server. All state is per-request; the
// Relay itself only holds configuration and shared clients, so concurrent
// requests are fully independent.
type Relay struct {
	config Config
	logger *zap.Logger
	server *fiber.App

	// chatClient carries the configured (default: unbounded) timeout for
	// chat streaming. statusClient is unbounded like the original health
	// probes; preloadClient is capped at preloadTimeout.
	chatClient    *http.Client
	statusClient  *http.Client
	preloadClient *http.Client
}

// New creates a new Relay from the given configuration.
func New(config Config, logger *zap.Logger) (*Relay, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if config.DefaultModel == "" {
		return nil, errors.New("default model is required")
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// The editor extension calls the relay cross-origin.
	app.Use(cors.New())

	r := &Relay{
		config:        config,
		logger:        logger,
		server:        app,
		chatClient:    &http.Client{Timeout: config.UpstreamTimeout},
		statusClient:  &http.Client{},
		preloadClient: &http.Client{Timeout: preloadTimeout},
	}

	app.Get("/", r.handleRoot)
	app.Get("/health", r.handleHealth)
	app.Get("/responses", r.handleResponsesStatus)
	app.Get("/ollama/endpoint", r.handleEndpointInfo)
	app.Post("/chat", r.handleChat)
	app.Post("/submit", r.handleChat)
	app.Post("/input/validate", r.handleValidateInput)
	app.Post("/model/preload", r.handlePreload)

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("upstream", r.config.UpstreamURL),
		zap.String("default_model", r.config.DefaultModel),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", r.config.UpstreamURL),
	)

	return r.server.Listener(listener)
}

// Shutdown gracefully shuts down the relay server.
func (r *Relay) Shutdown() error {
	return r.server.Shutdown()
}
