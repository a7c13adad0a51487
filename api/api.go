package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	lamdaglog "github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/session"
)

// Server is the API server in front of one reduction session
type Server struct {
	config  Config
	session *session.Session
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server.
// The session is injected so that the MCP tools can share its engine.
func NewServer(config Config, sess *session.Session, logger *slog.Logger) (*Server, error) {
	if sess == nil {
		return nil, errors.New("session is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		session: sess,
		logger:  logger.With(lamdaglog.ComponentKey, "api"),
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/stats", s.handleStats)
	app.Get("/terms", s.handleListTerms)
	app.Post("/terms", s.handleSaveTerm)
	app.Get("/terms/:name", s.handleGetTerm)
	app.Post("/reduce", s.handleReduce)
	app.Post("/reduce/stream", s.handleReduceStream)
	app.Get("/peek/:node", s.handlePeek)
	app.Post("/collect", s.handleCollect)

	if config.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.MetricsHandler))
	}
	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
