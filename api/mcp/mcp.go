// Package mcp exposes reductions as Model Context Protocol tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/utils"
)

type Config struct {
	// Session runs the reductions the tools ask for
	Session *session.Session

	// Noop for an MCP server without tools
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the reduce, peek and stats tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "lamdag",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer

	if !c.Noop {
		if c.Session == nil {
			return nil, errors.New("session is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}
		s.config.Logger = logger.Component(c.Logger, "mcp")

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        reduceToolName,
			Description: reduceDescription,
		}, s.handleReduce)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        peekToolName,
			Description: peekDescription,
		}, s.handlePeek)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        statsToolName,
			Description: statsDescription,
		}, s.handleStats)
	}

	// Stateless: every request is served by the same server
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, for transports other than HTTP.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
