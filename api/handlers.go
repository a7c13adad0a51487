package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/storage"
	"github.com/papercomputeco/lamdag/pkg/syntax"
	"github.com/papercomputeco/lamdag/pkg/term"
	"github.com/papercomputeco/lamdag/pkg/worker"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SaveTermRequest stores a term under a name.
type SaveTermRequest struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Postfix bool   `json:"postfix,omitempty"`
}

// TermResponse describes a stored term.
type TermResponse struct {
	session.Term

	// Source is the term as stored, Best its best-known reduced form
	Source string `json:"source"`
	Best   string `json:"best"`
}

// StatsResponse reports engine totals and memo progress.
type StatsResponse struct {
	reduce.Stats
	States map[string]int `json:"states"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns engine statistics and entry counts per memo state.
func (s *Server) handleStats(c *fiber.Ctx) error {
	states := make(map[string]int)
	for st, n := range s.session.Inspector().Progress() {
		states[st.String()] = n
	}

	return c.JSON(StatsResponse{
		Stats:  s.session.Engine().Stats(),
		States: states,
	})
}

// handleListTerms returns the names of the stored terms.
func (s *Server) handleListTerms(c *fiber.Ctx) error {
	names, err := s.session.List(c.UserContext())
	if err != nil {
		s.logger.Error("failed to list terms", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list terms"})
	}

	return c.JSON(map[string]any{
		"count": len(names),
		"names": names,
	})
}

// handleSaveTerm parses and stores a term. It answers 201 for a new or
// changed term and 200 when the same term was already stored.
func (s *Server) handleSaveTerm(c *fiber.Ctx) error {
	var req SaveTermRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Name == "" || req.Source == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "name and source are required"})
	}

	t, inserted, err := s.session.Save(c.UserContext(), req.Name, req.Source, req.Postfix)
	if err != nil {
		return s.fail(c, err)
	}

	status := fiber.StatusOK
	if inserted {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(s.termResponse(t))
}

// handleGetTerm returns a stored term.
func (s *Server) handleGetTerm(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "name parameter required"})
	}

	t, err := s.session.Load(c.UserContext(), name)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.termResponse(t))
}

// handleReduce runs one reduction through the worker pool.
func (s *Server) handleReduce(c *fiber.Ctx) error {
	var req session.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	resp, err := s.session.Reduce(c.UserContext(), req)
	if err != nil {
		return s.fail(c, err)
	}

	s.logger.Debug("reduced",
		"run_id", resp.RunID,
		"root", resp.Term.Root,
		"status", resp.Status,
		"steps", resp.Steps,
	)
	return c.JSON(resp)
}

// handlePeek reports the memo state of a node under the env query
// parameter, the empty environment by default.
func (s *Server) handlePeek(c *fiber.Ctx) error {
	node, err := strconv.ParseInt(c.Params("node"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "node must be an integer"})
	}

	e := env.Empty
	if q := c.Query("env"); q != "" {
		id, err := strconv.ParseInt(q, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "env must be an integer"})
		}
		e = env.ID(id)
	}

	p, err := s.session.Peek(term.NodeID(node), e)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(p)
}

// handleCollect reclaims nodes no loaded term can reach.
func (s *Server) handleCollect(c *fiber.Ctx) error {
	n := s.session.Collect()
	s.logger.Info("collected nodes", "reclaimed", n)
	return c.JSON(map[string]int{"reclaimed": n})
}

func (s *Server) termResponse(t session.Term) TermResponse {
	p := &syntax.Printer{Nodes: s.session.Engine().Nodes(), FreeNames: t.FreeNames}
	return TermResponse{
		Term:   t,
		Source: p.RenderNode(t.Root),
		Best:   s.session.Inspector().Render(t.Root, env.Empty, t.FreeNames),
	}
}

// fail maps session errors to status codes.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var notFound storage.NotFoundError

	status := fiber.StatusInternalServerError
	switch {
	case errors.As(err, &notFound),
		errors.Is(err, term.ErrInvalidReference),
		errors.Is(err, env.ErrInvalidEnv):
		status = fiber.StatusNotFound
	case errors.Is(err, syntax.ErrSyntax),
		errors.Is(err, session.ErrNoTerm),
		errors.Is(err, storage.ErrInvalidName),
		errors.Is(err, syntax.ErrOpenDefinition),
		errors.Is(err, reduce.ErrUnknownMode):
		status = fiber.StatusBadRequest
	case errors.Is(err, worker.ErrQueueFull),
		errors.Is(err, worker.ErrClosed):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusRequestTimeout
	}

	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}
