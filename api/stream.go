package api

import (
	"bufio"
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/session"
	"github.com/papercomputeco/lamdag/pkg/sse"
)

// StreamRequest asks for a reduction reported slice by slice.
type StreamRequest struct {
	session.Request

	// Slice is the number of steps between progress events.
	Slice int `json:"slice,omitempty"`
}

// handleReduceStream runs a reduction in slices and sends a progress event
// after each one, then a result event. Requests that cannot run are rejected
// before the stream starts.
func (s *Server) handleReduceStream(c *fiber.Ctx) error {
	var req StreamRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if err := s.precheck(c.UserContext(), req.Request); err != nil {
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, sse.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The writer runs after the handler returns, when c is no longer valid.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		resp, err := s.session.Stream(context.Background(), req.Request, req.Slice, func(p session.Progress) error {
			return sse.Send(w, sse.TypeProgress, strconv.Itoa(p.Slice), p)
		})
		if err != nil {
			if resp.RunID == "" {
				_ = sse.Send(w, sse.TypeError, "", ErrorResponse{Error: err.Error()})
			}
			s.logger.Debug("reduction stream ended early", "error", err)
			return
		}

		if err := sse.Send(w, sse.TypeResult, "", resp); err != nil {
			s.logger.Debug("reduction stream closed", "error", err)
		}
		s.logger.Debug("streamed reduction",
			"run_id", resp.RunID,
			"root", resp.Term.Root,
			"status", resp.Status,
			"steps", resp.Steps,
		)
	})
	return nil
}

// precheck fails the requests Stream would reject, while a status code can
// still be sent.
func (s *Server) precheck(ctx context.Context, req session.Request) error {
	if req.Mode != "" {
		if _, err := reduce.ParseMode(req.Mode); err != nil {
			return err
		}
	}
	switch {
	case req.Source != "":
		_, err := s.session.Compile(req.Source, req.Postfix)
		return err
	case req.Name != "":
		_, err := s.session.Load(ctx, req.Name)
		return err
	default:
		return session.ErrNoTerm
	}
}
