package session

import (
	"context"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/reduce"
)

// DefaultSlice is the number of steps per slice of a streamed reduction.
const DefaultSlice = 100

// Progress is reported after every slice of a streamed reduction.
type Progress struct {
	Slice  int           `json:"slice"`
	RunID  string        `json:"run_id"`
	Status reduce.Status `json:"status"`

	// Steps were taken by this slice, Total by every slice so far.
	Steps int `json:"steps"`
	Total int `json:"total"`

	// States counts memo entries by state.
	States   map[string]int `json:"states"`
	Rendered string         `json:"rendered"`
	Error    string         `json:"error,omitempty"`
}

// Stream reduces req in slices of at most slice steps, calling fn after each
// one. Every slice resumes from what the ones before it committed. Stream
// returns once a slice ends in anything but BudgetExhausted, the request's
// budget is spent, ctx is done or fn fails; the Response describes the last
// slice with the total step count.
func (s *Session) Stream(ctx context.Context, req Request, slice int, fn func(Progress) error) (Response, error) {
	t, mode, budget, err := s.resolve(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if slice <= 0 {
		slice = DefaultSlice
	}

	resp := Response{Term: t}
	for i := 1; ; i++ {
		b := slice
		if budget > 0 {
			b = min(slice, budget-resp.Steps)
		}

		out, runErr := s.config.Engine.Run(ctx, reduce.Request{Root: t.Root, Env: env.Empty, Budget: b, Mode: mode})

		resp.RunID = out.RunID
		resp.Status = out.Status
		resp.Steps += out.Steps
		resp.Node, resp.Env = out.Node, out.Env
		resp.Rendered = s.Render(t, out)
		resp.Error = ""
		if runErr != nil {
			resp.Error = runErr.Error()
		}

		p := Progress{
			Slice:    i,
			RunID:    out.RunID,
			Status:   out.Status,
			Steps:    out.Steps,
			Total:    resp.Steps,
			States:   s.states(),
			Rendered: resp.Rendered,
			Error:    resp.Error,
		}
		if err := fn(p); err != nil {
			return resp, err
		}

		switch {
		case out.Status != reduce.BudgetExhausted:
			return resp, nil
		case out.Steps == 0, budget > 0 && resp.Steps >= budget:
			return resp, nil
		case ctx.Err() != nil:
			return resp, ctx.Err()
		}
	}
}

func (s *Session) states() map[string]int {
	progress := s.insp.Progress()
	states := make(map[string]int, len(progress))
	for state, n := range progress {
		states[state.String()] = n
	}
	return states
}
