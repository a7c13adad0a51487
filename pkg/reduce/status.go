package reduce

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/memo"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// ErrDepthExceeded is returned when a run nests deeper than the engine's
// maximum recursion depth.
var ErrDepthExceeded = errors.New("maximum reduction depth exceeded")

// Status is how a run ended. Every status other than Done still carries the
// best result available.
type Status uint8

const (
	Done Status = iota
	BudgetExhausted
	DivergentRedex
	Unbound
	InvalidReference
	Canceled
	DepthExceeded
)

var statusNames = map[Status]string{
	Done:             "done",
	BudgetExhausted:  "budget-exhausted",
	DivergentRedex:   "divergent-redex",
	Unbound:          "unbound",
	InvalidReference: "invalid-reference",
	Canceled:         "canceled",
	DepthExceeded:    "depth-exceeded",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", s)
}

// MarshalText renders the status by name so JSON payloads stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for k, v := range statusNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Resumable reports whether running again with more budget can make progress.
func (s Status) Resumable() bool {
	return s == BudgetExhausted || s == Canceled || s == DepthExceeded
}

// StatusOf classifies an error returned by a run.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return Done
	case errors.Is(err, memo.ErrBudgetExhausted):
		return BudgetExhausted
	case errors.Is(err, memo.ErrDivergentRedex):
		return DivergentRedex
	case errors.Is(err, env.ErrUnbound):
		return Unbound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled
	case errors.Is(err, ErrDepthExceeded):
		return DepthExceeded
	case errors.Is(err, term.ErrInvalidReference), errors.Is(err, env.ErrInvalidEnv):
		return InvalidReference
	default:
		return InvalidReference
	}
}
