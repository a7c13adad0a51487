package reduce

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/lamdag/pkg/memo"
)

// Mode selects head or deep reduction.
type Mode = memo.Mode

const (
	// Head reduces to weak head normal form, call-by-need.
	Head = memo.Head

	// Deep additionally normalizes under binders and in stuck operands.
	Deep = memo.Deep
)

// ErrUnknownMode is returned by ParseMode for anything but head or deep.
var ErrUnknownMode = errors.New("unknown reduction mode")

// ParseMode parses "head" or "deep", ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "head", "":
		return Head, nil
	case "deep":
		return Deep, nil
	default:
		return Head, fmt.Errorf("%w %q (want head or deep)", ErrUnknownMode, s)
	}
}

// DefaultMaxDepth bounds the recursion of a single run.
const DefaultMaxDepth = 100_000

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	detectCycles bool
	allowFree    bool
	maxDepth     int
	mode         Mode
}

func defaultOptions() options {
	return options{
		detectCycles: true,
		allowFree:    true,
		maxDepth:     DefaultMaxDepth,
		mode:         Head,
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCycleDetection toggles reporting of re-entrant pairs as DivergentRedex.
// When off, only the budget and the depth bound stop a divergent run.
func WithCycleDetection(on bool) Option {
	return func(o *options) {
		o.detectCycles = on
	}
}

// WithAllowFree controls whether free variables of the root are valid
// normal-form leaves. When false they are reported as Unbound.
func WithAllowFree(allow bool) Option {
	return func(o *options) {
		o.allowFree = allow
	}
}

// WithMaxDepth bounds recursion depth. Zero or less disables the bound.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

// WithMode sets the mode used by ReduceToNormalForm.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}
