package env

import (
	"errors"
	"fmt"
)

// ErrInvalidEnv is returned for an ID that does not name a frame.
var ErrInvalidEnv = errors.New("invalid environment reference")

// ErrUnbound is returned when a de Bruijn index walks past the last frame.
// Whether that is an error depends on the caller: at the top of a term it is
// simply a free variable.
var ErrUnbound = errors.New("unbound variable")

// UnboundError reports the index that escaped and how many frames there were.
type UnboundError struct {
	Index int
	Depth int
}

func (e UnboundError) Error() string {
	return fmt.Sprintf("unbound variable: index %d exceeds environment depth %d", e.Index, e.Depth)
}

func (e UnboundError) Unwrap() error {
	return ErrUnbound
}

// Free returns the index the variable has relative to the top of the term.
func (e UnboundError) Free() int {
	return e.Index - e.Depth
}
