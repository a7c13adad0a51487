package term

import (
	"errors"
	"strconv"
)

// ErrInvalidReference is returned when a NodeID does not name a live node.
// It indicates a bug in whatever built the graph.
var ErrInvalidReference = errors.New("invalid node reference")

// InvalidReferenceError carries the offending NodeID.
type InvalidReferenceError struct {
	ID NodeID
}

func (e InvalidReferenceError) Error() string {
	return "invalid node reference: " + strconv.Itoa(int(e.ID))
}

func (e InvalidReferenceError) Unwrap() error {
	return ErrInvalidReference
}
