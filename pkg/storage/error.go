package storage

import "errors"

// ErrInvalidName is returned for an empty term name.
var ErrInvalidName = errors.New("invalid term name")

// ErrNilGraph is returned when Put is given no graph.
var ErrNilGraph = errors.New("cannot store nil graph")

// NotFoundError is returned when no graph is stored under a name.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	if e.Name == "" {
		return "term not found"
	}

	return "term not found: " + e.Name
}
