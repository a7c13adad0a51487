// Package storage persists named term graphs so that a term built once can be
// reloaded into any node store later.
package storage

import (
	"context"
	"slices"

	"github.com/papercomputeco/lamdag/pkg/term"
)

// Driver defines the interface for persisting and retrieving term graphs in
// a storage backend. Graphs are stored by value: a Graph is self-contained and
// its node IDs are local to it.
type Driver interface {
	// Put stores g under name. Returns true if the name was new or held a
	// different graph, false if the same graph was already stored there.
	Put(ctx context.Context, name string, g *term.Graph) (bool, error)

	// Get retrieves the graph stored under name.
	Get(ctx context.Context, name string) (*term.Graph, error)

	// Has checks if a graph is stored under name.
	Has(ctx context.Context, name string) (bool, error)

	// List returns every stored name in ascending order.
	List(ctx context.Context) ([]string, error)

	// Delete removes name. Returns false if nothing was stored under it.
	Delete(ctx context.Context, name string) (bool, error)

	// Close closes the store and releases any resources.
	Close() error
}

// SameGraph reports whether a and b describe the same nodes in the same order.
func SameGraph(a, b *term.Graph) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Root == b.Root &&
		slices.Equal(a.Nodes, b.Nodes) &&
		slices.Equal(a.FreeNames, b.FreeNames)
}
