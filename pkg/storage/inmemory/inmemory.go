// Package inmemory is a storage.Driver backed by a map.
package inmemory

import (
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/lamdag/pkg/storage"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards terms
	mu sync.RWMutex

	// terms maps a name to a private copy of its graph
	terms map[string]*term.Graph
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		terms: make(map[string]*term.Graph),
	}
}

func (s *Driver) Put(_ context.Context, name string, g *term.Graph) (bool, error) {
	if name == "" {
		return false, storage.ErrInvalidName
	}
	if g == nil {
		return false, storage.ErrNilGraph
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.terms[name]; ok && storage.SameGraph(old, g) {
		return false, nil
	}

	s.terms[name] = clone(g)
	return true, nil
}

func (s *Driver) Get(_ context.Context, name string) (*term.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.terms[name]
	if !ok {
		return nil, storage.NotFoundError{Name: name}
	}
	return clone(g), nil
}

func (s *Driver) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.terms[name]
	return ok, nil
}

func (s *Driver) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.terms))
	for name := range s.terms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *Driver) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.terms[name]
	delete(s.terms, name)
	return ok, nil
}

// Count returns the number of stored terms.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.terms)
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func clone(g *term.Graph) *term.Graph {
	return &term.Graph{
		Root:      g.Root,
		Nodes:     slices.Clone(g.Nodes),
		FreeNames: slices.Clone(g.FreeNames),
	}
}
