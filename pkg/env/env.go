// Package env implements persistent, hash-consed binding environments.
//
// An environment is a linked list of frames stored in an arena, mirroring the
// term.Store: extending an environment never copies it, and two extensions
// with the same parent and the same binding share one ID. Binding a de Bruijn
// variable is therefore a single lookup walking exactly index links, and
// environments can be compared (and used as memo keys) by identity.
package env

import (
	"fmt"
	"sync"

	"github.com/papercomputeco/lamdag/pkg/term"
)

// ID identifies an environment frame inside a Store.
type ID int32

// Empty is the environment with no frames. It exists in every Store.
const Empty ID = 0

// Binding is what a frame binds its variable to. A thunk binding holds an
// unevaluated node together with the environment it must be reduced in. A
// free binding stands for the variable of a binder that is being normalized
// under; Level is that binder's de Bruijn level.
type Binding struct {
	Node  term.NodeID
	Env   ID
	Free  bool
	Level int
}

// Thunk returns the binding of node under env.
func Thunk(node term.NodeID, env ID) Binding {
	return Binding{Node: node, Env: env}
}

// FreeAt returns the binding of a free binder at the given level.
func FreeAt(level int) Binding {
	return Binding{Node: term.NoNode, Env: Empty, Free: true, Level: level}
}

type frame struct {
	parent  ID
	binding Binding
}

// Store is an arena of environment frames. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	frames []frame
	depths []int
	index  map[frame]ID
}

// NewStore creates a Store containing only Empty.
func NewStore() *Store {
	return &Store{
		frames: []frame{{parent: -1}},
		depths: []int{0},
		index:  make(map[frame]ID),
	}
}

// Extend returns the environment that binds index 0 to node under valueEnv
// and shifts every binding of parent up by one.
func (s *Store) Extend(parent ID, node term.NodeID, valueEnv ID) (ID, error) {
	if node < 0 {
		return Empty, term.InvalidReferenceError{ID: node}
	}
	return s.extend(parent, Thunk(node, valueEnv))
}

// Bind returns the environment that binds index 0 to a free binder at level.
func (s *Store) Bind(parent ID, level int) (ID, error) {
	if level < 0 {
		return Empty, fmt.Errorf("negative binder level %d", level)
	}
	return s.extend(parent, FreeAt(level))
}

func (s *Store) extend(parent ID, b Binding) (ID, error) {
	f := frame{parent: parent, binding: b}

	s.mu.RLock()
	id, ok := s.index[f]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.index[f]; ok {
		return id, nil
	}
	if !s.validLocked(parent) {
		return Empty, fmt.Errorf("extending environment %d: %w", parent, ErrInvalidEnv)
	}
	if !b.Free && !s.validLocked(b.Env) {
		return Empty, fmt.Errorf("binding under environment %d: %w", b.Env, ErrInvalidEnv)
	}

	id = ID(len(s.frames))
	s.frames = append(s.frames, f)
	s.depths = append(s.depths, s.depths[parent]+1)
	s.index[f] = id

	return id, nil
}

// Lookup walks index links from env and returns the binding found there along
// with the frame that holds it. Running off the end is an UnboundError.
func (s *Store) Lookup(env ID, index int) (Binding, ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.validLocked(env) {
		return Binding{}, Empty, fmt.Errorf("looking up in environment %d: %w", env, ErrInvalidEnv)
	}
	if index < 0 {
		return Binding{}, Empty, UnboundError{Index: index, Depth: s.depths[env]}
	}

	cur := env
	for range index {
		if cur == Empty {
			break
		}
		cur = s.frames[cur].parent
	}

	if cur == Empty {
		return Binding{}, Empty, UnboundError{Index: index, Depth: s.depths[env]}
	}

	return s.frames[cur].binding, cur, nil
}

// Depth returns the number of frames in env.
func (s *Store) Depth(env ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.validLocked(env) {
		return 0
	}
	return s.depths[env]
}

// Parent returns the environment env extends.
func (s *Store) Parent(env ID) (ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.validLocked(env) || env == Empty {
		return Empty, fmt.Errorf("parent of environment %d: %w", env, ErrInvalidEnv)
	}
	return s.frames[env].parent, nil
}

// Contains reports whether env names a frame of s.
func (s *Store) Contains(env ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked(env)
}

// Len returns the number of frames including Empty.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Nodes returns every node held by a thunk binding. The engine uses it to
// keep bound values alive when sweeping the node store.
func (s *Store) Nodes() []term.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]term.NodeID, 0, len(s.frames))
	for _, f := range s.frames[1:] {
		if !f.binding.Free {
			nodes = append(nodes, f.binding.Node)
		}
	}
	return nodes
}

func (s *Store) validLocked(env ID) bool {
	return env >= 0 && int(env) < len(s.frames)
}
