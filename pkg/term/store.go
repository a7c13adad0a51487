package term

import (
	"errors"
	"fmt"
	"sync"
)

// Store is an append-only arena of hash-consed nodes.
//
// Interning is an atomic insert-if-absent on the consing index, so a Store is
// safe for concurrent use. Nodes are never mutated once defined; the only
// ways a slot changes are Knot defining a reserved identity and Sweep
// reclaiming an unreachable one.
type Store struct {
	// mu guards every field below
	mu sync.RWMutex

	// nodes is the arena; a NodeID is an index into it
	nodes []Node

	// index is the hash-consing table from description to identity
	index map[Node]NodeID

	// refs counts the distinct parents referring to each node
	refs []int32
}

// NewStore creates an empty node store.
func NewStore() *Store {
	return &Store{
		index: make(map[Node]NodeID),
	}
}

// Intern returns the identity of the node described by n, allocating it if
// no node with the same kind and the same children exists yet.
func (s *Store) Intern(n Node) (NodeID, error) {
	n = normalize(n)

	s.mu.RLock()
	id, ok := s.index[n]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another writer may have won the race between the two locks.
	if id, ok := s.index[n]; ok {
		return id, nil
	}

	if err := s.validateLocked(n); err != nil {
		return NoNode, err
	}

	id = NodeID(len(s.nodes))
	s.nodes = append(s.nodes, n)
	s.refs = append(s.refs, 0)
	s.index[n] = id
	s.addRefsLocked(n)

	return id, nil
}

// Knot allocates an identity before its description is known, so that nodes
// interned by define may refer back to it. This is how recursive encodings
// are represented: a cycle is two indices referring to each other.
//
// While define runs the reserved identity may be used as a child but cannot
// be dereferenced. If define fails the reserved slot is reclaimed.
func (s *Store) Knot(define func(self NodeID) (Node, error)) (NodeID, error) {
	if define == nil {
		return NoNode, errors.New("knot requires a define function")
	}

	s.mu.Lock()
	self := NodeID(len(s.nodes))
	s.nodes = append(s.nodes, Node{Kind: kindPending, Body: NoNode, Fun: NoNode, Arg: NoNode})
	s.refs = append(s.refs, 0)
	s.mu.Unlock()

	n, err := define(self)
	if err == nil {
		n = normalize(n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		err = s.validateLocked(n)
	}
	if err != nil {
		s.nodes[self].Kind = kindSwept
		return NoNode, fmt.Errorf("defining knot %d: %w", self, err)
	}

	s.nodes[self] = n
	if _, ok := s.index[n]; !ok {
		s.index[n] = self
	}
	s.addRefsLocked(n)

	return self, nil
}

// Get returns the description of a live node.
func (s *Store) Get(id NodeID) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.liveLocked(id) {
		return Node{}, InvalidReferenceError{ID: id}
	}

	return s.nodes[id], nil
}

// Kind returns the variant of a live node.
func (s *Store) Kind(id NodeID) (Kind, error) {
	n, err := s.Get(id)
	if err != nil {
		return KindInvalid, err
	}
	return n.Kind, nil
}

// Children returns the child identities of a live node.
func (s *Store) Children(id NodeID) ([]NodeID, error) {
	n, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return n.Children(), nil
}

// RefCount returns how many distinct live parents refer to id.
func (s *Store) RefCount(id NodeID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 0 || int(id) >= len(s.refs) {
		return 0
	}
	return int(s.refs[id])
}

// Len returns the number of live nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live := 0
	for _, n := range s.nodes {
		if n.Kind != kindSwept {
			live++
		}
	}
	return live
}

// Sweep reclaims every node that is not reachable from roots and returns how
// many were reclaimed. Reclaimed identities are never reused; dereferencing
// one afterwards is an InvalidReference.
func (s *Store) Sweep(roots ...NodeID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make([]bool, len(s.nodes))
	stack := make([]NodeID, 0, len(roots))
	for _, r := range roots {
		if r >= 0 && int(r) < len(s.nodes) {
			stack = append(stack, r)
		}
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if marked[id] {
			continue
		}
		marked[id] = true
		for _, c := range s.nodes[id].Children() {
			if c >= 0 && int(c) < len(s.nodes) && !marked[c] {
				stack = append(stack, c)
			}
		}
	}

	swept := 0
	for i, n := range s.nodes {
		if marked[i] || n.Kind == kindSwept {
			continue
		}
		if n.Kind != kindPending {
			if cur, ok := s.index[n]; ok && cur == NodeID(i) {
				delete(s.index, n)
			}
			s.dropRefsLocked(n)
		}
		s.nodes[i].Kind = kindSwept
		swept++
	}

	return swept
}

func (s *Store) liveLocked(id NodeID) bool {
	if id < 0 || int(id) >= len(s.nodes) {
		return false
	}
	k := s.nodes[id].Kind
	return k != kindPending && k != kindSwept
}

// validateLocked checks that every child exists. Children may be reserved
// knots that are not yet defined.
func (s *Store) validateLocked(n Node) error {
	switch n.Kind {
	case KindVariable:
		if n.Index < 0 {
			return fmt.Errorf("negative de Bruijn index %d: %w", n.Index, ErrInvalidReference)
		}
		return nil
	case KindAbstraction, KindApplication:
		for _, c := range n.Children() {
			if c < 0 || int(c) >= len(s.nodes) || s.nodes[c].Kind == kindSwept {
				return InvalidReferenceError{ID: c}
			}
		}
		return nil
	default:
		return fmt.Errorf("cannot intern %s node: %w", n.Kind, ErrInvalidReference)
	}
}

func (s *Store) addRefsLocked(n Node) {
	switch n.Kind {
	case KindAbstraction:
		s.refs[n.Body]++
	case KindApplication:
		s.refs[n.Fun]++
		if n.Arg != n.Fun {
			s.refs[n.Arg]++
		}
	}
}

func (s *Store) dropRefsLocked(n Node) {
	switch n.Kind {
	case KindAbstraction:
		s.refs[n.Body]--
	case KindApplication:
		s.refs[n.Fun]--
		if n.Arg != n.Fun {
			s.refs[n.Arg]--
		}
	}
}

// normalize clears the fields a kind does not use so that equal descriptions
// compare equal.
func normalize(n Node) Node {
	switch n.Kind {
	case KindVariable:
		return Var(n.Index)
	case KindAbstraction:
		return Lam(n.Body)
	case KindApplication:
		return App(n.Fun, n.Arg)
	default:
		return n
	}
}
