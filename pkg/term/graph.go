package term

import (
	"errors"
	"fmt"
)

// Graph is a flat, store-independent description of the nodes reachable from
// one root. IDs inside a Graph are local to it; Import remaps them.
type Graph struct {
	// Root is the graph-local ID of the root node.
	Root NodeID `json:"root"`

	// Nodes are listed children first where the graph is acyclic.
	Nodes []GraphNode `json:"nodes"`

	// FreeNames optionally names the free variables of the root, in de Bruijn
	// order (index 0 first).
	FreeNames []string `json:"free_names,omitempty"`
}

// GraphNode is one node of a Graph.
type GraphNode struct {
	ID    NodeID `json:"id"`
	Kind  Kind   `json:"kind"`
	Index int    `json:"index,omitempty"`
	Body  NodeID `json:"body"`
	Fun   NodeID `json:"fun"`
	Arg   NodeID `json:"arg"`
}

func (g GraphNode) node() Node {
	return normalize(Node{Kind: g.Kind, Index: g.Index, Body: g.Body, Fun: g.Fun, Arg: g.Arg})
}

// Export describes every node reachable from root. Back-references are
// preserved as they are; traversal visits each node once.
func (s *Store) Export(root NodeID) (*Graph, error) {
	g := &Graph{Root: root}
	visited := make(map[NodeID]bool)

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if visited[id] {
			return nil
		}
		visited[id] = true

		n, err := s.Get(id)
		if err != nil {
			return err
		}
		for _, c := range n.Children() {
			if err := visit(c); err != nil {
				return err
			}
		}

		g.Nodes = append(g.Nodes, GraphNode{
			ID:    id,
			Kind:  n.Kind,
			Index: n.Index,
			Body:  n.Body,
			Fun:   n.Fun,
			Arg:   n.Arg,
		})
		return nil
	}

	if err := visit(root); err != nil {
		return nil, fmt.Errorf("exporting node %d: %w", root, err)
	}

	return g, nil
}

// Import interns g into s and returns the identity of its root. Nodes that
// are the target of a back-reference are re-created with Knot; everything
// else is hash-consed, so importing a graph twice yields the same root.
func (s *Store) Import(g *Graph) (NodeID, error) {
	if g == nil {
		return NoNode, errors.New("cannot import nil graph")
	}

	byID := make(map[NodeID]Node, len(g.Nodes))
	for _, gn := range g.Nodes {
		byID[gn.ID] = gn.node()
	}

	if _, ok := byID[g.Root]; !ok {
		return NoNode, InvalidReferenceError{ID: g.Root}
	}

	knots := backEdgeTargets(g.Root, byID)
	mapped := make(map[NodeID]NodeID, len(byID))

	var load func(id NodeID) (NodeID, error)
	load = func(id NodeID) (NodeID, error) {
		if to, ok := mapped[id]; ok {
			return to, nil
		}

		n, ok := byID[id]
		if !ok {
			return NoNode, InvalidReferenceError{ID: id}
		}

		remap := func(n Node) (Node, error) {
			var err error
			switch n.Kind {
			case KindAbstraction:
				n.Body, err = load(n.Body)
			case KindApplication:
				if n.Fun, err = load(n.Fun); err == nil {
					n.Arg, err = load(n.Arg)
				}
			}
			return n, err
		}

		if knots[id] {
			return s.Knot(func(self NodeID) (Node, error) {
				mapped[id] = self
				return remap(n)
			})
		}

		local, err := remap(n)
		if err != nil {
			return NoNode, err
		}
		to, err := s.Intern(local)
		if err != nil {
			return NoNode, err
		}
		mapped[id] = to
		return to, nil
	}

	root, err := load(g.Root)
	if err != nil {
		return NoNode, fmt.Errorf("importing graph: %w", err)
	}
	return root, nil
}

// backEdgeTargets returns the nodes reached again while still on the
// depth-first stack from root, visiting children in the same order as Import.
func backEdgeTargets(root NodeID, byID map[NodeID]Node) map[NodeID]bool {
	const (
		unvisited = iota
		onStack
		finished
	)

	state := make(map[NodeID]int, len(byID))
	targets := make(map[NodeID]bool)

	var visit func(id NodeID)
	visit = func(id NodeID) {
		switch state[id] {
		case onStack:
			targets[id] = true
			return
		case finished:
			return
		}

		state[id] = onStack
		if n, ok := byID[id]; ok {
			for _, c := range n.Children() {
				visit(c)
			}
		}
		state[id] = finished
	}

	visit(root)
	return targets
}
