// Package reference is a plain substitution evaluator over de Bruijn trees.
//
// It performs leftmost-outermost beta-reduction by copying, with no sharing
// and no memoization. It exists to check the engine: both must reach the same
// normal form, which under de Bruijn indices and hash-consing means the same
// NodeID.
package reference

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/papercomputeco/lamdag/pkg/term"
)

var (
	// ErrStepLimit is returned when normalization did not finish in time.
	ErrStepLimit = errors.New("reference step limit reached")

	// ErrCyclic is returned by FromGraph for knotted graphs, which have no
	// finite tree.
	ErrCyclic = errors.New("graph is cyclic")

	// ErrTooLarge is returned by FromGraph when the tree would exceed the
	// requested size.
	ErrTooLarge = errors.New("tree too large")
)

// Term is a lambda term as a tree.
type Term struct {
	Kind  term.Kind
	Index int
	Body  *Term
	Fun   *Term
	Arg   *Term
}

// Var returns the variable with index i.
func Var(i int) *Term {
	return &Term{Kind: term.KindVariable, Index: i}
}

// Lam returns an abstraction over body.
func Lam(body *Term) *Term {
	return &Term{Kind: term.KindAbstraction, Body: body}
}

// App returns the application of f to a.
func App(f, a *Term) *Term {
	return &Term{Kind: term.KindApplication, Fun: f, Arg: a}
}

func (t *Term) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Term) write(b *strings.Builder) {
	switch t.Kind {
	case term.KindVariable:
		b.WriteString(strconv.Itoa(t.Index))
	case term.KindAbstraction:
		b.WriteString(`(\ `)
		t.Body.write(b)
		b.WriteByte(')')
	default:
		b.WriteByte('(')
		t.Fun.write(b)
		b.WriteByte(' ')
		t.Arg.write(b)
		b.WriteByte(')')
	}
}

// Size counts the nodes of the tree.
func (t *Term) Size() int {
	switch t.Kind {
	case term.KindAbstraction:
		return 1 + t.Body.Size()
	case term.KindApplication:
		return 1 + t.Fun.Size() + t.Arg.Size()
	default:
		return 1
	}
}

// shift adds d to every index at or above cutoff.
func shift(t *Term, d, cutoff int) *Term {
	switch t.Kind {
	case term.KindVariable:
		if t.Index >= cutoff {
			return Var(t.Index + d)
		}
		return t
	case term.KindAbstraction:
		return Lam(shift(t.Body, d, cutoff+1))
	default:
		return App(shift(t.Fun, d, cutoff), shift(t.Arg, d, cutoff))
	}
}

// subst replaces index j with s.
func subst(t *Term, j int, s *Term) *Term {
	switch t.Kind {
	case term.KindVariable:
		if t.Index == j {
			return s
		}
		return t
	case term.KindAbstraction:
		return Lam(subst(t.Body, j+1, shift(s, 1, 0)))
	default:
		return App(subst(t.Fun, j, s), subst(t.Arg, j, s))
	}
}

// beta contracts (\. body) arg.
func beta(body, arg *Term) *Term {
	return shift(subst(body, 0, shift(arg, 1, 0)), -1, 0)
}

// Step performs one leftmost-outermost reduction. It reports false when t is
// in normal form.
func Step(t *Term) (*Term, bool) {
	switch t.Kind {
	case term.KindAbstraction:
		if body, ok := Step(t.Body); ok {
			return Lam(body), true
		}
		return t, false

	case term.KindApplication:
		if t.Fun.Kind == term.KindAbstraction {
			return beta(t.Fun.Body, t.Arg), true
		}
		if f, ok := Step(t.Fun); ok {
			return App(f, t.Arg), true
		}
		if a, ok := Step(t.Arg); ok {
			return App(t.Fun, a), true
		}
		return t, false

	default:
		return t, false
	}
}

// Normalize reduces t to normal form in at most maxSteps steps and returns the
// number of steps taken. Normal order finds a normal form whenever one exists.
func Normalize(t *Term, maxSteps int) (*Term, int, error) {
	for steps := 0; ; steps++ {
		next, ok := Step(t)
		if !ok {
			return t, steps, nil
		}
		if steps >= maxSteps {
			return t, steps, fmt.Errorf("after %d steps: %w", steps, ErrStepLimit)
		}
		t = next
	}
}

// FromGraph unfolds the DAG rooted at root into a tree of at most limit
// nodes. A limit of zero or less is unbounded.
func FromGraph(nodes *term.Store, root term.NodeID, limit int) (*Term, error) {
	onPath := make(map[term.NodeID]bool)
	size := 0

	var unfold func(id term.NodeID) (*Term, error)
	unfold = func(id term.NodeID) (*Term, error) {
		if onPath[id] {
			return nil, fmt.Errorf("node %d: %w", id, ErrCyclic)
		}
		size++
		if limit > 0 && size > limit {
			return nil, fmt.Errorf("more than %d nodes: %w", limit, ErrTooLarge)
		}

		n, err := nodes.Get(id)
		if err != nil {
			return nil, err
		}

		onPath[id] = true
		defer delete(onPath, id)

		switch n.Kind {
		case term.KindVariable:
			return Var(n.Index), nil
		case term.KindAbstraction:
			body, err := unfold(n.Body)
			if err != nil {
				return nil, err
			}
			return Lam(body), nil
		default:
			f, err := unfold(n.Fun)
			if err != nil {
				return nil, err
			}
			a, err := unfold(n.Arg)
			if err != nil {
				return nil, err
			}
			return App(f, a), nil
		}
	}

	return unfold(root)
}

// ToGraph interns t into nodes. Equal subtrees collapse to one node.
func ToGraph(nodes *term.Store, t *Term) (term.NodeID, error) {
	switch t.Kind {
	case term.KindVariable:
		return nodes.Intern(term.Var(t.Index))
	case term.KindAbstraction:
		body, err := ToGraph(nodes, t.Body)
		if err != nil {
			return term.NoNode, err
		}
		return nodes.Intern(term.Lam(body))
	default:
		f, err := ToGraph(nodes, t.Fun)
		if err != nil {
			return term.NoNode, err
		}
		a, err := ToGraph(nodes, t.Arg)
		if err != nil {
			return term.NoNode, err
		}
		return nodes.Intern(term.App(f, a))
	}
}
