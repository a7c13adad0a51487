package syntax

import (
	"errors"
	"fmt"
	"slices"

	"github.com/papercomputeco/lamdag/pkg/term"
)

// ErrOpenDefinition is returned when a program definition mentions a name
// that is neither bound inside it, an earlier definition, nor itself.
var ErrOpenDefinition = errors.New("definition has free variables")

// Build interns e into store and returns its root. Free names get de Bruijn
// indices relative to the top of the term in order of first appearance;
// they are returned in that order.
func Build(store *term.Store, e Expr) (term.NodeID, []string, error) {
	b := &builder{store: store, globals: map[string]term.NodeID{}}
	root, err := b.build(Desugar(e), nil)
	if err != nil {
		return term.NoNode, nil, err
	}
	return root, b.free, nil
}

// Build interns the program into store. Definitions are closed terms shared
// by every use: each one is interned once and referenced by identity, so a
// definition used many times costs one node. A definition that mentions its
// own name becomes a back-reference to itself.
func (p *Program) Build(store *term.Store) (term.NodeID, []string, error) {
	b := &builder{store: store, globals: map[string]term.NodeID{}}

	for _, d := range p.Definitions {
		id, err := b.define(d)
		if err != nil {
			return term.NoNode, nil, fmt.Errorf("definition %s: %w", d.Name, err)
		}
		b.globals[d.Name] = id
	}

	root, err := b.build(Desugar(p.Main), nil)
	if err != nil {
		return term.NoNode, nil, err
	}
	return root, b.free, nil
}

type builder struct {
	store   *term.Store
	globals map[string]term.NodeID

	// closed forbids free names while building a definition
	closed bool
	free   []string
}

func (b *builder) define(d Definition) (term.NodeID, error) {
	value := Desugar(d.Value)
	b.closed = true
	defer func() { b.closed = false }()

	if !mentions(value, d.Name, nil) {
		return b.build(value, nil)
	}

	prev, shadowed := b.globals[d.Name]
	defer func() {
		if shadowed {
			b.globals[d.Name] = prev
		} else {
			delete(b.globals, d.Name)
		}
	}()

	return b.store.Knot(func(self term.NodeID) (term.Node, error) {
		b.globals[d.Name] = self
		id, err := b.build(value, nil)
		if err != nil {
			return term.Node{}, err
		}
		if id == self {
			return term.Node{}, fmt.Errorf("%s is defined as itself", d.Name)
		}
		return b.store.Get(id)
	})
}

// build converts e under scope, the binder names innermost last.
func (b *builder) build(e Expr, scope []string) (term.NodeID, error) {
	switch e := e.(type) {
	case Var:
		if i := slices.Index(reversed(scope), e.Name); i >= 0 {
			return b.store.Intern(term.Var(i))
		}
		if id, ok := b.globals[e.Name]; ok {
			return id, nil
		}
		if b.closed {
			return term.NoNode, fmt.Errorf("%w: %s", ErrOpenDefinition, e.Name)
		}
		f := slices.Index(b.free, e.Name)
		if f < 0 {
			f = len(b.free)
			b.free = append(b.free, e.Name)
		}
		return b.store.Intern(term.Var(len(scope) + f))

	case Lam:
		body, err := b.build(e.Body, append(scope[:len(scope):len(scope)], e.Param))
		if err != nil {
			return term.NoNode, err
		}
		return b.store.Intern(term.Lam(body))

	case App:
		f, err := b.build(e.Fun, scope)
		if err != nil {
			return term.NoNode, err
		}
		a, err := b.build(e.Arg, scope)
		if err != nil {
			return term.NoNode, err
		}
		return b.store.Intern(term.App(f, a))

	case Let:
		return b.build(Desugar(e), scope)

	default:
		return term.NoNode, fmt.Errorf("unknown expression %T", e)
	}
}

// mentions reports whether name occurs free in e.
func mentions(e Expr, name string, scope []string) bool {
	switch e := e.(type) {
	case Var:
		return e.Name == name && !slices.Contains(scope, name)
	case Lam:
		return mentions(e.Body, name, append(scope[:len(scope):len(scope)], e.Param))
	case App:
		return mentions(e.Fun, name, scope) || mentions(e.Arg, name, scope)
	case Let:
		return mentions(Desugar(e), name, scope)
	default:
		return false
	}
}

func reversed(s []string) []string {
	out := slices.Clone(s)
	slices.Reverse(out)
	return out
}
