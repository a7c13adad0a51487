package syntax

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// DefaultMaxNodes is the number of nodes a Printer renders before eliding.
const DefaultMaxNodes = 10_000

// Ellipsis replaces whatever a Printer did not render.
const Ellipsis = "…"

// Printer renders (node, environment) pairs. A variable bound to a thunk is
// rendered as the thunk's value in the thunk's own environment, so the output
// is the term as if every substitution had been performed.
type Printer struct {
	Nodes *term.Store

	// Envs may be nil when only closed-over nodes under env.Empty are printed.
	Envs *env.Store

	// FreeNames names the free variables of the root, index 0 first.
	FreeNames []string

	// DeBruijn prints indices instead of generated names.
	DeBruijn bool

	// MaxNodes bounds the output so that knotted terms stay finite. Zero
	// means DefaultMaxNodes.
	MaxNodes int

	// Resolve, when set, replaces every closed-over pair before it is
	// rendered. The inspector uses it to print best-known reduced forms.
	Resolve func(term.NodeID, env.ID) (term.NodeID, env.ID)
}

// Render prints node under e.
func (p *Printer) Render(node term.NodeID, e env.ID) string {
	max := p.MaxNodes
	if max <= 0 {
		max = DefaultMaxNodes
	}

	w := &walker{p: p, left: max}
	w.render(node, e, nil, posTop)
	return w.b.String()
}

// RenderNode prints a node under the empty environment.
func (p *Printer) RenderNode(node term.NodeID) string {
	return p.Render(node, env.Empty)
}

type walker struct {
	p    *Printer
	b    strings.Builder
	left int

	// names holds the name of every binder printed so far, outermost first
	names []string
}

// position is where a term is printed, which decides its parentheses.
type position uint8

const (
	posTop position = iota
	posHead
	posArg
)

// render writes node under e. local holds the levels of the printed binders
// that e does not know about, innermost last.
func (w *walker) render(node term.NodeID, e env.ID, local []int, pos position) {
	if w.left <= 0 {
		w.b.WriteString(Ellipsis)
		return
	}
	w.left--

	// A pair is only meaningful on its own when none of the printed binders
	// are in scope; below them, node's low indices belong to the printer.
	if w.p.Resolve != nil && len(local) == 0 {
		node, e = w.p.Resolve(node, e)
	}

	n, err := w.p.Nodes.Get(node)
	if err != nil {
		fmt.Fprintf(&w.b, "<invalid %d>", node)
		return
	}

	switch n.Kind {
	case term.KindVariable:
		w.variable(n.Index, e, local, pos)

	case term.KindAbstraction:
		if pos != posTop {
			w.b.WriteByte('(')
		}
		level := len(w.names)
		name := w.fresh()
		w.names = append(w.names, name)
		if w.p.DeBruijn {
			w.b.WriteString(`\. `)
		} else {
			w.b.WriteString(`\` + name + ". ")
		}
		w.render(n.Body, e, append(local[:len(local):len(local)], level), posTop)
		w.names = w.names[:level]
		if pos != posTop {
			w.b.WriteByte(')')
		}

	default:
		if pos == posArg {
			w.b.WriteByte('(')
		}
		w.render(n.Fun, e, local, posHead)
		w.b.WriteByte(' ')
		w.render(n.Arg, e, local, posArg)
		if pos == posArg {
			w.b.WriteByte(')')
		}
	}
}

func (w *walker) variable(index int, e env.ID, local []int, pos position) {
	if index < len(local) {
		w.bound(local[len(local)-1-index])
		return
	}
	index -= len(local)

	if w.p.Envs == nil || e == env.Empty {
		w.freeVar(index)
		return
	}

	b, _, err := w.p.Envs.Lookup(e, index)
	switch {
	case err != nil:
		w.freeVar(index - w.p.Envs.Depth(e))
	case b.Free:
		w.bound(b.Level)
	default:
		// The thunk's value is closed over its own environment, so none of
		// the binders printed so far are visible to it.
		w.render(b.Node, b.Env, nil, pos)
	}
}

// bound writes the variable of the printed binder at level.
func (w *walker) bound(level int) {
	if level < 0 || level >= len(w.names) {
		w.b.WriteString("?" + strconv.Itoa(level))
		return
	}
	if w.p.DeBruijn {
		w.b.WriteString(strconv.Itoa(len(w.names) - 1 - level))
		return
	}
	w.b.WriteString(w.names[level])
}

// freeVar writes the free variable with the given index from the top.
func (w *walker) freeVar(index int) {
	if w.p.DeBruijn {
		w.b.WriteString(strconv.Itoa(index + len(w.names)))
		return
	}
	if index >= 0 && index < len(w.p.FreeNames) {
		w.b.WriteString(w.p.FreeNames[index])
		return
	}
	w.b.WriteString("free" + strconv.Itoa(index))
}

// fresh names the next binder. Generated names never collide with free names
// or with each other, so no capture can appear in the output.
func (w *walker) fresh() string {
	for i := len(w.names); ; i++ {
		name := binderName(i)
		if !slices.Contains(w.p.FreeNames, name) && !slices.Contains(w.names, name) {
			return name
		}
	}
}

func binderName(i int) string {
	const letters = "xyzwvutsrqponmlkjihgfedcba"
	name := string(letters[i%len(letters)])
	if i >= len(letters) {
		name += strconv.Itoa(i / len(letters))
	}
	return name
}
