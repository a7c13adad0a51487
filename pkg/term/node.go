// Package term is the hash-consed node store for lambda terms.
//
// Terms are stored as a DAG in an arena: every node is identified by its
// NodeID (an index into the arena) and two structurally equal descriptions,
// meaning same kind and same children by identity, always intern to the same
// NodeID. Variables use de Bruijn indices so there are no names to capture.
package term

import "fmt"

// NodeID is the stable identity of a node inside a Store.
type NodeID int32

// NoNode is the zero reference; it never names a stored node.
const NoNode NodeID = -1

// Kind is the variant of a node.
type Kind uint8

const (
	// KindInvalid is the zero Kind and never appears on a stored node.
	KindInvalid Kind = iota

	// KindVariable is a de Bruijn indexed variable.
	KindVariable

	// KindAbstraction owns exactly one body.
	KindAbstraction

	// KindApplication owns a function and an argument.
	KindApplication

	// kindPending marks an identity reserved by Knot whose description is not
	// yet defined.
	kindPending

	// kindSwept marks a reclaimed slot.
	kindSwept
)

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindAbstraction:
		return "abstraction"
	case KindApplication:
		return "application"
	case kindPending:
		return "pending"
	case kindSwept:
		return "swept"
	default:
		return "invalid"
	}
}

// Node is the description of a term node. It is comparable and is the
// hash-consing key: unused child fields are always NoNode and Index is only
// meaningful for variables.
type Node struct {
	Kind  Kind
	Index int
	Body  NodeID
	Fun   NodeID
	Arg   NodeID
}

// Var describes the variable with de Bruijn index i.
func Var(i int) Node {
	return Node{Kind: KindVariable, Index: i, Body: NoNode, Fun: NoNode, Arg: NoNode}
}

// Lam describes an abstraction over body.
func Lam(body NodeID) Node {
	return Node{Kind: KindAbstraction, Body: body, Fun: NoNode, Arg: NoNode}
}

// App describes the application of f to a.
func App(f, a NodeID) Node {
	return Node{Kind: KindApplication, Body: NoNode, Fun: f, Arg: a}
}

// Children returns the child identities of the description in order.
func (n Node) Children() []NodeID {
	switch n.Kind {
	case KindAbstraction:
		return []NodeID{n.Body}
	case KindApplication:
		return []NodeID{n.Fun, n.Arg}
	default:
		return nil
	}
}

func (n Node) String() string {
	switch n.Kind {
	case KindVariable:
		return fmt.Sprintf("#%d", n.Index)
	case KindAbstraction:
		return fmt.Sprintf("λ.%d", n.Body)
	case KindApplication:
		return fmt.Sprintf("(%d %d)", n.Fun, n.Arg)
	default:
		return n.Kind.String()
	}
}
