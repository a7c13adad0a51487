// Package syntax reads and writes lambda terms.
//
// It is the collaborator that builds graphs for the engine: source text is
// parsed into a named Expr tree, and Build interns that tree bottom-up into a
// term.Store, converting names to de Bruijn indices. The Printer goes the
// other way, rendering a (node, environment) pair by following environment
// links the same way reduction does.
package syntax

import (
	"fmt"
	"strings"
)

// Expr is a parsed term with named variables.
type Expr interface {
	fmt.Stringer
	expr()
}

// Var is a reference to a binder, a definition, or a free name.
type Var struct {
	Name string
}

// Lam binds Param in Body.
type Lam struct {
	Param string
	Body  Expr
}

// App applies Fun to Arg.
type App struct {
	Fun Expr
	Arg Expr
}

// Let binds Name to Value in Body. It means (λName. Body) Value.
type Let struct {
	Name  string
	Value Expr
	Body  Expr
}

func (Var) expr() {}
func (Lam) expr() {}
func (App) expr() {}
func (Let) expr() {}

func (v Var) String() string {
	return v.Name
}

func (l Lam) String() string {
	params := []string{l.Param}
	body := l.Body
	for {
		inner, ok := body.(Lam)
		if !ok {
			break
		}
		params = append(params, inner.Param)
		body = inner.Body
	}
	return `\` + strings.Join(params, " ") + ". " + body.String()
}

func (a App) String() string {
	var b strings.Builder

	switch a.Fun.(type) {
	case Lam, Let:
		b.WriteString("(" + a.Fun.String() + ")")
	default:
		b.WriteString(a.Fun.String())
	}

	b.WriteByte(' ')

	switch a.Arg.(type) {
	case Var:
		b.WriteString(a.Arg.String())
	default:
		b.WriteString("(" + a.Arg.String() + ")")
	}
	return b.String()
}

func (l Let) String() string {
	return "let " + l.Name + " = " + l.Value.String() + " in " + l.Body.String()
}

// Definition is a named top-level term of a program.
type Definition struct {
	Name  string
	Value Expr
}

// Program is a list of definitions followed by the term to reduce.
type Program struct {
	Definitions []Definition
	Main        Expr
}

// Desugar expands lets into applications of abstractions.
func Desugar(e Expr) Expr {
	switch e := e.(type) {
	case Lam:
		return Lam{Param: e.Param, Body: Desugar(e.Body)}
	case App:
		return App{Fun: Desugar(e.Fun), Arg: Desugar(e.Arg)}
	case Let:
		return App{
			Fun: Lam{Param: e.Name, Body: Desugar(e.Body)},
			Arg: Desugar(e.Value),
		}
	default:
		return e
	}
}
