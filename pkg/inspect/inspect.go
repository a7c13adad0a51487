// Package inspect reads reduction progress without causing any.
//
// Every query here only reads the memo table and the stores, so it can be
// called at any time, including from another goroutine while a run is in
// flight.
package inspect

import (
	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/memo"
	"github.com/papercomputeco/lamdag/pkg/syntax"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// Source is what an Inspector reads. *reduce.Engine satisfies it.
type Source interface {
	Nodes() *term.Store
	Envs() *env.Store
	Table() *memo.Table
}

// Report is the state of one pair.
type Report struct {
	State  memo.State  `json:"state"`
	Result memo.Result `json:"result"`
}

// Inspector answers peek queries over a Source.
type Inspector struct {
	src Source
}

// New returns an Inspector over src.
func New(src Source) *Inspector {
	return &Inspector{src: src}
}

// Peek reports the head-normal-form state of node under e.
func (i *Inspector) Peek(node term.NodeID, e env.ID) Report {
	return report(i.src.Table().Peek(memo.Key{Mode: memo.Head, Node: node, Env: e}))
}

// PeekDeep reports the normal-form state of node under e at binder depth.
func (i *Inspector) PeekDeep(node term.NodeID, e env.ID, depth int) Report {
	return report(i.src.Table().Peek(memo.Key{Mode: memo.Deep, Node: node, Env: e, Depth: depth}))
}

// Best returns the best-known form of node under e: its normal form if one
// is committed, else its head normal form, else the pair itself.
func (i *Inspector) Best(node term.NodeID, e env.ID) (term.NodeID, env.ID) {
	table := i.src.Table()

	deep := table.Peek(memo.Key{Mode: memo.Deep, Node: node, Env: e})
	if deep.State == memo.Done {
		return deep.Result.Node, deep.Result.Env
	}

	head := table.Peek(memo.Key{Mode: memo.Head, Node: node, Env: e})
	if head.State == memo.Done {
		return head.Result.Node, head.Result.Env
	}
	return node, e
}

// Printer returns a printer that renders best-known forms.
func (i *Inspector) Printer(freeNames []string) *syntax.Printer {
	return &syntax.Printer{
		Nodes:     i.src.Nodes(),
		Envs:      i.src.Envs(),
		FreeNames: freeNames,
		Resolve:   i.Best,
	}
}

// Render prints the best-known form of node under e, substituting committed
// results wherever the printer reaches a reduced pair.
func (i *Inspector) Render(node term.NodeID, e env.ID, freeNames []string) string {
	return i.Printer(freeNames).Render(node, e)
}

// Progress counts the entries of each state.
func (i *Inspector) Progress() map[memo.State]int {
	counts := make(map[memo.State]int)
	for _, e := range i.src.Table().Snapshot() {
		counts[e.State]++
	}
	return counts
}

func report(e memo.Entry) Report {
	return Report{State: e.State, Result: e.Result}
}
