package reduce

import (
	"errors"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/memo"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// nf normalizes node under e fully and quotes the result as a closed-over
// node under the empty environment. depth is the number of binders already
// normalized under; binder variables are quoted relative to it.
func (r *run) nf(node term.NodeID, e env.ID, depth int) (term.NodeID, error) {
	key := memo.Key{Mode: memo.Deep, Node: node, Env: e, Depth: depth}

	res, hit, finish, err := r.reserve(key)
	if err != nil {
		return term.NoNode, err
	}
	if hit {
		return res.Node, nil
	}

	id, err := r.nfStep(node, e, depth)
	finish(memo.Result{Node: id, Env: env.Empty}, err)
	return id, err
}

func (r *run) nfStep(node term.NodeID, e env.ID, depth int) (term.NodeID, error) {
	h, err := r.whnf(node, e)
	if err != nil {
		return term.NoNode, err
	}

	n, err := r.nodes.Get(h.Node)
	if err != nil {
		return term.NoNode, err
	}

	switch n.Kind {
	case term.KindAbstraction:
		bound, err := r.envs.Bind(h.Env, depth)
		if err != nil {
			return term.NoNode, err
		}
		body, err := r.nf(n.Body, bound, depth+1)
		if err != nil {
			return term.NoNode, err
		}
		return r.nodes.Intern(term.Lam(body))

	case term.KindVariable:
		return r.quoteVar(n.Index, h.Env, depth)

	default:
		f, err := r.nf(n.Fun, h.Env, depth)
		if err != nil {
			return term.NoNode, err
		}
		a, err := r.nf(n.Arg, h.Env, depth)
		if err != nil {
			return term.NoNode, err
		}
		return r.nodes.Intern(term.App(f, a))
	}
}

// quoteVar turns a head-normal variable into a de Bruijn index valid under
// depth binders.
func (r *run) quoteVar(index int, e env.ID, depth int) (term.NodeID, error) {
	b, _, err := r.envs.Lookup(e, index)

	var unbound env.UnboundError
	switch {
	case errors.As(err, &unbound):
		if !r.opts.allowFree {
			return term.NoNode, err
		}
		return r.nodes.Intern(term.Var(unbound.Free() + depth))
	case err != nil:
		return term.NoNode, err
	case b.Free:
		return r.nodes.Intern(term.Var(depth - 1 - b.Level))
	default:
		return r.nf(b.Node, b.Env, depth)
	}
}
