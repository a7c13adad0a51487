package reduce

import (
	"context"
	"errors"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/memo"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// run is the state of one Engine.Run. It is owned by a single goroutine.
type run struct {
	ctx    context.Context
	nodes  *term.Store
	envs   *env.Store
	table  *memo.Table
	owner  memo.Owner
	budget *budget
	memo   memo.Options
	opts   options
	depth  int
}

// reserve acquires key or returns its cached result. The returned finish
// function must be called with the outcome of an acquired key.
func (r *run) reserve(key memo.Key) (memo.Result, bool, func(memo.Result, error), error) {
	res, hit, err := r.table.LookupOrReserve(r.ctx, key, r.owner, r.memo)
	if err != nil || hit {
		return res, hit, nil, err
	}

	r.depth++
	finish := func(res memo.Result, err error) {
		r.depth--
		if err != nil {
			r.table.Abort(key, r.owner, err)
			return
		}
		r.table.Commit(key, r.owner, res)
	}

	if r.opts.maxDepth > 0 && r.depth > r.opts.maxDepth {
		finish(memo.Result{}, ErrDepthExceeded)
		return memo.Result{}, false, nil, ErrDepthExceeded
	}
	return memo.Result{}, false, finish, nil
}

// whnf reduces node under e to weak head normal form: an abstraction, a
// variable, or a stuck application.
func (r *run) whnf(node term.NodeID, e env.ID) (memo.Result, error) {
	key := memo.Key{Mode: memo.Head, Node: node, Env: e}

	res, hit, finish, err := r.reserve(key)
	if err != nil || hit {
		return res, err
	}

	res, err = r.whnfStep(node, e)
	finish(res, err)
	return res, err
}

func (r *run) whnfStep(node term.NodeID, e env.ID) (memo.Result, error) {
	n, err := r.nodes.Get(node)
	if err != nil {
		return memo.Result{}, err
	}

	switch n.Kind {
	case term.KindVariable:
		b, frame, err := r.envs.Lookup(e, n.Index)
		if err != nil {
			return r.free(err)
		}
		if b.Free {
			return r.neutral(frame)
		}
		// The value is reduced in its own captured environment.
		return r.whnf(b.Node, b.Env)

	case term.KindAbstraction:
		return memo.Result{Node: node, Env: e}, nil

	default:
		f, err := r.whnf(n.Fun, e)
		if err != nil {
			return memo.Result{}, err
		}
		arg, argEnv, err := r.thunk(n.Arg, e)
		if err != nil {
			return memo.Result{}, err
		}

		fn, err := r.nodes.Get(f.Node)
		if err != nil {
			return memo.Result{}, err
		}
		if fn.Kind == term.KindAbstraction {
			ext, err := r.envs.Extend(f.Env, arg, argEnv)
			if err != nil {
				return memo.Result{}, err
			}
			return r.whnf(fn.Body, ext)
		}
		return r.stuck(f, arg, argEnv)
	}
}

// thunk returns the pair an argument is passed as. A variable already bound
// to a thunk passes that thunk on, so no chains of indirections build up and
// a self-application revisits the same pair.
func (r *run) thunk(arg term.NodeID, e env.ID) (term.NodeID, env.ID, error) {
	n, err := r.nodes.Get(arg)
	if err != nil {
		return term.NoNode, env.Empty, err
	}
	if n.Kind != term.KindVariable {
		return arg, e, nil
	}

	b, frame, err := r.envs.Lookup(e, n.Index)
	var unbound env.UnboundError
	switch {
	case errors.As(err, &unbound):
		if !r.opts.allowFree {
			// Reported only if the argument is ever forced.
			return arg, e, nil
		}
		v, err := r.nodes.Intern(term.Var(unbound.Free()))
		return v, env.Empty, err
	case err != nil:
		return term.NoNode, env.Empty, err
	case b.Free:
		v, err := r.nodes.Intern(term.Var(0))
		return v, frame, err
	default:
		return b.Node, b.Env, nil
	}
}

// free turns an unbound lookup into the free variable of the whole term.
func (r *run) free(err error) (memo.Result, error) {
	var unbound env.UnboundError
	if !errors.As(err, &unbound) || !r.opts.allowFree {
		return memo.Result{}, err
	}
	v, err := r.nodes.Intern(term.Var(unbound.Free()))
	if err != nil {
		return memo.Result{}, err
	}
	return memo.Result{Node: v, Env: env.Empty}, nil
}

// neutral is the variable of a binder deep mode is normalizing under.
func (r *run) neutral(frame env.ID) (memo.Result, error) {
	v, err := r.nodes.Intern(term.Var(0))
	if err != nil {
		return memo.Result{}, err
	}
	return memo.Result{Node: v, Env: frame}, nil
}

// stuck builds the application of a non-abstraction head to its argument.
// Both sides must end up under one environment: when they differ, the result
// is the shared node (#1 #0) under a frame pair binding the head and the
// argument.
func (r *run) stuck(f memo.Result, arg term.NodeID, argEnv env.ID) (memo.Result, error) {
	if f.Env == argEnv {
		app, err := r.nodes.Intern(term.App(f.Node, arg))
		if err != nil {
			return memo.Result{}, err
		}
		return memo.Result{Node: app, Env: f.Env}, nil
	}

	b := term.NewBuilder(r.nodes)
	app := b.App(b.Var(1), b.Var(0))
	if err := b.Err(); err != nil {
		return memo.Result{}, err
	}

	outer, err := r.envs.Extend(env.Empty, f.Node, f.Env)
	if err != nil {
		return memo.Result{}, err
	}
	inner, err := r.envs.Extend(outer, arg, argEnv)
	if err != nil {
		return memo.Result{}, err
	}
	return memo.Result{Node: app, Env: inner}, nil
}
