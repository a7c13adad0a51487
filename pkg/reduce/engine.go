// Package reduce is the bottom-up scheduler.
//
// An Engine reduces (node, environment) pairs of a shared term.Store. Every
// pair is reduced at most once per memo table: its children are reduced
// first, the result is committed, and every other parent that reaches the
// same pair reuses it. A beta-step never rewrites the graph, it only extends
// an environment.
package reduce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/memo"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// Request is one reduction run.
type Request struct {
	Root term.NodeID
	Env  env.ID

	// Budget is the number of steps the run may take. Zero or less is
	// unbounded.
	Budget int

	Mode Mode
}

// Outcome is the result of a run. When Status is not Done, Node and Env are
// the requested pair itself, still the best form the run can vouch for;
// inspect.Inspector reports anything better found along the way.
type Outcome struct {
	RunID  string
	Node   term.NodeID
	Env    env.ID
	Steps  int
	Status Status
}

// Stats summarizes the engine.
type Stats struct {
	Nodes int        `json:"nodes"`
	Envs  int        `json:"envs"`
	Runs  uint64     `json:"runs"`
	Steps uint64     `json:"steps"`
	Memo  memo.Stats `json:"memo"`
}

// Engine reduces terms of one node store. It is safe for concurrent use:
// concurrent runs share the memo table, and a run that needs a pair another
// run is reducing waits for it.
type Engine struct {
	nodes *term.Store
	opts  options
	log   *slog.Logger

	// mu is held shared by runs and exclusively by Reset and Collect
	mu    sync.RWMutex
	envs  *env.Store
	table *memo.Table

	owners atomic.Uint64
	runs   atomic.Uint64
	steps  atomic.Uint64
}

// NewEngine creates an engine over nodes with a fresh memo table.
func NewEngine(nodes *term.Store, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.Component(o.logger, "engine")

	return &Engine{
		nodes: nodes,
		opts:  o,
		log:   log,
		envs:  env.NewStore(),
		table: memo.NewTable(),
	}
}

// Nodes returns the node store.
func (e *Engine) Nodes() *term.Store {
	return e.nodes
}

// Envs returns the environment store of the current memo generation.
func (e *Engine) Envs() *env.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.envs
}

// Table returns the current memo table.
func (e *Engine) Table() *memo.Table {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table
}

// Mode returns the engine's default mode.
func (e *Engine) Mode() Mode {
	return e.opts.mode
}

// ReduceToNormalForm reduces root under the empty environment in the
// engine's default mode.
func (e *Engine) ReduceToNormalForm(ctx context.Context, root term.NodeID, budget int) (Outcome, error) {
	return e.Run(ctx, Request{Root: root, Env: env.Empty, Budget: budget, Mode: e.opts.mode})
}

// Run reduces one pair. Committed entries outlive the run, so running the
// same request again with a fresh budget resumes where it stopped.
func (e *Engine) Run(ctx context.Context, req Request) (Outcome, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r := &run{
		ctx:    ctx,
		nodes:  e.nodes,
		envs:   e.envs,
		table:  e.table,
		owner:  memo.Owner(e.owners.Add(1)),
		budget: &budget{limit: req.Budget},
		opts:   e.opts,
	}
	r.memo = memo.Options{DetectCycles: e.opts.detectCycles, Budget: r.budget}

	out := Outcome{
		RunID: uuid.NewString(),
		Node:  req.Root,
		Env:   req.Env,
	}

	e.log.Debug("reduction started",
		"run_id", out.RunID,
		"root", req.Root,
		"env", req.Env,
		"mode", req.Mode.String(),
		"budget", req.Budget,
	)

	var err error
	if !e.envs.Contains(req.Env) {
		err = fmt.Errorf("run %s: environment %d: %w", out.RunID, req.Env, env.ErrInvalidEnv)
	}

	switch {
	case err != nil:
	case req.Mode == Deep:
		var nf term.NodeID
		nf, err = r.nf(req.Root, req.Env, 0)
		if err == nil {
			out.Node, out.Env = nf, env.Empty
		}
	default:
		var res memo.Result
		res, err = r.whnf(req.Root, req.Env)
		if err == nil {
			out.Node, out.Env = res.Node, res.Env
		}
	}

	out.Steps = r.budget.used
	out.Status = StatusOf(err)

	e.runs.Add(1)
	e.steps.Add(uint64(out.Steps))

	if out.Status == DivergentRedex {
		e.log.Warn("divergent redex",
			"run_id", out.RunID,
			"root", req.Root,
			"steps", out.Steps,
		)
	}
	e.log.Debug("reduction finished",
		"run_id", out.RunID,
		"status", out.Status.String(),
		"steps", out.Steps,
		"node", out.Node,
		"env", out.Env,
	)

	return out, err
}

// Stats returns store sizes, run totals and memo counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Nodes: e.nodes.Len(),
		Envs:  e.envs.Len(),
		Runs:  e.runs.Load(),
		Steps: e.steps.Load(),
		Memo:  e.table.Stats(),
	}
}

// Reset discards the memo table and every environment so that a different
// root can be reduced from scratch. Environment IDs from earlier outcomes are
// meaningless afterwards.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.envs = env.NewStore()
	e.table = memo.NewTable()
}

// Collect reclaims every node not reachable from roots, the memo table or a
// bound environment, and returns how many were reclaimed.
func (e *Engine) Collect(roots ...term.NodeID) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	live := make([]term.NodeID, 0, len(roots))
	live = append(live, roots...)
	live = append(live, e.table.Nodes()...)
	live = append(live, e.envs.Nodes()...)

	n := e.nodes.Sweep(live...)
	e.log.Debug("collected nodes", "reclaimed", n, "live", e.nodes.Len())
	return n
}

type budget struct {
	limit int
	used  int
}

func (b *budget) Take() bool {
	if b.limit > 0 && b.used >= b.limit {
		return false
	}
	b.used++
	return true
}
