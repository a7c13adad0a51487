// Package session ties one engine to its worker pool, its term storage and
// the names of the terms loaded into it. The HTTP API, the MCP tools and the
// CLI all drive reductions through a Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/inspect"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/storage"
	"github.com/papercomputeco/lamdag/pkg/syntax"
	"github.com/papercomputeco/lamdag/pkg/term"
	"github.com/papercomputeco/lamdag/pkg/worker"
)

// ErrNoTerm is returned by Reduce when neither a source nor a name is given.
var ErrNoTerm = errors.New("either source or name is required")

// Term is a term built into the session's node store.
type Term struct {
	Name      string      `json:"name,omitempty"`
	Root      term.NodeID `json:"root"`
	FreeNames []string    `json:"free_names,omitempty"`
}

// Config configures a Session.
type Config struct {
	Engine *reduce.Engine

	// Pool runs reductions. Without one, reductions run on the caller's
	// goroutine.
	Pool *worker.Pool

	// Storer persists named terms. Without one, Save and Load fail.
	Storer storage.Driver

	// Budget is used when a request asks for none.
	Budget int

	Logger *slog.Logger
}

// Session is safe for concurrent use.
type Session struct {
	config Config
	insp   *inspect.Inspector
	log    *slog.Logger

	mu    sync.RWMutex
	terms map[string]Term

	// free holds the free names of every root built so far
	free map[term.NodeID][]string
}

// New creates a session.
func New(c Config) (*Session, error) {
	if c.Engine == nil {
		return nil, errors.New("session needs an engine")
	}
	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		config: c,
		insp:   inspect.New(c.Engine),
		log:    log,
		terms:  make(map[string]Term),
		free:   make(map[term.NodeID][]string),
	}, nil
}

// Engine returns the session's engine.
func (s *Session) Engine() *reduce.Engine {
	return s.config.Engine
}

// Inspector returns an inspector over the session's engine.
func (s *Session) Inspector() *inspect.Inspector {
	return s.insp
}

// Compile parses src, a program in lambda syntax or, with postfix, a single
// postfix term, and builds it into the node store.
func (s *Session) Compile(src string, postfix bool) (Term, error) {
	t, err := s.compile(src, postfix)
	if err != nil {
		return Term{}, err
	}
	s.remember(t)
	return t, nil
}

func (s *Session) compile(src string, postfix bool) (Term, error) {
	nodes := s.config.Engine.Nodes()

	if postfix {
		e, err := syntax.ParsePostfix(src)
		if err != nil {
			return Term{}, err
		}
		root, free, err := syntax.Build(nodes, e)
		if err != nil {
			return Term{}, err
		}
		return Term{Root: root, FreeNames: free}, nil
	}

	prog, err := syntax.ParseProgram(src)
	if err != nil {
		return Term{}, err
	}
	root, free, err := prog.Build(nodes)
	if err != nil {
		return Term{}, err
	}
	return Term{Root: root, FreeNames: free}, nil
}

// Save compiles src and stores it under name. The boolean is false when the
// same term was already stored under name.
func (s *Session) Save(ctx context.Context, name, src string, postfix bool) (Term, bool, error) {
	if s.config.Storer == nil {
		return Term{}, false, errors.New("no term storage configured")
	}

	t, err := s.Compile(src, postfix)
	if err != nil {
		return Term{}, false, err
	}
	t.Name = name

	g, err := s.config.Engine.Nodes().Export(t.Root)
	if err != nil {
		return Term{}, false, err
	}
	g.FreeNames = t.FreeNames

	inserted, err := s.config.Storer.Put(ctx, name, g)
	if err != nil {
		return Term{}, false, fmt.Errorf("saving %s: %w", name, err)
	}

	s.mu.Lock()
	s.terms[name] = t
	s.mu.Unlock()

	s.log.Info("term saved", "name", name, "root", t.Root, "nodes", len(g.Nodes), "new", inserted)
	return t, inserted, nil
}

// Load returns the term stored under name, importing it into the node store
// the first time.
func (s *Session) Load(ctx context.Context, name string) (Term, error) {
	s.mu.RLock()
	t, ok := s.terms[name]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	if s.config.Storer == nil {
		return Term{}, storage.NotFoundError{Name: name}
	}

	g, err := s.config.Storer.Get(ctx, name)
	if err != nil {
		return Term{}, err
	}
	root, err := s.config.Engine.Nodes().Import(g)
	if err != nil {
		return Term{}, fmt.Errorf("loading %s: %w", name, err)
	}

	t = Term{Name: name, Root: root, FreeNames: g.FreeNames}
	s.mu.Lock()
	s.terms[name] = t
	s.mu.Unlock()
	s.remember(t)

	s.log.Debug("term loaded", "name", name, "root", root)
	return t, nil
}

// List returns the names of the stored terms.
func (s *Session) List(ctx context.Context) ([]string, error) {
	if s.config.Storer == nil {
		return []string{}, nil
	}
	return s.config.Storer.List(ctx)
}

// Roots returns the roots of every term loaded so far, for collection.
func (s *Session) Roots() []term.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roots := make([]term.NodeID, 0, len(s.terms))
	for _, t := range s.terms {
		roots = append(roots, t.Root)
	}
	return roots
}

// Request asks for one reduction. Exactly one of Source and Name is used,
// Source first.
type Request struct {
	Source  string `json:"source,omitempty"`
	Postfix bool   `json:"postfix,omitempty"`
	Name    string `json:"name,omitempty"`

	Budget int    `json:"budget,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// Response is the outcome of a reduction together with the best-known
// rendering of the term.
type Response struct {
	RunID    string        `json:"run_id"`
	JobID    string        `json:"job_id,omitempty"`
	Term     Term          `json:"term"`
	Status   reduce.Status `json:"status"`
	Steps    int           `json:"steps"`
	Node     term.NodeID   `json:"node"`
	Env      env.ID        `json:"env"`
	Rendered string        `json:"rendered"`
	Error    string        `json:"error,omitempty"`
}

// Reduce runs one reduction. Errors that describe how the run ended are
// reported in the Response; the returned error is reserved for requests
// that could not run at all.
func (s *Session) Reduce(ctx context.Context, req Request) (Response, error) {
	t, mode, budget, err := s.resolve(ctx, req)
	if err != nil {
		return Response{}, err
	}

	var (
		out    reduce.Outcome
		runErr error
		jobID  string
	)
	if s.config.Pool != nil {
		res, err := s.config.Pool.Submit(ctx, worker.Job{Root: t.Root, Env: env.Empty, Budget: budget, Mode: mode})
		if err != nil {
			return Response{}, err
		}
		out, runErr, jobID = res.Outcome, res.Err, res.JobID
	} else {
		out, runErr = s.config.Engine.Run(ctx, reduce.Request{Root: t.Root, Env: env.Empty, Budget: budget, Mode: mode})
	}

	resp := Response{
		RunID:  out.RunID,
		JobID:  jobID,
		Term:   t,
		Status: out.Status,
		Steps:  out.Steps,
		Node:   out.Node,
		Env:    out.Env,
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}
	resp.Rendered = s.Render(t, out)
	return resp, nil
}

// resolve finds the term, the mode and the budget req asks for.
func (s *Session) resolve(ctx context.Context, req Request) (Term, reduce.Mode, int, error) {
	mode := s.config.Engine.Mode()
	if req.Mode != "" {
		m, err := reduce.ParseMode(req.Mode)
		if err != nil {
			return Term{}, mode, 0, err
		}
		mode = m
	}

	var (
		t   Term
		err error
	)
	switch {
	case req.Source != "":
		t, err = s.Compile(req.Source, req.Postfix)
	case req.Name != "":
		t, err = s.Load(ctx, req.Name)
	default:
		err = ErrNoTerm
	}
	if err != nil {
		return Term{}, mode, 0, err
	}

	budget := req.Budget
	if budget == 0 {
		budget = s.config.Budget
	}
	return t, mode, budget, nil
}

// Render prints what a run produced: the result itself when the run
// finished, the best-known form of the term otherwise.
func (s *Session) Render(t Term, out reduce.Outcome) string {
	if out.Status == reduce.Done {
		return s.insp.Render(out.Node, out.Env, t.FreeNames)
	}
	return s.insp.Render(t.Root, env.Empty, t.FreeNames)
}

// Peek reports progress on a pair without reducing anything.
type Peek struct {
	Node     term.NodeID    `json:"node"`
	Env      env.ID         `json:"env"`
	Head     inspect.Report `json:"head"`
	Deep     inspect.Report `json:"deep"`
	Rendered string         `json:"rendered"`
}

// Peek inspects node under e.
func (s *Session) Peek(node term.NodeID, e env.ID) (Peek, error) {
	if _, err := s.config.Engine.Nodes().Get(node); err != nil {
		return Peek{}, err
	}
	if !s.config.Engine.Envs().Contains(e) {
		return Peek{}, fmt.Errorf("%w: %d", env.ErrInvalidEnv, e)
	}

	return Peek{
		Node:     node,
		Env:      e,
		Head:     s.insp.Peek(node, e),
		Deep:     s.insp.PeekDeep(node, e, 0),
		Rendered: s.insp.Render(node, e, s.freeNamesOf(node)),
	}, nil
}

func (s *Session) remember(t Term) {
	if len(t.FreeNames) == 0 {
		return
	}
	s.mu.Lock()
	s.free[t.Root] = t.FreeNames
	s.mu.Unlock()
}

func (s *Session) freeNamesOf(root term.NodeID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.free[root]
}

// Collect reclaims every node not reachable from a loaded term or from the
// engine's own state. Free names of roots that were reclaimed are forgotten.
func (s *Session) Collect() int {
	n := s.config.Engine.Collect(s.Roots()...)

	nodes := s.config.Engine.Nodes()
	s.mu.Lock()
	for root := range s.free {
		if _, err := nodes.Get(root); err != nil {
			delete(s.free, root)
		}
	}
	s.mu.Unlock()
	return n
}
