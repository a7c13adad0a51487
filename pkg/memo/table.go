// Package memo is the memo table shared by every reduction of one root.
//
// The table maps a Key to the state of its reduction. LookupOrReserve is a
// single atomic check-and-insert: exactly one owner acquires a key, every
// other owner either receives the committed result or blocks until there is
// one. Entries are never invalidated; a Done entry is correct forever.
package memo

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/term"
)

type entry struct {
	state  State
	result Result
	owner  Owner
	seeded bool

	// active counts the owner's nested activations of the key. It is only
	// above one when cycle detection is off.
	active int

	// charged counts activations already paid for. Re-activating an
	// abandoned entry up to this count is free.
	charged int

	divergent bool
}

// Table is the memo table. It is safe for concurrent use.
type Table struct {
	mu   sync.Mutex
	cond *sync.Cond

	entries map[Key]*entry

	// waiting records which key each blocked owner waits for
	waiting map[Owner]Key

	stats Stats
}

// NewTable creates an empty table.
func NewTable() *Table {
	t := &Table{
		entries: make(map[Key]*entry),
		waiting: make(map[Owner]Key),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// LookupOrReserve returns the committed result of key with hit set, or
// acquires key for owner. An acquired key must be finished with Commit or
// Abort by the same owner.
//
// It fails with ErrDivergentRedex when key is divergent, when owner re-enters
// its own pending key with cycle detection on, or when waiting for another
// owner would close a wait-for cycle. It fails with ErrBudgetExhausted when
// the activation cannot be paid for, and with the context error when ctx is
// done.
func (t *Table) LookupOrReserve(ctx context.Context, key Key, owner Owner, opts Options) (Result, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stop func() bool
	defer func() {
		if stop != nil {
			stop()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, false, err
		}

		e, ok := t.entries[key]
		if !ok {
			e = &entry{}
			t.entries[key] = e
		}

		switch e.state {
		case Done:
			t.stats.Hits++
			return e.result, true, nil

		case Divergent:
			return Result{}, false, ErrDivergentRedex

		case InProgress:
			if e.owner == owner {
				if opts.DetectCycles {
					return Result{}, false, ErrDivergentRedex
				}
				return Result{}, false, t.activateLocked(e, owner, opts.Budget)
			}

			if t.closesCycleLocked(owner, e.owner) {
				return Result{}, false, ErrDivergentRedex
			}

			if stop == nil {
				stop = context.AfterFunc(ctx, func() {
					t.mu.Lock()
					t.cond.Broadcast()
					t.mu.Unlock()
				})
			}

			t.stats.Waits++
			t.waiting[owner] = key
			t.cond.Wait()
			delete(t.waiting, owner)

		default:
			return Result{}, false, t.activateLocked(e, owner, opts.Budget)
		}
	}
}

func (t *Table) activateLocked(e *entry, owner Owner, budget Budget) error {
	prevState, prevOwner := e.state, e.owner

	e.state = InProgress
	e.owner = owner
	e.active++

	if e.active <= e.charged {
		return nil
	}
	if budget != nil && !budget.Take() {
		e.active--
		if e.active == 0 {
			e.state, e.owner = prevState, prevOwner
		}
		return ErrBudgetExhausted
	}
	e.charged++
	return nil
}

// closesCycleLocked reports whether owner waiting for holder would make the
// chain of waiting owners lead back to owner.
func (t *Table) closesCycleLocked(owner, holder Owner) bool {
	cur := holder
	for range len(t.waiting) + 1 {
		if cur == owner {
			return true
		}
		k, ok := t.waiting[cur]
		if !ok {
			return false
		}
		e := t.entries[k]
		if e == nil || e.state != InProgress {
			return false
		}
		cur = e.owner
	}
	return false
}

// Commit records result as the final value of key and releases it. Only the
// first commit of a key counts; later commits are ignored.
//
// The result's own key is seeded as Done with the result itself, since a
// normal form reduces to itself. A seed is not a commit, so a key whose
// result is the key's own pair counts as a seed.
func (t *Table) Commit(key Key, owner Owner, result Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.cond.Broadcast()

	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	if e.state == Done {
		return
	}

	e.state = Done
	e.result = result
	e.owner = owner
	e.active = 0

	seed := Key{Mode: key.Mode, Node: result.Node, Env: result.Env}
	if seed == key {
		e.seeded = true
		t.stats.Seeds++
		return
	}
	t.stats.Commits++
	s, ok := t.entries[seed]
	if !ok {
		s = &entry{}
		t.entries[seed] = s
	}
	if s.state == InProgress || s.state == Done {
		return
	}
	s.state = Done
	s.result = result
	s.seeded = true
	t.stats.Seeds++
}

// Abort ends one activation of key by owner. When the last activation ends
// the entry becomes Divergent if any activation aborted with
// ErrDivergentRedex, and BudgetExhausted otherwise.
func (t *Table) Abort(key Key, owner Owner, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok || e.state != InProgress || e.owner != owner {
		return
	}

	e.active--
	if errors.Is(cause, ErrDivergentRedex) {
		e.divergent = true
	}
	if e.active > 0 {
		return
	}

	if e.divergent {
		e.state = Divergent
	} else {
		e.state = BudgetExhausted
	}
	t.cond.Broadcast()
}

// Peek returns the current entry for key without changing anything.
func (t *Table) Peek(key Key) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return Entry{Key: key, State: NotYetReduced}
	}
	return e.view(key)
}

// Stats returns the activity counters.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.Entries = len(t.entries)
	return s
}

// Snapshot returns every entry that has left NotYetReduced, ordered by key.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for k, e := range t.entries {
		if e.state == NotYetReduced {
			continue
		}
		out = append(out, e.view(k))
	}

	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Key.Mode, b.Key.Mode),
			cmp.Compare(a.Key.Node, b.Key.Node),
			cmp.Compare(a.Key.Env, b.Key.Env),
			cmp.Compare(a.Key.Depth, b.Key.Depth),
		)
	})
	return out
}

// Nodes returns every node a key or result refers to.
func (t *Table) Nodes() []term.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	nodes := make([]term.NodeID, 0, 2*len(t.entries))
	for k, e := range t.entries {
		nodes = append(nodes, k.Node)
		if e.state == Done {
			nodes = append(nodes, e.result.Node)
		}
	}
	return nodes
}

// Envs returns every environment a key or result refers to.
func (t *Table) Envs() []env.ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	envs := make([]env.ID, 0, 2*len(t.entries))
	for k, e := range t.entries {
		envs = append(envs, k.Env)
		if e.state == Done {
			envs = append(envs, e.result.Env)
		}
	}
	return envs
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Reset discards every entry and counter. Owners blocked in LookupOrReserve
// are woken and see an empty table.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[Key]*entry)
	t.stats = Stats{}
	t.cond.Broadcast()
}

func (e *entry) view(k Key) Entry {
	return Entry{
		Key:    k,
		State:  e.state,
		Result: e.result,
		Owner:  e.owner,
		Seeded: e.seeded,
	}
}
