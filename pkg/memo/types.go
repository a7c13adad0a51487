package memo

import (
	"fmt"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/term"
)

// Mode separates head-normal-form entries from deep (full normal form)
// entries of the same pair.
type Mode uint8

const (
	// Head entries hold weak head normal forms.
	Head Mode = iota

	// Deep entries hold full normal forms quoted at Key.Depth.
	Deep
)

func (m Mode) String() string {
	switch m {
	case Head:
		return "head"
	case Deep:
		return "deep"
	default:
		return fmt.Sprintf("mode(%d)", m)
	}
}

// Key identifies one reduction: a node under an environment. Deep entries are
// additionally keyed by the number of binders normalized under so far.
type Key struct {
	Mode  Mode
	Node  term.NodeID
	Env   env.ID
	Depth int
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%d, env %d, depth %d)", k.Mode, k.Node, k.Env, k.Depth)
}

// Result is a reduced form: a node together with the environment its free
// indices resolve in.
type Result struct {
	Node term.NodeID `json:"node"`
	Env  env.ID      `json:"env"`
}

// State is the progress of one entry.
type State uint8

const (
	// NotYetReduced is the state of a key nobody has asked for.
	NotYetReduced State = iota

	// InProgress means an owner is currently reducing the key.
	InProgress

	// Done means the result is final for this key.
	Done

	// BudgetExhausted means a reduction of the key was started and abandoned.
	// Reducing it again resumes the work.
	BudgetExhausted

	// Divergent means the key was found to depend on itself.
	Divergent
)

func (s State) String() string {
	switch s {
	case NotYetReduced:
		return "not-yet-reduced"
	case InProgress:
		return "in-progress"
	case Done:
		return "done"
	case BudgetExhausted:
		return "budget-exhausted"
	case Divergent:
		return "divergent"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st := NotYetReduced; st <= Divergent; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown memo state %q", text)
}

// Owner identifies a logical thread of reduction. Each engine run has its own.
type Owner uint64

// Budget hands out reduction steps. Take reports false once the budget is
// spent. It is only called with the table lock held.
type Budget interface {
	Take() bool
}

// Options control a single LookupOrReserve.
type Options struct {
	// DetectCycles reports re-entry of a key by its own owner as divergence.
	// Without it the owner starts a nested activation and only the budget
	// bounds the recursion.
	DetectCycles bool

	// Budget is charged for every activation the entry has not yet paid for.
	// A nil Budget is unbounded.
	Budget Budget
}

// Entry is the externally visible view of a memo entry.
type Entry struct {
	Key    Key
	State  State
	Result Result
	Owner  Owner

	// Seeded is set on entries whose result is their own pair: the seeds
	// Commit plants for a result's own key and keys that reduce to themselves.
	Seeded bool
}

// Stats counts table activity since creation or the last Reset.
type Stats struct {
	Entries int `json:"entries"`
	Commits int `json:"commits"`
	Seeds   int `json:"seeds"`
	Hits    int `json:"hits"`
	Waits   int `json:"waits"`
}
