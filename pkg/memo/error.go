package memo

import "errors"

// ErrDivergentRedex is returned when a key is demanded again while its own
// reduction is still pending, or when waiting for it would never end.
var ErrDivergentRedex = errors.New("divergent redex")

// ErrBudgetExhausted is returned when the step budget is spent.
var ErrBudgetExhausted = errors.New("step budget exhausted")
