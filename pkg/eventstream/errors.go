package eventstream

import "errors"

// ErrNilReductionEvent indicates a nil reduction event was provided to a publisher.
var ErrNilReductionEvent = errors.New("nil reduction event")
