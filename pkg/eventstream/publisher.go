// Package eventstream publishes reduction events to an event stream backend.
package eventstream

import "context"

// Publisher publishes reduction events.
type Publisher interface {
	PublishReduction(ctx context.Context, event *ReductionEvent) error
	Close() error
}
