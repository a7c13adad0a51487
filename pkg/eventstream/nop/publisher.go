// Package nop is the publisher used when reduction events are disabled.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/lamdag/pkg/eventstream"
)

// Publisher drops reduction events. It still counts them so that a disabled
// event stream can be told apart from an idle one.
type Publisher struct {
	dropped atomic.Int64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishReduction drops event. Nil events are rejected like the Kafka
// publisher rejects them.
func (p *Publisher) PublishReduction(_ context.Context, event *eventstream.ReductionEvent) error {
	if event == nil {
		return eventstream.ErrNilReductionEvent
	}
	p.dropped.Add(1)
	return nil
}

// Dropped is the number of events accepted and discarded.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error { return nil }
