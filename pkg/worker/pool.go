// Package worker runs reduction jobs concurrently against one shared engine.
//
// Every job is a separate run with its own owner identity, so two jobs that
// reach the same pair share one reduction: the second waits for the first
// to commit instead of repeating it.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/lamdag/pkg/env"
	"github.com/papercomputeco/lamdag/pkg/eventstream"
	"github.com/papercomputeco/lamdag/pkg/logger"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/term"
)

const (
	defaultNumWorkers   = 3
	defaultJobQueueSize = 256
)

// ErrQueueFull is returned by Submit when the job could not be queued.
var ErrQueueFull = errors.New("job queue full")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Job is one reduction run.
type Job struct {
	// ID defaults to a random UUID.
	ID string

	Root   term.NodeID
	Env    env.ID
	Budget int
	Mode   reduce.Mode

	// Ctx, when set, bounds the run: canceling it stops the reduction at the
	// next step with reduce.Canceled. Submit sets it to its own context.
	Ctx context.Context

	// Done, when set, is called from the worker goroutine with the result.
	Done func(Result)
}

// Result is what a job produced.
type Result struct {
	JobID   string
	Outcome reduce.Outcome
	Err     error
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Engine runs the jobs.
	Engine *reduce.Engine

	// Publisher, when set, receives one event per finished job.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers int

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize int

	Logger *slog.Logger
}

// Stats counts jobs over the life of the pool.
type Stats struct {
	Queued    uint64
	Dropped   uint64
	Completed uint64
	Failed    uint64
}

// Pool processes reduction jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// ctx is canceled by Close once the queue has drained
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	queued, dropped, completed, failed atomic.Uint64
}

// NewPool creates a pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Engine == nil {
		return nil, errors.New("worker pool needs an engine")
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultJobQueueSize
	}

	log := logger.Component(c.Logger, "worker")

	ctx, cancel := context.WithCancel(context.Background())
	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	wp.wg.Add(c.NumWorkers)
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed;
// a job that is not enqueued is dropped and its Done is never called.
func (p *Pool) Enqueue(job Job) bool {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		p.logger.Warn("job not queued, pool closed", "job_id", job.ID)
		return false
	}

	select {
	case p.queue <- job:
		p.queued.Add(1)
		p.logger.Debug("job queued", "job_id", job.ID, "root", job.Root, "mode", job.Mode)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("job not queued, queue full, job dropped", "job_id", job.ID, "root", job.Root)
		return false
	}
}

// Submit enqueues job and waits for its result. Done and Ctx on job are
// replaced; canceling ctx also cancels the run.
func (p *Pool) Submit(ctx context.Context, job Job) (Result, error) {
	done := make(chan Result, 1)
	job.Done = func(r Result) { done <- r }
	job.Ctx = ctx

	if !p.Enqueue(job) {
		p.mu.RLock()
		closed := p.closed
		p.mu.RUnlock()
		if closed {
			return Result{}, ErrClosed
		}
		return Result{}, ErrQueueFull
	}

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stats returns the job counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Queued:    p.queued.Load(),
		Dropped:   p.dropped.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Close stops accepting jobs and waits for queued and in-flight jobs to
// drain. Calling it twice is safe.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

// worker pulls jobs off the queue until it is closed.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// runContext is canceled when either the job's context or the pool's is.
func (p *Pool) runContext(job Job) (context.Context, context.CancelFunc) {
	parent := job.Ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	stop := context.AfterFunc(p.ctx, func() { cancel(context.Cause(p.ctx)) })
	return ctx, func() {
		stop()
		cancel(nil)
	}
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := p.runContext(job)
	defer cancel()

	started := time.Now()
	out, err := p.config.Engine.Run(ctx, reduce.Request{
		Root:   job.Root,
		Env:    job.Env,
		Budget: job.Budget,
		Mode:   job.Mode,
	})
	completed := time.Now()

	if err != nil && !out.Status.Resumable() {
		p.failed.Add(1)
		p.logger.Warn("reduction job failed", "job_id", job.ID, "status", out.Status, "error", err)
	} else {
		p.completed.Add(1)
		p.logger.Info("reduction job finished",
			"job_id", job.ID,
			"run_id", out.RunID,
			"status", out.Status,
			"steps", out.Steps,
		)
	}

	p.publish(job, out, err, started, completed)

	if job.Done != nil {
		job.Done(Result{JobID: job.ID, Outcome: out, Err: err})
	}
}

func (p *Pool) publish(job Job, out reduce.Outcome, runErr error, started, completed time.Time) {
	if p.config.Publisher == nil {
		return
	}

	result := eventstream.ResultMeta{
		Status: out.Status.String(),
		Node:   int32(out.Node),
		Env:    int32(out.Env),
		Steps:  out.Steps,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	event := eventstream.NewReductionEvent(eventstream.RunMeta{
		RunID:       out.RunID,
		JobID:       job.ID,
		Mode:        job.Mode.String(),
		Root:        int32(job.Root),
		Env:         int32(job.Env),
		Budget:      job.Budget,
		StartedAt:   started.UTC(),
		CompletedAt: completed.UTC(),
		DurationMs:  completed.Sub(started).Milliseconds(),
	}, result)

	if err := p.config.Publisher.PublishReduction(p.ctx, event); err != nil {
		p.logger.Warn("failed to publish reduction event", "job_id", job.ID, "error", err)
	}
}
