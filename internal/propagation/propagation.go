// Package propagation runs the bulk recolor that follows an event edit in the
// background and reports every outcome on a results stream.
package propagation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
)

const (
	defaultBuffer  = 64
	defaultTimeout = 30 * time.Second
)

// Task recolors every stored event named Name within the scope of Actor.
type Task struct {
	Actor       core.Identity
	Name        string
	Color       string
	EventID     string
	SubmittedAt time.Time
}

type Result struct {
	Task     Task
	Updated  int64
	Err      error
	Duration time.Duration
}

type Stats struct {
	Submitted int64
	Succeeded int64
	Failed    int64
}

// Propagator accepts tasks without blocking the caller.
type Propagator interface {
	Submit(ctx context.Context, t Task)
}

// executor performs one task and returns the number of events it touched.
type executor func(ctx context.Context, t Task) (int64, error)

// runner is the shared goroutine and reporting machinery of Local and Queue.
type runner struct {
	exec    executor
	logger  *log.Logger
	timeout time.Duration
	results chan Result

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

func newRunner(exec executor, logger *log.Logger, buffer int) *runner {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &runner{
		exec:    exec,
		logger:  logger.WithComponent(log.ComponentPropagation),
		timeout: defaultTimeout,
		results: make(chan Result, buffer),
	}
}

// Submit starts t on its own goroutine. The task outlives the request that
// submitted it.
func (r *runner) Submit(ctx context.Context, t Task) {
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now()
	}
	r.submitted.Add(1)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.failed.Add(1)
		r.logger.WarnContext(ctx, "Propagation rejected after shutdown", log.FieldEventName, t.Name)
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		r.run(taskCtx, t)
	}()
}

func (r *runner) run(ctx context.Context, t Task) {
	start := time.Now()
	n, err := r.exec(ctx, t)
	res := Result{Task: t, Updated: n, Err: err, Duration: time.Since(start)}

	fields := log.NewFields().
		WithActor(t.Actor.UserID, string(t.Actor.Role)).
		WithOperation(log.OpPropagate)
	fields[log.FieldEventName] = t.Name
	fields[log.FieldColor] = t.Color
	fields[log.FieldDuration] = res.Duration.Milliseconds()

	if err != nil {
		r.failed.Add(1)
		r.logger.WarnContext(ctx, "Color propagation failed", fields.WithError(err).ToSlice()...)
	} else {
		r.succeeded.Add(1)
		fields[log.FieldUpdated] = n
		r.logger.InfoContext(ctx, "Color propagation finished", fields.ToSlice()...)
	}

	select {
	case r.results <- res:
	default:
		r.logger.DebugContext(ctx, "Results buffer full, dropping result", log.FieldEventName, t.Name)
	}
}

// Results streams finished tasks. Results are dropped while the buffer is full.
func (r *runner) Results() <-chan Result {
	return r.results
}

func (r *runner) Stats() Stats {
	return Stats{
		Submitted: r.submitted.Load(),
		Succeeded: r.succeeded.Load(),
		Failed:    r.failed.Load(),
	}
}

// Wait blocks until every submitted task has finished.
func (r *runner) Wait() {
	r.wg.Wait()
}

// Close refuses new tasks, waits for the running ones and closes Results.
func (r *runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
	close(r.results)
}
