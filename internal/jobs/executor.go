// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/metrics"
	"github.com/rs/zerolog"
)

// Handle tracks one submitted task.
type Handle struct {
	Name string
	done chan struct{}
}

// Done is closed when the task returns.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task returns or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executor runs each task on its own goroutine under a shared base context.
// Admission to the transcode slot is decided inside the task, so there is no
// queue: a task that cannot get the slot finishes immediately.
type Executor struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// NewExecutor returns an executor whose tasks inherit parent's values.
// Tasks are canceled by Shutdown, not by parent.
func NewExecutor(parent context.Context) *Executor {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Executor{
		ctx:    ctx,
		cancel: cancel,
		logger: xglog.WithComponent("executor"),
	}
}

// Go schedules fn. It fails with ErrExecutorClosed after Shutdown.
func (e *Executor) Go(name string, fn func(ctx context.Context)) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrExecutorClosed
	}

	h := &Handle{Name: name, done: make(chan struct{})}
	e.wg.Add(1)
	metrics.JobsInFlight.Inc()
	go func() {
		defer e.wg.Done()
		defer close(h.done)
		defer metrics.JobsInFlight.Dec()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error().
					Str("task", name).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("task panicked")
			}
		}()
		fn(e.ctx)
	}()
	return h, nil
}

// Shutdown refuses new work, cancels running tasks and waits for them to
// return or for ctx to end.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor shutdown: %w", ctx.Err())
	}
}
