// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_RunsAndSignalsDone(t *testing.T) {
	e := NewExecutor(context.Background())
	var ran atomic.Bool

	h, err := e.Go("task", func(context.Context) { ran.Store(true) })
	require.NoError(t, err)
	require.NoError(t, h.Wait(context.Background()))
	assert.True(t, ran.Load())
	assert.Equal(t, "task", h.Name)

	select {
	case <-h.Done():
	default:
		t.Fatal("Done must be closed after Wait returns")
	}
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestExecutor_ShutdownCancelsAndRefuses(t *testing.T) {
	e := NewExecutor(context.Background())
	started := make(chan struct{})
	var sawCancel atomic.Bool

	_, err := e.Go("blocker", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, e.Shutdown(context.Background()))
	assert.True(t, sawCancel.Load())

	_, err = e.Go("late", func(context.Context) {})
	assert.ErrorIs(t, err, ErrExecutorClosed)
}

func TestExecutor_ShutdownDeadline(t *testing.T) {
	e := NewExecutor(context.Background())
	release := make(chan struct{})
	_, err := e.Go("stubborn", func(context.Context) { <-release })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestExecutor_RecoversPanics(t *testing.T) {
	e := NewExecutor(context.Background())
	h, err := e.Go("panicky", func(context.Context) { panic("boom") })
	require.NoError(t, err)
	require.NoError(t, h.Wait(context.Background()))
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestExecutor_ParentCancelDoesNotStopTasks(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	e := NewExecutor(parent)
	cancel()

	var ctxErr atomic.Value
	h, err := e.Go("task", func(ctx context.Context) { ctxErr.Store(ctx.Err() == nil) })
	require.NoError(t, err)
	require.NoError(t, h.Wait(context.Background()))
	assert.Equal(t, true, ctxErr.Load())
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestHandle_WaitHonoursContext(t *testing.T) {
	h := &Handle{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.Canceled)
}
