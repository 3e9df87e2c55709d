// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package admission

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSlot_AcquireRelease(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewSlotWithClock(clock.Now)

	assert.False(t, s.IsHeld())
	assert.Equal(t, SlotStatus{}, s.Status())

	require.True(t, s.TryAcquire("J1"))
	assert.True(t, s.IsHeld())

	id, ok := s.Holder()
	assert.True(t, ok)
	assert.Equal(t, "J1", id)

	clock.Advance(3 * time.Second)
	held, ok := s.HeldFor()
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, held)

	st := s.Status()
	assert.True(t, st.IsProcessing)
	assert.Equal(t, "J1", st.CurrentJobID)
	assert.InDelta(t, 3.0, st.ProcessingDuration, 1e-9)

	s.Release()
	assert.False(t, s.IsHeld())
	_, ok = s.Holder()
	assert.False(t, ok)
	_, ok = s.HeldFor()
	assert.False(t, ok)
}

func TestSlot_SecondAcquireFailsAndKeepsHolder(t *testing.T) {
	s := NewSlot()
	require.True(t, s.TryAcquire("J1"))
	assert.False(t, s.TryAcquire("J2"))

	id, _ := s.Holder()
	assert.Equal(t, "J1", id)
}

func TestSlot_ReleaseIsIdempotent(t *testing.T) {
	s := NewSlot()
	s.Release()
	assert.False(t, s.IsHeld())

	require.True(t, s.TryAcquire("J1"))
	s.Release()
	s.Release()
	assert.False(t, s.IsHeld())

	assert.True(t, s.TryAcquire("J2"), "slot is reusable after release")
}

func TestSlot_ConcurrentAcquireHasSingleWinner(t *testing.T) {
	s := NewSlot()

	const n = 64
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if s.TryAcquire(fmt.Sprintf("J%d", i)) {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, s.IsHeld())
}

func TestSlot_QueriesDuringChurn(t *testing.T) {
	s := NewSlot()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if s.TryAcquire(fmt.Sprintf("J%d", i)) {
				s.Release()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		st := s.Status()
		if st.IsProcessing {
			assert.NotEmpty(t, st.CurrentJobID)
		} else {
			assert.Empty(t, st.CurrentJobID)
		}
	}
	close(stop)
	wg.Wait()
}
