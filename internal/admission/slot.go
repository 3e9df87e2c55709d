// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package admission guards the single processing slot. At most one job
// transcodes at a time; a second caller is told "busy" and never queued.
package admission

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/speedup/internal/metrics"
)

// holder is immutable once published.
type holder struct {
	jobID      string
	acquiredAt time.Time
}

// SlotStatus is a point-in-time snapshot of the slot.
type SlotStatus struct {
	IsProcessing bool   `json:"is_processing"`
	CurrentJobID string `json:"current_job_id,omitempty"`
	// ProcessingDuration is seconds since acquisition; zero when free.
	ProcessingDuration float64 `json:"processing_duration"`
}

// Slot is a non-blocking, process-wide mutual exclusion for transcoding.
// Writers serialize on mu; readers load the published holder without locking.
type Slot struct {
	mu  sync.Mutex
	cur atomic.Pointer[holder]
	now func() time.Time
}

// NewSlot returns a free slot.
func NewSlot() *Slot {
	return &Slot{now: time.Now}
}

// NewSlotWithClock returns a free slot reading time from now.
func NewSlotWithClock(now func() time.Time) *Slot {
	if now == nil {
		now = time.Now
	}
	return &Slot{now: now}
}

// TryAcquire claims the slot for jobID. It never blocks: when the slot is
// held it returns false and the holder is unchanged.
func (s *Slot) TryAcquire(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur.Load() != nil {
		metrics.RecordSlotAcquire(false)
		return false
	}
	s.cur.Store(&holder{jobID: jobID, acquiredAt: s.now()})
	metrics.RecordSlotAcquire(true)
	return true
}

// Release frees the slot. Releasing a free slot is a no-op.
func (s *Slot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.cur.Load()
	if h == nil {
		return
	}
	s.cur.Store(nil)
	metrics.RecordSlotRelease(s.now().Sub(h.acquiredAt).Seconds())
}

// IsHeld reports whether a job owns the slot.
func (s *Slot) IsHeld() bool {
	return s.cur.Load() != nil
}

// Holder returns the owning job ID.
func (s *Slot) Holder() (string, bool) {
	h := s.cur.Load()
	if h == nil {
		return "", false
	}
	return h.jobID, true
}

// HeldFor returns how long the current holder has owned the slot.
func (s *Slot) HeldFor() (time.Duration, bool) {
	h := s.cur.Load()
	if h == nil {
		return 0, false
	}
	return s.now().Sub(h.acquiredAt), true
}

// Status returns a consistent snapshot: holder and duration come from the
// same acquisition.
func (s *Slot) Status() SlotStatus {
	h := s.cur.Load()
	if h == nil {
		return SlotStatus{}
	}
	return SlotStatus{
		IsProcessing:       true,
		CurrentJobID:       h.jobID,
		ProcessingDuration: s.now().Sub(h.acquiredAt).Seconds(),
	}
}
