// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound means no job with the given ID is registered.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition means the requested status edge is not allowed.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrJobBusy means the job holds the transcode slot and cannot be deleted.
	ErrJobBusy = errors.New("job is currently being processed")

	// ErrSlotBusy means another job holds the transcode slot.
	ErrSlotBusy = errors.New("server busy")

	// ErrExecutorClosed means the executor no longer accepts work.
	ErrExecutorClosed = errors.New("executor is shut down")
)

// SlotBusyError names the job holding the slot when a submission is refused.
type SlotBusyError struct {
	Holder string
}

func (e *SlotBusyError) Error() string {
	if e.Holder == "" {
		return "Server busy. Another video is currently being processed."
	}
	return fmt.Sprintf("Server busy. Job %s is currently being processed.", e.Holder)
}

func (e *SlotBusyError) Is(target error) bool { return target == ErrSlotBusy }

// TransitionError records a rejected status change.
type TransitionError struct {
	JobID    string
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: %s -> %s: %v", e.JobID, e.From, e.To, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
