// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs owns the job lifecycle: the in-memory registry, the state
// machine, and the orchestrator that drives uploads through validation and
// the single transcode slot.
package jobs

import (
	"time"

	"github.com/ManuGH/speedup/internal/admission"
	"github.com/ManuGH/speedup/internal/media"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusValidating Status = "validating"
	StatusValidated  Status = "validated"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRejected   Status = "rejected"
)

// transitions lists the allowed edges. Same-state updates on non-terminal
// states are handled separately.
var transitions = map[Status][]Status{
	StatusCreated:    {StatusValidating, StatusRejected},
	StatusValidating: {StatusValidated, StatusFailed, StatusRejected},
	StatusValidated:  {StatusProcessing, StatusFailed, StatusRejected},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusRejected},
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRejected
}

// CanTransition reports whether s -> to is a legal edge.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return !s.IsTerminal()
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one upload-to-download unit of work.
type Job struct {
	ID               string           `json:"id"`
	OriginalFilename string           `json:"original_filename"`
	UploadFilename   string           `json:"upload_filename"`
	OutputFilename   string           `json:"output_filename,omitempty"`
	Status           Status           `json:"status"`
	Progress         int              `json:"progress"`
	CreatedAt        time.Time        `json:"created_at"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	Error            string           `json:"error,omitempty"`
	MediaInfo        *media.MediaInfo `json:"file_info,omitempty"`
	OutputSize       *int64           `json:"output_size,omitempty"`
}

func (j *Job) clone() Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.MediaInfo != nil {
		m := *j.MediaInfo
		c.MediaInfo = &m
	}
	if j.OutputSize != nil {
		n := *j.OutputSize
		c.OutputSize = &n
	}
	return c
}

// UpdateOption merges one field into a job during Update.
type UpdateOption func(*Job)

// WithProgress sets progress, clamped to [0,100].
func WithProgress(p int) UpdateOption {
	return func(j *Job) { j.Progress = min(max(p, 0), 100) }
}

// WithError sets the human-readable failure detail.
func WithError(msg string) UpdateOption {
	return func(j *Job) { j.Error = msg }
}

// WithMediaInfo attaches probe output.
func WithMediaInfo(info media.MediaInfo) UpdateOption {
	return func(j *Job) { j.MediaInfo = &info }
}

// WithOutputName assigns the artifact name.
func WithOutputName(name string) UpdateOption {
	return func(j *Job) { j.OutputFilename = name }
}

// WithStartedAt stamps the start of background work.
func WithStartedAt(t time.Time) UpdateOption {
	return func(j *Job) { j.StartedAt = &t }
}

// WithCompletedAt stamps completion.
func WithCompletedAt(t time.Time) UpdateOption {
	return func(j *Job) { j.CompletedAt = &t }
}

// WithOutputSize records the artifact size in bytes.
func WithOutputSize(n int64) UpdateOption {
	return func(j *Job) { j.OutputSize = &n }
}

// CleanupReport says which artifacts a deletion actually removed.
type CleanupReport struct {
	UploadDeleted bool     `json:"upload_deleted"`
	OutputDeleted bool     `json:"output_deleted"`
	JobRemoved    bool     `json:"job_removed"`
	Errors        []string `json:"errors"`
}

// Stats summarises the registry.
type Stats struct {
	TotalJobs         int                  `json:"total_jobs"`
	StatusCounts      map[Status]int       `json:"status_counts"`
	CurrentProcessing string               `json:"current_processing,omitempty"`
	LockStatus        admission.SlotStatus `json:"lock_status"`
}
