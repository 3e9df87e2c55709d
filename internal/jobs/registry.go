// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/speedup/internal/admission"
	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/metrics"
	"github.com/ManuGH/speedup/internal/storage"
	"github.com/rs/zerolog"
)

// FileStore is the storage capability jobs need for one directory.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Exists(name string) bool
	Size(name string) (int64, error)
	Delete(name string) (bool, error)
	Glob(pattern string) ([]string, error)
	Path(name string) (string, error)
}

// Registry is the in-memory job table. A single coarse RW guard covers the
// map and slot claims so the slot holder always names a registered job.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	slot    *admission.Slot
	uploads FileStore
	outputs FileStore

	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// NewRegistry returns an empty registry bound to slot and the two stores.
func NewRegistry(slot *admission.Slot, uploads, outputs FileStore) *Registry {
	return &Registry{
		jobs:    make(map[string]*Job),
		slot:    slot,
		uploads: uploads,
		outputs: outputs,
		now:     time.Now,
		newID:   storage.NewToken,
		logger:  xglog.WithComponent("registry"),
	}
}

// Slot exposes the slot the registry guards.
func (r *Registry) Slot() *admission.Slot { return r.slot }

// Create inserts a new job in StatusCreated under a fresh, never reused ID.
func (r *Registry) Create(originalFilename, uploadName string) Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for _, taken := r.jobs[id]; taken; _, taken = r.jobs[id] {
		id = r.newID()
	}
	j := &Job{
		ID:               id,
		OriginalFilename: originalFilename,
		UploadFilename:   uploadName,
		Status:           StatusCreated,
		CreatedAt:        r.now(),
	}
	r.jobs[id] = j
	return j.clone()
}

// Get returns a copy of the job.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// Update moves the job to status and merges opts. An unknown ID yields
// ErrJobNotFound and leaves the registry untouched. Progress never decreases
// except when the job fails (reset to 0); completion forces 100.
func (r *Registry) Update(id string, status Status, opts ...UpdateOption) error {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	from := j.Status
	if !from.CanTransition(status) {
		r.mu.Unlock()
		return &TransitionError{JobID: id, From: from, To: status}
	}

	next := j.clone()
	for _, opt := range opts {
		opt(&next)
	}
	next.Status = status
	switch status {
	case StatusFailed:
		next.Progress = 0
	case StatusCompleted:
		next.Progress = 100
	default:
		next.Progress = max(next.Progress, j.Progress)
	}
	*j = next
	r.mu.Unlock()

	if from != status {
		r.logger.Debug().
			Str(xglog.FieldJobID, id).
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(status)).
			Int("progress", next.Progress).
			Msg("job state changed")
		if status.IsTerminal() {
			metrics.IncJobTerminal(string(status))
		}
	}
	return nil
}

// ClaimSlot acquires the transcode slot for a registered job.
func (r *Registry) ClaimSlot(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status.IsTerminal() {
		return false
	}
	return r.slot.TryAcquire(id)
}

// ReleaseSlot releases the slot if id holds it. Safe to call repeatedly.
func (r *Registry) ReleaseSlot(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder, held := r.slot.Holder()
	if !held || holder != id {
		return
	}
	r.slot.Release()
}

// IsProcessing reports whether id currently holds the slot.
func (r *Registry) IsProcessing(id string) bool {
	holder, held := r.slot.Holder()
	return held && holder == id
}

// Delete removes the job and its files. A job holding the slot is refused
// with ErrJobBusy.
func (r *Registry) Delete(ctx context.Context, id string) (CleanupReport, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return CleanupReport{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if holder, held := r.slot.Holder(); held && holder == id {
		r.mu.Unlock()
		return CleanupReport{}, fmt.Errorf("%w: %s", ErrJobBusy, id)
	}
	job := j.clone()
	delete(r.jobs, id)
	r.mu.Unlock()

	report := CleanupReport{JobRemoved: true, Errors: []string{}}
	logger := xglog.WithContext(xglog.ContextWithJobID(ctx, id), r.logger)

	if job.UploadFilename != "" {
		deleted, err := r.uploads.Delete(job.UploadFilename)
		if err != nil {
			report.Errors = append(report.Errors, "Failed to delete upload: "+err.Error())
		}
		report.UploadDeleted = deleted
	}

	// The artifact and any pipeline leftovers share the output stem.
	outputName := job.OutputFilename
	if outputName == "" {
		outputName = storage.OutputName(job.UploadFilename)
	}
	stem := strings.TrimSuffix(outputName, ".mp4")
	names, err := r.outputs.Glob(globEscape(stem) + "*")
	if err != nil {
		report.Errors = append(report.Errors, "Failed to list outputs: "+err.Error())
	}
	for _, name := range names {
		deleted, err := r.outputs.Delete(name)
		if err != nil {
			report.Errors = append(report.Errors, "Failed to delete output: "+err.Error())
			continue
		}
		if deleted && name == outputName {
			report.OutputDeleted = true
		}
	}

	logger.Info().
		Bool("upload_deleted", report.UploadDeleted).
		Bool("output_deleted", report.OutputDeleted).
		Int("errors", len(report.Errors)).
		Msg("job deleted")
	return report, nil
}

// List returns copies of all jobs ordered by creation time.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}

// Stats counts jobs by status and reports the slot.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		TotalJobs:    len(r.jobs),
		StatusCounts: make(map[Status]int),
		LockStatus:   r.slot.Status(),
	}
	for _, j := range r.jobs {
		s.StatusCounts[j.Status]++
	}
	s.CurrentProcessing, _ = r.slot.Holder()
	return s
}

// globEscape quotes filepath.Match metacharacters.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
