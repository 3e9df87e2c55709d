// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package housekeeping reclaims disk space from the upload and output
// directories by file age.
package housekeeping

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/speedup/internal/log"
	"github.com/ManuGH/speedup/internal/metrics"
	"github.com/ManuGH/speedup/internal/storage"
	"github.com/rs/zerolog"
)

// Triggers label cleanup runs in logs and metrics.
const (
	TriggerPeriodic = "periodic"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// Store is one directory the janitor sweeps.
type Store interface {
	List() ([]storage.FileInfo, error)
	Delete(name string) (bool, error)
}

// Config controls retention and cadence. Both may change at runtime via Apply.
type Config struct {
	Retention time.Duration
	Interval  time.Duration
}

// CleanupResult reports an age-based sweep.
type CleanupResult struct {
	UploadFilesDeleted int      `json:"upload_files_deleted"`
	OutputFilesDeleted int      `json:"output_files_deleted"`
	UploadFilesFailed  int      `json:"upload_files_failed"`
	OutputFilesFailed  int      `json:"output_files_failed"`
	TotalSizeFreed     int64    `json:"total_size_freed"`
	Errors             []string `json:"errors"`
}

// DirStats describes one directory.
type DirStats struct {
	FileCount int                `json:"file_count"`
	TotalSize int64              `json:"total_size"`
	Files     []storage.FileInfo `json:"files"`
	Error     string             `json:"error,omitempty"`
}

// DirectoryStats describes both directories.
type DirectoryStats struct {
	UploadDir DirStats `json:"upload_dir"`
	OutputDir DirStats `json:"output_dir"`
}

// Janitor deletes files older than the retention window.
type Janitor struct {
	uploads Store
	outputs Store

	retention atomic.Int64
	interval  atomic.Int64
	reset     chan struct{}
	busy      atomic.Bool

	now    func() time.Time
	logger zerolog.Logger
}

// New returns a Janitor over the two directories.
func New(uploads, outputs Store, cfg Config) *Janitor {
	j := &Janitor{
		uploads: uploads,
		outputs: outputs,
		reset:   make(chan struct{}, 1),
		now:     time.Now,
		logger:  xglog.WithComponent("housekeeping"),
	}
	j.retention.Store(int64(cfg.Retention))
	j.interval.Store(int64(cfg.Interval))
	return j
}

// Apply swaps in new retention and interval values. A running loop picks up
// the new interval on its next select.
func (j *Janitor) Apply(cfg Config) {
	old := time.Duration(j.interval.Swap(int64(cfg.Interval)))
	j.retention.Store(int64(cfg.Retention))
	if old != cfg.Interval {
		select {
		case j.reset <- struct{}{}:
		default:
		}
	}
}

// Retention returns the current retention window.
func (j *Janitor) Retention() time.Duration { return time.Duration(j.retention.Load()) }

// Interval returns the current sweep interval.
func (j *Janitor) Interval() time.Duration { return time.Duration(j.interval.Load()) }

// Run sweeps every interval until ctx ends. A zero interval parks the loop
// until Apply sets a positive one. It always returns nil so it can sit in an
// errgroup next to the servers.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	if interval := j.Interval(); interval > 0 {
		ticker.Reset(interval)
		j.logger.Info().
			Dur("interval", interval).
			Dur("retention", j.Retention()).
			Msg("periodic cleanup started")
	} else {
		ticker.Stop()
		j.logger.Info().Msg("periodic cleanup disabled")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-j.reset:
			if next := j.Interval(); next > 0 {
				ticker.Reset(next)
				j.logger.Info().Dur("interval", next).Msg("cleanup interval changed")
			} else {
				ticker.Stop()
				j.logger.Info().Msg("periodic cleanup paused")
			}
		case <-ticker.C:
			j.sweep(ctx, TriggerPeriodic)
		}
	}
}

// CleanupOldFiles runs one age-based sweep immediately.
func (j *Janitor) CleanupOldFiles(ctx context.Context) CleanupResult {
	return j.sweep(ctx, TriggerManual)
}

// ForceCleanupAll deletes every file in both directories regardless of age.
func (j *Janitor) ForceCleanupAll(ctx context.Context) CleanupResult {
	return j.clean(ctx, TriggerStartup, time.Time{})
}

func (j *Janitor) sweep(ctx context.Context, trigger string) CleanupResult {
	return j.clean(ctx, trigger, j.now().Add(-j.Retention()))
}

// clean removes files modified before cutoff; a zero cutoff removes all.
// Concurrent runs are skipped rather than stacked.
func (j *Janitor) clean(ctx context.Context, trigger string, cutoff time.Time) CleanupResult {
	res := CleanupResult{Errors: []string{}}
	if !j.busy.CompareAndSwap(false, true) {
		res.Errors = append(res.Errors, "cleanup already running")
		return res
	}
	defer j.busy.Store(false)

	uploadsDeleted, uploadsFailed, uploadBytes := j.cleanDir(ctx, j.uploads, "upload", cutoff, &res.Errors)
	outputsDeleted, outputsFailed, outputBytes := j.cleanDir(ctx, j.outputs, "output", cutoff, &res.Errors)
	res.UploadFilesDeleted, res.UploadFilesFailed = uploadsDeleted, uploadsFailed
	res.OutputFilesDeleted, res.OutputFilesFailed = outputsDeleted, outputsFailed
	res.TotalSizeFreed = uploadBytes + outputBytes

	metrics.RecordCleanup(trigger, res.UploadFilesDeleted, res.OutputFilesDeleted, res.TotalSizeFreed,
		res.UploadFilesFailed+res.OutputFilesFailed)

	evt := j.logger.Info()
	if len(res.Errors) > 0 {
		evt = j.logger.Warn().Strs("errors", res.Errors)
	}
	evt.Str("trigger", trigger).
		Int("uploads_deleted", res.UploadFilesDeleted).
		Int("outputs_deleted", res.OutputFilesDeleted).
		Int64("bytes_freed", res.TotalSizeFreed).
		Msg("cleanup finished")
	return res
}

func (j *Janitor) cleanDir(ctx context.Context, s Store, kind string, cutoff time.Time, errs *[]string) (deleted, failed int, freed int64) {
	files, err := s.List()
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s cleanup error: %v", kind, err))
		return 0, 0, 0
	}
	for _, f := range files {
		if ctx.Err() != nil {
			*errs = append(*errs, fmt.Sprintf("%s cleanup interrupted: %v", kind, ctx.Err()))
			return deleted, failed, freed
		}
		if !cutoff.IsZero() && !f.ModTime.Before(cutoff) {
			continue
		}
		ok, err := s.Delete(f.Name)
		switch {
		case err != nil:
			failed++
			*errs = append(*errs, fmt.Sprintf("%s cleanup error: %v", kind, err))
		case ok:
			deleted++
			freed += f.Size
		}
	}
	return deleted, failed, freed
}

// DirectoryStats lists both directories.
func (j *Janitor) DirectoryStats() DirectoryStats {
	return DirectoryStats{
		UploadDir: dirStats(j.uploads),
		OutputDir: dirStats(j.outputs),
	}
}

func dirStats(s Store) DirStats {
	files, err := s.List()
	if err != nil {
		return DirStats{Files: []storage.FileInfo{}, Error: err.Error()}
	}
	st := DirStats{FileCount: len(files), Files: files}
	for _, f := range files {
		st.TotalSize += f.Size
	}
	return st
}
