// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cleanupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedup_cleanup_runs_total",
		Help: "Total housekeeping runs, by trigger (periodic/manual/startup).",
	}, []string{"trigger"})

	cleanupFilesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedup_cleanup_files_deleted_total",
		Help: "Files removed by housekeeping, by directory kind.",
	}, []string{"dir"})

	cleanupBytesFreed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speedup_cleanup_bytes_freed_total",
		Help: "Bytes reclaimed by housekeeping.",
	})

	cleanupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speedup_cleanup_errors_total",
		Help: "Files housekeeping failed to remove.",
	})
)

// RecordCleanup records the outcome of one housekeeping run.
func RecordCleanup(trigger string, uploadsDeleted, outputsDeleted int, bytesFreed int64, failures int) {
	cleanupRunsTotal.WithLabelValues(trigger).Inc()
	cleanupFilesDeleted.WithLabelValues("uploads").Add(float64(uploadsDeleted))
	cleanupFilesDeleted.WithLabelValues("outputs").Add(float64(outputsDeleted))
	if bytesFreed > 0 {
		cleanupBytesFreed.Add(float64(bytesFreed))
	}
	if failures > 0 {
		cleanupErrors.Add(float64(failures))
	}
}
