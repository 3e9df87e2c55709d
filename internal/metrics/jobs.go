// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts jobs reaching a terminal status.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedup_jobs_total",
		Help: "Total jobs by terminal status (completed/failed/rejected).",
	}, []string{"status"})

	// JobsInFlight tracks background job tasks currently running.
	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speedup_jobs_in_flight",
		Help: "Number of background job tasks currently running.",
	})

	// UploadsTotal counts upload submissions by outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedup_uploads_total",
		Help: "Total upload submissions, by outcome (accepted/busy/invalid/error).",
	}, []string{"outcome"})

	// UploadBytesTotal counts bytes accepted into storage.
	UploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speedup_upload_bytes_total",
		Help: "Total bytes of accepted uploads.",
	})
)

// IncJobTerminal counts a job reaching a terminal status.
func IncJobTerminal(status string) { JobsTotal.WithLabelValues(status).Inc() }

// IncUpload counts an upload submission outcome.
func IncUpload(outcome string) { UploadsTotal.WithLabelValues(outcome).Inc() }

// AddUploadBytes adds accepted upload bytes.
func AddUploadBytes(n int64) {
	if n > 0 {
		UploadBytesTotal.Add(float64(n))
	}
}
