// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineStageDuration tracks wall time per ffmpeg stage.
	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speedup_pipeline_stage_duration_seconds",
		Help:    "Duration of each transcoding pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12), // 250ms to ~8.5m
	}, []string{"stage"})

	// PipelineFailuresTotal counts failed pipeline runs by stage and reason.
	PipelineFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedup_pipeline_failures_total",
		Help: "Total pipeline failures, by stage and reason (exit/timeout/start/canceled).",
	}, []string{"stage", "reason"})

	// ProbeDuration tracks ffprobe invocations by outcome.
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speedup_probe_duration_seconds",
		Help:    "Duration of ffprobe media inspection.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(stage string, seconds float64) {
	PipelineStageDuration.WithLabelValues(stage).Observe(seconds)
}

// IncPipelineFailure counts a pipeline failure.
func IncPipelineFailure(stage, reason string) {
	PipelineFailuresTotal.WithLabelValues(stage, reason).Inc()
}

// ObserveProbe records an ffprobe invocation.
func ObserveProbe(outcome string, seconds float64) {
	ProbeDuration.WithLabelValues(outcome).Observe(seconds)
}

var procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "speedup_proc_terminate_total",
	Help: "Signals sent to child process groups, by signal and result.",
}, []string{"signal", "result"})

// IncProcTerminate counts a signal sent to a child process group.
func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}
