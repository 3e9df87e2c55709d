// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SlotHeld is 1 while a job owns the processing slot.
	SlotHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speedup_slot_held",
		Help: "Whether the exclusive processing slot is currently held (0/1).",
	})

	// SlotAcquireTotal counts acquire attempts by result (acquired/busy).
	SlotAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedup_slot_acquire_total",
		Help: "Total number of processing slot acquire attempts, by result.",
	}, []string{"result"})

	// SlotHoldSeconds observes how long the slot was held per acquisition.
	SlotHoldSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speedup_slot_hold_seconds",
		Help:    "Time the processing slot was held per acquisition.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
	})
)

// RecordSlotAcquire records an acquire attempt and updates the held gauge.
func RecordSlotAcquire(acquired bool) {
	if acquired {
		SlotAcquireTotal.WithLabelValues("acquired").Inc()
		SlotHeld.Set(1)
		return
	}
	SlotAcquireTotal.WithLabelValues("busy").Inc()
}

// RecordSlotRelease records a release after the slot was held for seconds.
func RecordSlotRelease(seconds float64) {
	SlotHeld.Set(0)
	SlotHoldSeconds.Observe(seconds)
}
