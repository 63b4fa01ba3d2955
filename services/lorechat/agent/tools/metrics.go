// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vaultsage",
			Subsystem: "tools",
			Name:      "duration_seconds",
			Help:      "Tool execution duration by tool name",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	fallbackTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vaultsage",
			Subsystem: "tools",
			Name:      "fallback_triggered_total",
			Help:      "Weak-result fallback chain activations",
		},
	)
)

func observeToolDuration(tool string, d time.Duration) {
	toolDurationSeconds.WithLabelValues(tool).Observe(d.Seconds())
}

func recordFallbackTriggered() {
	fallbackTriggeredTotal.Inc()
}
