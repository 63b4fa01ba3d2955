// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var turnDurationSeconds = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "vaultsage",
		Subsystem: "agent",
		Name:      "turn_duration_seconds",
		Help:      "Turn duration by final gate decision",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"decision"},
)

func observeTurn(decision string, d time.Duration) {
	turnDurationSeconds.WithLabelValues(decision).Observe(d.Seconds())
}
