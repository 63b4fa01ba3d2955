// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package grounding

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vaultsage",
		Subsystem: "grounding",
		Name:      "gate_decisions_total",
		Help:      "Gate decisions by phase (pre, post) and outcome",
	},
	[]string{"phase", "decision"},
)

func recordGateDecision(phase, decision string) {
	gateDecisionsTotal.WithLabelValues(phase, decision).Inc()
}
