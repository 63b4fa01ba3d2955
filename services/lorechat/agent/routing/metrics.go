// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var routeDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vaultsage",
		Subsystem: "routing",
		Name:      "decisions_total",
		Help:      "Route decisions by kind (forced, planner_supplied, read_intent)",
	},
	[]string{"decision"},
)

func recordRouteDecision(decision string) {
	routeDecisionsTotal.WithLabelValues(decision).Inc()
}
