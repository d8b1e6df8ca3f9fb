// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var oracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "campusmind",
	Subsystem: "oracles",
	Name:      "calls_total",
	Help:      "Oracle invocations by oracle name and result.",
}, []string{"oracle", "result"})

func recordOracleCall(oracle, result string) {
	oracleCalls.WithLabelValues(oracle, result).Inc()
}
