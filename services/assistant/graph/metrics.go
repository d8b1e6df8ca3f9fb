// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "campusmind"
	metricsSubsystem = "graph"
)

var (
	nodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "node_duration_seconds",
		Help:      "Wall time spent in each graph node.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"node"})

	turnOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "turn_outcomes_total",
		Help:      "Completed turns by terminal verification label.",
	}, []string{"outcome"})

	turnRetries = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "turn_retries",
		Help:      "Verification retries consumed per completed turn.",
		Buckets:   []float64{0, 1, 2, 3, 4},
	})

	documentsExcluded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "documents_excluded_total",
		Help:      "Evidence documents dropped by the relevance filter.",
	}, []string{"reason"})
)

func recordNodeDuration(node string, d time.Duration) {
	nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

func recordTurnOutcome(outcome Label, retries int) {
	turnOutcomes.WithLabelValues(string(outcome)).Inc()
	turnRetries.Observe(float64(retries))
}

func recordDocumentExcluded(reason string) {
	documentsExcluded.WithLabelValues(reason).Inc()
}
