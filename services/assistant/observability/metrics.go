// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides request-level Prometheus metrics for the
// assistant service. Graph and oracle internals register their own metrics
// in their packages; this one covers the HTTP surface.
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "campusmind"
	httpSubsystem    = "http"
)

// ServiceMetrics holds the HTTP-surface metrics.
type ServiceMetrics struct {
	// TurnsTotal counts completed turns by endpoint and status.
	// Labels: endpoint (ask, ask_ws), status (success, error)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures end-to-end turn latency.
	// Labels: endpoint
	TurnDurationSeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance, initialized by InitMetrics.
// It defaults to a no-op-safe nil guard through RecordTurn.
var DefaultMetrics *ServiceMetrics

// InitMetrics creates and registers the service metrics. Call once at
// startup.
func InitMetrics() *ServiceMetrics {
	DefaultMetrics = &ServiceMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "turns_total",
				Help:      "Completed turns by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		),
		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "End-to-end turn latency.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"endpoint"},
		),
	}
	return DefaultMetrics
}

// RecordTurn records one completed turn. Safe to call when metrics are not
// initialized, which keeps handler tests free of metric setup.
func (m *ServiceMetrics) RecordTurn(endpoint string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.TurnsTotal.WithLabelValues(endpoint, status).Inc()
	m.TurnDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}
