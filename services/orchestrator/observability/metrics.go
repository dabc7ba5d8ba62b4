// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the service.
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "csagent"

const agentSubsystem = "agent"

// AgentMetrics holds the Prometheus metrics for answer resolution.
//
// Initialize once at startup via InitMetrics().
type AgentMetrics struct {
	// ResolutionsTotal counts chat resolutions by outcome.
	// Labels: outcome (cache_hit, refusal, answered, error)
	ResolutionsTotal *prometheus.CounterVec

	// ResolutionDurationSeconds measures end-to-end resolution latency.
	// Labels: outcome
	ResolutionDurationSeconds *prometheus.HistogramVec

	// RetrievalHits observes how many knowledge entries fed each prompt.
	RetrievalHits prometheus.Histogram

	// ActiveResolutions tracks in-flight chat requests.
	ActiveResolutions prometheus.Gauge
}

// DefaultMetrics is the singleton instance of AgentMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *AgentMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once
// at application startup; a second call panics on duplicate
// registration.
func InitMetrics() *AgentMetrics {
	DefaultMetrics = &AgentMetrics{
		ResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "resolutions_total",
				Help:      "Total chat resolutions by outcome",
			},
			[]string{"outcome"},
		),

		ResolutionDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "resolution_duration_seconds",
				Help:      "End-to-end chat resolution latency in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1.0, 2.5, 5.0, 15.0, 45.0},
			},
			[]string{"outcome"},
		),

		RetrievalHits: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "retrieval_hits",
				Help:      "Knowledge entries retrieved per answered question",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
		),

		ActiveResolutions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: agentSubsystem,
				Name:      "active_resolutions",
				Help:      "Currently in-flight chat requests",
			},
		),
	}
	return DefaultMetrics
}

// ObserveResolution records one finished resolution. Safe to call with
// a nil receiver so handlers work when metrics are not initialized.
func (m *AgentMetrics) ObserveResolution(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	m.ResolutionDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}

// ObserveHits records the retrieval hit count for an answered question.
func (m *AgentMetrics) ObserveHits(hits int) {
	if m == nil {
		return
	}
	m.RetrievalHits.Observe(float64(hits))
}

// TrackActive increments the in-flight gauge and returns the matching
// decrement, for use with defer.
func (m *AgentMetrics) TrackActive() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveResolutions.Inc()
	return m.ActiveResolutions.Dec
}
