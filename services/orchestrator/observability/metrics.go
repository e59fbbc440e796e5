// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the claims
// validation pipeline.
//
// # Description
//
// This package implements Prometheus metrics for monitoring claim
// validation. Metrics include:
//   - Validation counters (by status)
//   - Finding counters (by severity)
//   - Agent failure counters (by agent)
//   - Validation latency histograms
//   - Explanation cache hit/miss counters
//   - LLM request counters (by backend and status)
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "claimsguardian"

// Subsystem for validation pipeline metrics
const validationSubsystem = "validation"

// Subsystem for explanation/LLM metrics
const explainSubsystem = "explain"

// ValidationMetrics holds all Prometheus metrics for the validation pipeline.
//
// # Description
//
// Provides counters and histograms for monitoring validation throughput,
// agent health, and explanation caching. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type ValidationMetrics struct {
	// ValidationsTotal counts validated claims by overall status.
	// Labels: status (passed, flagged, rejected, error)
	ValidationsTotal *prometheus.CounterVec

	// FindingsTotal counts emitted findings by severity.
	// Labels: severity (critical, high, medium, low)
	FindingsTotal *prometheus.CounterVec

	// AgentFailuresTotal counts agent errors and timeouts.
	// Labels: agent
	AgentFailuresTotal *prometheus.CounterVec

	// ValidationDurationSeconds measures end-to-end validation latency.
	ValidationDurationSeconds prometheus.Histogram

	// ContextCacheRequestsTotal counts explanation context cache lookups.
	// Labels: outcome (hit, miss)
	ContextCacheRequestsTotal *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API calls by backend and status.
	// Labels: backend, status (success, error)
	LLMRequestsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of ValidationMetrics.
// Initialized by InitMetrics(); nil when metrics are disabled.
var DefaultMetrics *ValidationMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup, after the Prometheus registry is available.
//
// # Outputs
//
//   - *ValidationMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *ValidationMetrics {
	DefaultMetrics = &ValidationMetrics{
		ValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "claims_total",
				Help:      "Total validated claims by overall status",
			},
			[]string{"status"},
		),

		FindingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "findings_total",
				Help:      "Total findings emitted by severity",
			},
			[]string{"severity"},
		),

		AgentFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "agent_failures_total",
				Help:      "Total agent errors and timeouts by agent",
			},
			[]string{"agent"},
		),

		ValidationDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end claim validation latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		ContextCacheRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: explainSubsystem,
				Name:      "context_cache_requests_total",
				Help:      "Explanation context cache lookups by outcome",
			},
			[]string{"outcome"},
		),

		LLMRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: explainSubsystem,
				Name:      "llm_requests_total",
				Help:      "Total LLM API calls by backend and status",
			},
			[]string{"backend", "status"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Functions
// =============================================================================

// All helpers are nil-safe so callers never need to guard on whether
// metrics were initialized.

// RecordValidation records a completed validation.
func RecordValidation(status string, findingSeverities []string, duration time.Duration) {
	m := DefaultMetrics
	if m == nil {
		return
	}
	m.ValidationsTotal.WithLabelValues(status).Inc()
	for _, sev := range findingSeverities {
		m.FindingsTotal.WithLabelValues(sev).Inc()
	}
	m.ValidationDurationSeconds.Observe(duration.Seconds())
}

// RecordValidationError records a validation that returned an error.
func RecordValidationError() {
	if m := DefaultMetrics; m != nil {
		m.ValidationsTotal.WithLabelValues("error").Inc()
	}
}

// RecordAgentFailure records one agent error or timeout.
func RecordAgentFailure(agent string) {
	if m := DefaultMetrics; m != nil {
		m.AgentFailuresTotal.WithLabelValues(agent).Inc()
	}
}

// RecordCacheHit records an explanation context cache hit.
func RecordCacheHit() {
	if m := DefaultMetrics; m != nil {
		m.ContextCacheRequestsTotal.WithLabelValues("hit").Inc()
	}
}

// RecordCacheMiss records an explanation context cache miss.
func RecordCacheMiss() {
	if m := DefaultMetrics; m != nil {
		m.ContextCacheRequestsTotal.WithLabelValues("miss").Inc()
	}
}

// RecordLLMRequest records one LLM API call.
func RecordLLMRequest(backend string, success bool) {
	m := DefaultMetrics
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.LLMRequestsTotal.WithLabelValues(backend, status).Inc()
}
