// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"sync"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
)

// Stats is a point-in-time snapshot of pipeline activity since startup.
// Prometheus carries the full time series; this feeds the stats endpoint
// and the CLI.
type Stats struct {
	ClaimsValidated int64            `json:"claims_validated"`
	ByStatus        map[string]int64 `json:"by_status"`
	FindingsTotal   int64            `json:"findings_total"`
	AgentFailures   int64            `json:"agent_failures"`
	AverageScore    float64          `json:"average_risk_score"`
}

// statsTracker accumulates pipeline counters under a mutex.
type statsTracker struct {
	mu        sync.Mutex
	validated int64
	byStatus  map[claims.Status]int64
	findings  int64
	failures  int64
	scoreSum  float64
}

func newStatsTracker() *statsTracker {
	return &statsTracker{byStatus: make(map[claims.Status]int64)}
}

func (t *statsTracker) record(result *claims.ValidationResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.validated++
	t.byStatus[result.OverallStatus]++
	t.findings += int64(len(result.Findings))
	t.failures += int64(len(result.AgentFailures))
	t.scoreSum += result.RiskScore
}

func (t *statsTracker) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	byStatus := make(map[string]int64, len(t.byStatus))
	for status, n := range t.byStatus {
		byStatus[string(status)] = n
	}
	stats := Stats{
		ClaimsValidated: t.validated,
		ByStatus:        byStatus,
		FindingsTotal:   t.findings,
		AgentFailures:   t.failures,
	}
	if t.validated > 0 {
		stats.AverageScore = t.scoreSum / float64(t.validated)
	}
	return stats
}
