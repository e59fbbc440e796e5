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

import "github.com/AleutianAI/ClaimsGuardian/services/claims"

// severityWeights are the additive risk contributions per finding.
var severityWeights = map[claims.Severity]float64{
	claims.SeverityCritical: 40,
	claims.SeverityHigh:     25,
	claims.SeverityMedium:   12,
	claims.SeverityLow:      5,
}

const (
	// volumePenaltyPerFinding is added for each finding past the first
	// volumePenaltyFreeCount: many small issues on one claim compound.
	volumePenaltyPerFinding = 3
	volumePenaltyFreeCount  = 3

	maxRiskScore = 100

	// rejectScoreThreshold rejects a claim outright on accumulated risk
	// even without a single critical finding.
	rejectScoreThreshold = 90

	// flagScoreThreshold marks a claim for manual review.
	flagScoreThreshold = 20
)

// RiskScore computes the claim risk score from the merged findings.
//
// The score is the sum of per-severity weights plus a volume penalty for
// every finding past the third, capped at 100. It is a pure function of
// the finding list, so identical findings always produce identical scores.
func RiskScore(findings []claims.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}

	var score float64
	for _, f := range findings {
		score += severityWeights[f.Severity]
	}
	if extra := len(findings) - volumePenaltyFreeCount; extra > 0 {
		score += float64(extra * volumePenaltyPerFinding)
	}
	if score > maxRiskScore {
		score = maxRiskScore
	}
	return score
}

// StatusFor derives the overall status from the findings and score. Any
// critical finding rejects regardless of score.
func StatusFor(findings []claims.Finding, score float64) claims.Status {
	for _, f := range findings {
		if f.Severity == claims.SeverityCritical {
			return claims.StatusRejected
		}
	}
	switch {
	case score >= rejectScoreThreshold:
		return claims.StatusRejected
	case score >= flagScoreThreshold:
		return claims.StatusFlagged
	default:
		return claims.StatusPassed
	}
}
