// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package claims

// =============================================================================
// Severity
// =============================================================================

// Severity is the ordered seriousness of a finding: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRanks maps severities to their position in the order.
// Higher rank means more severe.
var severityRanks = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the severity's position in the fixed order.
// Unknown severities rank below low so malformed data never outranks real findings.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is a member of the fixed severity set.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// =============================================================================
// Issue Types
// =============================================================================

// Stable issue-type tags produced by the validation agents.
// These are part of the API contract; renaming one is a breaking change.
const (
	IssueProcedureDiagnosisMismatch   = "procedure_diagnosis_mismatch"
	IssuePreventiveComplexityMismatch = "preventive_complexity_mismatch"
	IssueMissingDiagnosis             = "missing_diagnosis"
	IssueUnbundlingViolation          = "unbundling_violation"
	IssueInvalidModifier              = "invalid_modifier"
	IssueModifierConflict             = "modifier_conflict"
	IssueMissingModifier25            = "missing_modifier_25"
	IssueDemographicMismatch          = "demographic_mismatch"
	IssueCostOutlier                  = "cost_outlier"
	IssuePotentialUpcoding            = "potential_upcoding"
	IssueHighProcedureCount           = "high_procedure_count"
	IssueHighTotalCharge              = "high_total_charge"
	IssueUnusualChargeLow             = "unusual_charge_low"
)

// =============================================================================
// Finding
// =============================================================================

// Finding is a single issue raised by a validation agent against a claim.
//
// AgentName identifies the producing agent. CostImpact is nil when the
// finding has no measurable monetary effect; when set it is non-negative.
// Explanation and SuggestedFix start as the agent's short rationale and may
// be replaced by the explanation service after aggregation.
type Finding struct {
	AgentName       string   `json:"agent_name"`
	IssueType       string   `json:"issue_type"`
	Severity        Severity `json:"severity"`
	Description     string   `json:"description"`
	Explanation     string   `json:"explanation,omitempty"`
	ConfidenceScore float64  `json:"confidence_score"`
	CostImpact      *float64 `json:"cost_impact,omitempty"`
	SuggestedFix    *string  `json:"suggested_fix,omitempty"`
}

// CostImpactOf is a helper for the common "set impact only when positive"
// pattern in the agents. Returns nil for non-positive amounts.
func CostImpactOf(amount float64) *float64 {
	if amount <= 0 {
		return nil
	}
	return &amount
}
