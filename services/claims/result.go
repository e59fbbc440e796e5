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
// Overall Status
// =============================================================================

// Status is the derived disposition of a validated claim.
type Status string

const (
	// StatusPassed means no findings pushed the risk score past the
	// flagging threshold.
	StatusPassed Status = "passed"

	// StatusFlagged means the claim needs human review before payment.
	StatusFlagged Status = "flagged"

	// StatusRejected means a critical finding or an extreme score makes
	// the claim unpayable as submitted.
	StatusRejected Status = "rejected"
)

// =============================================================================
// Validation Result
// =============================================================================

// AgentFailure records a validation agent that errored or timed out.
//
// A failed agent contributes no findings; the failure itself is surfaced
// here for observability rather than failing the whole validation.
type AgentFailure struct {
	AgentName string `json:"agent_name"`
	Error     string `json:"error"`
}

// ValidationResult is the aggregated outcome of running all validation
// agents against one claim.
//
// Findings are in stable order: severity descending, ties broken by the
// producing agent's registration order, then by the order the agent emitted
// them. RiskScore and OverallStatus are pure functions of the finding list,
// so identical claims always produce identical results.
type ValidationResult struct {
	RunID            string         `json:"run_id"`
	ClaimID          string         `json:"claim_id"`
	OverallStatus    Status         `json:"overall_status"`
	RiskScore        float64        `json:"risk_score"`
	Findings         []Finding      `json:"issues"`
	TotalCostImpact  float64        `json:"total_cost_impact"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	AgentFailures    []AgentFailure `json:"agent_failures,omitempty"`
	Summary          string         `json:"summary,omitempty"`
}
