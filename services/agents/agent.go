// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agents implements the validation agents that evaluate a claim
// against the coding reference tables.
//
// Each agent is a pure evaluator: it reads the claim snapshot and the code
// store and returns findings. Agents never mutate the claim, never depend
// on each other, and degrade to "no finding" on unknown codes. The
// orchestrator runs them concurrently; their registration order in
// Registry() is the deterministic tie-breaker when findings are merged.
package agents

import (
	"context"
	"strings"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
)

// Agent is a single rule evaluator.
//
// Evaluate must be free of side effects on the claim and on other agents'
// state. A returned error marks the whole agent run as failed; partial
// findings from a failed run are discarded.
type Agent interface {
	Name() string
	Evaluate(ctx context.Context, claim *claims.Claim, store codestore.Store) ([]claims.Finding, error)
}

// Config carries the tunables agents accept.
type Config struct {
	// CostThreshold is the relative charge deviation beyond which the
	// cost analyzer flags a line. Zero means the 0.50 default.
	CostThreshold float64
}

// Registry returns the five agents in their fixed registration order.
//
// The order is part of the aggregation contract: findings from agent i
// always sort ahead of findings from agent j (i < j) at equal severity.
// Do not reorder.
func Registry(cfg Config) []Agent {
	return []Agent{
		&CPTICDValidator{},
		&BundlingValidator{},
		&ModifierValidator{},
		&DemographicValidator{},
		NewCostAnalyzer(cfg.CostThreshold),
	}
}

// =============================================================================
// Shared Code Classification Helpers
// =============================================================================

// distinctServiceModifiers are the modifiers that mark a service as
// separately billable (NCCI override set).
var distinctServiceModifiers = []string{"59", "XE", "XP", "XS", "XU"}

// preventiveVisitCodes are the preventive E/M codes (new and established
// patients) that are exempt from modifier-25 requirements.
var preventiveVisitCodes = map[string]bool{
	"99381": true, "99382": true, "99383": true, "99384": true,
	"99385": true, "99386": true, "99387": true,
	"99391": true, "99392": true, "99393": true, "99394": true,
	"99395": true, "99396": true, "99397": true,
}

// isEMCode reports whether a CPT code is an evaluation & management code.
func isEMCode(cpt string) bool {
	return strings.HasPrefix(cpt, "992") || strings.HasPrefix(cpt, "999")
}

// preventiveCodeForAge returns the age-appropriate preventive visit code.
func preventiveCodeForAge(age int) string {
	switch {
	case age < 1:
		return "99381"
	case age <= 4:
		return "99382"
	case age <= 11:
		return "99383"
	case age <= 17:
		return "99384"
	case age <= 39:
		return "99385"
	case age <= 64:
		return "99386"
	default:
		return "99387"
	}
}
