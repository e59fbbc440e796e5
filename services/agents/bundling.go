// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"context"
	"fmt"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
)

// BundlingValidator flags procedure pairs that NCCI edits require to be
// billed as a single bundled code.
//
// Every unordered pair of lines is checked in both orientations, so the
// outcome is independent of the order procedures appear on the claim. An
// edit with modifier indicator "1" is suppressed when either line carries
// a distinct-service modifier (59 or XE/XP/XS/XU); indicator "0" edits can
// never be overridden; indicator "9" edits do not apply.
type BundlingValidator struct{}

func (v *BundlingValidator) Name() string { return "Bundling Validator" }

func (v *BundlingValidator) Evaluate(ctx context.Context, claim *claims.Claim, store codestore.Store) ([]claims.Finding, error) {
	if len(claim.Procedures) < 2 {
		return nil, nil
	}

	var findings []claims.Finding
	for i := 0; i < len(claim.Procedures); i++ {
		for j := i + 1; j < len(claim.Procedures); j++ {
			// Check both orientations; the edit table is keyed by
			// (comprehensive, component) and claim order is arbitrary.
			f, err := v.checkPair(ctx, store, claim.Procedures[i], claim.Procedures[j])
			if err != nil {
				return nil, err
			}
			if f == nil {
				f, err = v.checkPair(ctx, store, claim.Procedures[j], claim.Procedures[i])
				if err != nil {
					return nil, err
				}
			}
			if f != nil {
				findings = append(findings, *f)
			}
		}
	}
	return findings, nil
}

// checkPair evaluates one orientation: comp as the column-1 code, part as
// the column-2 (component) code whose separate billing is suspect.
func (v *BundlingValidator) checkPair(ctx context.Context, store codestore.Store,
	comp, part claims.Procedure) (*claims.Finding, error) {

	edit, err := store.LookupBundlingEdit(ctx, comp.CPT, part.CPT)
	if err != nil {
		return nil, fmt.Errorf("lookup bundling edit %s/%s: %w", comp.CPT, part.CPT, err)
	}
	if edit == nil || edit.ModifierIndicator == "9" {
		return nil, nil
	}

	if edit.ModifierIndicator == "1" &&
		(comp.HasAnyModifier(distinctServiceModifiers...) || part.HasAnyModifier(distinctServiceModifiers...)) {
		return nil, nil
	}

	explanation := edit.Rationale
	if explanation == "" {
		explanation = "These procedures should not be billed separately according to NCCI edits"
	}
	fix := fmt.Sprintf("Remove %s or add modifier 59/XE/XP/XS/XU if the services were distinct", part.CPT)

	return &claims.Finding{
		AgentName:       v.Name(),
		IssueType:       claims.IssueUnbundlingViolation,
		Severity:        claims.SeverityHigh,
		Description:     fmt.Sprintf("CPT %s is bundled into %s", part.CPT, comp.CPT),
		Explanation:     explanation,
		ConfidenceScore: 0.90,
		CostImpact:      claims.CostImpactOf(part.Charge * float64(part.Units)),
		SuggestedFix:    &fix,
	}, nil
}
