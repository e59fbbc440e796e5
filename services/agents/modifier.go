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
	"strings"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
)

// ModifierValidator checks modifier usage on each procedure line.
//
// Checks, in order: modifiers against the store's per-code allow-list,
// contradictory modifier combinations (bilateral vs laterality, 59 vs the
// more specific X modifiers, technical vs professional component), and the
// modifier-25 requirement when an E/M service is billed alongside a
// procedure on the same day.
type ModifierValidator struct{}

func (v *ModifierValidator) Name() string { return "Modifier Validator" }

func (v *ModifierValidator) Evaluate(ctx context.Context, claim *claims.Claim, store codestore.Store) ([]claims.Finding, error) {
	var findings []claims.Finding

	for _, proc := range claim.Procedures {
		fs, err := v.checkAllowList(ctx, store, proc)
		if err != nil {
			return nil, err
		}
		findings = append(findings, fs...)
		findings = append(findings, v.checkConflicts(proc)...)
	}

	findings = append(findings, v.checkModifier25(claim)...)
	return findings, nil
}

// checkAllowList flags modifiers outside the procedure's allow-list.
// A procedure with no allow-list in the store yields no finding.
func (v *ModifierValidator) checkAllowList(ctx context.Context, store codestore.Store,
	proc claims.Procedure) ([]claims.Finding, error) {

	if len(proc.Modifiers) == 0 {
		return nil, nil
	}
	cpt, err := store.LookupProcedure(ctx, proc.CPT)
	if err != nil {
		return nil, fmt.Errorf("lookup procedure %s: %w", proc.CPT, err)
	}
	if cpt == nil || len(cpt.AllowedModifiers) == 0 {
		return nil, nil
	}

	allowed := make(map[string]bool, len(cpt.AllowedModifiers))
	for _, m := range cpt.AllowedModifiers {
		allowed[m] = true
	}

	var findings []claims.Finding
	for _, mod := range proc.Modifiers {
		if allowed[mod] {
			continue
		}
		fix := fmt.Sprintf("Remove modifier %s; valid modifiers for %s: %s",
			mod, proc.CPT, strings.Join(cpt.AllowedModifiers, ", "))
		findings = append(findings, claims.Finding{
			AgentName:       v.Name(),
			IssueType:       claims.IssueInvalidModifier,
			Severity:        claims.SeverityMedium,
			Description:     fmt.Sprintf("Modifier %s is not valid for CPT %s", mod, proc.CPT),
			Explanation:     "The modifier is outside the allow-list for this procedure code",
			ConfidenceScore: 0.88,
			SuggestedFix:    &fix,
		})
	}
	return findings, nil
}

// checkConflicts flags contradictory modifier combinations on one line.
func (v *ModifierValidator) checkConflicts(proc claims.Procedure) []claims.Finding {
	var findings []claims.Finding

	// Bilateral (50) cannot combine with laterality (LT/RT).
	if proc.HasModifier("50") && proc.HasAnyModifier("LT", "RT") {
		fix := "Use either modifier 50 for bilateral, or LT/RT for unilateral procedures"
		findings = append(findings, claims.Finding{
			AgentName:       v.Name(),
			IssueType:       claims.IssueModifierConflict,
			Severity:        claims.SeverityHigh,
			Description:     fmt.Sprintf("CPT %s has modifier 50 with LT/RT", proc.CPT),
			Explanation:     "Cannot use the bilateral modifier (50) with laterality modifiers (LT/RT)",
			ConfidenceScore: 0.95,
			SuggestedFix:    &fix,
		})
	}

	// LT and RT together contradict each other on a single line.
	if proc.HasModifier("LT") && proc.HasModifier("RT") {
		fix := "Use modifier 50 for a bilateral procedure instead of both LT and RT"
		findings = append(findings, claims.Finding{
			AgentName:       v.Name(),
			IssueType:       claims.IssueModifierConflict,
			Severity:        claims.SeverityHigh,
			Description:     fmt.Sprintf("CPT %s has both LT and RT modifiers", proc.CPT),
			Explanation:     "Left and right laterality modifiers conflict on the same line",
			ConfidenceScore: 0.95,
			SuggestedFix:    &fix,
		})
	}

	// 59 is superseded by the more specific X modifiers.
	if proc.HasModifier("59") && proc.HasAnyModifier("XE", "XP", "XS", "XU") {
		var xUsed []string
		for _, m := range []string{"XE", "XP", "XS", "XU"} {
			if proc.HasModifier(m) {
				xUsed = append(xUsed, m)
			}
		}
		fix := fmt.Sprintf("Remove modifier 59, keep %s", xUsed[0])
		findings = append(findings, claims.Finding{
			AgentName:       v.Name(),
			IssueType:       claims.IssueModifierConflict,
			Severity:        claims.SeverityMedium,
			Description:     fmt.Sprintf("CPT %s has both modifier 59 and %s", proc.CPT, strings.Join(xUsed, ", ")),
			Explanation:     "X{EPSU} modifiers are more specific than 59; use only the X modifier",
			ConfidenceScore: 0.92,
			SuggestedFix:    &fix,
		})
	}

	// Technical (TC) and professional (26) components are mutually exclusive.
	if proc.HasModifier("TC") && proc.HasModifier("26") {
		fix := "Use either TC or 26, not both"
		findings = append(findings, claims.Finding{
			AgentName:       v.Name(),
			IssueType:       claims.IssueModifierConflict,
			Severity:        claims.SeverityCritical,
			Description:     fmt.Sprintf("CPT %s has both TC and 26 modifiers", proc.CPT),
			Explanation:     "TC (technical component) and 26 (professional component) are mutually exclusive",
			ConfidenceScore: 0.98,
			SuggestedFix:    &fix,
		})
	}

	return findings
}

// checkModifier25 flags non-preventive E/M lines billed with a procedure
// on the same day but missing modifier 25.
func (v *ModifierValidator) checkModifier25(claim *claims.Claim) []claims.Finding {
	var emLines []claims.Procedure
	hasOther := false
	for _, proc := range claim.Procedures {
		if isEMCode(proc.CPT) {
			emLines = append(emLines, proc)
		} else {
			hasOther = true
		}
	}
	if !hasOther {
		return nil
	}

	var findings []claims.Finding
	for _, em := range emLines {
		if preventiveVisitCodes[em.CPT] || em.HasModifier("25") {
			continue
		}
		fix := fmt.Sprintf("Add modifier 25 to %s", em.CPT)
		findings = append(findings, claims.Finding{
			AgentName:       v.Name(),
			IssueType:       claims.IssueMissingModifier25,
			Severity:        claims.SeverityMedium,
			Description:     fmt.Sprintf("Modifier 25 required on E/M code %s when billed with a procedure", em.CPT),
			Explanation:     "An E/M service on the same day as a procedure needs modifier 25 to show it was significant and separately identifiable",
			ConfidenceScore: 0.88,
			SuggestedFix:    &fix,
		})
	}
	return findings
}
