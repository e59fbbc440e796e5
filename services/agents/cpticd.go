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

// CPTICDValidator checks that billed procedures are consistent with the
// documented diagnoses.
//
// Two classes of mismatch are flagged:
//
//   - A preventive (routine wellness) diagnosis paired with a
//     high-complexity procedure: the visit was billed as if it were
//     complex care.
//   - A complexity-tier gap between procedure and diagnosis: the wider the
//     gap, the more severe the finding.
type CPTICDValidator struct{}

func (v *CPTICDValidator) Name() string { return "CPT-ICD Validator" }

func (v *CPTICDValidator) Evaluate(ctx context.Context, claim *claims.Claim, store codestore.Store) ([]claims.Finding, error) {
	var findings []claims.Finding

	// E/M services must carry a documented diagnosis. The entry validator
	// already rejects empty diagnosis lists for API traffic; this guards
	// claims arriving through other paths.
	if len(claim.DiagnosisCodes) == 0 {
		for _, proc := range claim.Procedures {
			if isEMCode(proc.CPT) {
				findings = append(findings, claims.Finding{
					AgentName:       v.Name(),
					IssueType:       claims.IssueMissingDiagnosis,
					Severity:        claims.SeverityHigh,
					Description:     fmt.Sprintf("E/M code %s requires a diagnosis", proc.CPT),
					Explanation:     "Evaluation & Management services must have documented diagnosis codes",
					ConfidenceScore: 0.95,
				})
			}
		}
		return findings, nil
	}

	for _, dxCode := range claim.DiagnosisCodes {
		dx, err := store.LookupDiagnosis(ctx, dxCode)
		if err != nil {
			return nil, fmt.Errorf("lookup diagnosis %s: %w", dxCode, err)
		}
		if dx == nil {
			continue // unknown code: insufficient data, no finding
		}

		for _, proc := range claim.Procedures {
			cpt, err := store.LookupProcedure(ctx, proc.CPT)
			if err != nil {
				return nil, fmt.Errorf("lookup procedure %s: %w", proc.CPT, err)
			}
			if cpt == nil {
				continue
			}

			if dx.Preventive && cpt.ComplexityTier >= codestore.TierComplex {
				findings = append(findings, v.preventiveMismatch(ctx, claim, proc, cpt, store))
				continue // don't double-flag the same pair on the tier gap
			}

			gap := cpt.ComplexityTier - dx.ComplexityTier
			switch {
			case gap >= 2:
				findings = append(findings, claims.Finding{
					AgentName: v.Name(),
					IssueType: claims.IssueProcedureDiagnosisMismatch,
					Severity:  claims.SeverityHigh,
					Description: fmt.Sprintf("Procedure %s (%s) is inconsistent with diagnosis %s (%s)",
						proc.CPT, cpt.Description, dxCode, dx.Description),
					Explanation:     "The billed procedure's complexity is well above what the documented diagnosis supports",
					ConfidenceScore: 0.85,
				})
			case gap == 1 && dx.ComplexityTier == codestore.TierRoutine:
				findings = append(findings, claims.Finding{
					AgentName: v.Name(),
					IssueType: claims.IssueProcedureDiagnosisMismatch,
					Severity:  claims.SeverityMedium,
					Description: fmt.Sprintf("Procedure %s billed against routine diagnosis %s",
						proc.CPT, dxCode),
					Explanation:     "Review whether the procedure's complexity matches the documented diagnosis",
					ConfidenceScore: 0.70,
				})
			}
		}
	}

	return findings, nil
}

// preventiveMismatch builds the finding for a high-complexity procedure
// billed against a preventive diagnosis, including the cost delta against
// the age-appropriate preventive visit code when it is in the store.
func (v *CPTICDValidator) preventiveMismatch(ctx context.Context, claim *claims.Claim,
	proc claims.Procedure, cpt *codestore.Procedure, store codestore.Store) claims.Finding {

	expectedCode := preventiveCodeForAge(claim.PatientAge())

	var costImpact *float64
	if expected, err := store.LookupProcedure(ctx, expectedCode); err == nil && expected != nil {
		costImpact = claims.CostImpactOf(proc.Charge - expected.ReferenceCharge)
	}

	fix := fmt.Sprintf("Consider downcoding to %s or use preventive visit codes (99381-99397)", expectedCode)
	return claims.Finding{
		AgentName: v.Name(),
		IssueType: claims.IssuePreventiveComplexityMismatch,
		Severity:  claims.SeverityHigh,
		Description: fmt.Sprintf("High complexity code %s billed for routine preventive visit",
			proc.CPT),
		Explanation: fmt.Sprintf("Preventive visits are typically straightforward and don't justify high complexity codes. Expected %s for routine care.",
			expectedCode),
		ConfidenceScore: 0.85,
		CostImpact:      costImpact,
		SuggestedFix:    &fix,
	}
}
