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

const (
	// defaultCostThreshold is the relative deviation from the reference
	// charge beyond which a line is flagged.
	defaultCostThreshold = 0.50

	// severeCostDeviation upgrades an overcharge to high severity.
	severeCostDeviation = 1.00

	// underchargeFlagBelow flags suspiciously low charges.
	underchargeFlagBelow = -0.80

	// maxRoutineProcedureCount is the line count above which a claim is
	// flagged for an unusually high number of procedures.
	maxRoutineProcedureCount = 5

	// totalChargeDeviation flags a claim total well above the summed
	// reference charges.
	totalChargeDeviation = 0.75
)

// upcodeDowngrades maps high-complexity E/M codes to the code expected for
// a routine visit.
var upcodeDowngrades = map[string]string{
	"99205": "99203",
	"99215": "99213",
	"99285": "99283",
	"99223": "99221",
}

// CostAnalyzer flags charges that deviate from the reference average for
// their code, plus claim-level cost patterns: upcoding of E/M visits with
// routine diagnoses, unusually long claims, and totals far above the
// summed reference charges.
type CostAnalyzer struct {
	threshold float64
}

// NewCostAnalyzer builds a CostAnalyzer. A non-positive threshold selects
// the 0.50 default.
func NewCostAnalyzer(threshold float64) *CostAnalyzer {
	if threshold <= 0 {
		threshold = defaultCostThreshold
	}
	return &CostAnalyzer{threshold: threshold}
}

func (a *CostAnalyzer) Name() string { return "Cost Analyzer" }

func (a *CostAnalyzer) Evaluate(ctx context.Context, claim *claims.Claim, store codestore.Store) ([]claims.Finding, error) {
	var findings []claims.Finding

	var totalReference float64
	for _, proc := range claim.Procedures {
		cpt, err := store.LookupProcedure(ctx, proc.CPT)
		if err != nil {
			return nil, fmt.Errorf("lookup procedure %s: %w", proc.CPT, err)
		}
		if cpt == nil || cpt.ReferenceCharge <= 0 {
			continue
		}
		totalReference += cpt.ReferenceCharge * float64(proc.Units)
		findings = append(findings, a.checkVariance(proc, cpt)...)
	}

	fs, err := a.checkUpcoding(ctx, claim, store)
	if err != nil {
		return nil, err
	}
	findings = append(findings, fs...)

	if len(claim.Procedures) > maxRoutineProcedureCount {
		findings = append(findings, claims.Finding{
			AgentName:       a.Name(),
			IssueType:       claims.IssueHighProcedureCount,
			Severity:        claims.SeverityLow,
			Description:     fmt.Sprintf("Claim has %d procedures", len(claim.Procedures)),
			Explanation:     "Unusually high number of procedures on a single claim. Verify all are documented and medically necessary.",
			ConfidenceScore: 0.60,
		})
	}

	if totalReference > 0 {
		variance := (claim.TotalCharge - totalReference) / totalReference
		if variance > totalChargeDeviation {
			findings = append(findings, claims.Finding{
				AgentName: a.Name(),
				IssueType: claims.IssueHighTotalCharge,
				Severity:  claims.SeverityMedium,
				Description: fmt.Sprintf("Total charge $%.2f is %.0f%% above expected $%.2f",
					claim.TotalCharge, variance*100, totalReference),
				Explanation:     "Overall claim cost is significantly higher than typical charges for these procedures",
				ConfidenceScore: 0.70,
				CostImpact:      claims.CostImpactOf(claim.TotalCharge - totalReference),
			})
		}
	}

	return findings, nil
}

// checkVariance flags a line whose per-unit charge deviates from the
// reference by more than the configured threshold.
func (a *CostAnalyzer) checkVariance(proc claims.Procedure, cpt *codestore.Procedure) []claims.Finding {
	variance := (proc.Charge - cpt.ReferenceCharge) / cpt.ReferenceCharge

	if variance > a.threshold {
		severity := claims.SeverityMedium
		if variance > severeCostDeviation {
			severity = claims.SeverityHigh
		}
		fix := fmt.Sprintf("Verify the charge is correct. Expected range: $%.2f-$%.2f",
			cpt.ReferenceCharge*0.8, cpt.ReferenceCharge*1.2)
		return []claims.Finding{{
			AgentName: a.Name(),
			IssueType: claims.IssueCostOutlier,
			Severity:  severity,
			Description: fmt.Sprintf("CPT %s charge $%.2f is %.0f%% above average $%.2f",
				proc.CPT, proc.Charge, variance*100, cpt.ReferenceCharge),
			Explanation:     "Charge deviates significantly from the typical amount. Review documentation to justify the higher charge.",
			ConfidenceScore: 0.75,
			CostImpact:      claims.CostImpactOf((proc.Charge - cpt.ReferenceCharge) * float64(proc.Units)),
			SuggestedFix:    &fix,
		}}
	}

	if variance < underchargeFlagBelow {
		return []claims.Finding{{
			AgentName: a.Name(),
			IssueType: claims.IssueUnusualChargeLow,
			Severity:  claims.SeverityLow,
			Description: fmt.Sprintf("CPT %s charge $%.2f is %.0f%% below average $%.2f",
				proc.CPT, proc.Charge, -variance*100, cpt.ReferenceCharge),
			Explanation:     "Charge is unusually low. May indicate a billing error or contract discount.",
			ConfidenceScore: 0.60,
		}}
	}

	return nil
}

// checkUpcoding flags high-complexity E/M codes billed against routine
// (preventive) diagnoses, with the downgrade target's reference charge as
// the cost baseline.
func (a *CostAnalyzer) checkUpcoding(ctx context.Context, claim *claims.Claim, store codestore.Store) ([]claims.Finding, error) {
	hasRoutine := false
	for _, dxCode := range claim.DiagnosisCodes {
		dx, err := store.LookupDiagnosis(ctx, dxCode)
		if err != nil {
			return nil, fmt.Errorf("lookup diagnosis %s: %w", dxCode, err)
		}
		if dx != nil && dx.Preventive {
			hasRoutine = true
			break
		}
	}
	if !hasRoutine {
		return nil, nil
	}

	var findings []claims.Finding
	for _, proc := range claim.Procedures {
		expectedCode, ok := upcodeDowngrades[proc.CPT]
		if !ok {
			continue
		}
		var costImpact *float64
		if expected, err := store.LookupProcedure(ctx, expectedCode); err == nil && expected != nil {
			costImpact = claims.CostImpactOf(proc.Charge - expected.ReferenceCharge)
		}
		fix := fmt.Sprintf("Verify visit complexity. Consider downcoding to %s if appropriate.", expectedCode)
		findings = append(findings, claims.Finding{
			AgentName:   a.Name(),
			IssueType:   claims.IssuePotentialUpcoding,
			Severity:    claims.SeverityHigh,
			Description: fmt.Sprintf("Possible upcoding: %s billed for routine visit", proc.CPT),
			Explanation: fmt.Sprintf("High complexity code %s used with a routine diagnosis. Expected %s for routine care.",
				proc.CPT, expectedCode),
			ConfidenceScore: 0.85,
			CostImpact:      costImpact,
			SuggestedFix:    &fix,
		})
	}
	return findings, nil
}
