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

// RangeRule restricts a lexicographic code range to a gender and/or age
// band. Range rules catch whole code families (e.g. all pregnancy codes)
// without requiring every member in the reference store.
type RangeRule struct {
	Start       string
	End         string
	Gender      string
	AgeMin      *int
	AgeMax      *int
	Description string
}

// defaultDiagnosisRangeRules cover the common definitionally gendered
// ICD-10 chapters.
var defaultDiagnosisRangeRules = []RangeRule{
	{Start: "O00", End: "O9A", Gender: "F", Description: "pregnancy, childbirth and the puerperium"},
	{Start: "Z34", End: "Z34.99", Gender: "F", Description: "supervision of normal pregnancy"},
	{Start: "N40", End: "N42.99", Gender: "M", Description: "disorders of the prostate"},
	{Start: "C61", End: "C61.99", Gender: "M", Description: "malignant neoplasm of prostate"},
}

// defaultProcedureRangeRules cover gendered CPT families.
var defaultProcedureRangeRules = []RangeRule{
	{Start: "59000", End: "59899", Gender: "F", Description: "maternity care and delivery"},
	{Start: "55700", End: "55899", Gender: "M", Description: "prostate procedures"},
}

// DemographicValidator checks age and gender restrictions on diagnosis and
// procedure codes against the patient, with age computed at the service
// date.
//
// A definitional gender incompatibility (e.g. a pregnancy code on a male
// patient) is high severity; age-range violations are medium. Each code
// yields at most one gender finding even when both the store record and a
// range rule match it.
type DemographicValidator struct {
	// DiagnosisRanges and ProcedureRanges default to the built-in rules
	// when nil.
	DiagnosisRanges []RangeRule
	ProcedureRanges []RangeRule
}

func (v *DemographicValidator) Name() string { return "Demographic Validator" }

func (v *DemographicValidator) Evaluate(ctx context.Context, claim *claims.Claim, store codestore.Store) ([]claims.Finding, error) {
	age := claim.PatientAge()
	gender := claim.Patient.Gender

	dxRanges := v.DiagnosisRanges
	if dxRanges == nil {
		dxRanges = defaultDiagnosisRangeRules
	}
	procRanges := v.ProcedureRanges
	if procRanges == nil {
		procRanges = defaultProcedureRangeRules
	}

	var findings []claims.Finding

	for _, dxCode := range claim.DiagnosisCodes {
		dx, err := store.LookupDiagnosis(ctx, dxCode)
		if err != nil {
			return nil, fmt.Errorf("lookup diagnosis %s: %w", dxCode, err)
		}

		genderFlagged := false
		if dx != nil {
			if dx.GenderRestriction != "" && dx.GenderRestriction != gender {
				findings = append(findings, v.genderFinding(dxCode, dx.Description, gender, dx.GenderRestriction))
				genderFlagged = true
			}
			findings = append(findings, v.ageFindings(dxCode, dx.AgeMin, dx.AgeMax, age)...)
		}

		// Range rules back-stop codes the store doesn't carry; skip the
		// gender aspect when the store record already flagged it.
		for _, rule := range dxRanges {
			if !codeInRange(dxCode, rule.Start, rule.End) {
				continue
			}
			if !genderFlagged && rule.Gender != "" && rule.Gender != gender {
				findings = append(findings, v.genderFinding(dxCode, rule.Description, gender, rule.Gender))
				genderFlagged = true
			}
			if dx == nil {
				findings = append(findings, v.ageFindings(dxCode, rule.AgeMin, rule.AgeMax, age)...)
			}
		}
	}

	for _, proc := range claim.Procedures {
		for _, rule := range procRanges {
			if !codeInRange(proc.CPT, rule.Start, rule.End) {
				continue
			}
			if rule.Gender != "" && rule.Gender != gender {
				findings = append(findings, v.genderFinding(proc.CPT, rule.Description, gender, rule.Gender))
			}
			findings = append(findings, v.ageFindings(proc.CPT, rule.AgeMin, rule.AgeMax, age)...)
		}
	}

	return findings, nil
}

func (v *DemographicValidator) genderFinding(code, desc, gender, required string) claims.Finding {
	if desc != "" {
		desc = " (" + desc + ")"
	}
	return claims.Finding{
		AgentName:       v.Name(),
		IssueType:       claims.IssueDemographicMismatch,
		Severity:        claims.SeverityHigh,
		Description:     fmt.Sprintf("Code %s%s is invalid for gender %s", code, desc, gender),
		Explanation:     fmt.Sprintf("This code is only valid for gender %s", required),
		ConfidenceScore: 0.99,
	}
}

func (v *DemographicValidator) ageFindings(code string, ageMin, ageMax *int, age int) []claims.Finding {
	var findings []claims.Finding
	if ageMin != nil && age < *ageMin {
		findings = append(findings, claims.Finding{
			AgentName:       v.Name(),
			IssueType:       claims.IssueDemographicMismatch,
			Severity:        claims.SeverityMedium,
			Description:     fmt.Sprintf("Code %s is invalid for age %d (minimum %d)", code, age, *ageMin),
			Explanation:     fmt.Sprintf("This code requires a minimum age of %d", *ageMin),
			ConfidenceScore: 0.95,
		})
	}
	if ageMax != nil && age > *ageMax {
		findings = append(findings, claims.Finding{
			AgentName:       v.Name(),
			IssueType:       claims.IssueDemographicMismatch,
			Severity:        claims.SeverityMedium,
			Description:     fmt.Sprintf("Code %s is unusual for age %d (typically %d or younger)", code, age, *ageMax),
			Explanation:     fmt.Sprintf("This code is typically used for patients aged %d or younger", *ageMax),
			ConfidenceScore: 0.75,
		})
	}
	return findings
}

// codeInRange reports whether code falls lexicographically inside
// [start, end], comparing on the range's prefix length so "O09" matches
// the O00-O9A chapter and "Z34.90" matches the Z34 family.
func codeInRange(code, start, end string) bool {
	n := len(start)
	if len(end) > n {
		n = len(end)
	}
	prefix := code
	if len(prefix) > n {
		prefix = prefix[:n]
	}
	return prefix >= start && prefix <= end
}
