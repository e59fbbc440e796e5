// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
)

const systemRolePreamble = `You are a medical billing compliance assistant reviewing the results of an automated claim validation. Explain findings in plain language a billing specialist can act on. Be factual and concise; do not speculate beyond the validation results, and do not give medical advice.`

// buildSystemContext assembles the shared system prompt for one validated
// claim: the reviewer role, the claim payload, reference descriptions for
// every code on the claim, and the findings overview.
//
// The output is deterministic for a given (claim, rule snapshot, result)
// so it can be content-addressed and reused across the per-finding
// explanation calls and any follow-up conversation.
func buildSystemContext(ctx context.Context, store codestore.Store,
	claim *claims.Claim, result *claims.ValidationResult) (string, error) {

	var b strings.Builder
	b.WriteString(systemRolePreamble)
	b.WriteString("\n\n## Claim\n")

	claimJSON, err := json.MarshalIndent(claim, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal claim: %w", err)
	}
	b.Write(claimJSON)

	b.WriteString("\n\n## Code Reference\n")
	for _, dxCode := range claim.DiagnosisCodes {
		dx, err := store.LookupDiagnosis(ctx, dxCode)
		if err != nil {
			return "", fmt.Errorf("lookup diagnosis %s: %w", dxCode, err)
		}
		if dx != nil {
			fmt.Fprintf(&b, "- ICD-10 %s: %s (complexity tier %d)\n", dx.Code, dx.Description, dx.ComplexityTier)
		} else {
			fmt.Fprintf(&b, "- ICD-10 %s: not in reference data\n", dxCode)
		}
	}
	for _, proc := range claim.Procedures {
		cpt, err := store.LookupProcedure(ctx, proc.CPT)
		if err != nil {
			return "", fmt.Errorf("lookup procedure %s: %w", proc.CPT, err)
		}
		if cpt != nil {
			fmt.Fprintf(&b, "- CPT %s: %s (typical charge $%.2f)\n", cpt.Code, cpt.Description, cpt.ReferenceCharge)
		} else {
			fmt.Fprintf(&b, "- CPT %s: not in reference data\n", proc.CPT)
		}
	}

	b.WriteString("\n## Validation Result\n")
	fmt.Fprintf(&b, "Status: %s, risk score %.0f, %d finding(s).\n",
		result.OverallStatus, result.RiskScore, len(result.Findings))
	for i, f := range result.Findings {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, f.Severity, f.IssueType, f.Description)
	}

	return b.String(), nil
}

// findingPrompt is the per-finding user message.
func findingPrompt(f claims.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Explain finding %q in 2-3 sentences for the billing specialist handling this claim. ", f.Description)
	b.WriteString("Cover why it was flagged and what to verify or correct.")
	if f.SuggestedFix != nil {
		fmt.Fprintf(&b, " The validator suggests: %s", *f.SuggestedFix)
	}
	return b.String()
}

// summaryPrompt asks for the whole-claim narrative.
func summaryPrompt(result *claims.ValidationResult) string {
	return fmt.Sprintf(
		"Summarize this validation result in at most 4 sentences: overall status %s, risk score %.0f, %d finding(s). State the most important issue first and the recommended next step.",
		result.OverallStatus, result.RiskScore, len(result.Findings))
}
