// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/AleutianAI/ClaimsGuardian/services/agents"
	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
	"github.com/AleutianAI/ClaimsGuardian/services/validation"
	"github.com/spf13/cobra"
)

// runValidate validates one or more claim JSON files fully offline: no
// LLM narration, no context store, just the agents against the local
// ruleset. Exits non-zero when any claim is flagged or rejected.
func runValidate(cmd *cobra.Command, args []string) error {
	store, err := codestore.LoadFile(rulesPath)
	if err != nil {
		return fmt.Errorf("load ruleset %s: %w", rulesPath, err)
	}
	defer store.Close()

	pipeline := validation.NewPipeline(store, agents.Config{CostThreshold: costThreshold})

	clean := true
	for _, path := range args {
		result, err := validateFile(cmd.Context(), pipeline, path)
		if err != nil {
			return err
		}
		if result.OverallStatus != claims.StatusPassed {
			clean = false
		}
		if outputJSON {
			payload, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal result for %s: %w", path, err)
			}
			fmt.Println(string(payload))
			continue
		}
		printSummary(path, result)
	}

	if !clean {
		os.Exit(1)
	}
	return nil
}

func validateFile(ctx context.Context, pipeline *validation.Pipeline, path string) (*claims.ValidationResult, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read claim %s: %w", path, err)
	}

	var claim claims.Claim
	if err := json.Unmarshal(payload, &claim); err != nil {
		return nil, fmt.Errorf("parse claim %s: %w", path, err)
	}
	if err := claim.Validate(); err != nil {
		return nil, fmt.Errorf("claim %s failed validation: %w", path, err)
	}

	result, err := pipeline.Validate(ctx, &claim)
	if err != nil {
		return nil, fmt.Errorf("validate claim %s: %w", path, err)
	}
	return result, nil
}

func printSummary(path string, result *claims.ValidationResult) {
	fmt.Printf("%s: %s (risk %.0f, %d finding(s), cost impact $%.2f)\n",
		path, result.OverallStatus, result.RiskScore, len(result.Findings), result.TotalCostImpact)
	for _, f := range result.Findings {
		fmt.Printf("  [%s] %s: %s\n", f.Severity, f.IssueType, f.Description)
		if f.SuggestedFix != nil {
			fmt.Printf("      fix: %s\n", *f.SuggestedFix)
		}
	}
}
