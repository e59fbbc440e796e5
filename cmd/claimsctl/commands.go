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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	rulesPath     string
	costThreshold float64
	serverURL     string
	outputJSON    bool

	rootCmd = &cobra.Command{
		Use:   "claimsctl",
		Short: "A cli to validate medical claims and inspect the claims service",
		Long: `claimsctl validates medical claims against the code reference
rules, either fully offline against a local YAML ruleset or by talking
to a running claims validation service.`,
	}

	// --- Offline validation ---
	validateCmd = &cobra.Command{
		Use:   "validate [claim.json...]",
		Short: "Validate claim files offline against a local ruleset",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate, // Defined in cmd_validate.go
	}

	// --- Server inspection ---
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show validation statistics from a running claims service",
		RunE:  runStats, // Defined in cmd_stats.go
	}
)

func init() {
	validateCmd.Flags().StringVar(&rulesPath, "rules", "./config/rules.yaml",
		"Path to the YAML code reference ruleset")
	validateCmd.Flags().Float64Var(&costThreshold, "cost-threshold", 0.50,
		"Relative charge deviation that triggers a cost finding")
	validateCmd.Flags().BoolVar(&outputJSON, "json", false,
		"Print the full result as JSON instead of a summary")

	statsCmd.Flags().StringVar(&serverURL, "server", "http://localhost:12220",
		"Base URL of the claims validation service")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statsCmd)
}
