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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/ClaimsGuardian/services/validation"
	"github.com/spf13/cobra"
)

// runStats fetches and prints /v1/stats from a running claims service.
func runStats(cmd *cobra.Command, args []string) error {
	url := strings.TrimSuffix(serverURL, "/") + "/v1/stats"

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build stats request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch stats from %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var stats validation.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return fmt.Errorf("parse stats response: %w", err)
	}

	fmt.Printf("claims validated: %d\n", stats.ClaimsValidated)
	for status, n := range stats.ByStatus {
		fmt.Printf("  %s: %d\n", status, n)
	}
	fmt.Printf("findings: %d\n", stats.FindingsTotal)
	fmt.Printf("agent failures: %d\n", stats.AgentFailures)
	fmt.Printf("average risk score: %.1f\n", stats.AverageScore)
	return nil
}
