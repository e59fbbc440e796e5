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
	"testing"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostAnalyzer(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	t.Run("charge near reference passes", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 140})
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("overcharge beyond default threshold is medium", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		// $200 vs $125 reference: 60% over the 50% default.
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 200})
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)

		f := findings[0]
		assert.Equal(t, claims.IssueCostOutlier, f.IssueType)
		assert.Equal(t, claims.SeverityMedium, f.Severity)
		require.NotNil(t, f.CostImpact)
		assert.InDelta(t, 75.0, *f.CostImpact, 0.001)
	})

	t.Run("overcharge beyond double reference is high", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		// 140% over the reference: the line outlier upgrades to high and
		// the claim total trips the aggregate check too.
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 300})
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 2)
		assert.Equal(t, claims.IssueCostOutlier, findings[0].IssueType)
		assert.Equal(t, claims.SeverityHigh, findings[0].Severity)
		assert.Equal(t, claims.IssueHighTotalCharge, findings[1].IssueType)
	})

	t.Run("tighter threshold catches smaller deviations", func(t *testing.T) {
		// $170 vs $125 is 36% over: clean at the default, flagged at 0.30.
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 170})

		loose, err := NewCostAnalyzer(0).Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, loose)

		tight, err := NewCostAnalyzer(0.30).Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, tight, 1)
		assert.Equal(t, claims.IssueCostOutlier, tight[0].IssueType)
	})

	t.Run("suspiciously low charge is flagged low severity", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 20})
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, claims.IssueUnusualChargeLow, findings[0].IssueType)
		assert.Equal(t, claims.SeverityLow, findings[0].Severity)
	})

	t.Run("upcoding against preventive diagnosis", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		claim := newAgentClaim([]string{"Z00.00"},
			claims.Procedure{CPT: "99215", Units: 1, Charge: 300})
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)

		f := findings[0]
		assert.Equal(t, claims.IssuePotentialUpcoding, f.IssueType)
		assert.Equal(t, claims.SeverityHigh, f.Severity)
		// Delta against the downgrade target 99213 ($125 reference).
		require.NotNil(t, f.CostImpact)
		assert.InDelta(t, 175.0, *f.CostImpact, 0.001)
		require.NotNil(t, f.SuggestedFix)
		assert.Contains(t, *f.SuggestedFix, "99213")
	})

	t.Run("no upcoding finding without preventive diagnosis", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		claim := newAgentClaim([]string{"I21.9"},
			claims.Procedure{CPT: "99215", Units: 1, Charge: 300})
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("many procedures flagged", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		procs := make([]claims.Procedure, 6)
		for i := range procs {
			procs[i] = claims.Procedure{CPT: "80053", Units: 1, Charge: 45}
		}
		claim := newAgentClaim([]string{"I10"}, procs...)
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Contains(t, findingTypes(findings), claims.IssueHighProcedureCount)
	})

	t.Run("total far above summed reference", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 125},
			claims.Procedure{CPT: "80053", Units: 1, Charge: 45})
		// Reference sum is $170; inflate the claim total well past 175%.
		claim.TotalCharge = 500
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Contains(t, findingTypes(findings), claims.IssueHighTotalCharge)
	})

	t.Run("unknown procedure contributes nothing", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "00000", Units: 1, Charge: 5000})
		findings, err := a.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		a := NewCostAnalyzer(0)
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 125})
		_, err := a.Evaluate(ctx, claim, errorStore{})
		require.ErrorIs(t, err, errStoreDown)
	})
}
