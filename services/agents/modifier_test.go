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

func TestModifierValidator(t *testing.T) {
	store := newTestStore()
	v := &ModifierValidator{}
	ctx := context.Background()

	t.Run("clean lines yield no findings", func(t *testing.T) {
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Modifiers: []string{"25"}, Units: 1, Charge: 125})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("modifier outside allow list", func(t *testing.T) {
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Modifiers: []string{"59"}, Units: 1, Charge: 125})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, claims.IssueInvalidModifier, findings[0].IssueType)
		assert.Equal(t, claims.SeverityMedium, findings[0].Severity)
		require.NotNil(t, findings[0].SuggestedFix)
		assert.Contains(t, *findings[0].SuggestedFix, "25")
	})

	t.Run("no allow list means no opinion", func(t *testing.T) {
		// 99285 has no allow-list in the store; arbitrary modifiers pass.
		claim := newAgentClaim([]string{"I21.9"},
			claims.Procedure{CPT: "99285", Modifiers: []string{"ZZ"}, Units: 1, Charge: 900})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("bilateral with laterality conflict", func(t *testing.T) {
		claim := newAgentClaim([]string{"I21.9"},
			claims.Procedure{CPT: "99285", Modifiers: []string{"50", "LT"}, Units: 1, Charge: 900})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, claims.IssueModifierConflict, findings[0].IssueType)
		assert.Equal(t, claims.SeverityHigh, findings[0].Severity)
	})

	t.Run("lt and rt together conflict", func(t *testing.T) {
		claim := newAgentClaim([]string{"I21.9"},
			claims.Procedure{CPT: "99285", Modifiers: []string{"LT", "RT"}, Units: 1, Charge: 900})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, claims.IssueModifierConflict, findings[0].IssueType)
	})

	t.Run("59 with x modifier is redundant", func(t *testing.T) {
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "82947", Modifiers: []string{"59", "XU"}, Units: 1, Charge: 12})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, claims.IssueModifierConflict, findings[0].IssueType)
		assert.Equal(t, claims.SeverityMedium, findings[0].Severity)
		require.NotNil(t, findings[0].SuggestedFix)
		assert.Contains(t, *findings[0].SuggestedFix, "XU")
	})

	t.Run("tc with 26 is critical", func(t *testing.T) {
		claim := newAgentClaim([]string{"I21.9"},
			claims.Procedure{CPT: "99285", Modifiers: []string{"TC", "26"}, Units: 1, Charge: 900})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, claims.IssueModifierConflict, findings[0].IssueType)
		assert.Equal(t, claims.SeverityCritical, findings[0].Severity)
	})

	t.Run("em with procedure needs modifier 25", func(t *testing.T) {
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 125},
			claims.Procedure{CPT: "80053", Units: 1, Charge: 45})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, claims.IssueMissingModifier25, findings[0].IssueType)
	})

	t.Run("modifier 25 present satisfies the check", func(t *testing.T) {
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Modifiers: []string{"25"}, Units: 1, Charge: 125},
			claims.Procedure{CPT: "80053", Units: 1, Charge: 45})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("preventive em exempt from modifier 25", func(t *testing.T) {
		claim := newAgentClaim([]string{"Z00.00"},
			claims.Procedure{CPT: "99385", Units: 1, Charge: 180},
			claims.Procedure{CPT: "80053", Units: 1, Charge: 45})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("em alone does not need modifier 25", func(t *testing.T) {
		claim := newAgentClaim([]string{"I10"},
			claims.Procedure{CPT: "99213", Units: 1, Charge: 125})
		findings, err := v.Evaluate(ctx, claim, store)
		require.NoError(t, err)
		assert.Empty(t, findings)
	})
}
