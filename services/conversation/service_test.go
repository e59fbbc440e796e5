// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatRecorder captures the last Chat invocation.
type chatRecorder struct {
	system   string
	messages []llm.Message
	reply    string
	err      error
}

func (c *chatRecorder) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return c.reply, c.err
}

func (c *chatRecorder) Chat(_ context.Context, system string, messages []llm.Message, _ llm.GenerationParams) (string, error) {
	c.system = system
	c.messages = messages
	return c.reply, c.err
}

// staticProvider returns a fixed system context.
type staticProvider struct {
	system string
	err    error
}

func (p *staticProvider) SystemContext(_ context.Context, _ *claims.Claim, _ *claims.ValidationResult) (string, error) {
	return p.system, p.err
}

func conversationClaim() *claims.Claim {
	return &claims.Claim{
		ClaimID: "CLM-CONV-001",
		Patient: claims.Patient{
			Name: "Jane Doe", DOB: claims.NewDate(1990, time.May, 1),
			Gender: "F", InsuranceID: "INS-9",
		},
		Provider:       claims.Provider{Name: "Dr. Smith", NPI: "1234567890"},
		ServiceDate:    claims.NewDate(2024, time.March, 10),
		DiagnosisCodes: []string{"I10"},
		Procedures:     []claims.Procedure{{CPT: "99213", Units: 1, Charge: 125}},
		TotalCharge:    125,
	}
}

func conversationResult() *claims.ValidationResult {
	return &claims.ValidationResult{
		RunID:         "run-42",
		ClaimID:       "CLM-CONV-001",
		OverallStatus: claims.StatusPassed,
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("get before put is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "CLM-CONV-001")
		require.ErrorIs(t, err, ErrContextNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, conversationClaim(), conversationResult()))

		record, err := store.Get(ctx, "CLM-CONV-001")
		require.NoError(t, err)
		assert.Equal(t, "CLM-CONV-001", record.ClaimID)
		assert.Equal(t, "run-42", record.Result.RunID)
		assert.False(t, record.ValidatedAt.IsZero())
	})

	t.Run("revalidation overwrites", func(t *testing.T) {
		newer := conversationResult()
		newer.RunID = "run-43"
		require.NoError(t, store.Put(ctx, conversationClaim(), newer))

		record, err := store.Get(ctx, "CLM-CONV-001")
		require.NoError(t, err)
		assert.Equal(t, "run-43", record.Result.RunID)
	})
}

func TestServiceAsk(t *testing.T) {
	ctx := context.Background()

	newAskService := func(client llm.LLMClient, provider ContextProvider) *Service {
		store := NewMemoryStore()
		require.NoError(t, store.Put(ctx, conversationClaim(), conversationResult()))
		return NewService(client, "test", store, provider)
	}

	t.Run("answers a question about a validated claim", func(t *testing.T) {
		client := &chatRecorder{reply: "  The claim passed.  "}
		svc := newAskService(client, &staticProvider{system: "system context"})

		answer, err := svc.Ask(ctx, "CLM-CONV-001", "Why did it pass?", nil)
		require.NoError(t, err)

		assert.Equal(t, "CLM-CONV-001", answer.ClaimID)
		assert.Equal(t, "run-42", answer.RunID)
		assert.Equal(t, "The claim passed.", answer.Text)
		assert.Equal(t, "system context", client.system)
		require.Len(t, client.messages, 1)
		assert.Equal(t, "Why did it pass?", client.messages[0].Content)
	})

	t.Run("unknown claim id is not found", func(t *testing.T) {
		svc := newAskService(&chatRecorder{reply: "x"}, &staticProvider{system: "s"})
		_, err := svc.Ask(ctx, "CLM-NEVER-SEEN", "Anything?", nil)
		require.ErrorIs(t, err, ErrContextNotFound)
	})

	t.Run("history is replayed before the question", func(t *testing.T) {
		client := &chatRecorder{reply: "ok"}
		svc := newAskService(client, &staticProvider{system: "s"})

		history := []llm.Message{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer"},
		}
		_, err := svc.Ask(ctx, "CLM-CONV-001", "follow-up", history)
		require.NoError(t, err)

		require.Len(t, client.messages, 3)
		assert.Equal(t, "first question", client.messages[0].Content)
		assert.Equal(t, "follow-up", client.messages[2].Content)
	})

	t.Run("history is truncated to the newest turns", func(t *testing.T) {
		client := &chatRecorder{reply: "ok"}
		svc := newAskService(client, &staticProvider{system: "s"})

		history := make([]llm.Message, 30)
		for i := range history {
			history[i] = llm.Message{Role: "user", Content: "old"}
		}
		history[29] = llm.Message{Role: "user", Content: "newest"}

		_, err := svc.Ask(ctx, "CLM-CONV-001", "q", history)
		require.NoError(t, err)

		require.Len(t, client.messages, maxHistoryTurns+1)
		assert.Equal(t, "newest", client.messages[maxHistoryTurns-1].Content)
	})

	t.Run("context build failure propagates", func(t *testing.T) {
		svc := newAskService(&chatRecorder{reply: "x"},
			&staticProvider{err: errors.New("store down")})
		_, err := svc.Ask(ctx, "CLM-CONV-001", "q", nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrContextNotFound)
	})

	t.Run("llm failure propagates", func(t *testing.T) {
		svc := newAskService(&chatRecorder{err: errors.New("model offline")},
			&staticProvider{system: "s"})
		_, err := svc.Ask(ctx, "CLM-CONV-001", "q", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model offline")
	})
}
