// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation answers follow-up questions about validated
// claims. Each answer is grounded in the stored validation context, using
// the same cached system context the explanation service built.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/llm"
	"github.com/AleutianAI/ClaimsGuardian/services/orchestrator/observability"
)

// maxHistoryTurns bounds how much prior conversation is replayed to the
// LLM per question.
const maxHistoryTurns = 20

// answerTemperature keeps answers factual.
var answerTemperature = float32(0.3)

// ContextProvider supplies the cached system context for a validated
// claim. Satisfied by the explanation service.
type ContextProvider interface {
	SystemContext(ctx context.Context, claim *claims.Claim, result *claims.ValidationResult) (string, error)
}

// Answer is one reply to a follow-up question.
type Answer struct {
	ClaimID string `json:"claim_id"`
	RunID   string `json:"run_id"`
	Text    string `json:"answer"`
}

// Service answers questions about validated claims.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	client   llm.LLMClient
	backend  string
	store    ContextStore
	provider ContextProvider
}

// NewService builds a conversation service. backend is the metrics label
// for the LLM client.
func NewService(client llm.LLMClient, backend string, store ContextStore, provider ContextProvider) *Service {
	return &Service{
		client:   client,
		backend:  backend,
		store:    store,
		provider: provider,
	}
}

// Ask answers one question about a previously validated claim. history
// carries earlier turns of the same conversation (oldest first); only the
// last maxHistoryTurns are replayed.
//
// Returns ErrContextNotFound when the claim id has never been validated
// (or its context has expired).
func (s *Service) Ask(ctx context.Context, claimID, question string, history []llm.Message) (*Answer, error) {
	record, err := s.store.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}

	system, err := s.provider.SystemContext(ctx, record.Claim, record.Result)
	if err != nil {
		return nil, fmt.Errorf("build context for claim %s: %w", claimID, err)
	}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: question})

	params := llm.GenerationParams{Temperature: &answerTemperature}
	text, err := s.client.Chat(ctx, system, messages, params)
	observability.RecordLLMRequest(s.backend, err == nil)
	if err != nil {
		slog.Error("conversation answer failed", "claim_id", claimID, "error", err)
		return nil, fmt.Errorf("generate answer for claim %s: %w", claimID, err)
	}

	return &Answer{
		ClaimID: claimID,
		RunID:   record.Result.RunID,
		Text:    strings.TrimSpace(text),
	}, nil
}
