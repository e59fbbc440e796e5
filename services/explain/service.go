// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package explain turns validation findings into reviewer-facing
// narrative text using an LLM backend.
//
// The system context (claim payload, code reference data, findings
// overview) is built once per validated claim, content-addressed by claim
// content and rule snapshot version, and cached with a TTL so repeated
// explanation and conversation calls on the same claim reuse both the
// local build and the provider-side prompt cache.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
	"github.com/AleutianAI/ClaimsGuardian/services/llm"
	"github.com/AleutianAI/ClaimsGuardian/services/orchestrator/observability"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// maxConcurrentExplanations bounds the per-finding LLM fan-out.
const maxConcurrentExplanations = 4

// defaultExplanationRate limits LLM calls per second across all claims.
const defaultExplanationRate = rate.Limit(5)

// explanationTemperature keeps narration factual.
var explanationTemperature = float32(0.3)

// Service generates explanations and summaries for validation results.
//
// # Thread Safety
//
// Safe for concurrent use; the rate limiter and cache serialize what
// needs serializing.
type Service struct {
	client  llm.LLMClient
	backend string
	store   codestore.Store
	cache   *ContextCache
	limiter *rate.Limiter
}

// NewService builds an explanation service over the given LLM client.
// backend is the label used for metrics ("anthropic", "openai", ...).
func NewService(client llm.LLMClient, backend string, store codestore.Store, cache *ContextCache) *Service {
	return &Service{
		client:  client,
		backend: backend,
		store:   store,
		cache:   cache,
		limiter: rate.NewLimiter(defaultExplanationRate, maxConcurrentExplanations),
	}
}

// Cache exposes the underlying context cache (for invalidation and tests).
func (s *Service) Cache() *ContextCache { return s.cache }

// SystemContext returns the cached system context for a validated claim,
// building it on first use. The same context serves per-finding
// explanation calls and follow-up conversation turns.
func (s *Service) SystemContext(ctx context.Context, claim *claims.Claim,
	result *claims.ValidationResult) (string, error) {

	claimJSON, err := json.Marshal(claim)
	if err != nil {
		return "", fmt.Errorf("marshal claim: %w", err)
	}
	key := CacheKey(claimJSON, s.store.SnapshotVersion())
	return s.cache.GetOrBuild(key, func() (string, error) {
		return buildSystemContext(ctx, s.store, claim, result)
	})
}

// InvalidateClaim drops the cached context for a claim, used when the
// claim is re-validated.
func (s *Service) InvalidateClaim(claim *claims.Claim) {
	claimJSON, err := json.Marshal(claim)
	if err != nil {
		return
	}
	s.cache.Invalidate(CacheKey(claimJSON, s.store.SnapshotVersion()))
}

// Annotate rewrites each finding's Explanation with LLM narration and
// fills Result.Summary. Best-effort: per-finding failures leave the
// rule-engine explanation in place, and nothing here changes findings,
// score, or status.
func (s *Service) Annotate(ctx context.Context, claim *claims.Claim, result *claims.ValidationResult) {
	system, err := s.SystemContext(ctx, claim, result)
	if err != nil {
		slog.Warn("failed to build explanation context, keeping rule-engine text",
			"claim_id", claim.ClaimID, "error", err)
		return
	}

	params := llm.GenerationParams{Temperature: &explanationTemperature}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentExplanations)
	for i := range result.Findings {
		i := i
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return nil
			}
			text, err := s.client.Chat(gctx, system,
				[]llm.Message{{Role: "user", Content: findingPrompt(result.Findings[i])}}, params)
			observability.RecordLLMRequest(s.backend, err == nil)
			if err != nil {
				slog.Warn("finding explanation failed",
					"claim_id", claim.ClaimID,
					"issue_type", result.Findings[i].IssueType,
					"error", err)
				return nil
			}
			if text = strings.TrimSpace(text); text != "" {
				result.Findings[i].Explanation = text
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures degrade per finding

	s.summarize(ctx, claim, system, result)
}

// summarize fills Result.Summary, falling back to a deterministic
// one-liner when the LLM is unavailable.
func (s *Service) summarize(ctx context.Context, claim *claims.Claim, system string, result *claims.ValidationResult) {
	if err := s.limiter.Wait(ctx); err != nil {
		result.Summary = fallbackSummary(result)
		return
	}
	params := llm.GenerationParams{Temperature: &explanationTemperature}
	text, err := s.client.Chat(ctx, system,
		[]llm.Message{{Role: "user", Content: summaryPrompt(result)}}, params)
	observability.RecordLLMRequest(s.backend, err == nil)
	if err != nil {
		slog.Warn("summary generation failed", "claim_id", claim.ClaimID, "error", err)
		result.Summary = fallbackSummary(result)
		return
	}
	result.Summary = strings.TrimSpace(text)
}

// fallbackSummary is used when no LLM narration is available.
func fallbackSummary(result *claims.ValidationResult) string {
	if len(result.Findings) == 0 {
		return fmt.Sprintf("Claim %s passed validation with no findings.", result.ClaimID)
	}
	return fmt.Sprintf("Claim %s %s with %d finding(s), risk score %.0f. Top issue: %s.",
		result.ClaimID, result.OverallStatus, len(result.Findings), result.RiskScore,
		result.Findings[0].Description)
}
