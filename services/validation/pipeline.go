// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation fans a claim out to all validation agents
// concurrently, merges their findings deterministically, and derives the
// risk score and overall status.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/ClaimsGuardian/services/agents"
	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
	"github.com/AleutianAI/ClaimsGuardian/services/orchestrator/observability"
	"github.com/google/uuid"
)

// ErrAllAgentsFailed is returned when every validation agent errored or
// timed out. A single agent failing degrades to "no findings from that
// agent"; all of them failing means no validation happened at all.
var ErrAllAgentsFailed = errors.New("all validation agents failed")

// DefaultAgentTimeout bounds each agent's evaluation.
const DefaultAgentTimeout = 10 * time.Second

// Annotator enriches findings with narrative text after scoring.
// Implementations must be best-effort: failures are logged, never
// propagated, and must not change score or status.
type Annotator interface {
	Annotate(ctx context.Context, claim *claims.Claim, result *claims.ValidationResult)
}

// ContextSink receives the claim snapshot and result after validation so
// follow-up questions can be answered without re-running the agents.
type ContextSink interface {
	Put(ctx context.Context, claim *claims.Claim, result *claims.ValidationResult) error
}

// Pipeline fans a claim out to every validation agent concurrently, merges
// their findings deterministically, and derives the risk score and overall
// status.
//
// # Thread Safety
//
// Validate may be called concurrently for different claims; every
// invocation works on its own snapshot of the claim.
type Pipeline struct {
	store        codestore.Store
	agents       []agents.Agent
	annotator    Annotator
	contexts     ContextSink
	agentTimeout time.Duration
	stats        *statsTracker
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithAnnotator attaches the explanation service.
func WithAnnotator(a Annotator) PipelineOption {
	return func(p *Pipeline) { p.annotator = a }
}

// WithContextSink attaches the conversation context store.
func WithContextSink(s ContextSink) PipelineOption {
	return func(p *Pipeline) { p.contexts = s }
}

// WithAgentTimeout overrides the per-agent evaluation timeout.
func WithAgentTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.agentTimeout = d
		}
	}
}

// WithAgents replaces the default agent registry.
func WithAgents(list []agents.Agent) PipelineOption {
	return func(p *Pipeline) { p.agents = list }
}

// NewPipeline builds a Pipeline over the given store with the default
// agent registry.
func NewPipeline(store codestore.Store, cfg agents.Config, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:        store,
		agents:       agents.Registry(cfg),
		agentTimeout: DefaultAgentTimeout,
		stats:        newStatsTracker(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// agentOutcome is the fan-in record for one agent run. Outcomes live in a
// slice indexed by registration order, fixed at dispatch time, so
// completion order never influences the merged result.
type agentOutcome struct {
	findings []claims.Finding
	err      error
}

// Validate runs all agents concurrently against an immutable snapshot of
// the claim and returns the aggregated result.
//
// A failing or timed-out agent contributes no findings and is recorded in
// Result.AgentFailures. Only ErrAllAgentsFailed is returned as an error.
func (p *Pipeline) Validate(ctx context.Context, claim *claims.Claim) (*claims.ValidationResult, error) {
	start := time.Now()
	snapshot := claim.Snapshot()

	outcomes := make([]agentOutcome, len(p.agents))
	var wg sync.WaitGroup
	for i, agent := range p.agents {
		wg.Add(1)
		go func(idx int, ag agents.Agent) {
			defer wg.Done()
			actx, cancel := context.WithTimeout(ctx, p.agentTimeout)
			defer cancel()
			outcomes[idx] = p.runAgent(actx, ag, snapshot)
		}(i, agent)
	}
	wg.Wait()

	var failures []claims.AgentFailure
	for i, out := range outcomes {
		if out.err == nil {
			continue
		}
		failures = append(failures, claims.AgentFailure{
			AgentName: p.agents[i].Name(),
			Error:     out.err.Error(),
		})
		slog.Error("validation agent failed",
			"claim_id", snapshot.ClaimID,
			"agent", p.agents[i].Name(),
			"error", out.err,
		)
		observability.RecordAgentFailure(p.agents[i].Name())
	}
	if len(failures) == len(p.agents) {
		observability.RecordValidationError()
		return nil, fmt.Errorf("claim %s: %w", snapshot.ClaimID, ErrAllAgentsFailed)
	}

	findings := mergeFindings(outcomes)
	score := RiskScore(findings)
	status := StatusFor(findings, score)

	result := &claims.ValidationResult{
		RunID:           uuid.NewString(),
		ClaimID:         snapshot.ClaimID,
		OverallStatus:   status,
		RiskScore:       score,
		Findings:        findings,
		TotalCostImpact: totalCostImpact(findings),
		AgentFailures:   failures,
	}

	if p.annotator != nil {
		p.annotator.Annotate(ctx, snapshot, result)
	}
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	if p.contexts != nil {
		if err := p.contexts.Put(ctx, snapshot, result); err != nil {
			slog.Warn("failed to store conversation context",
				"claim_id", snapshot.ClaimID, "error", err)
		}
	}

	p.stats.record(result)
	severities := make([]string, len(findings))
	for i, f := range findings {
		severities[i] = string(f.Severity)
	}
	observability.RecordValidation(string(status), severities, time.Since(start))

	slog.Info("claim validated",
		"claim_id", snapshot.ClaimID,
		"run_id", result.RunID,
		"status", status,
		"risk_score", score,
		"findings", len(findings),
		"agent_failures", len(failures),
		"duration_ms", result.ProcessingTimeMs,
	)
	return result, nil
}

// Stats returns a snapshot of pipeline activity since startup.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// runAgent evaluates one agent, converting panics and timeouts into
// recorded failures.
func (p *Pipeline) runAgent(ctx context.Context, ag agents.Agent, snapshot *claims.Claim) agentOutcome {
	done := make(chan agentOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- agentOutcome{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		fs, err := ag.Evaluate(ctx, snapshot, p.store)
		done <- agentOutcome{findings: fs, err: err}
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return agentOutcome{err: fmt.Errorf("agent timed out: %w", ctx.Err())}
	}
}

// mergeFindings flattens the per-agent outcomes into the stable result
// order: severity descending, then agent registration order, then the
// order the agent emitted them. Duplicate (issue type, description) pairs
// collapse to the first occurrence in that order.
func mergeFindings(outcomes []agentOutcome) []claims.Finding {
	type tagged struct {
		finding  claims.Finding
		agentIdx int
		emitIdx  int
	}

	var all []tagged
	seen := make(map[string]bool)
	for agentIdx, out := range outcomes {
		if out.err != nil {
			continue
		}
		for emitIdx, f := range out.findings {
			key := f.IssueType + "\x00" + f.Description
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, tagged{finding: f, agentIdx: agentIdx, emitIdx: emitIdx})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if ri, rj := all[i].finding.Severity.Rank(), all[j].finding.Severity.Rank(); ri != rj {
			return ri > rj
		}
		if all[i].agentIdx != all[j].agentIdx {
			return all[i].agentIdx < all[j].agentIdx
		}
		return all[i].emitIdx < all[j].emitIdx
	})

	findings := make([]claims.Finding, len(all))
	for i, t := range all {
		findings[i] = t.finding
	}
	return findings
}

// totalCostImpact sums the non-nil per-finding cost impacts.
func totalCostImpact(findings []claims.Finding) float64 {
	var total float64
	for _, f := range findings {
		if f.CostImpact != nil {
			total += *f.CostImpact
		}
	}
	return total
}
