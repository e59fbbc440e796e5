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
	"sync"
	"time"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
)

// ErrContextNotFound is returned when no validated claim exists for the
// requested claim id.
var ErrContextNotFound = errors.New("no validation context for claim")

// Context is the stored record for one validated claim: the snapshot the
// agents saw and the result they produced. Re-validating the same claim
// id overwrites it.
type Context struct {
	ClaimID     string                   `json:"claim_id"`
	Claim       *claims.Claim            `json:"claim"`
	Result      *claims.ValidationResult `json:"result"`
	ValidatedAt time.Time                `json:"validated_at"`
}

// ContextStore persists validation contexts for follow-up questions.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ContextStore interface {
	// Put stores (or overwrites) the context for claim.ClaimID.
	Put(ctx context.Context, claim *claims.Claim, result *claims.ValidationResult) error

	// Get returns the context for claimID, or ErrContextNotFound.
	Get(ctx context.Context, claimID string) (*Context, error)

	// Close releases any underlying resources.
	Close() error
}

// MemoryStore is the in-process ContextStore. Suitable for single-node
// deployments and tests; contexts do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string]*Context
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: make(map[string]*Context)}
}

func (s *MemoryStore) Put(_ context.Context, claim *claims.Claim, result *claims.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[claim.ClaimID] = &Context{
		ClaimID:     claim.ClaimID,
		Claim:       claim,
		Result:      result,
		ValidatedAt: time.Now(),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, claimID string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cc, ok := s.contexts[claimID]
	if !ok {
		return nil, ErrContextNotFound
	}
	return cc, nil
}

func (s *MemoryStore) Close() error { return nil }
