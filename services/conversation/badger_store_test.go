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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("get before put is not found", func(t *testing.T) {
		store := newTestBadgerStore(t)
		_, err := store.Get(ctx, "CLM-CONV-001")
		require.ErrorIs(t, err, ErrContextNotFound)
	})

	t.Run("put then get roundtrips the record", func(t *testing.T) {
		store := newTestBadgerStore(t)
		claim := conversationClaim()
		result := conversationResult()
		require.NoError(t, store.Put(ctx, claim, result))

		record, err := store.Get(ctx, claim.ClaimID)
		require.NoError(t, err)
		assert.Equal(t, claim.ClaimID, record.ClaimID)
		assert.Equal(t, result.RunID, record.Result.RunID)
		assert.Equal(t, claim.Procedures, record.Claim.Procedures)
		assert.False(t, record.ValidatedAt.IsZero())
	})

	t.Run("revalidation overwrites", func(t *testing.T) {
		store := newTestBadgerStore(t)
		require.NoError(t, store.Put(ctx, conversationClaim(), conversationResult()))

		newer := conversationResult()
		newer.RunID = "run-43"
		require.NoError(t, store.Put(ctx, conversationClaim(), newer))

		record, err := store.Get(ctx, "CLM-CONV-001")
		require.NoError(t, err)
		assert.Equal(t, "run-43", record.Result.RunID)
	})

	t.Run("cancelled context is refused", func(t *testing.T) {
		store := newTestBadgerStore(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		require.Error(t, store.Put(cancelled, conversationClaim(), conversationResult()))
		_, err := store.Get(cancelled, "CLM-CONV-001")
		require.Error(t, err)
	})

	t.Run("persistent mode requires a path", func(t *testing.T) {
		_, err := NewBadgerStore(BadgerConfig{})
		require.Error(t, err)
	})
}
