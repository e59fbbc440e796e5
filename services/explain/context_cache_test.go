// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explain

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	t.Run("stable for identical input", func(t *testing.T) {
		a := CacheKey([]byte(`{"claim_id":"X"}`), "v1")
		b := CacheKey([]byte(`{"claim_id":"X"}`), "v1")
		assert.Equal(t, a, b)
	})

	t.Run("changes with claim content", func(t *testing.T) {
		a := CacheKey([]byte(`{"claim_id":"X"}`), "v1")
		b := CacheKey([]byte(`{"claim_id":"Y"}`), "v1")
		assert.NotEqual(t, a, b)
	})

	t.Run("changes with rule version", func(t *testing.T) {
		a := CacheKey([]byte(`{"claim_id":"X"}`), "v1")
		b := CacheKey([]byte(`{"claim_id":"X"}`), "v2")
		assert.NotEqual(t, a, b)
	})
}

func TestContextCacheGetOrBuild(t *testing.T) {
	t.Run("builds once then hits", func(t *testing.T) {
		cache := NewContextCache(time.Minute)
		defer cache.Stop()

		builds := 0
		build := func() (string, error) {
			builds++
			return "ctx", nil
		}

		first, err := cache.GetOrBuild("k", build)
		require.NoError(t, err)
		second, err := cache.GetOrBuild("k", build)
		require.NoError(t, err)

		assert.Equal(t, "ctx", first)
		assert.Equal(t, "ctx", second)
		assert.Equal(t, 1, builds)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("expired entry rebuilds", func(t *testing.T) {
		cache := NewContextCache(20 * time.Millisecond)
		defer cache.Stop()

		builds := 0
		build := func() (string, error) {
			builds++
			return "ctx", nil
		}

		_, err := cache.GetOrBuild("k", build)
		require.NoError(t, err)
		time.Sleep(40 * time.Millisecond)
		_, err = cache.GetOrBuild("k", build)
		require.NoError(t, err)
		assert.Equal(t, 2, builds)
	})

	t.Run("build error is not cached", func(t *testing.T) {
		cache := NewContextCache(time.Minute)
		defer cache.Stop()

		boom := errors.New("boom")
		_, err := cache.GetOrBuild("k", func() (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, cache.Len())

		got, err := cache.GetOrBuild("k", func() (string, error) { return "recovered", nil })
		require.NoError(t, err)
		assert.Equal(t, "recovered", got)
	})

	t.Run("concurrent callers build at most once", func(t *testing.T) {
		cache := NewContextCache(time.Minute)
		defer cache.Stop()

		var builds atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := cache.GetOrBuild("k", func() (string, error) {
					builds.Add(1)
					return "ctx", nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int64(1), builds.Load())
	})

	t.Run("invalidate forces rebuild", func(t *testing.T) {
		cache := NewContextCache(time.Minute)
		defer cache.Stop()

		builds := 0
		build := func() (string, error) {
			builds++
			return "ctx", nil
		}
		_, err := cache.GetOrBuild("k", build)
		require.NoError(t, err)

		cache.Invalidate("k")
		assert.Equal(t, 0, cache.Len())

		_, err = cache.GetOrBuild("k", build)
		require.NoError(t, err)
		assert.Equal(t, 2, builds)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		cache := NewContextCache(time.Minute)
		cache.Stop()
		cache.Stop()
	})
}
