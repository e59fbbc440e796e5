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
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/ClaimsGuardian/services/orchestrator/observability"
)

// DefaultContextTTL is how long a built system context stays valid. Five
// minutes comfortably covers the explanation fan-out and any follow-up
// questions on the same result, while bounding staleness after a rule
// reload.
const DefaultContextTTL = 5 * time.Minute

// defaultSweepInterval is how often expired entries are evicted.
const defaultSweepInterval = 1 * time.Minute

type cacheEntry struct {
	context   string
	expiresAt time.Time
}

// ContextCache is a content-addressed TTL cache for LLM system contexts.
//
// # Description
//
// Keys are derived from the claim content and the rule snapshot version,
// so a re-submitted identical claim reuses the cached context and any
// change to claim or rules naturally misses. Expired entries are evicted
// lazily on read and by a background sweeper using the ticker + done
// channel pattern for graceful shutdown.
//
// # Thread Safety
//
// All methods are safe for concurrent use. GetOrBuild holds the lock
// across the read-check-write, so concurrent callers with the same key
// build the context at most once.
type ContextCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewContextCache creates a cache with the given TTL and starts the
// background sweeper. A non-positive TTL selects DefaultContextTTL.
// Call Stop when done.
func NewContextCache(ttl time.Duration) *ContextCache {
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	c := &ContextCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// CacheKey derives the content-addressed key for a claim payload under a
// rule snapshot version.
func CacheKey(claimJSON []byte, ruleVersion string) string {
	h := sha256.New()
	h.Write(claimJSON)
	h.Write([]byte{0})
	h.Write([]byte(ruleVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// GetOrBuild returns the cached context for key, building and storing it
// on a miss or expiry. The build error is returned without caching.
func (c *ContextCache) GetOrBuild(key string, build func() (string, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		if time.Now().Before(entry.expiresAt) {
			observability.RecordCacheHit()
			return entry.context, nil
		}
		delete(c.entries, key)
	}
	observability.RecordCacheMiss()

	context, err := build()
	if err != nil {
		return "", err
	}
	c.entries[key] = cacheEntry{
		context:   context,
		expiresAt: time.Now().Add(c.ttl),
	}
	return context, nil
}

// Invalidate drops the entry for key, if present. Called when a claim is
// re-validated so stale contexts never outlive a newer result.
func (c *ContextCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of live entries.
func (c *ContextCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop shuts down the background sweeper. Safe to call more than once.
func (c *ContextCache) Stop() {
	c.once.Do(func() { close(c.done) })
}

// sweep evicts expired entries on a fixed interval.
func (c *ContextCache) sweep() {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			evicted := 0
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
					evicted++
				}
			}
			remaining := len(c.entries)
			c.mu.Unlock()
			if evicted > 0 {
				slog.Debug("swept expired explanation contexts",
					"evicted", evicted, "remaining", remaining)
			}
		}
	}
}
