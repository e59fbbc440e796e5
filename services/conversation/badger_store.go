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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/dgraph-io/badger/v4"
)

// DefaultContextRetention is how long a stored validation context stays
// answerable. Enforced by Badger entry TTLs.
const DefaultContextRetention = 24 * time.Hour

// keyPrefix namespaces context records in the database.
const keyPrefix = "claimctx/"

// BadgerConfig holds configuration for a Badger-backed context store.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory
	// is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for
	// testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Retention is the entry TTL. Zero selects DefaultContextRetention.
	Retention time.Duration

	// Logger receives BadgerDB's internal logs. If nil, they are
	// disabled.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults: durable writes and the
// default retention window.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
		Retention:  DefaultContextRetention,
	}
}

// InMemoryBadgerConfig returns a configuration for tests: no disk I/O,
// no sync.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{
		InMemory:  true,
		Retention: DefaultContextRetention,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is a ContextStore backed by an embedded BadgerDB. Contexts
// survive restarts and expire via entry TTLs, so a node can be bounced
// without losing answerable claims.
type BadgerStore struct {
	db        *badger.DB
	retention time.Duration
}

// NewBadgerStore opens (creating if needed) a Badger-backed store.
// Caller must Close it.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultContextRetention
	}
	return &BadgerStore{db: db, retention: retention}, nil
}

func (s *BadgerStore) Put(ctx context.Context, claim *claims.Claim, result *claims.ValidationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Context{
		ClaimID:     claim.ClaimID,
		Claim:       claim,
		Result:      result,
		ValidatedAt: time.Now(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal context for claim %s: %w", claim.ClaimID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+claim.ClaimID), payload).WithTTL(s.retention)
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) Get(ctx context.Context, claimID string) (*Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record Context
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + claimID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read context for claim %s: %w", claimID, err)
	}
	return &record, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
