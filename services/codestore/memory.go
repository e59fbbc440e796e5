// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Ruleset
// =============================================================================

// Ruleset is the YAML document shape for file-based rule tables.
//
// Rule tables are data, not code: editing the YAML and letting the watcher
// reload it changes validation behavior without a rebuild.
type Ruleset struct {
	Diagnoses     []Diagnosis    `yaml:"diagnoses"`
	Procedures    []Procedure    `yaml:"procedures"`
	BundlingEdits []BundlingEdit `yaml:"bundling_edits"`
}

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore is an in-memory Store backed by a Ruleset.
//
// Safe for concurrent use. Reload swaps the whole table set atomically
// under a write lock, so in-flight lookups see either the old snapshot or
// the new one, never a mix.
type MemoryStore struct {
	mu         sync.RWMutex
	diagnoses  map[string]Diagnosis
	procedures map[string]Procedure
	edits      map[[2]string]BundlingEdit
	version    string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewMemoryStore builds a MemoryStore from an in-memory Ruleset.
// Used directly by tests and by the CLI after loading a rules file.
func NewMemoryStore(rs Ruleset) *MemoryStore {
	s := &MemoryStore{done: make(chan struct{})}
	s.replace(rs, versionOf(rs))
	return s
}

// LoadFile builds a MemoryStore from a YAML rules file.
func LoadFile(path string) (*MemoryStore, error) {
	rs, version, err := readRulesFile(path)
	if err != nil {
		return nil, err
	}
	s := &MemoryStore{done: make(chan struct{})}
	s.replace(rs, version)
	return s, nil
}

// Watch reloads the store whenever the rules file changes.
//
// Reload failures keep the previous tables and log a warning; a bad edit
// to the rules file must not take validation down.
func (s *MemoryStore) Watch(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rules watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch rules file %s: %w", path, err)
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				rs, version, err := readRulesFile(path)
				if err != nil {
					slog.Warn("rules file reload failed, keeping previous tables",
						"path", path, "error", err)
					continue
				}
				s.replace(rs, version)
				slog.Info("rules file reloaded",
					"path", path,
					"version", version,
					"diagnoses", len(rs.Diagnoses),
					"procedures", len(rs.Procedures),
					"bundling_edits", len(rs.BundlingEdits),
				)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("rules watcher error", "error", err)
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if any.
func (s *MemoryStore) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// LookupDiagnosis implements Store.
func (s *MemoryStore) LookupDiagnosis(_ context.Context, code string) (*Diagnosis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.diagnoses[code]; ok {
		return &d, nil
	}
	return nil, nil
}

// LookupProcedure implements Store.
func (s *MemoryStore) LookupProcedure(_ context.Context, code string) (*Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.procedures[code]; ok {
		return &p, nil
	}
	return nil, nil
}

// LookupBundlingEdit implements Store. The pair is ordered: codeA is the
// column-1 (comprehensive) code, codeB the column-2 (component) code.
func (s *MemoryStore) LookupBundlingEdit(_ context.Context, codeA, codeB string) (*BundlingEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.edits[[2]string{codeA, codeB}]; ok {
		return &e, nil
	}
	return nil, nil
}

// SnapshotVersion implements Store.
func (s *MemoryStore) SnapshotVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// replace swaps in a new table set atomically.
func (s *MemoryStore) replace(rs Ruleset, version string) {
	diagnoses := make(map[string]Diagnosis, len(rs.Diagnoses))
	for _, d := range rs.Diagnoses {
		diagnoses[d.Code] = d
	}
	procedures := make(map[string]Procedure, len(rs.Procedures))
	for _, p := range rs.Procedures {
		procedures[p.Code] = p
	}
	edits := make(map[[2]string]BundlingEdit, len(rs.BundlingEdits))
	for _, e := range rs.BundlingEdits {
		edits[[2]string{e.Column1, e.Column2}] = e
	}

	s.mu.Lock()
	s.diagnoses = diagnoses
	s.procedures = procedures
	s.edits = edits
	s.version = version
	s.mu.Unlock()
}

// readRulesFile loads and parses a YAML rules file, returning the ruleset
// and its content hash.
func readRulesFile(path string) (Ruleset, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, "", fmt.Errorf("read rules file %s: %w", path, err)
	}
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return Ruleset{}, "", fmt.Errorf("parse rules file %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return rs, hex.EncodeToString(sum[:8]), nil
}

// versionOf hashes an in-memory ruleset for snapshot identification.
func versionOf(rs Ruleset) string {
	data, err := yaml.Marshal(rs)
	if err != nil {
		return "unversioned"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
