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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =============================================================================
// PostgresStore
// =============================================================================

// PostgresStore reads the coding reference tables from Postgres.
//
// Schema provisioning and seed loading are external concerns; this store
// only queries the icd10_codes, cpt_codes, and ncci_edits tables. Unknown
// codes map to (nil, nil) per the Store contract.
type PostgresStore struct {
	pool    *pgxpool.Pool
	version string
}

const (
	queryDiagnosis = `SELECT code, description, category, complexity_tier,
		COALESCE(gender_restriction, ''), age_min, age_max, preventive
		FROM icd10_codes WHERE code = $1`

	queryProcedure = `SELECT code, description, category, complexity_tier,
		COALESCE(allowed_modifiers, '{}'), COALESCE(avg_charge, 0)
		FROM cpt_codes WHERE code = $1`

	queryBundlingEdit = `SELECT column1_code, column2_code, modifier_indicator,
		COALESCE(rationale, '')
		FROM ncci_edits WHERE column1_code = $1 AND column2_code = $2`

	// Rule tables are versioned by their latest load; fall back to row
	// counts when the metadata table is absent.
	queryVersion = `SELECT COALESCE(
		(SELECT value FROM reference_metadata WHERE key = 'snapshot_version'),
		(SELECT 'rows:' || count(*)::text FROM cpt_codes))`
)

// NewPostgresStore connects to Postgres and verifies the connection.
//
// The snapshot version is read once at startup; reference tables are
// treated as immutable for the life of the process (reseeding implies a
// restart, matching how the deployment loads them).
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := pool.QueryRow(ctx, queryVersion).Scan(&s.version); err != nil {
		s.version = "unversioned"
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// LookupDiagnosis implements Store.
func (s *PostgresStore) LookupDiagnosis(ctx context.Context, code string) (*Diagnosis, error) {
	var d Diagnosis
	err := s.pool.QueryRow(ctx, queryDiagnosis, code).Scan(
		&d.Code, &d.Description, &d.Category, &d.ComplexityTier,
		&d.GenderRestriction, &d.AgeMin, &d.AgeMax, &d.Preventive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup diagnosis %s: %w", code, err)
	}
	return &d, nil
}

// LookupProcedure implements Store.
func (s *PostgresStore) LookupProcedure(ctx context.Context, code string) (*Procedure, error) {
	var p Procedure
	err := s.pool.QueryRow(ctx, queryProcedure, code).Scan(
		&p.Code, &p.Description, &p.Category, &p.ComplexityTier,
		&p.AllowedModifiers, &p.ReferenceCharge,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup procedure %s: %w", code, err)
	}
	return &p, nil
}

// LookupBundlingEdit implements Store.
func (s *PostgresStore) LookupBundlingEdit(ctx context.Context, codeA, codeB string) (*BundlingEdit, error) {
	var e BundlingEdit
	err := s.pool.QueryRow(ctx, queryBundlingEdit, codeA, codeB).Scan(
		&e.Column1, &e.Column2, &e.ModifierIndicator, &e.Rationale,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup bundling edit %s/%s: %w", codeA, codeB, err)
	}
	return &e, nil
}

// SnapshotVersion implements Store.
func (s *PostgresStore) SnapshotVersion() string {
	return s.version
}
