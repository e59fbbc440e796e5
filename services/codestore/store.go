// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codestore provides read-only lookup of medical coding reference
// data: ICD-10 diagnosis metadata, CPT procedure metadata, and NCCI-style
// bundling edits.
//
// The store is an injected capability: validation agents depend on the
// Store interface, never on a concrete backend, so rule tables can be
// swapped or faked in tests. Two implementations are provided:
//
//   - MemoryStore: rule tables loaded from a YAML file, with optional
//     hot reload on file change. Used by the CLI and in tests.
//   - PostgresStore: rule tables read from Postgres. Used by the service
//     when DATABASE_URL is configured.
package codestore

import "context"

// =============================================================================
// Reference Types
// =============================================================================

// Complexity tiers order codes from routine to high-complexity care.
// The gap between a procedure's tier and a diagnosis's tier drives the
// severity of compatibility findings.
const (
	TierRoutine  = 1
	TierModerate = 2
	TierComplex  = 3
)

// Diagnosis is the reference record for an ICD-10 diagnosis code.
//
// GenderRestriction is "" (none), "M", or "F". AgeMin/AgeMax are nil when
// the code carries no age restriction. Preventive marks routine wellness
// codes (Z00.*) that should not pair with high-complexity procedures.
type Diagnosis struct {
	Code              string `yaml:"code"`
	Description       string `yaml:"description"`
	Category          string `yaml:"category"`
	ComplexityTier    int    `yaml:"complexity_tier"`
	GenderRestriction string `yaml:"gender_restriction"`
	AgeMin            *int   `yaml:"age_min"`
	AgeMax            *int   `yaml:"age_max"`
	Preventive        bool   `yaml:"preventive"`
}

// Procedure is the reference record for a CPT procedure code.
//
// AllowedModifiers is the allow-list for modifier compliance checks; an
// empty list means the store has no opinion (no finding). ReferenceCharge
// is the per-unit average charge used for cost-anomaly detection; zero
// means unknown.
type Procedure struct {
	Code             string   `yaml:"code"`
	Description      string   `yaml:"description"`
	Category         string   `yaml:"category"`
	ComplexityTier   int      `yaml:"complexity_tier"`
	AllowedModifiers []string `yaml:"allowed_modifiers"`
	ReferenceCharge  float64  `yaml:"reference_charge"`
}

// BundlingEdit is an NCCI-style edit pairing two procedure codes that must
// not be billed together on the same claim.
//
// ModifierIndicator follows NCCI semantics:
//
//	"0" - the edit can never be overridden by a modifier
//	"1" - a distinct-service modifier (59 or XE/XP/XS/XU) overrides it
//	"9" - the indicator is not applicable; the edit does not apply
type BundlingEdit struct {
	Column1           string `yaml:"column1"`
	Column2           string `yaml:"column2"`
	ModifierIndicator string `yaml:"modifier_indicator"`
	Rationale         string `yaml:"rationale"`
}

// =============================================================================
// Store Interface
// =============================================================================

// Store is read-only access to the coding reference tables.
//
// # Description
//
// All lookups return (nil, nil) for unknown codes: a reference-data miss is
// "insufficient data to judge", never an error. A non-nil error means the
// backend itself failed (connection lost, query error).
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the orchestrator shares
// one Store across all agents of all in-flight validations.
type Store interface {
	// LookupDiagnosis returns reference metadata for an ICD-10 code,
	// or (nil, nil) when the code is unknown.
	LookupDiagnosis(ctx context.Context, code string) (*Diagnosis, error)

	// LookupProcedure returns reference metadata for a CPT code,
	// or (nil, nil) when the code is unknown.
	LookupProcedure(ctx context.Context, code string) (*Procedure, error)

	// LookupBundlingEdit returns the bundling edit for an ordered pair of
	// procedure codes, or (nil, nil) when no edit pairs them.
	LookupBundlingEdit(ctx context.Context, codeA, codeB string) (*BundlingEdit, error)

	// SnapshotVersion identifies the currently loaded rule tables.
	//
	// The explanation service folds this into its content-addressed cache
	// key so a rule reload invalidates cached claim context.
	SnapshotVersion() string
}
