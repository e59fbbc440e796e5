// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package claims provides the domain datatypes for claim validation.
//
// This file contains the inbound claim model (patient, provider, procedure
// lines) and its structural validation. Validation findings and results
// live in finding.go and result.go.
package claims

import (
	"fmt"
	"math"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Structural Limits
// =============================================================================

const (
	// MaxDiagnosisCodes bounds the diagnosis list on a single claim.
	MaxDiagnosisCodes = 25

	// MaxProcedureLines bounds the procedure lines on a single claim.
	MaxProcedureLines = 50

	// chargeTolerance is the acceptable rounding slack when checking that
	// the claim total equals the sum of its lines.
	chargeTolerance = 0.01
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// claimValidate is the validator instance for claim datatypes.
// Initialized in init() with struct-level validation registered.
var claimValidate *validator.Validate

func init() {
	claimValidate = validator.New()
	// Expose Date to the validator as its underlying time.Time so that
	// "required" treats the zero date as missing.
	claimValidate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(Date); ok {
			return d.Time
		}
		return nil
	}, Date{})
	claimValidate.RegisterStructValidation(validateClaimTotals, Claim{})
}

// validateClaimTotals enforces the total-charge invariant: the claim total
// must equal the sum of charge*units across procedure lines.
//
// This runs at API entry. The core pipeline assumes it already held and
// never re-checks it.
func validateClaimTotals(sl validator.StructLevel) {
	claim := sl.Current().Interface().(Claim)

	var sum float64
	for _, proc := range claim.Procedures {
		sum += proc.Charge * float64(proc.Units)
	}
	if math.Abs(sum-claim.TotalCharge) > chargeTolerance {
		sl.ReportError(claim.TotalCharge, "TotalCharge", "total_charge", "chargesum", "")
	}
}

// =============================================================================
// Claim Model
// =============================================================================

// Patient identifies the insured party on a claim.
type Patient struct {
	Name        string `json:"name" validate:"required"`
	DOB         Date   `json:"dob" validate:"required"`
	Gender      string `json:"gender" validate:"required,oneof=M F"`
	InsuranceID string `json:"insurance_id" validate:"required"`
}

// Provider identifies the billing provider.
type Provider struct {
	Name      string `json:"name" validate:"required"`
	NPI       string `json:"npi" validate:"required,len=10,numeric"`
	Specialty string `json:"specialty"`
}

// Procedure is a single billed line: a CPT-like code plus its modifiers,
// unit count, and per-unit charge. Modifier order carries no meaning.
type Procedure struct {
	CPT       string   `json:"cpt" validate:"required"`
	Modifiers []string `json:"modifiers"`
	Units     int      `json:"units" validate:"required,gt=0"`
	Charge    float64  `json:"charge" validate:"gte=0"`
}

// HasModifier reports whether the line carries the given modifier code.
func (p Procedure) HasModifier(mod string) bool {
	for _, m := range p.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// HasAnyModifier reports whether the line carries any of the given codes.
func (p Procedure) HasAnyModifier(mods ...string) bool {
	for _, m := range mods {
		if p.HasModifier(m) {
			return true
		}
	}
	return false
}

// Claim is a structured medical insurance claim as submitted for validation.
//
// A Claim entering the validation pipeline has already passed Validate();
// the pipeline treats it as an immutable snapshot.
type Claim struct {
	ClaimID        string      `json:"claim_id" validate:"required"`
	Patient        Patient     `json:"patient" validate:"required"`
	Provider       Provider    `json:"provider" validate:"required"`
	ServiceDate    Date        `json:"service_date" validate:"required"`
	DiagnosisCodes []string    `json:"diagnosis_codes" validate:"required,min=1,max=25,dive,required"`
	Procedures     []Procedure `json:"procedure_codes" validate:"required,min=1,max=50,dive"`
	TotalCharge    float64     `json:"total_charge" validate:"gte=0"`
}

// PatientAge returns the patient's age in whole years on the service date.
func (c *Claim) PatientAge() int {
	days := int(c.ServiceDate.Sub(c.Patient.DOB.Time).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / 365
}

// Snapshot returns a deep copy of the claim.
//
// The orchestrator hands each agent the same snapshot; copying up front
// guarantees no agent can observe another's mutations even by accident.
func (c *Claim) Snapshot() *Claim {
	cp := *c
	cp.DiagnosisCodes = append([]string(nil), c.DiagnosisCodes...)
	cp.Procedures = make([]Procedure, len(c.Procedures))
	for i, p := range c.Procedures {
		cp.Procedures[i] = p
		cp.Procedures[i].Modifiers = append([]string(nil), p.Modifiers...)
	}
	return &cp
}

// Validate checks the claim's structural invariants: missing required
// fields, bad NPI, non-positive units, negative charges, or a total charge
// that does not equal the sum of its lines. A claim that fails here is an
// input defect and must not reach the orchestrator.
//
// On failure the returned error is validator.ValidationErrors, so callers
// can extract field-level details with errors.As.
func (c *Claim) Validate() error {
	if c == nil {
		return fmt.Errorf("claim is nil")
	}
	return claimValidate.Struct(c)
}
