// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package claims

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClaim returns a structurally valid single-line claim.
func newTestClaim() *Claim {
	return &Claim{
		ClaimID: "CLM-2024-0001",
		Patient: Patient{
			Name:        "Jane Doe",
			DOB:         NewDate(1985, time.June, 15),
			Gender:      "F",
			InsuranceID: "INS-12345",
		},
		Provider: Provider{
			Name:      "Dr. Alice Smith",
			NPI:       "1234567890",
			Specialty: "internal_medicine",
		},
		ServiceDate:    NewDate(2024, time.March, 10),
		DiagnosisCodes: []string{"I10"},
		Procedures: []Procedure{
			{CPT: "99213", Units: 1, Charge: 125.00},
		},
		TotalCharge: 125.00,
	}
}

func TestClaimValidate(t *testing.T) {
	t.Run("valid claim passes", func(t *testing.T) {
		require.NoError(t, newTestClaim().Validate())
	})

	t.Run("nil claim rejected", func(t *testing.T) {
		var claim *Claim
		require.Error(t, claim.Validate())
	})

	t.Run("missing claim id rejected", func(t *testing.T) {
		claim := newTestClaim()
		claim.ClaimID = ""
		require.Error(t, claim.Validate())
	})

	t.Run("missing patient dob rejected", func(t *testing.T) {
		claim := newTestClaim()
		claim.Patient.DOB = Date{}
		require.Error(t, claim.Validate())
	})

	t.Run("bad npi length rejected", func(t *testing.T) {
		claim := newTestClaim()
		claim.Provider.NPI = "123456789"
		err := claim.Validate()
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Equal(t, "len", verrs[0].Tag())
	})

	t.Run("non numeric npi rejected", func(t *testing.T) {
		claim := newTestClaim()
		claim.Provider.NPI = "12345abcde"
		require.Error(t, claim.Validate())
	})

	t.Run("unknown gender rejected", func(t *testing.T) {
		claim := newTestClaim()
		claim.Patient.Gender = "X"
		require.Error(t, claim.Validate())
	})

	t.Run("empty diagnosis list rejected", func(t *testing.T) {
		claim := newTestClaim()
		claim.DiagnosisCodes = nil
		require.Error(t, claim.Validate())
	})

	t.Run("zero units rejected", func(t *testing.T) {
		claim := newTestClaim()
		claim.Procedures[0].Units = 0
		require.Error(t, claim.Validate())
	})

	t.Run("negative charge rejected", func(t *testing.T) {
		claim := newTestClaim()
		claim.Procedures[0].Charge = -10
		require.Error(t, claim.Validate())
	})

	t.Run("total charge mismatch rejected with chargesum tag", func(t *testing.T) {
		claim := newTestClaim()
		claim.TotalCharge = 999.99
		err := claim.Validate()
		require.Error(t, err)

		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Equal(t, "chargesum", verrs[0].Tag())
	})

	t.Run("total accounts for units", func(t *testing.T) {
		claim := newTestClaim()
		claim.Procedures[0].Units = 3
		claim.TotalCharge = 375.00
		require.NoError(t, claim.Validate())
	})

	t.Run("rounding slack within a cent accepted", func(t *testing.T) {
		claim := newTestClaim()
		claim.TotalCharge = 125.005
		require.NoError(t, claim.Validate())
	})
}

func TestPatientAge(t *testing.T) {
	claim := newTestClaim()

	t.Run("whole years on service date", func(t *testing.T) {
		assert.Equal(t, 38, claim.PatientAge())
	})

	t.Run("dob after service date clamps to zero", func(t *testing.T) {
		c := newTestClaim()
		c.Patient.DOB = NewDate(2030, time.January, 1)
		assert.Equal(t, 0, c.PatientAge())
	})

	t.Run("newborn is zero", func(t *testing.T) {
		c := newTestClaim()
		c.Patient.DOB = NewDate(2024, time.March, 1)
		assert.Equal(t, 0, c.PatientAge())
	})
}

func TestClaimSnapshot(t *testing.T) {
	original := newTestClaim()
	original.Procedures[0].Modifiers = []string{"25"}

	snap := original.Snapshot()
	snap.DiagnosisCodes[0] = "E11.9"
	snap.Procedures[0].Modifiers[0] = "59"
	snap.Procedures[0].Charge = 1.0

	assert.Equal(t, "I10", original.DiagnosisCodes[0])
	assert.Equal(t, "25", original.Procedures[0].Modifiers[0])
	assert.Equal(t, 125.00, original.Procedures[0].Charge)
}

func TestProcedureModifiers(t *testing.T) {
	proc := Procedure{CPT: "99213", Modifiers: []string{"25", "LT"}, Units: 1}

	assert.True(t, proc.HasModifier("25"))
	assert.False(t, proc.HasModifier("59"))
	assert.True(t, proc.HasAnyModifier("59", "LT"))
	assert.False(t, proc.HasAnyModifier("59", "XU"))
}
