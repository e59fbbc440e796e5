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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateUnmarshalJSON(t *testing.T) {
	t.Run("calendar date layout", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2024-03-15"`), &d))
		assert.Equal(t, NewDate(2024, time.March, 15).Time, d.Time)
	})

	t.Run("rfc3339 timestamp accepted", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2024-03-15T08:30:00Z"`), &d))
		assert.Equal(t, 2024, d.Year())
		assert.Equal(t, time.March, d.Month())
		assert.Equal(t, 15, d.Day())
	})

	t.Run("null yields zero date", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`null`), &d))
		assert.True(t, d.IsZero())
	})

	t.Run("empty string yields zero date", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`""`), &d))
		assert.True(t, d.IsZero())
	})

	t.Run("garbage rejected", func(t *testing.T) {
		var d Date
		err := json.Unmarshal([]byte(`"15/03/2024"`), &d)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "YYYY-MM-DD")
	})
}

func TestDateMarshalJSON(t *testing.T) {
	t.Run("renders calendar layout", func(t *testing.T) {
		payload, err := json.Marshal(NewDate(2024, time.March, 15))
		require.NoError(t, err)
		assert.Equal(t, `"2024-03-15"`, string(payload))
	})

	t.Run("zero date renders null", func(t *testing.T) {
		payload, err := json.Marshal(Date{})
		require.NoError(t, err)
		assert.Equal(t, `null`, string(payload))
	})
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())

	// Malformed data must never outrank real findings.
	assert.Less(t, Severity("bogus").Rank(), SeverityLow.Rank())
	assert.False(t, Severity("bogus").Valid())
	assert.True(t, SeverityCritical.Valid())
}

func TestCostImpactOf(t *testing.T) {
	assert.Nil(t, CostImpactOf(0))
	assert.Nil(t, CostImpactOf(-10))

	impact := CostImpactOf(42.50)
	require.NotNil(t, impact)
	assert.Equal(t, 42.50, *impact)
}
