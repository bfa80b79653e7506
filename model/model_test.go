/*
DESCRIPTION
  model tests.

AUTHORS
  Pritam Bhaladhare <pritam@buddhadham.org>

LICENSE
  Copyright (C) 2025-2026 the Buddhadham Foundation.

  This file is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License in
  gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestAmountUnmarshal tests that donation amounts parse from both JSON
// numbers and numeric strings.
func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: `25.5`, want: 25.5},
		{in: `"25.50"`, want: 25.5},
		{in: `" 100 "`, want: 100},
		{in: `1000`, want: 1000},
		{in: `"free"`, wantErr: true},
		{in: `""`, wantErr: true},
		{in: `true`, wantErr: true},
	}

	for i, test := range tests {
		var a Amount
		err := json.Unmarshal([]byte(test.in), &a)
		if test.wantErr {
			if err == nil {
				t.Errorf("Unmarshal#%d (%s) expected error, got %v", i, test.in, a)
			}
			if err != nil && !errors.Is(err, ErrBadAmount) {
				t.Errorf("Unmarshal#%d (%s) expected ErrBadAmount, got %v", i, test.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unmarshal#%d (%s) failed with unexpected error: %v", i, test.in, err)
			continue
		}
		if float64(a) != test.want {
			t.Errorf("Unmarshal#%d (%s) failed: expected %v, got %v", i, test.in, test.want, float64(a))
		}
	}

	// A zero amount parses but is rejected by Value.
	var a Amount
	err := json.Unmarshal([]byte(`"0"`), &a)
	assert.NoError(t, err)
	_, err = a.Value()
	assert.ErrorIs(t, err, ErrBadAmount)
}

// TestLevels tests membership level and frequency validation.
func TestLevels(t *testing.T) {
	for _, l := range []string{LevelBronze, LevelSilver, LevelGold, LevelPlatinum} {
		assert.True(t, IsValidLevel(l), "level %s should be valid", l)
	}
	assert.False(t, IsValidLevel("diamond"))
	assert.False(t, IsValidLevel(""))

	for _, f := range []string{FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual, FrequencyOneTime} {
		assert.True(t, IsValidFrequency(f), "frequency %s should be valid", f)
	}
	assert.False(t, IsValidFrequency("fortnightly"))
}

// TestMemberPatch tests that a patch merges only its set fields.
func TestMemberPatch(t *testing.T) {
	m := Member{
		ID:                1,
		UserID:            7,
		MembershipLevel:   LevelBronze,
		MembershipStatus:  StatusPending,
		DonationAmount:    10,
		DonationFrequency: FrequencyMonthly,
		City:              "Nakhon Pathom",
	}

	level := LevelGold
	status := StatusActive
	amount := 50.0
	p := MemberPatch{MembershipLevel: &level, MembershipStatus: &status, DonationAmount: &amount}
	p.Apply(&m)

	assert.Equal(t, LevelGold, m.MembershipLevel)
	assert.Equal(t, StatusActive, m.MembershipStatus)
	assert.Equal(t, 50.0, m.DonationAmount)

	// Unset fields are untouched, including the owner.
	assert.Equal(t, int64(7), m.UserID)
	assert.Equal(t, FrequencyMonthly, m.DonationFrequency)
	assert.Equal(t, "Nakhon Pathom", m.City)
}

// TestNextDue tests the pledge due-date arithmetic.
func TestNextDue(t *testing.T) {
	from := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		freq string
		want time.Time
	}{
		{freq: FrequencyMonthly, want: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)}, // Jan 31 + 1 month normalises past Feb.
		{freq: FrequencyQuarterly, want: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{freq: FrequencyAnnual, want: time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)},
		{freq: FrequencyOneTime, want: time.Time{}},
	}

	for i, test := range tests {
		d := MemberDonation{Frequency: test.freq}
		got := d.NextDue(from)
		if !got.Equal(test.want) {
			t.Errorf("NextDue#%d (%s) failed: expected %v, got %v", i, test.freq, test.want, got)
		}
	}
}
