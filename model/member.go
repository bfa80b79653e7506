/*
AUTHORS
  Pritam Bhaladhare <pritam@buddhadham.org>

LICENSE
  Copyright (C) 2025-2026 the Buddhadham Foundation.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package model

import "time"

// Membership levels, which gate the member benefits that apply.
const (
	LevelBronze   = "bronze"
	LevelSilver   = "silver"
	LevelGold     = "gold"
	LevelPlatinum = "platinum"
)

// Membership statuses.
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusLapsed  = "lapsed"
)

// Donation frequencies.
const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyAnnual    = "annual"
	FrequencyOneTime   = "one-time"
)

// IsValidLevel reports whether level names a known membership level.
func IsValidLevel(level string) bool {
	switch level {
	case LevelBronze, LevelSilver, LevelGold, LevelPlatinum:
		return true
	}
	return false
}

// IsValidFrequency reports whether freq names a known donation frequency.
func IsValidFrequency(freq string) bool {
	switch freq {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual, FrequencyOneTime:
		return true
	}
	return false
}

// Member represents a user who has additionally registered a
// recurring-donation profile with a membership tier.
type Member struct {
	ID                int64     `json:"id"`                // Assigned member ID.
	UserID            int64     `json:"userId"`            // ID of the owning User.
	MembershipLevel   string    `json:"membershipLevel"`   // One of the Level constants.
	MembershipStatus  string    `json:"membershipStatus"`  // One of the Status constants.
	StartDate         time.Time `json:"startDate"`         // When the membership began.
	RenewalDate       time.Time `json:"renewalDate"`       // When the membership next renews.
	DonationAmount    float64   `json:"donationAmount"`    // Pledged amount per billing period.
	DonationFrequency string    `json:"donationFrequency"` // One of the Frequency constants.
	AddressLine       string    `json:"addressLine"`       // Street address.
	City              string    `json:"city"`
	State             string    `json:"state"`
	PostalCode        string    `json:"postalCode"`
	Country           string    `json:"country"`
	Created           time.Time `json:"createdAt"` // Time the member entity was created.
	Updated           time.Time `json:"updatedAt"` // Time the member entity was last updated.
}

// MemberPatch holds the optional fields of a member update. The owning
// UserID is identity-bearing and deliberately absent: a patch cannot
// express a change of owner.
type MemberPatch struct {
	MembershipLevel   *string    `json:"membershipLevel"`
	MembershipStatus  *string    `json:"membershipStatus"`
	RenewalDate       *time.Time `json:"renewalDate"`
	DonationAmount    *float64   `json:"donationAmount"`
	DonationFrequency *string    `json:"donationFrequency"`
	AddressLine       *string    `json:"addressLine"`
	City              *string    `json:"city"`
	State             *string    `json:"state"`
	PostalCode        *string    `json:"postalCode"`
	Country           *string    `json:"country"`
}

// Apply merges the set fields of the patch into the member.
func (p *MemberPatch) Apply(m *Member) {
	if p.MembershipLevel != nil {
		m.MembershipLevel = *p.MembershipLevel
	}
	if p.MembershipStatus != nil {
		m.MembershipStatus = *p.MembershipStatus
	}
	if p.RenewalDate != nil {
		m.RenewalDate = *p.RenewalDate
	}
	if p.DonationAmount != nil {
		m.DonationAmount = *p.DonationAmount
	}
	if p.DonationFrequency != nil {
		m.DonationFrequency = *p.DonationFrequency
	}
	if p.AddressLine != nil {
		m.AddressLine = *p.AddressLine
	}
	if p.City != nil {
		m.City = *p.City
	}
	if p.State != nil {
		m.State = *p.State
	}
	if p.PostalCode != nil {
		m.PostalCode = *p.PostalCode
	}
	if p.Country != nil {
		m.Country = *p.Country
	}
}
