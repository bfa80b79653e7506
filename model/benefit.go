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

// MemberBenefit is a catalog entry describing a benefit available at a
// given membership level. Benefits are not tied to a specific member;
// a member enjoys every active benefit at or below their level.
type MemberBenefit struct {
	ID                 int64     `json:"id"`                 // Assigned benefit ID.
	MembershipLevel    string    `json:"membershipLevel"`    // Level the benefit applies to.
	BenefitName        string    `json:"benefitName"`        // Short benefit name.
	BenefitDescription string    `json:"benefitDescription"` // Longer description shown on the site.
	IsActive           bool      `json:"isActive"`           // False hides the benefit without deleting it.
	Created            time.Time `json:"createdAt"`          // Time the benefit entity was created.
	Updated            time.Time `json:"updatedAt"`          // Time the benefit entity was last updated.
}

// MemberBenefitPatch holds the optional fields of a benefit update.
type MemberBenefitPatch struct {
	MembershipLevel    *string `json:"membershipLevel"`
	BenefitName        *string `json:"benefitName"`
	BenefitDescription *string `json:"benefitDescription"`
	IsActive           *bool   `json:"isActive"`
}

// Apply merges the set fields of the patch into the benefit.
func (p *MemberBenefitPatch) Apply(b *MemberBenefit) {
	if p.MembershipLevel != nil {
		b.MembershipLevel = *p.MembershipLevel
	}
	if p.BenefitName != nil {
		b.BenefitName = *p.BenefitName
	}
	if p.BenefitDescription != nil {
		b.BenefitDescription = *p.BenefitDescription
	}
	if p.IsActive != nil {
		b.IsActive = *p.IsActive
	}
}
