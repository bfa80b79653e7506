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

// Recurring donation (pledge) statuses.
const (
	PledgeActive    = "active"
	PledgePaused    = "paused"
	PledgeCancelled = "cancelled"
)

// Payment methods accepted for pledges and payments.
const (
	MethodCard     = "card"
	MethodBank     = "bank-transfer"
	MethodPromptly = "promptpay"
)

// MemberDonation represents an ongoing recurring-donation pledge billed
// at some frequency. It is distinct from MemberPayment, which records a
// single settled transaction against the pledge.
type MemberDonation struct {
	ID              int64     `json:"id"`              // Assigned pledge ID.
	MemberID        int64     `json:"memberId"`        // Owning member. Immutable after creation.
	Amount          float64   `json:"amount"`          // Amount billed each period.
	Frequency       string    `json:"frequency"`       // One of the Frequency constants.
	Status          string    `json:"status"`          // One of the Pledge constants.
	PaymentMethod   string    `json:"paymentMethod"`   // One of the Method constants.
	LastPaymentDate time.Time `json:"lastPaymentDate"` // Zero until the first payment settles.
	NextPaymentDate time.Time `json:"nextPaymentDate"` // When the next payment falls due.
	Created         time.Time `json:"createdAt"`       // Time the pledge entity was created.
	Updated         time.Time `json:"updatedAt"`       // Time the pledge entity was last updated.
}

// MemberDonationPatch holds the optional fields of a pledge update.
// MemberID is identity-bearing and deliberately absent.
type MemberDonationPatch struct {
	Amount          *float64   `json:"amount"`
	Frequency       *string    `json:"frequency"`
	Status          *string    `json:"status"`
	PaymentMethod   *string    `json:"paymentMethod"`
	LastPaymentDate *time.Time `json:"lastPaymentDate"`
	NextPaymentDate *time.Time `json:"nextPaymentDate"`
}

// Apply merges the set fields of the patch into the pledge.
func (p *MemberDonationPatch) Apply(d *MemberDonation) {
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	if p.Frequency != nil {
		d.Frequency = *p.Frequency
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.PaymentMethod != nil {
		d.PaymentMethod = *p.PaymentMethod
	}
	if p.LastPaymentDate != nil {
		d.LastPaymentDate = *p.LastPaymentDate
	}
	if p.NextPaymentDate != nil {
		d.NextPaymentDate = *p.NextPaymentDate
	}
}

// NextDue returns the payment date that follows from, given the pledge
// frequency.
//
// NOTE: For a monthly pledge the day of renewal will not always be the
// same each month, since the month gets normalised. See
// time.Time.AddDate for further details.
func (d *MemberDonation) NextDue(from time.Time) time.Time {
	return NextDue(d.Frequency, from)
}

// NextDue returns the payment date that follows from for the given
// frequency, or the zero time for one-time giving.
func NextDue(freq string, from time.Time) time.Time {
	switch freq {
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	case FrequencyAnnual:
		return from.AddDate(1, 0, 0)
	default:
		return time.Time{} // One-time pledges have no next due date.
	}
}
