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

// Payment event statuses.
const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

// MemberPayment records a single settled or failed payment event
// against a member, optionally linked to the recurring pledge it
// services.
type MemberPayment struct {
	ID            int64     `json:"id"`            // Assigned payment ID.
	MemberID      int64     `json:"memberId"`      // Owning member. Immutable after creation.
	DonationID    int64     `json:"donationId"`    // Pledge the payment services, or 0 for none.
	Amount        float64   `json:"amount"`        // Amount paid.
	PaymentDate   time.Time `json:"paymentDate"`   // When the payment settled or failed.
	Status        string    `json:"status"`        // One of the Payment constants.
	PaymentMethod string    `json:"paymentMethod"` // One of the Method constants.
	Created       time.Time `json:"createdAt"`     // Time the payment entity was created.
}
