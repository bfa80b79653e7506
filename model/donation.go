/*
DESCRIPTION
  One-time donation type and amount parsing.

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

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadAmount is returned when a donation amount cannot be parsed or
// is not positive.
var ErrBadAmount = errors.New("invalid donation amount")

// Donation is an append-only record of a one-time donation made from
// the website, independent of any membership.
type Donation struct {
	ID      int64     `json:"id"`        // Assigned donation ID.
	Amount  float64   `json:"amount"`    // Donated amount.
	Name    string    `json:"name"`      // Donor's name.
	Email   string    `json:"email"`     // Donor's email address.
	Address string    `json:"address"`   // Donor's street address.
	City    string    `json:"city"`
	Country string    `json:"country"`
	Message string    `json:"message"`   // Optional message from the donor.
	Created time.Time `json:"createdAt"` // Time the donation was recorded.
}

// Amount is a donation amount that accepts either a JSON number or a
// numeric string such as "25.50" on the wire, since payment forms
// commonly post amounts as strings.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler for Amount.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' {
		var qs string
		if err := json.Unmarshal(b, &qs); err != nil {
			return fmt.Errorf("%w: %v", ErrBadAmount, err)
		}
		s = strings.TrimSpace(qs)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBadAmount, s)
	}
	*a = Amount(v)
	return nil
}

// Value returns the amount as a float64, or ErrBadAmount if the amount
// is not positive.
func (a Amount) Value() (float64, error) {
	if a <= 0 {
		return 0, ErrBadAmount
	}
	return float64(a), nil
}
