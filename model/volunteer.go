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

// VolunteerApplication is an append-only record of a volunteer
// application submitted from the website.
type VolunteerApplication struct {
	ID           int64     `json:"id"`           // Assigned application ID.
	Name         string    `json:"name"`         // Applicant's name.
	Email        string    `json:"email"`        // Applicant's email address.
	Phone        string    `json:"phone"`        // Applicant's phone number.
	City         string    `json:"city"`
	Country      string    `json:"country"`
	Interests    []string  `json:"interests"`    // Areas the applicant wants to help with.
	Availability string    `json:"availability"` // Free-text availability, e.g. "weekends".
	Experience   string    `json:"experience"`   // Relevant prior experience.
	Message      string    `json:"message"`      // Optional covering message.
	Created      time.Time `json:"createdAt"`    // Time the application was received.
}
