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

// Newsletter is an append-only record of a newsletter subscription.
// Email addresses are unique across the collection; the datastore
// rejects duplicates.
type Newsletter struct {
	ID        int64     `json:"id"`        // Assigned subscription ID.
	FirstName string    `json:"firstName"` // Subscriber's first name.
	LastName  string    `json:"lastName"`  // Subscriber's last name.
	Email     string    `json:"email"`     // Subscriber's email address, unique.
	Interests []string  `json:"interests"` // Topics of interest, e.g. "meditation", "pilgrimage".
	Created   time.Time `json:"createdAt"` // Time the subscription was created.
}
