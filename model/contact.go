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

// ContactMessage is an append-only record of a contact form
// submission from the website.
type ContactMessage struct {
	ID      int64     `json:"id"`        // Assigned message ID.
	Name    string    `json:"name"`      // Sender's name.
	Email   string    `json:"email"`     // Sender's email address.
	Subject string    `json:"subject"`   // Optional subject line.
	Message string    `json:"message"`   // Message body.
	Created time.Time `json:"createdAt"` // Time the message was received.
}
