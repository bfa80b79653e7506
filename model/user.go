/*
DESCRIPTION
  Datastore user type and role helpers.

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

// User roles. Admins may read and mutate any record; users only their own.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account on the Buddhadham website. A
// user exists for each person who has signed up with a username and
// password, or signed in with a Google account.
type User struct {
	ID       int64     `json:"id"`        // Assigned user ID.
	Username string    `json:"username"`  // Unique login name.
	Password string    `json:"-"`         // Bcrypt password hash. Never serialized.
	Email    string    `json:"email"`     // Email address, unique when set.
	FullName string    `json:"fullName"`  // Display name.
	Role     string    `json:"role"`      // RoleUser or RoleAdmin.
	Created  time.Time `json:"createdAt"` // Time the user entity was created.
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
