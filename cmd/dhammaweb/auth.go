/*
DESCRIPTION
  Authentication routes for the Buddhadham web service: username and
  password registration and login, plus the Google OAuth2 flow.

AUTHORS
  Pritam Bhaladhare <pritam@buddhadham.org>

LICENSE
  Copyright (C) 2025-2026 the Buddhadham Foundation.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/buddhadham/cloud/backend"
	"github.com/buddhadham/cloud/datastore"
	"github.com/buddhadham/cloud/gauth"
	"github.com/buddhadham/cloud/model"
)

// Session constants.
const (
	sessionName    = "bdsession"
	sessionUserKey = "userID"
	sessionMaxAge  = 24 * time.Hour
)

// errNotLoggedIn indicates the request carries no valid session.
var errNotLoggedIn = errors.New("not logged in")

// sessionUser returns the user attached to the request's session, or
// errNotLoggedIn if there is none.
func (svc *service) sessionUser(c *fiber.Ctx) (*model.User, error) {
	h := backend.NewFiberHandler(c, svc.codec)
	s, err := h.LoadSession(sessionName)
	if err != nil {
		return nil, fmt.Errorf("could not load session: %w", err)
	}

	var id int64
	err = s.Get(sessionUserKey, &id)
	if errors.Is(err, backend.ErrKeyNotFound) {
		return nil, errNotLoggedIn
	} else if err != nil {
		return nil, fmt.Errorf("could not get session user: %w", err)
	}

	u, err := svc.store.GetUser(c.Context(), id)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		// A session for a user the store no longer knows; treat as
		// logged out rather than an error.
		return nil, errNotLoggedIn
	} else if err != nil {
		return nil, fmt.Errorf("could not get user %d: %w", id, err)
	}
	return u, nil
}

// beginSession attaches a session for the given user to the response.
func (svc *service) beginSession(c *fiber.Ctx, u *model.User) error {
	h := backend.NewFiberHandler(c, svc.codec)
	s, err := h.LoadSession(sessionName)
	if err != nil {
		return fmt.Errorf("could not load session: %w", err)
	}
	err = s.Set(sessionUserKey, u.ID)
	if err != nil {
		return fmt.Errorf("could not set session user: %w", err)
	}
	err = s.SetMaxAge(sessionMaxAge)
	if err != nil {
		return fmt.Errorf("could not set session max age: %w", err)
	}
	return h.SaveSession(s)
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email" validate:"omitempty,email"`
	FullName string `json:"fullName" validate:"required"`
}

// registerHandler creates a new user account and logs it in.
func (svc *service) registerHandler(c *fiber.Ctx) error {
	var req registerRequest
	err := c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed registration request", withStatus(fiber.StatusBadRequest))
	}
	err = svc.validate.Struct(req)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid registration details: %v", err), withStatus(fiber.StatusBadRequest))
	}

	ctx := c.Context()
	_, err = svc.store.GetUserByUsername(ctx, req.Username)
	if err == nil {
		return logAndReturnError(c, "username taken", withStatus(fiber.StatusBadRequest))
	} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, fmt.Sprintf("could not check username: %v", err))
	}
	if req.Email != "" {
		_, err = svc.store.GetUserByEmail(ctx, req.Email)
		if err == nil {
			return logAndReturnError(c, "email already registered", withStatus(fiber.StatusBadRequest))
		} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return logAndReturnError(c, fmt.Sprintf("could not check email: %v", err))
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not hash password: %v", err))
	}

	u := &model.User{
		Username: req.Username,
		Password: string(hash),
		Email:    req.Email,
		FullName: req.FullName,
		Role:     model.RoleUser,
	}
	err = svc.store.CreateUser(ctx, u)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create user: %v", err))
	}

	err = svc.beginSession(c, u)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not begin session: %v", err))
	}
	return created(c, u)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// loginHandler verifies credentials and establishes a session.
func (svc *service) loginHandler(c *fiber.Ctx) error {
	var req loginRequest
	err := c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed login request", withStatus(fiber.StatusBadRequest))
	}
	err = svc.validate.Struct(req)
	if err != nil {
		return logAndReturnError(c, "username and password required", withStatus(fiber.StatusBadRequest))
	}

	u, err := svc.store.GetUserByUsername(c.Context(), req.Username)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "invalid username or password", withStatus(fiber.StatusUnauthorized))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get user: %v", err))
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password))
	if err != nil {
		return logAndReturnError(c, "invalid username or password", withStatus(fiber.StatusUnauthorized))
	}

	err = svc.beginSession(c, u)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not begin session: %v", err))
	}
	return ok(c, u)
}

// logoutHandler removes the current session, and logs out the user.
func (svc *service) logoutHandler(c *fiber.Ctx) error {
	h := backend.NewFiberHandler(c, svc.codec)
	s, err := h.LoadSession(sessionName)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not load session: %v", err))
	}
	err = s.Invalidate()
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not invalidate session: %v", err))
	}
	err = h.SaveSession(s)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not save session: %v", err))
	}
	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}

// meHandler returns the user attached to the request's session.
func (svc *service) meHandler(c *fiber.Ctx) error {
	u, err := svc.sessionUser(c)
	if errors.Is(err, errNotLoggedIn) {
		return logAndReturnError(c, "authentication required", withStatus(fiber.StatusUnauthorized))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get session user: %v", err))
	}
	return ok(c, u)
}

// googleLoginHandler starts the Google OAuth2 sign-in flow.
func (svc *service) googleLoginHandler(c *fiber.Ctx) error {
	u, _ := svc.sessionUser(c)
	if u != nil {
		return c.Redirect(c.FormValue("redirect", "/"), fiber.StatusFound)
	}
	return svc.auth.LoginHandler(backend.NewFiberHandler(c, svc.codec))
}

// googleCallbackHandler completes the Google OAuth2 flow, creating a
// user for first-time sign-ins and establishing a session.
func (svc *service) googleCallbackHandler(c *fiber.Ctx) error {
	p, redirect, err := svc.auth.CallbackHandler(backend.NewFiberHandler(c, svc.codec))
	if errors.Is(err, &gauth.ErrOauth2RedirectError{}) {
		log.Warn(err)
		return c.Redirect("/", fiber.StatusFound)
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("error handling callback: %v", err))
	}

	ctx := c.Context()
	u, err := svc.store.GetUserByEmail(ctx, p.Email)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		// First sign-in: create a user with no password. Such accounts
		// can only ever log in via Google, since no password compares
		// equal to an empty hash.
		u = &model.User{
			Username: p.Email,
			Email:    p.Email,
			FullName: strings.TrimSpace(p.GivenName + " " + p.FamilyName),
			Role:     model.RoleUser,
		}
		err = svc.store.CreateUser(ctx, u)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not create user for %s: %v", p.Email, err))
		}
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get user by email: %v", err))
	}

	err = svc.beginSession(c, u)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not begin session: %v", err))
	}

	if redirect == "" {
		redirect = "/"
	}
	return c.Redirect(redirect, fiber.StatusFound)
}
