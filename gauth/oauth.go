/*
DESCRIPTION
  Google OAuth2 sign-in flow, written against the backend.Handler
  abstraction so it can serve fiber or net/http services alike.

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

package gauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/buddhadham/cloud/backend"
)

// How long a login attempt may take before its state token expires.
const stateTTL = 10 * time.Minute

// Oauth2 flow errors.
var (
	ErrMissingCode  = errors.New("callback request carries no code")
	ErrInvalidState = errors.New("oauth2 state invalid or expired")
)

// ErrOauth2RedirectError indicates that the provider redirected back
// with an error instead of an authorization code, e.g. because the
// user declined consent.
type ErrOauth2RedirectError struct {
	Reason string
}

// Error implements the error interface.
func (e *ErrOauth2RedirectError) Error() string {
	return fmt.Sprintf("oauth2 provider returned error: %s", e.Reason)
}

// Is reports whether target is an ErrOauth2RedirectError, so callers
// can match with errors.Is regardless of reason.
func (e *ErrOauth2RedirectError) Is(target error) bool {
	_, ok := target.(*ErrOauth2RedirectError)
	return ok
}

// Profile holds the identity returned by Google for a signed-in user.
type Profile struct {
	ID         string `json:"id"`         // Google account ID.
	Email      string `json:"email"`      // Account email address.
	GivenName  string `json:"givenName"`  // Given name.
	FamilyName string `json:"familyName"` // Family name.
	Picture    string `json:"picture"`    // Avatar URL.
}

// OAuth2 drives the Google sign-in flow. The state round-tripped
// through the provider is a short-lived signed JWT, so no server-side
// state is kept between login and callback.
type OAuth2 struct {
	cfg    *oauth2.Config
	secret []byte
}

// NewOAuth2 returns an OAuth2 for the given Google client credentials.
// The secret signs the state token and must match between the login
// and callback requests.
func NewOAuth2(clientID, clientSecret, redirectURL string, secret []byte) *OAuth2 {
	return &OAuth2{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{oauth2api.UserinfoEmailScope, oauth2api.UserinfoProfileScope},
			Endpoint:     google.Endpoint,
		},
		secret: secret,
	}
}

// LoginHandler starts the sign-in flow by redirecting to Google's
// consent page with a signed state token. The optional redirect form
// value is carried through the flow and returned by CallbackHandler.
func (o *OAuth2) LoginHandler(h backend.Handler) error {
	state, err := PutClaims(map[string]interface{}{
		"nonce":    uuid.NewString(),
		"redirect": h.FormValue("redirect"),
		"exp":      time.Now().Add(stateTTL).Unix(),
	}, o.secret)
	if err != nil {
		return fmt.Errorf("could not sign state token: %w", err)
	}
	return h.Redirect(o.cfg.AuthCodeURL(state), http.StatusFound)
}

// CallbackHandler completes the sign-in flow: it verifies the state
// token, exchanges the authorization code for a token, and fetches the
// user's profile. It returns the profile along with the redirect
// target supplied to LoginHandler, if any.
func (o *OAuth2) CallbackHandler(h backend.Handler) (*Profile, string, error) {
	if reason := h.FormValue("error"); reason != "" {
		return nil, "", &ErrOauth2RedirectError{Reason: reason}
	}

	claims, err := GetClaims(h.FormValue("state"), o.secret)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	redirect, _ := claims["redirect"].(string)

	code := h.FormValue("code")
	if code == "" {
		return nil, "", ErrMissingCode
	}

	ctx := h.Context()
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("could not exchange code for token: %w", err)
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(o.cfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, "", fmt.Errorf("could not create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return nil, "", fmt.Errorf("could not get userinfo: %w", err)
	}

	p := &Profile{
		ID:         info.Id,
		Email:      info.Email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
		Picture:    info.Picture,
	}
	return p, redirect, nil
}
