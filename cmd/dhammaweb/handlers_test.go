/*
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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/buddhadham/cloud/datastore"
	"github.com/buddhadham/cloud/model"
	"github.com/buddhadham/cloud/notify"
)

// newTestApp returns a service backed by the in-memory store with no
// mail, Google sign-in or Stripe configured, and its router.
func newTestApp(t *testing.T) (*service, *fiber.App) {
	t.Helper()
	store, err := datastore.NewStore(context.Background(), "memory", projectID, "")
	require.NoError(t, err)

	svc := &service{
		store:    store,
		codec:    securecookie.New([]byte("0123456789abcdef0123456789abcdef"), []byte("fedcba9876543210fedcba9876543210")),
		validate: validator.New(),
		notifier: &notify.Notifier{},
	}
	require.NoError(t, svc.notifier.Init())
	return svc, newRouter(svc)
}

// doJSON performs a request with an optional JSON body and decodes the
// JSON response, if any.
func doJSON(t *testing.T, f *fiber.App, method, path string, body any, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := f.Test(req, -1)
	require.NoError(t, err)

	var kv map[string]any
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&kv))
	}
	return resp, kv
}

// sessionCookie returns the session cookie set by the response.
func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionName {
			return ck
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

// data returns the data object of a response body.
func data(t *testing.T, kv map[string]any) map[string]any {
	t.Helper()
	d, ok := kv["data"].(map[string]any)
	require.True(t, ok, "response carries no data object: %v", kv)
	return d
}

// registerUser registers a user and returns its session cookie and id.
func registerUser(t *testing.T, f *fiber.App, username string) (*http.Cookie, int64) {
	t.Helper()
	resp, kv := doJSON(t, f, "POST", "/api/auth/register", fiber.Map{
		"username": username,
		"password": "dhamma-pass-1",
		"email":    username + "@example.com",
		"fullName": "Test " + username,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return sessionCookie(t, resp), int64(data(t, kv)["id"].(float64))
}

// loginAdmin creates an admin user directly in the store and logs in.
func loginAdmin(t *testing.T, svc *service, f *fiber.App) *http.Cookie {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass-123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		Username: "admin",
		Password: string(hash),
		Email:    "admin@buddhadham.org",
		FullName: "Site Admin",
		Role:     model.RoleAdmin,
	}
	require.NoError(t, svc.store.CreateUser(context.Background(), u))

	resp, _ := doJSON(t, f, "POST", "/api/auth/login", fiber.Map{"username": "admin", "password": "admin-pass-123"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return sessionCookie(t, resp)
}

// createTestMember creates a member profile for the session's user.
func createTestMember(t *testing.T, f *fiber.App, cookie *http.Cookie) int64 {
	t.Helper()
	resp, kv := doJSON(t, f, "POST", "/api/members", fiber.Map{
		"membershipLevel":   model.LevelBronze,
		"donationAmount":    100,
		"donationFrequency": model.FrequencyMonthly,
	}, cookie)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return int64(data(t, kv)["id"].(float64))
}

func TestRegisterLoginMeLogout(t *testing.T) {
	_, f := newTestApp(t)

	resp, kv := doJSON(t, f, "POST", "/api/auth/register", fiber.Map{
		"username": "somchai",
		"password": "dhamma-pass-1",
		"email":    "somchai@example.com",
		"fullName": "Somchai P",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	d := data(t, kv)
	assert.Equal(t, "somchai", d["username"])
	assert.Greater(t, d["id"].(float64), 0.0)
	_, leaked := d["password"]
	assert.False(t, leaked, "password hash must never be serialized")

	// A second registration with the same username fails, 400.
	resp, kv = doJSON(t, f, "POST", "/api/auth/register", fiber.Map{
		"username": "somchai",
		"password": "dhamma-pass-2",
		"fullName": "Somebody Else",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, kv["message"], "username taken")

	// Wrong password, 401.
	resp, _ = doJSON(t, f, "POST", "/api/auth/login", fiber.Map{"username": "somchai", "password": "wrong-pass-1"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Correct credentials establish a session.
	resp, _ = doJSON(t, f, "POST", "/api/auth/login", fiber.Map{"username": "somchai", "password": "dhamma-pass-1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp)
	assert.NotEmpty(t, cookie.Value)

	resp, kv = doJSON(t, f, "GET", "/api/auth/me", nil, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "somchai", data(t, kv)["username"])

	// Without a cookie, 401.
	resp, _ = doJSON(t, f, "GET", "/api/auth/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Logout replaces the cookie with an expired empty one.
	resp, _ = doJSON(t, f, "POST", "/api/auth/logout", nil, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cleared := sessionCookie(t, resp)
	assert.Empty(t, cleared.Value)

	resp, _ = doJSON(t, f, "GET", "/api/auth/me", nil, cleared)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestContactSend(t *testing.T) {
	_, f := newTestApp(t)

	before := time.Now()
	resp, kv := doJSON(t, f, "POST", "/api/contact/send", fiber.Map{
		"name":    "A",
		"email":   "a@example.com",
		"message": "hi",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	d := data(t, kv)
	assert.Greater(t, d["id"].(float64), 0.0)

	createdAt, err := time.Parse(time.RFC3339, d["createdAt"].(string))
	require.NoError(t, err)
	assert.False(t, createdAt.Before(before.Add(-time.Second)), "createdAt predates the request")

	// Missing message, 400.
	resp, _ = doJSON(t, f, "POST", "/api/contact/send", fiber.Map{"name": "A", "email": "a@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestNewsletterDuplicate(t *testing.T) {
	_, f := newTestApp(t)

	sub := fiber.Map{"firstName": "Mali", "email": "mali@example.com", "interests": []string{"meditation"}}
	resp, _ := doJSON(t, f, "POST", "/api/newsletter/subscribe", sub)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, kv := doJSON(t, f, "POST", "/api/newsletter/subscribe", sub)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, kv["message"], "already subscribed")

	// Malformed email, 400.
	resp, _ = doJSON(t, f, "POST", "/api/newsletter/subscribe", fiber.Map{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDonationStringAmount(t *testing.T) {
	_, f := newTestApp(t)

	// Payment forms commonly post the amount as a string.
	resp, kv := doJSON(t, f, "POST", "/api/donations/custom", fiber.Map{
		"amount": "25.50",
		"name":   "Anon",
		"email":  "anon@example.com",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, 25.50, data(t, kv)["amount"])

	resp, _ = doJSON(t, f, "POST", "/api/donations/custom", fiber.Map{
		"amount": "-5",
		"name":   "Anon",
		"email":  "anon@example.com",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestVolunteerApply(t *testing.T) {
	_, f := newTestApp(t)

	resp, kv := doJSON(t, f, "POST", "/api/volunteer/apply", fiber.Map{
		"name":         "Niran",
		"email":        "niran@example.com",
		"interests":    []string{"gardening"},
		"availability": "weekends",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Greater(t, data(t, kv)["id"].(float64), 0.0)
}

func TestMemberOwnership(t *testing.T) {
	svc, f := newTestApp(t)

	cookieA, _ := registerUser(t, f, "owner")
	cookieB, _ := registerUser(t, f, "other")
	memberID := createTestMember(t, f, cookieA)
	path := "/api/members/" + strconv.FormatInt(memberID, 10)

	// No session, 401.
	resp, _ := doJSON(t, f, "GET", path+"/donations", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Another user's session, 403.
	resp, _ = doJSON(t, f, "GET", path+"/donations", nil, cookieB)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, f, "GET", path, nil, cookieB)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The owner, 200.
	resp, _ = doJSON(t, f, "GET", path+"/donations", nil, cookieA)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Admins may read any member.
	admin := loginAdmin(t, svc, f)
	resp, _ = doJSON(t, f, "GET", path, nil, admin)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The member list is admin only.
	resp, _ = doJSON(t, f, "GET", "/api/members", nil, cookieB)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, f, "GET", "/api/members", nil, admin)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMemberUpdate(t *testing.T) {
	_, f := newTestApp(t)

	cookie, userID := registerUser(t, f, "patcher")
	memberID := createTestMember(t, f, cookie)
	path := "/api/members/" + strconv.FormatInt(memberID, 10)

	// Identity fields are rejected, not ignored.
	resp, kv := doJSON(t, f, "PATCH", path, fiber.Map{"userId": userID + 1}, cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, kv["message"], "identity")

	resp, kv = doJSON(t, f, "PATCH", path, fiber.Map{"membershipLevel": model.LevelGold}, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	d := data(t, kv)
	assert.Equal(t, model.LevelGold, d["membershipLevel"])
	assert.EqualValues(t, userID, d["userId"])

	resp, _ = doJSON(t, f, "PATCH", path, fiber.Map{"membershipLevel": "diamond"}, cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Absent member, 404.
	resp, _ = doJSON(t, f, "PATCH", "/api/members/9999", fiber.Map{"city": "Bangkok"}, cookie)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBenefitCatalog(t *testing.T) {
	svc, f := newTestApp(t)

	// The catalog is public.
	resp, _ := doJSON(t, f, "GET", "/api/member-benefits", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Mutation requires an admin.
	benefit := fiber.Map{"membershipLevel": model.LevelBronze, "benefitName": "Newsletter"}
	resp, _ = doJSON(t, f, "POST", "/api/member-benefits", benefit)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	admin := loginAdmin(t, svc, f)
	resp, kv := doJSON(t, f, "POST", "/api/member-benefits", benefit, admin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	d := data(t, kv)
	assert.Equal(t, true, d["isActive"])
	id := int64(d["id"].(float64))

	resp, kv = doJSON(t, f, "GET", "/api/member-benefits/level/"+model.LevelBronze, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, kv["data"], 1)

	resp, _ = doJSON(t, f, "GET", "/api/member-benefits/level/diamond", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, kv = doJSON(t, f, "PATCH", "/api/member-benefits/"+strconv.FormatInt(id, 10),
		fiber.Map{"isActive": false}, admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, data(t, kv)["isActive"])
}

func TestPledgeLifecycle(t *testing.T) {
	_, f := newTestApp(t)

	cookie, _ := registerUser(t, f, "pledger")
	memberID := createTestMember(t, f, cookie)
	base := "/api/members/" + strconv.FormatInt(memberID, 10)

	resp, kv := doJSON(t, f, "POST", base+"/donations", fiber.Map{
		"amount":        250,
		"frequency":     model.FrequencyMonthly,
		"paymentMethod": model.MethodCard,
	}, cookie)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	d := data(t, kv)
	assert.EqualValues(t, memberID, d["memberId"])
	assert.Equal(t, model.PledgeActive, d["status"])
	pledgeID := int64(d["id"].(float64))

	next, err := time.Parse(time.RFC3339, d["nextPaymentDate"].(string))
	require.NoError(t, err)
	assert.True(t, next.After(time.Now()), "next payment date must lie ahead")

	path := "/api/member-donations/" + strconv.FormatInt(pledgeID, 10)

	// The owning member cannot be reassigned.
	resp, _ = doJSON(t, f, "PATCH", path, fiber.Map{"memberId": memberID + 1}, cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, kv = doJSON(t, f, "PATCH", path, fiber.Map{"status": model.PledgePaused}, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, model.PledgePaused, data(t, kv)["status"])

	resp, _ = doJSON(t, f, "PATCH", path, fiber.Map{"status": "dormant"}, cookie)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, f, "GET", "/api/member-donations/9999", nil, cookie)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPaymentCreationAdminOnly(t *testing.T) {
	svc, f := newTestApp(t)

	cookie, _ := registerUser(t, f, "payer")
	memberID := createTestMember(t, f, cookie)
	base := "/api/members/" + strconv.FormatInt(memberID, 10)

	resp, kv := doJSON(t, f, "POST", base+"/donations", fiber.Map{
		"amount":    250,
		"frequency": model.FrequencyMonthly,
	}, cookie)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	pledgeID := int64(data(t, kv)["id"].(float64))

	payment := fiber.Map{"amount": 250, "donationId": pledgeID, "paymentMethod": model.MethodBank}

	// Members cannot record their own payments.
	resp, _ = doJSON(t, f, "POST", base+"/payments", payment, cookie)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	admin := loginAdmin(t, svc, f)
	resp, kv = doJSON(t, f, "POST", base+"/payments", payment, admin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	d := data(t, kv)
	assert.Equal(t, model.PaymentSucceeded, d["status"])
	paymentID := int64(d["id"].(float64))

	// The settled payment advanced the pledge.
	resp, kv = doJSON(t, f, "GET", "/api/member-donations/"+strconv.FormatInt(pledgeID, 10), nil, cookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	last, err := time.Parse(time.RFC3339, data(t, kv)["lastPaymentDate"].(string))
	require.NoError(t, err)
	assert.False(t, last.IsZero())

	// The member may read their payment; a stranger may not.
	path := "/api/member-payments/" + strconv.FormatInt(paymentID, 10)
	resp, _ = doJSON(t, f, "GET", path, nil, cookie)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	stranger, _ := registerUser(t, f, "stranger")
	resp, _ = doJSON(t, f, "GET", path, nil, stranger)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// A pledge of another member cannot be referenced.
	resp, _ = doJSON(t, f, "POST", base+"/payments", fiber.Map{"amount": 10, "donationId": 9999}, admin)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// recordingStore is a notify.TimeStore that permits every send and
// records the keys of the messages sent.
type recordingStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingStore) Sendable(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (s *recordingStore) Sent(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func (s *recordingStore) recorded(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.keys, key)
}

// paymentIntentEvent composes a Stripe payment intent event body.
func paymentIntentEvent(eventType string, amount int64, metadata fiber.Map) fiber.Map {
	return fiber.Map{
		"type": eventType,
		"data": fiber.Map{
			"object": fiber.Map{
				"amount":   amount,
				"metadata": metadata,
			},
		},
	}
}

// TestStripeWebhook tests that with card payments enabled the donation
// receipt waits for settlement, and that settled member intents are
// recorded as payment events and advance their pledge.
func TestStripeWebhook(t *testing.T) {
	svc, f := newTestApp(t)
	ctx := context.Background()

	cookie, _ := registerUser(t, f, "payer")
	memberID := createTestMember(t, f, cookie)
	base := "/api/members/" + strconv.FormatInt(memberID, 10)
	resp, kv := doJSON(t, f, "POST", base+"/donations", fiber.Map{
		"amount":        250,
		"frequency":     model.FrequencyMonthly,
		"paymentMethod": model.MethodCard,
	}, cookie)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	pledgeID := int64(data(t, kv)["id"].(float64))

	// Rebuild the router with card payments enabled so the webhook
	// route is registered, and record what gets sent.
	rec := &recordingStore{}
	require.NoError(t, svc.notifier.Init(notify.WithStore(rec)))
	svc.stripeEnabled = true
	f = newRouter(svc)

	d := &model.Donation{Amount: 25.5, Name: "Anon", Email: "anon@example.com"}
	require.NoError(t, svc.store.CreateDonation(ctx, d))
	donationMeta := fiber.Map{"donationId": strconv.FormatInt(d.ID, 10)}

	// A failed intent sends no receipt.
	resp, _ = doJSON(t, f, "POST", "/api/stripe/webhook",
		paymentIntentEvent("payment_intent.payment_failed", 2550, donationMeta))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, rec.recorded("receipt.anon@example.com"))

	// A settled intent does.
	resp, _ = doJSON(t, f, "POST", "/api/stripe/webhook",
		paymentIntentEvent("payment_intent.succeeded", 2550, donationMeta))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool {
		return rec.recorded("receipt.anon@example.com")
	}, time.Second, 10*time.Millisecond, "receipt not sent on settlement")

	// A settled member intent records a payment event and advances the
	// pledge.
	resp, _ = doJSON(t, f, "POST", "/api/stripe/webhook",
		paymentIntentEvent("payment_intent.succeeded", 25000, fiber.Map{
			"memberId": strconv.FormatInt(memberID, 10),
			"pledgeId": strconv.FormatInt(pledgeID, 10),
		}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payments, err := svc.store.GetMemberPaymentsByMember(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, 250.0, payments[0].Amount)
	assert.Equal(t, model.PaymentSucceeded, payments[0].Status)

	pledge, err := svc.store.GetMemberDonation(ctx, pledgeID)
	require.NoError(t, err)
	assert.False(t, pledge.LastPaymentDate.IsZero(), "settlement must advance the pledge")

	// Unhandled event types are acknowledged and ignored.
	resp, _ = doJSON(t, f, "POST", "/api/stripe/webhook", fiber.Map{"type": "charge.refunded"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
