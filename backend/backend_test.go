package backend_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"

	"github.com/buddhadham/cloud/backend"
)

const (
	testCookieID    = "buddhadham-session"
	testCookieKey   = "user"
	testCookieValue = "somchai"
)

var testCodec = securecookie.New(
	[]byte("0123456789abcdef0123456789abcdef"),
	[]byte("abcdefghijklmnopqrstuvwxyz012345"),
)

// testService is used to pass global scope variables to handlers.
type testService struct {
	t *testing.T
}

// TestFiberSessionRoundTrip tests that a value set in a sealed fiber
// session cookie survives a round trip through a second request, and
// that the raw cookie does not leak the value.
func TestFiberSessionRoundTrip(t *testing.T) {
	app := fiber.New()
	svc := &testService{t: t}

	app.Get("/set-session", svc.setHandler)
	app.Get("/get-session", svc.getHandler)

	req := httptest.NewRequest(http.MethodGet, "/set-session", nil)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	cookies := resp.Cookies()
	assert.Len(t, cookies, 1, "Expected 1 cookie to be set")
	assert.Equal(t, testCookieID, cookies[0].Name)

	// The cookie is sealed; the value must not appear in the clear.
	assert.NotContains(t, cookies[0].Value, testCookieValue)

	req2 := httptest.NewRequest(http.MethodGet, "/get-session", nil)
	req2.AddCookie(cookies[0])
	resp2, err := app.Test(req2, -1)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp2.StatusCode)
}

// TestNetSessionRoundTrip tests the net/http side of the Handler
// interface: a value set through a NetHandler survives a round trip
// through a second request, the cookie does not leak the value, and
// invalidation expires the cookie.
func TestNetSessionRoundTrip(t *testing.T) {
	store := sessions.NewCookieStore(
		[]byte("0123456789abcdef0123456789abcdef"),
		[]byte("abcdefghijklmnopqrstuvwxyz012345"),
	)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/set-session", nil)
	h := backend.NewNetHandler(w, r, store)

	sess, err := h.LoadSession(testCookieID)
	assert.NoError(t, err)
	assert.NoError(t, sess.Set(testCookieKey, testCookieValue))
	assert.NoError(t, sess.SetMaxAge(7*24*time.Hour))
	assert.NoError(t, h.SaveSession(sess))

	cookies := w.Result().Cookies()
	assert.Len(t, cookies, 1, "Expected 1 cookie to be set")
	assert.Equal(t, testCookieID, cookies[0].Name)
	assert.NotContains(t, cookies[0].Value, testCookieValue)

	w2 := httptest.NewRecorder()
	r2 := httptest.NewRequest(http.MethodGet, "/get-session", nil)
	r2.AddCookie(cookies[0])
	h2 := backend.NewNetHandler(w2, r2, store)

	sess2, err := h2.LoadSession(testCookieID)
	assert.NoError(t, err)
	var v string
	assert.NoError(t, sess2.Get(testCookieKey, &v))
	assert.Equal(t, testCookieValue, v)

	// Absent keys report ErrKeyNotFound, same as the fiber side.
	err = sess2.Get("no-such-key", &v)
	assert.ErrorIs(t, err, backend.ErrKeyNotFound)

	assert.NoError(t, sess2.Invalidate())
	assert.NoError(t, h2.SaveSession(sess2))
	cookies2 := w2.Result().Cookies()
	assert.Len(t, cookies2, 1)
	assert.Negative(t, cookies2[0].MaxAge)
}

// TestFiberSessionInvalidate tests that an invalidated session expires
// its cookie and drops its values.
func TestFiberSessionInvalidate(t *testing.T) {
	sess := backend.NewFiberSession(testCodec, testCookieID, "")
	assert.NoError(t, sess.Set(testCookieKey, testCookieValue))

	var v string
	assert.NoError(t, sess.Get(testCookieKey, &v))
	assert.Equal(t, testCookieValue, v)

	assert.NoError(t, sess.Invalidate())
	err := sess.Get(testCookieKey, &v)
	assert.ErrorIs(t, err, backend.ErrKeyNotFound)
}

// TestFiberSessionBadValue tests that an undecodable cookie value
// yields a fresh empty session rather than an error.
func TestFiberSessionBadValue(t *testing.T) {
	sess := backend.NewFiberSession(testCodec, testCookieID, "not-a-sealed-cookie")
	var v string
	err := sess.Get(testCookieKey, &v)
	assert.ErrorIs(t, err, backend.ErrKeyNotFound)
}

func (svc *testService) setHandler(c *fiber.Ctx) error {
	h := backend.NewFiberHandler(c, testCodec)
	sess, err := h.LoadSession(testCookieID)
	if err != nil {
		svc.t.Errorf("error getting session: %v", err)
	}

	sess.Set(testCookieKey, testCookieValue)
	sess.SetMaxAge(7 * 24 * time.Hour)
	return h.SaveSession(sess)
}

func (svc *testService) getHandler(c *fiber.Ctx) error {
	h := backend.NewFiberHandler(c, testCodec)
	sess, err := h.LoadSession(testCookieID)
	if err != nil {
		svc.t.Errorf("error getting session: %v", err)
	}

	var v string
	err = sess.Get(testCookieKey, &v)
	assert.NoError(svc.t, err)
	if v != testCookieValue {
		svc.t.Errorf("mismatch in set value and gotten value, got: %s, wanted: %s", v, testCookieValue)
	}
	return nil
}
