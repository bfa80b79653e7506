package backend

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// Handler is an interface used to abstract the functionality of
// different HTTP frameworks, so that authentication flows can be
// written once and served from either fiber or net/http.
type Handler interface {
	// FormValue returns the value for the given field in a http form
	// if it exists.
	FormValue(string) string

	// Redirect creates a redirect to the specified location, with the
	// given status code.
	Redirect(string, int) error

	// Context returns a context value which implements the
	// context.Context interface.
	Context() context.Context

	// LoadSession returns a Session based on the given id.
	LoadSession(string) (Session, error)

	// SaveSession saves the passed Session to the session store.
	SaveSession(Session) error
}

// FiberHandler is a fiber based implementation of the Handler
// interface. Sessions are FiberSessions stored in client side cookies
// sealed with the securecookie codec.
type FiberHandler struct {
	Ctx   *fiber.Ctx
	codec *securecookie.SecureCookie
}

// NewFiberHandler creates a new FiberHandler for the given request
// context and cookie codec.
func NewFiberHandler(c *fiber.Ctx, codec *securecookie.SecureCookie) Handler {
	return &FiberHandler{Ctx: c, codec: codec}
}

// FormValue implements Handler.FormValue by calling the FormValue
// method of the attached *fiber.Ctx.
func (h *FiberHandler) FormValue(key string) string {
	return h.Ctx.FormValue(key)
}

// Redirect implements Handler.Redirect by calling the Redirect method
// of the attached *fiber.Ctx.
func (h *FiberHandler) Redirect(location string, status int) error {
	return h.Ctx.Redirect(location, status)
}

// Context implements Handler.Context by calling the *fiber.Ctx.Context
// method.
func (h *FiberHandler) Context() context.Context {
	return h.Ctx.Context()
}

// LoadSession implements Handler.LoadSession by decoding the request
// cookie with the given id.
func (h *FiberHandler) LoadSession(id string) (Session, error) {
	return NewFiberSession(h.codec, id, h.Ctx.Cookies(id)), nil
}

// SaveSession implements Handler.SaveSession by writing the session
// cookie to the response.
func (h *FiberHandler) SaveSession(session Session) error {
	fs, ok := session.(*FiberSession)
	if !ok {
		return fmt.Errorf("incompatible session type, wanted FiberSession, got %v", reflect.TypeOf(session))
	}
	h.Ctx.Cookie(fs.getCookie())
	return nil
}

// NetHandler is a net/http based implementation of the Handler
// interface, using gorilla sessions with a cookie store.
type NetHandler struct {
	w     http.ResponseWriter
	r     *http.Request
	store *sessions.CookieStore
}

// NewNetHandler creates a new NetHandler for the given request pair
// and cookie store.
func NewNetHandler(w http.ResponseWriter, r *http.Request, store *sessions.CookieStore) Handler {
	return &NetHandler{w, r, store}
}

// FormValue implements Handler.FormValue by calling the FormValue
// method of the attached *http.Request.
func (h *NetHandler) FormValue(key string) string {
	return h.r.FormValue(key)
}

// Redirect implements Handler.Redirect by calling http.Redirect.
func (h *NetHandler) Redirect(location string, status int) error {
	http.Redirect(h.w, h.r, location, status)
	return nil
}

// Context implements Handler.Context by calling the
// *http.Request.Context method.
func (h *NetHandler) Context() context.Context {
	return h.r.Context()
}

// LoadSession implements Handler.LoadSession using the gorilla cookie
// store.
func (h *NetHandler) LoadSession(id string) (Session, error) {
	sess, err := h.store.Get(h.r, id)
	if err != nil {
		return nil, fmt.Errorf("unable to get session with ID: %s: %w", id, err)
	}
	return NewGorillaSession(sess), nil
}

// SaveSession implements Handler.SaveSession using the gorilla cookie
// store.
func (h *NetHandler) SaveSession(session Session) error {
	gs, ok := session.(*GorillaSession)
	if !ok {
		return fmt.Errorf("incompatible session type, wanted GorillaSession, got %v", reflect.TypeOf(session))
	}
	return h.store.Save(h.r, h.w, gs.session)
}
