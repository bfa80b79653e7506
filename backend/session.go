package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// ErrKeyNotFound is returned by Session.Get when the session holds no
// value for the given key.
var ErrKeyNotFound = errors.New("key not found in session")

// Session defines an interface for a session to keep track of user
// authenticated sessions.
type Session interface {
	// SetMaxAge sets the max age of the session, after which the
	// session is no longer valid.
	SetMaxAge(age time.Duration) error

	// Set stores a key value pair in the session.
	Set(key string, value any) error

	// Get retrieves the value for a given key in the session and
	// stores it in the destination, or returns ErrKeyNotFound.
	Get(key string, dst any) error

	// Invalidate immediately invalidates the session and marks it as
	// no longer valid.
	Invalidate() error
}

// FiberSession implements the Session interface using a client-side
// cookie, authenticated and encrypted with a securecookie codec so
// values cannot be read or forged by the browser.
type FiberSession struct {
	cookie *fiber.Cookie              // Cookie used to store the session.
	values map[string]json.RawMessage // Key value pairs encoded into the cookie.
	codec  *securecookie.SecureCookie // Codec sealing the cookie value.
}

// NewFiberSession returns a FiberSession with the given id, decoding
// any existing encoded cookie value with the codec. An empty or
// undecodable value yields a fresh empty session.
func NewFiberSession(codec *securecookie.SecureCookie, id, value string) *FiberSession {
	s := &FiberSession{
		cookie: &fiber.Cookie{Name: id, Path: "/", HTTPOnly: true},
		values: make(map[string]json.RawMessage),
		codec:  codec,
	}
	if value == "" {
		return s
	}
	// A cookie sealed under an old secret fails to decode; treat it as
	// no session rather than an error.
	err := codec.Decode(id, value, &s.values)
	if err != nil {
		s.values = make(map[string]json.RawMessage)
	}
	return s
}

// SetMaxAge implements Session.SetMaxAge by setting the maximum age of
// the cookie.
func (s *FiberSession) SetMaxAge(age time.Duration) error {
	s.cookie.MaxAge = int(age.Seconds())
	return s.seal()
}

// Set implements Session.Set by storing the JSON encoding of the value
// and resealing the cookie.
func (s *FiberSession) Set(key string, value any) error {
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("unable to marshal value to json: %w", err)
	}
	s.values[key] = json.RawMessage(v)
	return s.seal()
}

// Get implements Session.Get by decoding the stored JSON value for the
// given key into dst.
func (s *FiberSession) Get(key string, dst any) error {
	v, ok := s.values[key]
	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(v, dst)
}

// Invalidate implements Session.Invalidate by clearing the values and
// expiring the cookie.
func (s *FiberSession) Invalidate() error {
	s.values = make(map[string]json.RawMessage)
	s.cookie.Value = ""
	s.cookie.MaxAge = -1
	return nil
}

// seal encodes the value map into the cookie value.
func (s *FiberSession) seal() error {
	encoded, err := s.codec.Encode(s.cookie.Name, s.values)
	if err != nil {
		return fmt.Errorf("unable to encode session cookie: %w", err)
	}
	s.cookie.Value = encoded
	return nil
}

// getCookie returns the fiber Cookie used to store the session.
func (s *FiberSession) getCookie() *fiber.Cookie {
	return s.cookie
}

// GorillaSession implements the Session interface using Gorilla
// Sessions, for services served with net/http.
type GorillaSession struct {
	session *sessions.Session
}

// NewGorillaSession wraps a gorilla session.
func NewGorillaSession(session *sessions.Session) *GorillaSession {
	return &GorillaSession{session: session}
}

// SetMaxAge implements Session.SetMaxAge by setting the maximum age of
// the underlying session options.
func (s *GorillaSession) SetMaxAge(age time.Duration) error {
	s.session.Options.MaxAge = int(age.Seconds())
	return nil
}

// Set implements Session.Set by adding the key value pair to the
// gorilla session's Values map.
func (s *GorillaSession) Set(key string, value any) error {
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("unable to marshal value to json: %w", err)
	}
	s.session.Values[key] = v
	return nil
}

// Get implements Session.Get by decoding the value for the given key
// into dst.
func (s *GorillaSession) Get(key string, dst any) error {
	v, ok := s.session.Values[key]
	if !ok {
		return ErrKeyNotFound
	}
	b, ok := v.([]byte)
	if !ok {
		return fmt.Errorf("unexpected session value type %T for key %s", v, key)
	}
	return json.Unmarshal(b, dst)
}

// Invalidate implements Session.Invalidate by setting the max age of
// the session to -1.
func (s *GorillaSession) Invalidate() error {
	s.session.Values = make(map[any]any)
	s.session.Options.MaxAge = -1
	return nil
}
