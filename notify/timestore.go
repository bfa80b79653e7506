/*
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

package notify

import (
	"context"
	"sync"
	"time"
)

// TimeStore is an interface for notification throttling persistence.
type TimeStore interface {
	Sendable(context.Context, string) (bool, error) // Returns true if a message is sendable.
	Sent(context.Context, string) error             // Records the time a message was sent.
}

// timeStore implements an in-process TimeStore. Send times live for
// the lifetime of the process, which matches the site's datastore
// lifetime.
type timeStore struct {
	mutex  sync.Mutex
	period time.Duration
	sent   map[string]time.Time
}

// NewTimeStore returns a TimeStore that suppresses messages for the
// same key within the given period of a previous send.
func NewTimeStore(period time.Duration) TimeStore {
	return &timeStore{period: period, sent: make(map[string]time.Time)}
}

// Sendable returns true either if (1) the period has elapsed since the
// last time a message for the given key was sent or (2) a message is
// being sent for the first time.
func (ts *timeStore) Sendable(ctx context.Context, key string) (bool, error) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	at, ok := ts.sent[key]
	if !ok {
		return true, nil
	}
	return time.Since(at) >= ts.period, nil
}

// Sent records the time that a message with the given key was sent.
func (ts *timeStore) Sent(ctx context.Context, key string) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	ts.sent[key] = time.Now()
	return nil
}
