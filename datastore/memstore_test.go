/*
DESCRIPTION
  MemStore tests.

AUTHORS
  Pritam Bhaladhare <pritam@buddhadham.org>

LICENSE
  Copyright (C) 2025-2026 the Buddhadham Foundation.

  This file is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License in
  gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/buddhadham/cloud/model"
)

const (
	testUsername  = "somchai"
	testUserEmail = "somchai@example.com"
	testFullName  = "Somchai Prasert"
	testSubEmail  = "reader@example.com"
)

// TestUserIDs tests that user ids are positive and strictly increasing.
func TestUserIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	var last int64
	for i, username := range []string{"a", "b", "c", "d"} {
		u := &model.User{Username: username, FullName: testFullName}
		err := store.CreateUser(ctx, u)
		if err != nil {
			t.Fatalf("CreateUser#%d failed with unexpected error: %v", i, err)
		}
		if u.ID <= last {
			t.Errorf("CreateUser#%d failed: expected id > %d, got %d", i, last, u.ID)
		}
		last = u.ID
	}
}

// TestUserDefaults tests creation defaults and lookups.
func TestUserDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	u := &model.User{Username: testUsername, Email: testUserEmail, FullName: testFullName}
	assert.NoError(t, store.CreateUser(ctx, u))
	assert.Equal(t, model.RoleUser, u.Role)
	assert.False(t, u.Created.IsZero())

	got, err := store.GetUser(ctx, u.ID)
	assert.NoError(t, err)
	assert.Equal(t, testUsername, got.Username)

	got, err = store.GetUserByUsername(ctx, testUsername)
	assert.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = store.GetUserByEmail(ctx, testUserEmail)
	assert.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// Absent lookups return ErrNoSuchEntity, never panic.
	_, err = store.GetUser(ctx, 999)
	assert.ErrorIs(t, err, ErrNoSuchEntity)
	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNoSuchEntity)

	// A user with an empty email never matches an empty-email lookup.
	assert.NoError(t, store.CreateUser(ctx, &model.User{Username: "noemail"}))
	_, err = store.GetUserByEmail(ctx, "")
	assert.ErrorIs(t, err, ErrNoSuchEntity)
}

// TestNewsletterDuplicate tests that a second subscription with the
// same email fails and leaves exactly one record.
func TestNewsletterDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	first := &model.Newsletter{FirstName: "Mali", Email: testSubEmail, Interests: []string{"meditation"}}
	assert.NoError(t, store.CreateNewsletter(ctx, first))

	second := &model.Newsletter{FirstName: "Mali", Email: testSubEmail}
	err := store.CreateNewsletter(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	subs, err := store.GetNewsletters(ctx)
	assert.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Equal(t, first.ID, subs[0].ID)
}

// TestMemberUpdate tests partial updates, including that the patch
// cannot touch the owning user and that Updated moves forward.
func TestMemberUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	// Fix the clock so Updated comparisons are deterministic.
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	m := &model.Member{
		UserID:            42,
		MembershipLevel:   model.LevelSilver,
		MembershipStatus:  model.StatusPending,
		DonationAmount:    20,
		DonationFrequency: model.FrequencyMonthly,
	}
	assert.NoError(t, store.CreateMember(ctx, m))
	assert.Equal(t, m.Created, m.Updated)

	now = now.Add(time.Hour)
	status := model.StatusActive
	got, err := store.UpdateMember(ctx, m.ID, model.MemberPatch{MembershipStatus: &status})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.MembershipStatus)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, model.LevelSilver, got.MembershipLevel)
	assert.True(t, got.Updated.After(got.Created))

	_, err = store.UpdateMember(ctx, 999, model.MemberPatch{MembershipStatus: &status})
	assert.ErrorIs(t, err, ErrNoSuchEntity)
}

// TestInsertionOrder tests that list operations return records in
// insertion order.
func TestInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	names := []string{"first", "second", "third", "fourth", "fifth"}
	for _, name := range names {
		err := store.CreateContactMessage(ctx, &model.ContactMessage{Name: name, Email: name + "@example.com", Message: "hi"})
		assert.NoError(t, err)
	}

	msgs, err := store.GetContactMessages(ctx)
	assert.NoError(t, err)
	assert.Len(t, msgs, len(names))
	for i, msg := range msgs {
		assert.Equal(t, names[i], msg.Name)
	}
}

// TestPledgesAndPayments tests pledge scoping by member and payment
// date defaulting.
func TestPledgesAndPayments(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	d1 := &model.MemberDonation{MemberID: 1, Amount: 25, Frequency: model.FrequencyMonthly, Status: model.PledgeActive}
	d2 := &model.MemberDonation{MemberID: 2, Amount: 100, Frequency: model.FrequencyAnnual, Status: model.PledgeActive}
	assert.NoError(t, store.CreateMemberDonation(ctx, d1))
	assert.NoError(t, store.CreateMemberDonation(ctx, d2))

	pledges, err := store.GetMemberDonationsByMember(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, pledges, 1)
	assert.Equal(t, d1.ID, pledges[0].ID)

	pledges, err = store.GetMemberDonationsByMember(ctx, 3)
	assert.NoError(t, err)
	assert.Empty(t, pledges)

	p := &model.MemberPayment{MemberID: 1, DonationID: d1.ID, Amount: 25, Status: model.PaymentSucceeded, PaymentMethod: model.MethodCard}
	assert.NoError(t, store.CreateMemberPayment(ctx, p))
	assert.False(t, p.PaymentDate.IsZero())

	payments, err := store.GetMemberPaymentsByMember(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, p.ID, payments[0].ID)
}

// TestBenefitsByLevel tests the benefit catalog level filter and update.
func TestBenefitsByLevel(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	gold := &model.MemberBenefit{MembershipLevel: model.LevelGold, BenefitName: "Retreat discount", IsActive: true}
	bronze := &model.MemberBenefit{MembershipLevel: model.LevelBronze, BenefitName: "Newsletter", IsActive: true}
	assert.NoError(t, store.CreateMemberBenefit(ctx, gold))
	assert.NoError(t, store.CreateMemberBenefit(ctx, bronze))

	benefits, err := store.GetMemberBenefitsByLevel(ctx, model.LevelGold)
	assert.NoError(t, err)
	assert.Len(t, benefits, 1)
	assert.Equal(t, "Retreat discount", benefits[0].BenefitName)

	inactive := false
	got, err := store.UpdateMemberBenefit(ctx, gold.ID, model.MemberBenefitPatch{IsActive: &inactive})
	assert.NoError(t, err)
	assert.False(t, got.IsActive)
}

// TestDonations tests one-time donation storage and retrieval by id.
func TestDonations(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	d := &model.Donation{Amount: 25.5, Name: "Anon", Email: "anon@example.com"}
	assert.NoError(t, store.CreateDonation(ctx, d))
	assert.Positive(t, d.ID)

	got, err := store.GetDonation(ctx, d.ID)
	assert.NoError(t, err)
	assert.Equal(t, d.Amount, got.Amount)
	assert.Equal(t, d.Email, got.Email)
	assert.False(t, got.Created.IsZero())

	_, err = store.GetDonation(ctx, d.ID+1)
	assert.ErrorIs(t, err, ErrNoSuchEntity)
}

// TestNewStore tests the backing factory.
func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, "memory", "", "")
	assert.NoError(t, err)
	assert.IsType(t, &MemStore{}, store)

	_, err = NewStore(ctx, "cassette", "", "")
	assert.ErrorIs(t, err, ErrInvalidStoreKind)
}
