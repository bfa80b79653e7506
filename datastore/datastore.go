/*
DESCRIPTION
  Storage abstraction for the Buddhadham cloud services: a typed Store
  interface over the site's record collections, with swappable
  in-memory and Google Cloud Datastore backings.

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

package datastore

import (
	"context"
	"errors"

	"github.com/buddhadham/cloud/model"
)

// Datastore errors.
var (
	ErrNoSuchEntity     = errors.New("no such entity")
	ErrDuplicateEmail   = errors.New("email already subscribed")
	ErrInvalidStoreKind = errors.New("invalid store kind")
)

// Store defines the storage operations of the Buddhadham site. Each
// collection supports create, get, secondary-lookup and list
// operations, plus a partial update where the entity is mutable.
// Get operations return ErrNoSuchEntity when the record is absent;
// they never panic.
//
// No collection supports deletion: the store is append-only apart from
// the Update methods, and patch types cannot express a change to an
// identity-bearing field (a member's UserID, a pledge's MemberID).
//
// MemStore ids are positive and strictly increase within a collection.
// CloudStore ids are unique but allocation order is not guaranteed.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// Members.
	CreateMember(ctx context.Context, m *model.Member) error
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	GetMemberByUserID(ctx context.Context, userID int64) (*model.Member, error)
	GetMembers(ctx context.Context) ([]model.Member, error)
	UpdateMember(ctx context.Context, id int64, patch model.MemberPatch) (*model.Member, error)

	// Member benefits catalog.
	CreateMemberBenefit(ctx context.Context, b *model.MemberBenefit) error
	GetMemberBenefit(ctx context.Context, id int64) (*model.MemberBenefit, error)
	GetMemberBenefits(ctx context.Context) ([]model.MemberBenefit, error)
	GetMemberBenefitsByLevel(ctx context.Context, level string) ([]model.MemberBenefit, error)
	UpdateMemberBenefit(ctx context.Context, id int64, patch model.MemberBenefitPatch) (*model.MemberBenefit, error)

	// Recurring donation pledges.
	CreateMemberDonation(ctx context.Context, d *model.MemberDonation) error
	GetMemberDonation(ctx context.Context, id int64) (*model.MemberDonation, error)
	GetMemberDonations(ctx context.Context) ([]model.MemberDonation, error)
	GetMemberDonationsByMember(ctx context.Context, memberID int64) ([]model.MemberDonation, error)
	UpdateMemberDonation(ctx context.Context, id int64, patch model.MemberDonationPatch) (*model.MemberDonation, error)

	// Payment events.
	CreateMemberPayment(ctx context.Context, p *model.MemberPayment) error
	GetMemberPayment(ctx context.Context, id int64) (*model.MemberPayment, error)
	GetMemberPaymentsByMember(ctx context.Context, memberID int64) ([]model.MemberPayment, error)

	// Contact messages.
	CreateContactMessage(ctx context.Context, m *model.ContactMessage) error
	GetContactMessages(ctx context.Context) ([]model.ContactMessage, error)

	// Newsletter subscriptions. CreateNewsletter returns
	// ErrDuplicateEmail if the email is already subscribed; this is the
	// only invariant the store enforces itself.
	CreateNewsletter(ctx context.Context, n *model.Newsletter) error
	GetNewsletterByEmail(ctx context.Context, email string) (*model.Newsletter, error)
	GetNewsletters(ctx context.Context) ([]model.Newsletter, error)

	// One-time donations.
	CreateDonation(ctx context.Context, d *model.Donation) error
	GetDonation(ctx context.Context, id int64) (*model.Donation, error)
	GetDonations(ctx context.Context) ([]model.Donation, error)

	// Volunteer applications.
	CreateVolunteerApplication(ctx context.Context, v *model.VolunteerApplication) error
	GetVolunteerApplications(ctx context.Context) ([]model.VolunteerApplication, error)
}

// NewStore returns a Store of the given kind, either "memory" for the
// in-process store or "cloud" for the Google Cloud Datastore. The id
// is the cloud project ID and url optionally locates credentials; both
// are ignored by the memory store.
func NewStore(ctx context.Context, kind, id, url string) (Store, error) {
	switch kind {
	case "memory":
		return NewMemStore(), nil
	case "cloud":
		return newCloudStore(ctx, id, url)
	default:
		return nil, ErrInvalidStoreKind
	}
}
