/*
DESCRIPTION
  In-memory Store implementation. Each collection is an
  ownership-exclusive map guarded by a single coarse lock, with
  monotonic id allocation and linear-scan secondary lookups.

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
	"slices"
	"sync"
	"time"

	"github.com/buddhadham/cloud/model"
)

// MemStore implements Store with in-process maps. Records live for the
// lifetime of the process; nothing survives a restart. All operations
// are synchronous map mutations under one lock, so each call is atomic
// in effect.
type MemStore struct {
	mutex sync.RWMutex
	now   func() time.Time // Injectable clock, for tests.

	nextID map[string]int64

	users       map[int64]model.User
	members     map[int64]model.Member
	benefits    map[int64]model.MemberBenefit
	pledges     map[int64]model.MemberDonation
	payments    map[int64]model.MemberPayment
	contacts    map[int64]model.ContactMessage
	newsletters map[int64]model.Newsletter
	donations   map[int64]model.Donation
	volunteers  map[int64]model.VolunteerApplication
}

// Collection names used for id allocation.
const (
	typeUser       = "User"
	typeMember     = "Member"
	typeBenefit    = "MemberBenefit"
	typePledge     = "MemberDonation"
	typePayment    = "MemberPayment"
	typeContact    = "ContactMessage"
	typeNewsletter = "Newsletter"
	typeDonation   = "Donation"
	typeVolunteer  = "VolunteerApplication"
)

// NewMemStore returns a new, empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		now:         time.Now,
		nextID:      make(map[string]int64),
		users:       make(map[int64]model.User),
		members:     make(map[int64]model.Member),
		benefits:    make(map[int64]model.MemberBenefit),
		pledges:     make(map[int64]model.MemberDonation),
		payments:    make(map[int64]model.MemberPayment),
		contacts:    make(map[int64]model.ContactMessage),
		newsletters: make(map[int64]model.Newsletter),
		donations:   make(map[int64]model.Donation),
		volunteers:  make(map[int64]model.VolunteerApplication),
	}
}

// allocate returns the next id for the named collection. Ids start at
// 1 and strictly increase. Callers must hold the write lock.
func (s *MemStore) allocate(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}

// sortedIDs returns the keys of m in ascending order, which is
// insertion order since ids are monotonic.
func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Users.

// CreateUser assigns the next user id and creation time and stores the
// user. Username and email uniqueness is the caller's responsibility.
func (s *MemStore) CreateUser(ctx context.Context, u *model.User) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	u.ID = s.allocate(typeUser)
	u.Created = s.now()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	s.users[u.ID] = *u
	return nil
}

// GetUser returns the user with the given id, or ErrNoSuchEntity.
func (s *MemStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return &u, nil
}

// GetUserByUsername scans for a user with the given username.
func (s *MemStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNoSuchEntity
}

// GetUserByEmail scans for a user with the given email.
func (s *MemStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, u := range s.users {
		if u.Email != "" && u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNoSuchEntity
}

// Members.

// CreateMember assigns the next member id and timestamps and stores
// the member. That the UserID references an existing user is the
// caller's responsibility.
func (s *MemStore) CreateMember(ctx context.Context, m *model.Member) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	m.ID = s.allocate(typeMember)
	m.Created = s.now()
	m.Updated = m.Created
	s.members[m.ID] = *m
	return nil
}

// GetMember returns the member with the given id, or ErrNoSuchEntity.
func (s *MemStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return &m, nil
}

// GetMemberByUserID scans for the member owned by the given user.
func (s *MemStore) GetMemberByUserID(ctx context.Context, userID int64) (*model.Member, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, m := range s.members {
		if m.UserID == userID {
			return &m, nil
		}
	}
	return nil, ErrNoSuchEntity
}

// GetMembers returns all members in insertion order.
func (s *MemStore) GetMembers(ctx context.Context) ([]model.Member, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	members := make([]model.Member, 0, len(s.members))
	for _, id := range sortedIDs(s.members) {
		members = append(members, s.members[id])
	}
	return members, nil
}

// UpdateMember merges the patch into the member with the given id and
// bumps its Updated time.
func (s *MemStore) UpdateMember(ctx context.Context, id int64, patch model.MemberPatch) (*model.Member, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	patch.Apply(&m)
	m.Updated = s.now()
	s.members[id] = m
	return &m, nil
}

// Member benefits.

// CreateMemberBenefit assigns the next benefit id and timestamps and
// stores the benefit.
func (s *MemStore) CreateMemberBenefit(ctx context.Context, b *model.MemberBenefit) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b.ID = s.allocate(typeBenefit)
	b.Created = s.now()
	b.Updated = b.Created
	s.benefits[b.ID] = *b
	return nil
}

// GetMemberBenefit returns the benefit with the given id, or ErrNoSuchEntity.
func (s *MemStore) GetMemberBenefit(ctx context.Context, id int64) (*model.MemberBenefit, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	b, ok := s.benefits[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return &b, nil
}

// GetMemberBenefits returns the whole benefit catalog in insertion order.
func (s *MemStore) GetMemberBenefits(ctx context.Context) ([]model.MemberBenefit, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	benefits := make([]model.MemberBenefit, 0, len(s.benefits))
	for _, id := range sortedIDs(s.benefits) {
		benefits = append(benefits, s.benefits[id])
	}
	return benefits, nil
}

// GetMemberBenefitsByLevel returns the benefits for a membership level
// in insertion order.
func (s *MemStore) GetMemberBenefitsByLevel(ctx context.Context, level string) ([]model.MemberBenefit, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var benefits []model.MemberBenefit
	for _, id := range sortedIDs(s.benefits) {
		if s.benefits[id].MembershipLevel == level {
			benefits = append(benefits, s.benefits[id])
		}
	}
	return benefits, nil
}

// UpdateMemberBenefit merges the patch into the benefit with the given
// id and bumps its Updated time.
func (s *MemStore) UpdateMemberBenefit(ctx context.Context, id int64, patch model.MemberBenefitPatch) (*model.MemberBenefit, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, ok := s.benefits[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	patch.Apply(&b)
	b.Updated = s.now()
	s.benefits[id] = b
	return &b, nil
}

// Recurring donation pledges.

// CreateMemberDonation assigns the next pledge id and timestamps and
// stores the pledge.
func (s *MemStore) CreateMemberDonation(ctx context.Context, d *model.MemberDonation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	d.ID = s.allocate(typePledge)
	d.Created = s.now()
	d.Updated = d.Created
	s.pledges[d.ID] = *d
	return nil
}

// GetMemberDonation returns the pledge with the given id, or ErrNoSuchEntity.
func (s *MemStore) GetMemberDonation(ctx context.Context, id int64) (*model.MemberDonation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	d, ok := s.pledges[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return &d, nil
}

// GetMemberDonations returns all pledges in insertion order.
func (s *MemStore) GetMemberDonations(ctx context.Context) ([]model.MemberDonation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	pledges := make([]model.MemberDonation, 0, len(s.pledges))
	for _, id := range sortedIDs(s.pledges) {
		pledges = append(pledges, s.pledges[id])
	}
	return pledges, nil
}

// GetMemberDonationsByMember returns a member's pledges in insertion order.
func (s *MemStore) GetMemberDonationsByMember(ctx context.Context, memberID int64) ([]model.MemberDonation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	pledges := []model.MemberDonation{}
	for _, id := range sortedIDs(s.pledges) {
		if s.pledges[id].MemberID == memberID {
			pledges = append(pledges, s.pledges[id])
		}
	}
	return pledges, nil
}

// UpdateMemberDonation merges the patch into the pledge with the given
// id and bumps its Updated time. The patch cannot change the MemberID.
func (s *MemStore) UpdateMemberDonation(ctx context.Context, id int64, patch model.MemberDonationPatch) (*model.MemberDonation, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	d, ok := s.pledges[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	patch.Apply(&d)
	d.Updated = s.now()
	s.pledges[id] = d
	return &d, nil
}

// Payment events.

// CreateMemberPayment assigns the next payment id and creation time
// and stores the payment event.
func (s *MemStore) CreateMemberPayment(ctx context.Context, p *model.MemberPayment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	p.ID = s.allocate(typePayment)
	p.Created = s.now()
	if p.PaymentDate.IsZero() {
		p.PaymentDate = p.Created
	}
	s.payments[p.ID] = *p
	return nil
}

// GetMemberPayment returns the payment with the given id, or ErrNoSuchEntity.
func (s *MemStore) GetMemberPayment(ctx context.Context, id int64) (*model.MemberPayment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return &p, nil
}

// GetMemberPaymentsByMember returns a member's payments in insertion order.
func (s *MemStore) GetMemberPaymentsByMember(ctx context.Context, memberID int64) ([]model.MemberPayment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	payments := []model.MemberPayment{}
	for _, id := range sortedIDs(s.payments) {
		if s.payments[id].MemberID == memberID {
			payments = append(payments, s.payments[id])
		}
	}
	return payments, nil
}

// Contact messages.

// CreateContactMessage assigns the next message id and creation time
// and stores the message.
func (s *MemStore) CreateContactMessage(ctx context.Context, m *model.ContactMessage) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	m.ID = s.allocate(typeContact)
	m.Created = s.now()
	s.contacts[m.ID] = *m
	return nil
}

// GetContactMessages returns all contact messages in insertion order.
func (s *MemStore) GetContactMessages(ctx context.Context) ([]model.ContactMessage, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	msgs := make([]model.ContactMessage, 0, len(s.contacts))
	for _, id := range sortedIDs(s.contacts) {
		msgs = append(msgs, s.contacts[id])
	}
	return msgs, nil
}

// Newsletter subscriptions.

// CreateNewsletter stores a subscription, or returns ErrDuplicateEmail
// if the email is already subscribed. This is the only invariant the
// store checks itself.
func (s *MemStore) CreateNewsletter(ctx context.Context, n *model.Newsletter) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, existing := range s.newsletters {
		if existing.Email == n.Email {
			return ErrDuplicateEmail
		}
	}
	n.ID = s.allocate(typeNewsletter)
	n.Created = s.now()
	stored := *n
	stored.Interests = slices.Clone(n.Interests)
	s.newsletters[n.ID] = stored
	return nil
}

// GetNewsletterByEmail scans for a subscription with the given email.
func (s *MemStore) GetNewsletterByEmail(ctx context.Context, email string) (*model.Newsletter, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, n := range s.newsletters {
		if n.Email == email {
			n.Interests = slices.Clone(n.Interests)
			return &n, nil
		}
	}
	return nil, ErrNoSuchEntity
}

// GetNewsletters returns all subscriptions in insertion order.
func (s *MemStore) GetNewsletters(ctx context.Context) ([]model.Newsletter, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	subs := make([]model.Newsletter, 0, len(s.newsletters))
	for _, id := range sortedIDs(s.newsletters) {
		n := s.newsletters[id]
		n.Interests = slices.Clone(n.Interests)
		subs = append(subs, n)
	}
	return subs, nil
}

// One-time donations.

// CreateDonation assigns the next donation id and creation time and
// stores the donation.
func (s *MemStore) CreateDonation(ctx context.Context, d *model.Donation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	d.ID = s.allocate(typeDonation)
	d.Created = s.now()
	s.donations[d.ID] = *d
	return nil
}

// GetDonation returns the donation with the given id, or ErrNoSuchEntity.
func (s *MemStore) GetDonation(ctx context.Context, id int64) (*model.Donation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	d, ok := s.donations[id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return &d, nil
}

// GetDonations returns all donations in insertion order.
func (s *MemStore) GetDonations(ctx context.Context) ([]model.Donation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	donations := make([]model.Donation, 0, len(s.donations))
	for _, id := range sortedIDs(s.donations) {
		donations = append(donations, s.donations[id])
	}
	return donations, nil
}

// Volunteer applications.

// CreateVolunteerApplication assigns the next application id and
// creation time and stores the application.
func (s *MemStore) CreateVolunteerApplication(ctx context.Context, v *model.VolunteerApplication) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	v.ID = s.allocate(typeVolunteer)
	v.Created = s.now()
	stored := *v
	stored.Interests = slices.Clone(v.Interests)
	s.volunteers[v.ID] = stored
	return nil
}

// GetVolunteerApplications returns all applications in insertion order.
func (s *MemStore) GetVolunteerApplications(ctx context.Context) ([]model.VolunteerApplication, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	apps := make([]model.VolunteerApplication, 0, len(s.volunteers))
	for _, id := range sortedIDs(s.volunteers) {
		v := s.volunteers[id]
		v.Interests = slices.Clone(v.Interests)
		apps = append(apps, v)
	}
	return apps, nil
}
