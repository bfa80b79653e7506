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

package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/buddhadham/cloud/model"
)

// CloudStore implements Store for the Google Cloud Datastore. Unlike
// MemStore, id allocation is delegated to the datastore: ids are
// unique but not monotonic, and records survive restarts.
type CloudStore struct {
	client *datastore.Client
}

// newCloudStore returns a new CloudStore, using the given URL to
// retrieve credentials and authenticate. A URL of the form
// gs://bucket_name/creds names a Google storage object; a URL without
// a scheme is interpreted as a file. If the environment variable
// <ID>_CREDENTIALS is defined it overrides the supplied URL, and an
// empty URL falls back to default application credentials.
func newCloudStore(ctx context.Context, id, url string) (*CloudStore, error) {
	s := new(CloudStore)

	ev := strings.ToUpper(id) + "_CREDENTIALS"
	if os.Getenv(ev) != "" {
		url = os.Getenv(ev)
	}

	var err error
	if url == "" {
		s.client, err = datastore.NewClient(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("could not create datastore client: %w", err)
		}
		return s, nil
	}

	var creds []byte
	if strings.HasPrefix(url, "gs://") {
		creds, err = readGoogleStorageBucket(ctx, url)
	} else {
		creds, err = os.ReadFile(url)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read datastore credentials from %s: %w", url, err)
	}

	s.client, err = datastore.NewClient(ctx, id, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("could not create datastore client: %w", err)
	}
	return s, nil
}

// get retrieves the entity of the given kind and id into dst,
// translating the datastore's not-found error to ErrNoSuchEntity.
func (s *CloudStore) get(ctx context.Context, kind string, id int64, dst any) error {
	err := s.client.Get(ctx, datastore.IDKey(kind, id, nil), dst)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ErrNoSuchEntity
	}
	return err
}

// create allocates an id for the given kind, passes it to setID so the
// caller can stamp the entity, then stores the entity.
func (s *CloudStore) create(ctx context.Context, kind string, setID func(int64), ent any) error {
	keys, err := s.client.AllocateIDs(ctx, []*datastore.Key{datastore.IncompleteKey(kind, nil)})
	if err != nil {
		return fmt.Errorf("could not allocate %s id: %w", kind, err)
	}
	setID(keys[0].ID)
	_, err = s.client.Put(ctx, keys[0], ent)
	return err
}

// Users.

func (s *CloudStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	return s.create(ctx, typeUser, func(id int64) {
		u.ID = id
		u.Created = time.Now()
	}, u)
}

func (s *CloudStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := s.get(ctx, typeUser, id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *CloudStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return first[model.User](ctx, s, typeUser, "Username", username)
}

func (s *CloudStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return first[model.User](ctx, s, typeUser, "Email", email)
}

// Members.

func (s *CloudStore) CreateMember(ctx context.Context, m *model.Member) error {
	return s.create(ctx, typeMember, func(id int64) {
		m.ID = id
		m.Created = time.Now()
		m.Updated = m.Created
	}, m)
}

func (s *CloudStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	var m model.Member
	if err := s.get(ctx, typeMember, id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *CloudStore) GetMemberByUserID(ctx context.Context, userID int64) (*model.Member, error) {
	return first[model.Member](ctx, s, typeMember, "UserID", userID)
}

func (s *CloudStore) GetMembers(ctx context.Context) ([]model.Member, error) {
	return all[model.Member](ctx, s, typeMember)
}

func (s *CloudStore) UpdateMember(ctx context.Context, id int64, patch model.MemberPatch) (*model.Member, error) {
	var m model.Member
	err := s.update(ctx, typeMember, id, &m, func() {
		patch.Apply(&m)
		m.Updated = time.Now()
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Member benefits.

func (s *CloudStore) CreateMemberBenefit(ctx context.Context, b *model.MemberBenefit) error {
	return s.create(ctx, typeBenefit, func(id int64) {
		b.ID = id
		b.Created = time.Now()
		b.Updated = b.Created
	}, b)
}

func (s *CloudStore) GetMemberBenefit(ctx context.Context, id int64) (*model.MemberBenefit, error) {
	var b model.MemberBenefit
	if err := s.get(ctx, typeBenefit, id, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *CloudStore) GetMemberBenefits(ctx context.Context) ([]model.MemberBenefit, error) {
	return all[model.MemberBenefit](ctx, s, typeBenefit)
}

func (s *CloudStore) GetMemberBenefitsByLevel(ctx context.Context, level string) ([]model.MemberBenefit, error) {
	var benefits []model.MemberBenefit
	q := datastore.NewQuery(typeBenefit).FilterField("MembershipLevel", "=", level)
	_, err := s.client.GetAll(ctx, q, &benefits)
	return benefits, err
}

func (s *CloudStore) UpdateMemberBenefit(ctx context.Context, id int64, patch model.MemberBenefitPatch) (*model.MemberBenefit, error) {
	var b model.MemberBenefit
	err := s.update(ctx, typeBenefit, id, &b, func() {
		patch.Apply(&b)
		b.Updated = time.Now()
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Recurring donation pledges.

func (s *CloudStore) CreateMemberDonation(ctx context.Context, d *model.MemberDonation) error {
	return s.create(ctx, typePledge, func(id int64) {
		d.ID = id
		d.Created = time.Now()
		d.Updated = d.Created
	}, d)
}

func (s *CloudStore) GetMemberDonation(ctx context.Context, id int64) (*model.MemberDonation, error) {
	var d model.MemberDonation
	if err := s.get(ctx, typePledge, id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *CloudStore) GetMemberDonations(ctx context.Context) ([]model.MemberDonation, error) {
	return all[model.MemberDonation](ctx, s, typePledge)
}

func (s *CloudStore) GetMemberDonationsByMember(ctx context.Context, memberID int64) ([]model.MemberDonation, error) {
	pledges := []model.MemberDonation{}
	q := datastore.NewQuery(typePledge).FilterField("MemberID", "=", memberID)
	_, err := s.client.GetAll(ctx, q, &pledges)
	return pledges, err
}

func (s *CloudStore) UpdateMemberDonation(ctx context.Context, id int64, patch model.MemberDonationPatch) (*model.MemberDonation, error) {
	var d model.MemberDonation
	err := s.update(ctx, typePledge, id, &d, func() {
		patch.Apply(&d)
		d.Updated = time.Now()
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Payment events.

func (s *CloudStore) CreateMemberPayment(ctx context.Context, p *model.MemberPayment) error {
	return s.create(ctx, typePayment, func(id int64) {
		p.ID = id
		p.Created = time.Now()
		if p.PaymentDate.IsZero() {
			p.PaymentDate = p.Created
		}
	}, p)
}

func (s *CloudStore) GetMemberPayment(ctx context.Context, id int64) (*model.MemberPayment, error) {
	var p model.MemberPayment
	if err := s.get(ctx, typePayment, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *CloudStore) GetMemberPaymentsByMember(ctx context.Context, memberID int64) ([]model.MemberPayment, error) {
	payments := []model.MemberPayment{}
	q := datastore.NewQuery(typePayment).FilterField("MemberID", "=", memberID)
	_, err := s.client.GetAll(ctx, q, &payments)
	return payments, err
}

// Contact messages.

func (s *CloudStore) CreateContactMessage(ctx context.Context, m *model.ContactMessage) error {
	return s.create(ctx, typeContact, func(id int64) {
		m.ID = id
		m.Created = time.Now()
	}, m)
}

func (s *CloudStore) GetContactMessages(ctx context.Context) ([]model.ContactMessage, error) {
	return all[model.ContactMessage](ctx, s, typeContact)
}

// Newsletter subscriptions.

func (s *CloudStore) CreateNewsletter(ctx context.Context, n *model.Newsletter) error {
	existing, err := s.GetNewsletterByEmail(ctx, n.Email)
	if err != nil && !errors.Is(err, ErrNoSuchEntity) {
		return err
	}
	if existing != nil {
		return ErrDuplicateEmail
	}
	return s.create(ctx, typeNewsletter, func(id int64) {
		n.ID = id
		n.Created = time.Now()
	}, n)
}

func (s *CloudStore) GetNewsletterByEmail(ctx context.Context, email string) (*model.Newsletter, error) {
	return first[model.Newsletter](ctx, s, typeNewsletter, "Email", email)
}

func (s *CloudStore) GetNewsletters(ctx context.Context) ([]model.Newsletter, error) {
	return all[model.Newsletter](ctx, s, typeNewsletter)
}

// One-time donations.

func (s *CloudStore) CreateDonation(ctx context.Context, d *model.Donation) error {
	return s.create(ctx, typeDonation, func(id int64) {
		d.ID = id
		d.Created = time.Now()
	}, d)
}

func (s *CloudStore) GetDonation(ctx context.Context, id int64) (*model.Donation, error) {
	var d model.Donation
	if err := s.get(ctx, typeDonation, id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *CloudStore) GetDonations(ctx context.Context) ([]model.Donation, error) {
	return all[model.Donation](ctx, s, typeDonation)
}

// Volunteer applications.

func (s *CloudStore) CreateVolunteerApplication(ctx context.Context, v *model.VolunteerApplication) error {
	return s.create(ctx, typeVolunteer, func(id int64) {
		v.ID = id
		v.Created = time.Now()
	}, v)
}

func (s *CloudStore) GetVolunteerApplications(ctx context.Context) ([]model.VolunteerApplication, error) {
	return all[model.VolunteerApplication](ctx, s, typeVolunteer)
}

// update runs a get-merge-put transaction for the entity of the given
// kind and id. The merge callback mutates dst in place.
func (s *CloudStore) update(ctx context.Context, kind string, id int64, dst any, merge func()) error {
	key := datastore.IDKey(kind, id, nil)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		err := tx.Get(key, dst)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return ErrNoSuchEntity
		}
		if err != nil {
			return err
		}
		merge()
		_, err = tx.Put(key, dst)
		return err
	})
	return err
}

// first returns the first entity of the given kind whose field equals
// value, or ErrNoSuchEntity.
func first[T any](ctx context.Context, s *CloudStore, kind, field string, value any) (*T, error) {
	var ents []T
	q := datastore.NewQuery(kind).FilterField(field, "=", value).Limit(1)
	_, err := s.client.GetAll(ctx, q, &ents)
	if err != nil {
		return nil, fmt.Errorf("could not query %s by %s: %w", kind, field, err)
	}
	if len(ents) == 0 {
		return nil, ErrNoSuchEntity
	}
	return &ents[0], nil
}

// all returns every entity of the given kind in creation order.
func all[T any](ctx context.Context, s *CloudStore, kind string) ([]T, error) {
	ents := []T{}
	q := datastore.NewQuery(kind).Order("Created")
	_, err := s.client.GetAll(ctx, q, &ents)
	return ents, err
}

// readGoogleStorageBucket reads the contents of the Google Storage
// object specified by the URL, which must take the form
// gs://<bucket_name>/<object_name>.
func readGoogleStorageBucket(ctx context.Context, url string) ([]byte, error) {
	url = strings.TrimPrefix(url, "gs://")
	sep := strings.IndexByte(url, '/')
	if sep == -1 {
		return nil, fmt.Errorf("invalid GSB URL gs://%s", url)
	}

	clt, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create GSB client: %w", err)
	}
	r, err := clt.Bucket(url[:sep]).Object(url[sep+1:]).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create GSB reader: %w", err)
	}
	defer r.Close()

	bytes, err := io.ReadAll(r)
	if err != nil {
		return bytes, fmt.Errorf("cannot read GSB: %w", err)
	}
	return bytes, nil
}
