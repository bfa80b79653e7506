/*
DESCRIPTION
  Membership routes for the Buddhadham web service: member profiles,
  the benefit catalog, recurring-donation pledges and payment events.
  All routes require a session; record access requires the admin role
  or ownership of the member the record belongs to.

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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/buddhadham/cloud/datastore"
	"github.com/buddhadham/cloud/model"
)

// paramID parses the named route parameter as an entity ID.
func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, c.Params(name))
	}
	return id, nil
}

// requireUser returns the session's user, or writes the appropriate
// error response and returns nil.
func (svc *service) requireUser(c *fiber.Ctx) *model.User {
	u, err := svc.sessionUser(c)
	if errors.Is(err, errNotLoggedIn) {
		logAndReturnError(c, "authentication required", withStatus(fiber.StatusUnauthorized))
		return nil
	} else if err != nil {
		logAndReturnError(c, fmt.Sprintf("could not get session user: %v", err))
		return nil
	}
	return u
}

// canAccessMember reports whether u may act on member m's records.
func canAccessMember(u *model.User, m *model.Member) bool {
	return u.IsAdmin() || m.UserID == u.ID
}

// memberForAccess loads the member with the given id and checks the
// user may act on it, writing the error response otherwise.
func (svc *service) memberForAccess(c *fiber.Ctx, u *model.User, id int64) *model.Member {
	m, err := svc.store.GetMember(c.Context(), id)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		logAndReturnError(c, "no such member", withStatus(fiber.StatusNotFound))
		return nil
	} else if err != nil {
		logAndReturnError(c, fmt.Sprintf("could not get member %d: %v", id, err))
		return nil
	}
	if !canAccessMember(u, m) {
		logAndReturnError(c, "access denied", withStatus(fiber.StatusForbidden))
		return nil
	}
	return m
}

// identityProbe detects identity-bearing fields in a patch body so
// they can be rejected rather than silently ignored.
type identityProbe struct {
	ID       *int64 `json:"id"`
	UserID   *int64 `json:"userId"`
	MemberID *int64 `json:"memberId"`
}

// rejectIdentityFields responds 400 if the request body names any
// identity-bearing field, and reports whether it did so.
func rejectIdentityFields(c *fiber.Ctx) bool {
	var probe identityProbe
	err := c.BodyParser(&probe)
	if err != nil {
		logAndReturnError(c, "malformed update request", withStatus(fiber.StatusBadRequest))
		return true
	}
	if probe.ID != nil || probe.UserID != nil || probe.MemberID != nil {
		logAndReturnError(c, "identity fields cannot be changed", withStatus(fiber.StatusBadRequest))
		return true
	}
	return false
}

type createMemberRequest struct {
	UserID            int64        `json:"userId"` // Optional; admins may create for another user.
	MembershipLevel   string       `json:"membershipLevel" validate:"required"`
	DonationAmount    model.Amount `json:"donationAmount"`
	DonationFrequency string       `json:"donationFrequency" validate:"required"`
	AddressLine       string       `json:"addressLine"`
	City              string       `json:"city"`
	State             string       `json:"state"`
	PostalCode        string       `json:"postalCode"`
	Country           string       `json:"country"`
}

// createMemberHandler creates a member profile for the session's user,
// or for another user when the caller is an admin.
func (svc *service) createMemberHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}

	var req createMemberRequest
	err := c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed member request", withStatus(fiber.StatusBadRequest))
	}
	err = svc.validate.Struct(req)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid member details: %v", err), withStatus(fiber.StatusBadRequest))
	}
	if !model.IsValidLevel(req.MembershipLevel) {
		return logAndReturnError(c, fmt.Sprintf("invalid membership level %q", req.MembershipLevel), withStatus(fiber.StatusBadRequest))
	}
	if !model.IsValidFrequency(req.DonationFrequency) {
		return logAndReturnError(c, fmt.Sprintf("invalid donation frequency %q", req.DonationFrequency), withStatus(fiber.StatusBadRequest))
	}
	amount, err := req.DonationAmount.Value()
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid donation amount: %v", err), withStatus(fiber.StatusBadRequest))
	}

	ctx := c.Context()
	userID := u.ID
	if req.UserID != 0 && req.UserID != u.ID {
		if !u.IsAdmin() {
			return logAndReturnError(c, "cannot create a member for another user", withStatus(fiber.StatusForbidden))
		}
		_, err = svc.store.GetUser(ctx, req.UserID)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return logAndReturnError(c, fmt.Sprintf("no user with id %d", req.UserID), withStatus(fiber.StatusBadRequest))
		} else if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not get user %d: %v", req.UserID, err))
		}
		userID = req.UserID
	}

	_, err = svc.store.GetMemberByUserID(ctx, userID)
	if err == nil {
		return logAndReturnError(c, "member profile already exists", withStatus(fiber.StatusBadRequest))
	} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, fmt.Sprintf("could not check member: %v", err))
	}

	now := time.Now()
	m := &model.Member{
		UserID:            userID,
		MembershipLevel:   req.MembershipLevel,
		MembershipStatus:  model.StatusPending,
		StartDate:         now,
		RenewalDate:       model.NextDue(req.DonationFrequency, now),
		DonationAmount:    amount,
		DonationFrequency: req.DonationFrequency,
		AddressLine:       req.AddressLine,
		City:              req.City,
		State:             req.State,
		PostalCode:        req.PostalCode,
		Country:           req.Country,
	}
	err = svc.store.CreateMember(ctx, m)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create member: %v", err))
	}
	return created(c, m)
}

// listMembersHandler lists all member profiles for admins.
func (svc *service) listMembersHandler(c *fiber.Ctx) error {
	if svc.requireAdmin(c) == nil {
		return nil
	}
	members, err := svc.store.GetMembers(c.Context())
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get members: %v", err))
	}
	return ok(c, members)
}

// getMemberHandler returns a single member profile.
func (svc *service) getMemberHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	id, err := paramID(c, "id")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}
	m := svc.memberForAccess(c, u, id)
	if m == nil {
		return nil
	}
	return ok(c, m)
}

// getMemberByUserHandler returns the member profile owned by the given
// user.
func (svc *service) getMemberByUserHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}
	if !u.IsAdmin() && userID != u.ID {
		return logAndReturnError(c, "access denied", withStatus(fiber.StatusForbidden))
	}

	m, err := svc.store.GetMemberByUserID(c.Context(), userID)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "no member for user", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get member for user %d: %v", userID, err))
	}
	return ok(c, m)
}

// updateMemberHandler applies a partial update to a member profile.
func (svc *service) updateMemberHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	id, err := paramID(c, "id")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}
	if svc.memberForAccess(c, u, id) == nil {
		return nil
	}
	if rejectIdentityFields(c) {
		return nil
	}

	var patch model.MemberPatch
	err = c.BodyParser(&patch)
	if err != nil {
		return logAndReturnError(c, "malformed member update", withStatus(fiber.StatusBadRequest))
	}
	if patch.MembershipLevel != nil && !model.IsValidLevel(*patch.MembershipLevel) {
		return logAndReturnError(c, fmt.Sprintf("invalid membership level %q", *patch.MembershipLevel), withStatus(fiber.StatusBadRequest))
	}
	if patch.DonationFrequency != nil && !model.IsValidFrequency(*patch.DonationFrequency) {
		return logAndReturnError(c, fmt.Sprintf("invalid donation frequency %q", *patch.DonationFrequency), withStatus(fiber.StatusBadRequest))
	}

	m, err := svc.store.UpdateMember(c.Context(), id, patch)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "no such member", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not update member %d: %v", id, err))
	}
	return ok(c, m)
}

// listBenefitsHandler lists the full benefit catalog.
func (svc *service) listBenefitsHandler(c *fiber.Ctx) error {
	benefits, err := svc.store.GetMemberBenefits(c.Context())
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get benefits: %v", err))
	}
	return ok(c, benefits)
}

// listBenefitsByLevelHandler lists the benefits for a membership level.
func (svc *service) listBenefitsByLevelHandler(c *fiber.Ctx) error {
	level := c.Params("level")
	if !model.IsValidLevel(level) {
		return logAndReturnError(c, fmt.Sprintf("invalid membership level %q", level), withStatus(fiber.StatusBadRequest))
	}
	benefits, err := svc.store.GetMemberBenefitsByLevel(c.Context(), level)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get benefits for level %s: %v", level, err))
	}
	return ok(c, benefits)
}

type createBenefitRequest struct {
	MembershipLevel    string `json:"membershipLevel" validate:"required"`
	BenefitName        string `json:"benefitName" validate:"required"`
	BenefitDescription string `json:"benefitDescription"`
	IsActive           *bool  `json:"isActive"`
}

// createBenefitHandler adds a catalog benefit. Admin only.
func (svc *service) createBenefitHandler(c *fiber.Ctx) error {
	if svc.requireAdmin(c) == nil {
		return nil
	}

	var req createBenefitRequest
	err := c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed benefit request", withStatus(fiber.StatusBadRequest))
	}
	err = svc.validate.Struct(req)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid benefit details: %v", err), withStatus(fiber.StatusBadRequest))
	}
	if !model.IsValidLevel(req.MembershipLevel) {
		return logAndReturnError(c, fmt.Sprintf("invalid membership level %q", req.MembershipLevel), withStatus(fiber.StatusBadRequest))
	}

	b := &model.MemberBenefit{
		MembershipLevel:    req.MembershipLevel,
		BenefitName:        req.BenefitName,
		BenefitDescription: req.BenefitDescription,
		IsActive:           true,
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	err = svc.store.CreateMemberBenefit(c.Context(), b)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create benefit: %v", err))
	}
	return created(c, b)
}

// updateBenefitHandler applies a partial update to a catalog benefit.
// Admin only.
func (svc *service) updateBenefitHandler(c *fiber.Ctx) error {
	if svc.requireAdmin(c) == nil {
		return nil
	}
	id, err := paramID(c, "id")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}

	var patch model.MemberBenefitPatch
	err = c.BodyParser(&patch)
	if err != nil {
		return logAndReturnError(c, "malformed benefit update", withStatus(fiber.StatusBadRequest))
	}
	if patch.MembershipLevel != nil && !model.IsValidLevel(*patch.MembershipLevel) {
		return logAndReturnError(c, fmt.Sprintf("invalid membership level %q", *patch.MembershipLevel), withStatus(fiber.StatusBadRequest))
	}

	b, err := svc.store.UpdateMemberBenefit(c.Context(), id, patch)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "no such benefit", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not update benefit %d: %v", id, err))
	}
	return ok(c, b)
}

// listPledgesHandler lists a member's recurring-donation pledges.
func (svc *service) listPledgesHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	memberID, err := paramID(c, "memberId")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}
	if svc.memberForAccess(c, u, memberID) == nil {
		return nil
	}

	pledges, err := svc.store.GetMemberDonationsByMember(c.Context(), memberID)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get pledges for member %d: %v", memberID, err))
	}
	return ok(c, pledges)
}

type createPledgeRequest struct {
	Amount        model.Amount `json:"amount"`
	Frequency     string       `json:"frequency" validate:"required"`
	PaymentMethod string       `json:"paymentMethod"`
}

// createPledgeHandler creates a recurring-donation pledge for a member.
func (svc *service) createPledgeHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	memberID, err := paramID(c, "memberId")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}
	if svc.memberForAccess(c, u, memberID) == nil {
		return nil
	}

	var req createPledgeRequest
	err = c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed pledge request", withStatus(fiber.StatusBadRequest))
	}
	if !model.IsValidFrequency(req.Frequency) {
		return logAndReturnError(c, fmt.Sprintf("invalid frequency %q", req.Frequency), withStatus(fiber.StatusBadRequest))
	}
	amount, err := req.Amount.Value()
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid pledge amount: %v", err), withStatus(fiber.StatusBadRequest))
	}

	d := &model.MemberDonation{
		MemberID:        memberID,
		Amount:          amount,
		Frequency:       req.Frequency,
		Status:          model.PledgeActive,
		PaymentMethod:   req.PaymentMethod,
		NextPaymentDate: model.NextDue(req.Frequency, time.Now()),
	}
	err = svc.store.CreateMemberDonation(c.Context(), d)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create pledge: %v", err))
	}
	return created(c, d)
}

// getPledgeHandler returns a single pledge.
func (svc *service) getPledgeHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	id, err := paramID(c, "id")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}

	d, err := svc.store.GetMemberDonation(c.Context(), id)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "no such pledge", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get pledge %d: %v", id, err))
	}
	if svc.memberForAccess(c, u, d.MemberID) == nil {
		return nil
	}
	return ok(c, d)
}

// updatePledgeHandler applies a partial update to a pledge.
func (svc *service) updatePledgeHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	id, err := paramID(c, "id")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}

	d, err := svc.store.GetMemberDonation(c.Context(), id)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "no such pledge", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get pledge %d: %v", id, err))
	}
	if svc.memberForAccess(c, u, d.MemberID) == nil {
		return nil
	}
	if rejectIdentityFields(c) {
		return nil
	}

	var patch model.MemberDonationPatch
	err = c.BodyParser(&patch)
	if err != nil {
		return logAndReturnError(c, "malformed pledge update", withStatus(fiber.StatusBadRequest))
	}
	if patch.Frequency != nil && !model.IsValidFrequency(*patch.Frequency) {
		return logAndReturnError(c, fmt.Sprintf("invalid frequency %q", *patch.Frequency), withStatus(fiber.StatusBadRequest))
	}
	if patch.Status != nil {
		switch *patch.Status {
		case model.PledgeActive, model.PledgePaused, model.PledgeCancelled:
		default:
			return logAndReturnError(c, fmt.Sprintf("invalid pledge status %q", *patch.Status), withStatus(fiber.StatusBadRequest))
		}
	}

	d, err = svc.store.UpdateMemberDonation(c.Context(), id, patch)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "no such pledge", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not update pledge %d: %v", id, err))
	}
	return ok(c, d)
}

// listPaymentsHandler lists a member's payment events.
func (svc *service) listPaymentsHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	memberID, err := paramID(c, "memberId")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}
	if svc.memberForAccess(c, u, memberID) == nil {
		return nil
	}

	payments, err := svc.store.GetMemberPaymentsByMember(c.Context(), memberID)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get payments for member %d: %v", memberID, err))
	}
	return ok(c, payments)
}

type createPaymentRequest struct {
	Amount        model.Amount `json:"amount"`
	DonationID    int64        `json:"donationId"` // Pledge the payment services, or 0.
	Status        string       `json:"status"`
	PaymentMethod string       `json:"paymentMethod"`
}

// createPaymentHandler records a payment event against a member.
// Admin only: payment events normally arrive via the payment
// provider's webhook, and this route exists to record out-of-band
// payments such as bank transfers.
func (svc *service) createPaymentHandler(c *fiber.Ctx) error {
	u := svc.requireAdmin(c)
	if u == nil {
		return nil
	}
	memberID, err := paramID(c, "memberId")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}

	ctx := c.Context()
	_, err = svc.store.GetMember(ctx, memberID)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "no such member", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get member %d: %v", memberID, err))
	}

	var req createPaymentRequest
	err = c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed payment request", withStatus(fiber.StatusBadRequest))
	}
	amount, err := req.Amount.Value()
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid payment amount: %v", err), withStatus(fiber.StatusBadRequest))
	}
	status := req.Status
	if status == "" {
		status = model.PaymentSucceeded
	}
	switch status {
	case model.PaymentPending, model.PaymentSucceeded, model.PaymentFailed:
	default:
		return logAndReturnError(c, fmt.Sprintf("invalid payment status %q", status), withStatus(fiber.StatusBadRequest))
	}

	if req.DonationID != 0 {
		d, err := svc.store.GetMemberDonation(ctx, req.DonationID)
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return logAndReturnError(c, fmt.Sprintf("no pledge with id %d", req.DonationID), withStatus(fiber.StatusBadRequest))
		} else if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not get pledge %d: %v", req.DonationID, err))
		}
		if d.MemberID != memberID {
			return logAndReturnError(c, "pledge belongs to a different member", withStatus(fiber.StatusBadRequest))
		}
	}

	p := &model.MemberPayment{
		MemberID:      memberID,
		DonationID:    req.DonationID,
		Amount:        amount,
		Status:        status,
		PaymentMethod: req.PaymentMethod,
	}
	err = svc.store.CreateMemberPayment(ctx, p)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create payment: %v", err))
	}

	// A settled payment against a pledge advances the pledge's dates.
	if status == model.PaymentSucceeded && req.DonationID != 0 {
		err = svc.advancePledge(ctx, req.DonationID, p.PaymentDate)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not advance pledge %d: %v", req.DonationID, err))
		}
	}
	return created(c, p)
}

// getPaymentHandler returns a single payment event.
func (svc *service) getPaymentHandler(c *fiber.Ctx) error {
	u := svc.requireUser(c)
	if u == nil {
		return nil
	}
	id, err := paramID(c, "id")
	if err != nil {
		return logAndReturnError(c, err.Error(), withStatus(fiber.StatusBadRequest))
	}

	p, err := svc.store.GetMemberPayment(c.Context(), id)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return logAndReturnError(c, "no such payment", withStatus(fiber.StatusNotFound))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get payment %d: %v", id, err))
	}
	if svc.memberForAccess(c, u, p.MemberID) == nil {
		return nil
	}
	return ok(c, p)
}
