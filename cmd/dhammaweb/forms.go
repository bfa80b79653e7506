/*
DESCRIPTION
  Public form routes for the Buddhadham web service: contact messages,
  newsletter subscriptions, one-time donations and volunteer
  applications, plus the admin-only listings of each.

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
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/buddhadham/cloud/datastore"
	"github.com/buddhadham/cloud/model"
	"github.com/buddhadham/cloud/notify"
)

// notifySend emails a notification without holding up the request.
// Delivery failure is logged, never surfaced to the submitter.
func (svc *service) notifySend(kind notify.Kind, recipient, msg string) {
	go func() {
		err := svc.notifier.Send(context.Background(), kind, recipient, msg)
		if err != nil {
			log.Errorf("could not send %s notification: %v", kind, err)
		}
	}()
}

type contactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject"`
	Message string `json:"message" validate:"required"`
}

// contactHandler records a contact form submission.
func (svc *service) contactHandler(c *fiber.Ctx) error {
	var req contactRequest
	err := c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed contact request", withStatus(fiber.StatusBadRequest))
	}
	err = svc.validate.Struct(req)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid contact details: %v", err), withStatus(fiber.StatusBadRequest))
	}

	m := &model.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}
	err = svc.store.CreateContactMessage(c.Context(), m)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create contact message: %v", err))
	}

	svc.notifySend(notify.KindContact, "",
		fmt.Sprintf("From: %s <%s>\nSubject: %s\n\n%s", m.Name, m.Email, m.Subject, m.Message))
	return created(c, m)
}

type subscribeRequest struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email" validate:"required,email"`
	Interests []string `json:"interests"`
}

// subscribeHandler records a newsletter subscription. A duplicate
// email is the one conflict the datastore reports itself.
func (svc *service) subscribeHandler(c *fiber.Ctx) error {
	var req subscribeRequest
	err := c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed subscription request", withStatus(fiber.StatusBadRequest))
	}
	err = svc.validate.Struct(req)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid subscription details: %v", err), withStatus(fiber.StatusBadRequest))
	}

	n := &model.Newsletter{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Interests: req.Interests,
	}
	err = svc.store.CreateNewsletter(c.Context(), n)
	if errors.Is(err, datastore.ErrDuplicateEmail) {
		return logAndReturnError(c, "email already subscribed", withStatus(fiber.StatusBadRequest))
	} else if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create subscription: %v", err))
	}
	return created(c, n)
}

type donateRequest struct {
	Amount  model.Amount `json:"amount"`
	Name    string       `json:"name" validate:"required"`
	Email   string       `json:"email" validate:"required,email"`
	Address string       `json:"address"`
	City    string       `json:"city"`
	Country string       `json:"country"`
	Message string       `json:"message"`
}

// donateHandler records a one-time donation. When Stripe is
// configured the response carries a client secret with which the
// frontend collects the payment.
func (svc *service) donateHandler(c *fiber.Ctx) error {
	var req donateRequest
	err := c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed donation request", withStatus(fiber.StatusBadRequest))
	}
	err = svc.validate.Struct(req)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid donation details: %v", err), withStatus(fiber.StatusBadRequest))
	}
	amount, err := req.Amount.Value()
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid donation amount: %v", err), withStatus(fiber.StatusBadRequest))
	}

	d := &model.Donation{
		Amount:  amount,
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
		City:    req.City,
		Country: req.Country,
		Message: req.Message,
	}
	err = svc.store.CreateDonation(c.Context(), d)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create donation: %v", err))
	}

	// With Stripe enabled the donation is not settled until the
	// webhook says so; the receipt is sent from there.
	if !svc.stripeEnabled {
		svc.notifySend(notify.KindReceipt, d.Email, donationReceipt(d))
	}

	kv := fiber.Map{"success": true, "data": d}
	if svc.stripeEnabled {
		secret, err := svc.createDonationIntent(d)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not create payment intent: %v", err))
		}
		kv["clientSecret"] = secret
	}
	return c.Status(fiber.StatusCreated).JSON(kv)
}

// donationReceipt composes the thank-you message for a donation.
func donationReceipt(d *model.Donation) string {
	return fmt.Sprintf("Dear %s,\n\nThank you for your donation of %.2f to the Buddhadham Foundation.", d.Name, d.Amount)
}

type volunteerRequest struct {
	Name         string   `json:"name" validate:"required"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        string   `json:"phone"`
	City         string   `json:"city"`
	Country      string   `json:"country"`
	Interests    []string `json:"interests"`
	Availability string   `json:"availability"`
	Experience   string   `json:"experience"`
	Message      string   `json:"message"`
}

// volunteerHandler records a volunteer application.
func (svc *service) volunteerHandler(c *fiber.Ctx) error {
	var req volunteerRequest
	err := c.BodyParser(&req)
	if err != nil {
		return logAndReturnError(c, "malformed volunteer application", withStatus(fiber.StatusBadRequest))
	}
	err = svc.validate.Struct(req)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("invalid volunteer application: %v", err), withStatus(fiber.StatusBadRequest))
	}

	v := &model.VolunteerApplication{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		City:         req.City,
		Country:      req.Country,
		Interests:    req.Interests,
		Availability: req.Availability,
		Experience:   req.Experience,
		Message:      req.Message,
	}
	err = svc.store.CreateVolunteerApplication(c.Context(), v)
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not create volunteer application: %v", err))
	}

	svc.notifySend(notify.KindVolunteer, "",
		fmt.Sprintf("From: %s <%s>\nAvailability: %s\n\n%s", v.Name, v.Email, v.Availability, v.Message))
	return created(c, v)
}

// requireAdmin returns the session's user if it holds the admin role,
// or writes the appropriate error response and returns nil.
func (svc *service) requireAdmin(c *fiber.Ctx) *model.User {
	u, err := svc.sessionUser(c)
	if errors.Is(err, errNotLoggedIn) {
		logAndReturnError(c, "authentication required", withStatus(fiber.StatusUnauthorized))
		return nil
	} else if err != nil {
		logAndReturnError(c, fmt.Sprintf("could not get session user: %v", err))
		return nil
	}
	if !u.IsAdmin() {
		logAndReturnError(c, "admin access required", withStatus(fiber.StatusForbidden))
		return nil
	}
	return u
}

// listContactMessagesHandler lists contact messages for admins.
func (svc *service) listContactMessagesHandler(c *fiber.Ctx) error {
	if svc.requireAdmin(c) == nil {
		return nil
	}
	msgs, err := svc.store.GetContactMessages(c.Context())
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get contact messages: %v", err))
	}
	return ok(c, msgs)
}

// listNewslettersHandler lists newsletter subscriptions for admins.
func (svc *service) listNewslettersHandler(c *fiber.Ctx) error {
	if svc.requireAdmin(c) == nil {
		return nil
	}
	subs, err := svc.store.GetNewsletters(c.Context())
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get subscriptions: %v", err))
	}
	return ok(c, subs)
}

// listDonationsHandler lists one-time donations for admins.
func (svc *service) listDonationsHandler(c *fiber.Ctx) error {
	if svc.requireAdmin(c) == nil {
		return nil
	}
	donations, err := svc.store.GetDonations(c.Context())
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get donations: %v", err))
	}
	return ok(c, donations)
}

// listVolunteersHandler lists volunteer applications for admins.
func (svc *service) listVolunteersHandler(c *fiber.Ctx) error {
	if svc.requireAdmin(c) == nil {
		return nil
	}
	apps, err := svc.store.GetVolunteerApplications(c.Context())
	if err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not get volunteer applications: %v", err))
	}
	return ok(c, apps)
}
