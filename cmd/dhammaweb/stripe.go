/*
DESCRIPTION
  Stripe payment plumbing for the Buddhadham web service: payment
  intents for one-time donations and the webhook that records payment
  events against members and their pledges.

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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"

	"github.com/buddhadham/cloud/gauth"
	"github.com/buddhadham/cloud/model"
	"github.com/buddhadham/cloud/notify"
)

// donationCurrency is the currency donations are charged in.
const donationCurrency = "thb"

// setupStripe gets the secrets required to set the stripe key. The
// secrets required are DEV_STRIPE_SECRET_KEY for standalone or
// development mode, and STRIPE_SECRET_KEY otherwise. Without a key
// the service runs with card payments disabled.
func (svc *service) setupStripe(ctx context.Context) {
	secretName := "STRIPE_SECRET_KEY"
	if svc.standalone || svc.development {
		// In standalone mode we want to use developer test keys.
		secretName = "DEV_STRIPE_SECRET_KEY"
	}

	key, err := gauth.GetSecret(ctx, projectID, secretName)
	if err != nil {
		log.Warnf("unable to get %s, card payments disabled: %v", secretName, err)
		return
	}

	// Set the global stripe key.
	stripe.Key = key
	svc.stripeEnabled = true
	log.Info("set up stripe")
}

// createDonationIntent creates a payment intent for a one-time
// donation and returns its client secret.
func (svc *service) createDonationIntent(d *model.Donation) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:                  stripe.Int64(toCents(d.Amount)),
		Currency:                stripe.String(donationCurrency),
		ReceiptEmail:            stripe.String(d.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{Enabled: stripe.Bool(true)},
	}
	params.AddMetadata("donationId", strconv.FormatInt(d.ID, 10))

	// NOTE: DO NOT LOG PAYMENT INTENT.
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("could not create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}

// handleStripeWebhook records payment outcomes reported by Stripe.
// Intents carrying memberId metadata are recorded as payment events;
// a settled intent carrying pledgeId metadata also advances the
// pledge's payment dates.
func (svc *service) handleStripeWebhook(c *fiber.Ctx) error {
	event := stripe.Event{}
	if err := json.Unmarshal(c.Body(), &event); err != nil {
		return logAndReturnError(c, fmt.Sprintf("could not parse webhook body: %v", err), withStatus(fiber.StatusBadRequest))
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		err := json.Unmarshal(event.Data.Raw, &pi)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not parse payment intent: %v", err), withStatus(fiber.StatusBadRequest))
		}
		err = svc.recordIntentOutcome(c.Context(), &pi, model.PaymentSucceeded)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not record successful payment: %v", err))
		}

	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		err := json.Unmarshal(event.Data.Raw, &pi)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not parse payment intent: %v", err), withStatus(fiber.StatusBadRequest))
		}
		err = svc.recordIntentOutcome(c.Context(), &pi, model.PaymentFailed)
		if err != nil {
			return logAndReturnError(c, fmt.Sprintf("could not record failed payment: %v", err))
		}

	default:
		log.Debugf("ignoring stripe event type %s", event.Type)
	}

	return c.JSON(fiber.Map{"success": true})
}

// recordIntentOutcome records a payment event for the member named in
// the intent's metadata, if any, and on success advances the pledge
// named there too. An intent with no member is a one-time donation;
// its record already exists, so settlement only triggers the receipt.
func (svc *service) recordIntentOutcome(ctx context.Context, pi *stripe.PaymentIntent, status string) error {
	memberID, _ := strconv.ParseInt(pi.Metadata["memberId"], 10, 64)
	if memberID == 0 {
		if status != model.PaymentSucceeded {
			return nil
		}
		return svc.sendDonationReceipt(ctx, pi)
	}
	pledgeID, _ := strconv.ParseInt(pi.Metadata["pledgeId"], 10, 64)

	p := &model.MemberPayment{
		MemberID:      memberID,
		DonationID:    pledgeID,
		Amount:        float64(pi.Amount) / 100,
		Status:        status,
		PaymentMethod: model.MethodCard,
	}
	err := svc.store.CreateMemberPayment(ctx, p)
	if err != nil {
		return fmt.Errorf("could not create payment event: %w", err)
	}

	if status == model.PaymentSucceeded && pledgeID != 0 {
		err = svc.advancePledge(ctx, pledgeID, p.PaymentDate)
		if err != nil {
			return fmt.Errorf("could not advance pledge %d: %w", pledgeID, err)
		}
	}
	return nil
}

// sendDonationReceipt thanks the donor behind a settled one-time
// donation intent.
func (svc *service) sendDonationReceipt(ctx context.Context, pi *stripe.PaymentIntent) error {
	donationID, _ := strconv.ParseInt(pi.Metadata["donationId"], 10, 64)
	if donationID == 0 {
		return nil
	}
	d, err := svc.store.GetDonation(ctx, donationID)
	if err != nil {
		return fmt.Errorf("could not get donation %d: %w", donationID, err)
	}
	svc.notifySend(notify.KindReceipt, d.Email, donationReceipt(d))
	return nil
}

// advancePledge moves a pledge's last payment date to paidAt and its
// next payment date one billing period on.
func (svc *service) advancePledge(ctx context.Context, pledgeID int64, paidAt time.Time) error {
	d, err := svc.store.GetMemberDonation(ctx, pledgeID)
	if err != nil {
		return fmt.Errorf("could not get pledge: %w", err)
	}
	next := d.NextDue(paidAt)
	_, err = svc.store.UpdateMemberDonation(ctx, pledgeID, model.MemberDonationPatch{
		LastPaymentDate: &paidAt,
		NextPaymentDate: &next,
	})
	return err
}

// toCents converts an amount to the integral minor units Stripe uses.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
