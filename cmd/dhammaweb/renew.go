/*
DESCRIPTION
  Scheduled renewal reminders: a daily job that emails members whose
  active pledge falls due soon. The job only reads the datastore and
  sends mail; pledge dates advance when payments actually settle.

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
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/buddhadham/cloud/model"
	"github.com/buddhadham/cloud/notify"
)

const (
	// renewalSchedule runs the reminder job each morning.
	renewalSchedule = "0 6 * * *"

	// renewalLookahead is how far ahead of the due date reminders go out.
	renewalLookahead = 72 * time.Hour

	// notifyPeriod throttles repeat notifications of the same kind to
	// the same recipient. With the job running daily, a member gets at
	// most one reminder per due date.
	notifyPeriod = renewalLookahead + 24*time.Hour
)

// startCron starts the scheduled jobs of the service.
func (svc *service) startCron() {
	svc.cron = cron.New()
	_, err := svc.cron.AddFunc(renewalSchedule, svc.sendRenewalReminders)
	if err != nil {
		log.Errorf("could not schedule renewal reminders: %v", err)
		return
	}
	svc.cron.Start()
	log.Info("scheduled renewal reminders")
}

// sendRenewalReminders emails every member whose active pledge falls
// due within the lookahead window. Failures for one member do not
// stop reminders for the rest.
func (svc *service) sendRenewalReminders() {
	ctx := context.Background()
	pledges, err := svc.store.GetMemberDonations(ctx)
	if err != nil {
		log.Errorf("could not get pledges for renewal reminders: %v", err)
		return
	}

	cutoff := time.Now().Add(renewalLookahead)
	for _, d := range pledges {
		if d.Status != model.PledgeActive || d.NextPaymentDate.IsZero() || d.NextPaymentDate.After(cutoff) {
			continue
		}

		m, err := svc.store.GetMember(ctx, d.MemberID)
		if err != nil {
			log.Errorf("could not get member %d for pledge %d: %v", d.MemberID, d.ID, err)
			continue
		}
		u, err := svc.store.GetUser(ctx, m.UserID)
		if err != nil {
			log.Errorf("could not get user %d for member %d: %v", m.UserID, m.ID, err)
			continue
		}
		if u.Email == "" {
			continue
		}

		msg := fmt.Sprintf(
			"Dear %s,\n\nYour %s donation of %.2f to the Buddhadham Foundation is due on %s.\n\nWith thanks,\nthe Buddhadham Foundation",
			u.FullName, d.Frequency, d.Amount, d.NextPaymentDate.Format("2 January 2006"))
		err = svc.notifier.Send(ctx, notify.KindRenewal, u.Email, msg)
		if err != nil {
			log.Errorf("could not send renewal reminder to %s: %v", u.Email, err)
		}
	}
}
