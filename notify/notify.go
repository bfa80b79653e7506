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
	"fmt"
	"log"
	"strings"
	"sync"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

const (
	defaultSender    = "no-reply@buddhadham.org"
	defaultRecipient = "contact@buddhadham.org"
)

// Kind classifies a notification, and selects its subject line.
type Kind string

// Notification kinds sent by the Buddhadham services.
const (
	KindContact   Kind = "contact"   // A contact form submission arrived.
	KindVolunteer Kind = "volunteer" // A volunteer application arrived.
	KindReceipt   Kind = "receipt"   // A donation receipt for the donor.
	KindRenewal   Kind = "renewal"   // A recurring-donation renewal reminder.
)

// subject returns the email subject line for the kind.
func (k Kind) subject() string {
	switch k {
	case KindContact:
		return "New contact message"
	case KindVolunteer:
		return "New volunteer application"
	case KindReceipt:
		return "Thank you for your donation"
	case KindRenewal:
		return "Your donation renewal is due"
	default:
		return "Buddhadham notification"
	}
}

// Notifier sends email notifications using the MailJet API.
type Notifier struct {
	mutex      sync.Mutex // Lock access.
	sender     string     // Sender email address.
	recipient  string     // Default recipient email address.
	store      TimeStore  // Notification throttle store (optional).
	filters    []string   // Message filters (optional).
	publicKey  string     // Public key for accessing the MailJet API.
	privateKey string     // Private key for accessing the MailJet API.
}

// Init initializes a notifier with the supplied options. See
// WithSender, WithRecipient, WithFilter, WithStore and WithSecrets for
// a description of the various options. Secrets are required to send
// actual emails using the MailJet API, but can be omitted during
// testing. It is permissible to re-initialize a Notifier with
// different options, however missing options will revert to their
// defaults.
func (n *Notifier) Init(options ...Option) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	// Set default values.
	n.sender = defaultSender
	n.recipient = defaultRecipient
	n.store = nil
	n.filters = nil
	n.publicKey = ""
	n.privateKey = ""

	// Apply options.
	for i, opt := range options {
		err := opt(n)
		if err != nil {
			return fmt.Errorf("could not apply option # %d, %v", i, err)
		}
	}

	return nil
}

// Send sends an email message of the given kind to the recipient, or
// to the default recipient when recipient is empty.
// With filters, all filters must match in order to send.
// With a store, the message is sent only if a message of the same kind
// was not sent to the same recipient recently.
func (n *Notifier) Send(ctx context.Context, kind Kind, recipient, msg string) error {
	if recipient == "" {
		recipient = n.recipient
	}

	for _, f := range n.filters {
		if !strings.Contains(msg, f) {
			log.Printf("filter '%s' applied: not sending %s message to %s", f, kind, recipient)
			return nil
		}
	}

	if n.store != nil {
		sendable, err := n.store.Sendable(ctx, string(kind)+"."+recipient)
		if err != nil {
			log.Printf("store.Sendable returned error: %v", err)
		}
		if !sendable {
			return nil
		}
	}

	log.Printf("sending %s a %s message", recipient, kind)

	if n.publicKey != "" && n.privateKey != "" {
		clt := mailjet.NewMailjetClient(n.publicKey, n.privateKey)
		info := []mailjet.InfoMessagesV31{{
			From:     &mailjet.RecipientV31{Email: n.sender},
			To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: recipient}},
			Subject:  kind.subject(),
			TextPart: msg,
		}}

		msgs := mailjet.MessagesV31{Info: info}
		_, err := clt.SendMailV31(&msgs)
		if err != nil {
			return fmt.Errorf("could not send mail: %w", err)
		}
	}

	if n.store != nil {
		err := n.store.Sent(ctx, string(kind)+"."+recipient)
		if err != nil {
			log.Printf("store.Sent returned error: %v", err)
		}
	}

	return nil
}
