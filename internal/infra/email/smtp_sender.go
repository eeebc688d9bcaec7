// internal/infra/email/smtp_sender.go
package email

import (
	"context"

	"hall_maintenance_service/internal/domain/delivery"
	"hall_maintenance_service/internal/domain/hall"

	"gopkg.in/gomail.v2"
)

const defaultSubject = "Maintenance reminder"

// SMTPSender implements the delivery.Sender interface for the email
// channel using an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers the message to the contact's email address. A contact
// without an address is a permanent failure; SMTP/network errors are
// transient. The blocking dial runs in a goroutine so the caller's
// timeout is honored.
func (s *SMTPSender) Send(ctx context.Context, contact *hall.Contact, message string) error {
	if !contact.Email.Valid || contact.Email.String == "" {
		return delivery.NewPermanent("contact has no email address", nil)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", contact.Email.String)
	m.SetHeader("Subject", defaultSubject)
	m.SetBody("text/plain", message)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return delivery.NewTransient("smtp send timed out", ctx.Err())
	case err := <-done:
		if err != nil {
			return delivery.NewTransient("smtp send failed", err)
		}
		return nil
	}
}
