package notification

import (
	"context"
	"fmt"

	"github.com/go-gomail/gomail"
)

// SMTPConfig addresses the outbound relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends through an SMTP relay with gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) message(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// SendEmail returns when the relay accepts the message or ctx is done,
// whichever happens first. gomail cannot be interrupted, so a dial that
// outlives ctx finishes in the background.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	m := s.message(to, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", to, ctx.Err())
	}
}
