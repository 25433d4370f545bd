// Package email sends plain-text mail over SMTP with gomail.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

var (
	ErrDisabled       = errors.New("email is disabled")
	ErrInvalidMessage = errors.New("invalid email message")
)

type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

// Sender implements notification.EmailSender.
type Sender struct {
	cfg  Config
	dial func(m *gomail.Message) error
}

func New(cfg Config) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	s := &Sender{cfg: cfg}
	s.dial = func(m *gomail.Message) error {
		return s.newDialer().DialAndSend(m)
	}
	return s
}

func (s *Sender) newDialer() *gomail.Dialer {
	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.SSL = s.cfg.UseTLS
	if s.cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	}
	return d
}

// SendEmail builds the message and delivers it, giving up when ctx ends or
// the configured timeout passes, whichever is sooner.
func (s *Sender) SendEmail(ctx context.Context, to, subject, body string) error {
	if !s.cfg.Enabled {
		return ErrDisabled
	}

	msg, err := buildMessage(s.cfg.From, to, subject, body)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dial(msg)
	}()

	wait := s.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

func buildMessage(from, to, subject, body string) (*gomail.Message, error) {
	from, to, subject = strings.TrimSpace(from), strings.TrimSpace(to), strings.TrimSpace(subject)
	switch {
	case from == "":
		return nil, fmt.Errorf("%w: from is required", ErrInvalidMessage)
	case to == "":
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case subject == "":
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case strings.TrimSpace(body) == "":
		return nil, fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg, nil
}
