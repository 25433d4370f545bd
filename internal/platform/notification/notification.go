// Package notification renders the transactional messages the API sends and
// hands them to the configured email and SMS senders.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Template IDs.
const (
	TemplateEmailVerification = "email-verification"
	TemplatePasswordReset     = "password-reset"
	TemplateEmergencyAlert    = "emergency-alert"
	TemplateEmergencyAlertSMS = "emergency-alert-sms"
	TemplateShareCreated      = "share-created"
)

var ErrSMSUnconfigured = errors.New("sms provider is not configured")

// EmailSender delivers a single plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a single text message to an E.164 number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type Template struct {
	ID      string
	Subject string
	Body    string
	Channel Channel
}

// TemplateEngine stores templates and fills {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine(appName string) *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range builtIn(appName) {
		e.templates[t.ID] = t
	}
	return e
}

func builtIn(app string) []Template {
	return []Template{
		{
			ID:      TemplateEmailVerification,
			Subject: "Verify your " + app + " email address",
			Body: "Hello {{name}},\n\nWelcome to " + app + ". Please confirm your email address by opening the link below:\n\n" +
				"{{verify_link}}\n\nThe link expires in 24 hours.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplatePasswordReset,
			Subject: app + " password reset",
			Body: "You requested a password reset. Open the link below to choose a new password:\n\n{{reset_link}}\n\n" +
				"The link expires in 1 hour. If you did not request this, ignore this email.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateEmergencyAlert,
			Subject: "EMERGENCY: {{patient_name}} needs help",
			Body: "Dear {{contact_name}},\n\n{{patient_name}} has triggered an emergency alert and listed you as an emergency contact.\n\n" +
				"Location: {{location}}\nMessage: {{message}}\n{{map_link}}\n\nPlease try to reach them or contact emergency services.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateEmergencyAlertSMS,
			Body:    "EMERGENCY: {{patient_name}} needs help at {{location}}. {{message}} {{hospital_line}}",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateShareCreated,
			Subject: "{{patient_name}} shared medical records with you",
			Body: "Hello {{provider_name}},\n\n{{patient_name}} has shared their medical records with {{hospital_name}} " +
				"with {{access_level}} access{{expiry_line}}.\n\nSign in to " + app + " to accept or decline the request.",
			Channel: ChannelEmail,
		},
	}
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render fills the template. Placeholders without data are removed.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (Template, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return Template{}, fmt.Errorf("template %q not found", templateID)
	}

	t.Subject = fill(t.Subject, data)
	t.Body = fill(t.Body, data)
	return t, nil
}

func fill(s string, data map[string]string) string {
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			break
		}
		s = s[:start] + s[start+end+2:]
	}
	return strings.TrimSpace(s)
}

// Notifier renders templates and dispatches them. A nil SMS sender means
// SMS is not configured.
type Notifier struct {
	templates *TemplateEngine
	email     EmailSender
	sms       SMSSender
	logger    zerolog.Logger
}

func NewNotifier(tpl *TemplateEngine, email EmailSender, sms SMSSender, logger zerolog.Logger) *Notifier {
	return &Notifier{templates: tpl, email: email, sms: sms, logger: logger}
}

func (n *Notifier) SMSEnabled() bool { return n.sms != nil }

func (n *Notifier) Email(ctx context.Context, templateID, to string, data map[string]string) error {
	t, err := n.templates.Render(templateID, data)
	if err != nil {
		return err
	}
	if t.Channel != ChannelEmail {
		return fmt.Errorf("template %q is not an email template", templateID)
	}
	if err := n.email.SendEmail(ctx, to, t.Subject, t.Body); err != nil {
		return fmt.Errorf("send %s email: %w", templateID, err)
	}
	n.logger.Debug().Str("template", templateID).Str("to", to).Msg("email sent")
	return nil
}

func (n *Notifier) SMS(ctx context.Context, templateID, to string, data map[string]string) error {
	if n.sms == nil {
		return ErrSMSUnconfigured
	}
	t, err := n.templates.Render(templateID, data)
	if err != nil {
		return err
	}
	if t.Channel != ChannelSMS {
		return fmt.Errorf("template %q is not an sms template", templateID)
	}
	if err := n.sms.SendSMS(ctx, to, t.Body); err != nil {
		return fmt.Errorf("send %s sms: %w", templateID, err)
	}
	n.logger.Debug().Str("template", templateID).Str("to", to).Msg("sms sent")
	return nil
}

// EmailBestEffort sends and only logs a failure.
func (n *Notifier) EmailBestEffort(ctx context.Context, templateID, to string, data map[string]string) {
	if err := n.Email(ctx, templateID, to, data); err != nil {
		n.logger.Warn().Err(err).Str("template", templateID).Str("to", to).Msg("notification email failed")
	}
}
