// Package sms delivers text messages through Twilio or sms.ir and
// normalises phone numbers to E.164.
package sms

import (
	"fmt"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/medilocker/medilocker/internal/platform/notification"
)

const (
	ProviderTwilio = "twilio"
	ProviderSMSIR  = "smsir"
)

type Config struct {
	Provider string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioBaseURL    string

	SMSIRAPIKey     string
	SMSIRSecretKey  string
	SMSIRTemplateID string

	Timeout time.Duration
}

// New returns the sender for cfg.Provider, or nil when no provider is set.
func New(cfg Config) (notification.SMSSender, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case ProviderTwilio:
		t, err := NewTwilio(cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	case ProviderSMSIR:
		s, err := NewSMSIR(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

// NormalizePhone parses raw in the given default region and returns it in
// E.164 form. Numbers with a leading + ignore the region.
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
