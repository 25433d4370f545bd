package sms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// Twilio sends messages with the Programmable Messaging REST API.
type Twilio struct {
	client *resty.Client
	sid    string
	from   string
}

func NewTwilio(cfg Config) (*Twilio, error) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFrom == "" {
		return nil, errors.New("twilio: account sid, auth token and from number are required")
	}
	base := cfg.TwilioBaseURL
	if base == "" {
		base = twilioBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetBasicAuth(cfg.TwilioAccountSID, cfg.TwilioAuthToken).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	return &Twilio{client: client, sid: cfg.TwilioAccountSID, from: cfg.TwilioFrom}, nil
}

func (t *Twilio) SendSMS(ctx context.Context, to, body string) error {
	var msg twilioMessage
	var apiErr twilioError
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("sid", t.sid).
		SetFormData(map[string]string{
			"To":   to,
			"From": t.from,
			"Body": body,
		}).
		SetResult(&msg).
		SetError(&apiErr).
		Post("/Accounts/{sid}/Messages.json")
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("twilio: status %d: code %d: %s", resp.StatusCode(), apiErr.Code, apiErr.Message)
	}
	if msg.Status == "failed" || msg.Status == "undelivered" {
		return fmt.Errorf("twilio: message %s %s", msg.SID, msg.Status)
	}
	return nil
}
