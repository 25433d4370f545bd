package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/arsmn/go-smsir/smsir"
)

// SMSIR sends through an sms.ir UltraFast template. The template must
// declare a "message" parameter that receives the rendered text.
type SMSIR struct {
	templateID string
	send       func(ctx context.Context, req *smsir.UltraFastSendRequest) error
}

func NewSMSIR(cfg Config) (*SMSIR, error) {
	if cfg.SMSIRAPIKey == "" || cfg.SMSIRTemplateID == "" {
		return nil, errors.New("smsir: api key and template id are required")
	}
	client := smsir.NewClient().WithAuthentication(cfg.SMSIRAPIKey, cfg.SMSIRSecretKey)
	return &SMSIR{
		templateID: cfg.SMSIRTemplateID,
		send: func(ctx context.Context, req *smsir.UltraFastSendRequest) error {
			_, err := client.Verification.UltraFastSend(ctx, req)
			return err
		},
	}, nil
}

func (s *SMSIR) SendSMS(ctx context.Context, to, body string) error {
	req := &smsir.UltraFastSendRequest{
		Mobile:     to,
		TemplateID: s.templateID,
		Parameters: []smsir.UltraFastParameter{
			{Key: "message", Value: body},
		},
	}
	if err := s.send(ctx, req); err != nil {
		return fmt.Errorf("sms.ir send failed: %w", err)
	}
	return nil
}
