// Package validate collects field errors for request payloads and turns
// them into a single 400 response.
package validate

import (
	"net/mail"
	"strings"
	"time"

	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/pkg/envelope"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type Errors struct {
	fields []envelope.FieldError
}

func (v *Errors) Add(field, message string) {
	v.fields = append(v.fields, envelope.FieldError{Field: field, Message: message})
}

func (v *Errors) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
	}
}

func (v *Errors) Email(field, value string) {
	if value == "" {
		return
	}
	if !IsEmail(value) {
		v.Add(field, "must be a valid email address")
	}
}

func (v *Errors) MinLength(field, value string, n int) {
	if len(value) < n {
		v.Add(field, "is too short")
	}
}

// OneOf records an error unless value is one of allowed. Empty values pass.
func (v *Errors) OneOf(field, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.Add(field, "must be one of: "+strings.Join(allowed, ", "))
}

// Date parses a YYYY-MM-DD value. Empty input yields nil without error.
func (v *Errors) Date(field, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		v.Add(field, "must be a date in YYYY-MM-DD format")
		return nil
	}
	return &t
}

// Time parses an RFC 3339 timestamp or a plain date.
func (v *Errors) Time(field, value string) *time.Time {
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return &t
	}
	v.Add(field, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
	return nil
}

func (v *Errors) Empty() bool { return len(v.fields) == 0 }

func (v *Errors) Fields() []envelope.FieldError { return v.fields }

// Err returns a validation error, or nil when nothing was recorded.
func (v *Errors) Err() error {
	if v.Empty() {
		return nil
	}
	return apperror.Validation(v.fields...)
}

func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
