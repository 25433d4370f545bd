package sharing

import (
	"time"

	"github.com/google/uuid"

	"github.com/medilocker/medilocker/internal/domain/record"
)

// Share statuses.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
	StatusExpired  = "expired"
	StatusRevoked  = "revoked"
)

var statuses = []string{StatusPending, StatusActive, StatusRejected, StatusExpired, StatusRevoked}

var accessLevels = []string{"view", "download", "full"}

const defaultProviderType = "hospital"

// Share grants a provider access to one patient's records.
type Share struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patientId"`
	HospitalID           *uuid.UUID `json:"hospitalId,omitempty"`
	ContactID            *uuid.UUID `json:"contactId,omitempty"`
	ProviderName         string     `json:"providerName"`
	ProviderType         string     `json:"providerType"`
	AccessLevel          string     `json:"accessLevel"`
	Status               string     `json:"status"`
	SharedOn             time.Time  `json:"sharedOn"`
	ExpiresOn            *time.Time `json:"expiresOn,omitempty"`
	RecordsAccessedCount int        `json:"recordsAccessedCount"`
	LastAccessedAt       *time.Time `json:"lastAccessedAt,omitempty"`
	Notes                string     `json:"notes"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// IsLive reports whether the share currently grants access.
func (s *Share) IsLive(now time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	return s.ExpiresOn == nil || now.Before(*s.ExpiresOn)
}

// InboundShare is a share as listed for the receiving hospital.
type InboundShare struct {
	*Share
	PatientName string `json:"patientName"`
}

// CreateInput is the body of a patient's share request. ProviderName is
// the email of the receiving hospital account.
type CreateInput struct {
	ProviderName string `json:"providerName"`
	ProviderType string `json:"providerType"`
	AccessLevel  string `json:"accessLevel"`
	ExpiresOn    string `json:"expiresOn"`
	Notes        string `json:"notes"`
}

// UpdateInput changes a share from the patient side. The only status a
// patient may request is revoked.
type UpdateInput struct {
	AccessLevel *string `json:"accessLevel"`
	ExpiresOn   *string `json:"expiresOn"`
	Notes       *string `json:"notes"`
	Status      *string `json:"status"`
}

// Stats summarises a patient's shares. Active counts live shares only.
type Stats struct {
	Active          int `json:"active"`
	Total           int `json:"total"`
	RecordsAccessed int `json:"recordsAccessed"`
}

// SharedRecords is what a hospital receives for a live share.
type SharedRecords struct {
	Share   *Share                  `json:"share"`
	Records []*record.MedicalRecord `json:"records"`
}
