package emergency

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateContact(ctx context.Context, c *Contact) error
	GetContact(ctx context.Context, id uuid.UUID) (*Contact, error)
	UpdateContact(ctx context.Context, c *Contact) error
	DeactivateContact(ctx context.Context, id uuid.UUID) error
	// ListActiveContacts orders by priority, then creation time.
	ListActiveContacts(ctx context.Context, patientID uuid.UUID) ([]*Contact, error)

	CreateAlert(ctx context.Context, a *Alert) error
	ListAlertsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Alert, error)
	ListAlertsByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*HospitalAlert, error)
	// GetAlertForUpdate locks the row when called inside a transaction.
	GetAlertForUpdate(ctx context.Context, id uuid.UUID) (*Alert, error)
	UpdateAlertStatus(ctx context.Context, a *Alert) error
}
