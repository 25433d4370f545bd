package sharing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Share) error
	GetByID(ctx context.Context, id uuid.UUID) (*Share, error)
	// GetForUpdate locks the row when called inside a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Share, error)
	Update(ctx context.Context, s *Share) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Share, error)
	// ListByHospital filters by status unless it is empty.
	ListByHospital(ctx context.Context, hospitalID uuid.UUID, status string) ([]*InboundShare, error)
	// RecordAccess bumps the access counter and stamps the access time.
	RecordAccess(ctx context.Context, s *Share, at time.Time) error
	// ExpireDue marks active shares whose expiry is at or before now as
	// expired and returns how many changed.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}
