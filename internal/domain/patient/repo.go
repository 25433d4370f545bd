package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByAdmin(ctx context.Context, adminID uuid.UUID) ([]*Patient, error)
	// LockAdmin serialises primary-flag changes for one account inside a
	// transaction.
	LockAdmin(ctx context.Context, adminID uuid.UUID) error
	// ClearPrimary unsets is_primary on every profile of adminID except keep.
	ClearPrimary(ctx context.Context, adminID, keep uuid.UUID) error
	GetPrimaryByAdminEmail(ctx context.Context, email string) (*Patient, error)
	ListActiveContacts(ctx context.Context, patientID uuid.UUID) ([]ContactSummary, error)
}
