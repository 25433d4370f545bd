package record

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	Update(ctx context.Context, r *MedicalRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns one page of a patient's records, newest record date first.
	List(ctx context.Context, patientID uuid.UUID, f Filter, limit, offset int) ([]*MedicalRecord, int, error)
	ListAll(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error)
}
