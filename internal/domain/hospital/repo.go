package hospital

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateIfAbsent inserts h unless the admin already has a profile and
	// returns whichever row is stored.
	CreateIfAbsent(ctx context.Context, h *Hospital) (*Hospital, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	GetByAdminID(ctx context.Context, adminID uuid.UUID) (*Hospital, error)
	Update(ctx context.Context, h *Hospital) error
	// Search returns every hospital matching f ordered by name.
	Search(ctx context.Context, f Filter) ([]*Hospital, error)
	ListVerifiedWithCoordinates(ctx context.Context) ([]*Hospital, error)
}
