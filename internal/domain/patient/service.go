package patient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/db"
	"github.com/medilocker/medilocker/internal/platform/validate"
)

type Service struct {
	repo Repository
	tx   db.TxRunner
}

func NewService(repo Repository, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

func notFound() error { return apperror.Wrap(http.StatusNotFound, ErrNotFound) }

func (s *Service) List(ctx context.Context, adminID uuid.UUID) ([]*Patient, error) {
	items, err := s.repo.ListByAdmin(ctx, adminID)
	if items == nil {
		items = []*Patient{}
	}
	return items, err
}

// Get returns a patient owned by adminID. Profiles of other accounts are
// reported as not found.
func (s *Service) Get(ctx context.Context, adminID, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, err
	}
	if p.AdminID != adminID {
		return nil, notFound()
	}
	return p, nil
}

// EnsureOwned fails with 404 unless patientID belongs to adminID.
func (s *Service) EnsureOwned(ctx context.Context, adminID, patientID uuid.UUID) error {
	_, err := s.Get(ctx, adminID, patientID)
	return err
}

// Create adds a profile. The first profile of an account is always primary;
// a new primary demotes the previous one in the same transaction.
func (s *Service) Create(ctx context.Context, adminID uuid.UUID, in Input) (*Patient, error) {
	var v validate.Errors
	if in.FullName == nil {
		v.Add("fullName", "is required")
	}
	dob := validateInput(&v, in)
	if err := v.Err(); err != nil {
		return nil, err
	}

	p := &Patient{AdminID: adminID, Relationship: "self"}
	in.apply(p, dob)

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockAdmin(ctx, adminID); err != nil {
			return err
		}
		existing, err := s.repo.ListByAdmin(ctx, adminID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			p.IsPrimary = true
		}
		if p.IsPrimary {
			if err := s.repo.ClearPrimary(ctx, adminID, uuid.Nil); err != nil {
				return err
			}
		}
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePrimary creates the account holder's own profile at registration.
func (s *Service) CreatePrimary(ctx context.Context, adminID uuid.UUID, fullName, phone string) error {
	primary := true
	_, err := s.Create(ctx, adminID, Input{FullName: &fullName, Phone: &phone, IsPrimary: &primary})
	return err
}

func (s *Service) Update(ctx context.Context, adminID, id uuid.UUID, in Input) (*Patient, error) {
	var v validate.Errors
	dob := validateInput(&v, in)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var p *Patient
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockAdmin(ctx, adminID); err != nil {
			return err
		}
		var err error
		if p, err = s.Get(ctx, adminID, id); err != nil {
			return err
		}
		in.apply(p, dob)
		if p.IsPrimary {
			if err := s.repo.ClearPrimary(ctx, adminID, p.ID); err != nil {
				return err
			}
		}
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the profile and its dependent rows. When the primary
// profile is deleted the oldest remaining one is promoted.
func (s *Service) Delete(ctx context.Context, adminID, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockAdmin(ctx, adminID); err != nil {
			return err
		}
		p, err := s.Get(ctx, adminID, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		if !p.IsPrimary {
			return nil
		}
		rest, err := s.repo.ListByAdmin(ctx, adminID)
		if err != nil || len(rest) == 0 {
			return err
		}
		oldest := rest[0]
		for _, r := range rest[1:] {
			if r.CreatedAt.Before(oldest.CreatedAt) {
				oldest = r
			}
		}
		oldest.IsPrimary = true
		return s.repo.Update(ctx, oldest)
	})
}

func (s *Service) EmergencyInfo(ctx context.Context, adminID, id uuid.UUID) (*EmergencyInfo, error) {
	p, err := s.Get(ctx, adminID, id)
	if err != nil {
		return nil, err
	}
	return &EmergencyInfo{FullName: p.FullName, DateOfBirth: p.DateOfBirth, BloodType: p.BloodType}, nil
}

// PublicEmergencyInfo looks up the primary profile of the account with the
// given email for emergency responders. It requires no authentication.
func (s *Service) PublicEmergencyInfo(ctx context.Context, email string) (*PublicEmergencyInfo, error) {
	email = validate.NormalizeEmail(email)
	var v validate.Errors
	v.Required("email", email)
	v.Email("email", email)
	if err := v.Err(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPrimaryByAdminEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, err
	}
	contacts, err := s.repo.ListActiveContacts(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if contacts == nil {
		contacts = []ContactSummary{}
	}
	return &PublicEmergencyInfo{
		FullName:           p.FullName,
		DateOfBirth:        p.DateOfBirth,
		BloodType:          p.BloodType,
		Allergies:          nonNil(p.Allergies),
		ChronicConditions:  nonNil(p.ChronicConditions),
		CurrentMedications: nonNil(p.CurrentMedications),
		EmergencyContacts:  contacts,
	}, nil
}

func validateInput(v *validate.Errors, in Input) *time.Time {
	if in.FullName != nil {
		v.Required("fullName", *in.FullName)
	}
	if in.BloodType != nil {
		v.OneOf("bloodType", strings.ToUpper(*in.BloodType), bloodTypes...)
	}
	if in.Gender != nil {
		v.OneOf("gender", strings.ToLower(*in.Gender), genders...)
	}
	if in.HeightCm != nil && (*in.HeightCm <= 0 || *in.HeightCm > 300) {
		v.Add("heightCm", "must be between 0 and 300")
	}
	if in.WeightKg != nil && (*in.WeightKg <= 0 || *in.WeightKg > 700) {
		v.Add("weightKg", "must be between 0 and 700")
	}
	if in.DateOfBirth == nil {
		return nil
	}
	dob := v.Date("dateOfBirth", *in.DateOfBirth)
	if dob != nil && dob.After(time.Now()) {
		v.Add("dateOfBirth", "must not be in the future")
	}
	return dob
}
