package hospital

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/geo"
	"github.com/medilocker/medilocker/internal/platform/validate"
	"github.com/medilocker/medilocker/pkg/pagination"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Search filters the directory and, when near is set, drops hospitals
// outside the radius and orders the rest by distance. Hospitals without
// coordinates are kept and sort last. Paging is applied after ordering.
func (s *Service) Search(ctx context.Context, f Filter, near *Near, p pagination.Params) ([]Listing, int, error) {
	items, err := s.repo.Search(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	listings := make([]Listing, 0, len(items))
	if near == nil {
		for _, h := range items {
			listings = append(listings, Listing{Hospital: h})
		}
	} else {
		radius := near.RadiusKm
		if radius <= 0 {
			radius = DefaultRadiusKm
		}
		for _, r := range geo.FilterAndSort(near.Origin, radius, items, locate) {
			l := Listing{Hospital: r.Item}
			if r.DistanceKm != nil {
				d := geo.Round2(*r.DistanceKm)
				l.DistanceKm = &d
			}
			listings = append(listings, l)
		}
	}

	start, end := p.Window(len(listings))
	return listings[start:end], len(listings), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	h, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Wrap(http.StatusNotFound, ErrNotFound)
	}
	return h, err
}

// EnsureProfile returns the admin's hospital profile, creating a minimal
// one when it does not exist yet.
func (s *Service) EnsureProfile(ctx context.Context, adminID uuid.UUID, name, email string) (*Hospital, error) {
	h, err := s.repo.GetByAdminID(ctx, adminID)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if name == "" {
		name = defaultName(email)
	}
	return s.repo.CreateIfAbsent(ctx, &Hospital{
		AdminID: adminID,
		Name:    name,
		Email:   email,
		Type:    "general",
	})
}

// ProfileForAdmin returns ErrNotFound (wrapped as 404) when the admin has
// no profile yet.
func (s *Service) ProfileForAdmin(ctx context.Context, adminID uuid.UUID) (*Hospital, error) {
	h, err := s.repo.GetByAdminID(ctx, adminID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Wrap(http.StatusNotFound, ErrNotFound)
	}
	return h, err
}

// UpsertProfile creates or updates the caller's own profile.
func (s *Service) UpsertProfile(ctx context.Context, adminID uuid.UUID, email string, in ProfileInput) (*Hospital, error) {
	if err := validateProfile(in); err != nil {
		return nil, err
	}
	h, err := s.EnsureProfile(ctx, adminID, "", email)
	if err != nil {
		return nil, err
	}
	in.apply(h)
	if err := s.repo.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// NearestVerified returns the closest verified hospital with coordinates.
// found is false when the directory has none.
func (s *Service) NearestVerified(ctx context.Context, origin geo.Point) (h *Hospital, distanceKm float64, found bool, err error) {
	items, err := s.repo.ListVerifiedWithCoordinates(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	h, distanceKm, found = geo.Nearest(origin, items, locate)
	return h, distanceKm, found, nil
}

func validateProfile(in ProfileInput) error {
	var v validate.Errors
	if in.Name != nil {
		v.Required("name", *in.Name)
	}
	if in.Email != nil {
		v.Email("email", *in.Email)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		v.Add("latitude", "latitude and longitude must be given together")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		v.Add("latitude", "must be between -90 and 90")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		v.Add("longitude", "must be between -180 and 180")
	}
	return v.Err()
}

func defaultName(email string) string {
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "Hospital"
}
