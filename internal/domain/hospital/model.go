package hospital

import (
	"time"

	"github.com/google/uuid"

	"github.com/medilocker/medilocker/internal/platform/geo"
)

// DefaultRadiusKm applies when a search has coordinates but no radius.
const DefaultRadiusKm = 50.0

// Hospital is the directory profile of a hospital-type account.
type Hospital struct {
	ID                uuid.UUID `json:"id"`
	AdminID           uuid.UUID `json:"adminId"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Address           string    `json:"address"`
	City              string    `json:"city"`
	State             string    `json:"state"`
	Latitude          *float64  `json:"latitude"`
	Longitude         *float64  `json:"longitude"`
	Type              string    `json:"type"`
	Rating            float64   `json:"rating"`
	IsVerified        bool      `json:"isVerified"`
	EmergencyServices bool      `json:"emergencyServices"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Location returns the hospital coordinates, if both are known.
func (h *Hospital) Location() (geo.Point, bool) {
	if h.Latitude == nil || h.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *h.Latitude, Lng: *h.Longitude}, true
}

func locate(h *Hospital) (geo.Point, bool) { return h.Location() }

// Filter narrows a directory search. Text filters are case-insensitive
// substring matches.
type Filter struct {
	City     string
	Type     string
	Search   string
	Verified *bool
}

// Near restricts a search to hospitals within RadiusKm of Origin.
type Near struct {
	Origin   geo.Point
	RadiusKm float64
}

// Listing is a directory entry with its distance from the search origin.
type Listing struct {
	*Hospital
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// ProfileInput carries a create-or-update of the caller's own profile.
type ProfileInput struct {
	Name              *string  `json:"name"`
	Email             *string  `json:"email"`
	Phone             *string  `json:"phone"`
	Address           *string  `json:"address"`
	City              *string  `json:"city"`
	State             *string  `json:"state"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Type              *string  `json:"type"`
	EmergencyServices *bool    `json:"emergencyServices"`
}

func (in ProfileInput) apply(h *Hospital) {
	if in.Name != nil {
		h.Name = *in.Name
	}
	if in.Email != nil {
		h.Email = *in.Email
	}
	if in.Phone != nil {
		h.Phone = *in.Phone
	}
	if in.Address != nil {
		h.Address = *in.Address
	}
	if in.City != nil {
		h.City = *in.City
	}
	if in.State != nil {
		h.State = *in.State
	}
	if in.Latitude != nil {
		h.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		h.Longitude = in.Longitude
	}
	if in.Type != nil {
		h.Type = *in.Type
	}
	if in.EmergencyServices != nil {
		h.EmergencyServices = *in.EmergencyServices
	}
}
