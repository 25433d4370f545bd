package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is a health profile managed by an account: the account holder
// or a family member.
type Patient struct {
	ID                 uuid.UUID  `json:"id"`
	AdminID            uuid.UUID  `json:"adminId"`
	FullName           string     `json:"fullName"`
	DateOfBirth        *time.Time `json:"dateOfBirth,omitempty"`
	Gender             string     `json:"gender"`
	BloodType          string     `json:"bloodType"`
	HeightCm           *float64   `json:"heightCm,omitempty"`
	WeightKg           *float64   `json:"weightKg,omitempty"`
	Relationship       string     `json:"relationship"`
	IsPrimary          bool       `json:"isPrimary"`
	Phone              string     `json:"phone"`
	Address            string     `json:"address"`
	Allergies          []string   `json:"allergies"`
	ChronicConditions  []string   `json:"chronicConditions"`
	CurrentMedications []string   `json:"currentMedications"`
	ProfileImageURL    string     `json:"profileImageUrl"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

var bloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

var genders = []string{"male", "female", "other"}

// Input is the body of create and update requests. Nil fields are left
// unchanged on update.
type Input struct {
	FullName           *string   `json:"fullName"`
	DateOfBirth        *string   `json:"dateOfBirth"`
	Gender             *string   `json:"gender"`
	BloodType          *string   `json:"bloodType"`
	HeightCm           *float64  `json:"heightCm"`
	WeightKg           *float64  `json:"weightKg"`
	Relationship       *string   `json:"relationship"`
	IsPrimary          *bool     `json:"isPrimary"`
	Phone              *string   `json:"phone"`
	Address            *string   `json:"address"`
	Allergies          *[]string `json:"allergies"`
	ChronicConditions  *[]string `json:"chronicConditions"`
	CurrentMedications *[]string `json:"currentMedications"`
	ProfileImageURL    *string   `json:"profileImageUrl"`
}

func (in Input) apply(p *Patient, dob *time.Time) {
	if in.FullName != nil {
		p.FullName = *in.FullName
	}
	if dob != nil {
		p.DateOfBirth = dob
	}
	if in.Gender != nil {
		p.Gender = strings.ToLower(*in.Gender)
	}
	if in.BloodType != nil {
		p.BloodType = strings.ToUpper(*in.BloodType)
	}
	if in.HeightCm != nil {
		p.HeightCm = in.HeightCm
	}
	if in.WeightKg != nil {
		p.WeightKg = in.WeightKg
	}
	if in.Relationship != nil {
		p.Relationship = *in.Relationship
	}
	if in.IsPrimary != nil {
		p.IsPrimary = *in.IsPrimary
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	if in.Allergies != nil {
		p.Allergies = *in.Allergies
	}
	if in.ChronicConditions != nil {
		p.ChronicConditions = *in.ChronicConditions
	}
	if in.CurrentMedications != nil {
		p.CurrentMedications = *in.CurrentMedications
	}
	if in.ProfileImageURL != nil {
		p.ProfileImageURL = *in.ProfileImageURL
	}
}

// EmergencyInfo is the narrow view of an owned patient.
type EmergencyInfo struct {
	FullName    string     `json:"fullName"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	BloodType   string     `json:"bloodType"`
}

// ContactSummary is an active emergency contact as shown to responders.
type ContactSummary struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

// PublicEmergencyInfo is returned by the unauthenticated responder lookup.
type PublicEmergencyInfo struct {
	FullName           string           `json:"fullName"`
	DateOfBirth        *time.Time       `json:"dateOfBirth,omitempty"`
	BloodType          string           `json:"bloodType"`
	Allergies          []string         `json:"allergies"`
	ChronicConditions  []string         `json:"chronicConditions"`
	CurrentMedications []string         `json:"currentMedications"`
	EmergencyContacts  []ContactSummary `json:"emergencyContacts"`
}
