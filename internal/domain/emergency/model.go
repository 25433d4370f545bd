package emergency

import (
	"time"

	"github.com/google/uuid"
)

// Alert statuses. The stored values are the verbs used by the hospital
// actions.
const (
	StatusSent         = "sent"
	StatusAcknowledged = "acknowledge"
	StatusResolved     = "resolve"
)

// Contact is a person notified when the patient raises an alert.
type Contact struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patientId"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Priority     int       `json:"priority"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ContactInput is the body of contact create and update requests. PatientID
// is only read on create.
type ContactInput struct {
	PatientID    uuid.UUID `json:"patientId"`
	Name         *string   `json:"name"`
	Relationship *string   `json:"relationship"`
	Phone        *string   `json:"phone"`
	Email        *string   `json:"email"`
	Priority     *int      `json:"priority"`
}

func (in ContactInput) apply(c *Contact) {
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Relationship != nil {
		c.Relationship = *in.Relationship
	}
	if in.Phone != nil {
		c.Phone = *in.Phone
	}
	if in.Email != nil {
		c.Email = *in.Email
	}
	if in.Priority != nil {
		c.Priority = *in.Priority
	}
}

// Alert is the log entry of one emergency notification.
type Alert struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patientId"`
	HospitalID       *uuid.UUID `json:"hospitalId,omitempty"`
	Location         string     `json:"location"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	Message          string     `json:"message"`
	Status           string     `json:"status"`
	SentToHospital   bool       `json:"sentToHospital"`
	SentToContacts   bool       `json:"sentToContacts"`
	ContactsNotified int        `json:"contactsNotified"`
	AcknowledgedAt   *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// transition moves the alert to status, stamping the matching timestamp.
func (a *Alert) transition(status string, now time.Time) error {
	switch {
	case status == StatusAcknowledged && a.Status == StatusSent:
		a.AcknowledgedAt = &now
	case status == StatusResolved && (a.Status == StatusSent || a.Status == StatusAcknowledged):
		a.ResolvedAt = &now
	default:
		return ErrInvalidTransition
	}
	a.Status = status
	return nil
}

// HospitalAlert is an alert as seen by the hospital it was routed to.
type HospitalAlert struct {
	*Alert
	PatientName  string `json:"patientName"`
	PatientPhone string `json:"patientPhone"`
	BloodType    string `json:"bloodType"`
}

// AlertInput is the body of both alert endpoints.
type AlertInput struct {
	PatientID uuid.UUID `json:"patientId"`
	Location  string    `json:"location"`
	Message   string    `json:"message"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
}

// NearestHospital describes where an SMS dispatch was routed.
type NearestHospital struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	DistanceKm float64   `json:"distanceKm"`
}

// Dispatch is the result of an SMS dispatch.
type Dispatch struct {
	Alert            *Alert           `json:"alert"`
	NearestHospital  *NearestHospital `json:"nearestHospital,omitempty"`
	ContactsNotified int              `json:"contactsNotified"`
}
