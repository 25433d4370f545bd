package emergency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/medilocker/medilocker/internal/domain/hospital"
	"github.com/medilocker/medilocker/internal/domain/patient"
	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/db"
	"github.com/medilocker/medilocker/internal/platform/geo"
	"github.com/medilocker/medilocker/internal/platform/notification"
	"github.com/medilocker/medilocker/internal/platform/sms"
	"github.com/medilocker/medilocker/internal/platform/validate"
)

// maxFanOut bounds concurrent sends per alert.
const maxFanOut = 5

// Patients resolves a patient owned by the caller, failing with 404 otherwise.
type Patients interface {
	Get(ctx context.Context, adminID, id uuid.UUID) (*patient.Patient, error)
}

type Hospitals interface {
	NearestVerified(ctx context.Context, origin geo.Point) (*hospital.Hospital, float64, bool, error)
	ProfileForAdmin(ctx context.Context, adminID uuid.UUID) (*hospital.Hospital, error)
}

type Notifier interface {
	Email(ctx context.Context, templateID, to string, data map[string]string) error
	SMS(ctx context.Context, templateID, to string, data map[string]string) error
	SMSEnabled() bool
}

type Service struct {
	repo      Repository
	patients  Patients
	hospitals Hospitals
	notifier  Notifier
	tx        db.TxRunner
	region    string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService builds the service. region is the default region used to
// parse contact phone numbers written without a country code.
func NewService(repo Repository, patients Patients, hospitals Hospitals, notifier Notifier,
	tx db.TxRunner, region string, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		patients:  patients,
		hospitals: hospitals,
		notifier:  notifier,
		tx:        tx,
		region:    region,
		logger:    logger,
		now:       time.Now,
	}
}

// -- Contacts --

func (s *Service) ListContacts(ctx context.Context, adminID, patientID uuid.UUID) ([]*Contact, error) {
	if _, err := s.patients.Get(ctx, adminID, patientID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListActiveContacts(ctx, patientID)
	if items == nil {
		items = []*Contact{}
	}
	return items, err
}

func (s *Service) CreateContact(ctx context.Context, adminID uuid.UUID, in ContactInput) (*Contact, error) {
	var v validate.Errors
	if in.PatientID == uuid.Nil {
		v.Add("patientId", "is required")
	}
	if in.Name == nil {
		v.Add("name", "is required")
	}
	if in.Phone == nil {
		v.Add("phone", "is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, adminID, in.PatientID); err != nil {
		return nil, err
	}

	c := &Contact{PatientID: in.PatientID, Priority: 1}
	in.apply(c)
	if err := s.normalize(c); err != nil {
		return nil, err
	}
	if err := s.repo.CreateContact(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateContact(ctx context.Context, adminID, id uuid.UUID, in ContactInput) (*Contact, error) {
	c, err := s.ownedContact(ctx, adminID, id)
	if err != nil {
		return nil, err
	}
	in.apply(c)
	if err := s.normalize(c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateContact(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteContact deactivates the contact; the row is kept.
func (s *Service) DeleteContact(ctx context.Context, adminID, id uuid.UUID) error {
	if _, err := s.ownedContact(ctx, adminID, id); err != nil {
		return err
	}
	err := s.repo.DeactivateContact(ctx, id)
	if errors.Is(err, ErrContactNotFound) {
		return apperror.Wrap(http.StatusNotFound, ErrContactNotFound)
	}
	return err
}

func (s *Service) ownedContact(ctx context.Context, adminID, id uuid.UUID) (*Contact, error) {
	c, err := s.repo.GetContact(ctx, id)
	if errors.Is(err, ErrContactNotFound) {
		return nil, apperror.Wrap(http.StatusNotFound, ErrContactNotFound)
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, adminID, c.PatientID); err != nil {
		if apperror.StatusOf(err) == http.StatusNotFound {
			return nil, apperror.Wrap(http.StatusNotFound, ErrContactNotFound)
		}
		return nil, err
	}
	return c, nil
}

// normalize validates c and rewrites its phone number in E.164 form.
func (s *Service) normalize(c *Contact) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = validate.NormalizeEmail(c.Email)

	var v validate.Errors
	v.Required("name", c.Name)
	v.Required("phone", c.Phone)
	if c.Email != "" {
		v.Email("email", c.Email)
	}
	if c.Priority < 1 {
		v.Add("priority", "must be at least 1")
	}
	if strings.TrimSpace(c.Phone) != "" {
		phone, err := sms.NormalizePhone(c.Phone, s.region)
		if err != nil {
			v.Add("phone", "must be a valid phone number")
		} else {
			c.Phone = phone
		}
	}
	return v.Err()
}

// -- Alerts --

func validateAlert(in AlertInput) error {
	var v validate.Errors
	if in.PatientID == uuid.Nil {
		v.Add("patientId", "is required")
	}
	v.Required("location", in.Location)
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

func mapLink(in AlertInput) string {
	if in.Latitude == nil || in.Longitude == nil {
		return ""
	}
	return fmt.Sprintf("Map: https://maps.google.com/?q=%.6f,%.6f", *in.Latitude, *in.Longitude)
}

func message(in AlertInput) string {
	if m := strings.TrimSpace(in.Message); m != "" {
		return m
	}
	return "Emergency assistance needed."
}

// SendAlert emails every active contact that has an email address and logs
// the alert. Delivery failures are logged and never fail the call.
func (s *Service) SendAlert(ctx context.Context, adminID uuid.UUID, in AlertInput) (*Alert, error) {
	if err := validateAlert(in); err != nil {
		return nil, err
	}
	p, err := s.patients.Get(ctx, adminID, in.PatientID)
	if err != nil {
		return nil, err
	}
	contacts, err := s.repo.ListActiveContacts(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var notified atomic.Int32
	wp := pool.New().WithMaxGoroutines(maxFanOut)
	for _, c := range contacts {
		if c.Email == "" {
			continue
		}
		c := c
		wp.Go(func() {
			err := s.notifier.Email(ctx, notification.TemplateEmergencyAlert, c.Email, map[string]string{
				"contact_name": c.Name,
				"patient_name": p.FullName,
				"location":     in.Location,
				"message":      message(in),
				"map_link":     mapLink(in),
			})
			if err != nil {
				s.logger.Warn().Err(err).
					Str("patient_id", p.ID.String()).
					Str("contact_id", c.ID.String()).
					Msg("emergency alert email failed")
				return
			}
			notified.Add(1)
		})
	}
	wp.Wait()

	a := &Alert{
		PatientID:        p.ID,
		Location:         in.Location,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		Message:          message(in),
		Status:           StatusSent,
		SentToContacts:   notified.Load() > 0,
		ContactsNotified: int(notified.Load()),
	}
	if err := s.repo.CreateAlert(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("alert_id", a.ID.String()).
		Str("patient_id", p.ID.String()).
		Int("contacts_notified", a.ContactsNotified).
		Msg("emergency alert sent")
	return a, nil
}

// Dispatch texts every active contact and routes the alert to the nearest
// verified hospital when coordinates are given. Any SMS failure fails the
// whole call and no alert is logged.
func (s *Service) Dispatch(ctx context.Context, adminID uuid.UUID, in AlertInput) (*Dispatch, error) {
	if !s.notifier.SMSEnabled() {
		return nil, apperror.Wrap(http.StatusServiceUnavailable, notification.ErrSMSUnconfigured)
	}
	if err := validateAlert(in); err != nil {
		return nil, err
	}
	p, err := s.patients.Get(ctx, adminID, in.PatientID)
	if err != nil {
		return nil, err
	}
	contacts, err := s.repo.ListActiveContacts(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, apperror.Wrap(http.StatusBadRequest, ErrNoContacts)
	}

	var nearest *NearestHospital
	if in.Latitude != nil && in.Longitude != nil {
		h, km, found, err := s.hospitals.NearestVerified(ctx, geo.Point{Lat: *in.Latitude, Lng: *in.Longitude})
		if err != nil {
			return nil, err
		}
		if found {
			nearest = &NearestHospital{ID: h.ID, Name: h.Name, Phone: h.Phone, Address: h.Address, DistanceKm: geo.Round2(km)}
		}
	}

	data := map[string]string{
		"patient_name":  p.FullName,
		"location":      in.Location,
		"message":       message(in),
		"hospital_line": hospitalLine(nearest),
	}
	wp := pool.New().WithErrors().WithMaxGoroutines(maxFanOut)
	for _, c := range contacts {
		c := c
		wp.Go(func() error {
			return s.notifier.SMS(ctx, notification.TemplateEmergencyAlertSMS, c.Phone, data)
		})
	}
	if err := wp.Wait(); err != nil {
		s.logger.Error().Err(err).Str("patient_id", p.ID.String()).Msg("emergency sms dispatch failed")
		return nil, &apperror.Error{Status: http.StatusBadGateway, Message: "failed to send emergency sms", Err: err}
	}

	a := &Alert{
		PatientID:        p.ID,
		Location:         in.Location,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		Message:          message(in),
		Status:           StatusSent,
		SentToContacts:   true,
		ContactsNotified: len(contacts),
	}
	if nearest != nil {
		a.HospitalID = &nearest.ID
		a.SentToHospital = true
	}
	if err := s.repo.CreateAlert(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("alert_id", a.ID.String()).
		Str("patient_id", p.ID.String()).
		Bool("sent_to_hospital", a.SentToHospital).
		Int("contacts_notified", a.ContactsNotified).
		Msg("emergency sms dispatched")
	return &Dispatch{Alert: a, NearestHospital: nearest, ContactsNotified: len(contacts)}, nil
}

func hospitalLine(h *NearestHospital) string {
	if h == nil {
		return ""
	}
	line := fmt.Sprintf("Nearest hospital: %s, %.1f km", h.Name, h.DistanceKm)
	if h.Phone != "" {
		line += ", tel " + h.Phone
	}
	return line + "."
}

func (s *Service) ListAlerts(ctx context.Context, adminID, patientID uuid.UUID) ([]*Alert, error) {
	if _, err := s.patients.Get(ctx, adminID, patientID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListAlertsByPatient(ctx, patientID)
	if items == nil {
		items = []*Alert{}
	}
	return items, err
}

// -- Hospital side --

// HospitalAlerts lists alerts routed to the caller's hospital. A hospital
// admin without a profile has none.
func (s *Service) HospitalAlerts(ctx context.Context, adminID uuid.UUID) ([]*HospitalAlert, error) {
	h, err := s.hospitals.ProfileForAdmin(ctx, adminID)
	if errors.Is(err, hospital.ErrNotFound) {
		return []*HospitalAlert{}, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListAlertsByHospital(ctx, h.ID)
	if items == nil {
		items = []*HospitalAlert{}
	}
	return items, err
}

func (s *Service) Acknowledge(ctx context.Context, adminID, alertID uuid.UUID) (*Alert, error) {
	return s.transition(ctx, adminID, alertID, StatusAcknowledged)
}

func (s *Service) Resolve(ctx context.Context, adminID, alertID uuid.UUID) (*Alert, error) {
	return s.transition(ctx, adminID, alertID, StatusResolved)
}

func (s *Service) transition(ctx context.Context, adminID, alertID uuid.UUID, status string) (*Alert, error) {
	notFound := apperror.Wrap(http.StatusNotFound, ErrAlertNotFound)
	h, err := s.hospitals.ProfileForAdmin(ctx, adminID)
	if errors.Is(err, hospital.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}

	var out *Alert
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetAlertForUpdate(ctx, alertID)
		if errors.Is(err, ErrAlertNotFound) {
			return notFound
		}
		if err != nil {
			return err
		}
		if a.HospitalID == nil || *a.HospitalID != h.ID {
			return notFound
		}
		if err := a.transition(status, s.now().UTC()); err != nil {
			return apperror.Wrap(http.StatusConflict, err)
		}
		if err := s.repo.UpdateAlertStatus(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
