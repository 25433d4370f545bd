package emergency

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medilocker/medilocker/internal/domain/hospital"
	"github.com/medilocker/medilocker/internal/domain/patient"
	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/db"
	"github.com/medilocker/medilocker/internal/platform/geo"
	"github.com/medilocker/medilocker/internal/platform/notification"
)

// -- Mock Repository --

type mockRepo struct {
	contacts map[uuid.UUID]*Contact
	alerts   map[uuid.UUID]*Alert
}

func newMockRepo() *mockRepo {
	return &mockRepo{contacts: make(map[uuid.UUID]*Contact), alerts: make(map[uuid.UUID]*Alert)}
}

func (m *mockRepo) CreateContact(_ context.Context, c *Contact) error {
	c.ID = uuid.New()
	c.IsActive = true
	c.CreatedAt = time.Now()
	m.contacts[c.ID] = c
	return nil
}

func (m *mockRepo) GetContact(_ context.Context, id uuid.UUID) (*Contact, error) {
	c, ok := m.contacts[id]
	if !ok || !c.IsActive {
		return nil, ErrContactNotFound
	}
	return c, nil
}

func (m *mockRepo) UpdateContact(_ context.Context, c *Contact) error {
	m.contacts[c.ID] = c
	return nil
}

func (m *mockRepo) DeactivateContact(_ context.Context, id uuid.UUID) error {
	c, ok := m.contacts[id]
	if !ok || !c.IsActive {
		return ErrContactNotFound
	}
	c.IsActive = false
	return nil
}

func (m *mockRepo) ListActiveContacts(_ context.Context, patientID uuid.UUID) ([]*Contact, error) {
	var out []*Contact
	for _, c := range m.contacts {
		if c.PatientID == patientID && c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (m *mockRepo) CreateAlert(_ context.Context, a *Alert) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.alerts[a.ID] = a
	return nil
}

func (m *mockRepo) ListAlertsByPatient(_ context.Context, patientID uuid.UUID) ([]*Alert, error) {
	var out []*Alert
	for _, a := range m.alerts {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) ListAlertsByHospital(_ context.Context, hospitalID uuid.UUID) ([]*HospitalAlert, error) {
	var out []*HospitalAlert
	for _, a := range m.alerts {
		if a.HospitalID != nil && *a.HospitalID == hospitalID {
			out = append(out, &HospitalAlert{Alert: a})
		}
	}
	return out, nil
}

func (m *mockRepo) GetAlertForUpdate(_ context.Context, id uuid.UUID) (*Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return a, nil
}

func (m *mockRepo) UpdateAlertStatus(_ context.Context, a *Alert) error {
	m.alerts[a.ID] = a
	return nil
}

// -- Fakes --

type fakePatients map[uuid.UUID]*patient.Patient

func (f fakePatients) Get(_ context.Context, adminID, id uuid.UUID) (*patient.Patient, error) {
	p, ok := f[id]
	if !ok || p.AdminID != adminID {
		return nil, apperror.Wrap(http.StatusNotFound, patient.ErrNotFound)
	}
	return p, nil
}

type fakeHospitals struct {
	byAdmin map[uuid.UUID]*hospital.Hospital
	all     []*hospital.Hospital
}

func (f *fakeHospitals) NearestVerified(_ context.Context, origin geo.Point) (*hospital.Hospital, float64, bool, error) {
	h, km, found := geo.Nearest(origin, f.all, func(h *hospital.Hospital) (geo.Point, bool) { return h.Location() })
	return h, km, found, nil
}

func (f *fakeHospitals) ProfileForAdmin(_ context.Context, adminID uuid.UUID) (*hospital.Hospital, error) {
	h, ok := f.byAdmin[adminID]
	if !ok {
		return nil, apperror.Wrap(http.StatusNotFound, hospital.ErrNotFound)
	}
	return h, nil
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc       *Service
	repo      *mockRepo
	email     *notification.MockEmailSender
	sms       *notification.MockSMSSender
	hospitals *fakeHospitals
	adminID   uuid.UUID
	patient   *patient.Patient
	newark    *hospital.Hospital
	manhattan *hospital.Hospital
}

// newFixture wires the service. A nil sms sender leaves SMS unconfigured.
func newFixture(withSMS bool) *fixture {
	f := &fixture{
		repo:    newMockRepo(),
		email:   &notification.MockEmailSender{FailError: "smtp down"},
		adminID: uuid.New(),
	}
	f.patient = &patient.Patient{ID: uuid.New(), AdminID: f.adminID, FullName: "Jane Roe", IsPrimary: true}
	f.manhattan = &hospital.Hospital{ID: uuid.New(), AdminID: uuid.New(), Name: "Manhattan General",
		Phone: "+12125550100", Latitude: ptr(40.7128), Longitude: ptr(-74.0060), IsVerified: true}
	f.newark = &hospital.Hospital{ID: uuid.New(), AdminID: uuid.New(), Name: "Newark Community",
		Latitude: ptr(40.7357), Longitude: ptr(-74.1724), IsVerified: true}
	f.hospitals = &fakeHospitals{
		byAdmin: map[uuid.UUID]*hospital.Hospital{f.manhattan.AdminID: f.manhattan, f.newark.AdminID: f.newark},
		all:     []*hospital.Hospital{f.manhattan, f.newark},
	}

	var sender notification.SMSSender
	if withSMS {
		f.sms = &notification.MockSMSSender{FailError: "provider rejected"}
		sender = f.sms
	}
	notifier := notification.NewNotifier(notification.NewTemplateEngine("MediLocker"), f.email, sender, zerolog.Nop())
	f.svc = NewService(f.repo, fakePatients{f.patient.ID: f.patient}, f.hospitals, notifier,
		db.NoopTxRunner{}, "US", zerolog.Nop())
	return f
}

func (f *fixture) addContact(t *testing.T, name, phone, email string, priority int) *Contact {
	t.Helper()
	c, err := f.svc.CreateContact(context.Background(), f.adminID, ContactInput{
		PatientID: f.patient.ID, Name: &name, Phone: &phone, Email: &email, Priority: &priority,
	})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	return c
}

// -- Contacts --

func TestService_CreateContact_NormalizesPhone(t *testing.T) {
	f := newFixture(false)
	c := f.addContact(t, " John Roe ", "(650) 253-0000", "John@Example.com", 1)
	if c.Phone != "+16502530000" {
		t.Errorf("expected E.164 phone, got %s", c.Phone)
	}
	if c.Name != "John Roe" || c.Email != "john@example.com" || !c.IsActive {
		t.Errorf("unexpected contact %+v", c)
	}
}

func TestService_CreateContact_Validation(t *testing.T) {
	f := newFixture(false)
	tests := []struct {
		name string
		in   ContactInput
	}{
		{"missing patient", ContactInput{Name: ptr("A"), Phone: ptr("(650) 253-0000")}},
		{"missing name", ContactInput{PatientID: f.patient.ID, Phone: ptr("(650) 253-0000")}},
		{"missing phone", ContactInput{PatientID: f.patient.ID, Name: ptr("A")}},
		{"invalid phone", ContactInput{PatientID: f.patient.ID, Name: ptr("A"), Phone: ptr("12345")}},
		{"invalid email", ContactInput{PatientID: f.patient.ID, Name: ptr("A"), Phone: ptr("(650) 253-0000"), Email: ptr("nope")}},
		{"bad priority", ContactInput{PatientID: f.patient.ID, Name: ptr("A"), Phone: ptr("(650) 253-0000"), Priority: ptr(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateContact(context.Background(), f.adminID, tt.in)
			if apperror.StatusOf(err) != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}
}

func TestService_Contacts_NotOwned(t *testing.T) {
	f := newFixture(false)
	c := f.addContact(t, "John", "(650) 253-0000", "", 1)
	stranger := uuid.New()

	if _, err := f.svc.CreateContact(context.Background(), stranger, ContactInput{
		PatientID: f.patient.ID, Name: ptr("X"), Phone: ptr("(650) 253-0000"),
	}); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("create: expected 404, got %v", err)
	}
	if _, err := f.svc.UpdateContact(context.Background(), stranger, c.ID, ContactInput{Name: ptr("X")}); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("update: expected 404, got %v", err)
	}
	if err := f.svc.DeleteContact(context.Background(), stranger, c.ID); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("delete: expected 404, got %v", err)
	}
	if _, err := f.svc.ListContacts(context.Background(), stranger, f.patient.ID); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("list: expected 404, got %v", err)
	}
}

func TestService_DeleteContact_IsSoft(t *testing.T) {
	f := newFixture(false)
	c := f.addContact(t, "John", "(650) 253-0000", "", 1)
	if err := f.svc.DeleteContact(context.Background(), f.adminID, c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, ok := f.repo.contacts[c.ID]
	if !ok || stored.IsActive {
		t.Error("expected the row to be kept and deactivated")
	}
	items, _ := f.svc.ListContacts(context.Background(), f.adminID, f.patient.ID)
	if len(items) != 0 {
		t.Errorf("expected no active contacts, got %d", len(items))
	}
	if err := f.svc.DeleteContact(context.Background(), f.adminID, c.ID); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %v", err)
	}
}

func TestService_UpdateContact(t *testing.T) {
	f := newFixture(false)
	c := f.addContact(t, "John", "(650) 253-0000", "", 2)
	updated, err := f.svc.UpdateContact(context.Background(), f.adminID, c.ID, ContactInput{
		Phone: ptr("+44 20 7031 3000"), Relationship: ptr("brother"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Phone != "+442070313000" || updated.Relationship != "brother" || updated.Priority != 2 {
		t.Errorf("unexpected contact %+v", updated)
	}
}

// -- Email alerts --

func TestService_SendAlert_BestEffort(t *testing.T) {
	f := newFixture(false)
	f.addContact(t, "John", "(650) 253-0000", "john@example.com", 1)
	f.addContact(t, "Mary", "(650) 253-0001", "mary@example.com", 2)
	f.addContact(t, "Phone Only", "(650) 253-0002", "", 3)
	f.email.FailFor = map[string]bool{"mary@example.com": true}

	a, err := f.svc.SendAlert(context.Background(), f.adminID, AlertInput{
		PatientID: f.patient.ID, Location: "5th Ave", Latitude: ptr(40.75), Longitude: ptr(-73.98),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.email.Calls()) != 2 {
		t.Errorf("expected 2 email attempts, got %d", len(f.email.Calls()))
	}
	if !a.SentToContacts || a.ContactsNotified != 1 || a.Status != StatusSent {
		t.Errorf("unexpected alert %+v", a)
	}
	if a.HospitalID != nil {
		t.Error("email alerts are not routed to a hospital")
	}
	if _, ok := f.repo.alerts[a.ID]; !ok {
		t.Error("expected alert to be logged")
	}
	for _, call := range f.email.Calls() {
		if !strings.Contains(call.Body, "Jane Roe") || !strings.Contains(call.Body, "maps.google.com") {
			t.Errorf("unexpected email body %q", call.Body)
		}
	}
}

func TestService_SendAlert_AllEmailsFail(t *testing.T) {
	f := newFixture(false)
	f.addContact(t, "John", "(650) 253-0000", "john@example.com", 1)
	f.email.ShouldFail = true

	a, err := f.svc.SendAlert(context.Background(), f.adminID, AlertInput{PatientID: f.patient.ID, Location: "Home"})
	if err != nil {
		t.Fatalf("expected email failures to be swallowed, got %v", err)
	}
	if a.SentToContacts || a.ContactsNotified != 0 {
		t.Errorf("unexpected alert %+v", a)
	}
}

func TestService_SendAlert_Validation(t *testing.T) {
	f := newFixture(false)
	tests := []struct {
		name string
		in   AlertInput
	}{
		{"missing location", AlertInput{PatientID: f.patient.ID}},
		{"latitude only", AlertInput{PatientID: f.patient.ID, Location: "x", Latitude: ptr(1.0)}},
		{"latitude out of range", AlertInput{PatientID: f.patient.ID, Location: "x", Latitude: ptr(91.0), Longitude: ptr(0.0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.SendAlert(context.Background(), f.adminID, tt.in); apperror.StatusOf(err) != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}
}

// -- SMS dispatch --

func TestService_Dispatch_Unconfigured(t *testing.T) {
	f := newFixture(false)
	f.addContact(t, "John", "(650) 253-0000", "", 1)
	_, err := f.svc.Dispatch(context.Background(), f.adminID, AlertInput{PatientID: f.patient.ID, Location: "x"})
	if apperror.StatusOf(err) != http.StatusServiceUnavailable || !errors.Is(err, notification.ErrSMSUnconfigured) {
		t.Errorf("expected 503, got %v", err)
	}
	if len(f.repo.alerts) != 0 {
		t.Error("expected no alert row")
	}
}

func TestService_Dispatch_RoutesToNearestHospital(t *testing.T) {
	f := newFixture(true)
	f.addContact(t, "John", "(650) 253-0000", "", 1)
	f.addContact(t, "Mary", "(650) 253-0001", "", 2)

	d, err := f.svc.Dispatch(context.Background(), f.adminID, AlertInput{
		PatientID: f.patient.ID, Location: "Jersey City", Message: "Chest pain",
		Latitude: ptr(40.7178), Longitude: ptr(-74.0431),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.NearestHospital == nil || d.NearestHospital.ID != f.manhattan.ID {
		t.Fatalf("expected Manhattan General, got %+v", d.NearestHospital)
	}
	if d.Alert.HospitalID == nil || *d.Alert.HospitalID != f.manhattan.ID || !d.Alert.SentToHospital {
		t.Errorf("expected alert routed to hospital, got %+v", d.Alert)
	}
	if d.ContactsNotified != 2 || len(f.sms.Calls()) != 2 {
		t.Errorf("expected 2 sms, got %d", len(f.sms.Calls()))
	}
	body := f.sms.Calls()[0].Body
	if !strings.Contains(body, "Manhattan General") || !strings.Contains(body, "Chest pain") {
		t.Errorf("unexpected sms body %q", body)
	}
}

func TestService_Dispatch_WithoutCoordinates(t *testing.T) {
	f := newFixture(true)
	f.addContact(t, "John", "(650) 253-0000", "", 1)
	d, err := f.svc.Dispatch(context.Background(), f.adminID, AlertInput{PatientID: f.patient.ID, Location: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.NearestHospital != nil || d.Alert.HospitalID != nil || d.Alert.SentToHospital {
		t.Errorf("expected no hospital routing, got %+v", d)
	}
}

func TestService_Dispatch_ProviderFailure(t *testing.T) {
	f := newFixture(true)
	f.addContact(t, "John", "(650) 253-0000", "", 1)
	f.sms.ShouldFail = true

	_, err := f.svc.Dispatch(context.Background(), f.adminID, AlertInput{PatientID: f.patient.ID, Location: "x"})
	if apperror.StatusOf(err) != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
	if len(f.repo.alerts) != 0 {
		t.Error("expected no alert row after provider failure")
	}
}

func TestService_Dispatch_NoContacts(t *testing.T) {
	f := newFixture(true)
	_, err := f.svc.Dispatch(context.Background(), f.adminID, AlertInput{PatientID: f.patient.ID, Location: "x"})
	if apperror.StatusOf(err) != http.StatusBadRequest || !errors.Is(err, ErrNoContacts) {
		t.Errorf("expected 400, got %v", err)
	}
}

// -- Hospital side --

func (f *fixture) routedAlert(t *testing.T, h *hospital.Hospital) *Alert {
	t.Helper()
	a := &Alert{PatientID: f.patient.ID, HospitalID: &h.ID, Status: StatusSent, Location: "x"}
	if err := f.repo.CreateAlert(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestService_HospitalAlerts(t *testing.T) {
	f := newFixture(true)
	f.routedAlert(t, f.manhattan)
	f.routedAlert(t, f.newark)

	items, err := f.svc.HospitalAlerts(context.Background(), f.manhattan.AdminID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || *items[0].HospitalID != f.manhattan.ID {
		t.Errorf("expected only Manhattan's alert, got %d", len(items))
	}

	items, err = f.svc.HospitalAlerts(context.Background(), uuid.New())
	if err != nil || len(items) != 0 {
		t.Errorf("expected empty list for admin without profile, got %v %v", items, err)
	}
}

func TestService_AlertLifecycle(t *testing.T) {
	f := newFixture(true)
	a := f.routedAlert(t, f.manhattan)
	ctx := context.Background()

	if _, err := f.svc.Acknowledge(ctx, f.newark.AdminID, a.ID); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 for another hospital, got %v", err)
	}
	if _, err := f.svc.Acknowledge(ctx, f.manhattan.AdminID, uuid.New()); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 for unknown alert, got %v", err)
	}

	got, err := f.svc.Acknowledge(ctx, f.manhattan.AdminID, a.ID)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if got.Status != StatusAcknowledged || got.AcknowledgedAt == nil {
		t.Errorf("unexpected alert %+v", got)
	}
	if _, err := f.svc.Acknowledge(ctx, f.manhattan.AdminID, a.ID); apperror.StatusOf(err) != http.StatusConflict {
		t.Errorf("expected 409 on repeated acknowledge, got %v", err)
	}

	got, err = f.svc.Resolve(ctx, f.manhattan.AdminID, a.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != StatusResolved || got.ResolvedAt == nil {
		t.Errorf("unexpected alert %+v", got)
	}
	if _, err := f.svc.Resolve(ctx, f.manhattan.AdminID, a.ID); apperror.StatusOf(err) != http.StatusConflict {
		t.Errorf("expected 409 on repeated resolve, got %v", err)
	}
}

func TestAlert_Transition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{StatusSent, StatusAcknowledged, true},
		{StatusSent, StatusResolved, true},
		{StatusAcknowledged, StatusResolved, true},
		{StatusAcknowledged, StatusAcknowledged, false},
		{StatusResolved, StatusAcknowledged, false},
		{StatusResolved, StatusResolved, false},
		{StatusSent, StatusSent, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			a := &Alert{Status: tt.from}
			err := a.transition(tt.to, time.Now())
			if tt.ok && err != nil {
				t.Errorf("expected transition to succeed, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}
