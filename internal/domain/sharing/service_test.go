package sharing

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

	"github.com/medilocker/medilocker/internal/domain/account"
	"github.com/medilocker/medilocker/internal/domain/hospital"
	"github.com/medilocker/medilocker/internal/domain/patient"
	"github.com/medilocker/medilocker/internal/domain/record"
	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/db"
	"github.com/medilocker/medilocker/internal/platform/notification"
)

// -- Mock Repository --

type mockRepo struct {
	items    map[uuid.UUID]*Share
	patients map[uuid.UUID]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Share), patients: make(map[uuid.UUID]string)}
}

func (m *mockRepo) Create(_ context.Context, s *Share) error {
	s.ID = uuid.New()
	s.SharedOn = time.Now()
	s.CreatedAt = s.SharedOn
	s.UpdatedAt = s.SharedOn
	m.items[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Share, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Share, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(_ context.Context, s *Share) error {
	if _, ok := m.items[s.ID]; !ok {
		return ErrNotFound
	}
	s.UpdatedAt = time.Now()
	m.items[s.ID] = s
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Share, error) {
	var out []*Share
	for _, s := range m.items {
		if s.PatientID == patientID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SharedOn.After(out[j].SharedOn) })
	return out, nil
}

func (m *mockRepo) ListByHospital(_ context.Context, hospitalID uuid.UUID, status string) ([]*InboundShare, error) {
	var out []*InboundShare
	for _, s := range m.items {
		if s.HospitalID == nil || *s.HospitalID != hospitalID {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, &InboundShare{Share: s, PatientName: m.patients[s.PatientID]})
	}
	return out, nil
}

func (m *mockRepo) RecordAccess(_ context.Context, s *Share, at time.Time) error {
	stored, ok := m.items[s.ID]
	if !ok {
		return ErrNotFound
	}
	stored.RecordsAccessedCount++
	stored.LastAccessedAt = &at
	*s = *stored
	return nil
}

func (m *mockRepo) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, s := range m.items {
		if s.Status == StatusActive && s.ExpiresOn != nil && !s.ExpiresOn.After(now) {
			s.Status = StatusExpired
			n++
		}
	}
	return n, nil
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

func (f fakePatients) EnsureOwned(ctx context.Context, adminID, id uuid.UUID) error {
	_, err := f.Get(ctx, adminID, id)
	return err
}

type fakeHospitals struct {
	byAdmin map[uuid.UUID]*hospital.Hospital
}

func (f *fakeHospitals) EnsureProfile(_ context.Context, adminID uuid.UUID, name, email string) (*hospital.Hospital, error) {
	if h, ok := f.byAdmin[adminID]; ok {
		return h, nil
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	h := &hospital.Hospital{ID: uuid.New(), AdminID: adminID, Name: name, Email: email}
	f.byAdmin[adminID] = h
	return h, nil
}

func (f *fakeHospitals) ProfileForAdmin(_ context.Context, adminID uuid.UUID) (*hospital.Hospital, error) {
	h, ok := f.byAdmin[adminID]
	if !ok {
		return nil, apperror.Wrap(http.StatusNotFound, hospital.ErrNotFound)
	}
	return h, nil
}

type fakeProviders map[string]*account.Admin

func (f fakeProviders) FindActiveHospital(_ context.Context, email string) (*account.Admin, error) {
	a, ok := f[strings.ToLower(email)]
	if !ok || a.UserType != "hospital" || !a.IsActive() {
		return nil, account.ErrNotHospital
	}
	return a, nil
}

type fakeRecords map[uuid.UUID][]*record.MedicalRecord

func (f fakeRecords) ListForPatient(_ context.Context, patientID uuid.UUID) ([]*record.MedicalRecord, error) {
	return f[patientID], nil
}

type fixture struct {
	svc       *Service
	repo      *mockRepo
	hospitals *fakeHospitals
	email     *notification.MockEmailSender
	adminID   uuid.UUID
	patient   *patient.Patient
	provider  *account.Admin
	now       time.Time
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMockRepo(),
		hospitals: &fakeHospitals{byAdmin: make(map[uuid.UUID]*hospital.Hospital)},
		email:     &notification.MockEmailSender{FailError: "smtp down"},
		adminID:   uuid.New(),
		now:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.patient = &patient.Patient{ID: uuid.New(), AdminID: f.adminID, FullName: "Jane Roe"}
	f.repo.patients[f.patient.ID] = f.patient.FullName
	f.provider = &account.Admin{ID: uuid.New(), Email: "records@stmary.test", UserType: "hospital", AccountStatus: account.StatusActive}

	providers := fakeProviders{
		f.provider.Email:     f.provider,
		"jane@example.com":   {ID: uuid.New(), Email: "jane@example.com", UserType: "patient", AccountStatus: account.StatusActive},
		"closed@clinic.test": {ID: uuid.New(), Email: "closed@clinic.test", UserType: "hospital", AccountStatus: account.StatusSuspended},
	}
	records := fakeRecords{f.patient.ID: {{ID: uuid.New(), PatientID: f.patient.ID, Title: "Blood panel"}}}
	mailer := notification.NewNotifier(notification.NewTemplateEngine("MediLocker"), f.email, nil, zerolog.Nop())

	f.svc = NewService(f.repo, db.NoopTxRunner{}, fakePatients{f.patient.ID: f.patient}, f.hospitals,
		providers, records, mailer, zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) share(t *testing.T, in CreateInput) *Share {
	t.Helper()
	if in.ProviderName == "" {
		in.ProviderName = f.provider.Email
	}
	sh, err := f.svc.Create(context.Background(), f.adminID, f.patient.ID, in)
	if err != nil {
		t.Fatalf("create share: %v", err)
	}
	return sh
}

func (f *fixture) hospitalAdmin() uuid.UUID { return f.provider.ID }

// -- Create --

func TestService_Create(t *testing.T) {
	f := newFixture()
	sh := f.share(t, CreateInput{ProviderName: "Records@StMary.test", AccessLevel: "download", ExpiresOn: "2025-06-01"})

	if sh.Status != StatusPending || sh.AccessLevel != "download" || sh.ProviderType != "hospital" {
		t.Errorf("unexpected share %+v", sh)
	}
	if sh.ProviderName != "records@stmary.test" {
		t.Errorf("expected normalized provider name, got %s", sh.ProviderName)
	}
	h, ok := f.hospitals.byAdmin[f.provider.ID]
	if !ok {
		t.Fatal("expected hospital profile to be created lazily")
	}
	if sh.HospitalID == nil || *sh.HospitalID != h.ID {
		t.Error("expected share to point at the hospital profile")
	}
	calls := f.email.Calls()
	if len(calls) != 1 || calls[0].To != f.provider.Email || !strings.Contains(calls[0].Body, "Jane Roe") {
		t.Errorf("unexpected notification %+v", calls)
	}
}

func TestService_Create_ProviderMustBeActiveHospital(t *testing.T) {
	for _, email := range []string{"nobody@nowhere.test", "jane@example.com", "closed@clinic.test"} {
		t.Run(email, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Create(context.Background(), f.adminID, f.patient.ID, CreateInput{ProviderName: email})
			if apperror.StatusOf(err) != http.StatusForbidden || !errors.Is(err, ErrProviderNotFound) {
				t.Errorf("expected 403, got %v", err)
			}
			if len(f.repo.items) != 0 {
				t.Error("expected no share row")
			}
		})
	}
}

func TestService_Create_EmailFailureKeepsShare(t *testing.T) {
	f := newFixture()
	f.email.ShouldFail = true
	sh := f.share(t, CreateInput{})
	if _, ok := f.repo.items[sh.ID]; !ok {
		t.Error("expected share to be kept when the notification fails")
	}
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing provider", CreateInput{}},
		{"provider not an email", CreateInput{ProviderName: "St Mary"}},
		{"bad access level", CreateInput{ProviderName: f.provider.Email, AccessLevel: "admin"}},
		{"past expiry", CreateInput{ProviderName: f.provider.Email, ExpiresOn: "2024-01-01"}},
		{"bad expiry", CreateInput{ProviderName: f.provider.Email, ExpiresOn: "next week"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.adminID, f.patient.ID, tt.in)
			if apperror.StatusOf(err) != http.StatusBadRequest {
				t.Errorf("expected 400, got %v", err)
			}
		})
	}
}

func TestService_Create_NotOwned(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), uuid.New(), f.patient.ID, CreateInput{ProviderName: f.provider.Email})
	if apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

// -- Patient updates --

func TestService_Update(t *testing.T) {
	f := newFixture()
	sh := f.share(t, CreateInput{})
	level, notes := "full", "second opinion"

	got, err := f.svc.Update(context.Background(), f.adminID, f.patient.ID, sh.ID, UpdateInput{AccessLevel: &level, Notes: &notes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AccessLevel != "full" || got.Notes != notes || got.Status != StatusPending {
		t.Errorf("unexpected share %+v", got)
	}

	active := StatusActive
	if _, err := f.svc.Update(context.Background(), f.adminID, f.patient.ID, sh.ID, UpdateInput{Status: &active}); apperror.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("expected 400 when a patient activates a share, got %v", err)
	}

	revoked := StatusRevoked
	got, err = f.svc.Update(context.Background(), f.adminID, f.patient.ID, sh.ID, UpdateInput{Status: &revoked})
	if err != nil || got.Status != StatusRevoked {
		t.Errorf("expected revoked, got %+v %v", got, err)
	}
}

func TestService_Update_TerminalShareIsFrozen(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sh := f.share(t, CreateInput{})
	if _, err := f.svc.Revoke(ctx, f.adminID, f.patient.ID, sh.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	level, notes := "full", "reopened"
	_, err := f.svc.Update(ctx, f.adminID, f.patient.ID, sh.ID, UpdateInput{AccessLevel: &level, Notes: &notes})
	if apperror.StatusOf(err) != http.StatusConflict {
		t.Fatalf("expected 409 editing a revoked share, got %v", err)
	}
	stored, _ := f.repo.GetByID(ctx, sh.ID)
	if stored.AccessLevel == "full" || stored.Notes == notes {
		t.Errorf("revoked share was modified: %+v", stored)
	}
}

func TestService_Update_OtherPatient(t *testing.T) {
	f := newFixture()
	sh := f.share(t, CreateInput{})
	other := &patient.Patient{ID: uuid.New(), AdminID: f.adminID}
	f.svc.patients.(fakePatients)[other.ID] = other

	if _, err := f.svc.Revoke(context.Background(), f.adminID, other.ID, sh.ID); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 for a share under another patient, got %v", err)
	}
	if _, err := f.svc.Revoke(context.Background(), uuid.New(), f.patient.ID, sh.ID); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 for a stranger, got %v", err)
	}
}

func TestService_Revoke_ExcludedFromActiveStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.share(t, CreateInput{})
	b := f.share(t, CreateInput{})
	f.share(t, CreateInput{})

	for _, sh := range []*Share{a, b} {
		if _, err := f.svc.Accept(ctx, f.hospitalAdmin(), sh.ID); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	st, _ := f.svc.Stats(ctx, f.adminID, f.patient.ID)
	if st.Active != 2 || st.Total != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}

	got, err := f.svc.Revoke(ctx, f.adminID, f.patient.ID, a.ID)
	if err != nil || got.Status != StatusRevoked {
		t.Fatalf("revoke: %+v %v", got, err)
	}
	st, _ = f.svc.Stats(ctx, f.adminID, f.patient.ID)
	if st.Active != 1 || st.Total != 3 {
		t.Errorf("expected revoked share excluded from active count, got %+v", st)
	}

	if _, err := f.svc.Revoke(ctx, f.adminID, f.patient.ID, a.ID); apperror.StatusOf(err) != http.StatusConflict {
		t.Errorf("expected 409 on repeated revoke, got %v", err)
	}
}

func TestService_Stats_ExpiredNotActive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sh := f.share(t, CreateInput{ExpiresOn: "2025-03-02"})
	if _, err := f.svc.Accept(ctx, f.hospitalAdmin(), sh.ID); err != nil {
		t.Fatal(err)
	}
	sh.RecordsAccessedCount = 4

	st, _ := f.svc.Stats(ctx, f.adminID, f.patient.ID)
	if st.Active != 1 || st.RecordsAccessed != 4 {
		t.Errorf("unexpected stats %+v", st)
	}

	f.now = f.now.Add(48 * time.Hour)
	st, _ = f.svc.Stats(ctx, f.adminID, f.patient.ID)
	if st.Active != 0 || st.Total != 1 {
		t.Errorf("expected lapsed share not to count as active, got %+v", st)
	}
}

// -- Hospital side --

func TestService_HospitalTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sh := f.share(t, CreateInput{})

	if _, err := f.svc.Accept(ctx, uuid.New(), sh.ID); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404 for another hospital, got %v", err)
	}

	got, err := f.svc.Accept(ctx, f.hospitalAdmin(), sh.ID)
	if err != nil || got.Status != StatusActive {
		t.Fatalf("accept: %+v %v", got, err)
	}
	if _, err := f.svc.Reject(ctx, f.hospitalAdmin(), sh.ID); apperror.StatusOf(err) != http.StatusConflict {
		t.Errorf("expected 409 rejecting an active share, got %v", err)
	}
	got, err = f.svc.RevokeAsHospital(ctx, f.hospitalAdmin(), sh.ID)
	if err != nil || got.Status != StatusRevoked {
		t.Errorf("revoke: %+v %v", got, err)
	}

	other := f.share(t, CreateInput{})
	got, err = f.svc.Reject(ctx, f.hospitalAdmin(), other.ID)
	if err != nil || got.Status != StatusRejected {
		t.Errorf("reject: %+v %v", got, err)
	}
	if _, err := f.svc.Accept(ctx, f.hospitalAdmin(), other.ID); apperror.StatusOf(err) != http.StatusConflict {
		t.Errorf("expected 409 accepting a rejected share, got %v", err)
	}
}

func TestService_Inbound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.share(t, CreateInput{})
	f.share(t, CreateInput{})
	f.svc.Accept(ctx, f.hospitalAdmin(), a.ID)

	all, err := f.svc.Inbound(ctx, f.hospitalAdmin(), "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 inbound shares, got %d %v", len(all), err)
	}
	pending, _ := f.svc.Inbound(ctx, f.hospitalAdmin(), StatusPending)
	if len(pending) != 1 || pending[0].PatientName != "Jane Roe" {
		t.Errorf("unexpected pending shares %+v", pending)
	}
	if _, err := f.svc.Inbound(ctx, f.hospitalAdmin(), "approved"); apperror.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %v", err)
	}
	none, err := f.svc.Inbound(ctx, uuid.New(), "")
	if err != nil || len(none) != 0 {
		t.Errorf("expected no shares without a profile, got %v %v", none, err)
	}
}

func TestService_Records(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sh := f.share(t, CreateInput{ExpiresOn: "2025-04-01"})

	if _, err := f.svc.Records(ctx, f.hospitalAdmin(), sh.ID); apperror.StatusOf(err) != http.StatusForbidden {
		t.Errorf("expected 403 for a pending share, got %v", err)
	}

	f.svc.Accept(ctx, f.hospitalAdmin(), sh.ID)
	out, err := f.svc.Records(ctx, f.hospitalAdmin(), sh.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Records) != 1 || out.Share.RecordsAccessedCount != 1 || out.Share.LastAccessedAt == nil {
		t.Errorf("unexpected result %+v", out)
	}

	f.now = time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.Records(ctx, f.hospitalAdmin(), sh.ID); !errors.Is(err, ErrNotLive) {
		t.Errorf("expected ErrNotLive after expiry, got %v", err)
	}
}

func TestService_ExpireDue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	soon := f.share(t, CreateInput{ExpiresOn: "2025-03-05"})
	later := f.share(t, CreateInput{ExpiresOn: "2025-09-01"})
	pendingSoon := f.share(t, CreateInput{ExpiresOn: "2025-03-05"})
	f.svc.Accept(ctx, f.hospitalAdmin(), soon.ID)
	f.svc.Accept(ctx, f.hospitalAdmin(), later.ID)

	f.now = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	n, err := f.svc.ExpireDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 expired, got %d %v", n, err)
	}
	if f.repo.items[soon.ID].Status != StatusExpired {
		t.Error("expected lapsed active share to expire")
	}
	if f.repo.items[later.ID].Status != StatusActive || f.repo.items[pendingSoon.ID].Status != StatusPending {
		t.Error("expected other shares untouched")
	}
}

func TestService_RunSweeper_StopsOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
