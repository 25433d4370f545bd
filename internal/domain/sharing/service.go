package sharing

import (
	"context"
	"errors"
	"net/http"
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
	"github.com/medilocker/medilocker/internal/platform/validate"
)

// Patients resolves a patient owned by the caller, failing with 404 otherwise.
type Patients interface {
	Get(ctx context.Context, adminID, id uuid.UUID) (*patient.Patient, error)
}

type Hospitals interface {
	EnsureProfile(ctx context.Context, adminID uuid.UUID, name, email string) (*hospital.Hospital, error)
	ProfileForAdmin(ctx context.Context, adminID uuid.UUID) (*hospital.Hospital, error)
}

// Providers looks up the hospital account a share is addressed to. It
// returns account.ErrNotHospital when there is none.
type Providers interface {
	FindActiveHospital(ctx context.Context, email string) (*account.Admin, error)
}

type Records interface {
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*record.MedicalRecord, error)
}

type Mailer interface {
	EmailBestEffort(ctx context.Context, templateID, to string, data map[string]string)
}

type Service struct {
	repo      Repository
	tx        db.TxRunner
	patients  Patients
	hospitals Hospitals
	providers Providers
	records   Records
	mailer    Mailer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, patients Patients, hospitals Hospitals,
	providers Providers, records Records, mailer Mailer, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		patients:  patients,
		hospitals: hospitals,
		providers: providers,
		records:   records,
		mailer:    mailer,
		logger:    logger,
		now:       time.Now,
	}
}

func notFound() error { return apperror.Wrap(http.StatusNotFound, ErrNotFound) }

// -- Patient side --

func (s *Service) List(ctx context.Context, adminID, patientID uuid.UUID) ([]*Share, error) {
	if _, err := s.patients.Get(ctx, adminID, patientID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if items == nil {
		items = []*Share{}
	}
	return items, err
}

// Create shares a patient's records with the hospital registered under
// in.ProviderName. The share starts pending until the hospital accepts it.
func (s *Service) Create(ctx context.Context, adminID, patientID uuid.UUID, in CreateInput) (*Share, error) {
	in.ProviderName = validate.NormalizeEmail(in.ProviderName)
	if in.AccessLevel == "" {
		in.AccessLevel = "view"
	}
	if in.ProviderType == "" {
		in.ProviderType = defaultProviderType
	}
	var v validate.Errors
	v.Required("providerName", in.ProviderName)
	v.Email("providerName", in.ProviderName)
	v.OneOf("accessLevel", in.AccessLevel, accessLevels...)
	expires := s.expiry(&v, in.ExpiresOn)
	if err := v.Err(); err != nil {
		return nil, err
	}

	p, err := s.patients.Get(ctx, adminID, patientID)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.FindActiveHospital(ctx, in.ProviderName)
	if errors.Is(err, account.ErrNotHospital) {
		return nil, apperror.Wrap(http.StatusForbidden, ErrProviderNotFound)
	}
	if err != nil {
		return nil, err
	}
	h, err := s.hospitals.EnsureProfile(ctx, provider.ID, "", provider.Email)
	if err != nil {
		return nil, err
	}

	share := &Share{
		PatientID:    p.ID,
		HospitalID:   &h.ID,
		ProviderName: in.ProviderName,
		ProviderType: in.ProviderType,
		AccessLevel:  in.AccessLevel,
		Status:       StatusPending,
		ExpiresOn:    expires,
		Notes:        in.Notes,
	}
	if err := s.repo.Create(ctx, share); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("share_id", share.ID.String()).
		Str("patient_id", p.ID.String()).
		Str("hospital_id", h.ID.String()).
		Msg("shared access created")

	s.mailer.EmailBestEffort(ctx, notification.TemplateShareCreated, provider.Email, map[string]string{
		"provider_name": h.Name,
		"patient_name":  p.FullName,
		"hospital_name": h.Name,
		"access_level":  share.AccessLevel,
		"expiry_line":   expiryLine(expires),
	})
	return share, nil
}

func expiryLine(t *time.Time) string {
	if t == nil {
		return ""
	}
	return " until " + t.UTC().Format("2 Jan 2006")
}

// expiry parses an optional expiry, which must lie in the future.
func (s *Service) expiry(v *validate.Errors, raw string) *time.Time {
	t := v.Time("expiresOn", raw)
	if t != nil && !t.After(s.now()) {
		v.Add("expiresOn", "must be in the future")
		return nil
	}
	return t
}

// Update changes a share the caller owns. Requesting a status other than
// revoked is a validation error.
func (s *Service) Update(ctx context.Context, adminID, patientID, id uuid.UUID, in UpdateInput) (*Share, error) {
	var v validate.Errors
	if in.AccessLevel != nil {
		v.OneOf("accessLevel", *in.AccessLevel, accessLevels...)
		v.Required("accessLevel", *in.AccessLevel)
	}
	if in.Status != nil && *in.Status != StatusRevoked {
		v.Add("status", "only revoked may be requested")
	}
	var expires *time.Time
	if in.ExpiresOn != nil && *in.ExpiresOn != "" {
		expires = s.expiry(&v, *in.ExpiresOn)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	return s.patientTransaction(ctx, adminID, patientID, id, func(sh *Share) error {
		if terminal(sh.Status) {
			return apperror.Wrap(http.StatusConflict, ErrInvalidTransition)
		}
		if in.Status != nil {
			to, err := next(sh.Status, ActionRevoke)
			if err != nil {
				return apperror.Wrap(http.StatusConflict, err)
			}
			sh.Status = to
		}
		if in.AccessLevel != nil {
			sh.AccessLevel = *in.AccessLevel
		}
		if in.ExpiresOn != nil {
			sh.ExpiresOn = expires
		}
		if in.Notes != nil {
			sh.Notes = *in.Notes
		}
		return nil
	})
}

func (s *Service) Revoke(ctx context.Context, adminID, patientID, id uuid.UUID) (*Share, error) {
	return s.patientTransaction(ctx, adminID, patientID, id, func(sh *Share) error {
		to, err := next(sh.Status, ActionRevoke)
		if err != nil {
			return apperror.Wrap(http.StatusConflict, err)
		}
		sh.Status = to
		return nil
	})
}

// patientTransaction locks a share owned by the caller, applies fn and
// saves the result.
func (s *Service) patientTransaction(ctx context.Context, adminID, patientID, id uuid.UUID, fn func(*Share) error) (*Share, error) {
	if _, err := s.patients.Get(ctx, adminID, patientID); err != nil {
		return nil, err
	}
	var out *Share
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		sh, err := s.repo.GetForUpdate(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return notFound()
		}
		if err != nil {
			return err
		}
		if sh.PatientID != patientID {
			return notFound()
		}
		if err := fn(sh); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, sh); err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context, adminID, patientID uuid.UUID) (*Stats, error) {
	items, err := s.List(ctx, adminID, patientID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	st := &Stats{Total: len(items)}
	for _, sh := range items {
		if sh.IsLive(now) {
			st.Active++
		}
		st.RecordsAccessed += sh.RecordsAccessedCount
	}
	return st, nil
}

// -- Hospital side --

// Inbound lists shares addressed to the caller's hospital, optionally
// filtered by status.
func (s *Service) Inbound(ctx context.Context, adminID uuid.UUID, status string) ([]*InboundShare, error) {
	var v validate.Errors
	v.OneOf("status", status, statuses...)
	if err := v.Err(); err != nil {
		return nil, err
	}
	h, err := s.hospitals.ProfileForAdmin(ctx, adminID)
	if errors.Is(err, hospital.ErrNotFound) {
		return []*InboundShare{}, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListByHospital(ctx, h.ID, status)
	if items == nil {
		items = []*InboundShare{}
	}
	return items, err
}

func (s *Service) Accept(ctx context.Context, adminID, id uuid.UUID) (*Share, error) {
	return s.hospitalTransition(ctx, adminID, id, ActionAccept)
}

func (s *Service) Reject(ctx context.Context, adminID, id uuid.UUID) (*Share, error) {
	return s.hospitalTransition(ctx, adminID, id, ActionReject)
}

func (s *Service) RevokeAsHospital(ctx context.Context, adminID, id uuid.UUID) (*Share, error) {
	return s.hospitalTransition(ctx, adminID, id, ActionRevoke)
}

// inboundShare loads a share addressed to the caller's hospital.
func (s *Service) inboundShare(ctx context.Context, adminID, id uuid.UUID, load func(context.Context, uuid.UUID) (*Share, error)) (*Share, error) {
	h, err := s.hospitals.ProfileForAdmin(ctx, adminID)
	if errors.Is(err, hospital.ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, err
	}
	sh, err := load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, err
	}
	if sh.HospitalID == nil || *sh.HospitalID != h.ID {
		return nil, notFound()
	}
	return sh, nil
}

func (s *Service) hospitalTransition(ctx context.Context, adminID, id uuid.UUID, action string) (*Share, error) {
	var out *Share
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		sh, err := s.inboundShare(ctx, adminID, id, s.repo.GetForUpdate)
		if err != nil {
			return err
		}
		to, err := next(sh.Status, action)
		if err != nil {
			return apperror.Wrap(http.StatusConflict, err)
		}
		sh.Status = to
		if err := s.repo.Update(ctx, sh); err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("share_id", id.String()).
		Str("action", action).
		Str("status", out.Status).
		Msg("shared access transitioned")
	return out, nil
}

// Records returns the patient's records for a live share and counts the
// access.
func (s *Service) Records(ctx context.Context, adminID, id uuid.UUID) (*SharedRecords, error) {
	sh, err := s.inboundShare(ctx, adminID, id, s.repo.GetByID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !sh.IsLive(now) {
		return nil, apperror.Wrap(http.StatusForbidden, ErrNotLive)
	}
	items, err := s.records.ListForPatient(ctx, sh.PatientID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RecordAccess(ctx, sh, now); err != nil {
		return nil, err
	}
	return &SharedRecords{Share: sh, Records: items}, nil
}

// -- Expiry --

// ExpireDue marks every active share past its expiry as expired.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireDue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("expired", n).Msg("expired shared access")
	}
	return n, nil
}

// RunSweeper calls ExpireDue every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireDue(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("share expiry sweep failed")
			}
		}
	}
}
