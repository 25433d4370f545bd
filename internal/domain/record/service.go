package record

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/blobstore"
	"github.com/medilocker/medilocker/internal/platform/validate"
	"github.com/medilocker/medilocker/pkg/pagination"
)

// Ownership fails with a 404 error unless patientID belongs to adminID.
type Ownership interface {
	EnsureOwned(ctx context.Context, adminID, patientID uuid.UUID) error
}

type Service struct {
	repo   Repository
	owner  Ownership
	store  blobstore.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, owner Ownership, store blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{repo: repo, owner: owner, store: store, logger: logger, now: time.Now}
}

func notFound() error { return apperror.Wrap(http.StatusNotFound, ErrNotFound) }

func (s *Service) List(ctx context.Context, adminID, patientID uuid.UUID, f Filter, p pagination.Params) ([]*MedicalRecord, int, error) {
	if err := s.owner.EnsureOwned(ctx, adminID, patientID); err != nil {
		return nil, 0, err
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, 0, apperror.BadRequest("endDate must not be before startDate")
	}
	items, total, err := s.repo.List(ctx, patientID, f, p.Limit, p.Offset)
	if items == nil {
		items = []*MedicalRecord{}
	}
	return items, total, err
}

// ListForPatient returns every record of a patient without an ownership
// check. Callers must authorise access themselves.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	items, err := s.repo.ListAll(ctx, patientID)
	if items == nil {
		items = []*MedicalRecord{}
	}
	return items, err
}

// Upload stores the file under records/<patient>/ and persists its
// metadata. The object is removed again when the row cannot be written.
func (s *Service) Upload(ctx context.Context, adminID, patientID uuid.UUID, meta Metadata, file *File) (*MedicalRecord, error) {
	if err := s.owner.EnsureOwned(ctx, adminID, patientID); err != nil {
		return nil, err
	}

	var v validate.Errors
	v.Required("title", meta.Title)
	if meta.Category == "" {
		meta.Category = "other"
	}
	v.OneOf("category", meta.Category, categories...)
	date := v.Date("recordDate", meta.RecordDate)
	if file == nil || file.Body == nil {
		v.Add("file", ErrFileMissing.Error())
	} else if err := blobstore.Validate(file.ContentType, file.Size); err != nil {
		v.Add("file", err.Error())
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if date == nil {
		today := s.now().UTC().Truncate(24 * time.Hour)
		date = &today
	}

	key := blobstore.RecordKey(patientID, file.Name, file.ContentType)
	url, err := s.store.Put(ctx, key, file.ContentType, file.Body, file.Size)
	if err != nil {
		return nil, apperror.Wrap(http.StatusBadGateway, fmt.Errorf("upload file: %w", err))
	}

	rec := &MedicalRecord{
		PatientID:     patientID,
		Category:      meta.Category,
		Title:         strings.TrimSpace(meta.Title),
		Description:   meta.Description,
		RecordDate:    *date,
		PhysicianName: meta.PhysicianName,
		FacilityName:  meta.FacilityName,
		FilePath:      url,
		FileType:      file.ContentType,
		FileSize:      file.Size,
		IsCritical:    meta.IsCritical,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", key).Msg("remove orphaned upload")
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, adminID, patientID, id uuid.UUID) (*MedicalRecord, error) {
	if err := s.owner.EnsureOwned(ctx, adminID, patientID); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, err
	}
	if rec.PatientID != patientID {
		return nil, notFound()
	}
	return rec, nil
}

func (s *Service) Update(ctx context.Context, adminID, patientID, id uuid.UUID, in UpdateInput) (*MedicalRecord, error) {
	var v validate.Errors
	if in.Title != nil {
		v.Required("title", *in.Title)
	}
	if in.Category != nil {
		v.Required("category", *in.Category)
		v.OneOf("category", *in.Category, categories...)
	}
	var date *time.Time
	if in.RecordDate != nil {
		date = v.Date("recordDate", *in.RecordDate)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	rec, err := s.Get(ctx, adminID, patientID, id)
	if err != nil {
		return nil, err
	}
	in.apply(rec, date)
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the stored object on a best-effort basis and always
// deletes the row.
func (s *Service) Delete(ctx context.Context, adminID, patientID, id uuid.UUID) error {
	rec, err := s.Get(ctx, adminID, patientID, id)
	if err != nil {
		return err
	}
	s.removeFile(ctx, rec)
	return s.repo.Delete(ctx, rec.ID)
}

func (s *Service) removeFile(ctx context.Context, rec *MedicalRecord) {
	if rec.FilePath == "" {
		return
	}
	log := s.logger.With().Str("record_id", rec.ID.String()).Str("file_path", rec.FilePath).Logger()
	key, err := s.store.KeyFromURL(rec.FilePath)
	if err != nil {
		log.Warn().Err(err).Msg("cannot derive storage key; file left in place")
		return
	}
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		log.Error().Err(err).Str("key", key).Msg("delete stored file")
	}
}

// Export renders the patient's record index as an .xlsx workbook.
func (s *Service) Export(ctx context.Context, adminID, patientID uuid.UUID) ([]byte, error) {
	if err := s.owner.EnsureOwned(ctx, adminID, patientID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListAll(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return buildWorkbook(items)
}
