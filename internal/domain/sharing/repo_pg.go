package sharing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilocker/medilocker/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `s.id, s.patient_id, s.hospital_id, s.contact_id, s.provider_name, s.provider_type,
	s.access_level, s.status, s.shared_on, s.expires_on, s.records_accessed_count, s.last_accessed_at,
	s.notes, s.created_at, s.updated_at`

func dest(s *Share) []interface{} {
	return []interface{}{&s.ID, &s.PatientID, &s.HospitalID, &s.ContactID, &s.ProviderName, &s.ProviderType,
		&s.AccessLevel, &s.Status, &s.SharedOn, &s.ExpiresOn, &s.RecordsAccessedCount, &s.LastAccessedAt,
		&s.Notes, &s.CreatedAt, &s.UpdatedAt}
}

func scan(row pgx.Row) (*Share, error) {
	var s Share
	err := row.Scan(dest(&s)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Share) error {
	s.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO shared_access (id, patient_id, hospital_id, contact_id, provider_name, provider_type,
			access_level, status, expires_on, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING shared_on, created_at, updated_at`,
		s.ID, s.PatientID, s.HospitalID, s.ContactID, s.ProviderName, s.ProviderType,
		s.AccessLevel, s.Status, s.ExpiresOn, s.Notes,
	).Scan(&s.SharedOn, &s.CreatedAt, &s.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Share, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM shared_access s WHERE s.id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Share, error) {
	query := `SELECT ` + cols + ` FROM shared_access s WHERE s.id = $1`
	if db.TxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *repoPG) Update(ctx context.Context, s *Share) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE shared_access SET access_level=$2, status=$3, expires_on=$4, notes=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.AccessLevel, s.Status, s.ExpiresOn, s.Notes,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Share, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+cols+` FROM shared_access s
		WHERE s.patient_id = $1
		ORDER BY s.shared_on DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Share
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID, status string) ([]*InboundShare, error) {
	query := `SELECT ` + cols + `, p.full_name
		FROM shared_access s
		JOIN patients p ON p.id = s.patient_id
		WHERE s.hospital_id = $1`
	args := []interface{}{hospitalID}
	if status != "" {
		query += ` AND s.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY s.shared_on DESC`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*InboundShare
	for rows.Next() {
		in := &InboundShare{Share: &Share{}}
		if err := rows.Scan(append(dest(in.Share), &in.PatientName)...); err != nil {
			return nil, err
		}
		items = append(items, in)
	}
	return items, rows.Err()
}

func (r *repoPG) RecordAccess(ctx context.Context, s *Share, at time.Time) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE shared_access
		SET records_accessed_count = records_accessed_count + 1, last_accessed_at = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING records_accessed_count, last_accessed_at, updated_at`,
		s.ID, at,
	).Scan(&s.RecordsAccessedCount, &s.LastAccessedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE shared_access SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND expires_on IS NOT NULL AND expires_on <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
