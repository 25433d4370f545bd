package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilocker/medilocker/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, patient_id, category, title, description, record_date, physician_name, facility_name,
	file_path, file_type, file_size, is_critical, created_at, updated_at`

func scan(row pgx.Row) (*MedicalRecord, error) {
	var r MedicalRecord
	err := row.Scan(&r.ID, &r.PatientID, &r.Category, &r.Title, &r.Description, &r.RecordDate,
		&r.PhysicianName, &r.FacilityName, &r.FilePath, &r.FileType, &r.FileSize, &r.IsCritical,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &r, err
}

func (r *repoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, category, title, description, record_date,
			physician_name, facility_name, file_path, file_type, file_size, is_critical)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.Category, m.Title, m.Description, m.RecordDate,
		m.PhysicianName, m.FacilityName, m.FilePath, m.FileType, m.FileSize, m.IsCritical,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM medical_records WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *MedicalRecord) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE medical_records SET category=$2, title=$3, description=$4, record_date=$5,
			physician_name=$6, facility_name=$7, is_critical=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Category, m.Title, m.Description, m.RecordDate,
		m.PhysicianName, m.FacilityName, m.IsCritical,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, f Filter, limit, offset int) ([]*MedicalRecord, int, error) {
	where := ` WHERE patient_id = $1`
	args := []interface{}{patientID}
	idx := 2

	if f.StartDate != nil {
		where += fmt.Sprintf(` AND record_date >= $%d`, idx)
		args = append(args, *f.StartDate)
		idx++
	}
	if f.EndDate != nil {
		where += fmt.Sprintf(` AND record_date <= $%d`, idx)
		args = append(args, *f.EndDate)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (title ILIKE $%[1]d ESCAPE '\' OR description ILIKE $%[1]d ESCAPE '\' OR physician_name ILIKE $%[1]d ESCAPE '\' OR facility_name ILIKE $%[1]d ESCAPE '\')`, idx)
		args = append(args, db.ContainsPattern(f.Search))
		idx++
	}
	if f.IsCritical != nil {
		where += fmt.Sprintf(` AND is_critical = $%d`, idx)
		args = append(args, *f.IsCritical)
		idx++
	}
	if f.Category != "" {
		where += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, f.Category)
		idx++
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM medical_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + cols + ` FROM medical_records` + where +
		fmt.Sprintf(` ORDER BY record_date DESC, created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	items, err := r.list(ctx, query, args...)
	return items, total, err
}

func (r *repoPG) ListAll(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	return r.list(ctx, `SELECT `+cols+` FROM medical_records WHERE patient_id = $1
		ORDER BY record_date DESC, created_at DESC`, patientID)
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*MedicalRecord, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
