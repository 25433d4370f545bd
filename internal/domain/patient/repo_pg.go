package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilocker/medilocker/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, admin_id, full_name, date_of_birth, gender, blood_type, height_cm, weight_kg,
	relationship, is_primary, phone, address, allergies, chronic_conditions, current_medications,
	profile_image_url, created_at, updated_at`

func scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.AdminID, &p.FullName, &p.DateOfBirth, &p.Gender, &p.BloodType,
		&p.HeightCm, &p.WeightKg, &p.Relationship, &p.IsPrimary, &p.Phone, &p.Address,
		&p.Allergies, &p.ChronicConditions, &p.CurrentMedications, &p.ProfileImageURL,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, admin_id, full_name, date_of_birth, gender, blood_type, height_cm, weight_kg,
			relationship, is_primary, phone, address, allergies, chronic_conditions, current_medications,
			profile_image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at`,
		p.ID, p.AdminID, p.FullName, p.DateOfBirth, p.Gender, p.BloodType, p.HeightCm, p.WeightKg,
		p.Relationship, p.IsPrimary, p.Phone, p.Address, nonNil(p.Allergies), nonNil(p.ChronicConditions),
		nonNil(p.CurrentMedications), p.ProfileImageURL,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET full_name=$2, date_of_birth=$3, gender=$4, blood_type=$5, height_cm=$6,
			weight_kg=$7, relationship=$8, is_primary=$9, phone=$10, address=$11, allergies=$12,
			chronic_conditions=$13, current_medications=$14, profile_image_url=$15, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FullName, p.DateOfBirth, p.Gender, p.BloodType, p.HeightCm,
		p.WeightKg, p.Relationship, p.IsPrimary, p.Phone, p.Address, nonNil(p.Allergies),
		nonNil(p.ChronicConditions), nonNil(p.CurrentMedications), p.ProfileImageURL,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByAdmin(ctx context.Context, adminID uuid.UUID) ([]*Patient, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+cols+` FROM patients WHERE admin_id = $1 ORDER BY is_primary DESC, created_at`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) LockAdmin(ctx context.Context, adminID uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `SELECT id FROM admins WHERE id = $1 FOR UPDATE`, adminID)
	return err
}

func (r *repoPG) ClearPrimary(ctx context.Context, adminID, keep uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patients SET is_primary = FALSE, updated_at = NOW()
		WHERE admin_id = $1 AND id <> $2 AND is_primary`, adminID, keep)
	return err
}

func (r *repoPG) GetPrimaryByAdminEmail(ctx context.Context, email string) (*Patient, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT p.`+prefixed+` FROM patients p
		JOIN admins a ON a.id = p.admin_id
		WHERE LOWER(a.email) = LOWER($1)
		ORDER BY p.is_primary DESC, p.created_at
		LIMIT 1`, email))
}

const prefixed = `id, p.admin_id, p.full_name, p.date_of_birth, p.gender, p.blood_type, p.height_cm,
	p.weight_kg, p.relationship, p.is_primary, p.phone, p.address, p.allergies, p.chronic_conditions,
	p.current_medications, p.profile_image_url, p.created_at, p.updated_at`

func (r *repoPG) ListActiveContacts(ctx context.Context, patientID uuid.UUID) ([]ContactSummary, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT name, relationship, phone FROM emergency_contacts
		WHERE patient_id = $1 AND is_active
		ORDER BY priority, created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ContactSummary
	for rows.Next() {
		var c ContactSummary
		if err := rows.Scan(&c.Name, &c.Relationship, &c.Phone); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
