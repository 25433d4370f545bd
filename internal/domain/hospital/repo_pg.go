package hospital

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

const cols = `id, admin_id, name, email, phone, address, city, state, latitude, longitude,
	type, rating, is_verified, emergency_services, created_at, updated_at`

func scan(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.AdminID, &h.Name, &h.Email, &h.Phone, &h.Address, &h.City, &h.State,
		&h.Latitude, &h.Longitude, &h.Type, &h.Rating, &h.IsVerified, &h.EmergencyServices,
		&h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &h, err
}

func (r *repoPG) CreateIfAbsent(ctx context.Context, h *Hospital) (*Hospital, error) {
	q := db.Conn(ctx, r.pool)
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	created, err := scan(q.QueryRow(ctx, `
		INSERT INTO hospitals (id, admin_id, name, email, phone, address, city, state, latitude, longitude,
			type, emergency_services)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (admin_id) DO NOTHING
		RETURNING `+cols,
		h.ID, h.AdminID, h.Name, h.Email, h.Phone, h.Address, h.City, h.State, h.Latitude, h.Longitude,
		h.Type, h.EmergencyServices))
	if errors.Is(err, ErrNotFound) {
		return r.GetByAdminID(ctx, h.AdminID)
	}
	return created, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM hospitals WHERE id = $1`, id))
}

func (r *repoPG) GetByAdminID(ctx context.Context, adminID uuid.UUID) (*Hospital, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM hospitals WHERE admin_id = $1`, adminID))
}

func (r *repoPG) Update(ctx context.Context, h *Hospital) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE hospitals SET name=$2, email=$3, phone=$4, address=$5, city=$6, state=$7,
			latitude=$8, longitude=$9, type=$10, emergency_services=$11, updated_at=NOW()
		WHERE id = $1`,
		h.ID, h.Name, h.Email, h.Phone, h.Address, h.City, h.State,
		h.Latitude, h.Longitude, h.Type, h.EmergencyServices)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, f Filter) ([]*Hospital, error) {
	query := `SELECT ` + cols + ` FROM hospitals WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.City != "" {
		query += fmt.Sprintf(` AND city ILIKE $%d ESCAPE '\'`, idx)
		args = append(args, db.ContainsPattern(f.City))
		idx++
	}
	if f.Type != "" {
		query += fmt.Sprintf(` AND type ILIKE $%d ESCAPE '\'`, idx)
		args = append(args, db.ContainsPattern(f.Type))
		idx++
	}
	if f.Search != "" {
		query += fmt.Sprintf(` AND (name ILIKE $%[1]d ESCAPE '\' OR address ILIKE $%[1]d ESCAPE '\' OR city ILIKE $%[1]d ESCAPE '\')`, idx)
		args = append(args, db.ContainsPattern(f.Search))
		idx++
	}
	if f.Verified != nil {
		query += fmt.Sprintf(` AND is_verified = $%d`, idx)
		args = append(args, *f.Verified)
	}
	query += ` ORDER BY name, id`

	return r.list(ctx, query, args...)
}

func (r *repoPG) ListVerifiedWithCoordinates(ctx context.Context) ([]*Hospital, error) {
	return r.list(ctx, `SELECT `+cols+` FROM hospitals
		WHERE is_verified AND latitude IS NOT NULL AND longitude IS NOT NULL`)
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Hospital, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Hospital
	for rows.Next() {
		h, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}
