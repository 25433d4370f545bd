package account

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

const cols = `id, email, password_hash, phone, user_type, account_status, email_verified,
	last_login, created_at, updated_at`

func scan(row pgx.Row) (*Admin, error) {
	var a Admin
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Phone, &a.UserType, &a.AccountStatus,
		&a.EmailVerified, &a.LastLogin, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Admin) error {
	a.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO admins (id, email, password_hash, phone, user_type, account_status, email_verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.Email, a.PasswordHash, a.Phone, a.UserType, a.AccountStatus, a.EmailVerified,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM admins WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	return scan(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM admins WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *repoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, `UPDATE admins SET last_login = $2, updated_at = NOW() WHERE id = $1`, id, at)
}

func (r *repoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.exec(ctx, `UPDATE admins SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *repoPG) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE admins SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
}
