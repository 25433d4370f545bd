package emergency

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

// =========== Contacts ===========

const contactCols = `id, patient_id, name, relationship, phone, email, priority, is_active, created_at, updated_at`

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.PatientID, &c.Name, &c.Relationship, &c.Phone, &c.Email,
		&c.Priority, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	return &c, err
}

func (r *repoPG) CreateContact(ctx context.Context, c *Contact) error {
	c.ID = uuid.New()
	c.IsActive = true
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO emergency_contacts (id, patient_id, name, relationship, phone, email, priority, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.Name, c.Relationship, c.Phone, c.Email, c.Priority,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// GetContact ignores deactivated contacts.
func (r *repoPG) GetContact(ctx context.Context, id uuid.UUID) (*Contact, error) {
	return scanContact(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+contactCols+` FROM emergency_contacts WHERE id = $1 AND is_active`, id))
}

func (r *repoPG) UpdateContact(ctx context.Context, c *Contact) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE emergency_contacts SET name=$2, relationship=$3, phone=$4, email=$5, priority=$6, updated_at=NOW()
		WHERE id = $1 AND is_active
		RETURNING updated_at`,
		c.ID, c.Name, c.Relationship, c.Phone, c.Email, c.Priority,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrContactNotFound
	}
	return err
}

func (r *repoPG) DeactivateContact(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE emergency_contacts SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

func (r *repoPG) ListActiveContacts(ctx context.Context, patientID uuid.UUID) ([]*Contact, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+contactCols+` FROM emergency_contacts
		WHERE patient_id = $1 AND is_active
		ORDER BY priority ASC, created_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// =========== Alerts ===========

const alertCols = `a.id, a.patient_id, a.hospital_id, a.location, a.latitude, a.longitude, a.message, a.status,
	a.sent_to_hospital, a.sent_to_contacts, a.contacts_notified, a.acknowledged_at, a.resolved_at,
	a.created_at, a.updated_at`

func alertDest(a *Alert) []interface{} {
	return []interface{}{&a.ID, &a.PatientID, &a.HospitalID, &a.Location, &a.Latitude, &a.Longitude,
		&a.Message, &a.Status, &a.SentToHospital, &a.SentToContacts, &a.ContactsNotified,
		&a.AcknowledgedAt, &a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt}
}

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(alertDest(&a)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	return &a, err
}

func (r *repoPG) CreateAlert(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	if a.Status == "" {
		a.Status = StatusSent
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO emergency_alerts (id, patient_id, hospital_id, location, latitude, longitude, message, status,
			sent_to_hospital, sent_to_contacts, contacts_notified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.HospitalID, a.Location, a.Latitude, a.Longitude, a.Message, a.Status,
		a.SentToHospital, a.SentToContacts, a.ContactsNotified,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) ListAlertsByPatient(ctx context.Context, patientID uuid.UUID) ([]*Alert, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+alertCols+` FROM emergency_alerts a
		WHERE a.patient_id = $1
		ORDER BY a.created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) ListAlertsByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*HospitalAlert, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+alertCols+`, p.full_name, p.phone, p.blood_type
		FROM emergency_alerts a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.hospital_id = $1
		ORDER BY a.created_at DESC`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*HospitalAlert
	for rows.Next() {
		ha := &HospitalAlert{Alert: &Alert{}}
		dest := append(alertDest(ha.Alert), &ha.PatientName, &ha.PatientPhone, &ha.BloodType)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, ha)
	}
	return items, rows.Err()
}

func (r *repoPG) GetAlertForUpdate(ctx context.Context, id uuid.UUID) (*Alert, error) {
	query := `SELECT ` + alertCols + ` FROM emergency_alerts a WHERE a.id = $1`
	if db.TxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}
	return scanAlert(db.Conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *repoPG) UpdateAlertStatus(ctx context.Context, a *Alert) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE emergency_alerts SET status=$2, acknowledged_at=$3, resolved_at=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Status, a.AcknowledgedAt, a.ResolvedAt,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlertNotFound
	}
	return err
}
