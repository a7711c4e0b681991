package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/booking/internal/platform/db"
)

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, user_id, full_name, phone, email, gender, date_of_birth, address, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var gender *string
	err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Phone, &p.Email, &gender,
		&p.DateOfBirth, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if gender != nil {
		g := Gender(*gender)
		p.Gender = &g
	}
	return &p, nil
}

func genderArg(g *Gender) *string {
	if g == nil {
		return nil
	}
	s := string(*g)
	return &s
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	id := uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, user_id, full_name, phone, email, gender, date_of_birth, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) WHERE user_id IS NOT NULL DO NOTHING
		RETURNING created_at, updated_at`,
		id, p.UserID, p.FullName, p.Phone, p.Email, genderArg(p.Gender), p.DateOfBirth, p.Address,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrPatientExists
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	p.ID = id
	return nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET user_id = $2, full_name = $3, phone = $4, email = $5,
			gender = $6, date_of_birth = $7, address = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.UserID, p.FullName, p.Phone, p.Email, genderArg(p.Gender), p.DateOfBirth, p.Address,
	).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) one(ctx context.Context, query string, args ...any) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, query, args...))
	if db.IsNoRows(err) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.one(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id)
}

func (r *patientRepoPG) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	return r.one(ctx, `SELECT `+patientCols+` FROM patient
		WHERE lower(email) = $1
		ORDER BY (user_id IS NULL), created_at
		LIMIT 1`, NormalizeEmail(email))
}

func (r *patientRepoPG) FindByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.one(ctx, `SELECT `+patientCols+` FROM patient WHERE user_id = $1`, userID)
}

func (r *patientRepoPG) MergeGuests(ctx context.Context, targetID uuid.UUID, email, backfillEmail string) (MergeResult, error) {
	var res MergeResult
	q := r.conn(ctx)
	email = NormalizeEmail(email)

	if email != "" {
		tag, err := q.Exec(ctx, `
			UPDATE appointment SET patient_id = $1
			WHERE patient_id IN (
				SELECT id FROM patient
				WHERE id <> $1 AND user_id IS NULL AND lower(email) = $2
			)`, targetID, email)
		if err != nil {
			return res, fmt.Errorf("reassign guest appointments: %w", err)
		}
		res.Appointments = tag.RowsAffected()

		tag, err = q.Exec(ctx, `
			DELETE FROM patient
			WHERE id <> $1 AND user_id IS NULL AND lower(email) = $2`, targetID, email)
		if err != nil {
			return res, fmt.Errorf("delete merged guests: %w", err)
		}
		res.Guests = tag.RowsAffected()
	}

	if backfill := NormalizeEmail(backfillEmail); backfill != "" {
		if _, err := q.Exec(ctx, `
			UPDATE patient SET email = $2, updated_at = NOW()
			WHERE id = $1 AND (email IS NULL OR btrim(email) = '')`, targetID, backfill); err != nil {
			return res, fmt.Errorf("backfill patient email: %w", err)
		}
	}
	return res, nil
}

// =========== User Directory ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserDirectory { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, email, phone, username, created_at`

func (r *userRepoPG) one(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	err := r.conn(ctx).QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.Phone, &u.Username, &u.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.one(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (r *userRepoPG) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.one(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = $1`, NormalizeEmail(email))
}

func (r *userRepoPG) Ensure(ctx context.Context, email, username string) (*User, error) {
	email = NormalizeEmail(email)
	if username == "" {
		username = email
	}
	return r.one(ctx, `
		INSERT INTO users (id, email, username) VALUES ($1, $2, $3)
		ON CONFLICT ((lower(email))) DO UPDATE SET email = EXCLUDED.email
		RETURNING `+userCols, uuid.New(), email, username)
}
