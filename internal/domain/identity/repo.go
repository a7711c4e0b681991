package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrPatientExists is returned by Create when the user already has a
	// patient record.
	ErrPatientExists = errors.New("patient already exists for user")
)

// MergeResult reports what a guest merge moved.
type MergeResult struct {
	Appointments int64
	Guests       int64
}

type PatientRepository interface {
	// Create inserts p. A user-linked p whose user already owns a patient is
	// not inserted and yields ErrPatientExists.
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// FindByEmail matches the normalized email. A user-linked patient wins
	// over guests; among guests the oldest wins.
	FindByEmail(ctx context.Context, email string) (*Patient, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	// MergeGuests repoints the appointments of every guest sharing email to
	// targetID, deletes those guests, then sets the target's email to
	// backfillEmail if it has none. Callers run it inside a transaction.
	MergeGuests(ctx context.Context, targetID uuid.UUID, email, backfillEmail string) (MergeResult, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Ensure returns the user with email, creating it if needed.
	Ensure(ctx context.Context, email, username string) (*User, error)
}
