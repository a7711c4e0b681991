package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/pkg/clock"
)

// defaultAgeYears sets the date of birth of patients created without one.
const defaultAgeYears = 20

// Resolver finds or creates the patient behind a booking.
type Resolver struct {
	patients PatientRepository
	users    UserDirectory
	tx       db.TxRunner
	calendar *clock.Calendar
}

func NewResolver(patients PatientRepository, users UserDirectory, tx db.TxRunner, calendar *clock.Calendar) *Resolver {
	return &Resolver{patients: patients, users: users, tx: tx, calendar: calendar}
}

// ResolveGuest looks the patient up by normalized email, creating a guest
// record when none exists. Blank name and phone on an existing record are
// filled from c; set values are never overwritten.
func (r *Resolver) ResolveGuest(ctx context.Context, c Contact) (*Patient, error) {
	email := NormalizeEmail(c.Email)
	if email == "" {
		return nil, fmt.Errorf("guest booking requires an email")
	}

	p, err := r.patients.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrPatientNotFound):
		p = r.newPatient(nil, email, c)
		if err := r.patients.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("create guest patient: %w", err)
		}
		return p, nil
	case err != nil:
		return nil, err
	}

	if patchContact(p, c, false) {
		if err := r.patients.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("update guest patient: %w", err)
		}
	}
	return p, nil
}

// ResolveUser returns the patient linked to userID, creating it from the
// user record when absent, then merges every guest record that shares the
// user's email into it. The whole resolution is one transaction.
func (r *Resolver) ResolveUser(ctx context.Context, userID uuid.UUID, c Contact) (*Patient, error) {
	var out *Patient
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := r.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		userEmail := NormalizeEmail(user.Email)

		p, created, err := r.userPatient(ctx, userID, userEmail, c)
		if err != nil {
			return err
		}
		if !created && patchContact(p, c, true) {
			if err := r.patients.Update(ctx, p); err != nil {
				return fmt.Errorf("update patient: %w", err)
			}
		}

		key := userEmail
		if key == "" {
			key = NormalizeEmail(p.EmailOrEmpty())
		}
		res, err := r.patients.MergeGuests(ctx, p.ID, key, userEmail)
		if err != nil {
			return err
		}
		if blank(p.Email) && userEmail != "" {
			p.Email = &userEmail
		}
		if res.Guests > 0 {
			zerolog.Ctx(ctx).Info().
				Str("patient_id", p.ID.String()).
				Int64("guests", res.Guests).
				Int64("appointments", res.Appointments).
				Msg("merged guest patients")
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// userPatient finds or creates the patient linked to userID. Two first
// requests for one user can both miss the lookup; the one whose insert loses
// re-reads the row the other committed.
func (r *Resolver) userPatient(ctx context.Context, userID uuid.UUID, userEmail string, c Contact) (*Patient, bool, error) {
	p, err := r.patients.FindByUserID(ctx, userID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, false, err
	}

	email := userEmail
	if email == "" {
		email = NormalizeEmail(c.Email)
	}
	p = r.newPatient(&userID, email, c)
	err = r.patients.Create(ctx, p)
	switch {
	case err == nil:
		return p, true, nil
	case errors.Is(err, ErrPatientExists):
		p, err = r.patients.FindByUserID(ctx, userID)
		if err != nil {
			return nil, false, fmt.Errorf("reload patient: %w", err)
		}
		return p, false, nil
	default:
		return nil, false, fmt.Errorf("create patient: %w", err)
	}
}

// Merge folds guest records sharing the user's email into the user's
// patient. It is safe to call repeatedly.
func (r *Resolver) Merge(ctx context.Context, userID uuid.UUID) (MergeResult, error) {
	var res MergeResult
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := r.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		p, err := r.patients.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		key := NormalizeEmail(user.Email)
		if key == "" {
			key = NormalizeEmail(p.EmailOrEmpty())
		}
		res, err = r.patients.MergeGuests(ctx, p.ID, key, user.Email)
		return err
	})
	return res, err
}

// Patient returns the patient linked to userID.
func (r *Resolver) Patient(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.patients.FindByUserID(ctx, userID)
}

func (r *Resolver) newPatient(userID *uuid.UUID, email string, c Contact) *Patient {
	p := &Patient{
		UserID:   userID,
		FullName: strings.TrimSpace(c.FullName),
		Phone:    strPtr(c.Phone),
		Email:    strPtr(email),
	}
	g := GenderMale
	if c.Gender != nil && c.Gender.Valid() {
		g = *c.Gender
	}
	p.Gender = &g

	dob := r.calendar.YearsBefore(defaultAgeYears)
	if c.DateOfBirth != nil {
		dob = clock.DateOf(*c.DateOfBirth)
	}
	p.DateOfBirth = &dob
	return p
}

// patchContact fills blank fields of p from c and reports whether anything
// changed. Gender and date of birth are only backfilled when demographics
// is set.
func patchContact(p *Patient, c Contact, demographics bool) bool {
	changed := false
	if name := strings.TrimSpace(c.FullName); strings.TrimSpace(p.FullName) == "" && name != "" {
		p.FullName = name
		changed = true
	}
	if blank(p.Phone) {
		if phone := strPtr(c.Phone); phone != nil {
			p.Phone = phone
			changed = true
		}
	}
	if !demographics {
		return changed
	}
	if p.Gender == nil && c.Gender != nil && c.Gender.Valid() {
		g := *c.Gender
		p.Gender = &g
		changed = true
	}
	if p.DateOfBirth == nil && c.DateOfBirth != nil {
		dob := clock.DateOf(*c.DateOfBirth)
		p.DateOfBirth = &dob
		changed = true
	}
	return changed
}
