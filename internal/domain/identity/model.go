package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Patient maps to the patient table. A nil UserID marks a guest created
// from an anonymous booking.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      *uuid.UUID `db:"user_id" json:"userId,omitempty"`
	FullName    string     `db:"full_name" json:"fullName"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Gender      *Gender    `db:"gender" json:"gender,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

func (p *Patient) IsGuest() bool { return p.UserID == nil }

// EmailOrEmpty returns the stored email, or "".
func (p *Patient) EmailOrEmpty() string {
	if p.Email == nil {
		return ""
	}
	return *p.Email
}

// User is read-only reference data owned by the account service.
type User struct {
	ID        uuid.UUID `db:"id"`
	Email     string    `db:"email"`
	Phone     *string   `db:"phone"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

// Contact is the identity information carried by a booking request.
type Contact struct {
	FullName    string
	Phone       string
	Email       string
	Gender      *Gender
	DateOfBirth *time.Time
}

// NormalizeEmail trims and lowercases an address. It is the only key used
// to match guest records.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func strPtr(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
