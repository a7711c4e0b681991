package booking

import (
	"errors"
	"fmt"
)

// Error kinds. Anything that does not match one of them is internal.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")

	// ErrUnauthorized marks a signed-in caller whose account no longer
	// exists.
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrSlotTaken is raised by the appointment store when the active-slot
// unique index rejects an insert.
var ErrSlotTaken = &Error{Kind: ErrConflict, Reason: "slot already taken, please choose another hour"}

// Error carries a kind and a message meant for the caller.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

func validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Reason: fmt.Sprintf(format, args...)}
}

func notFound(reason string) error {
	return &Error{Kind: ErrNotFound, Reason: reason}
}

func unauthorized(reason string) error {
	return &Error{Kind: ErrUnauthorized, Reason: reason}
}

// Reason returns the caller-facing message of err, or "" when err is
// internal.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Outcome labels err for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
