package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/pkg/clock"
)

type AppointmentRepository interface {
	// IsSlotTaken reports whether an active appointment holds the slot. It
	// is advisory; Create is the authority.
	IsSlotTaken(ctx context.Context, scheduleID uuid.UUID, hour clock.TimeOfDay) (bool, error)
	// Create inserts a Scheduled, active appointment. A collision on the
	// active slot returns ErrSlotTaken.
	Create(ctx context.Context, a *Appointment) error
	// SetBookingCode stores code when the schema has the column.
	SetBookingCode(ctx context.Context, id uuid.UUID, code string) error
	// SoftDelete cancels an active appointment and reports whether one was
	// found.
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListBusy(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]BusySlot, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AppointmentDetail, int, error)
}
