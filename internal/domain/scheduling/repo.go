package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrDoctorNotFound   = errors.New("doctor not found")
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	// FindByDoctorAndDate returns ErrScheduleNotFound when the doctor does
	// not work that day.
	FindByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Schedule, error)
	// ListByDoctor returns schedules on or after from, oldest first.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Schedule, int, error)
}
