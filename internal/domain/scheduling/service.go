package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrScheduleExists is returned when the doctor already works that date.
	ErrScheduleExists = errors.New("doctor already has a schedule on that date")
	// ErrInvalid wraps schedule and doctor validation failures.
	ErrInvalid = errors.New("invalid schedule")
)

type Service struct {
	doctors   DoctorRepository
	schedules ScheduleRepository
}

func NewService(doctors DoctorRepository, schedules ScheduleRepository) *Service {
	return &Service{doctors: doctors, schedules: schedules}
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.FullName = strings.TrimSpace(d.FullName)
	if d.FullName == "" {
		return fmt.Errorf("%w: fullName is required", ErrInvalid)
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// -- Schedule --

// FindSchedule is the lookup the booking flow depends on.
func (s *Service) FindSchedule(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Schedule, error) {
	return s.schedules.FindByDoctorAndDate(ctx, doctorID, date)
}

// CreateSchedule enforces one schedule per doctor per date.
func (s *Service) CreateSchedule(ctx context.Context, sched *Schedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	doc, err := s.doctors.GetByID(ctx, sched.DoctorID)
	if err != nil {
		return err
	}

	_, err = s.schedules.FindByDoctorAndDate(ctx, sched.DoctorID, sched.WorkDate)
	switch {
	case err == nil:
		return ErrScheduleExists
	case !errors.Is(err, ErrScheduleNotFound):
		return err
	}

	if err := s.schedules.Create(ctx, sched); err != nil {
		return err
	}
	sched.DoctorName = doc.FullName
	return nil
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.schedules.GetByID(ctx, id)
}

func (s *Service) ListSchedules(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Schedule, int, error) {
	return s.schedules.ListByDoctor(ctx, doctorID, from, limit, offset)
}
