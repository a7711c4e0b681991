package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/pkg/clock"
)

// -- Mock Repositories --

type mockDoctorRepo struct {
	docs map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{docs: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.docs[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (m *mockDoctorRepo) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	var result []*Doctor
	for _, d := range m.docs {
		result = append(result, d)
	}
	return result, len(result), nil
}

type mockScheduleRepo struct {
	scheds map[uuid.UUID]*Schedule
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{scheds: make(map[uuid.UUID]*Schedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, s *Schedule) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	m.scheds[s.ID] = s
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	s, ok := m.scheds[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return s, nil
}

func (m *mockScheduleRepo) FindByDoctorAndDate(_ context.Context, doctorID uuid.UUID, date time.Time) (*Schedule, error) {
	for _, s := range m.scheds {
		if s.DoctorID == doctorID && s.WorkDate.Equal(date) {
			return s, nil
		}
	}
	return nil, ErrScheduleNotFound
}

func (m *mockScheduleRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Schedule, int, error) {
	var result []*Schedule
	for _, s := range m.scheds {
		if s.DoctorID == doctorID && !s.WorkDate.Before(from) {
			result = append(result, s)
		}
	}
	return result, len(result), nil
}

func newTestService() *Service {
	return NewService(newMockDoctorRepo(), newMockScheduleRepo())
}

func mustDoctor(t *testing.T, svc *Service) *Doctor {
	t.Helper()
	d := &Doctor{FullName: "Dr. Tran Minh"}
	if err := svc.CreateDoctor(context.Background(), d); err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return d
}

func morning(doctorID uuid.UUID, date time.Time) *Schedule {
	return &Schedule{
		DoctorID:  doctorID,
		WorkDate:  date,
		StartTime: clock.NewTimeOfDay(8, 0, 0),
		EndTime:   clock.NewTimeOfDay(12, 0, 0),
	}
}

var workDay = time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)

// -- Doctor Tests --

func TestService_CreateDoctor_RequiresName(t *testing.T) {
	svc := newTestService()
	err := svc.CreateDoctor(context.Background(), &Doctor{FullName: "   "})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestService_ListDoctors(t *testing.T) {
	svc := newTestService()
	mustDoctor(t, svc)
	mustDoctor(t, svc)
	items, total, err := svc.ListDoctors(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 doctors, got %d", total)
	}
}

// -- Schedule Tests --

func TestService_CreateSchedule(t *testing.T) {
	svc := newTestService()
	doc := mustDoctor(t, svc)
	s := morning(doc.ID, workDay)
	if err := svc.CreateSchedule(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if s.DoctorName != doc.FullName {
		t.Errorf("expected doctor name %q, got %q", doc.FullName, s.DoctorName)
	}
}

func TestService_CreateSchedule_StartAfterEnd(t *testing.T) {
	svc := newTestService()
	doc := mustDoctor(t, svc)
	s := morning(doc.ID, workDay)
	s.StartTime, s.EndTime = s.EndTime, s.StartTime
	if err := svc.CreateSchedule(context.Background(), s); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestService_CreateSchedule_UnknownDoctor(t *testing.T) {
	svc := newTestService()
	err := svc.CreateSchedule(context.Background(), morning(uuid.New(), workDay))
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestService_CreateSchedule_OnePerDay(t *testing.T) {
	svc := newTestService()
	doc := mustDoctor(t, svc)
	if err := svc.CreateSchedule(context.Background(), morning(doc.ID, workDay)); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	err := svc.CreateSchedule(context.Background(), morning(doc.ID, workDay))
	if !errors.Is(err, ErrScheduleExists) {
		t.Fatalf("expected ErrScheduleExists, got %v", err)
	}
	if err := svc.CreateSchedule(context.Background(), morning(doc.ID, workDay.AddDate(0, 0, 1))); err != nil {
		t.Fatalf("next day should be allowed: %v", err)
	}
}

func TestService_FindSchedule(t *testing.T) {
	svc := newTestService()
	doc := mustDoctor(t, svc)
	s := morning(doc.ID, workDay)
	if err := svc.CreateSchedule(context.Background(), s); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.FindSchedule(context.Background(), doc.ID, workDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != s.ID {
		t.Errorf("expected schedule %s, got %s", s.ID, got.ID)
	}

	_, err = svc.FindSchedule(context.Background(), doc.ID, workDay.AddDate(0, 0, 3))
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestSchedule_Covers(t *testing.T) {
	s := morning(uuid.New(), workDay)
	tests := []struct {
		hour clock.TimeOfDay
		want bool
	}{
		{clock.NewTimeOfDay(7, 59, 0), false},
		{clock.NewTimeOfDay(8, 0, 0), true},
		{clock.NewTimeOfDay(11, 59, 59), true},
		{clock.NewTimeOfDay(12, 0, 0), false},
	}
	for _, tt := range tests {
		if got := s.Covers(tt.hour); got != tt.want {
			t.Errorf("Covers(%s) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestService_ListSchedules_FromDate(t *testing.T) {
	svc := newTestService()
	doc := mustDoctor(t, svc)
	for i := 0; i < 3; i++ {
		if err := svc.CreateSchedule(context.Background(), morning(doc.ID, workDay.AddDate(0, 0, i))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_, total, err := svc.ListSchedules(context.Background(), doc.ID, workDay.AddDate(0, 0, 1), 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 schedules from the second day, got %d", total)
	}
}
