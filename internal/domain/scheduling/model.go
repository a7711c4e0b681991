package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/pkg/clock"
)

// Doctor maps to the doctor table.
type Doctor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"fullName"`
	Specialty *string   `db:"specialty" json:"specialty,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Schedule is one doctor's working block on one date. DoctorName is read
// from the doctor table.
type Schedule struct {
	ID         uuid.UUID       `db:"id"`
	DoctorID   uuid.UUID       `db:"doctor_id"`
	DoctorName string          `db:"full_name"`
	WorkDate   time.Time       `db:"work_date"`
	StartTime  clock.TimeOfDay `db:"start_time"`
	EndTime    clock.TimeOfDay `db:"end_time"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Covers reports whether hour falls in [StartTime, EndTime).
func (s *Schedule) Covers(hour clock.TimeOfDay) bool {
	return hour.Within(s.StartTime, s.EndTime)
}

// Validate checks the window shape.
func (s *Schedule) Validate() error {
	if s.DoctorID == uuid.Nil {
		return fmt.Errorf("doctorId is required")
	}
	if s.WorkDate.IsZero() {
		return fmt.Errorf("workDate is required")
	}
	if !s.StartTime.Valid() || !s.EndTime.Valid() {
		return fmt.Errorf("startTime and endTime must be within the day")
	}
	if s.StartTime >= s.EndTime {
		return fmt.Errorf("startTime must be before endTime")
	}
	return nil
}

// ScheduleResponse is the JSON shape of a schedule.
type ScheduleResponse struct {
	ID         uuid.UUID       `json:"id"`
	DoctorID   uuid.UUID       `json:"doctorId"`
	DoctorName string          `json:"doctorName"`
	WorkDate   string          `json:"workDate"`
	StartTime  clock.TimeOfDay `json:"startTime"`
	EndTime    clock.TimeOfDay `json:"endTime"`
}

func (s *Schedule) ToResponse() ScheduleResponse {
	return ScheduleResponse{
		ID:         s.ID,
		DoctorID:   s.DoctorID,
		DoctorName: s.DoctorName,
		WorkDate:   s.WorkDate.Format(clock.DateLayout),
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
	}
}
