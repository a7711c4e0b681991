package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/pkg/clock"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Appointment maps to the appointment table. At most one active row may
// exist per (ScheduleID, Hour).
type Appointment struct {
	ID          uuid.UUID       `db:"id"`
	PatientID   uuid.UUID       `db:"patient_id"`
	ScheduleID  uuid.UUID       `db:"schedule_id"`
	Hour        clock.TimeOfDay `db:"appoint_hour"`
	Status      Status          `db:"status"`
	Symptom     *string         `db:"symptom"`
	IsActive    bool            `db:"is_active"`
	BookingCode *string         `db:"booking_code"`
	CreatedAt   time.Time       `db:"created_at"`
}

// AppointmentDetail is an appointment joined with the names callers show.
type AppointmentDetail struct {
	Appointment
	PatientName  string
	PatientEmail *string
	DoctorID     uuid.UUID
	DoctorName   string
	WorkDate     time.Time
}

// BusySlot is one occupied hour of a doctor's day.
type BusySlot struct {
	PatientName  string          `json:"patientName"`
	PatientPhone *string         `json:"patientPhone"`
	Hour         clock.TimeOfDay `json:"appointHour"`
	Status       Status          `json:"status"`
}

// Request is the body of both booking endpoints.
type Request struct {
	FullName    string    `json:"fullName" validate:"required,max=100"`
	Phone       string    `json:"phone" validate:"required,mobile"`
	Email       string    `json:"email" validate:"required,mailbox"`
	Date        string    `json:"date" validate:"required"`
	DoctorID    uuid.UUID `json:"doctorId" validate:"required"`
	AppointHour string    `json:"appointHour" validate:"required"`
	Gender      *string   `json:"gender,omitempty" validate:"omitempty,oneof=Male Female"`
	DateOfBirth *string   `json:"dateOfBirth,omitempty"`
	Symptom     *string   `json:"symptom,omitempty" validate:"omitempty,max=500"`
}

// Confirmation is returned by a successful booking.
type Confirmation struct {
	AppointmentID   uuid.UUID       `json:"appointmentId"`
	AppointmentCode string          `json:"appointmentCode"`
	PatientID       uuid.UUID       `json:"patientId"`
	ScheduleID      uuid.UUID       `json:"scheduleId"`
	DoctorName      string          `json:"doctorName"`
	Date            string          `json:"date"`
	Hour            clock.TimeOfDay `json:"appointHour"`
}

// HistoryItem is one row of a patient's booking history.
type HistoryItem struct {
	AppointmentID uuid.UUID       `json:"appointmentId"`
	BookingCode   *string         `json:"bookingCode,omitempty"`
	DoctorID      uuid.UUID       `json:"doctorId"`
	DoctorName    string          `json:"doctorName"`
	Date          string          `json:"date"`
	Hour          clock.TimeOfDay `json:"appointHour"`
	Status        Status          `json:"status"`
	Active        bool            `json:"active"`
	Symptom       *string         `json:"symptom,omitempty"`
}

func (d *AppointmentDetail) ToHistoryItem() HistoryItem {
	return HistoryItem{
		AppointmentID: d.ID,
		BookingCode:   d.BookingCode,
		DoctorID:      d.DoctorID,
		DoctorName:    d.DoctorName,
		Date:          d.WorkDate.Format(clock.DateLayout),
		Hour:          d.Hour,
		Status:        d.Status,
		Active:        d.IsActive,
		Symptom:       d.Symptom,
	}
}
