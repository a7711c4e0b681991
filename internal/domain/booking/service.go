package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/domain/scheduling"
	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/internal/platform/notification"
	"github.com/clinic/booking/internal/platform/validator"
	"github.com/clinic/booking/pkg/clock"
)

// ScheduleFinder looks up a doctor's working window for a date.
type ScheduleFinder interface {
	FindSchedule(ctx context.Context, doctorID uuid.UUID, date time.Time) (*scheduling.Schedule, error)
}

// PatientResolver finds or creates the patient behind a booking.
type PatientResolver interface {
	ResolveGuest(ctx context.Context, c identity.Contact) (*identity.Patient, error)
	ResolveUser(ctx context.Context, userID uuid.UUID, c identity.Contact) (*identity.Patient, error)
	Patient(ctx context.Context, userID uuid.UUID) (*identity.Patient, error)
}

// Notifier queues an email without waiting for delivery.
type Notifier interface {
	SendAsync(to, templateID string, data map[string]string) bool
}

// OutcomeRecorder counts results by label.
type OutcomeRecorder interface {
	Inc(metric, label string)
}

// StructValidator checks request struct tags.
type StructValidator interface {
	Validate(i interface{}) error
}

type Deps struct {
	Schedules    ScheduleFinder
	Patients     PatientResolver
	Appointments AppointmentRepository
	Tx           db.TxRunner
	Calendar     *clock.Calendar
	Validator    StructValidator
	Notifier     Notifier
	Codes        CodeGenerator
	Metrics      OutcomeRecorder
	Logger       zerolog.Logger
}

type Service struct {
	schedules ScheduleFinder
	patients  PatientResolver
	appts     AppointmentRepository
	tx        db.TxRunner
	calendar  *clock.Calendar
	validate  StructValidator
	notifier  Notifier
	codes     CodeGenerator
	metrics   OutcomeRecorder
	logger    zerolog.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		schedules: d.Schedules,
		patients:  d.Patients,
		appts:     d.Appointments,
		tx:        d.Tx,
		calendar:  d.Calendar,
		validate:  d.Validator,
		notifier:  d.Notifier,
		codes:     d.Codes,
		metrics:   d.Metrics,
		logger:    d.Logger.With().Str("component", "booking").Logger(),
	}
	if s.validate == nil {
		s.validate = validator.New()
	}
	if s.codes == nil {
		s.codes = RandomCodes(nil)
	}
	if s.calendar == nil {
		s.calendar = clock.NewCalendar(clock.DefaultZone)
	}
	return s
}

// slotRequest is a Request after parsing.
type slotRequest struct {
	date    time.Time
	hour    clock.TimeOfDay
	contact identity.Contact
	symptom *string
}

// parse runs every input rule. It performs no I/O.
func (s *Service) parse(req Request) (*slotRequest, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validate.Validate(&req); err != nil {
		var fe *validator.FieldError
		if errors.As(err, &fe) {
			return nil, validationf("%s", fe.Error())
		}
		return nil, validationf("invalid request: %v", err)
	}

	today := s.calendar.Today()
	date, err := clock.ParseDate(req.Date)
	if err != nil {
		return nil, validationf("date: %v", err)
	}
	if date.Before(today) {
		return nil, validationf("date %s is in the past", req.Date)
	}

	hour, err := clock.ParseTimeOfDay(req.AppointHour)
	if err != nil {
		return nil, validationf("appointHour: %v", err)
	}

	out := &slotRequest{
		date: date,
		hour: hour,
		contact: identity.Contact{
			FullName: req.FullName,
			Phone:    req.Phone,
			Email:    req.Email,
		},
	}
	if req.Gender != nil {
		g := identity.Gender(*req.Gender)
		out.contact.Gender = &g
	}
	if req.DateOfBirth != nil && strings.TrimSpace(*req.DateOfBirth) != "" {
		dob, err := clock.ParseDate(*req.DateOfBirth)
		if err != nil {
			return nil, validationf("dateOfBirth: %v", err)
		}
		if dob.After(today) {
			return nil, validationf("dateOfBirth must not be in the future")
		}
		out.contact.DateOfBirth = &dob
	}
	if req.Symptom != nil {
		if sym := strings.TrimSpace(*req.Symptom); sym != "" {
			out.symptom = &sym
		}
	}
	return out, nil
}

// Book reserves a slot. A nil userID books as a guest keyed by email;
// otherwise the user's patient record is used and guest history sharing its
// email is merged into it.
func (s *Service) Book(ctx context.Context, req Request, userID *uuid.UUID) (*Confirmation, error) {
	conf, err := s.book(ctx, req, userID)
	s.record(MetricBookingAttempts, err)
	return conf, err
}

func (s *Service) book(ctx context.Context, req Request, userID *uuid.UUID) (*Confirmation, error) {
	in, err := s.parse(req)
	if err != nil {
		return nil, err
	}

	sched, err := s.schedules.FindSchedule(ctx, req.DoctorID, in.date)
	if errors.Is(err, scheduling.ErrScheduleNotFound) {
		return nil, validationf("doctor has no working schedule on %s", in.date.Format(clock.DateLayout))
	}
	if err != nil {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	if !sched.Covers(in.hour) {
		return nil, validationf("hour %s is outside the working window %s-%s",
			in.hour.Short(), sched.StartTime.Short(), sched.EndTime.Short())
	}

	taken, err := s.appts.IsSlotTaken(ctx, sched.ID, in.hour)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	var (
		patient *identity.Patient
		appt    *Appointment
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if userID != nil {
			patient, err = s.patients.ResolveUser(ctx, *userID, in.contact)
		} else {
			patient, err = s.patients.ResolveGuest(ctx, in.contact)
		}
		if errors.Is(err, identity.ErrUserNotFound) {
			return unauthorized("user account not found")
		}
		if err != nil {
			return fmt.Errorf("resolve patient: %w", err)
		}

		appt = &Appointment{
			PatientID:  patient.ID,
			ScheduleID: sched.ID,
			Hour:       in.hour,
			Symptom:    in.symptom,
		}
		return s.appts.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	code := s.stampCode(ctx, appt.ID, in.date)

	conf := &Confirmation{
		AppointmentID:   appt.ID,
		AppointmentCode: code,
		PatientID:       patient.ID,
		ScheduleID:      sched.ID,
		DoctorName:      sched.DoctorName,
		Date:            in.date.Format(clock.DateLayout),
		Hour:            in.hour,
	}

	s.notify(notification.TemplateBookingConfirmation, contactEmail(patient, in.contact.Email), map[string]string{
		"patient_name": patient.FullName,
		"doctor_name":  sched.DoctorName,
		"date":         conf.Date,
		"hour":         in.hour.Short(),
		"code":         code,
	})

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("schedule_id", sched.ID.String()).
		Str("patient_id", patient.ID.String()).
		Bool("authenticated", userID != nil).
		Msg("appointment booked")
	return conf, nil
}

// stampCode generates and stores a booking code. Failures are logged and
// the booking stands without one being persisted.
func (s *Service) stampCode(ctx context.Context, id uuid.UUID, date time.Time) string {
	code, err := s.codes(date)
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", id.String()).Msg("generate booking code")
		return ""
	}
	if err := s.appts.SetBookingCode(ctx, id, code); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", id.String()).Msg("store booking code")
	}
	return code
}

// Counter names reported through OutcomeRecorder.
const (
	MetricBookingAttempts = "booking_attempts_total"
	MetricCancellations   = "booking_cancellations_total"
)

func (s *Service) record(metric string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Inc(metric, Outcome(err))
}

func (s *Service) notify(templateID, to string, data map[string]string) {
	if s.notifier == nil || to == "" {
		return
	}
	s.notifier.SendAsync(to, templateID, data)
}

func contactEmail(p *identity.Patient, fallback string) string {
	if e := p.EmailOrEmpty(); e != "" {
		return e
	}
	return identity.NormalizeEmail(fallback)
}

// Cancel soft-deletes an active appointment. Appointments that are missing
// or already cancelled report ErrNotFound.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	err := s.cancel(ctx, id)
	s.record(MetricCancellations, err)
	return err
}

func (s *Service) cancel(ctx context.Context, id uuid.UUID) error {
	detail, err := s.appts.GetDetail(ctx, id)
	if err != nil {
		return err
	}
	found, err := s.appts.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return notFound("appointment not found")
	}

	code := ""
	if detail.BookingCode != nil {
		code = *detail.BookingCode
	}
	if detail.PatientEmail != nil {
		s.notify(notification.TemplateBookingCancelled, *detail.PatientEmail, map[string]string{
			"patient_name": detail.PatientName,
			"doctor_name":  detail.DoctorName,
			"date":         detail.WorkDate.Format(clock.DateLayout),
			"hour":         detail.Hour.Short(),
			"code":         code,
		})
	}
	s.logger.Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	return nil
}

// ListBusySlots returns the active appointments of a doctor's day.
func (s *Service) ListBusySlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]BusySlot, error) {
	slots, err := s.appts.ListBusy(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []BusySlot{}
	}
	return slots, nil
}

// ListForUser returns the booking history of the user's patient record,
// cancelled appointments included.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]HistoryItem, int, error) {
	p, err := s.patients.Patient(ctx, userID)
	if errors.Is(err, identity.ErrPatientNotFound) {
		return []HistoryItem{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	details, total, err := s.appts.ListByPatient(ctx, p.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]HistoryItem, 0, len(details))
	for _, d := range details {
		items = append(items, d.ToHistoryItem())
	}
	return items, total, nil
}
