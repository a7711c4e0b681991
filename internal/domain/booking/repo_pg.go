package booking

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/pkg/clock"
)

// ActiveSlotIndex is the partial unique index guarding (schedule, hour).
const ActiveSlotIndex = "ux_appointment_active_slot"

type appointmentRepoPG struct {
	pool *pgxpool.Pool
	// noCode is set once the schema is found to lack booking_code.
	noCode atomic.Bool
}

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// codeColumn returns the select expression for the booking code.
func (r *appointmentRepoPG) codeColumn() string {
	if r.noCode.Load() {
		return "NULL::text"
	}
	return "a.booking_code"
}

// withCode runs fn, retrying once without the booking_code column when the
// schema does not have it.
func (r *appointmentRepoPG) withCode(fn func(codeCol string) error) error {
	err := fn(r.codeColumn())
	if db.IsUndefinedColumn(err) && !r.noCode.Load() {
		r.noCode.Store(true)
		return fn(r.codeColumn())
	}
	return err
}

func (r *appointmentRepoPG) IsSlotTaken(ctx context.Context, scheduleID uuid.UUID, hour clock.TimeOfDay) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE schedule_id = $1 AND appoint_hour = $2 AND is_active
		)`, scheduleID, hour.PG()).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return taken, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Status = StatusScheduled
	a.IsActive = true
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, schedule_id, appoint_hour, status, symptom, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING created_at`,
		a.ID, a.PatientID, a.ScheduleID, a.Hour.PG(), string(a.Status), a.Symptom,
	).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err) {
		if name := db.ConstraintName(err); name == "" || name == ActiveSlotIndex {
			return ErrSlotTaken
		}
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) SetBookingCode(ctx context.Context, id uuid.UUID, code string) error {
	if r.noCode.Load() {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `UPDATE appointment SET booking_code = $2 WHERE id = $1`, id, code)
	if db.IsUndefinedColumn(err) {
		r.noCode.Store(true)
		return nil
	}
	if err != nil {
		return fmt.Errorf("set booking code: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET is_active = FALSE, status = $2
		WHERE id = $1 AND is_active`, id, string(StatusCancelled))
	if err != nil {
		return false, fmt.Errorf("cancel appointment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func detailQuery(codeCol, where string) string {
	return `
		SELECT a.id, a.patient_id, a.schedule_id, a.appoint_hour, a.status, a.symptom,
			a.is_active, ` + codeCol + `, a.created_at,
			p.full_name, p.email, s.doctor_id, d.full_name, s.work_date
		FROM appointment a
		JOIN patient p ON p.id = a.patient_id
		JOIN schedule s ON s.id = a.schedule_id
		JOIN doctor d ON d.id = s.doctor_id
		` + where
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var (
		d      AppointmentDetail
		hour   pgtype.Time
		date   pgtype.Date
		status string
	)
	err := row.Scan(&d.ID, &d.PatientID, &d.ScheduleID, &hour, &status, &d.Symptom,
		&d.IsActive, &d.BookingCode, &d.CreatedAt,
		&d.PatientName, &d.PatientEmail, &d.DoctorID, &d.DoctorName, &date)
	if err != nil {
		return nil, err
	}
	d.Hour = clock.FromPG(hour)
	d.Status = Status(status)
	d.WorkDate = date.Time
	return &d, nil
}

func (r *appointmentRepoPG) GetDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	var out *AppointmentDetail
	err := r.withCode(func(codeCol string) error {
		var err error
		out, err = scanDetail(r.conn(ctx).QueryRow(ctx, detailQuery(codeCol, `WHERE a.id = $1`), id))
		return err
	})
	if db.IsNoRows(err) {
		return nil, notFound("appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return out, nil
}

func (r *appointmentRepoPG) ListBusy(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]BusySlot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.full_name, p.phone, a.appoint_hour, a.status
		FROM appointment a
		JOIN schedule s ON s.id = a.schedule_id
		LEFT JOIN patient p ON p.id = a.patient_id
		WHERE s.doctor_id = $1 AND s.work_date = $2 AND a.is_active
		ORDER BY a.appoint_hour`,
		doctorID, pgtype.Date{Time: date, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("list busy slots: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BusySlot, error) {
		var (
			b      BusySlot
			name   *string
			hour   pgtype.Time
			status string
		)
		if err := row.Scan(&name, &b.PatientPhone, &hour, &status); err != nil {
			return b, err
		}
		b.PatientName = unknownPatient
		if name != nil && *name != "" {
			b.PatientName = *name
		}
		b.Hour = clock.FromPG(hour)
		b.Status = Status(status)
		return b, nil
	})
}

const unknownPatient = "Unknown"

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AppointmentDetail, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	var items []*AppointmentDetail
	err := r.withCode(func(codeCol string) error {
		rows, err := r.conn(ctx).Query(ctx,
			detailQuery(codeCol, `WHERE a.patient_id = $1 ORDER BY s.work_date DESC, a.appoint_hour DESC LIMIT $2 OFFSET $3`),
			patientID, limit, offset)
		if err != nil {
			return err
		}
		items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (*AppointmentDetail, error) {
			return scanDetail(row)
		})
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return items, total, nil
}
