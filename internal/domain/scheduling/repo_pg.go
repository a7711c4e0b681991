package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/pkg/clock"
)

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (id, full_name, specialty) VALUES ($1, $2, $3)
		RETURNING created_at`,
		d.ID, d.FullName, d.Specialty).Scan(&d.CreatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, full_name, specialty, created_at FROM doctor WHERE id = $1`, id).
		Scan(&d.ID, &d.FullName, &d.Specialty, &d.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return &d, nil
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, full_name, specialty, created_at FROM doctor
		ORDER BY full_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Doctor, error) {
		var d Doctor
		err := row.Scan(&d.ID, &d.FullName, &d.Specialty, &d.CreatedAt)
		return &d, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan doctors: %w", err)
	}
	return items, total, nil
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const schedCols = `s.id, s.doctor_id, d.full_name, s.work_date, s.start_time, s.end_time, s.created_at`

const schedFrom = ` FROM schedule s JOIN doctor d ON d.id = s.doctor_id`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	var workDate pgtype.Date
	var start, end pgtype.Time
	if err := row.Scan(&s.ID, &s.DoctorID, &s.DoctorName, &workDate, &start, &end, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.WorkDate = clock.DateOf(workDate.Time)
	s.StartTime = clock.FromPG(start)
	s.EndTime = clock.FromPG(end)
	return &s, nil
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: clock.DateOf(t), Valid: true}
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule (id, doctor_id, work_date, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		s.ID, s.DoctorID, pgDate(s.WorkDate), s.StartTime.PG(), s.EndTime.PG()).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+schedCols+schedFrom+` WHERE s.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (r *scheduleRepoPG) FindByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Schedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+schedCols+schedFrom+`
		WHERE s.doctor_id = $1 AND s.work_date = $2
		ORDER BY s.created_at LIMIT 1`, doctorID, pgDate(date)))
	if db.IsNoRows(err) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	return s, nil
}

func (r *scheduleRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]*Schedule, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM schedule WHERE doctor_id = $1 AND work_date >= $2`,
		doctorID, pgDate(from)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+schedCols+schedFrom+`
		WHERE s.doctor_id = $1 AND s.work_date >= $2
		ORDER BY s.work_date, s.start_time LIMIT $3 OFFSET $4`,
		doctorID, pgDate(from), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var items []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan schedule: %w", err)
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
