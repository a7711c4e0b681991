// Package clock holds the calendar and time-of-day types shared by the
// scheduling and booking domains.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const DateLayout = "2006-01-02"

// DefaultZone is the clinic's local zone (Indochina time).
const DefaultZone = "Asia/Ho_Chi_Minh"

// TimeOfDay is a wall-clock time with second precision, stored as seconds
// since midnight.
type TimeOfDay int

const secondsPerDay = 24 * 60 * 60

// NewTimeOfDay builds a TimeOfDay from its components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] || len(p) > 2 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		vals[i] = n
	}
	return NewTimeOfDay(vals[0], vals[1], vals[2]), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Valid reports whether t falls within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t < secondsPerDay }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Short renders HH:MM, used in notifications.
func (t TimeOfDay) Short() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Within reports start <= t < end.
func (t TimeOfDay) Within(start, end TimeOfDay) bool {
	return t >= start && t < end
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// PG converts to the pgx representation of a TIME column.
func (t TimeOfDay) PG() pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Second/time.Microsecond), Valid: true}
}

// FromPG converts a scanned TIME column. Sub-second precision is dropped.
func FromPG(v pgtype.Time) TimeOfDay {
	if !v.Valid {
		return 0
	}
	return TimeOfDay(v.Microseconds / int64(time.Second/time.Microsecond))
}

// Calendar answers "what day is it at the clinic".
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar loads zone, falling back to the host's local zone when the
// name cannot be resolved.
func NewCalendar(zone string) *Calendar {
	loc, err := time.LoadLocation(zone)
	if err != nil || zone == "" {
		loc = time.Local
	}
	return &Calendar{loc: loc, now: time.Now}
}

// NewFixedCalendar returns a calendar whose clock always reads now.
func NewFixedCalendar(loc *time.Location, now time.Time) *Calendar {
	return &Calendar{loc: loc, now: func() time.Time { return now }}
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the current instant in the clinic zone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// Today returns the clinic-local calendar date as midnight UTC.
func (c *Calendar) Today() time.Time {
	return DateOf(c.Now())
}

// YearsBefore returns the date n years before today.
func (c *Calendar) YearsBefore(n int) time.Time {
	return c.Today().AddDate(-n, 0, 0)
}

// DateOf strips the clock from t, keeping its calendar date in t's zone.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}
