// Package calendar provides a timezone-naive Date type that marshals as
// YYYY-MM-DD, plus working-day arithmetic used for estimate and end-date
// conversion. Working days are Monday through Friday.
package calendar

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const format = "2006-01-02"

// ErrInvalidRange is returned when an end date precedes a start date.
var ErrInvalidRange = errors.New("end date before start date")

// Date represents a calendar date without time or timezone.
type Date struct {
	time.Time
}

// New creates a Date from year, month, day.
func New(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns today's date.
func Today() Date {
	now := time.Now()
	return New(now.Year(), now.Month(), now.Day())
}

// Parse parses a YYYY-MM-DD string into a Date.
func Parse(s string) (Date, error) {
	t, err := time.Parse(format, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(format)
}

// AddDays returns the date n calendar days after d. n may be negative.
func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

// Before reports whether d is before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is after other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// IsWeekend reports whether d falls on a Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer so dates are stored as YYYY-MM-DD text.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = New(v.Year(), v.Month(), v.Day())
		return nil
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// WorkingDaysBetween counts the Mon-Fri days in the inclusive range
// [start, end]. It returns ErrInvalidRange when end precedes start.
func WorkingDaysBetween(start, end Date) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}

	count := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if !d.IsWeekend() {
			count++
		}
	}
	return count, nil
}

// AddWorkingDays returns the date reached by advancing n working days from
// start, skipping weekends. Each step lands on the next Mon-Fri day, so a raw
// advance onto a weekend rolls forward to Monday. n <= 0 returns start
// unchanged.
func AddWorkingDays(start Date, n int) Date {
	d := start
	for i := 0; i < n; i++ {
		d = d.AddDays(1)
		for d.IsWeekend() {
			d = d.AddDays(1)
		}
	}
	return d
}

// EndDateFor returns the inclusive end date of a span of estimate working
// days beginning at start. An estimate below one working day yields start
// itself. Fractional estimates round up to whole days.
func EndDateFor(start Date, estimate float64) Date {
	days := int(estimate)
	if float64(days) < estimate {
		days++
	}
	if days <= 1 {
		return start
	}
	return AddWorkingDays(start, days-1)
}
