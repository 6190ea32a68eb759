// Package core holds the domain model and the pure pieces of the budget
// engine: period resolution, range overlap and bucket classification.
package core

import (
	"fmt"
	"time"
)

// Date is a calendar date with no meaningful time-of-day component.
// It is anchored at midday UTC so that converting to and from instants
// in nearby timezones can never drift across a day boundary.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 12, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar date (in UTC).
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// AddDays returns the date n calendar days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// StartOfDay returns the first instant of the calendar day in UTC.
// The zero Date maps to the zero instant, which stores read as unbounded.
func (d Date) StartOfDay() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of the calendar day in
// UTC, for use as the upper bound of a closed instant interval.
func (d Date) EndOfDay() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

// Range is a closed interval of calendar dates.
type Range struct {
	Start Date
	End   Date
}

// EffectiveEnd resolves a budget's end date. An explicit end date is
// returned unchanged. Otherwise a weekly period ends six days after the
// start and a monthly period ends on the last day of the start's month.
func EffectiveEnd(period Period, start Date, end Date) Date {
	if !end.IsZero() {
		return end
	}
	if period == Weekly {
		return start.AddDays(6)
	}
	// Last calendar day of the start's month: day zero of the next month.
	return NewDate(start.Year(), start.Month()+1, 0)
}

// EffectiveRange resolves the budget's concrete [start, end] interval.
func (b Budget) EffectiveRange() Range {
	return Range{Start: b.StartDate, End: EffectiveEnd(b.Period, b.StartDate, b.EndDate)}
}

// Overlaps reports whether two closed date intervals intersect.
// The test is symmetric: Overlaps(a, b) == Overlaps(b, a).
func Overlaps(a, b Range) bool {
	return !a.Start.After(b.End.Time) && !b.Start.After(a.End.Time)
}

// Contains reports whether the instant falls inside the closed range,
// compared at calendar-date granularity.
func (r Range) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// ValidateRange rejects a self-inconsistent candidate interval.
func ValidateRange(r Range) error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrInvalidDate
	}
	if r.End.Before(r.Start.Time) {
		return ErrRangeInverted
	}
	return nil
}
