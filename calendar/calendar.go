/*
Package calendar provides the working-day and time primitives shared by the
ledger, workflow, and aggregation packages.

PURPOSE:
  Everything date-related that is not business logic lives here:
  - Clock: injectable time source so tests can pin "now"
  - Holiday / HolidaySource: company holiday lookup
  - Working-day math: weekdays minus holidays over a range

DESIGN:
  Dates are normalized to midnight UTC. A "work date" is always a day, never
  an instant; time-of-day values elsewhere in the system are minutes since
  midnight on that date.

SEE ALSO:
  - aggregate/engine.go: expected-work-day computation
  - workflow/rules.go: future/past date validation
*/
package calendar

import (
	"context"
	"time"
)

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock abstracts time.Now so date comparisons and period rollovers can be
// simulated deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the real wall clock.
func System() Clock { return systemClock{} }

// Fixed is a Clock pinned to a specific instant, advanced manually.
type Fixed struct {
	current time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{current: t.UTC()} }

func (f *Fixed) Now() time.Time { return f.current }

// Set moves the clock to a new instant.
func (f *Fixed) Set(t time.Time) { f.current = t.UTC() }

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.current = f.current.Add(d) }

// =============================================================================
// DATE HELPERS
// =============================================================================

// DateOf truncates an instant to its day, midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a day value directly.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// IsWeekend reports whether the date is Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// MonthRange returns the first and last day of a month.
func MonthRange(year int, month time.Month) (from, to time.Time) {
	from = Date(year, month, 1)
	to = from.AddDate(0, 1, -1)
	return from, to
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a non-working day in the company calendar.
type Holiday struct {
	ID        string
	Date      time.Time
	Name      string
	Recurring bool // same month/day every year
}

// Matches reports whether the holiday falls on the given date.
func (h Holiday) Matches(date time.Time) bool {
	if h.Recurring {
		return h.Date.Month() == date.Month() && h.Date.Day() == date.Day()
	}
	return SameDay(h.Date, date)
}

// HolidaySource answers holiday lookups. Implemented by ListSource and by
// the SQLite store's holidays table.
type HolidaySource interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
}

// ListSource is a HolidaySource backed by a fixed list.
type ListSource struct {
	holidays []Holiday
}

func NewListSource(holidays ...Holiday) *ListSource {
	return &ListSource{holidays: holidays}
}

func (l *ListSource) IsHoliday(_ context.Context, date time.Time) (bool, error) {
	for _, h := range l.holidays {
		if h.Matches(date) {
			return true, nil
		}
	}
	return false, nil
}

// None is a HolidaySource with no holidays.
func None() HolidaySource { return &ListSource{} }

// =============================================================================
// WORKING-DAY MATH
// =============================================================================

// IsWorkingDay reports whether date is a weekday and not a holiday.
func IsWorkingDay(ctx context.Context, src HolidaySource, date time.Time) (bool, error) {
	if IsWeekend(date) {
		return false, nil
	}
	holiday, err := src.IsHoliday(ctx, date)
	if err != nil {
		return false, err
	}
	return !holiday, nil
}

// WorkingDaysBetween counts working days in [from, to] inclusive.
func WorkingDaysBetween(ctx context.Context, src HolidaySource, from, to time.Time) (int, error) {
	from, to = DateOf(from), DateOf(to)
	count := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		working, err := IsWorkingDay(ctx, src, d)
		if err != nil {
			return 0, err
		}
		if working {
			count++
		}
	}
	return count, nil
}
