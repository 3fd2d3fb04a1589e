package calendar_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/calendar"
)

// =============================================================================
// DATE HELPERS
// =============================================================================

func TestDateOf_TruncatesToMidnightUTC(t *testing.T) {
	instant := time.Date(2025, time.June, 5, 14, 37, 22, 999, time.UTC)
	day := calendar.DateOf(instant)

	assert.Equal(t, time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC), day)
}

func TestSameDay_IgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2025, time.June, 5, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, time.June, 5, 23, 59, 0, 0, time.UTC)
	nextDay := time.Date(2025, time.June, 6, 0, 0, 0, 0, time.UTC)

	assert.True(t, calendar.SameDay(morning, evening))
	assert.False(t, calendar.SameDay(evening, nextDay))
}

func TestMonthRange_CoversWholeMonth(t *testing.T) {
	from, to := calendar.MonthRange(2025, time.February)

	assert.Equal(t, calendar.Date(2025, time.February, 1), from)
	assert.Equal(t, calendar.Date(2025, time.February, 28), to)

	// Leap year
	from, to = calendar.MonthRange(2024, time.February)
	assert.Equal(t, calendar.Date(2024, time.February, 1), from)
	assert.Equal(t, calendar.Date(2024, time.February, 29), to)
}

// =============================================================================
// CLOCK
// =============================================================================

func TestFixedClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	clock := calendar.NewFixed(start)

	assert.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), clock.Now())

	later := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestHoliday_Matches_ExactDate(t *testing.T) {
	h := calendar.Holiday{
		ID:   "h-1",
		Date: calendar.Date(2025, time.April, 30),
		Name: "Reunification Day",
	}

	assert.True(t, h.Matches(calendar.Date(2025, time.April, 30)))
	assert.False(t, h.Matches(calendar.Date(2026, time.April, 30)), "non-recurring holiday is year-bound")
}

func TestHoliday_Matches_Recurring(t *testing.T) {
	h := calendar.Holiday{
		ID:        "h-2",
		Date:      calendar.Date(2020, time.January, 1),
		Name:      "New Year",
		Recurring: true,
	}

	assert.True(t, h.Matches(calendar.Date(2025, time.January, 1)))
	assert.True(t, h.Matches(calendar.Date(2030, time.January, 1)))
	assert.False(t, h.Matches(calendar.Date(2025, time.January, 2)))
}

// =============================================================================
// WORKING-DAY MATH
// =============================================================================

func TestWorkingDaysBetween_NoHolidays(t *testing.T) {
	// GIVEN: June 2025, no holidays
	// WHEN: Counting working days over the whole month
	// THEN: 21 weekdays (June 2025 has 30 days, 9 weekend days)

	ctx := context.Background()
	from, to := calendar.MonthRange(2025, time.June)

	count, err := calendar.WorkingDaysBetween(ctx, calendar.None(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 21, count)
}

func TestWorkingDaysBetween_HolidayOnWeekday(t *testing.T) {
	// GIVEN: September 2025 with a holiday on Tuesday Sep 2
	// WHEN: Counting working days
	// THEN: One fewer than the 22 weekdays

	ctx := context.Background()
	src := calendar.NewListSource(calendar.Holiday{
		ID:   "h-1",
		Date: calendar.Date(2025, time.September, 2),
		Name: "National Day",
	})
	from, to := calendar.MonthRange(2025, time.September)

	count, err := calendar.WorkingDaysBetween(ctx, src, from, to)
	require.NoError(t, err)
	assert.Equal(t, 21, count)
}

func TestWorkingDaysBetween_HolidayOnWeekend_NoDoubleCount(t *testing.T) {
	// A holiday falling on a Saturday must not subtract a second time.
	ctx := context.Background()
	src := calendar.NewListSource(calendar.Holiday{
		ID:   "h-1",
		Date: calendar.Date(2025, time.June, 7), // Saturday
		Name: "Weekend Holiday",
	})
	from, to := calendar.MonthRange(2025, time.June)

	count, err := calendar.WorkingDaysBetween(ctx, src, from, to)
	require.NoError(t, err)
	assert.Equal(t, 21, count)
}

func TestIsWorkingDay(t *testing.T) {
	ctx := context.Background()
	src := calendar.NewListSource(calendar.Holiday{
		ID:   "h-1",
		Date: calendar.Date(2025, time.June, 2), // Monday
		Name: "Holiday",
	})

	monday, err := calendar.IsWorkingDay(ctx, src, calendar.Date(2025, time.June, 2))
	require.NoError(t, err)
	assert.False(t, monday, "holiday on a weekday is not a working day")

	tuesday, err := calendar.IsWorkingDay(ctx, src, calendar.Date(2025, time.June, 3))
	require.NoError(t, err)
	assert.True(t, tuesday)

	saturday, err := calendar.IsWorkingDay(ctx, src, calendar.Date(2025, time.June, 7))
	require.NoError(t, err)
	assert.False(t, saturday)
}
