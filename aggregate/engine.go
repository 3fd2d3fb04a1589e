/*
Package aggregate reconstructs an employee's month from the attendance data.

PURPOSE:
  Pure read-only derivation. Summarize and Detail are functions of
  (employee, year, month) over the time records, the approved requests and
  the holiday calendar; nothing here writes, locks, or caches. Run twice on
  the same data they produce identical output, and they are safe to run
  concurrently with ongoing approvals (the result is a snapshot, not a
  consistency-critical value).

SESSION SCORING:
  One full working day counts as 1.0 session, not two halves. A half
  qualifies when its recorded minutes reach the half-day threshold or an
  approved day-off covers it; a day at the full-day threshold qualifies
  both halves outright, and overtime at the half-day threshold credits one
  otherwise-missing half.
*/
package aggregate

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/workflow"
)

// Store is the read-only slice of persistence the engine needs. The
// workflow store satisfies it.
type Store interface {
	TimeRecordsInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*workflow.TimeRecord, error)
	ApprovedRequestsInRange(ctx context.Context, kind workflow.Kind, employeeID string, from, to time.Time) ([]*workflow.Request, error)
	Balance(ctx context.Context, employeeID string) (*ledger.Balance, error)
}

// Engine computes monthly summaries and detail views.
type Engine struct {
	store    Store
	holidays calendar.HolidaySource
}

func New(store Store, holidays calendar.HolidaySource) *Engine {
	return &Engine{store: store, holidays: holidays}
}

// =============================================================================
// OUTPUT SHAPES
// =============================================================================

// Summary is the derived monthly roll-up. Recomputed on demand, never
// persisted.
type Summary struct {
	EmployeeID string
	Year       int
	Month      time.Month

	ExpectedWorkDays int
	TotalWorkDays    int
	TotalWorkHours   decimal.Decimal
	TotalSessions    decimal.Decimal

	PaidLeaveDays   decimal.Decimal
	UnpaidLeaveDays decimal.Decimal
	SickLeaveDays   decimal.Decimal
	OtherLeaveDays  decimal.Decimal
	TotalLeaveDays  decimal.Decimal

	AbsentDays decimal.Decimal

	LateCount    int
	EarlyCount   int
	LateMinutes  int
	EarlyMinutes int
	RemoteDays   int

	OvertimeHours  decimal.Decimal
	OvertimeAmount decimal.Decimal

	AttendanceRate decimal.Decimal // percent, 2 decimals
	OnTimeRate     decimal.Decimal // percent, 2 decimals
	Complete       bool

	// Balance snapshot at read time, display only.
	PaidBalance   decimal.Decimal
	UnpaidBalance decimal.Decimal
}

// DayClass classifies a calendar day in the daily breakdown.
type DayClass string

const (
	DayWeekend DayClass = "WEEKEND"
	DayHoliday DayClass = "HOLIDAY"
	DayLeave   DayClass = "LEAVE"
	DayPresent DayClass = "PRESENT"
	DayAbsent  DayClass = "ABSENT"
)

type DayDetail struct {
	Date            time.Time
	Class           DayClass
	Sessions        decimal.Decimal
	WorkMinutes     int
	Remote          bool
	LateMinutes     int
	EarlyMinutes    int
	OvertimeMinutes int
}

// ViolationKind tags an entry in the violation list.
type ViolationKind string

const (
	ViolationLate  ViolationKind = "LATE"
	ViolationEarly ViolationKind = "EARLY"
)

type Violation struct {
	Date    time.Time
	Kind    ViolationKind
	Minutes int
}

type LeaveEntry struct {
	Date     time.Time
	Duration workflow.DayOffDuration
	Category workflow.LeaveCategory
	Days     decimal.Decimal
	Reason   string
}

type OvertimeEntry struct {
	Date        time.Time
	StartMinute int
	EndMinute   int
	Hours       decimal.Decimal
	Amount      decimal.Decimal
}

// Detail is the day-by-day view of the month.
type Detail struct {
	EmployeeID string
	Year       int
	Month      time.Month

	Days       []DayDetail
	Violations []Violation
	Leaves     []LeaveEntry
	Overtimes  []OvertimeEntry
}

// =============================================================================
// SUMMARIZE
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Summarize computes the monthly roll-up for one employee.
func (e *Engine) Summarize(ctx context.Context, employeeID string, year int, month time.Month) (*Summary, error) {
	from, to := calendar.MonthRange(year, month)

	expected, err := calendar.WorkingDaysBetween(ctx, e.holidays, from, to)
	if err != nil {
		return nil, err
	}
	records, err := e.store.TimeRecordsInRange(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	dayOffs, err := e.store.ApprovedRequestsInRange(ctx, workflow.KindDayOff, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		EmployeeID:       employeeID,
		Year:             year,
		Month:            month,
		ExpectedWorkDays: expected,
		TotalWorkHours:   decimal.Zero,
		TotalSessions:    decimal.Zero,
		PaidLeaveDays:    decimal.Zero,
		UnpaidLeaveDays:  decimal.Zero,
		SickLeaveDays:    decimal.Zero,
		OtherLeaveDays:   decimal.Zero,
		TotalLeaveDays:   decimal.Zero,
		AbsentDays:       decimal.Zero,
		OvertimeHours:    decimal.Zero,
		OvertimeAmount:   decimal.Zero,
		AttendanceRate:   decimal.Zero,
		OnTimeRate:       hundred,
		PaidBalance:      decimal.Zero,
		UnpaidBalance:    decimal.Zero,
	}

	lateViolations := 0
	reviewed := 0
	for _, rec := range records {
		if rec.Status != workflow.RecordRejected {
			if rec.Complete {
				s.TotalWorkDays++
				if rec.LateMinutes > 0 {
					lateViolations++
				}
			}
			s.TotalWorkHours = s.TotalWorkHours.Add(
				decimal.NewFromInt(int64(rec.WorkMinutes)).Div(decimal.NewFromInt(60)))
			s.TotalSessions = s.TotalSessions.Add(sessionScore(rec))
		}
		if rec.Status == workflow.RecordApproved || rec.Status == workflow.RecordPending {
			reviewed++
		}
		if rec.LateMinutes > 0 {
			s.LateCount++
			s.LateMinutes += rec.LateMinutes
		}
		if rec.EarlyMinutes > 0 {
			s.EarlyCount++
			s.EarlyMinutes += rec.EarlyMinutes
		}
		if rec.Remote {
			s.RemoteDays++
		}
		s.OvertimeHours = s.OvertimeHours.Add(rec.OvertimeHours)
		s.OvertimeAmount = s.OvertimeAmount.Add(rec.OvertimeAmount)
	}

	for _, r := range dayOffs {
		days := r.DayOff.Duration.Days()
		switch r.DayOff.Category {
		case workflow.CategoryPaid:
			s.PaidLeaveDays = s.PaidLeaveDays.Add(days)
		case workflow.CategoryUnpaid:
			s.UnpaidLeaveDays = s.UnpaidLeaveDays.Add(days)
		case workflow.CategorySick, workflow.CategoryMaternity:
			s.SickLeaveDays = s.SickLeaveDays.Add(days)
		default:
			s.OtherLeaveDays = s.OtherLeaveDays.Add(days)
		}
		s.TotalLeaveDays = s.TotalLeaveDays.Add(days)
	}

	absent := decimal.NewFromInt(int64(expected - s.TotalWorkDays)).Sub(s.TotalLeaveDays)
	if absent.IsPositive() {
		s.AbsentDays = absent
	}

	if expected > 0 {
		s.AttendanceRate = decimal.NewFromInt(int64(s.TotalWorkDays)).
			Div(decimal.NewFromInt(int64(expected))).
			Mul(hundred).Round(2)
		s.Complete = reviewed*10 >= expected*9
	}
	if s.TotalWorkDays > 0 {
		s.OnTimeRate = decimal.NewFromInt(int64(s.TotalWorkDays - lateViolations)).
			Div(decimal.NewFromInt(int64(s.TotalWorkDays))).
			Mul(hundred).Round(2)
	}

	if b, err := e.store.Balance(ctx, employeeID); err != nil {
		return nil, err
	} else if b != nil {
		s.PaidBalance = b.Paid
		s.UnpaidBalance = b.Unpaid
	}
	return s, nil
}

// sessionScore credits 1.0 for a full day, 0.5 for a single qualifying
// half, 0 otherwise.
func sessionScore(rec *workflow.TimeRecord) decimal.Decimal {
	morning := rec.MorningSatisfied()
	afternoon := rec.AfternoonSatisfied()
	if rec.WorkMinutes >= workflow.FullDayMinutes {
		morning, afternoon = true, true
	}
	if morning != afternoon && rec.OvertimeMinutes >= workflow.HalfDayMinutes {
		morning, afternoon = true, true
	}
	switch {
	case morning && afternoon:
		return decimal.NewFromInt(1)
	case morning || afternoon:
		return decimal.NewFromFloat(0.5)
	default:
		return decimal.Zero
	}
}

// =============================================================================
// DETAIL
// =============================================================================

// Detail walks the month day by day and classifies each date, with the
// flat violation, leave and overtime lists alongside.
func (e *Engine) Detail(ctx context.Context, employeeID string, year int, month time.Month) (*Detail, error) {
	from, to := calendar.MonthRange(year, month)

	records, dayOffs, overtimes, err := e.loadMonth(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	recordByDay := make(map[time.Time]*workflow.TimeRecord, len(records))
	for _, rec := range records {
		recordByDay[calendar.DateOf(rec.WorkDate)] = rec
	}
	leaveByDay := make(map[time.Time]*workflow.Request, len(dayOffs))
	for _, r := range dayOffs {
		leaveByDay[calendar.DateOf(r.WorkDate)] = r
	}

	d := &Detail{EmployeeID: employeeID, Year: year, Month: month}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		dd := DayDetail{Date: day, Sessions: decimal.Zero}
		rec := recordByDay[day]
		if rec != nil && rec.Status != workflow.RecordRejected {
			dd.Sessions = sessionScore(rec)
			dd.WorkMinutes = rec.WorkMinutes
			dd.Remote = rec.Remote
			dd.LateMinutes = rec.LateMinutes
			dd.EarlyMinutes = rec.EarlyMinutes
			dd.OvertimeMinutes = rec.OvertimeMinutes
		}

		holiday, err := e.holidays.IsHoliday(ctx, day)
		if err != nil {
			return nil, err
		}
		switch {
		case calendar.IsWeekend(day):
			dd.Class = DayWeekend
		case holiday:
			dd.Class = DayHoliday
		case leaveByDay[day] != nil:
			dd.Class = DayLeave
		case rec != nil && rec.Status != workflow.RecordRejected && dd.Sessions.IsPositive():
			dd.Class = DayPresent
		default:
			dd.Class = DayAbsent
		}
		d.Days = append(d.Days, dd)

		if rec != nil && rec.Status != workflow.RecordRejected {
			if rec.LateMinutes > 0 {
				d.Violations = append(d.Violations, Violation{Date: day, Kind: ViolationLate, Minutes: rec.LateMinutes})
			}
			if rec.EarlyMinutes > 0 {
				d.Violations = append(d.Violations, Violation{Date: day, Kind: ViolationEarly, Minutes: rec.EarlyMinutes})
			}
		}
	}

	for _, r := range dayOffs {
		d.Leaves = append(d.Leaves, LeaveEntry{
			Date:     calendar.DateOf(r.WorkDate),
			Duration: r.DayOff.Duration,
			Category: r.DayOff.Category,
			Days:     r.DayOff.Duration.Days(),
			Reason:   r.DayOff.Reason,
		})
	}
	for _, r := range overtimes {
		d.Overtimes = append(d.Overtimes, OvertimeEntry{
			Date:        calendar.DateOf(r.WorkDate),
			StartMinute: r.Overtime.StartMinute,
			EndMinute:   r.Overtime.EndMinute,
			Hours:       r.Overtime.TotalHours,
			Amount:      r.Overtime.TotalAmount,
		})
	}
	sort.Slice(d.Leaves, func(i, j int) bool { return d.Leaves[i].Date.Before(d.Leaves[j].Date) })
	sort.Slice(d.Overtimes, func(i, j int) bool { return d.Overtimes[i].Date.Before(d.Overtimes[j].Date) })
	return d, nil
}

func (e *Engine) loadMonth(ctx context.Context, employeeID string, from, to time.Time) ([]*workflow.TimeRecord, []*workflow.Request, []*workflow.Request, error) {
	records, err := e.store.TimeRecordsInRange(ctx, employeeID, from, to)
	if err != nil {
		return nil, nil, nil, err
	}
	dayOffs, err := e.store.ApprovedRequestsInRange(ctx, workflow.KindDayOff, employeeID, from, to)
	if err != nil {
		return nil, nil, nil, err
	}
	overtimes, err := e.store.ApprovedRequestsInRange(ctx, workflow.KindOvertime, employeeID, from, to)
	if err != nil {
		return nil, nil, nil, err
	}
	return records, dayOffs, overtimes, nil
}
