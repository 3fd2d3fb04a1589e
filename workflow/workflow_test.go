package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/org"
	"github.com/warp/attendance-engine/store/memory"
	"github.com/warp/attendance-engine/workflow"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	wf     *workflow.Workflow
	ledger *ledger.Service
	store  *memory.Memory
	clock  *calendar.Fixed
	org    *org.Static
}

// newFixture wires the workflow against the in-memory store with a small
// org: two teams in one division, a division manager, a team leader for
// team-1, a project manager whose project spans team-2, and one user with
// no roles at all.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	clock := calendar.NewFixed(time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC))

	o := org.NewStatic()
	o.AddEmployee(org.Employee{ID: "emp-1", Name: "Alice", Active: true, DivisionID: "div-1", TeamID: "team-1"})
	o.AddEmployee(org.Employee{ID: "emp-2", Name: "Bob", Active: true, DivisionID: "div-1", TeamID: "team-2"})
	o.AddEmployee(org.Employee{ID: "emp-gone", Name: "Former", Active: false, DivisionID: "div-1", TeamID: "team-1"})

	o.AddEmployee(org.Employee{ID: "mgr-div", Name: "Division Manager", Active: true, DivisionID: "div-1", TeamID: "team-1"})
	o.Assign("mgr-div", org.Role{Name: "division-manager", Scope: org.ScopeDivision, ScopeID: "div-1"})

	o.AddEmployee(org.Employee{ID: "lead-1", Name: "Team Leader", Active: true, DivisionID: "div-1", TeamID: "team-1"})
	o.Assign("lead-1", org.Role{Name: "team-leader", Scope: org.ScopeTeam, ScopeID: "team-1"})

	o.AddEmployee(org.Employee{ID: "pm-1", Name: "Project Manager", Active: true, DivisionID: "div-2", TeamID: "team-3"})
	o.Assign("pm-1", org.Role{Name: "project-manager", Scope: org.ScopeProject, ScopeID: "proj-1"})
	o.SetManagedTeams("pm-1", "team-2")

	o.AddEmployee(org.Employee{ID: "nobody", Name: "No Roles", Active: true, DivisionID: "div-1", TeamID: "team-1"})

	led := ledger.NewService(store, clock)
	wf := workflow.New(store, led, o, o, clock)
	return &fixture{wf: wf, ledger: led, store: store, clock: clock, org: o}
}

func (f *fixture) grantPaid(t *testing.T, employeeID string, n int64) {
	t.Helper()
	_, err := f.ledger.Add(context.Background(), employeeID, decimal.NewFromInt(n),
		ledger.LeavePaid, ledger.KindGranted, "test grant", "")
	require.NoError(t, err)
}

func (f *fixture) paidBalance(t *testing.T, employeeID string) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.GetOrCreate(context.Background(), employeeID)
	require.NoError(t, err)
	return b.Paid
}

var futureDate = calendar.Date(2025, time.June, 10) // Tuesday, after the fixture clock

func dayOff(employeeID string, date time.Time, duration workflow.DayOffDuration, category workflow.LeaveCategory) workflow.DayOffInput {
	return workflow.DayOffInput{
		EmployeeID: employeeID,
		WorkDate:   date,
		Duration:   duration,
		Category:   category,
		Reason:     "personal",
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateDayOff_PersistsPendingAndFlagsRecord(t *testing.T) {
	// GIVEN: An active employee with sufficient balance
	// WHEN: Creating a paid full-day request for a future date
	// THEN: The request is PENDING and the date's time record is flagged

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, workflow.StatusPending, r.Status)
	assert.Equal(t, futureDate, r.WorkDate)

	rec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.HasDayOffRequest)
	assert.False(t, rec.MorningOnLeave, "pending request has no side effects yet")

	assert.True(t, f.paidBalance(t, "emp-1").Equal(decimal.NewFromInt(5)),
		"creation never touches the balance")
}

func TestCreateDayOff_InsufficientBalance_NothingPersists(t *testing.T) {
	// GIVEN: Half a paid day in the balance
	// WHEN: Requesting a paid full day
	// THEN: ErrInsufficientBalance and no request row exists

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	existing, err := f.store.ActiveRequestOn(ctx, workflow.KindDayOff, "emp-1", futureDate)
	require.NoError(t, err)
	assert.Nil(t, existing, "hopeless requests never persist")
}

func TestCreateDayOff_UnpaidCategory_SkipsBalanceGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryUnpaid))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, r.Status)
}

func TestCreate_PastDate_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	past := calendar.Date(2025, time.May, 30)
	_, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", past, workflow.DurationFullDay, workflow.CategoryPaid))
	assert.ErrorIs(t, err, workflow.ErrValidation)

	// Today is also rejected: requests must point forward.
	today := calendar.Date(2025, time.June, 2)
	_, err = f.wf.CreateDayOff(ctx, dayOff("emp-1", today, workflow.DurationFullDay, workflow.CategoryPaid))
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestCreate_InactiveEmployee_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.CreateRemoteWork(ctx, workflow.RemoteWorkInput{
		EmployeeID: "emp-gone", WorkDate: futureDate, Reason: "wfh",
	})
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	_, err = f.wf.CreateRemoteWork(ctx, workflow.RemoteWorkInput{
		EmployeeID: "emp-unknown", WorkDate: futureDate, Reason: "wfh",
	})
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestCreate_DuplicateSameKindSameDate_Conflict(t *testing.T) {
	// GIVEN: A pending day-off for June 10
	// WHEN: Filing another day-off for June 10
	// THEN: ErrConflict naming the existing request

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	first, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	_, err = f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationMorning, workflow.CategoryPaid))
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrConflict)

	var conflict *workflow.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ExistingID)
}

func TestCreate_RejectedRequestStillBlocksDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Reject(ctx, workflow.KindDayOff, r.ID, "mgr-div", "no coverage")
	require.NoError(t, err)

	_, err = f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	assert.ErrorIs(t, err, workflow.ErrConflict, "the rejected row occupies the date until edited")
}

func TestCreate_CrossKindExclusion_DayOffVsRemoteWork(t *testing.T) {
	// GIVEN: An approved remote-work day on June 10
	// WHEN: Requesting June 10 off
	// THEN: ErrConflict; the reverse direction fails identically

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	rw, err := f.wf.CreateRemoteWork(ctx, workflow.RemoteWorkInput{
		EmployeeID: "emp-1", WorkDate: futureDate, Reason: "wfh",
	})
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindRemoteWork, rw.ID, "mgr-div")
	require.NoError(t, err)

	_, err = f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	assert.ErrorIs(t, err, workflow.ErrConflict)

	// Reverse: approved day-off blocks remote work.
	other := calendar.Date(2025, time.June, 11)
	do, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", other, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindDayOff, do.ID, "mgr-div")
	require.NoError(t, err)

	_, err = f.wf.CreateRemoteWork(ctx, workflow.RemoteWorkInput{
		EmployeeID: "emp-1", WorkDate: other, Reason: "wfh",
	})
	assert.ErrorIs(t, err, workflow.ErrConflict)
}

// =============================================================================
// PER-KIND VALIDATION
// =============================================================================

func TestCreateOvertime_MustSitOutsideOfficeHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rate := decimal.NewFromInt(100)

	// Overlapping the afternoon window: 17:00-19:00.
	_, err := f.wf.CreateOvertime(ctx, workflow.OvertimeInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		StartMinute: 17 * 60, EndMinute: 19 * 60, HourlyRate: rate,
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	// Fully after office hours: 18:00-20:00.
	r, err := f.wf.CreateOvertime(ctx, workflow.OvertimeInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		StartMinute: 18 * 60, EndMinute: 20 * 60, HourlyRate: rate,
	})
	require.NoError(t, err)
	assert.True(t, r.Overtime.TotalHours.Equal(decimal.NewFromInt(2)))
	assert.True(t, r.Overtime.TotalAmount.Equal(decimal.NewFromInt(200)))

	// Fully before office hours on another date: 06:00-07:30.
	_, err = f.wf.CreateOvertime(ctx, workflow.OvertimeInput{
		EmployeeID: "emp-1", WorkDate: calendar.Date(2025, time.June, 11),
		StartMinute: 6 * 60, EndMinute: 7*60 + 30, HourlyRate: rate,
	})
	assert.NoError(t, err)
}

func TestCreateOvertime_InvalidWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.CreateOvertime(ctx, workflow.OvertimeInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		StartMinute: 20 * 60, EndMinute: 18 * 60, HourlyRate: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = f.wf.CreateOvertime(ctx, workflow.OvertimeInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		StartMinute: 18 * 60, EndMinute: 20 * 60, HourlyRate: decimal.NewFromInt(-5),
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestCreateLateEarly_RequiresMatchingMinutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.CreateLateEarly(ctx, workflow.LateEarlyInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		Type: workflow.LateEarlyLate, LateMinutes: 0,
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = f.wf.CreateLateEarly(ctx, workflow.LateEarlyInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		Type: workflow.LateEarlyBoth, LateMinutes: 15, EarlyMinutes: 0,
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	r, err := f.wf.CreateLateEarly(ctx, workflow.LateEarlyInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		Type: workflow.LateEarlyBoth, LateMinutes: 15, EarlyMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, r.Status)
}

func TestCreateForgotCheckin_OnlyKindPointingBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Future date is invalid for forgot-checkin.
	_, err := f.wf.CreateForgotCheckin(ctx, workflow.ForgotCheckinInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		CheckinMinute: 8 * 60, CheckoutMinute: 17*60 + 30,
	})
	assert.ErrorIs(t, err, workflow.ErrValidation)

	// A past date is exactly what it is for.
	r, err := f.wf.CreateForgotCheckin(ctx, workflow.ForgotCheckinInput{
		EmployeeID: "emp-1", WorkDate: calendar.Date(2025, time.May, 28),
		CheckinMinute: 8 * 60, CheckoutMinute: 17*60 + 30,
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, r.Status)
}

// =============================================================================
// APPROVE
// =============================================================================

func TestApproveDayOff_DeductsAndMarksLeave(t *testing.T) {
	// GIVEN: A pending paid full-day request and 5 days of balance
	// WHEN: The division manager approves
	// THEN: Balance drops by 1 and both halves of the date are on leave

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	approved, err := f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusApproved, approved.Status)
	assert.Equal(t, "mgr-div", approved.ApproverID)
	require.NotNil(t, approved.ApprovedAt)
	assert.True(t, approved.DayOff.BalanceDeducted)
	assert.NotEmpty(t, approved.DayOff.DeductionTxID)

	assert.True(t, f.paidBalance(t, "emp-1").Equal(decimal.NewFromInt(4)))

	rec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	assert.True(t, rec.MorningOnLeave)
	assert.True(t, rec.AfternoonOnLeave)
	assert.True(t, rec.Complete, "a fully covered day is complete")
}

func TestApproveDayOff_HalfDay_DeductsHalf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationMorning, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	require.NoError(t, err)

	assert.True(t, f.paidBalance(t, "emp-1").Equal(decimal.NewFromFloat(4.5)))

	rec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	assert.True(t, rec.MorningOnLeave)
	assert.False(t, rec.AfternoonOnLeave)
	assert.False(t, rec.Complete)
}

func TestApproveDayOff_SickCategory_NoDeduction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategorySick))
	require.NoError(t, err)
	approved, err := f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	require.NoError(t, err)

	assert.False(t, approved.DayOff.BalanceDeducted)
	assert.True(t, f.paidBalance(t, "emp-1").IsZero())
}

func TestApprove_NonPending_InvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	require.NoError(t, err)

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	assert.True(t, f.paidBalance(t, "emp-1").Equal(decimal.NewFromInt(4)),
		"the second approval must not deduct again")
}

func TestApproveOvertime_AccumulatesOnRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rate := decimal.NewFromInt(100)

	r, err := f.wf.CreateOvertime(ctx, workflow.OvertimeInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		StartMinute: 18 * 60, EndMinute: 21 * 60, HourlyRate: rate,
	})
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindOvertime, r.ID, "mgr-div")
	require.NoError(t, err)

	rec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	assert.Equal(t, 180, rec.OvertimeMinutes)
	assert.True(t, rec.OvertimeHours.Equal(decimal.NewFromInt(3)))
	assert.True(t, rec.OvertimeAmount.Equal(decimal.NewFromInt(300)))
}

func TestApproveForgotCheckin_BackfillsClockEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.wf.CreateForgotCheckin(ctx, workflow.ForgotCheckinInput{
		EmployeeID: "emp-1", WorkDate: calendar.Date(2025, time.May, 28),
		CheckinMinute: 8 * 60, CheckoutMinute: 17*60 + 30,
	})
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindForgotCheckin, r.ID, "mgr-div")
	require.NoError(t, err)

	rec, err := f.store.TimeRecord(ctx, "emp-1", calendar.Date(2025, time.May, 28))
	require.NoError(t, err)
	require.NotNil(t, rec.CheckinMinute)
	require.NotNil(t, rec.CheckoutMinute)
	assert.Equal(t, 240, rec.MorningMinutes, "08:00-12:00 covers the morning window")
	assert.Equal(t, 240, rec.AfternoonMinutes, "13:30-17:30 covers the afternoon window")
	assert.True(t, rec.Complete)
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func TestApprove_SelfApproval_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "mgr-div", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("mgr-div", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	assert.ErrorIs(t, err, workflow.ErrForbidden, "even a global admin cannot self-approve")

	loaded, err := f.wf.Request(ctx, workflow.KindDayOff, r.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, loaded.Status)
}

func TestApprove_NoRoles_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "nobody")
	assert.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestApprove_TeamScope_OnlyOwnTeam(t *testing.T) {
	// GIVEN: lead-1 leads team-1; emp-1 is in team-1, emp-2 in team-2
	// WHEN: lead-1 approves requests from both
	// THEN: team-1 succeeds, team-2 is forbidden

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)
	f.grantPaid(t, "emp-2", 5)

	r1, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	r2, err := f.wf.CreateDayOff(ctx, dayOff("emp-2", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r1.ID, "lead-1")
	assert.NoError(t, err)

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r2.ID, "lead-1")
	assert.ErrorIs(t, err, workflow.ErrForbidden)
}

func TestApprove_ProjectScope_CoversAssignedTeams(t *testing.T) {
	// pm-1 manages a project spanning team-2 but sits in another division.
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)
	f.grantPaid(t, "emp-2", 5)

	r1, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	r2, err := f.wf.CreateDayOff(ctx, dayOff("emp-2", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r2.ID, "pm-1")
	assert.NoError(t, err, "team-2 is under pm-1's project")

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r1.ID, "pm-1")
	assert.ErrorIs(t, err, workflow.ErrForbidden, "team-1 is not")
}

// =============================================================================
// REJECT
// =============================================================================

func TestRejectPending_NoSideEffectsToReverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	rejected, err := f.wf.Reject(ctx, workflow.KindDayOff, r.ID, "mgr-div", "no coverage")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, rejected.Status)
	assert.Equal(t, "no coverage", rejected.RejectedReason)

	assert.True(t, f.paidBalance(t, "emp-1").Equal(decimal.NewFromInt(5)))

	rec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	assert.False(t, rec.MorningOnLeave)
}

func TestRejectApproved_RefundsAndReverses(t *testing.T) {
	// GIVEN: An approved paid full-day request (balance 4 after deduction)
	// WHEN: It is retroactively rejected
	// THEN: The balance returns to 5 and the leave halves clear

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	require.NoError(t, err)
	require.True(t, f.paidBalance(t, "emp-1").Equal(decimal.NewFromInt(4)))

	rejected, err := f.wf.Reject(ctx, workflow.KindDayOff, r.ID, "mgr-div", "project emergency")
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusRejected, rejected.Status)
	assert.False(t, rejected.DayOff.BalanceDeducted)
	assert.Empty(t, rejected.DayOff.DeductionTxID)
	assert.True(t, f.paidBalance(t, "emp-1").Equal(decimal.NewFromInt(5)))

	rec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	assert.False(t, rec.MorningOnLeave)
	assert.False(t, rec.AfternoonOnLeave)
}

func TestRejectApprovedOvertime_RemovesFromRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.wf.CreateOvertime(ctx, workflow.OvertimeInput{
		EmployeeID: "emp-1", WorkDate: futureDate,
		StartMinute: 18 * 60, EndMinute: 20 * 60, HourlyRate: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindOvertime, r.ID, "mgr-div")
	require.NoError(t, err)
	_, err = f.wf.Reject(ctx, workflow.KindOvertime, r.ID, "mgr-div", "not pre-agreed")
	require.NoError(t, err)

	rec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.OvertimeMinutes)
	assert.True(t, rec.OvertimeHours.IsZero())
	assert.True(t, rec.OvertimeAmount.IsZero())
}

func TestReject_AlreadyRejected_InvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Reject(ctx, workflow.KindDayOff, r.ID, "mgr-div", "first")
	require.NoError(t, err)

	_, err = f.wf.Reject(ctx, workflow.KindDayOff, r.ID, "mgr-div", "second")
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

// =============================================================================
// UPDATE (edit while rejected)
// =============================================================================

func TestUpdate_RejectedBackToPending(t *testing.T) {
	// GIVEN: A rejected day-off for June 10
	// WHEN: The employee edits it to June 12
	// THEN: It is PENDING again, the old date's flag clears, the new sets

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Reject(ctx, workflow.KindDayOff, r.ID, "mgr-div", "pick another day")
	require.NoError(t, err)

	newDate := calendar.Date(2025, time.June, 12)
	updated, err := f.wf.UpdateDayOff(ctx, r.ID, dayOff("emp-1", newDate, workflow.DurationMorning, workflow.CategoryPaid))
	require.NoError(t, err)

	assert.Equal(t, workflow.StatusPending, updated.Status)
	assert.Empty(t, updated.ApproverID)
	assert.Nil(t, updated.ApprovedAt)
	assert.Empty(t, updated.RejectedReason)
	assert.Equal(t, newDate, updated.WorkDate)
	assert.Equal(t, workflow.DurationMorning, updated.DayOff.Duration)

	oldRec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	assert.False(t, oldRec.HasDayOffRequest)

	newRec, err := f.store.TimeRecord(ctx, "emp-1", newDate)
	require.NoError(t, err)
	assert.True(t, newRec.HasDayOffRequest)
}

func TestUpdate_PendingOrApproved_InvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	_, err = f.wf.UpdateDayOff(ctx, r.ID, dayOff("emp-1", futureDate, workflow.DurationMorning, workflow.CategoryPaid))
	assert.ErrorIs(t, err, workflow.ErrInvalidState, "pending requests are deleted and refiled, not edited")

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	require.NoError(t, err)
	_, err = f.wf.UpdateDayOff(ctx, r.ID, dayOff("emp-1", futureDate, workflow.DurationMorning, workflow.CategoryPaid))
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestUpdate_CannotChangeEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Reject(ctx, workflow.KindDayOff, r.ID, "mgr-div", "rejected")
	require.NoError(t, err)

	_, err = f.wf.UpdateDayOff(ctx, r.ID, dayOff("emp-2", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestUpdate_Revalidates(t *testing.T) {
	// Editing onto a date already occupied by another request must conflict.
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	other := calendar.Date(2025, time.June, 12)
	_, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", other, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Reject(ctx, workflow.KindDayOff, r.ID, "mgr-div", "rejected")
	require.NoError(t, err)

	_, err = f.wf.UpdateDayOff(ctx, r.ID, dayOff("emp-1", other, workflow.DurationFullDay, workflow.CategoryPaid))
	assert.ErrorIs(t, err, workflow.ErrConflict)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete_PendingOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	require.NoError(t, f.wf.Delete(ctx, workflow.KindDayOff, r.ID))

	_, err = f.wf.Request(ctx, workflow.KindDayOff, r.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound, "deleted requests read as absent")

	// Deleting frees the date for a new request.
	_, err = f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	assert.NoError(t, err)
}

func TestDelete_Approved_InvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	require.NoError(t, err)

	err = f.wf.Delete(ctx, workflow.KindDayOff, r.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

// =============================================================================
// RAW CLOCK EVENTS
// =============================================================================

func TestCheckInCheckOut_ComputesWindowMinutes(t *testing.T) {
	// GIVEN: Check-in at 08:30, check-out at 17:30
	// WHEN: Both events are recorded
	// THEN: 210 morning + 240 afternoon minutes land on today's record

	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Date(2025, time.June, 2, 8, 30, 0, 0, time.UTC))
	rec, err := f.wf.CheckIn(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, rec.CheckinMinute)
	assert.Equal(t, 8*60+30, *rec.CheckinMinute)

	f.clock.Set(time.Date(2025, time.June, 2, 17, 30, 0, 0, time.UTC))
	rec, err = f.wf.CheckOut(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, rec.CheckoutMinute)

	assert.Equal(t, 210, rec.MorningMinutes)
	assert.Equal(t, 240, rec.AfternoonMinutes)
	assert.Equal(t, 450, rec.WorkMinutes)
	assert.False(t, rec.Complete, "a 30-minute-late morning does not satisfy the half")
}

func TestCheckIn_SecondOfTheDayIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC))
	_, err := f.wf.CheckIn(ctx, "emp-1")
	require.NoError(t, err)

	f.clock.Set(time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC))
	rec, err := f.wf.CheckIn(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 8*60, *rec.CheckinMinute, "the first check-in of the day wins")
}

func TestCheckOut_WithoutCheckIn_Fails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.CheckOut(ctx, "emp-1")
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

// =============================================================================
// ATOMICITY AND CONCURRENCY
// =============================================================================

func TestApprove_LedgerFailure_RollsBackStatus(t *testing.T) {
	// GIVEN: A pending paid request whose balance was drained after filing
	// WHEN: Approval runs and the deduction fails
	// THEN: The request is still PENDING and the record untouched

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 1)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	// Drain the balance behind the request's back.
	_, _, err = f.ledger.Deduct(ctx, "emp-1", decimal.NewFromInt(1), ledger.LeavePaid, "other-req", "drain")
	require.NoError(t, err)

	_, err = f.wf.Approve(ctx, workflow.KindDayOff, r.ID, "mgr-div")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	loaded, err := f.wf.Request(ctx, workflow.KindDayOff, r.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, loaded.Status, "the status change rolled back with the deduction")
	assert.Empty(t, loaded.ApproverID)

	rec, err := f.store.TimeRecord(ctx, "emp-1", futureDate)
	require.NoError(t, err)
	assert.False(t, rec.MorningOnLeave)
}

func TestApprove_Concurrent_ExactlyOneWins(t *testing.T) {
	// GIVEN: One pending request and two approvers racing
	// WHEN: Both approve concurrently
	// THEN: One succeeds, the other fails ErrInvalidState, one deduction total

	f := newFixture(t)
	ctx := context.Background()
	f.grantPaid(t, "emp-1", 5)

	r, err := f.wf.CreateDayOff(ctx, dayOff("emp-1", futureDate, workflow.DurationFullDay, workflow.CategoryPaid))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, approver := range []string{"mgr-div", "lead-1"} {
		wg.Add(1)
		go func(approver string) {
			defer wg.Done()
			_, err := f.wf.Approve(ctx, workflow.KindDayOff, r.ID, approver)
			errs <- err
		}(approver)
	}
	wg.Wait()
	close(errs)

	succeeded, invalidState := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, workflow.ErrInvalidState)
			invalidState++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, invalidState)

	assert.True(t, f.paidBalance(t, "emp-1").Equal(decimal.NewFromInt(4)),
		"exactly one deduction happened")
}
