/*
rules.go - Per-kind validation and side effects

The pipeline in workflow.go is kind-agnostic; everything that varies by
exception kind lives in this file's rule set:

  validate    payload shape, temporal rules, duplicate/conflict checks,
              and the paid-balance pre-check for day-off
  onApprove   side effects onto the ledger and the time record
  onReject    symmetric reversal of onApprove, used when an APPROVED
              request is retroactively rejected

Adding a kind means adding one ruleSet entry, not a sixth state machine.
*/
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
)

type ruleSet struct {
	validate  func(ctx context.Context, w *Workflow, r *Request, now time.Time) error
	onApprove func(ctx context.Context, w *Workflow, r *Request, rec *TimeRecord) error
	onReject  func(ctx context.Context, w *Workflow, r *Request, rec *TimeRecord) error
}

func rulesFor(kind Kind) (ruleSet, error) {
	rs, ok := kindRules[kind]
	if !ok {
		return ruleSet{}, fmt.Errorf("unknown request kind %q", kind)
	}
	return rs, nil
}

var kindRules = map[Kind]ruleSet{
	KindDayOff: {
		validate:  validateDayOff,
		onApprove: approveDayOff,
		onReject:  rejectDayOff,
	},
	KindRemoteWork: {
		validate:  validateRemoteWork,
		onApprove: approveRemoteWork,
		onReject:  rejectRemoteWork,
	},
	KindOvertime: {
		validate:  validateOvertime,
		onApprove: approveOvertime,
		onReject:  rejectOvertime,
	},
	KindLateEarly: {
		validate:  validateLateEarly,
		onApprove: approveLateEarly,
		onReject:  rejectLateEarly,
	},
	KindForgotCheckin: {
		validate:  validateForgotCheckin,
		onApprove: approveForgotCheckin,
		onReject:  rejectForgotCheckin,
	},
}

// =============================================================================
// SHARED CHECKS
// =============================================================================

func requireFutureDate(workDate time.Time, now time.Time) error {
	if !workDate.After(calendar.DateOf(now)) {
		return &ValidationError{Field: "work_date", Message: "must be a future date"}
	}
	return nil
}

// sameKindConflict fails when another non-deleted request of the kind
// exists for the date. The request's own row is ignored so edits can
// re-validate against their current date.
func sameKindConflict(ctx context.Context, w *Workflow, r *Request) error {
	existing, err := w.store.ActiveRequestOn(ctx, r.Kind, r.EmployeeID, r.WorkDate)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != r.ID {
		return &ConflictError{
			Kind:       r.Kind,
			EmployeeID: r.EmployeeID,
			WorkDate:   r.WorkDate,
			ExistingID: existing.ID,
		}
	}
	return nil
}

// approvedCrossConflict fails when an approved request of another kind
// occupies the date. Used for the day-off / remote-work exclusion.
func approvedCrossConflict(ctx context.Context, w *Workflow, r *Request, other Kind) error {
	existing, err := w.store.ApprovedRequestOn(ctx, other, r.EmployeeID, r.WorkDate)
	if err != nil {
		return err
	}
	if existing != nil {
		return &ConflictError{
			Kind:       other,
			EmployeeID: r.EmployeeID,
			WorkDate:   r.WorkDate,
			ExistingID: existing.ID,
		}
	}
	return nil
}

// =============================================================================
// DAY-OFF
// =============================================================================

func validateDayOff(ctx context.Context, w *Workflow, r *Request, now time.Time) error {
	d := r.DayOff
	if d == nil {
		return &ValidationError{Field: "day_off", Message: "missing detail"}
	}
	switch d.Duration {
	case DurationFullDay, DurationMorning, DurationAfternoon:
	default:
		return &ValidationError{Field: "duration", Message: fmt.Sprintf("unknown duration %q", d.Duration)}
	}
	switch d.Category {
	case CategoryPaid, CategoryUnpaid, CategorySick, CategoryMaternity:
	default:
		return &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", d.Category)}
	}
	if err := requireFutureDate(r.WorkDate, now); err != nil {
		return err
	}
	if err := sameKindConflict(ctx, w, r); err != nil {
		return err
	}
	// A day approved for remote work cannot also be taken off.
	if err := approvedCrossConflict(ctx, w, r, KindRemoteWork); err != nil {
		return err
	}
	// Pre-check the paid balance so hopeless requests never persist.
	// Non-paid categories are not balance-gated.
	if d.Category.ConsumesBalance() {
		b, err := w.ledger.GetOrCreate(ctx, r.EmployeeID)
		if err != nil {
			return err
		}
		amount := d.Duration.Days()
		if b.Paid.LessThan(amount) {
			return &ledger.InsufficientBalanceError{
				EmployeeID: r.EmployeeID,
				LeaveType:  ledger.LeavePaid,
				Available:  b.Paid,
				Requested:  amount,
			}
		}
	}
	return nil
}

func approveDayOff(ctx context.Context, w *Workflow, r *Request, rec *TimeRecord) error {
	d := r.DayOff
	if d.Category.ConsumesBalance() {
		_, tx, err := w.ledger.Deduct(ctx, r.EmployeeID, d.Duration.Days(), ledger.LeavePaid, r.ID,
			fmt.Sprintf("day off %s (%s)", r.WorkDate.Format("2006-01-02"), d.Duration))
		if err != nil {
			return err
		}
		// Mirror the marker the ledger persisted on the request row, so
		// the envelope written after this call does not erase it.
		d.BalanceDeducted = true
		d.DeductionTxID = tx.ID
	}
	setLeaveHalves(rec, d.Duration, true)
	rec.Recompute()
	return nil
}

func rejectDayOff(ctx context.Context, w *Workflow, r *Request, rec *TimeRecord) error {
	d := r.DayOff
	if d.BalanceDeducted {
		_, err := w.ledger.Refund(ctx, r.EmployeeID, d.Duration.Days(), ledger.LeavePaid, r.ID,
			fmt.Sprintf("refund for rejected day off %s", r.WorkDate.Format("2006-01-02")))
		if err != nil {
			return err
		}
		d.BalanceDeducted = false
		d.DeductionTxID = ""
	}
	setLeaveHalves(rec, d.Duration, false)
	rec.Recompute()
	return nil
}

func setLeaveHalves(rec *TimeRecord, duration DayOffDuration, v bool) {
	switch duration {
	case DurationFullDay:
		rec.MorningOnLeave = v
		rec.AfternoonOnLeave = v
	case DurationMorning:
		rec.MorningOnLeave = v
	case DurationAfternoon:
		rec.AfternoonOnLeave = v
	}
}

// =============================================================================
// REMOTE WORK
// =============================================================================

func validateRemoteWork(ctx context.Context, w *Workflow, r *Request, now time.Time) error {
	if r.RemoteWork == nil {
		return &ValidationError{Field: "remote_work", Message: "missing detail"}
	}
	if err := requireFutureDate(r.WorkDate, now); err != nil {
		return err
	}
	if err := sameKindConflict(ctx, w, r); err != nil {
		return err
	}
	// Cannot work remotely on a day already approved off.
	return approvedCrossConflict(ctx, w, r, KindDayOff)
}

func approveRemoteWork(_ context.Context, _ *Workflow, _ *Request, rec *TimeRecord) error {
	rec.Remote = true
	return nil
}

func rejectRemoteWork(_ context.Context, _ *Workflow, _ *Request, rec *TimeRecord) error {
	rec.Remote = false
	return nil
}

// =============================================================================
// OVERTIME
// =============================================================================

func validateOvertime(ctx context.Context, w *Workflow, r *Request, now time.Time) error {
	d := r.Overtime
	if d == nil {
		return &ValidationError{Field: "overtime", Message: "missing detail"}
	}
	if d.StartMinute < 0 || d.EndMinute > 24*60 || d.StartMinute >= d.EndMinute {
		return &ValidationError{Field: "time_window", Message: "start must precede end within the day"}
	}
	// Overtime must sit strictly outside office hours: fully before the
	// morning window or fully after the afternoon window.
	if !(d.EndMinute <= MorningStartMinute || d.StartMinute >= AfternoonEndMinute) {
		return &ValidationError{Field: "time_window", Message: "overtime must not overlap office hours"}
	}
	if d.HourlyRate.IsNegative() {
		return &ValidationError{Field: "hourly_rate", Message: "must not be negative"}
	}
	if err := requireFutureDate(r.WorkDate, now); err != nil {
		return err
	}
	return sameKindConflict(ctx, w, r)
}

func approveOvertime(_ context.Context, _ *Workflow, r *Request, rec *TimeRecord) error {
	d := r.Overtime
	rec.OvertimeMinutes += d.EndMinute - d.StartMinute
	rec.OvertimeHours = rec.OvertimeHours.Add(d.TotalHours)
	rec.OvertimeAmount = rec.OvertimeAmount.Add(d.TotalAmount)
	return nil
}

func rejectOvertime(_ context.Context, _ *Workflow, r *Request, rec *TimeRecord) error {
	d := r.Overtime
	rec.OvertimeMinutes -= d.EndMinute - d.StartMinute
	rec.OvertimeHours = rec.OvertimeHours.Sub(d.TotalHours)
	rec.OvertimeAmount = rec.OvertimeAmount.Sub(d.TotalAmount)
	return nil
}

// =============================================================================
// LATE / EARLY
// =============================================================================

func validateLateEarly(ctx context.Context, w *Workflow, r *Request, now time.Time) error {
	d := r.LateEarly
	if d == nil {
		return &ValidationError{Field: "late_early", Message: "missing detail"}
	}
	switch d.Type {
	case LateEarlyLate, LateEarlyEarly, LateEarlyBoth:
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown type %q", d.Type)}
	}
	if (d.Type == LateEarlyLate || d.Type == LateEarlyBoth) && d.LateMinutes <= 0 {
		return &ValidationError{Field: "late_minutes", Message: "required for LATE and BOTH"}
	}
	if (d.Type == LateEarlyEarly || d.Type == LateEarlyBoth) && d.EarlyMinutes <= 0 {
		return &ValidationError{Field: "early_minutes", Message: "required for EARLY and BOTH"}
	}
	if err := requireFutureDate(r.WorkDate, now); err != nil {
		return err
	}
	return sameKindConflict(ctx, w, r)
}

func approveLateEarly(_ context.Context, _ *Workflow, r *Request, rec *TimeRecord) error {
	d := r.LateEarly
	if d.Type == LateEarlyLate || d.Type == LateEarlyBoth {
		rec.LateMinutes += d.LateMinutes
	}
	if d.Type == LateEarlyEarly || d.Type == LateEarlyBoth {
		rec.EarlyMinutes += d.EarlyMinutes
	}
	return nil
}

func rejectLateEarly(_ context.Context, _ *Workflow, r *Request, rec *TimeRecord) error {
	d := r.LateEarly
	if d.Type == LateEarlyLate || d.Type == LateEarlyBoth {
		rec.LateMinutes -= d.LateMinutes
	}
	if d.Type == LateEarlyEarly || d.Type == LateEarlyBoth {
		rec.EarlyMinutes -= d.EarlyMinutes
	}
	return nil
}

// =============================================================================
// FORGOT CHECK-IN
// =============================================================================

func validateForgotCheckin(ctx context.Context, w *Workflow, r *Request, now time.Time) error {
	d := r.ForgotCheckin
	if d == nil {
		return &ValidationError{Field: "forgot_checkin", Message: "missing detail"}
	}
	if d.CheckinMinute < 0 || d.CheckoutMinute > 24*60 || d.CheckinMinute >= d.CheckoutMinute {
		return &ValidationError{Field: "time_window", Message: "checkin must precede checkout within the day"}
	}
	// The only kind pointing backwards: you fix a day that already happened.
	if r.WorkDate.After(calendar.DateOf(now)) {
		return &ValidationError{Field: "work_date", Message: "must be today or in the past"}
	}
	return sameKindConflict(ctx, w, r)
}

func approveForgotCheckin(_ context.Context, _ *Workflow, r *Request, rec *TimeRecord) error {
	d := r.ForgotCheckin
	checkin, checkout := d.CheckinMinute, d.CheckoutMinute
	rec.CheckinMinute = &checkin
	rec.CheckoutMinute = &checkout
	rec.Recompute()
	return nil
}

func rejectForgotCheckin(_ context.Context, _ *Workflow, _ *Request, rec *TimeRecord) error {
	rec.CheckinMinute = nil
	rec.CheckoutMinute = nil
	rec.MorningMinutes = 0
	rec.AfternoonMinutes = 0
	rec.Recompute()
	return nil
}
