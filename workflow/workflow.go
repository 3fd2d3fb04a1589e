/*
workflow.go - The shared request pipeline

PURPOSE:
  One pipeline for all five exception kinds:

  Create   active-employee check, kind validation, conflict checks,
           persist PENDING, ensure the date's time record + kind flag
  Approve  PENDING only; scope authorization; per-kind side effects
           (ledger deduction, time record mutation) in one transaction
  Reject   PENDING or APPROVED; refunds and reverses prior side effects
  Update   REJECTED only; full re-validation; back to PENDING
  Delete   PENDING only; soft delete (a pending request never had
           side effects, so nothing to reverse)

ATOMICITY:
  Every mutation runs inside store.WithTx. A failure anywhere in the
  side-effect sequence rolls back the status change too: the request is
  either fully approved or still PENDING, never in between. A concurrent
  second approval observes the committed status and fails ErrInvalidState.
*/
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/org"
)

// Workflow orchestrates the request lifecycle.
type Workflow struct {
	store     Store
	ledger    *ledger.Service
	directory org.Directory
	scopes    org.Resolver
	clock     calendar.Clock
}

func New(store Store, led *ledger.Service, directory org.Directory, scopes org.Resolver, clock calendar.Clock) *Workflow {
	return &Workflow{
		store:     store,
		ledger:    led,
		directory: directory,
		scopes:    scopes,
		clock:     clock,
	}
}

// =============================================================================
// CREATION INPUTS
// =============================================================================

type DayOffInput struct {
	EmployeeID string
	WorkDate   time.Time
	Duration   DayOffDuration
	Category   LeaveCategory
	Reason     string
}

type RemoteWorkInput struct {
	EmployeeID string
	WorkDate   time.Time
	Reason     string
}

type OvertimeInput struct {
	EmployeeID  string
	WorkDate    time.Time
	StartMinute int
	EndMinute   int
	HourlyRate  decimal.Decimal
}

type LateEarlyInput struct {
	EmployeeID   string
	WorkDate     time.Time
	Type         LateEarlyType
	LateMinutes  int
	EarlyMinutes int
	Reason       string
}

type ForgotCheckinInput struct {
	EmployeeID     string
	WorkDate       time.Time
	CheckinMinute  int
	CheckoutMinute int
	Reason         string
}

func (in DayOffInput) toRequest() *Request {
	return &Request{
		Kind:       KindDayOff,
		EmployeeID: in.EmployeeID,
		WorkDate:   calendar.DateOf(in.WorkDate),
		DayOff: &DayOffDetail{
			Duration: in.Duration,
			Category: in.Category,
			Reason:   in.Reason,
		},
	}
}

func (in RemoteWorkInput) toRequest() *Request {
	return &Request{
		Kind:       KindRemoteWork,
		EmployeeID: in.EmployeeID,
		WorkDate:   calendar.DateOf(in.WorkDate),
		RemoteWork: &RemoteWorkDetail{Reason: in.Reason},
	}
}

func (in OvertimeInput) toRequest() *Request {
	minutes := in.EndMinute - in.StartMinute
	hours := decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
	return &Request{
		Kind:       KindOvertime,
		EmployeeID: in.EmployeeID,
		WorkDate:   calendar.DateOf(in.WorkDate),
		Overtime: &OvertimeDetail{
			StartMinute: in.StartMinute,
			EndMinute:   in.EndMinute,
			HourlyRate:  in.HourlyRate,
			TotalHours:  hours,
			TotalAmount: hours.Mul(in.HourlyRate),
		},
	}
}

func (in LateEarlyInput) toRequest() *Request {
	return &Request{
		Kind:       KindLateEarly,
		EmployeeID: in.EmployeeID,
		WorkDate:   calendar.DateOf(in.WorkDate),
		LateEarly: &LateEarlyDetail{
			Type:         in.Type,
			LateMinutes:  in.LateMinutes,
			EarlyMinutes: in.EarlyMinutes,
			Reason:       in.Reason,
		},
	}
}

func (in ForgotCheckinInput) toRequest() *Request {
	return &Request{
		Kind:       KindForgotCheckin,
		EmployeeID: in.EmployeeID,
		WorkDate:   calendar.DateOf(in.WorkDate),
		ForgotCheckin: &ForgotCheckinDetail{
			CheckinMinute:  in.CheckinMinute,
			CheckoutMinute: in.CheckoutMinute,
			Reason:         in.Reason,
		},
	}
}

// =============================================================================
// CREATE
// =============================================================================

func (w *Workflow) CreateDayOff(ctx context.Context, in DayOffInput) (*Request, error) {
	return w.create(ctx, in.toRequest())
}

func (w *Workflow) CreateRemoteWork(ctx context.Context, in RemoteWorkInput) (*Request, error) {
	return w.create(ctx, in.toRequest())
}

func (w *Workflow) CreateOvertime(ctx context.Context, in OvertimeInput) (*Request, error) {
	return w.create(ctx, in.toRequest())
}

func (w *Workflow) CreateLateEarly(ctx context.Context, in LateEarlyInput) (*Request, error) {
	return w.create(ctx, in.toRequest())
}

func (w *Workflow) CreateForgotCheckin(ctx context.Context, in ForgotCheckinInput) (*Request, error) {
	return w.create(ctx, in.toRequest())
}

func (w *Workflow) create(ctx context.Context, r *Request) (*Request, error) {
	rs, err := rulesFor(r.Kind)
	if err != nil {
		return nil, err
	}

	active, err := w.directory.IsActiveEmployee(ctx, r.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("employee %s: %w", r.EmployeeID, ErrNotFound)
	}

	now := w.clock.Now()
	err = w.store.WithTx(ctx, func(ctx context.Context) error {
		if err := rs.validate(ctx, w, r, now); err != nil {
			return err
		}

		r.ID = uuid.NewString()
		r.Status = StatusPending
		r.CreatedAt = now
		r.UpdatedAt = now
		if err := w.store.InsertRequest(ctx, r); err != nil {
			return err
		}

		// The work date now has an attendance-affecting event.
		rec, err := w.ensureTimeRecord(ctx, r.EmployeeID, r.WorkDate, now)
		if err != nil {
			return err
		}
		rec.setKindFlag(r.Kind, true)
		rec.UpdatedAt = now
		return w.store.PutTimeRecord(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// Approve transitions a PENDING request to APPROVED and applies its side
// effects atomically.
func (w *Workflow) Approve(ctx context.Context, kind Kind, requestID, approverID string) (*Request, error) {
	rs, err := rulesFor(kind)
	if err != nil {
		return nil, err
	}

	var out *Request
	err = w.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := w.load(ctx, kind, requestID)
		if err != nil {
			return err
		}
		if r.Status != StatusPending {
			return &StateError{RequestID: requestID, Status: r.Status, Action: "approve"}
		}
		if err := w.authorize(ctx, approverID, r.EmployeeID); err != nil {
			return err
		}

		now := w.clock.Now()
		r.Status = StatusApproved
		r.ApproverID = approverID
		r.ApprovedAt = &now
		r.RejectedReason = ""
		r.UpdatedAt = now

		rec, err := w.ensureTimeRecord(ctx, r.EmployeeID, r.WorkDate, now)
		if err != nil {
			return err
		}
		if err := rs.onApprove(ctx, w, r, rec); err != nil {
			return err
		}
		rec.UpdatedAt = now
		if err := w.store.PutTimeRecord(ctx, rec); err != nil {
			return err
		}
		if err := w.store.UpdateRequest(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reject transitions a PENDING or APPROVED request to REJECTED. For a
// previously approved request the side effects are reversed, including the
// ledger refund for a deducted day-off.
func (w *Workflow) Reject(ctx context.Context, kind Kind, requestID, approverID, reason string) (*Request, error) {
	rs, err := rulesFor(kind)
	if err != nil {
		return nil, err
	}

	var out *Request
	err = w.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := w.load(ctx, kind, requestID)
		if err != nil {
			return err
		}
		if r.Status != StatusPending && r.Status != StatusApproved {
			return &StateError{RequestID: requestID, Status: r.Status, Action: "reject"}
		}
		if err := w.authorize(ctx, approverID, r.EmployeeID); err != nil {
			return err
		}

		now := w.clock.Now()
		wasApproved := r.Status == StatusApproved
		r.Status = StatusRejected
		r.ApproverID = approverID
		r.RejectedReason = reason
		r.UpdatedAt = now

		if wasApproved {
			rec, err := w.ensureTimeRecord(ctx, r.EmployeeID, r.WorkDate, now)
			if err != nil {
				return err
			}
			if err := rs.onReject(ctx, w, r, rec); err != nil {
				return err
			}
			rec.UpdatedAt = now
			if err := w.store.PutTimeRecord(ctx, rec); err != nil {
				return err
			}
		}
		if err := w.store.UpdateRequest(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// UPDATE (edit while rejected)
// =============================================================================

func (w *Workflow) UpdateDayOff(ctx context.Context, requestID string, in DayOffInput) (*Request, error) {
	return w.update(ctx, KindDayOff, requestID, in.toRequest())
}

func (w *Workflow) UpdateRemoteWork(ctx context.Context, requestID string, in RemoteWorkInput) (*Request, error) {
	return w.update(ctx, KindRemoteWork, requestID, in.toRequest())
}

func (w *Workflow) UpdateOvertime(ctx context.Context, requestID string, in OvertimeInput) (*Request, error) {
	return w.update(ctx, KindOvertime, requestID, in.toRequest())
}

func (w *Workflow) UpdateLateEarly(ctx context.Context, requestID string, in LateEarlyInput) (*Request, error) {
	return w.update(ctx, KindLateEarly, requestID, in.toRequest())
}

func (w *Workflow) UpdateForgotCheckin(ctx context.Context, requestID string, in ForgotCheckinInput) (*Request, error) {
	return w.update(ctx, KindForgotCheckin, requestID, in.toRequest())
}

// update re-validates a REJECTED request with fresh fields and returns it
// to PENDING. The employee cannot change: a request belongs to who filed it.
func (w *Workflow) update(ctx context.Context, kind Kind, requestID string, next *Request) (*Request, error) {
	rs, err := rulesFor(kind)
	if err != nil {
		return nil, err
	}

	now := w.clock.Now()
	var out *Request
	err = w.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := w.load(ctx, kind, requestID)
		if err != nil {
			return err
		}
		if r.Status != StatusRejected {
			return &StateError{RequestID: requestID, Status: r.Status, Action: "edit"}
		}
		if next.EmployeeID != "" && next.EmployeeID != r.EmployeeID {
			return &ValidationError{Field: "employee_id", Message: "cannot be changed"}
		}

		previousDate := r.WorkDate
		r.WorkDate = next.WorkDate
		r.DayOff = next.DayOff
		r.RemoteWork = next.RemoteWork
		r.Overtime = next.Overtime
		r.LateEarly = next.LateEarly
		r.ForgotCheckin = next.ForgotCheckin

		if err := rs.validate(ctx, w, r, now); err != nil {
			return err
		}

		r.Status = StatusPending
		r.ApproverID = ""
		r.ApprovedAt = nil
		r.RejectedReason = ""
		r.UpdatedAt = now
		if err := w.store.UpdateRequest(ctx, r); err != nil {
			return err
		}

		if !calendar.SameDay(previousDate, r.WorkDate) {
			if prev, err := w.store.TimeRecord(ctx, r.EmployeeID, previousDate); err != nil {
				return err
			} else if prev != nil {
				prev.setKindFlag(kind, false)
				prev.UpdatedAt = now
				if err := w.store.PutTimeRecord(ctx, prev); err != nil {
					return err
				}
			}
		}
		rec, err := w.ensureTimeRecord(ctx, r.EmployeeID, r.WorkDate, now)
		if err != nil {
			return err
		}
		rec.setKindFlag(kind, true)
		rec.UpdatedAt = now
		if err := w.store.PutTimeRecord(ctx, rec); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete soft-deletes a PENDING request. Pending requests never had side
// effects, so neither the ledger nor the time record is touched.
func (w *Workflow) Delete(ctx context.Context, kind Kind, requestID string) error {
	return w.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := w.load(ctx, kind, requestID)
		if err != nil {
			return err
		}
		if r.Status != StatusPending {
			return &StateError{RequestID: requestID, Status: r.Status, Action: "delete"}
		}
		r.Deleted = true
		r.UpdatedAt = w.clock.Now()
		return w.store.UpdateRequest(ctx, r)
	})
}

// =============================================================================
// RAW CLOCK EVENTS
// =============================================================================

// CheckIn records a raw check-in for the employee's current day, creating
// the day's time record when it is the first event.
func (w *Workflow) CheckIn(ctx context.Context, employeeID string) (*TimeRecord, error) {
	return w.clockEvent(ctx, employeeID, true)
}

// CheckOut records a raw check-out for the employee's current day.
func (w *Workflow) CheckOut(ctx context.Context, employeeID string) (*TimeRecord, error) {
	return w.clockEvent(ctx, employeeID, false)
}

func (w *Workflow) clockEvent(ctx context.Context, employeeID string, checkin bool) (*TimeRecord, error) {
	active, err := w.directory.IsActiveEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("employee %s: %w", employeeID, ErrNotFound)
	}

	now := w.clock.Now()
	minute := now.Hour()*60 + now.Minute()
	var out *TimeRecord
	err = w.store.WithTx(ctx, func(ctx context.Context) error {
		rec, err := w.ensureTimeRecord(ctx, employeeID, calendar.DateOf(now), now)
		if err != nil {
			return err
		}
		if checkin {
			if rec.CheckinMinute == nil {
				rec.CheckinMinute = &minute
			}
		} else {
			if rec.CheckinMinute == nil {
				return &ValidationError{Field: "checkout", Message: "no check-in recorded for today"}
			}
			rec.CheckoutMinute = &minute
		}
		rec.Recompute()
		rec.UpdatedAt = now
		if err := w.store.PutTimeRecord(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Request loads a request for read access.
func (w *Workflow) Request(ctx context.Context, kind Kind, requestID string) (*Request, error) {
	return w.load(ctx, kind, requestID)
}

func (w *Workflow) load(ctx context.Context, kind Kind, requestID string) (*Request, error) {
	r, err := w.store.Request(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.Deleted {
		return nil, fmt.Errorf("%s request %s: %w", kind, requestID, ErrNotFound)
	}
	return r, nil
}

func (w *Workflow) ensureTimeRecord(ctx context.Context, employeeID string, date time.Time, now time.Time) (*TimeRecord, error) {
	rec, err := w.store.TimeRecord(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	rec = &TimeRecord{
		EmployeeID:     employeeID,
		WorkDate:       calendar.DateOf(date),
		Status:         RecordPending,
		OvertimeHours:  decimal.Zero,
		OvertimeAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := w.store.PutTimeRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
