/*
timerecord.go - The authoritative per-employee-per-date attendance record

One TimeRecord exists per (employee, work date), created on the first
attendance-affecting event for that date: a raw check-in, or a request
touching the date. It is never deleted. The workflow is its only writer;
the aggregation engine reads it back to reconstruct the month.
*/
package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordStatus is the review state of a time record.
type RecordStatus string

const (
	RecordPending  RecordStatus = "PENDING"
	RecordApproved RecordStatus = "APPROVED"
	RecordRejected RecordStatus = "REJECTED"
)

type TimeRecord struct {
	EmployeeID string
	WorkDate   time.Time // day, midnight UTC

	// Raw clock events, minutes since midnight. Nil until recorded.
	CheckinMinute  *int
	CheckoutMinute *int

	// Minutes worked inside each office-hours window.
	MorningMinutes   int
	AfternoonMinutes int
	WorkMinutes      int

	// Halves satisfied by an approved day-off rather than presence.
	MorningOnLeave   bool
	AfternoonOnLeave bool

	Remote bool

	// Approved violations for the date.
	LateMinutes  int
	EarlyMinutes int

	// Overtime aggregate across approved overtime requests.
	OvertimeMinutes int
	OvertimeHours   decimal.Decimal
	OvertimeAmount  decimal.Decimal

	// Which exception kinds have touched this date.
	HasDayOffRequest        bool
	HasRemoteWorkRequest    bool
	HasOvertimeRequest      bool
	HasLateEarlyRequest     bool
	HasForgotCheckinRequest bool

	Status    RecordStatus
	Complete  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MorningSatisfied reports whether the morning session counts, either by
// recorded minutes or by approved leave covering it.
func (r *TimeRecord) MorningSatisfied() bool {
	return r.MorningOnLeave || r.MorningMinutes >= HalfDayMinutes
}

// AfternoonSatisfied is the afternoon counterpart of MorningSatisfied.
func (r *TimeRecord) AfternoonSatisfied() bool {
	return r.AfternoonOnLeave || r.AfternoonMinutes >= HalfDayMinutes
}

// Recompute refreshes the derived fields after any mutation.
func (r *TimeRecord) Recompute() {
	if r.CheckinMinute != nil && r.CheckoutMinute != nil {
		r.MorningMinutes, r.AfternoonMinutes = officeWindowMinutes(*r.CheckinMinute, *r.CheckoutMinute)
	}
	r.WorkMinutes = r.MorningMinutes + r.AfternoonMinutes
	r.Complete = r.MorningSatisfied() && r.AfternoonSatisfied()
}

func (r *TimeRecord) Clone() *TimeRecord {
	cp := *r
	if r.CheckinMinute != nil {
		v := *r.CheckinMinute
		cp.CheckinMinute = &v
	}
	if r.CheckoutMinute != nil {
		v := *r.CheckoutMinute
		cp.CheckoutMinute = &v
	}
	return &cp
}

// setKindFlag marks which exception kind touched this record.
func (r *TimeRecord) setKindFlag(kind Kind, v bool) {
	switch kind {
	case KindDayOff:
		r.HasDayOffRequest = v
	case KindRemoteWork:
		r.HasRemoteWorkRequest = v
	case KindOvertime:
		r.HasOvertimeRequest = v
	case KindLateEarly:
		r.HasLateEarlyRequest = v
	case KindForgotCheckin:
		r.HasForgotCheckinRequest = v
	}
}

// officeWindowMinutes projects a checkin/checkout span onto the two office
// windows and returns the minutes worked inside each.
func officeWindowMinutes(checkin, checkout int) (morning, afternoon int) {
	morning = overlap(checkin, checkout, MorningStartMinute, MorningEndMinute)
	afternoon = overlap(checkin, checkout, AfternoonStartMinute, AfternoonEndMinute)
	return morning, afternoon
}

func overlap(aStart, aEnd, bStart, bEnd int) int {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	return end - start
}
