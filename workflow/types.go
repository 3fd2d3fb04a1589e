/*
Package workflow implements the attendance-exception request lifecycle.

PURPOSE:
  Five exception kinds (day-off, remote-work, overtime, late-early,
  forgot-checkin) share one pipeline: validate, persist PENDING, approve or
  reject under scope authorization, apply side effects to the ledger and
  the per-day time record, and reverse those effects on rejection.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request: common envelope, one-of detail payload per kind
  - Detail payloads: the kind-specific fields
  - Office-hours constants shared with validation and the aggregation
    engine's session math

LIFECYCLE:
  PENDING -> APPROVED | REJECTED; REJECTED -> (edit) -> PENDING;
  APPROVED -> (retroactive) REJECTED; delete only from PENDING.

SEE ALSO:
  - rules.go: per-kind validation and side effects
  - workflow.go: the shared pipeline
*/
package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OFFICE HOURS - minutes since midnight
// =============================================================================

const (
	MorningStartMinute   = 8 * 60            // 08:00
	MorningEndMinute     = 12 * 60           // 12:00
	AfternoonStartMinute = 13*60 + 30        // 13:30
	AfternoonEndMinute   = 17*60 + 30        // 17:30
	HalfDayMinutes       = 4 * 60            // one session
	FullDayMinutes       = 2 * HalfDayMinutes
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Kind identifies the exception type of a request.
type Kind string

const (
	KindDayOff        Kind = "day_off"
	KindRemoteWork    Kind = "remote_work"
	KindOvertime      Kind = "overtime"
	KindLateEarly     Kind = "late_early"
	KindForgotCheckin Kind = "forgot_checkin"
)

// Kinds lists all exception kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindDayOff, KindRemoteWork, KindOvertime, KindLateEarly, KindForgotCheckin}
}

// ParseKind validates a kind string from the outside world.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Status is the request lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// DayOffDuration selects how much of the work date is off.
type DayOffDuration string

const (
	DurationFullDay   DayOffDuration = "FULL_DAY"
	DurationMorning   DayOffDuration = "MORNING"
	DurationAfternoon DayOffDuration = "AFTERNOON"
)

// Days returns the leave-day cost of the duration.
func (d DayOffDuration) Days() decimal.Decimal {
	if d == DurationFullDay {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(0.5)
}

// LeaveCategory classifies a day-off request. Only PAID consumes the leave
// balance; the others bypass the ledger entirely.
type LeaveCategory string

const (
	CategoryPaid      LeaveCategory = "PAID"
	CategoryUnpaid    LeaveCategory = "UNPAID"
	CategorySick      LeaveCategory = "SICK"
	CategoryMaternity LeaveCategory = "MATERNITY"
)

// ConsumesBalance reports whether approval of this category deducts from
// the paid-leave balance.
func (c LeaveCategory) ConsumesBalance() bool { return c == CategoryPaid }

// LateEarlyType selects which minute fields a late-early request must carry.
type LateEarlyType string

const (
	LateEarlyLate  LateEarlyType = "LATE"
	LateEarlyEarly LateEarlyType = "EARLY"
	LateEarlyBoth  LateEarlyType = "BOTH"
)

// =============================================================================
// REQUEST - common envelope with one-of detail
// =============================================================================

type Request struct {
	ID             string
	Kind           Kind
	EmployeeID     string
	WorkDate       time.Time // day, midnight UTC
	Status         Status
	ApproverID     string
	ApprovedAt     *time.Time
	RejectedReason string
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Exactly one of these matches Kind.
	DayOff        *DayOffDetail
	RemoteWork    *RemoteWorkDetail
	Overtime      *OvertimeDetail
	LateEarly     *LateEarlyDetail
	ForgotCheckin *ForgotCheckinDetail
}

type DayOffDetail struct {
	Duration DayOffDuration
	Category LeaveCategory
	Reason   string

	// Deduction marker: set by the ledger when approval deducted the
	// balance, cleared on refund. Makes the refund guard an O(1) check.
	BalanceDeducted bool
	DeductionTxID   string
}

type RemoteWorkDetail struct {
	Reason string
}

type OvertimeDetail struct {
	StartMinute int // minutes since midnight on the work date
	EndMinute   int
	HourlyRate  decimal.Decimal
	TotalHours  decimal.Decimal
	TotalAmount decimal.Decimal
}

type LateEarlyDetail struct {
	Type         LateEarlyType
	LateMinutes  int
	EarlyMinutes int
	Reason       string
}

type ForgotCheckinDetail struct {
	CheckinMinute  int
	CheckoutMinute int
	Reason         string
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	cp := *r
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		cp.ApprovedAt = &t
	}
	if r.DayOff != nil {
		d := *r.DayOff
		cp.DayOff = &d
	}
	if r.RemoteWork != nil {
		d := *r.RemoteWork
		cp.RemoteWork = &d
	}
	if r.Overtime != nil {
		d := *r.Overtime
		cp.Overtime = &d
	}
	if r.LateEarly != nil {
		d := *r.LateEarly
		cp.LateEarly = &d
	}
	if r.ForgotCheckin != nil {
		d := *r.ForgotCheckin
		cp.ForgotCheckin = &d
	}
	return &cp
}
