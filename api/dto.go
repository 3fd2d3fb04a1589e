/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATE/TIME CONVENTIONS:
  - Work dates: "2006-01-02"
  - Instants: RFC3339
  - Times of day: minutes since midnight (integers)
  - Decimal quantities: strings, to avoid float drift in clients
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/aggregate"
	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/workflow"
)

const dateLayout = "2006-01-02"

// =============================================================================
// LEDGER
// =============================================================================

type BalanceDTO struct {
	EmployeeID    string  `json:"employee_id"`
	Paid          string  `json:"paid_balance"`
	Unpaid        string  `json:"unpaid_balance"`
	AnnualQuota   string  `json:"annual_quota"`
	CarryOverDays string  `json:"carry_over_days"`
	LastResetAt   *string `json:"last_reset_at,omitempty"`
	UpdatedAt     string  `json:"updated_at"`
}

func toBalanceDTO(b *ledger.Balance) BalanceDTO {
	dto := BalanceDTO{
		EmployeeID:    b.EmployeeID,
		Paid:          b.Paid.String(),
		Unpaid:        b.Unpaid.String(),
		AnnualQuota:   b.AnnualQuota.String(),
		CarryOverDays: b.CarryOverDays.String(),
		UpdatedAt:     b.UpdatedAt.Format(time.RFC3339),
	}
	if b.LastResetAt != nil {
		s := b.LastResetAt.Format(time.RFC3339)
		dto.LastResetAt = &s
	}
	return dto
}

type TransactionDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	Kind         string `json:"kind"`
	LeaveType    string `json:"leave_type"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
	Reference    string `json:"reference,omitempty"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toTransactionDTO(tx *ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:           tx.ID,
		EmployeeID:   tx.EmployeeID,
		Kind:         string(tx.Kind),
		LeaveType:    string(tx.LeaveType),
		Amount:       tx.Amount.String(),
		BalanceAfter: tx.BalanceAfter.String(),
		Reference:    tx.Reference,
		Description:  tx.Description,
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

// CreateRequestBody is the union of all per-kind creation fields; the kind
// in the URL selects which fields are read.
type CreateRequestBody struct {
	EmployeeID string `json:"employee_id"`
	WorkDate   string `json:"work_date"`

	// day_off
	Duration string `json:"duration,omitempty"`
	Category string `json:"category,omitempty"`

	// overtime
	StartMinute int    `json:"start_minute,omitempty"`
	EndMinute   int    `json:"end_minute,omitempty"`
	HourlyRate  string `json:"hourly_rate,omitempty"`

	// late_early
	Type         string `json:"type,omitempty"`
	LateMinutes  int    `json:"late_minutes,omitempty"`
	EarlyMinutes int    `json:"early_minutes,omitempty"`

	// forgot_checkin
	CheckinMinute  int `json:"checkin_minute,omitempty"`
	CheckoutMinute int `json:"checkout_minute,omitempty"`

	Reason string `json:"reason,omitempty"`
}

type DecisionBody struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason,omitempty"`
}

type RequestDTO struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	EmployeeID     string  `json:"employee_id"`
	WorkDate       string  `json:"work_date"`
	Status         string  `json:"status"`
	ApproverID     string  `json:"approver_id,omitempty"`
	ApprovedAt     *string `json:"approved_at,omitempty"`
	RejectedReason string  `json:"rejected_reason,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`

	DayOff        *DayOffDTO        `json:"day_off,omitempty"`
	RemoteWork    *RemoteWorkDTO    `json:"remote_work,omitempty"`
	Overtime      *OvertimeDTO      `json:"overtime,omitempty"`
	LateEarly     *LateEarlyDTO     `json:"late_early,omitempty"`
	ForgotCheckin *ForgotCheckinDTO `json:"forgot_checkin,omitempty"`
}

type DayOffDTO struct {
	Duration        string `json:"duration"`
	Category        string `json:"category"`
	Reason          string `json:"reason,omitempty"`
	BalanceDeducted bool   `json:"balance_deducted"`
}

type RemoteWorkDTO struct {
	Reason string `json:"reason,omitempty"`
}

type OvertimeDTO struct {
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	HourlyRate  string `json:"hourly_rate"`
	TotalHours  string `json:"total_hours"`
	TotalAmount string `json:"total_amount"`
}

type LateEarlyDTO struct {
	Type         string `json:"type"`
	LateMinutes  int    `json:"late_minutes"`
	EarlyMinutes int    `json:"early_minutes"`
	Reason       string `json:"reason,omitempty"`
}

type ForgotCheckinDTO struct {
	CheckinMinute  int    `json:"checkin_minute"`
	CheckoutMinute int    `json:"checkout_minute"`
	Reason         string `json:"reason,omitempty"`
}

func toRequestDTO(r *workflow.Request) RequestDTO {
	dto := RequestDTO{
		ID:             r.ID,
		Kind:           string(r.Kind),
		EmployeeID:     r.EmployeeID,
		WorkDate:       r.WorkDate.Format(dateLayout),
		Status:         string(r.Status),
		ApproverID:     r.ApproverID,
		RejectedReason: r.RejectedReason,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
	if r.ApprovedAt != nil {
		s := r.ApprovedAt.Format(time.RFC3339)
		dto.ApprovedAt = &s
	}
	if d := r.DayOff; d != nil {
		dto.DayOff = &DayOffDTO{
			Duration:        string(d.Duration),
			Category:        string(d.Category),
			Reason:          d.Reason,
			BalanceDeducted: d.BalanceDeducted,
		}
	}
	if d := r.RemoteWork; d != nil {
		dto.RemoteWork = &RemoteWorkDTO{Reason: d.Reason}
	}
	if d := r.Overtime; d != nil {
		dto.Overtime = &OvertimeDTO{
			StartMinute: d.StartMinute,
			EndMinute:   d.EndMinute,
			HourlyRate:  d.HourlyRate.String(),
			TotalHours:  d.TotalHours.String(),
			TotalAmount: d.TotalAmount.String(),
		}
	}
	if d := r.LateEarly; d != nil {
		dto.LateEarly = &LateEarlyDTO{
			Type:         string(d.Type),
			LateMinutes:  d.LateMinutes,
			EarlyMinutes: d.EarlyMinutes,
			Reason:       d.Reason,
		}
	}
	if d := r.ForgotCheckin; d != nil {
		dto.ForgotCheckin = &ForgotCheckinDTO{
			CheckinMinute:  d.CheckinMinute,
			CheckoutMinute: d.CheckoutMinute,
			Reason:         d.Reason,
		}
	}
	return dto
}

// =============================================================================
// TIME RECORDS
// =============================================================================

type TimeRecordDTO struct {
	EmployeeID       string `json:"employee_id"`
	WorkDate         string `json:"work_date"`
	CheckinMinute    *int   `json:"checkin_minute,omitempty"`
	CheckoutMinute   *int   `json:"checkout_minute,omitempty"`
	MorningMinutes   int    `json:"morning_minutes"`
	AfternoonMinutes int    `json:"afternoon_minutes"`
	WorkMinutes      int    `json:"work_minutes"`
	Remote           bool   `json:"remote"`
	LateMinutes      int    `json:"late_minutes"`
	EarlyMinutes     int    `json:"early_minutes"`
	OvertimeMinutes  int    `json:"overtime_minutes"`
	Status           string `json:"status"`
	Complete         bool   `json:"complete"`
}

func toTimeRecordDTO(r *workflow.TimeRecord) TimeRecordDTO {
	return TimeRecordDTO{
		EmployeeID:       r.EmployeeID,
		WorkDate:         r.WorkDate.Format(dateLayout),
		CheckinMinute:    r.CheckinMinute,
		CheckoutMinute:   r.CheckoutMinute,
		MorningMinutes:   r.MorningMinutes,
		AfternoonMinutes: r.AfternoonMinutes,
		WorkMinutes:      r.WorkMinutes,
		Remote:           r.Remote,
		LateMinutes:      r.LateMinutes,
		EarlyMinutes:     r.EarlyMinutes,
		OvertimeMinutes:  r.OvertimeMinutes,
		Status:           string(r.Status),
		Complete:         r.Complete,
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

type SummaryDTO struct {
	EmployeeID       string `json:"employee_id"`
	Year             int    `json:"year"`
	Month            int    `json:"month"`
	ExpectedWorkDays int    `json:"expected_work_days"`
	TotalWorkDays    int    `json:"total_work_days"`
	TotalWorkHours   string `json:"total_work_hours"`
	TotalSessions    string `json:"total_sessions"`
	PaidLeaveDays    string `json:"paid_leave_days"`
	UnpaidLeaveDays  string `json:"unpaid_leave_days"`
	SickLeaveDays    string `json:"sick_leave_days"`
	OtherLeaveDays   string `json:"other_leave_days"`
	TotalLeaveDays   string `json:"total_leave_days"`
	AbsentDays       string `json:"absent_days"`
	LateCount        int    `json:"late_count"`
	EarlyCount       int    `json:"early_count"`
	LateMinutes      int    `json:"late_minutes"`
	EarlyMinutes     int    `json:"early_minutes"`
	RemoteDays       int    `json:"remote_days"`
	OvertimeHours    string `json:"overtime_hours"`
	OvertimeAmount   string `json:"overtime_amount"`
	AttendanceRate   string `json:"attendance_rate"`
	OnTimeRate       string `json:"on_time_rate"`
	Complete         bool   `json:"complete"`
	PaidBalance      string `json:"paid_balance"`
	UnpaidBalance    string `json:"unpaid_balance"`
}

func toSummaryDTO(s *aggregate.Summary) SummaryDTO {
	return SummaryDTO{
		EmployeeID:       s.EmployeeID,
		Year:             s.Year,
		Month:            int(s.Month),
		ExpectedWorkDays: s.ExpectedWorkDays,
		TotalWorkDays:    s.TotalWorkDays,
		TotalWorkHours:   s.TotalWorkHours.String(),
		TotalSessions:    s.TotalSessions.String(),
		PaidLeaveDays:    s.PaidLeaveDays.String(),
		UnpaidLeaveDays:  s.UnpaidLeaveDays.String(),
		SickLeaveDays:    s.SickLeaveDays.String(),
		OtherLeaveDays:   s.OtherLeaveDays.String(),
		TotalLeaveDays:   s.TotalLeaveDays.String(),
		AbsentDays:       s.AbsentDays.String(),
		LateCount:        s.LateCount,
		EarlyCount:       s.EarlyCount,
		LateMinutes:      s.LateMinutes,
		EarlyMinutes:     s.EarlyMinutes,
		RemoteDays:       s.RemoteDays,
		OvertimeHours:    s.OvertimeHours.String(),
		OvertimeAmount:   s.OvertimeAmount.String(),
		AttendanceRate:   s.AttendanceRate.String(),
		OnTimeRate:       s.OnTimeRate.String(),
		Complete:         s.Complete,
		PaidBalance:      s.PaidBalance.String(),
		UnpaidBalance:    s.UnpaidBalance.String(),
	}
}

type DayDetailDTO struct {
	Date            string `json:"date"`
	Class           string `json:"class"`
	Sessions        string `json:"sessions"`
	WorkMinutes     int    `json:"work_minutes"`
	Remote          bool   `json:"remote"`
	LateMinutes     int    `json:"late_minutes"`
	EarlyMinutes    int    `json:"early_minutes"`
	OvertimeMinutes int    `json:"overtime_minutes"`
}

type ViolationDTO struct {
	Date    string `json:"date"`
	Kind    string `json:"kind"`
	Minutes int    `json:"minutes"`
}

type LeaveEntryDTO struct {
	Date     string `json:"date"`
	Duration string `json:"duration"`
	Category string `json:"category"`
	Days     string `json:"days"`
	Reason   string `json:"reason,omitempty"`
}

type OvertimeEntryDTO struct {
	Date        string `json:"date"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Hours       string `json:"hours"`
	Amount      string `json:"amount"`
}

type DetailDTO struct {
	EmployeeID string             `json:"employee_id"`
	Year       int                `json:"year"`
	Month      int                `json:"month"`
	Days       []DayDetailDTO     `json:"days"`
	Violations []ViolationDTO     `json:"violations"`
	Leaves     []LeaveEntryDTO    `json:"leaves"`
	Overtimes  []OvertimeEntryDTO `json:"overtimes"`
}

func toDetailDTO(d *aggregate.Detail) DetailDTO {
	out := DetailDTO{
		EmployeeID: d.EmployeeID,
		Year:       d.Year,
		Month:      int(d.Month),
		Days:       make([]DayDetailDTO, 0, len(d.Days)),
		Violations: make([]ViolationDTO, 0, len(d.Violations)),
		Leaves:     make([]LeaveEntryDTO, 0, len(d.Leaves)),
		Overtimes:  make([]OvertimeEntryDTO, 0, len(d.Overtimes)),
	}
	for _, day := range d.Days {
		out.Days = append(out.Days, DayDetailDTO{
			Date:            day.Date.Format(dateLayout),
			Class:           string(day.Class),
			Sessions:        day.Sessions.String(),
			WorkMinutes:     day.WorkMinutes,
			Remote:          day.Remote,
			LateMinutes:     day.LateMinutes,
			EarlyMinutes:    day.EarlyMinutes,
			OvertimeMinutes: day.OvertimeMinutes,
		})
	}
	for _, v := range d.Violations {
		out.Violations = append(out.Violations, ViolationDTO{
			Date:    v.Date.Format(dateLayout),
			Kind:    string(v.Kind),
			Minutes: v.Minutes,
		})
	}
	for _, l := range d.Leaves {
		out.Leaves = append(out.Leaves, LeaveEntryDTO{
			Date:     l.Date.Format(dateLayout),
			Duration: string(l.Duration),
			Category: string(l.Category),
			Days:     l.Days.String(),
			Reason:   l.Reason,
		})
	}
	for _, o := range d.Overtimes {
		out.Overtimes = append(out.Overtimes, OvertimeEntryDTO{
			Date:        o.Date.Format(dateLayout),
			StartMinute: o.StartMinute,
			EndMinute:   o.EndMinute,
			Hours:       o.Hours.String(),
			Amount:      o.Amount.String(),
		})
	}
	return out
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

type CreateHolidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

func toHolidayDTO(h calendar.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		Date:      h.Date.Format(dateLayout),
		Name:      h.Name,
		Recurring: h.Recurring,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRate(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
