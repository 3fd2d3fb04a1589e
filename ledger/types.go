/*
Package ledger implements the leave balance ledger.

PURPOSE:
  Owns the per-employee leave balance and its transaction log. Every balance
  mutation is paired with exactly one immutable Transaction carrying a
  BalanceAfter snapshot, so the log alone explains why a balance is what it
  is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Balance: one row per employee, paid + unpaid day balances
  - Transaction: append-only record of a single balance change
  - LeaveType / TransactionKind: the enumerations the log is bucketed by

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal, half-day granularity
  2. Immutability: transactions are never updated, only soft-deleted for
     audit correction
  3. Non-negative: balance fields can never go below zero; Deduct fails
     instead of clamping

SEE ALSO:
  - service.go: the four ledger operations plus accrual and annual reset
  - errors.go: InsufficientBalance / NotDeducted
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// LeaveType selects which balance field a transaction applies to.
type LeaveType string

const (
	LeavePaid   LeaveType = "PAID"
	LeaveUnpaid LeaveType = "UNPAID"
)

// TransactionKind classifies why a balance changed.
type TransactionKind string

const (
	KindGranted     TransactionKind = "GRANTED"      // accrual or manual grant
	KindUsed        TransactionKind = "USED"         // approved day-off consumption
	KindAdjusted    TransactionKind = "ADJUSTED"     // correction, including refunds
	KindCarriedOver TransactionKind = "CARRIED_OVER" // year-end carry-over into new year
	KindExpired     TransactionKind = "EXPIRED"      // year-end forfeiture
)

// =============================================================================
// QUOTA DEFAULTS
// =============================================================================

var (
	// DefaultAnnualQuota is the paid-leave entitlement seeded on first access.
	DefaultAnnualQuota = decimal.NewFromInt(36)

	// MonthlyAccrual is the paid-day grant applied once per calendar month.
	MonthlyAccrual = decimal.NewFromInt(3)

	// MaxCarryOver caps how many paid days survive the annual reset.
	MaxCarryOver = decimal.NewFromInt(12)
)

// =============================================================================
// BALANCE - One row per employee
// =============================================================================

type Balance struct {
	EmployeeID    string
	Paid          decimal.Decimal
	Unpaid        decimal.Decimal
	AnnualQuota   decimal.Decimal
	CarryOverDays decimal.Decimal
	LastResetAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Of returns the balance field for a leave type.
func (b *Balance) Of(lt LeaveType) decimal.Decimal {
	if lt == LeavePaid {
		return b.Paid
	}
	return b.Unpaid
}

func (b *Balance) set(lt LeaveType, v decimal.Decimal) {
	if lt == LeavePaid {
		b.Paid = v
	} else {
		b.Unpaid = v
	}
}

// Clone returns a deep copy. Stores hand out clones so callers cannot
// mutate persisted state behind the service's back.
func (b *Balance) Clone() *Balance {
	cp := *b
	if b.LastResetAt != nil {
		t := *b.LastResetAt
		cp.LastResetAt = &t
	}
	return &cp
}

// =============================================================================
// TRANSACTION - Append-only balance change record
// =============================================================================

type Transaction struct {
	ID           string
	EmployeeID   string
	Kind         TransactionKind
	LeaveType    LeaveType
	Amount       decimal.Decimal // signed; negative = consumption
	BalanceAfter decimal.Decimal // snapshot of the affected field post-change
	Reference    string          // originating request or job, optional
	Description  string
	Deleted      bool // soft delete for audit correction only
	CreatedAt    time.Time
}

func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}
