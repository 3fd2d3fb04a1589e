/*
errors.go - Ledger error taxonomy

Sentinels are matched with errors.Is; structured errors carry the detail a
caller needs to report the failure. None of these are retryable: they are
business-rule violations, not transient faults.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a deduction exceeds the
	// available balance. The balance is left untouched.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrNotDeducted is returned when refunding a request that never
	// deducted, or that was already refunded. Guards double refunds.
	ErrNotDeducted = errors.New("request has no recorded deduction")

	// ErrBalanceNotFound is returned by read paths that do not lazily seed.
	ErrBalanceNotFound = errors.New("leave balance not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientBalanceError reports the shortfall of a failed deduction.
type InsufficientBalanceError struct {
	EmployeeID string
	LeaveType  LeaveType
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: available %s, requested %s",
		e.LeaveType, e.EmployeeID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
