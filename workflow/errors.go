/*
errors.go - Workflow error taxonomy

All are surfaced to the caller without retry. Authorization failures
precede any mutation; state and conflict failures roll the enclosing
transaction back, so no partial effect is ever visible.
*/
package workflow

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNotFound: employee, request, or referenced entity absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: action attempted on a request not in the required
	// status. A caller-logic error, never retried.
	ErrInvalidState = errors.New("invalid request state")

	// ErrConflict: a clashing request already exists for the date.
	ErrConflict = errors.New("conflicting request")

	// ErrForbidden: approver may not act on this requester.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation: the request payload violates a kind-specific rule.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ConflictError identifies the clashing record.
type ConflictError struct {
	Kind       Kind
	EmployeeID string
	WorkDate   time.Time
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s request already exists for %s on %s (id: %s)",
		e.Kind, e.EmployeeID, e.WorkDate.Format("2006-01-02"), e.ExistingID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StateError reports the status that blocked a transition.
type StateError struct {
	RequestID string
	Status    Status
	Action    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s", e.Action, e.RequestID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// ValidationError carries the specific rule that failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
