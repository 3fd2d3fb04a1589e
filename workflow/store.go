/*
store.go - Persistence interface for requests and time records

The workflow store embeds the ledger store: approval side effects (status
change + ledger deduction + time record upsert) must commit or roll back as
one unit, so both live behind the same WithTx.

CONCURRENCY CONTRACT:
  WithTx serializes conflicting writers. Two concurrent approvals of the
  same request must not interleave: the second observes the non-PENDING
  status inside its own transaction and fails with ErrInvalidState rather
  than double-applying side effects.
*/
package workflow

import (
	"context"
	"time"

	"github.com/warp/attendance-engine/ledger"
)

// Store persists requests and time records alongside the ledger state.
type Store interface {
	ledger.Store

	// InsertRequest persists a new request row in its kind's table.
	InsertRequest(ctx context.Context, r *Request) error

	// Request loads a request by kind and ID, soft-deleted included
	// (callers check Deleted). Returns nil when absent.
	Request(ctx context.Context, kind Kind, id string) (*Request, error)

	// UpdateRequest rewrites an existing request row.
	UpdateRequest(ctx context.Context, r *Request) error

	// ActiveRequestOn returns the non-deleted request of the kind for
	// (employee, work date), or nil. Rejected requests count: they block
	// duplicates until edited or superseded.
	ActiveRequestOn(ctx context.Context, kind Kind, employeeID string, date time.Time) (*Request, error)

	// ApprovedRequestOn returns the approved, non-deleted request of the
	// kind for (employee, work date), or nil.
	ApprovedRequestOn(ctx context.Context, kind Kind, employeeID string, date time.Time) (*Request, error)

	// ApprovedRequestsInRange lists approved, non-deleted requests of the
	// kind in [from, to], ordered by work date.
	ApprovedRequestsInRange(ctx context.Context, kind Kind, employeeID string, from, to time.Time) ([]*Request, error)

	// TimeRecord returns the record for (employee, date), or nil.
	TimeRecord(ctx context.Context, employeeID string, date time.Time) (*TimeRecord, error)

	// PutTimeRecord inserts or updates a time record.
	PutTimeRecord(ctx context.Context, r *TimeRecord) error

	// TimeRecordsInRange lists records in [from, to], ordered by date.
	TimeRecordsInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*TimeRecord, error)
}
