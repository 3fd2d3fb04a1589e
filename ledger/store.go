/*
store.go - Persistence interface for balances and the transaction log

The ledger never talks to a database directly; it talks to this interface.
Implementations: store/sqlite (production) and store/memory (tests/dev).

ATOMICITY:
  Every ledger operation is a read-modify-write over the balance row plus a
  transaction insert. WithTx must make that sequence atomic and serialized
  per employee: a lost update on the balance field is a correctness bug,
  not a performance bug.

DEDUCTION FLAG:
  The balance_deducted marker lives on the originating day-off request row,
  not in the transaction log, so the refund guard is an O(1) flag check
  rather than a log scan. The store owns reading and flipping that flag.
*/
package ledger

import "context"

// Store persists balances and transactions.
type Store interface {
	// Balance returns the employee's balance, or nil when none exists.
	Balance(ctx context.Context, employeeID string) (*Balance, error)

	// PutBalance inserts or updates a balance row.
	PutBalance(ctx context.Context, b *Balance) error

	// AppendTransaction appends to the log. Never updates.
	AppendTransaction(ctx context.Context, tx *Transaction) error

	// Transactions returns the employee's log, oldest first,
	// soft-deleted entries included (callers filter).
	Transactions(ctx context.Context, employeeID string) ([]*Transaction, error)

	// TransactionByReference returns the first non-deleted transaction
	// carrying the reference, or nil. Used as an idempotency probe by
	// the accrual job.
	TransactionByReference(ctx context.Context, employeeID, reference string) (*Transaction, error)

	// Deduction reports whether the referenced request has an active
	// deduction, and the transaction that recorded it.
	Deduction(ctx context.Context, reference string) (bool, string, error)

	// SetDeduction flips the referenced request's balance_deducted flag
	// and its pointer to the deducting transaction.
	SetDeduction(ctx context.Context, reference, transactionID string, deducted bool) error

	// WithTx runs fn atomically. fn receives a derived context that routes
	// every store call through the same transaction; any error rolls the
	// whole unit back. Nested WithTx joins the enclosing transaction, so
	// the workflow can wrap ledger calls in its own atomic unit.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
