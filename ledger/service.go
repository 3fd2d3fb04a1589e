/*
service.go - Ledger operations

PURPOSE:
  The only code allowed to mutate balances. Each operation is one atomic
  unit: read the balance row, change it, append exactly one transaction
  with a BalanceAfter snapshot (the annual reset appends two).

INVARIANT ENFORCED BY CONSTRUCTION:
  The latest transaction's BalanceAfter for a leave type always equals the
  current balance field, and the balance equals the sum of all non-deleted
  transaction amounts for that type.

REVERSAL:
  Deduct marks the originating request with the deducting transaction;
  Refund requires that marker, reverses symmetrically, and clears it.
  Calling Refund twice therefore fails the second time with ErrNotDeducted.

SCHEDULED WORK:
  AccrueMonthly and ResetAnnual are plain callable operations. Whatever
  triggers them (see api/scheduler.go) carries no business logic; both are
  idempotent per period so a duplicate trigger is harmless.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/calendar"
)

// Service exposes the ledger operations. All methods are safe for
// concurrent use; serialization happens in the store's WithTx.
type Service struct {
	store Store
	clock calendar.Clock
}

func NewService(store Store, clock calendar.Clock) *Service {
	return &Service{store: store, clock: clock}
}

// =============================================================================
// READ / SEED
// =============================================================================

// GetOrCreate returns the employee's balance, seeding a zero balance with
// the default annual quota on first access. Idempotent.
func (s *Service) GetOrCreate(ctx context.Context, employeeID string) (*Balance, error) {
	var out *Balance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.getOrCreate(ctx, employeeID)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (s *Service) getOrCreate(ctx context.Context, employeeID string) (*Balance, error) {
	b, err := s.store.Balance(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	now := s.clock.Now()
	b = &Balance{
		EmployeeID:  employeeID,
		Paid:        decimal.Zero,
		Unpaid:      decimal.Zero,
		AnnualQuota: DefaultAnnualQuota,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutBalance(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Transactions returns the employee's non-deleted transaction log.
func (s *Service) Transactions(ctx context.Context, employeeID string) ([]*Transaction, error) {
	all, err := s.store.Transactions(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out := make([]*Transaction, 0, len(all))
	for _, tx := range all {
		if !tx.Deleted {
			out = append(out, tx)
		}
	}
	return out, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Add increases the matching balance field and records one transaction.
func (s *Service) Add(ctx context.Context, employeeID string, amount decimal.Decimal, lt LeaveType, kind TransactionKind, description, reference string) (*Balance, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("add amount must be positive, got %s", amount)
	}
	var out *Balance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		b, _, err := s.apply(ctx, employeeID, amount, lt, kind, description, reference)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// Deduct decreases the balance, failing with ErrInsufficientBalance when
// the field cannot cover the amount, and marks the source request as
// deducted so a later refund is traceable and idempotent.
func (s *Service) Deduct(ctx context.Context, employeeID string, amount decimal.Decimal, lt LeaveType, reference, description string) (*Balance, *Transaction, error) {
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("deduct amount must be positive, got %s", amount)
	}
	var (
		outB  *Balance
		outTx *Transaction
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.getOrCreate(ctx, employeeID)
		if err != nil {
			return err
		}
		if b.Of(lt).LessThan(amount) {
			return &InsufficientBalanceError{
				EmployeeID: employeeID,
				LeaveType:  lt,
				Available:  b.Of(lt),
				Requested:  amount,
			}
		}
		b, tx, err := s.apply(ctx, employeeID, amount.Neg(), lt, KindUsed, description, reference)
		if err != nil {
			return err
		}
		if err := s.store.SetDeduction(ctx, reference, tx.ID, true); err != nil {
			return err
		}
		outB, outTx = b, tx
		return nil
	})
	return outB, outTx, err
}

// Refund reverses a previous deduction symmetrically. Fails with
// ErrNotDeducted when the source request carries no active deduction.
func (s *Service) Refund(ctx context.Context, employeeID string, amount decimal.Decimal, lt LeaveType, reference, description string) (*Balance, error) {
	var out *Balance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		deducted, _, err := s.store.Deduction(ctx, reference)
		if err != nil {
			return err
		}
		if !deducted {
			return fmt.Errorf("refund %s: %w", reference, ErrNotDeducted)
		}
		b, _, err := s.apply(ctx, employeeID, amount, lt, KindAdjusted, description, reference)
		if err != nil {
			return err
		}
		if err := s.store.SetDeduction(ctx, reference, "", false); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// AccrueMonthly grants the monthly paid-day accrual for the clock's current
// month. Idempotent: a second call in the same month is a no-op.
func (s *Service) AccrueMonthly(ctx context.Context, employeeID string) (*Balance, error) {
	now := s.clock.Now()
	reference := fmt.Sprintf("accrual:%04d-%02d", now.Year(), now.Month())
	var out *Balance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.store.TransactionByReference(ctx, employeeID, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			b, err := s.getOrCreate(ctx, employeeID)
			if err != nil {
				return err
			}
			out = b
			return nil
		}
		b, _, err := s.apply(ctx, employeeID, MonthlyAccrual, LeavePaid, KindGranted,
			fmt.Sprintf("monthly accrual %04d-%02d", now.Year(), now.Month()), reference)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// ResetAnnual closes the paid balance for the year: keeps
// min(balance, MaxCarryOver), forfeits the rest, and records the close and
// re-open as an EXPIRED / CARRIED_OVER transaction pair. Idempotent per
// calendar year via LastResetAt.
func (s *Service) ResetAnnual(ctx context.Context, employeeID string) (*Balance, error) {
	now := s.clock.Now()
	var out *Balance
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.getOrCreate(ctx, employeeID)
		if err != nil {
			return err
		}
		if b.LastResetAt != nil && b.LastResetAt.Year() == now.Year() {
			out = b
			return nil
		}

		carry := decimal.Min(b.Paid, MaxCarryOver)
		forfeited := b.Paid.Sub(carry)

		// Close the year: the whole paid balance leaves the field.
		if b.Paid.IsPositive() {
			b, _, err = s.apply(ctx, employeeID, b.Paid.Neg(), LeavePaid, KindExpired,
				fmt.Sprintf("annual reset %d: closed year, forfeited %s", now.Year(), forfeited), "")
			if err != nil {
				return err
			}
		}

		// Re-open with the kept portion.
		if carry.IsPositive() {
			b, _, err = s.apply(ctx, employeeID, carry, LeavePaid, KindCarriedOver,
				fmt.Sprintf("annual reset %d: carried over %s", now.Year(), carry), "")
			if err != nil {
				return err
			}
		}

		b.CarryOverDays = carry
		b.LastResetAt = &now
		b.UpdatedAt = now
		if err := s.store.PutBalance(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// apply is the single write path: adjust the field, persist the balance,
// append one transaction with the post-change snapshot.
func (s *Service) apply(ctx context.Context, employeeID string, delta decimal.Decimal, lt LeaveType, kind TransactionKind, description, reference string) (*Balance, *Transaction, error) {
	b, err := s.getOrCreate(ctx, employeeID)
	if err != nil {
		return nil, nil, err
	}
	next := b.Of(lt).Add(delta)
	if next.IsNegative() {
		return nil, nil, &InsufficientBalanceError{
			EmployeeID: employeeID,
			LeaveType:  lt,
			Available:  b.Of(lt),
			Requested:  delta.Abs(),
		}
	}
	now := s.clock.Now()
	b.set(lt, next)
	b.UpdatedAt = now
	if err := s.store.PutBalance(ctx, b); err != nil {
		return nil, nil, err
	}
	tx := &Transaction{
		ID:           uuid.NewString(),
		EmployeeID:   employeeID,
		Kind:         kind,
		LeaveType:    lt,
		Amount:       delta,
		BalanceAfter: next,
		Reference:    reference,
		Description:  description,
		CreatedAt:    now,
	}
	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		return nil, nil, err
	}
	return b, tx, nil
}
