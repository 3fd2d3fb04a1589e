// Package memory provides the in-memory Store implementation (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/workflow"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements workflow.Store (and therefore ledger.Store and the
// aggregation engine's read surface) over mutex-guarded maps. Values are
// cloned on the way in and out, so callers never share memory with the
// store.
type Memory struct {
	mu sync.Mutex

	balances     map[string]*ledger.Balance
	transactions map[string][]*ledger.Transaction
	deductions   map[string]deduction
	requests     map[workflow.Kind]map[string]*workflow.Request
	records      map[recordKey]*workflow.TimeRecord
	holidays     map[string]calendar.Holiday
}

type deduction struct {
	TransactionID string
	Deducted      bool
}

type recordKey struct {
	EmployeeID string
	Date       time.Time
}

func New() *Memory {
	m := &Memory{
		balances:     make(map[string]*ledger.Balance),
		transactions: make(map[string][]*ledger.Transaction),
		deductions:   make(map[string]deduction),
		requests:     make(map[workflow.Kind]map[string]*workflow.Request),
		records:      make(map[recordKey]*workflow.TimeRecord),
		holidays:     make(map[string]calendar.Holiday),
	}
	for _, k := range workflow.Kinds() {
		m.requests[k] = make(map[string]*workflow.Request)
	}
	return m
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback, serialized by the store mutex
// =============================================================================

type ctxKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(ctxKey{}).(bool)
	return ok
}

// lock acquires the store mutex unless the context already runs inside
// WithTx, which holds it for the whole unit.
func (m *Memory) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// WithTx runs fn atomically: the store mutex is held for the whole unit,
// and any error restores the pre-call snapshot. A nested WithTx joins the
// enclosing transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, ctxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	balances     map[string]*ledger.Balance
	transactions map[string][]*ledger.Transaction
	deductions   map[string]deduction
	requests     map[workflow.Kind]map[string]*workflow.Request
	records      map[recordKey]*workflow.TimeRecord
	holidays     map[string]calendar.Holiday
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		balances:     make(map[string]*ledger.Balance, len(m.balances)),
		transactions: make(map[string][]*ledger.Transaction, len(m.transactions)),
		deductions:   make(map[string]deduction, len(m.deductions)),
		requests:     make(map[workflow.Kind]map[string]*workflow.Request, len(m.requests)),
		records:      make(map[recordKey]*workflow.TimeRecord, len(m.records)),
		holidays:     make(map[string]calendar.Holiday, len(m.holidays)),
	}
	for k, v := range m.balances {
		s.balances[k] = v.Clone()
	}
	for k, txs := range m.transactions {
		cp := make([]*ledger.Transaction, len(txs))
		for i, tx := range txs {
			cp[i] = tx.Clone()
		}
		s.transactions[k] = cp
	}
	for k, v := range m.deductions {
		s.deductions[k] = v
	}
	for kind, byID := range m.requests {
		cp := make(map[string]*workflow.Request, len(byID))
		for id, r := range byID {
			cp[id] = r.Clone()
		}
		s.requests[kind] = cp
	}
	for k, r := range m.records {
		s.records[k] = r.Clone()
	}
	for k, h := range m.holidays {
		s.holidays[k] = h
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.balances = s.balances
	m.transactions = s.transactions
	m.deductions = s.deductions
	m.requests = s.requests
	m.records = s.records
	m.holidays = s.holidays
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) Balance(ctx context.Context, employeeID string) (*ledger.Balance, error) {
	defer m.lock(ctx)()
	b, ok := m.balances[employeeID]
	if !ok {
		return nil, nil
	}
	return b.Clone(), nil
}

func (m *Memory) PutBalance(ctx context.Context, b *ledger.Balance) error {
	defer m.lock(ctx)()
	m.balances[b.EmployeeID] = b.Clone()
	return nil
}

func (m *Memory) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	defer m.lock(ctx)()
	m.transactions[tx.EmployeeID] = append(m.transactions[tx.EmployeeID], tx.Clone())
	return nil
}

func (m *Memory) Transactions(ctx context.Context, employeeID string) ([]*ledger.Transaction, error) {
	defer m.lock(ctx)()
	txs := m.transactions[employeeID]
	out := make([]*ledger.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx.Clone()
	}
	return out, nil
}

func (m *Memory) TransactionByReference(ctx context.Context, employeeID, reference string) (*ledger.Transaction, error) {
	defer m.lock(ctx)()
	for _, tx := range m.transactions[employeeID] {
		if !tx.Deleted && tx.Reference == reference {
			return tx.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) Deduction(ctx context.Context, reference string) (bool, string, error) {
	defer m.lock(ctx)()
	d := m.deductions[reference]
	return d.Deducted, d.TransactionID, nil
}

func (m *Memory) SetDeduction(ctx context.Context, reference, transactionID string, deducted bool) error {
	defer m.lock(ctx)()
	m.deductions[reference] = deduction{TransactionID: transactionID, Deducted: deducted}
	return nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) InsertRequest(ctx context.Context, r *workflow.Request) error {
	defer m.lock(ctx)()
	m.requests[r.Kind][r.ID] = r.Clone()
	return nil
}

func (m *Memory) Request(ctx context.Context, kind workflow.Kind, id string) (*workflow.Request, error) {
	defer m.lock(ctx)()
	r, ok := m.requests[kind][id]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (m *Memory) UpdateRequest(ctx context.Context, r *workflow.Request) error {
	defer m.lock(ctx)()
	m.requests[r.Kind][r.ID] = r.Clone()
	return nil
}

func (m *Memory) ActiveRequestOn(ctx context.Context, kind workflow.Kind, employeeID string, date time.Time) (*workflow.Request, error) {
	defer m.lock(ctx)()
	for _, r := range m.requests[kind] {
		if !r.Deleted && r.EmployeeID == employeeID && calendar.SameDay(r.WorkDate, date) {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) ApprovedRequestOn(ctx context.Context, kind workflow.Kind, employeeID string, date time.Time) (*workflow.Request, error) {
	defer m.lock(ctx)()
	for _, r := range m.requests[kind] {
		if !r.Deleted && r.Status == workflow.StatusApproved &&
			r.EmployeeID == employeeID && calendar.SameDay(r.WorkDate, date) {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) ApprovedRequestsInRange(ctx context.Context, kind workflow.Kind, employeeID string, from, to time.Time) ([]*workflow.Request, error) {
	defer m.lock(ctx)()
	var out []*workflow.Request
	for _, r := range m.requests[kind] {
		if !r.Deleted && r.Status == workflow.StatusApproved &&
			r.EmployeeID == employeeID && inRange(r.WorkDate, from, to) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out, nil
}

// =============================================================================
// TIME RECORDS
// =============================================================================

func (m *Memory) TimeRecord(ctx context.Context, employeeID string, date time.Time) (*workflow.TimeRecord, error) {
	defer m.lock(ctx)()
	r, ok := m.records[recordKey{EmployeeID: employeeID, Date: calendar.DateOf(date)}]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (m *Memory) PutTimeRecord(ctx context.Context, r *workflow.TimeRecord) error {
	defer m.lock(ctx)()
	m.records[recordKey{EmployeeID: r.EmployeeID, Date: calendar.DateOf(r.WorkDate)}] = r.Clone()
	return nil
}

func (m *Memory) TimeRecordsInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*workflow.TimeRecord, error) {
	defer m.lock(ctx)()
	var out []*workflow.TimeRecord
	for k, r := range m.records {
		if k.EmployeeID == employeeID && inRange(k.Date, from, to) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) PutHoliday(ctx context.Context, h calendar.Holiday) error {
	defer m.lock(ctx)()
	m.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(ctx context.Context, id string) error {
	defer m.lock(ctx)()
	delete(m.holidays, id)
	return nil
}

func (m *Memory) Holidays(ctx context.Context) ([]calendar.Holiday, error) {
	defer m.lock(ctx)()
	out := make([]calendar.Holiday, 0, len(m.holidays))
	for _, h := range m.holidays {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// IsHoliday makes the store usable as a calendar.HolidaySource.
func (m *Memory) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	defer m.lock(ctx)()
	for _, h := range m.holidays {
		if h.Matches(date) {
			return true, nil
		}
	}
	return false, nil
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}
