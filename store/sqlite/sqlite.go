/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements workflow.Store (which embeds ledger.Store and covers the
  aggregation engine's read surface) plus the holiday calendar, using
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  leave_balances:          One row per employee
  leave_transactions:      Append-only ledger of balance changes
  day_off_requests,
  remote_work_requests,
  overtime_requests,
  late_early_requests,
  forgot_checkin_requests: One table per exception kind
  time_records:            One row per employee per work date
  holidays:                Company calendar

APPEND-ONLY ENFORCEMENT:
  leave_transactions has no UPDATE path except the soft-delete flag; rows
  are never removed. Corrections happen through offsetting transactions.

TRANSACTIONS:
  WithTx begins a database transaction and stashes it in the context; every
  store method routes through the transaction when one is present. A nested
  WithTx joins the enclosing transaction, which is how the workflow wraps
  ledger calls in its own atomic unit. A store-level mutex serializes
  writers on top of SQLite's single-writer model, so two concurrent
  approvals of the same request cannot interleave.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go, workflow/store.go: interface definitions
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/ledger"
	"github.com/warp/attendance-engine/workflow"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The ctx-carried *sql.Tx must stay on one connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Balances (one row per employee)
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT PRIMARY KEY,
		paid TEXT NOT NULL,
		unpaid TEXT NOT NULL,
		annual_quota TEXT NOT NULL,
		carry_over_days TEXT NOT NULL DEFAULT '0',
		last_reset_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS leave_transactions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_transactions_employee
		ON leave_transactions(employee_id);
	CREATE INDEX IF NOT EXISTS idx_leave_transactions_reference
		ON leave_transactions(reference) WHERE reference != '';

	-- Day-off requests (carries the deduction marker, see ledger/store.go)
	CREATE TABLE IF NOT EXISTS day_off_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		status TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejected_reason TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		duration TEXT NOT NULL,
		category TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		balance_deducted INTEGER NOT NULL DEFAULT 0,
		deduction_tx_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS remote_work_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		status TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejected_reason TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS overtime_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		status TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejected_reason TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		start_minute INTEGER NOT NULL,
		end_minute INTEGER NOT NULL,
		hourly_rate TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		total_amount TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS late_early_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		status TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejected_reason TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		type TEXT NOT NULL,
		late_minutes INTEGER NOT NULL DEFAULT 0,
		early_minutes INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS forgot_checkin_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		status TEXT NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		rejected_reason TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		checkin_minute INTEGER NOT NULL,
		checkout_minute INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_day_off_employee_date
		ON day_off_requests(employee_id, work_date);
	CREATE INDEX IF NOT EXISTS idx_remote_work_employee_date
		ON remote_work_requests(employee_id, work_date);
	CREATE INDEX IF NOT EXISTS idx_overtime_employee_date
		ON overtime_requests(employee_id, work_date);
	CREATE INDEX IF NOT EXISTS idx_late_early_employee_date
		ON late_early_requests(employee_id, work_date);
	CREATE INDEX IF NOT EXISTS idx_forgot_checkin_employee_date
		ON forgot_checkin_requests(employee_id, work_date);

	-- Time records (one row per employee per work date)
	CREATE TABLE IF NOT EXISTS time_records (
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		checkin_minute INTEGER,
		checkout_minute INTEGER,
		morning_minutes INTEGER NOT NULL DEFAULT 0,
		afternoon_minutes INTEGER NOT NULL DEFAULT 0,
		work_minutes INTEGER NOT NULL DEFAULT 0,
		morning_on_leave INTEGER NOT NULL DEFAULT 0,
		afternoon_on_leave INTEGER NOT NULL DEFAULT 0,
		remote INTEGER NOT NULL DEFAULT 0,
		late_minutes INTEGER NOT NULL DEFAULT 0,
		early_minutes INTEGER NOT NULL DEFAULT 0,
		overtime_minutes INTEGER NOT NULL DEFAULT 0,
		overtime_hours TEXT NOT NULL DEFAULT '0',
		overtime_amount TEXT NOT NULL DEFAULT '0',
		has_day_off_request INTEGER NOT NULL DEFAULT 0,
		has_remote_work_request INTEGER NOT NULL DEFAULT 0,
		has_overtime_request INTEGER NOT NULL DEFAULT 0,
		has_late_early_request INTEGER NOT NULL DEFAULT 0,
		has_forgot_checkin_request INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		complete INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_date)
	);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date ON holidays(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS - ctx-carried *sql.Tx
// =============================================================================

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the enclosing transaction when the context carries one, the
// bare connection otherwise.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn inside a database transaction. A nested call joins the
// enclosing transaction; the outermost call commits or rolls back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// LEDGER (ledger.Store interface)
// =============================================================================

func (s *Store) Balance(ctx context.Context, employeeID string) (*ledger.Balance, error) {
	var (
		b           ledger.Balance
		lastResetAt sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT employee_id, paid, unpaid, annual_quota, carry_over_days, last_reset_at, created_at, updated_at
		 FROM leave_balances WHERE employee_id = ?`,
		employeeID,
	).Scan(&b.EmployeeID, &b.Paid, &b.Unpaid, &b.AnnualQuota, &b.CarryOverDays,
		&lastResetAt, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	if lastResetAt.Valid {
		t := parseTime(lastResetAt.String)
		b.LastResetAt = &t
	}
	return &b, nil
}

func (s *Store) PutBalance(ctx context.Context, b *ledger.Balance) error {
	query := `
		INSERT INTO leave_balances
		(employee_id, paid, unpaid, annual_quota, carry_over_days, last_reset_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			paid = excluded.paid,
			unpaid = excluded.unpaid,
			annual_quota = excluded.annual_quota,
			carry_over_days = excluded.carry_over_days,
			last_reset_at = excluded.last_reset_at,
			updated_at = excluded.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		b.EmployeeID,
		b.Paid.String(),
		b.Unpaid.String(),
		b.AnnualQuota.String(),
		b.CarryOverDays.String(),
		nullTime(b.LastResetAt),
		formatTime(b.CreatedAt),
		formatTime(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	query := `
		INSERT INTO leave_transactions
		(id, employee_id, kind, leave_type, amount, balance_after, reference, description, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		tx.ID,
		tx.EmployeeID,
		string(tx.Kind),
		string(tx.LeaveType),
		tx.Amount.String(),
		tx.BalanceAfter.String(),
		tx.Reference,
		tx.Description,
		tx.Deleted,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) Transactions(ctx context.Context, employeeID string) ([]*ledger.Transaction, error) {
	// rowid preserves insertion order even when created_at values collide.
	query := `
		SELECT id, employee_id, kind, leave_type, amount, balance_after, reference, description, deleted, created_at
		FROM leave_transactions
		WHERE employee_id = ?
		ORDER BY rowid ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) TransactionByReference(ctx context.Context, employeeID, reference string) (*ledger.Transaction, error) {
	query := `
		SELECT id, employee_id, kind, leave_type, amount, balance_after, reference, description, deleted, created_at
		FROM leave_transactions
		WHERE employee_id = ? AND reference = ? AND deleted = 0
		ORDER BY rowid ASC
		LIMIT 1
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, employeeID, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction by reference: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanTransaction(rows)
}

func scanTransaction(rows *sql.Rows) (*ledger.Transaction, error) {
	var (
		tx        ledger.Transaction
		createdAt string
	)
	err := rows.Scan(&tx.ID, &tx.EmployeeID, &tx.Kind, &tx.LeaveType,
		&tx.Amount, &tx.BalanceAfter, &tx.Reference, &tx.Description,
		&tx.Deleted, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	tx.CreatedAt = parseTime(createdAt)
	return &tx, nil
}

// Deduction reads the marker off the day-off row itself, so the refund
// guard is one indexed lookup.
func (s *Store) Deduction(ctx context.Context, reference string) (bool, string, error) {
	var (
		deducted bool
		txID     string
	)
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT balance_deducted, deduction_tx_id FROM day_off_requests WHERE id = ?`,
		reference,
	).Scan(&deducted, &txID)

	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to load deduction marker: %w", err)
	}
	return deducted, txID, nil
}

func (s *Store) SetDeduction(ctx context.Context, reference, transactionID string, deducted bool) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE day_off_requests SET balance_deducted = ?, deduction_tx_id = ? WHERE id = ?`,
		deducted, transactionID, reference,
	)
	if err != nil {
		return fmt.Errorf("failed to set deduction marker: %w", err)
	}
	return nil
}

// =============================================================================
// REQUESTS (workflow.Store interface)
// =============================================================================

func requestTable(kind workflow.Kind) string {
	switch kind {
	case workflow.KindDayOff:
		return "day_off_requests"
	case workflow.KindRemoteWork:
		return "remote_work_requests"
	case workflow.KindOvertime:
		return "overtime_requests"
	case workflow.KindLateEarly:
		return "late_early_requests"
	case workflow.KindForgotCheckin:
		return "forgot_checkin_requests"
	}
	return ""
}

// detailColumns lists the kind-specific columns after the shared envelope.
func detailColumns(kind workflow.Kind) []string {
	switch kind {
	case workflow.KindDayOff:
		return []string{"duration", "category", "reason", "balance_deducted", "deduction_tx_id"}
	case workflow.KindRemoteWork:
		return []string{"reason"}
	case workflow.KindOvertime:
		return []string{"start_minute", "end_minute", "hourly_rate", "total_hours", "total_amount"}
	case workflow.KindLateEarly:
		return []string{"type", "late_minutes", "early_minutes", "reason"}
	case workflow.KindForgotCheckin:
		return []string{"checkin_minute", "checkout_minute", "reason"}
	}
	return nil
}

func detailArgs(r *workflow.Request) []any {
	switch r.Kind {
	case workflow.KindDayOff:
		d := r.DayOff
		return []any{string(d.Duration), string(d.Category), d.Reason, d.BalanceDeducted, d.DeductionTxID}
	case workflow.KindRemoteWork:
		return []any{r.RemoteWork.Reason}
	case workflow.KindOvertime:
		d := r.Overtime
		return []any{d.StartMinute, d.EndMinute, d.HourlyRate.String(), d.TotalHours.String(), d.TotalAmount.String()}
	case workflow.KindLateEarly:
		d := r.LateEarly
		return []any{string(d.Type), d.LateMinutes, d.EarlyMinutes, d.Reason}
	case workflow.KindForgotCheckin:
		d := r.ForgotCheckin
		return []any{d.CheckinMinute, d.CheckoutMinute, d.Reason}
	}
	return nil
}

// detailDest allocates the kind's detail payload on r and returns the scan
// targets matching detailColumns.
func detailDest(kind workflow.Kind, r *workflow.Request) []any {
	switch kind {
	case workflow.KindDayOff:
		r.DayOff = &workflow.DayOffDetail{}
		d := r.DayOff
		return []any{&d.Duration, &d.Category, &d.Reason, &d.BalanceDeducted, &d.DeductionTxID}
	case workflow.KindRemoteWork:
		r.RemoteWork = &workflow.RemoteWorkDetail{}
		return []any{&r.RemoteWork.Reason}
	case workflow.KindOvertime:
		r.Overtime = &workflow.OvertimeDetail{}
		d := r.Overtime
		return []any{&d.StartMinute, &d.EndMinute, &d.HourlyRate, &d.TotalHours, &d.TotalAmount}
	case workflow.KindLateEarly:
		r.LateEarly = &workflow.LateEarlyDetail{}
		d := r.LateEarly
		return []any{&d.Type, &d.LateMinutes, &d.EarlyMinutes, &d.Reason}
	case workflow.KindForgotCheckin:
		r.ForgotCheckin = &workflow.ForgotCheckinDetail{}
		d := r.ForgotCheckin
		return []any{&d.CheckinMinute, &d.CheckoutMinute, &d.Reason}
	}
	return nil
}

const envelopeColumns = "id, employee_id, work_date, status, approver_id, approved_at, rejected_reason, deleted, created_at, updated_at"

func selectRequest(kind workflow.Kind) string {
	cols := envelopeColumns
	for _, c := range detailColumns(kind) {
		cols += ", " + c
	}
	return "SELECT " + cols + " FROM " + requestTable(kind)
}

func (s *Store) InsertRequest(ctx context.Context, r *workflow.Request) error {
	cols := []string{"id", "employee_id", "work_date", "status", "approver_id",
		"approved_at", "rejected_reason", "deleted", "created_at", "updated_at"}
	cols = append(cols, detailColumns(r.Kind)...)

	placeholders := ""
	for i := range cols {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
	}

	args := []any{
		r.ID, r.EmployeeID, formatDate(r.WorkDate), string(r.Status), r.ApproverID,
		nullTime(r.ApprovedAt), r.RejectedReason, r.Deleted,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	}
	args = append(args, detailArgs(r)...)

	query := "INSERT INTO " + requestTable(r.Kind) + " (" + join(cols) + ") VALUES (" + placeholders + ")"
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s request: %w", r.Kind, err)
	}
	return nil
}

func (s *Store) UpdateRequest(ctx context.Context, r *workflow.Request) error {
	sets := "work_date = ?, status = ?, approver_id = ?, approved_at = ?, rejected_reason = ?, deleted = ?, updated_at = ?"
	for _, c := range detailColumns(r.Kind) {
		sets += ", " + c + " = ?"
	}

	args := []any{
		formatDate(r.WorkDate), string(r.Status), r.ApproverID,
		nullTime(r.ApprovedAt), r.RejectedReason, r.Deleted, formatTime(r.UpdatedAt),
	}
	args = append(args, detailArgs(r)...)
	args = append(args, r.ID)

	query := "UPDATE " + requestTable(r.Kind) + " SET " + sets + " WHERE id = ?"
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update %s request: %w", r.Kind, err)
	}
	return nil
}

func (s *Store) Request(ctx context.Context, kind workflow.Kind, id string) (*workflow.Request, error) {
	return s.queryOneRequest(ctx, kind, selectRequest(kind)+" WHERE id = ?", id)
}

func (s *Store) ActiveRequestOn(ctx context.Context, kind workflow.Kind, employeeID string, date time.Time) (*workflow.Request, error) {
	query := selectRequest(kind) + " WHERE employee_id = ? AND work_date = ? AND deleted = 0 LIMIT 1"
	return s.queryOneRequest(ctx, kind, query, employeeID, formatDate(date))
}

func (s *Store) ApprovedRequestOn(ctx context.Context, kind workflow.Kind, employeeID string, date time.Time) (*workflow.Request, error) {
	query := selectRequest(kind) + " WHERE employee_id = ? AND work_date = ? AND status = ? AND deleted = 0 LIMIT 1"
	return s.queryOneRequest(ctx, kind, query, employeeID, formatDate(date), string(workflow.StatusApproved))
}

func (s *Store) ApprovedRequestsInRange(ctx context.Context, kind workflow.Kind, employeeID string, from, to time.Time) ([]*workflow.Request, error) {
	query := selectRequest(kind) + `
		WHERE employee_id = ? AND work_date >= ? AND work_date <= ? AND status = ? AND deleted = 0
		ORDER BY work_date ASC`
	rows, err := s.q(ctx).QueryContext(ctx, query,
		employeeID, formatDate(from), formatDate(to), string(workflow.StatusApproved))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s requests: %w", kind, err)
	}
	defer rows.Close()

	var out []*workflow.Request
	for rows.Next() {
		r, err := scanRequest(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) queryOneRequest(ctx context.Context, kind workflow.Kind, query string, args ...any) (*workflow.Request, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s request: %w", kind, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRequest(kind, rows)
}

func scanRequest(kind workflow.Kind, rows *sql.Rows) (*workflow.Request, error) {
	var (
		r          workflow.Request
		workDate   string
		approvedAt sql.NullString
		createdAt  string
		updatedAt  string
	)
	r.Kind = kind

	dest := []any{&r.ID, &r.EmployeeID, &workDate, &r.Status, &r.ApproverID,
		&approvedAt, &r.RejectedReason, &r.Deleted, &createdAt, &updatedAt}
	dest = append(dest, detailDest(kind, &r)...)

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan %s request: %w", kind, err)
	}

	r.WorkDate = parseDate(workDate)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if approvedAt.Valid {
		t := parseTime(approvedAt.String)
		r.ApprovedAt = &t
	}
	return &r, nil
}

// =============================================================================
// TIME RECORDS
// =============================================================================

const timeRecordColumns = `employee_id, work_date, checkin_minute, checkout_minute,
	morning_minutes, afternoon_minutes, work_minutes, morning_on_leave, afternoon_on_leave,
	remote, late_minutes, early_minutes, overtime_minutes, overtime_hours, overtime_amount,
	has_day_off_request, has_remote_work_request, has_overtime_request,
	has_late_early_request, has_forgot_checkin_request, status, complete, created_at, updated_at`

func (s *Store) TimeRecord(ctx context.Context, employeeID string, date time.Time) (*workflow.TimeRecord, error) {
	query := "SELECT " + timeRecordColumns + " FROM time_records WHERE employee_id = ? AND work_date = ?"
	rows, err := s.q(ctx).QueryContext(ctx, query, employeeID, formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query time record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanTimeRecord(rows)
}

func (s *Store) PutTimeRecord(ctx context.Context, r *workflow.TimeRecord) error {
	query := `
		INSERT INTO time_records (` + timeRecordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, work_date) DO UPDATE SET
			checkin_minute = excluded.checkin_minute,
			checkout_minute = excluded.checkout_minute,
			morning_minutes = excluded.morning_minutes,
			afternoon_minutes = excluded.afternoon_minutes,
			work_minutes = excluded.work_minutes,
			morning_on_leave = excluded.morning_on_leave,
			afternoon_on_leave = excluded.afternoon_on_leave,
			remote = excluded.remote,
			late_minutes = excluded.late_minutes,
			early_minutes = excluded.early_minutes,
			overtime_minutes = excluded.overtime_minutes,
			overtime_hours = excluded.overtime_hours,
			overtime_amount = excluded.overtime_amount,
			has_day_off_request = excluded.has_day_off_request,
			has_remote_work_request = excluded.has_remote_work_request,
			has_overtime_request = excluded.has_overtime_request,
			has_late_early_request = excluded.has_late_early_request,
			has_forgot_checkin_request = excluded.has_forgot_checkin_request,
			status = excluded.status,
			complete = excluded.complete,
			updated_at = excluded.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		r.EmployeeID, formatDate(r.WorkDate), nullInt(r.CheckinMinute), nullInt(r.CheckoutMinute),
		r.MorningMinutes, r.AfternoonMinutes, r.WorkMinutes, r.MorningOnLeave, r.AfternoonOnLeave,
		r.Remote, r.LateMinutes, r.EarlyMinutes, r.OvertimeMinutes,
		r.OvertimeHours.String(), r.OvertimeAmount.String(),
		r.HasDayOffRequest, r.HasRemoteWorkRequest, r.HasOvertimeRequest,
		r.HasLateEarlyRequest, r.HasForgotCheckinRequest,
		string(r.Status), r.Complete, formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save time record: %w", err)
	}
	return nil
}

func (s *Store) TimeRecordsInRange(ctx context.Context, employeeID string, from, to time.Time) ([]*workflow.TimeRecord, error) {
	query := "SELECT " + timeRecordColumns + ` FROM time_records
		WHERE employee_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date ASC`
	rows, err := s.q(ctx).QueryContext(ctx, query, employeeID, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query time records: %w", err)
	}
	defer rows.Close()

	var out []*workflow.TimeRecord
	for rows.Next() {
		r, err := scanTimeRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanTimeRecord(rows *sql.Rows) (*workflow.TimeRecord, error) {
	var (
		r              workflow.TimeRecord
		workDate       string
		checkinMinute  sql.NullInt64
		checkoutMinute sql.NullInt64
		createdAt      string
		updatedAt      string
	)
	err := rows.Scan(&r.EmployeeID, &workDate, &checkinMinute, &checkoutMinute,
		&r.MorningMinutes, &r.AfternoonMinutes, &r.WorkMinutes, &r.MorningOnLeave, &r.AfternoonOnLeave,
		&r.Remote, &r.LateMinutes, &r.EarlyMinutes, &r.OvertimeMinutes,
		&r.OvertimeHours, &r.OvertimeAmount,
		&r.HasDayOffRequest, &r.HasRemoteWorkRequest, &r.HasOvertimeRequest,
		&r.HasLateEarlyRequest, &r.HasForgotCheckinRequest,
		&r.Status, &r.Complete, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan time record: %w", err)
	}

	r.WorkDate = parseDate(workDate)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if checkinMinute.Valid {
		v := int(checkinMinute.Int64)
		r.CheckinMinute = &v
	}
	if checkoutMinute.Valid {
		v := int(checkoutMinute.Int64)
		r.CheckoutMinute = &v
	}
	return &r, nil
}

// =============================================================================
// HOLIDAYS (calendar.HolidaySource)
// =============================================================================

func (s *Store) PutHoliday(ctx context.Context, h calendar.Holiday) error {
	query := `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			name = excluded.name,
			recurring = excluded.recurring
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		h.ID, formatDate(h.Date), h.Name, h.Recurring,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	_, err := s.q(ctx).ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

func (s *Store) Holidays(ctx context.Context) ([]calendar.Holiday, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		"SELECT id, date, name, recurring FROM holidays ORDER BY date ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var out []calendar.Holiday
	for rows.Next() {
		var (
			h    calendar.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date = parseDate(date)
		out = append(out, h)
	}
	return out, rows.Err()
}

// IsHoliday checks the holidays table, honoring recurring entries by
// month/day.
func (s *Store) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	dateStr := formatDate(date)
	monthDay := calendar.DateOf(date).Format("01-02")

	var count int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM holidays
		WHERE (recurring = 0 AND date = ?)
		   OR (recurring = 1 AND strftime('%m-%d', date) = ?)
	`, dateStr, monthDay).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check holiday: %w", err)
	}
	return count > 0, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatDate(t time.Time) string { return calendar.DateOf(t).Format("2006-01-02") }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func join(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
