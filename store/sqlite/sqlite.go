/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Default persistent store. The same schema is mirrored for PostgreSQL in
  store/postgres with only dialect differences.

KEY TABLES:
  employees:     Profile plus the derived availability snapshot columns
  leave_records: One row per leave, cascading on employee delete

INDEXES:
  - idx_employees_email:       Case-insensitive unique email
  - idx_leave_employee_start:  Overlap checks and snapshot derivation (hot path)
  - idx_leave_year_type:       Ledger filtering

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction, which is what makes LockEmployee a no-op here: SQLite
  has no row locks, so all writers are serialized at the store level.
  The pool is limited to one connection so that ":memory:" databases are
  shared by every query.

WAL MODE:
  Opened with WAL (Write-Ahead Logging) and foreign keys enabled.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewService(store, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
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

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		annual_entitlement INTEGER NOT NULL DEFAULT 0,
		availability TEXT NOT NULL DEFAULT 'available',
		current_leave_id TEXT,
		current_leave_start TEXT,
		current_leave_end TEXT,
		current_leave_type TEXT,
		snapshot_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_employees_email
		ON employees(email COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS leave_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		working_days INTEGER NOT NULL,
		leave_type TEXT NOT NULL,
		status TEXT NOT NULL,
		year INTEGER NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		bonus TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (start_date < end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_leave_employee_start
		ON leave_records(employee_id, start_date);

	CREATE INDEX IF NOT EXISTS idx_leave_year_type
		ON leave_records(year, leave_type, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIES - Shared by Store (locked) and txStore (inside WithTx)
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const employeeColumns = `id, name, department, role, email, annual_entitlement,
	availability, current_leave_id, current_leave_start, current_leave_end, current_leave_type,
	snapshot_at, created_at, updated_at`

const leaveColumns = `id, employee_id, start_date, end_date, total_days, working_days,
	leave_type, status, year, notes, bonus, created_at, updated_at`

func getEmployee(ctx context.Context, q querier, id string) (*leave.Employee, error) {
	row := q.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func listEmployees(ctx context.Context, q querier) ([]leave.Employee, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func saveEmployee(ctx context.Context, q querier, e leave.Employee) error {
	query := `
		INSERT INTO employees (id, name, department, role, email, annual_entitlement, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			role = excluded.role,
			email = excluded.email,
			annual_entitlement = excluded.annual_entitlement,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	createdAt, updatedAt := e.CreatedAt, e.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := q.ExecContext(ctx, query,
		e.ID, e.Name, e.Department, e.Role, e.Email, e.AnnualEntitlement,
		formatTime(createdAt), formatTime(updatedAt),
	)
	if isConstraintError(err, sqlite3.ErrConstraintUnique) {
		return leave.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func deleteEmployee(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	return expectOne(res, leave.ErrEmployeeNotFound)
}

func saveSnapshot(ctx context.Context, q querier, employeeID string, snap leave.Snapshot, asOf calendar.Date) error {
	var leaveID, start, end, leaveType sql.NullString
	if cl := snap.CurrentLeave; cl != nil {
		leaveID = nullString(cl.LeaveID)
		start = nullString(cl.StartDate.String())
		end = nullString(cl.EndDate.String())
		leaveType = nullString(string(cl.Type))
	}

	res, err := q.ExecContext(ctx, `
		UPDATE employees SET
			availability = ?,
			current_leave_id = ?,
			current_leave_start = ?,
			current_leave_end = ?,
			current_leave_type = ?,
			snapshot_at = ?
		WHERE id = ?`,
		string(snap.Status), leaveID, start, end, leaveType, nullString(asOf.String()), employeeID,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return expectOne(res, leave.ErrEmployeeNotFound)
}

func getLeave(ctx context.Context, q querier, id string) (*leave.LeaveRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+leaveColumns+" FROM leave_records WHERE id = ?", id)
	r, err := scanLeave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func listLeaves(ctx context.Context, q querier, f leave.LeaveFilter) ([]leave.LeaveRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	if f.Type != "" {
		where = append(where, "leave_type = ?")
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := "SELECT " + leaveColumns + " FROM leave_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"

	return queryLeaves(ctx, q, query, args...)
}

func leavesByEmployee(ctx context.Context, q querier, employeeID string) ([]leave.LeaveRecord, error) {
	return queryLeaves(ctx, q,
		"SELECT "+leaveColumns+" FROM leave_records WHERE employee_id = ? ORDER BY start_date, seq",
		employeeID,
	)
}

func queryLeaves(ctx context.Context, q querier, query string, args ...any) ([]leave.LeaveRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave records: %w", err)
	}
	defer rows.Close()

	var records []leave.LeaveRecord
	for rows.Next() {
		r, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func insertLeave(ctx context.Context, q querier, r leave.LeaveRecord) error {
	query := `
		INSERT INTO leave_records (` + leaveColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.StartDate.String(), r.EndDate.String(),
		r.TotalDays, r.WorkingDays, string(r.Type), string(r.Status), r.Year,
		r.Notes, nullDecimal(r.Bonus),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if isConstraintError(err, sqlite3.ErrConstraintForeignKey) {
		return leave.ErrEmployeeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to insert leave record: %w", err)
	}
	return nil
}

func updateLeave(ctx context.Context, q querier, r leave.LeaveRecord) error {
	res, err := q.ExecContext(ctx, `
		UPDATE leave_records SET
			start_date = ?,
			end_date = ?,
			total_days = ?,
			working_days = ?,
			leave_type = ?,
			status = ?,
			year = ?,
			notes = ?,
			bonus = ?,
			updated_at = ?
		WHERE id = ?`,
		r.StartDate.String(), r.EndDate.String(), r.TotalDays, r.WorkingDays,
		string(r.Type), string(r.Status), r.Year, r.Notes, nullDecimal(r.Bonus),
		formatTime(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave record: %w", err)
	}
	return expectOne(res, leave.ErrLeaveNotFound)
}

func deleteLeave(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM leave_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete leave record: %w", err)
	}
	return expectOne(res, leave.ErrLeaveNotFound)
}

// =============================================================================
// STORE (leave.Store interface)
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

// LockEmployee outside WithTx is a plain read.
func (s *Store) LockEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return s.GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db)
}

func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, e)
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEmployee(ctx, s.db, id)
}

func (s *Store) SaveSnapshot(ctx context.Context, employeeID string, snap leave.Snapshot, asOf calendar.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSnapshot(ctx, s.db, employeeID, snap, asOf)
}

func (s *Store) GetLeave(ctx context.Context, id string) (*leave.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLeave(ctx, s.db, id)
}

func (s *Store) ListLeaves(ctx context.Context, filter leave.LeaveFilter) ([]leave.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLeaves(ctx, s.db, filter)
}

func (s *Store) LeavesByEmployee(ctx context.Context, employeeID string) ([]leave.LeaveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return leavesByEmployee(ctx, s.db, employeeID)
}

func (s *Store) InsertLeave(ctx context.Context, r leave.LeaveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertLeave(ctx, s.db, r)
}

func (s *Store) UpdateLeave(ctx context.Context, r leave.LeaveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLeave(ctx, s.db, r)
}

func (s *Store) DeleteLeave(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLeave(ctx, s.db, id)
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
// The txStore handed to fn never takes s.mu: WithTx already holds it.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) LockEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	return listEmployees(ctx, ts.tx)
}

func (ts *txStore) SaveEmployee(ctx context.Context, e leave.Employee) error {
	return saveEmployee(ctx, ts.tx, e)
}

func (ts *txStore) DeleteEmployee(ctx context.Context, id string) error {
	return deleteEmployee(ctx, ts.tx, id)
}

func (ts *txStore) SaveSnapshot(ctx context.Context, employeeID string, snap leave.Snapshot, asOf calendar.Date) error {
	return saveSnapshot(ctx, ts.tx, employeeID, snap, asOf)
}

func (ts *txStore) GetLeave(ctx context.Context, id string) (*leave.LeaveRecord, error) {
	return getLeave(ctx, ts.tx, id)
}

func (ts *txStore) ListLeaves(ctx context.Context, filter leave.LeaveFilter) ([]leave.LeaveRecord, error) {
	return listLeaves(ctx, ts.tx, filter)
}

func (ts *txStore) LeavesByEmployee(ctx context.Context, employeeID string) ([]leave.LeaveRecord, error) {
	return leavesByEmployee(ctx, ts.tx, employeeID)
}

func (ts *txStore) InsertLeave(ctx context.Context, r leave.LeaveRecord) error {
	return insertLeave(ctx, ts.tx, r)
}

func (ts *txStore) UpdateLeave(ctx context.Context, r leave.LeaveRecord) error {
	return updateLeave(ctx, ts.tx, r)
}

func (ts *txStore) DeleteLeave(ctx context.Context, id string) error {
	return deleteLeave(ctx, ts.tx, id)
}

// =============================================================================
// SCANNING
// =============================================================================

func scanEmployee(row scanner) (leave.Employee, error) {
	var (
		e                    leave.Employee
		availability         string
		leaveID, leaveType   sql.NullString
		start, end, asOf     sql.NullString
		createdAt, updatedAt string
	)

	err := row.Scan(
		&e.ID, &e.Name, &e.Department, &e.Role, &e.Email, &e.AnnualEntitlement,
		&availability, &leaveID, &start, &end, &leaveType,
		&asOf, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan employee: %w", err)
	}

	e.Snapshot.Status = leave.Availability(availability)
	if leaveID.Valid {
		e.Snapshot.CurrentLeave = &leave.CurrentLeave{
			LeaveID:   leaveID.String,
			StartDate: parseDate(start.String),
			EndDate:   parseDate(end.String),
			Type:      leave.LeaveType(leaveType.String),
		}
	}
	e.SnapshotAt = parseDate(asOf.String)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func scanLeave(row scanner) (leave.LeaveRecord, error) {
	var (
		r                    leave.LeaveRecord
		start, end           string
		leaveType, status    string
		bonus                sql.NullString
		createdAt, updatedAt string
	)

	err := row.Scan(
		&r.ID, &r.EmployeeID, &start, &end, &r.TotalDays, &r.WorkingDays,
		&leaveType, &status, &r.Year, &r.Notes, &bonus, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan leave record: %w", err)
	}

	r.StartDate = parseDate(start)
	r.EndDate = parseDate(end)
	r.Type = leave.LeaveType(leaveType)
	r.Status = leave.Status(status)
	if bonus.Valid {
		b, err := decimal.NewFromString(bonus.String)
		if err != nil {
			return r, fmt.Errorf("invalid bonus %q on leave %s: %w", bonus.String, r.ID, err)
		}
		r.Bonus = &b
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed width so stored timestamps also sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDate(s string) calendar.Date {
	if s == "" {
		return calendar.Date{}
	}
	d, _ := calendar.ParseDate(s)
	return d
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isConstraintError(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}

// expectOne maps "no rows affected" to notFound.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
