/*
store.go - Persistence interface for employees and leave records

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  never assumes a storage technology; it needs CRUD over two related
  collections and a way to run several steps as one unit of work.

KEY INTERFACES:
  Store:   Reads and writes, usable inside or outside a transaction
  TxStore: Store plus WithTx for atomic multi-step operations

UNIT OF WORK:
  Every lifecycle operation (create/update/delete leave) runs inside
  WithTx. Within fn, LockEmployee serializes writers for one employee so
  that the overlap check, the record write and the snapshot refresh are
  observed atomically by concurrent requests. If fn returns an error,
  nothing it wrote is committed.

MISSING ROWS:
  Getters return (nil, nil) for a missing row. The orchestrator maps that
  to ErrEmployeeNotFound / ErrLeaveNotFound.

IMPLEMENTATIONS:
  - leave/store/memory.go:     In-memory (tests, dev)
  - store/sqlite/sqlite.go:    SQLite (default)
  - store/postgres/postgres.go PostgreSQL

SEE ALSO:
  - service.go: The only caller that writes
*/
package leave

import (
	"context"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// GetEmployee returns the employee or (nil, nil).
	GetEmployee(ctx context.Context, id string) (*Employee, error)

	// LockEmployee is GetEmployee that also takes the employee-scoped write
	// lock for the rest of the enclosing transaction.
	LockEmployee(ctx context.Context, id string) (*Employee, error)

	// ListEmployees returns all employees ordered by name.
	ListEmployees(ctx context.Context) ([]Employee, error)

	// SaveEmployee inserts or updates profile fields. It never writes the
	// snapshot. Returns ErrDuplicateEmail on an email collision.
	SaveEmployee(ctx context.Context, e Employee) error

	// DeleteEmployee removes the employee and all of their leave records.
	DeleteEmployee(ctx context.Context, id string) error

	// SaveSnapshot writes the derived availability fields.
	SaveSnapshot(ctx context.Context, employeeID string, snap Snapshot, asOf calendar.Date) error

	// GetLeave returns the record or (nil, nil).
	GetLeave(ctx context.Context, id string) (*LeaveRecord, error)

	// ListLeaves returns filtered records, most recently created first.
	ListLeaves(ctx context.Context, filter LeaveFilter) ([]LeaveRecord, error)

	// LeavesByEmployee returns all of an employee's records ordered by start date.
	LeavesByEmployee(ctx context.Context, employeeID string) ([]LeaveRecord, error)

	InsertLeave(ctx context.Context, r LeaveRecord) error
	UpdateLeave(ctx context.Context, r LeaveRecord) error
	DeleteLeave(ctx context.Context, id string) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
