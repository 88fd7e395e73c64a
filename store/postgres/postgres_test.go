package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/postgres"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return postgres.NewWithDB(sqlx.NewDb(db, "postgres")), mock
}

var employeeCols = []string{
	"id", "name", "department", "role", "email", "annual_entitlement",
	"availability", "current_leave_id", "current_leave_start", "current_leave_end", "current_leave_type",
	"snapshot_at", "created_at", "updated_at",
}

var leaveCols = []string{
	"seq", "id", "employee_id", "start_date", "end_date", "total_days", "working_days",
	"leave_type", "status", "year", "notes", "bonus", "created_at", "updated_at",
}

func day(s string) time.Time { return calendar.MustParseDate(s).Time() }

func sampleLeave() leave.LeaveRecord {
	start, end := calendar.MustParseDate("2025-03-10"), calendar.MustParseDate("2025-03-14")
	return leave.LeaveRecord{
		ID:          "l1",
		EmployeeID:  "e1",
		StartDate:   start,
		EndDate:     end,
		TotalDays:   5,
		WorkingDays: 5,
		Type:        leave.TypeAnnual,
		Status:      leave.StatusApproved,
		Year:        2025,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestGetEmployee(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success with snapshot", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM employees WHERE id = \$1$`).
			WithArgs("e1").
			WillReturnRows(sqlmock.NewRows(employeeCols).AddRow(
				"e1", "Ada", "R&D", "Engineer", "ada@example.com", 25,
				"on_leave", "l1", day("2025-03-10"), day("2025-03-20"), "ANNUAL",
				day("2025-03-12"), now, now,
			))

		emp, err := store.GetEmployee(ctx, "e1")
		require.NoError(t, err)
		require.NotNil(t, emp)
		assert.Equal(t, "Ada", emp.Name)
		assert.Equal(t, leave.OnLeave, emp.Snapshot.Status)
		require.NotNil(t, emp.Snapshot.CurrentLeave)
		assert.Equal(t, "l1", emp.Snapshot.CurrentLeave.LeaveID)
		assert.Equal(t, "2025-03-20", emp.Snapshot.CurrentLeave.EndDate.String())
		assert.Equal(t, "2025-03-12", emp.SnapshotAt.String())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM employees WHERE id = \$1$`).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(employeeCols))

		emp, err := store.GetEmployee(ctx, "ghost")
		assert.NoError(t, err)
		assert.Nil(t, emp)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM employees`).
			WithArgs("e1").
			WillReturnError(errors.New("connection reset"))

		emp, err := store.GetEmployee(ctx, "e1")
		assert.Error(t, err)
		assert.Nil(t, emp)
		assert.Contains(t, err.Error(), "failed to get employee")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSaveEmployee_DuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO employees`).
		WithArgs("e2", "Bob", "", "", "ada@example.com", 20, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.SaveEmployee(context.Background(), leave.Employee{ID: "e2", Name: "Bob", Email: "ada@example.com", AnnualEntitlement: 20})
	assert.ErrorIs(t, err, leave.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEmployee_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM employees WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteEmployee(context.Background(), "ghost")
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// LEAVE RECORDS
// =============================================================================

func TestInsertLeave_UnknownEmployee(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO leave_records`).
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})

	err := store.InsertLeave(context.Background(), sampleLeave())
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLeaves_BuildsFilter(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM leave_records WHERE employee_id = \$1 AND year = \$2 AND status = \$3 ORDER BY seq DESC`).
		WithArgs("e1", 2025, "PENDING").
		WillReturnRows(sqlmock.NewRows(leaveCols).
			AddRow(2, "l2", "e1", day("2025-05-05"), day("2025-05-09"), 5, 5, "ANNUAL", "PENDING", 2025, "", "1.50", now, now).
			AddRow(1, "l1", "e1", day("2025-02-03"), day("2025-02-04"), 2, 2, "SICK", "PENDING", 2025, "flu", nil, now, now))

	records, err := store.ListLeaves(context.Background(), leave.LeaveFilter{EmployeeID: "e1", Year: 2025, Status: leave.StatusPending})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "l2", records[0].ID)
	require.NotNil(t, records[0].Bonus)
	assert.True(t, decimal.RequireFromString("1.5").Equal(*records[0].Bonus))
	assert.Equal(t, "2025-05-05", records[0].StartDate.String())

	assert.Equal(t, leave.TypeSick, records[1].Type)
	assert.Nil(t, records[1].Bonus)
	assert.Equal(t, "flu", records[1].Notes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeave_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE leave_records SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateLeave(context.Background(), sampleLeave())
	assert.ErrorIs(t, err, leave.ErrLeaveNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_LocksEmployeeAndCommits(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM employees WHERE id = \$1 FOR UPDATE`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(employeeCols).AddRow(
			"e1", "Ada", "", "", "ada@example.com", 25,
			"available", nil, nil, nil, nil, nil, now, now,
		))
	mock.ExpectExec(`INSERT INTO leave_records`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE employees SET`).
		WithArgs("on_leave", "l1", sqlmock.AnyArg(), sqlmock.AnyArg(), "ANNUAL", sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(ctx, func(tx leave.Store) error {
		emp, err := tx.LockEmployee(ctx, "e1")
		if err != nil {
			return err
		}
		require.NotNil(t, emp)
		assert.Nil(t, emp.Snapshot.CurrentLeave)

		r := sampleLeave()
		if err := tx.InsertLeave(ctx, r); err != nil {
			return err
		}
		return tx.SaveSnapshot(ctx, emp.ID, leave.Snapshot{
			Status:       leave.OnLeave,
			CurrentLeave: &leave.CurrentLeave{LeaveID: r.ID, StartDate: r.StartDate, EndDate: r.EndDate, Type: r.Type},
		}, calendar.MustParseDate("2025-03-11"))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leave_records`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE employees SET`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.WithTx(ctx, func(tx leave.Store) error {
		if err := tx.InsertLeave(ctx, sampleLeave()); err != nil {
			return err
		}
		return tx.SaveSnapshot(ctx, "e1", leave.Snapshot{Status: leave.Available}, calendar.MustParseDate("2025-03-11"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save snapshot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := postgres.NewWithDB(sqlx.NewDb(db, "postgres"))

	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
