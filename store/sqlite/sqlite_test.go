package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

func employee(id, email string) leave.Employee {
	return leave.Employee{
		ID:                id,
		Name:              "Employee " + id,
		Department:        "Ops",
		Role:              "Analyst",
		Email:             email,
		AnnualEntitlement: 20,
	}
}

func leaveRecord(id, employeeID, start, end string, status leave.Status) leave.LeaveRecord {
	r := leave.LeaveRecord{
		ID:          id,
		EmployeeID:  employeeID,
		StartDate:   d(start),
		EndDate:     d(end),
		TotalDays:   calendar.TotalDays(d(start), d(end)),
		WorkingDays: calendar.WorkingDays(d(start), d(end)),
		Type:        leave.TypeAnnual,
		Status:      status,
		Year:        d(start).Year(),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	return r
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestStore_Employee_RoundTripAndSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, employee("e1", "e1@example.com")))

	got, err := store.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ops", got.Department)
	assert.Equal(t, 20, got.AnnualEntitlement)
	assert.Equal(t, leave.Available, got.Snapshot.Status, "new rows start available")
	assert.True(t, got.SnapshotAt.IsZero())

	snap := leave.Snapshot{
		Status: leave.OnLeave,
		CurrentLeave: &leave.CurrentLeave{
			LeaveID:   "l1",
			StartDate: d("2025-03-10"),
			EndDate:   d("2025-03-20"),
			Type:      leave.TypeSick,
		},
	}
	require.NoError(t, store.SaveSnapshot(ctx, "e1", snap, d("2025-03-12")))

	got, err = store.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, snap.Equal(got.Snapshot))
	assert.True(t, got.SnapshotAt.Equal(d("2025-03-12")))

	// Profile saves never touch the snapshot.
	e := employee("e1", "e1@example.com")
	e.Name = "Renamed"
	require.NoError(t, store.SaveEmployee(ctx, e))
	got, err = store.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, leave.OnLeave, got.Snapshot.Status)
}

func TestStore_GetEmployee_Missing_ReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetEmployee(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, employee("e1", "same@example.com")))
	err := store.SaveEmployee(ctx, employee("e2", "SAME@example.com"))
	assert.ErrorIs(t, err, leave.ErrDuplicateEmail)
}

func TestStore_DeleteEmployee_Cascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, employee("e1", "e1@example.com")))
	require.NoError(t, store.InsertLeave(ctx, leaveRecord("l1", "e1", "2025-01-06", "2025-01-10", leave.StatusApproved)))

	require.NoError(t, store.DeleteEmployee(ctx, "e1"))

	got, err := store.GetLeave(ctx, "l1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, store.DeleteEmployee(ctx, "e1"), leave.ErrEmployeeNotFound)
}

// =============================================================================
// LEAVE RECORDS
// =============================================================================

func TestStore_Leave_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("e1", "e1@example.com")))

	r := leaveRecord("l1", "e1", "2025-01-06", "2025-01-10", leave.StatusPending)
	bonus := decimal.RequireFromString("2.5")
	r.Bonus = &bonus
	r.Notes = "ski trip"
	require.NoError(t, store.InsertLeave(ctx, r))

	got, err := store.GetLeave(ctx, "l1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.StartDate.Equal(d("2025-01-06")))
	assert.Equal(t, 5, got.WorkingDays)
	assert.Equal(t, "ski trip", got.Notes)
	require.NotNil(t, got.Bonus)
	assert.True(t, bonus.Equal(*got.Bonus))

	got.Status = leave.StatusApproved
	got.Bonus = nil
	require.NoError(t, store.UpdateLeave(ctx, *got))

	got, err = store.GetLeave(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Nil(t, got.Bonus)

	require.NoError(t, store.DeleteLeave(ctx, "l1"))
	assert.ErrorIs(t, store.DeleteLeave(ctx, "l1"), leave.ErrLeaveNotFound)
	assert.ErrorIs(t, store.UpdateLeave(ctx, *got), leave.ErrLeaveNotFound)
}

func TestStore_InsertLeave_UnknownEmployee(t *testing.T) {
	store := newTestStore(t)

	err := store.InsertLeave(context.Background(), leaveRecord("l1", "ghost", "2025-01-06", "2025-01-10", leave.StatusApproved))
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
}

func TestStore_ListLeaves_FilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("e1", "e1@example.com")))
	require.NoError(t, store.SaveEmployee(ctx, employee("e2", "e2@example.com")))

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	inserts := []leave.LeaveRecord{
		leaveRecord("l1", "e1", "2025-03-03", "2025-03-05", leave.StatusApproved),
		leaveRecord("l2", "e1", "2025-01-06", "2025-01-08", leave.StatusPending),
		leaveRecord("l3", "e2", "2024-11-04", "2024-11-06", leave.StatusRejected),
	}
	for i, r := range inserts {
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.InsertLeave(ctx, r))
	}

	all, err := store.ListLeaves(ctx, leave.LeaveFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"l3", "l2", "l1"}, []string{all[0].ID, all[1].ID, all[2].ID}, "most recent first")

	byEmp, err := store.LeavesByEmployee(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, byEmp, 2)
	assert.Equal(t, "l2", byEmp[0].ID, "ordered by start date")

	filtered, err := store.ListLeaves(ctx, leave.LeaveFilter{EmployeeID: "e1", Year: 2025, Status: leave.StatusApproved, Type: leave.TypeAnnual})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "l1", filtered[0].ID)
}

func TestStore_ListLeaves_SubSecondOrder(t *testing.T) {
	// GIVEN: Pairs of records created within the same second, with fractional
	//        seconds that do not sort as text (.5 after whole, .12 after .1)
	// WHEN: Listing
	// THEN: Newest first, and CreatedAt survives the round trip

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("e1", "e1@example.com")))

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	created := []time.Time{
		base,
		base.Add(500 * time.Millisecond),
		base.Add(time.Second + 100*time.Millisecond),
		base.Add(time.Second + 120*time.Millisecond),
	}
	starts := []string{"2025-02-03", "2025-03-03", "2025-04-07", "2025-05-05"}
	for i, at := range created {
		start := d(starts[i])
		r := leaveRecord(fmt.Sprintf("l%d", i+1), "e1", starts[i], start.AddDays(2).String(), leave.StatusApproved)
		r.CreatedAt = at
		require.NoError(t, store.InsertLeave(ctx, r))
	}

	all, err := store.ListLeaves(ctx, leave.LeaveFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"l4", "l3", "l2", "l1"}, []string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})
	assert.True(t, created[1].Equal(all[2].CreatedAt), "got %s", all[2].CreatedAt)

	// An update keeps the record's place in creation order
	r := all[3]
	r.Notes = "edited"
	require.NoError(t, store.UpdateLeave(ctx, r))
	all, err = store.ListLeaves(ctx, leave.LeaveFilter{})
	require.NoError(t, err)
	assert.Equal(t, "l1", all[3].ID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, employee("e1", "e1@example.com")))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx leave.Store) error {
		if err := tx.InsertLeave(ctx, leaveRecord("l1", "e1", "2025-01-06", "2025-01-10", leave.StatusApproved)); err != nil {
			return err
		}
		if err := tx.SaveSnapshot(ctx, "e1", leave.Snapshot{Status: leave.OnLeave}, d("2025-01-07")); err != nil {
			return err
		}

		// Reads inside the transaction see its own writes.
		records, err := tx.LeavesByEmployee(ctx, "e1")
		if err != nil {
			return err
		}
		assert.Len(t, records, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetLeave(ctx, "l1")
	require.NoError(t, err)
	assert.Nil(t, got)

	emp, err := store.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, leave.Available, emp.Snapshot.Status)
}

func TestStore_Service_Lifecycle(t *testing.T) {
	// GIVEN: The orchestrator running on SQLite
	// WHEN: A leave is booked, conflicts, and is deleted
	// THEN: Snapshots follow each committed write

	store := newTestStore(t)
	ctx := context.Background()

	svc := leave.NewService(store, zap.NewNop())
	svc.Now = func() time.Time { return d("2025-03-18").Time() }

	emp, err := svc.CreateEmployee(ctx, leave.EmployeeInput{Name: "Dana", Email: "dana@example.com", AnnualEntitlement: 25})
	require.NoError(t, err)

	res, err := svc.CreateLeave(ctx, leave.CreateLeaveInput{
		EmployeeID: emp.ID,
		StartDate:  d("2025-03-10"),
		EndDate:    d("2025-03-20"),
		Type:       leave.TypeAnnual,
	})
	require.NoError(t, err)
	assert.Equal(t, leave.ReturningSoon, res.Employee.Snapshot.Status)

	_, err = svc.CreateLeave(ctx, leave.CreateLeaveInput{
		EmployeeID: emp.ID,
		StartDate:  d("2025-03-20"),
		EndDate:    d("2025-03-25"),
		Type:       leave.TypePersonal,
	})
	assert.ErrorIs(t, err, leave.ErrConflict)

	updated, err := svc.DeleteLeave(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.Available, updated.Snapshot.Status)

	stored, err := store.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.Available, stored.Snapshot.Status)
	assert.Nil(t, stored.Snapshot.CurrentLeave)
}

func TestStore_Service_ConcurrentOverlappingCreates_OneWins(t *testing.T) {
	// GIVEN: 20 concurrent bookings of the same week on SQLite
	// WHEN: They race through the service
	// THEN: Exactly one commits and the rest conflict

	store := newTestStore(t)
	ctx := context.Background()

	svc := leave.NewService(store, zap.NewNop())
	svc.Now = func() time.Time { return d("2025-01-01").Time() }

	emp, err := svc.CreateEmployee(ctx, leave.EmployeeInput{Name: "Eve", Email: "eve@example.com", AnnualEntitlement: 25})
	require.NoError(t, err)

	const n = 20
	var ok, conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := svc.CreateLeave(ctx, leave.CreateLeaveInput{
				EmployeeID: emp.ID,
				StartDate:  d("2025-08-04"),
				EndDate:    d("2025-08-08"),
				Type:       leave.TypeAnnual,
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, leave.ErrConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())

	records, err := store.LeavesByEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
