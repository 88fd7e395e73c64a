// Package store provides in-process leave.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees map[string]leave.Employee
	leaves    map[string]leave.LeaveRecord
	seq       map[string]int // leave ID -> insertion sequence
	next      int
}

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[string]leave.Employee),
		leaves:    make(map[string]leave.LeaveRecord),
		seq:       make(map[string]int),
	}
}

func (m *Memory) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployeeLocked(id), nil
}

// LockEmployee outside a transaction is a plain read; inside WithTx the
// whole store is already held exclusively.
func (m *Memory) LockEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return m.GetEmployee(ctx, id)
}

func (m *Memory) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployeesLocked(), nil
}

func (m *Memory) SaveEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEmployeeLocked(e)
}

func (m *Memory) DeleteEmployee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEmployeeLocked(id)
}

func (m *Memory) SaveSnapshot(_ context.Context, employeeID string, snap leave.Snapshot, asOf calendar.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSnapshotLocked(employeeID, snap, asOf)
}

func (m *Memory) GetLeave(_ context.Context, id string) (*leave.LeaveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLeaveLocked(id), nil
}

func (m *Memory) ListLeaves(_ context.Context, filter leave.LeaveFilter) ([]leave.LeaveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLeavesLocked(filter), nil
}

func (m *Memory) LeavesByEmployee(_ context.Context, employeeID string) ([]leave.LeaveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leavesByEmployeeLocked(employeeID), nil
}

func (m *Memory) InsertLeave(_ context.Context, r leave.LeaveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLeaveLocked(r)
}

func (m *Memory) UpdateLeave(_ context.Context, r leave.LeaveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLeaveLocked(r)
}

func (m *Memory) DeleteLeave(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLeaveLocked(id)
}

// =============================================================================
// LOCKED HELPERS - Caller holds mu
// =============================================================================

func (m *Memory) getEmployeeLocked(id string) *leave.Employee {
	e, ok := m.employees[id]
	if !ok {
		return nil
	}
	e = cloneEmployee(e)
	return &e
}

func (m *Memory) listEmployeesLocked() []leave.Employee {
	result := make([]leave.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		result = append(result, cloneEmployee(e))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) saveEmployeeLocked(e leave.Employee) error {
	for id, other := range m.employees {
		if id != e.ID && strings.EqualFold(other.Email, e.Email) {
			return leave.ErrDuplicateEmail
		}
	}

	// Profile only: keep the stored snapshot and creation time.
	if existing, ok := m.employees[e.ID]; ok {
		e.Snapshot = existing.Snapshot
		e.SnapshotAt = existing.SnapshotAt
		e.CreatedAt = existing.CreatedAt
	} else {
		e.Snapshot = leave.Snapshot{Status: leave.Available}
		e.SnapshotAt = calendar.Date{}
	}
	m.employees[e.ID] = cloneEmployee(e)
	return nil
}

func (m *Memory) deleteEmployeeLocked(id string) error {
	if _, ok := m.employees[id]; !ok {
		return leave.ErrEmployeeNotFound
	}
	delete(m.employees, id)
	for lid, r := range m.leaves {
		if r.EmployeeID == id {
			delete(m.leaves, lid)
			delete(m.seq, lid)
		}
	}
	return nil
}

func (m *Memory) saveSnapshotLocked(employeeID string, snap leave.Snapshot, asOf calendar.Date) error {
	e, ok := m.employees[employeeID]
	if !ok {
		return leave.ErrEmployeeNotFound
	}
	e.Snapshot = snap
	e.SnapshotAt = asOf
	m.employees[employeeID] = cloneEmployee(e)
	return nil
}

func (m *Memory) getLeaveLocked(id string) *leave.LeaveRecord {
	r, ok := m.leaves[id]
	if !ok {
		return nil
	}
	r = cloneRecord(r)
	return &r
}

// listLeavesLocked returns matches, most recently inserted first.
func (m *Memory) listLeavesLocked(filter leave.LeaveFilter) []leave.LeaveRecord {
	var result []leave.LeaveRecord
	for _, r := range m.leaves {
		if filter.Matches(r) {
			result = append(result, cloneRecord(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return m.seq[result[i].ID] > m.seq[result[j].ID]
	})
	return result
}

func (m *Memory) leavesByEmployeeLocked(employeeID string) []leave.LeaveRecord {
	var result []leave.LeaveRecord
	for _, r := range m.leaves {
		if r.EmployeeID == employeeID {
			result = append(result, cloneRecord(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return m.seq[result[i].ID] < m.seq[result[j].ID]
	})
	return result
}

func (m *Memory) insertLeaveLocked(r leave.LeaveRecord) error {
	if _, ok := m.employees[r.EmployeeID]; !ok {
		return leave.ErrEmployeeNotFound
	}
	if _, ok := m.leaves[r.ID]; ok {
		return fmt.Errorf("leave %s already exists", r.ID)
	}
	m.next++
	m.seq[r.ID] = m.next
	m.leaves[r.ID] = cloneRecord(r)
	return nil
}

func (m *Memory) updateLeaveLocked(r leave.LeaveRecord) error {
	existing, ok := m.leaves[r.ID]
	if !ok {
		return leave.ErrLeaveNotFound
	}
	r.EmployeeID = existing.EmployeeID
	r.CreatedAt = existing.CreatedAt
	m.leaves[r.ID] = cloneRecord(r)
	return nil
}

func (m *Memory) deleteLeaveLocked(id string) error {
	if _, ok := m.leaves[id]; !ok {
		return leave.ErrLeaveNotFound
	}
	delete(m.leaves, id)
	delete(m.seq, id)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The store is held exclusively for the duration of fn, which also makes
// LockEmployee trivially correct.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	employees map[string]leave.Employee
	leaves    map[string]leave.LeaveRecord
	seq       map[string]int
	next      int
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		employees: make(map[string]leave.Employee, len(tm.employees)),
		leaves:    make(map[string]leave.LeaveRecord, len(tm.leaves)),
		seq:       make(map[string]int, len(tm.seq)),
		next:      tm.next,
	}
	for k, v := range tm.employees {
		s.employees[k] = cloneEmployee(v)
	}
	for k, v := range tm.leaves {
		s.leaves[k] = cloneRecord(v)
	}
	for k, v := range tm.seq {
		s.seq[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.employees = s.employees
	tm.leaves = s.leaves
	tm.seq = s.seq
	tm.next = s.next
}

// txMemoryView is the Store handed to fn. It reads and writes the parent
// directly because WithTx already holds the lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	return tv.parent.getEmployeeLocked(id), nil
}

func (tv *txMemoryView) LockEmployee(_ context.Context, id string) (*leave.Employee, error) {
	return tv.parent.getEmployeeLocked(id), nil
}

func (tv *txMemoryView) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	return tv.parent.listEmployeesLocked(), nil
}

func (tv *txMemoryView) SaveEmployee(_ context.Context, e leave.Employee) error {
	return tv.parent.saveEmployeeLocked(e)
}

func (tv *txMemoryView) DeleteEmployee(_ context.Context, id string) error {
	return tv.parent.deleteEmployeeLocked(id)
}

func (tv *txMemoryView) SaveSnapshot(_ context.Context, employeeID string, snap leave.Snapshot, asOf calendar.Date) error {
	return tv.parent.saveSnapshotLocked(employeeID, snap, asOf)
}

func (tv *txMemoryView) GetLeave(_ context.Context, id string) (*leave.LeaveRecord, error) {
	return tv.parent.getLeaveLocked(id), nil
}

func (tv *txMemoryView) ListLeaves(_ context.Context, filter leave.LeaveFilter) ([]leave.LeaveRecord, error) {
	return tv.parent.listLeavesLocked(filter), nil
}

func (tv *txMemoryView) LeavesByEmployee(_ context.Context, employeeID string) ([]leave.LeaveRecord, error) {
	return tv.parent.leavesByEmployeeLocked(employeeID), nil
}

func (tv *txMemoryView) InsertLeave(_ context.Context, r leave.LeaveRecord) error {
	return tv.parent.insertLeaveLocked(r)
}

func (tv *txMemoryView) UpdateLeave(_ context.Context, r leave.LeaveRecord) error {
	return tv.parent.updateLeaveLocked(r)
}

func (tv *txMemoryView) DeleteLeave(_ context.Context, id string) error {
	return tv.parent.deleteLeaveLocked(id)
}

// =============================================================================
// COPY HELPERS - Callers never share pointers with stored values
// =============================================================================

func cloneEmployee(e leave.Employee) leave.Employee {
	if e.Snapshot.CurrentLeave != nil {
		cl := *e.Snapshot.CurrentLeave
		e.Snapshot.CurrentLeave = &cl
	}
	return e
}

func cloneRecord(r leave.LeaveRecord) leave.LeaveRecord {
	if r.Bonus != nil {
		b := *r.Bonus
		r.Bonus = &b
	}
	return r
}
