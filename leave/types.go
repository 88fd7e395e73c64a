/*
Package leave implements the leave ledger and availability engine.

PURPOSE:
  Tracks staff leave records and derives each employee's real-time
  availability (available / on_leave / returning_soon) from them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee:    Profile plus a cached availability Snapshot
  - LeaveRecord: One requested/approved/rejected span of time off
  - Snapshot:    Derived status; a cache, never a source of truth
  - LeaveFilter: Read-side query over the ledger

DESIGN PRINCIPLES:
  1. The leave records are authoritative; the snapshot is recomputed from
     them after every write, never patched incrementally
  2. TotalDays/WorkingDays are engine outputs, computed from the dates
  3. Balance is projected at read time (balance.go), never stored

SEE ALSO:
  - overlap.go:      Overlap validator
  - availability.go: Snapshot derivation
  - service.go:      Lifecycle orchestrator (the only writer)
  - store.go:        Persistence interfaces
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// ENUMS
// =============================================================================

type LeaveType string

const (
	TypeAnnual    LeaveType = "ANNUAL"
	TypeSick      LeaveType = "SICK"
	TypePersonal  LeaveType = "PERSONAL"
	TypeMaternity LeaveType = "MATERNITY"
	TypePaternity LeaveType = "PATERNITY"
)

// LeaveTypes lists every accepted leave type.
var LeaveTypes = []LeaveType{TypeAnnual, TypeSick, TypePersonal, TypeMaternity, TypePaternity}

func (t LeaveType) Valid() bool {
	for _, lt := range LeaveTypes {
		if t == lt {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusApproved Status = "APPROVED"
	StatusPending  Status = "PENDING"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	return s == StatusApproved || s == StatusPending || s == StatusRejected
}

// Active reports whether a record with this status occupies its dates.
// REJECTED records free their dates.
func (s Status) Active() bool {
	return s == StatusApproved || s == StatusPending
}

// CanTransition is the approval state machine:
// PENDING -> APPROVED, PENDING|APPROVED -> REJECTED.
func (s Status) CanTransition(to Status) bool {
	switch to {
	case StatusApproved:
		return s == StatusPending
	case StatusRejected:
		return s == StatusPending || s == StatusApproved
	default:
		return false
	}
}

type Availability string

const (
	Available     Availability = "available"
	OnLeave       Availability = "on_leave"
	ReturningSoon Availability = "returning_soon"
)

// ReturningSoonThreshold is the largest number of remaining days that still
// counts as returning soon.
const ReturningSoonThreshold = 3

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID                string
	Name              string
	Department        string
	Role              string
	Email             string
	AnnualEntitlement int

	// Snapshot fields. Written only by Service through Store.SaveSnapshot.
	Snapshot   Snapshot
	SnapshotAt calendar.Date // day the snapshot was derived for

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentLeave describes the leave an employee is on right now.
type CurrentLeave struct {
	LeaveID   string
	StartDate calendar.Date
	EndDate   calendar.Date
	Type      LeaveType
}

// Snapshot is the denormalized availability cached on Employee.
// CurrentLeave is non-nil only when Status != Available.
type Snapshot struct {
	Status       Availability
	CurrentLeave *CurrentLeave
}

// Equal compares two snapshots field by field.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.Status != other.Status {
		return false
	}
	if s.CurrentLeave == nil || other.CurrentLeave == nil {
		return s.CurrentLeave == nil && other.CurrentLeave == nil
	}
	a, b := s.CurrentLeave, other.CurrentLeave
	return a.LeaveID == b.LeaveID && a.Type == b.Type &&
		a.StartDate.Equal(b.StartDate) && a.EndDate.Equal(b.EndDate)
}

// =============================================================================
// LEAVE RECORD
// =============================================================================

type LeaveRecord struct {
	ID          string
	EmployeeID  string
	StartDate   calendar.Date
	EndDate     calendar.Date
	TotalDays   int
	WorkingDays int
	Type        LeaveType
	Status      Status
	Year        int
	Notes       string
	Bonus       *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r LeaveRecord) Interval() calendar.Interval {
	return calendar.NewInterval(r.StartDate, r.EndDate)
}

// Period renders the record's dates for conflict messages.
func (r LeaveRecord) Period() string {
	return r.Interval().String()
}

// recomputeDays overwrites the derived day counts from the dates.
func (r *LeaveRecord) recomputeDays() {
	r.TotalDays = calendar.TotalDays(r.StartDate, r.EndDate)
	r.WorkingDays = calendar.WorkingDays(r.StartDate, r.EndDate)
}

// =============================================================================
// QUERIES
// =============================================================================

// LeaveFilter narrows a ledger listing. Zero values mean "any".
type LeaveFilter struct {
	EmployeeID string
	Year       int
	Type       LeaveType
	Status     Status
}

// Matches applies the filter in memory. SQL stores translate it to WHERE clauses.
func (f LeaveFilter) Matches(r LeaveRecord) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Year != 0 && r.Year != f.Year {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}
