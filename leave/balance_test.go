package leave_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/leave-engine/leave"
)

func withDays(r leave.LeaveRecord, working int) leave.LeaveRecord {
	r.WorkingDays = working
	return r
}

func TestProjectBalance_ApprovedAnnualOnly(t *testing.T) {
	// GIVEN: 25 days entitlement, 11 approved annual days, plus pending,
	//        rejected, sick and other-year records
	// WHEN: Projecting 2025
	// THEN: Remaining = 25 - 11 = 14; pending reported but not subtracted

	sick := withDays(record("sick", "2025-04-01", "2025-04-03", leave.StatusApproved), 3)
	sick.Type = leave.TypeSick

	records := []leave.LeaveRecord{
		withDays(record("a1", "2025-01-06", "2025-01-10", leave.StatusApproved), 5),
		withDays(record("a2", "2025-03-03", "2025-03-10", leave.StatusApproved), 6),
		withDays(record("p", "2025-05-05", "2025-05-07", leave.StatusPending), 3),
		withDays(record("r", "2025-06-02", "2025-06-06", leave.StatusRejected), 5),
		withDays(record("old", "2024-06-03", "2024-06-07", leave.StatusApproved), 5),
		sick,
	}

	b := leave.ProjectBalance("emp-1", 25, 2025, records)

	assert.Equal(t, 25, b.Entitlement)
	assert.Equal(t, 11, b.Used)
	assert.Equal(t, 3, b.Pending)
	assert.Equal(t, 14, b.Remaining)
	assert.Equal(t, 2025, b.Year)
}

func TestProjectBalance_BonusFromApprovedRecords(t *testing.T) {
	bonus := decimal.RequireFromString("1.5")
	more := decimal.RequireFromString("0.25")
	ignored := decimal.RequireFromString("10")

	a := record("a", "2025-01-06", "2025-01-10", leave.StatusApproved)
	a.Bonus = &bonus
	s := record("s", "2025-02-03", "2025-02-04", leave.StatusApproved)
	s.Type = leave.TypeSick
	s.Bonus = &more
	p := record("p", "2025-03-03", "2025-03-04", leave.StatusPending)
	p.Bonus = &ignored

	b := leave.ProjectBalance("emp-1", 20, 2025, []leave.LeaveRecord{a, s, p})
	assert.True(t, decimal.RequireFromString("1.75").Equal(b.BonusTotal), "got %s", b.BonusTotal)
}

func TestProjectBalance_Overdrawn(t *testing.T) {
	records := []leave.LeaveRecord{withDays(record("a", "2025-01-06", "2025-01-31", leave.StatusApproved), 20)}

	b := leave.ProjectBalance("emp-1", 15, 2025, records)
	assert.Equal(t, -5, b.Remaining)
}

func TestProjectBalance_OtherEmployeeIgnored(t *testing.T) {
	r := withDays(record("a", "2025-01-06", "2025-01-10", leave.StatusApproved), 5)
	r.EmployeeID = "emp-2"

	b := leave.ProjectBalance("emp-1", 10, 2025, []leave.LeaveRecord{r})
	assert.Equal(t, 0, b.Used)
	assert.Equal(t, 10, b.Remaining)
}
