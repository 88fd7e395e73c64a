package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

func iv(start, end string) calendar.Interval {
	return calendar.NewInterval(d(start), d(end))
}

func record(id, start, end string, status leave.Status) leave.LeaveRecord {
	return leave.LeaveRecord{
		ID:         id,
		EmployeeID: "emp-1",
		StartDate:  d(start),
		EndDate:    d(end),
		Type:       leave.TypeAnnual,
		Status:     status,
		Year:       d(start).Year(),
	}
}

// =============================================================================
// OVERLAP VALIDATOR
// =============================================================================

func TestValidateOverlap_TouchingEndpoints_Conflict(t *testing.T) {
	// GIVEN: An approved leave Jan 10-15
	// WHEN: A candidate starts on Jan 15
	// THEN: Shared day is a conflict

	existing := []leave.LeaveRecord{record("a", "2025-01-10", "2025-01-15", leave.StatusApproved)}

	res := leave.ValidateOverlap(iv("2025-01-15", "2025-01-20"), existing, "")
	assert.True(t, res.Conflict)
	require.NotNil(t, res.Conflicting)
	assert.Equal(t, "a", res.Conflicting.ID)
}

func TestValidateOverlap_AdjacentDays_NoConflict(t *testing.T) {
	existing := []leave.LeaveRecord{record("a", "2025-01-10", "2025-01-15", leave.StatusApproved)}

	res := leave.ValidateOverlap(iv("2025-01-16", "2025-01-20"), existing, "")
	assert.False(t, res.Conflict)
	assert.Nil(t, res.Conflicting)
}

func TestValidateOverlap_Cases(t *testing.T) {
	existing := []leave.LeaveRecord{record("a", "2025-03-10", "2025-03-20", leave.StatusApproved)}

	tests := []struct {
		name      string
		candidate calendar.Interval
		conflict  bool
	}{
		{"contained", iv("2025-03-12", "2025-03-14"), true},
		{"containing", iv("2025-03-01", "2025-03-31"), true},
		{"overlapping start", iv("2025-03-05", "2025-03-10"), true},
		{"overlapping end", iv("2025-03-20", "2025-03-25"), true},
		{"identical", iv("2025-03-10", "2025-03-20"), true},
		{"before", iv("2025-03-01", "2025-03-09"), false},
		{"after", iv("2025-03-21", "2025-03-30"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := leave.ValidateOverlap(tt.candidate, existing, "")
			assert.Equal(t, tt.conflict, res.Conflict)
		})
	}
}

func TestValidateOverlap_PendingBlocks_RejectedDoesNot(t *testing.T) {
	// GIVEN: A pending and a rejected leave on different ranges
	// WHEN: Candidates target each range
	// THEN: Pending blocks, rejected frees its dates

	existing := []leave.LeaveRecord{
		record("pending", "2025-05-01", "2025-05-05", leave.StatusPending),
		record("rejected", "2025-06-01", "2025-06-05", leave.StatusRejected),
	}

	assert.True(t, leave.ValidateOverlap(iv("2025-05-03", "2025-05-04"), existing, "").Conflict)
	assert.False(t, leave.ValidateOverlap(iv("2025-06-02", "2025-06-04"), existing, "").Conflict)
}

func TestValidateOverlap_ExcludesRecordBeingUpdated(t *testing.T) {
	existing := []leave.LeaveRecord{
		record("self", "2025-05-01", "2025-05-05", leave.StatusApproved),
		record("other", "2025-05-10", "2025-05-12", leave.StatusApproved),
	}

	// Moving "self" within its own range is fine.
	assert.False(t, leave.ValidateOverlap(iv("2025-05-02", "2025-05-06"), existing, "self").Conflict)

	// Moving it onto "other" is not.
	res := leave.ValidateOverlap(iv("2025-05-04", "2025-05-10"), existing, "self")
	require.True(t, res.Conflict)
	assert.Equal(t, "other", res.Conflicting.ID)
}

func TestValidateOverlap_ReportsFirstConflictInOrder(t *testing.T) {
	existing := []leave.LeaveRecord{
		record("first", "2025-07-01", "2025-07-03", leave.StatusApproved),
		record("second", "2025-07-05", "2025-07-07", leave.StatusPending),
	}

	res := leave.ValidateOverlap(iv("2025-07-01", "2025-07-10"), existing, "")
	require.True(t, res.Conflict)
	assert.Equal(t, "first", res.Conflicting.ID)
}

func TestValidateOverlap_EmptyExisting(t *testing.T) {
	res := leave.ValidateOverlap(iv("2025-01-01", "2025-01-02"), nil, "")
	assert.False(t, res.Conflict)
}
