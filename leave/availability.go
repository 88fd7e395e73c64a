package leave

import "github.com/warp/leave-engine/calendar"

// =============================================================================
// AVAILABILITY DERIVER
// =============================================================================

// Derive computes an employee's snapshot from their full record set as of now.
//
// An APPROVED record whose [StartDate, EndDate] contains now puts the employee
// on leave; with ReturningSoonThreshold or fewer days left they are returning
// soon. PENDING and REJECTED records never affect availability.
//
// Derive is pure: the orchestrator may call it after every write without
// accumulating drift. If several approved records cover now (only possible if
// the overlap invariant was bypassed) the earliest-starting one wins.
func Derive(now calendar.Date, records []LeaveRecord) Snapshot {
	var current *LeaveRecord
	for i := range records {
		r := &records[i]
		if r.Status != StatusApproved || !r.Interval().Contains(now) {
			continue
		}
		if current == nil || r.StartDate.Before(current.StartDate) {
			current = r
		}
	}

	if current == nil {
		return Snapshot{Status: Available}
	}

	status := OnLeave
	if now.DaysUntil(current.EndDate) <= ReturningSoonThreshold {
		status = ReturningSoon
	}
	return Snapshot{
		Status: status,
		CurrentLeave: &CurrentLeave{
			LeaveID:   current.ID,
			StartDate: current.StartDate,
			EndDate:   current.EndDate,
			Type:      current.Type,
		},
	}
}
