package leave

import "github.com/warp/leave-engine/calendar"

// =============================================================================
// OVERLAP VALIDATOR
// =============================================================================
// INVARIANT: among one employee's APPROVED and PENDING records, no two
// intervals overlap. REJECTED records are outside the overlap universe.

// OverlapResult is the validator's verdict. Conflicting is set only when
// Conflict is true.
type OverlapResult struct {
	Conflict    bool
	Conflicting *LeaveRecord
}

// ValidateOverlap checks candidate against existing records in iteration order
// and returns the first active record it overlaps. The record with excludeID
// (the one being updated) is skipped. Never fails.
func ValidateOverlap(candidate calendar.Interval, existing []LeaveRecord, excludeID string) OverlapResult {
	for i := range existing {
		r := existing[i]
		if !r.Status.Active() {
			continue
		}
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if candidate.Overlaps(r.Interval()) {
			return OverlapResult{Conflict: true, Conflicting: &r}
		}
	}
	return OverlapResult{}
}
