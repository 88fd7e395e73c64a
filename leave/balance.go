package leave

import "github.com/shopspring/decimal"

// =============================================================================
// BALANCE PROJECTION - Computed on read, never stored
// =============================================================================

// Balance is an employee's annual-leave position for one accounting year.
type Balance struct {
	EmployeeID  string
	Year        int
	Entitlement int
	Used        int // working days of APPROVED ANNUAL records in Year
	Pending     int // working days of PENDING ANNUAL records in Year; not subtracted
	Remaining   int // Entitlement - Used
	BonusTotal  decimal.Decimal
}

// ProjectBalance derives the balance from the employee's records.
// Only APPROVED records of type ANNUAL count toward Used.
func ProjectBalance(employeeID string, entitlement, year int, records []LeaveRecord) Balance {
	b := Balance{
		EmployeeID:  employeeID,
		Year:        year,
		Entitlement: entitlement,
		BonusTotal:  decimal.Zero,
	}

	for _, r := range records {
		if r.EmployeeID != employeeID || r.Year != year {
			continue
		}
		if r.Status == StatusApproved && r.Bonus != nil {
			b.BonusTotal = b.BonusTotal.Add(*r.Bonus)
		}
		if r.Type != TypeAnnual {
			continue
		}
		switch r.Status {
		case StatusApproved:
			b.Used += r.WorkingDays
		case StatusPending:
			b.Pending += r.WorkingDays
		}
	}

	b.Remaining = b.Entitlement - b.Used
	return b
}
