package calendar

import "errors"

// ErrInvalidInterval is returned when an interval's end is not strictly after its start.
var ErrInvalidInterval = errors.New("invalid interval: end date must be after start date")

// =============================================================================
// INTERVAL - Closed range of days
// =============================================================================

// Interval is the closed range [Start, End]. Both ends are booked days.
type Interval struct {
	Start Date
	End   Date
}

// NewInterval builds an interval without validating it.
func NewInterval(start, end Date) Interval {
	return Interval{Start: start, End: end}
}

// Validate enforces Start < End. A zero date on either side is also rejected.
func (iv Interval) Validate() error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return ErrInvalidInterval
	}
	if !iv.Start.Before(iv.End) {
		return ErrInvalidInterval
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (iv Interval) Contains(d Date) bool {
	return d.AfterOrEqual(iv.Start) && d.BeforeOrEqual(iv.End)
}

// Overlaps reports whether the two closed intervals share at least one day.
// Touching endpoints overlap: a shared day cannot be booked twice.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(iv.End)
}

func (iv Interval) TotalDays() int   { return TotalDays(iv.Start, iv.End) }
func (iv Interval) WorkingDays() int { return WorkingDays(iv.Start, iv.End) }

func (iv Interval) String() string {
	return iv.Start.String() + " to " + iv.End.String()
}

// =============================================================================
// DAY COUNTS
// =============================================================================
// Callers must reject start > end before counting; both functions return 0
// for a reversed range rather than a negative number.

// TotalDays is the inclusive calendar-day count of [start, end].
func TotalDays(start, end Date) int {
	if start.After(end) {
		return 0
	}
	return start.DaysUntil(end) + 1
}

// WorkingDays counts Monday-Friday days in [start, end]. No holiday calendar.
func WorkingDays(start, end Date) int {
	count := 0
	for current := start; current.BeforeOrEqual(end); current = current.AddDays(1) {
		if current.IsWorkday() {
			count++
		}
	}
	return count
}

// YearOf is the accounting-year bucket of a date.
func YearOf(d Date) int { return d.Year() }
