/*
errors.go - Error taxonomy for the leave engine

ERROR CATEGORIES:
  1. Not found     - employee or leave record missing (404)
  2. Client errors - invalid interval, invalid input, bad transition (400)
  3. Conflicts     - overlapping active leave, duplicate email (409)
  4. Persistence   - storage failure, never retried by the engine (500)

USAGE:
  if errors.Is(err, leave.ErrConflict) {
      var ce *leave.ConflictError
      errors.As(err, &ce) // ce.Existing names the colliding record
  }

SEE ALSO:
  - api/errors.go: HTTP status mapping
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrLeaveNotFound    = errors.New("leave record not found")

	// ErrInvalidInterval aliases the calendar error so callers need only one import.
	ErrInvalidInterval = calendar.ErrInvalidInterval

	ErrInvalidInput = errors.New("invalid input")

	// ErrDerivedMismatch is returned when a caller-supplied day count does not
	// match the count computed from the dates.
	ErrDerivedMismatch = errors.New("day counts do not match the requested dates")

	ErrInvalidTransition = errors.New("invalid leave status transition")

	ErrConflict       = errors.New("leave overlaps an existing approved or pending leave")
	ErrDuplicateEmail = errors.New("email already in use")

	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError names the record a candidate interval collided with.
type ConflictError struct {
	EmployeeID string
	Candidate  calendar.Interval
	Existing   LeaveRecord
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("leave %s overlaps existing %s leave %s (%s, %s)",
		e.Candidate, e.Existing.Type, e.Existing.ID, e.Existing.Period(), e.Existing.Status)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InputError describes which field of a request was rejected.
type InputError struct {
	Field  string
	Reason string
	Err    error // ErrInvalidInput, ErrDerivedMismatch or ErrInvalidInterval
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

func invalidField(field, reason string) error {
	return &InputError{Field: field, Reason: reason, Err: ErrInvalidInput}
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// persistence wraps err unless it is already part of the taxonomy.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsClientError(err) || IsConflict(err) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) || errors.Is(err, ErrLeaveNotFound)
}

// IsClientError returns true if the caller must correct the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDerivedMismatch) ||
		errors.Is(err, ErrInvalidTransition)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicateEmail)
}
