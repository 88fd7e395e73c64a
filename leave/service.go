/*
service.go - Leave lifecycle orchestrator

PURPOSE:
  The only component allowed to mutate leave records and the employee
  availability snapshot together. Every write runs as one unit of work:

    WithTx
      1. LockEmployee          (employee-scoped write lock)
      2. validate              (interval, fields, overlap)
      3. write the record
      4. reload the employee's records from the transactional store
      5. Derive(today, records) and SaveSnapshot

  If any step fails the transaction rolls back, so a record can never be
  committed with a stale snapshot, and a snapshot can never point at a
  record that was not committed.

STATE MACHINE (ApproveLeave / RejectLeave):
  PENDING -> APPROVED
  PENDING | APPROVED -> REJECTED
  UpdateLeave may set any status explicitly; overlap is re-validated
  whenever the resulting status is APPROVED or PENDING.

CLOCK:
  Now is injected so tests pin "today". Derive never reads the clock.

SEE ALSO:
  - overlap.go, availability.go, balance.go: Pure rules used here
  - store.go: TxStore contract
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store  TxStore
	Logger *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

func NewService(store TxStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:  store,
		Logger: logger.Named("leave.service"),
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

func (s *Service) today() calendar.Date {
	return calendar.FromTime(s.Now())
}

// =============================================================================
// INPUTS / OUTPUTS
// =============================================================================

type EmployeeInput struct {
	ID                string
	Name              string
	Department        string
	Role              string
	Email             string
	AnnualEntitlement int
}

// EmployeeUpdate carries profile changes. Nil fields are left untouched.
// There is deliberately no way to set the snapshot here.
type EmployeeUpdate struct {
	Name              *string
	Department        *string
	Role              *string
	Email             *string
	AnnualEntitlement *int
}

// EmployeeDetail is an employee with their full leave history.
type EmployeeDetail struct {
	Employee Employee
	Leaves   []LeaveRecord
}

type CreateLeaveInput struct {
	EmployeeID string
	StartDate  calendar.Date
	EndDate    calendar.Date
	Type       LeaveType
	Status     Status // defaults to APPROVED
	Year       int    // defaults to the start date's year
	Notes      string
	Bonus      *decimal.Decimal

	// Optional caller-supplied counts. Checked against the computed values.
	TotalDays   *int
	WorkingDays *int
}

// UpdateLeaveInput is a partial update. Nil fields are left untouched.
type UpdateLeaveInput struct {
	StartDate   *calendar.Date
	EndDate     *calendar.Date
	Type        *LeaveType
	Status      *Status
	Year        *int
	Notes       *string
	Bonus       *decimal.Decimal
	TotalDays   *int
	WorkingDays *int
}

// LeaveResult is a written record together with the refreshed owner.
type LeaveResult struct {
	Record   LeaveRecord
	Employee Employee
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	log := s.Logger.With(zap.String("email", in.Email))

	if err := validateEmployee(in.Name, in.Email, in.AnnualEntitlement); err != nil {
		log.Warn("create employee validation failed", zap.Error(err))
		return nil, err
	}

	now := s.Now().UTC()
	emp := Employee{
		ID:                in.ID,
		Name:              in.Name,
		Department:        in.Department,
		Role:              in.Role,
		Email:             in.Email,
		AnnualEntitlement: in.AnnualEntitlement,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if emp.ID == "" {
		emp.ID = s.NewID()
	}

	err := s.Store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetEmployee(ctx, emp.ID)
		if err != nil {
			return persistence("load employee", err)
		}
		if existing != nil {
			return invalidField("id", "employee "+emp.ID+" already exists")
		}
		if err := tx.SaveEmployee(ctx, emp); err != nil {
			return persistence("save employee", err)
		}
		_, err = s.refreshLocked(ctx, tx, &emp)
		return err
	})
	if err != nil {
		err = persistence("create employee", err)
		s.logFailure(log, "create employee", err)
		return nil, err
	}

	log.Info("create employee success", zap.String("employee_id", emp.ID))
	return &emp, nil
}

// UpdateEmployee changes profile fields only.
func (s *Service) UpdateEmployee(ctx context.Context, id string, in EmployeeUpdate) (*Employee, error) {
	log := s.Logger.With(zap.String("employee_id", id))

	var updated Employee
	err := s.Store.WithTx(ctx, func(tx Store) error {
		emp, err := tx.LockEmployee(ctx, id)
		if err != nil {
			return persistence("lock employee", err)
		}
		if emp == nil {
			return ErrEmployeeNotFound
		}

		if in.Name != nil {
			emp.Name = *in.Name
		}
		if in.Department != nil {
			emp.Department = *in.Department
		}
		if in.Role != nil {
			emp.Role = *in.Role
		}
		if in.Email != nil {
			emp.Email = *in.Email
		}
		if in.AnnualEntitlement != nil {
			emp.AnnualEntitlement = *in.AnnualEntitlement
		}
		if err := validateEmployee(emp.Name, emp.Email, emp.AnnualEntitlement); err != nil {
			return err
		}
		emp.UpdatedAt = s.Now().UTC()

		if err := tx.SaveEmployee(ctx, *emp); err != nil {
			return persistence("save employee", err)
		}
		updated = *emp
		return nil
	})
	if err != nil {
		err = persistence("update employee", err)
		s.logFailure(log, "update employee", err)
		return nil, err
	}

	log.Info("update employee success")
	return &updated, nil
}

// GetEmployee returns the employee with full leave history. A snapshot
// derived on an earlier day is re-derived first, so the cached status is
// never read stale after the calendar moves on.
func (s *Service) GetEmployee(ctx context.Context, id string) (*EmployeeDetail, error) {
	emp, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, persistence("load employee", err)
	}
	if emp == nil {
		return nil, ErrEmployeeNotFound
	}

	if !emp.SnapshotAt.Equal(s.today()) {
		emp, err = s.RefreshAvailability(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	leaves, err := s.Store.LeavesByEmployee(ctx, id)
	if err != nil {
		return nil, persistence("load leaves", err)
	}
	return &EmployeeDetail{Employee: *emp, Leaves: leaves}, nil
}

func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	employees, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return nil, persistence("list employees", err)
	}

	today := s.today()
	for i := range employees {
		if employees[i].SnapshotAt.Equal(today) {
			continue
		}
		refreshed, err := s.RefreshAvailability(ctx, employees[i].ID)
		if err != nil {
			if IsNotFound(err) {
				continue // deleted concurrently
			}
			return nil, err
		}
		employees[i] = *refreshed
	}
	return employees, nil
}

// DeleteEmployee removes the employee and cascades to their leave records.
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	log := s.Logger.With(zap.String("employee_id", id))

	err := s.Store.WithTx(ctx, func(tx Store) error {
		emp, err := tx.LockEmployee(ctx, id)
		if err != nil {
			return persistence("lock employee", err)
		}
		if emp == nil {
			return ErrEmployeeNotFound
		}
		return persistence("delete employee", tx.DeleteEmployee(ctx, id))
	})
	if err != nil {
		err = persistence("delete employee", err)
		s.logFailure(log, "delete employee", err)
		return err
	}

	log.Info("delete employee success")
	return nil
}

// =============================================================================
// LEAVE LIFECYCLE
// =============================================================================

// CreateLeave validates and books a new leave record, then refreshes the
// owner's snapshot in the same transaction.
func (s *Service) CreateLeave(ctx context.Context, in CreateLeaveInput) (*LeaveResult, error) {
	log := s.Logger.With(zap.String("employee_id", in.EmployeeID))
	log.Debug("create leave requested",
		zap.Stringer("start_date", in.StartDate),
		zap.Stringer("end_date", in.EndDate),
		zap.String("type", string(in.Type)),
	)

	if in.EmployeeID == "" {
		err := invalidField("employeeId", "is required")
		s.logFailure(log, "create leave", err)
		return nil, err
	}

	var result LeaveResult
	err := s.Store.WithTx(ctx, func(tx Store) error {
		emp, err := tx.LockEmployee(ctx, in.EmployeeID)
		if err != nil {
			return persistence("lock employee", err)
		}
		if emp == nil {
			return ErrEmployeeNotFound
		}

		record, err := s.newRecord(in)
		if err != nil {
			return err
		}

		existing, err := tx.LeavesByEmployee(ctx, emp.ID)
		if err != nil {
			return persistence("load leaves", err)
		}
		if record.Status.Active() {
			if res := ValidateOverlap(record.Interval(), existing, ""); res.Conflict {
				return &ConflictError{EmployeeID: emp.ID, Candidate: record.Interval(), Existing: *res.Conflicting}
			}
		}

		if err := tx.InsertLeave(ctx, record); err != nil {
			return persistence("insert leave", err)
		}
		if _, err := s.refreshLocked(ctx, tx, emp); err != nil {
			return err
		}

		result = LeaveResult{Record: record, Employee: *emp}
		return nil
	})
	if err != nil {
		err = persistence("create leave", err)
		s.logFailure(log, "create leave", err)
		return nil, err
	}

	log.Info("create leave success",
		zap.String("leave_id", result.Record.ID),
		zap.String("status", string(result.Record.Status)),
		zap.String("availability", string(result.Employee.Snapshot.Status)),
	)
	return &result, nil
}

// UpdateLeave applies a partial update. Overlap is checked against the
// employee's other active records using the new interval.
func (s *Service) UpdateLeave(ctx context.Context, id string, in UpdateLeaveInput) (*LeaveResult, error) {
	log := s.Logger.With(zap.String("leave_id", id))
	log.Debug("update leave requested")

	result, err := s.mutateLeave(ctx, id, func(current LeaveRecord) (LeaveRecord, error) {
		return s.applyUpdate(current, in)
	})
	if err != nil {
		s.logFailure(log, "update leave", err)
		return nil, err
	}

	log.Info("update leave success",
		zap.String("employee_id", result.Record.EmployeeID),
		zap.String("status", string(result.Record.Status)),
	)
	return result, nil
}

func (s *Service) ApproveLeave(ctx context.Context, id string) (*LeaveResult, error) {
	return s.transition(ctx, id, StatusApproved)
}

func (s *Service) RejectLeave(ctx context.Context, id string) (*LeaveResult, error) {
	return s.transition(ctx, id, StatusRejected)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (*LeaveResult, error) {
	log := s.Logger.With(zap.String("leave_id", id), zap.String("target_status", string(to)))

	result, err := s.mutateLeave(ctx, id, func(current LeaveRecord) (LeaveRecord, error) {
		if !current.Status.CanTransition(to) {
			return current, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
		}
		current.Status = to
		current.UpdatedAt = s.Now().UTC()
		return current, nil
	})
	if err != nil {
		s.logFailure(log, "transition leave", err)
		return nil, err
	}

	log.Info("transition leave success", zap.String("employee_id", result.Record.EmployeeID))
	return result, nil
}

// mutateLeave is the shared write path for UpdateLeave and status changes.
func (s *Service) mutateLeave(ctx context.Context, id string, change func(LeaveRecord) (LeaveRecord, error)) (*LeaveResult, error) {
	var result LeaveResult
	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, emp, err := s.loadLocked(ctx, tx, id)
		if err != nil {
			return err
		}

		updated, err := change(*current)
		if err != nil {
			return err
		}

		if updated.Status.Active() {
			existing, err := tx.LeavesByEmployee(ctx, emp.ID)
			if err != nil {
				return persistence("load leaves", err)
			}
			if res := ValidateOverlap(updated.Interval(), existing, updated.ID); res.Conflict {
				return &ConflictError{EmployeeID: emp.ID, Candidate: updated.Interval(), Existing: *res.Conflicting}
			}
		}

		if err := tx.UpdateLeave(ctx, updated); err != nil {
			return persistence("update leave", err)
		}
		// Refresh even when dates are unchanged: a status change alone can
		// move the record in or out of "current leave".
		if _, err := s.refreshLocked(ctx, tx, emp); err != nil {
			return err
		}

		result = LeaveResult{Record: updated, Employee: *emp}
		return nil
	})
	if err != nil {
		return nil, persistence("update leave", err)
	}
	return &result, nil
}

// DeleteLeave removes a record and re-derives the owner's snapshot from the
// remaining records. Returns the refreshed employee.
func (s *Service) DeleteLeave(ctx context.Context, id string) (*Employee, error) {
	log := s.Logger.With(zap.String("leave_id", id))

	var updated Employee
	err := s.Store.WithTx(ctx, func(tx Store) error {
		_, emp, err := s.loadLocked(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteLeave(ctx, id); err != nil {
			return persistence("delete leave", err)
		}
		if _, err := s.refreshLocked(ctx, tx, emp); err != nil {
			return err
		}
		updated = *emp
		return nil
	})
	if err != nil {
		err = persistence("delete leave", err)
		s.logFailure(log, "delete leave", err)
		return nil, err
	}

	log.Info("delete leave success",
		zap.String("employee_id", updated.ID),
		zap.String("availability", string(updated.Snapshot.Status)),
	)
	return &updated, nil
}

// loadLocked finds a record, locks its owner, then re-reads the record under
// the lock so the caller never acts on a version another writer replaced.
func (s *Service) loadLocked(ctx context.Context, tx Store, id string) (*LeaveRecord, *Employee, error) {
	record, err := tx.GetLeave(ctx, id)
	if err != nil {
		return nil, nil, persistence("load leave", err)
	}
	if record == nil {
		return nil, nil, ErrLeaveNotFound
	}

	emp, err := tx.LockEmployee(ctx, record.EmployeeID)
	if err != nil {
		return nil, nil, persistence("lock employee", err)
	}
	if emp == nil {
		return nil, nil, ErrEmployeeNotFound
	}

	record, err = tx.GetLeave(ctx, id)
	if err != nil {
		return nil, nil, persistence("load leave", err)
	}
	if record == nil {
		return nil, nil, ErrLeaveNotFound
	}
	return record, emp, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetLeave(ctx context.Context, id string) (*LeaveRecord, error) {
	r, err := s.Store.GetLeave(ctx, id)
	if err != nil {
		return nil, persistence("load leave", err)
	}
	if r == nil {
		return nil, ErrLeaveNotFound
	}
	return r, nil
}

func (s *Service) ListLeaves(ctx context.Context, filter LeaveFilter) ([]LeaveRecord, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, invalidField("type", fmt.Sprintf("unknown leave type %q", filter.Type))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	records, err := s.Store.ListLeaves(ctx, filter)
	if err != nil {
		return nil, persistence("list leaves", err)
	}
	return records, nil
}

// Balance projects the annual-leave balance for year (0 = current year).
func (s *Service) Balance(ctx context.Context, employeeID string, year int) (*Balance, error) {
	emp, err := s.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, persistence("load employee", err)
	}
	if emp == nil {
		return nil, ErrEmployeeNotFound
	}
	if year == 0 {
		year = s.today().Year()
	}

	records, err := s.Store.LeavesByEmployee(ctx, employeeID)
	if err != nil {
		return nil, persistence("load leaves", err)
	}
	b := ProjectBalance(emp.ID, emp.AnnualEntitlement, year, records)
	return &b, nil
}

// =============================================================================
// AVAILABILITY REFRESH
// =============================================================================

// RefreshAvailability re-derives one employee's snapshot as of today.
func (s *Service) RefreshAvailability(ctx context.Context, employeeID string) (*Employee, error) {
	var updated Employee
	err := s.Store.WithTx(ctx, func(tx Store) error {
		emp, err := tx.LockEmployee(ctx, employeeID)
		if err != nil {
			return persistence("lock employee", err)
		}
		if emp == nil {
			return ErrEmployeeNotFound
		}
		if _, err := s.refreshLocked(ctx, tx, emp); err != nil {
			return err
		}
		updated = *emp
		return nil
	})
	if err != nil {
		return nil, persistence("refresh availability", err)
	}
	return &updated, nil
}

// RefreshAll re-derives every employee's snapshot. It keeps going past
// individual failures and returns how many were refreshed.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	employees, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return 0, persistence("list employees", err)
	}

	var (
		refreshed int
		errs      []error
	)
	for _, e := range employees {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.RefreshAvailability(ctx, e.ID); err != nil {
			if IsNotFound(err) {
				continue
			}
			s.Logger.Error("refresh availability failed", zap.String("employee_id", e.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		refreshed++
	}

	s.Logger.Info("refresh availability complete",
		zap.Int("employees", len(employees)),
		zap.Int("refreshed", refreshed),
	)
	return refreshed, errors.Join(errs...)
}

// refreshLocked derives the snapshot from the records as they now stand in
// the transactional store and persists it. emp is updated in place.
func (s *Service) refreshLocked(ctx context.Context, tx Store, emp *Employee) (*Employee, error) {
	records, err := tx.LeavesByEmployee(ctx, emp.ID)
	if err != nil {
		return nil, persistence("load leaves", err)
	}

	today := s.today()
	snap := Derive(today, records)
	if err := tx.SaveSnapshot(ctx, emp.ID, snap, today); err != nil {
		return nil, persistence("save snapshot", err)
	}

	emp.Snapshot = snap
	emp.SnapshotAt = today
	return emp, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func (s *Service) newRecord(in CreateLeaveInput) (LeaveRecord, error) {
	iv := calendar.NewInterval(in.StartDate, in.EndDate)
	if err := iv.Validate(); err != nil {
		return LeaveRecord{}, fmt.Errorf("%w (got %s)", err, iv)
	}
	if !in.Type.Valid() {
		return LeaveRecord{}, invalidField("type", fmt.Sprintf("unknown leave type %q", in.Type))
	}

	status := in.Status
	if status == "" {
		status = StatusApproved
	}
	if !status.Valid() {
		return LeaveRecord{}, invalidField("status", fmt.Sprintf("unknown status %q", status))
	}

	year := in.Year
	if year == 0 {
		year = calendar.YearOf(in.StartDate)
	}
	if year <= 0 {
		return LeaveRecord{}, invalidField("year", "must be positive")
	}
	if err := validateBonus(in.Bonus); err != nil {
		return LeaveRecord{}, err
	}

	now := s.Now().UTC()
	r := LeaveRecord{
		ID:         s.NewID(),
		EmployeeID: in.EmployeeID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		Type:       in.Type,
		Status:     status,
		Year:       year,
		Notes:      in.Notes,
		Bonus:      in.Bonus,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.recomputeDays()

	if err := checkSuppliedCounts(r, in.TotalDays, in.WorkingDays); err != nil {
		return LeaveRecord{}, err
	}
	return r, nil
}

func (s *Service) applyUpdate(r LeaveRecord, in UpdateLeaveInput) (LeaveRecord, error) {
	startChanged := false
	if in.StartDate != nil {
		startChanged = !in.StartDate.Equal(r.StartDate)
		r.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		r.EndDate = *in.EndDate
	}
	iv := r.Interval()
	if err := iv.Validate(); err != nil {
		return r, fmt.Errorf("%w (got %s)", err, iv)
	}
	r.recomputeDays()

	switch {
	case in.Year != nil:
		if *in.Year <= 0 {
			return r, invalidField("year", "must be positive")
		}
		r.Year = *in.Year
	case startChanged:
		r.Year = calendar.YearOf(r.StartDate)
	}

	if in.Type != nil {
		if !in.Type.Valid() {
			return r, invalidField("type", fmt.Sprintf("unknown leave type %q", *in.Type))
		}
		r.Type = *in.Type
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return r, invalidField("status", fmt.Sprintf("unknown status %q", *in.Status))
		}
		r.Status = *in.Status
	}
	if in.Notes != nil {
		r.Notes = *in.Notes
	}
	if in.Bonus != nil {
		if err := validateBonus(in.Bonus); err != nil {
			return r, err
		}
		bonus := *in.Bonus
		r.Bonus = &bonus
	}

	if err := checkSuppliedCounts(r, in.TotalDays, in.WorkingDays); err != nil {
		return r, err
	}
	r.UpdatedAt = s.Now().UTC()
	return r, nil
}

// checkSuppliedCounts rejects caller-supplied day counts that disagree with
// the counts derived from the dates.
func checkSuppliedCounts(r LeaveRecord, totalDays, workingDays *int) error {
	if totalDays != nil && *totalDays != r.TotalDays {
		return &InputError{
			Field:  "totalDays",
			Reason: fmt.Sprintf("got %d, dates %s give %d", *totalDays, r.Period(), r.TotalDays),
			Err:    ErrDerivedMismatch,
		}
	}
	if workingDays != nil && *workingDays != r.WorkingDays {
		return &InputError{
			Field:  "workingDays",
			Reason: fmt.Sprintf("got %d, dates %s give %d", *workingDays, r.Period(), r.WorkingDays),
			Err:    ErrDerivedMismatch,
		}
	}
	return nil
}

// Bonus bounds match the NUMERIC(10, 2) column, so every store keeps the
// value exactly.
const bonusScale = 2

var maxBonus = decimal.New(1, 8) // exclusive

func validateBonus(b *decimal.Decimal) error {
	if b == nil {
		return nil
	}
	if b.IsNegative() {
		return invalidField("bonus", "must not be negative")
	}
	if !b.Equal(b.Round(bonusScale)) {
		return invalidField("bonus", fmt.Sprintf("must have at most %d decimal places", bonusScale))
	}
	if b.GreaterThanOrEqual(maxBonus) {
		return invalidField("bonus", "must be less than "+maxBonus.String())
	}
	return nil
}

func validateEmployee(name, email string, entitlement int) error {
	if name == "" {
		return invalidField("name", "is required")
	}
	if email == "" {
		return invalidField("email", "is required")
	}
	if entitlement < 0 {
		return invalidField("annualEntitlement", "must not be negative")
	}
	return nil
}

// logFailure picks the level by error category: rule violations are
// warnings, storage failures are errors.
func (s *Service) logFailure(log *zap.Logger, op string, err error) {
	switch {
	case IsConflict(err):
		log.Warn(op+" conflict detected", zap.Error(err))
	case IsNotFound(err), IsClientError(err):
		log.Warn(op+" rejected", zap.Error(err))
	default:
		log.Error(op+" failed", zap.Error(err))
	}
}
