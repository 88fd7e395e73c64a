/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in package leave from the external API contract.

NAMING CONVENTION:
  - *DTO:      Response types returned to clients
  - *Request:  Request body types from clients
  - *Response: Wrappers (errors, confirmations)

TYPES:
  Employee:
    EmployeeDTO, EmployeeDetailDTO, CurrentLeaveDTO,
    CreateEmployeeRequest, UpdateEmployeeRequest

  Leave records:
    LeaveRecordDTO, CreateLeaveRequest, UpdateLeaveRequest

  Balance:
    BalanceDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Struct tags are checked by validate.go before the request reaches the
  service. The service re-checks every business rule, so tags only catch
  malformed payloads early.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Tag validation
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee and their availability snapshot.
type EmployeeDTO struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Department        string           `json:"department"`
	Role              string           `json:"role"`
	Email             string           `json:"email"`
	AnnualEntitlement int              `json:"annualEntitlement"`
	CurrentStatus     string           `json:"currentStatus"`
	CurrentLeave      *CurrentLeaveDTO `json:"currentLeave"`
	SnapshotAt        string           `json:"snapshotAt,omitempty"`
	CreatedAt         string           `json:"createdAt,omitempty"`
	UpdatedAt         string           `json:"updatedAt,omitempty"`
}

// CurrentLeaveDTO is null in JSON when the employee is available.
type CurrentLeaveDTO struct {
	LeaveID   string `json:"leaveId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Type      string `json:"type"`
}

// EmployeeDetailDTO adds the full leave history, oldest first.
type EmployeeDetailDTO struct {
	EmployeeDTO
	LeaveRecords []LeaveRecordDTO `json:"leaveRecords"`
}

type CreateEmployeeRequest struct {
	ID                string `json:"id" validate:"omitempty,max=64"`
	Name              string `json:"name" validate:"required,max=200"`
	Department        string `json:"department" validate:"max=200"`
	Role              string `json:"role" validate:"max=200"`
	Email             string `json:"email" validate:"required,email"`
	AnnualEntitlement *int   `json:"annualEntitlement" validate:"required,min=0,max=366"`
}

// UpdateEmployeeRequest is a partial update; omitted fields are unchanged.
type UpdateEmployeeRequest struct {
	Name              *string `json:"name" validate:"omitempty,min=1,max=200"`
	Department        *string `json:"department" validate:"omitempty,max=200"`
	Role              *string `json:"role" validate:"omitempty,max=200"`
	Email             *string `json:"email" validate:"omitempty,email"`
	AnnualEntitlement *int    `json:"annualEntitlement" validate:"omitempty,min=0,max=366"`
}

// =============================================================================
// LEAVE RECORDS
// =============================================================================

type LeaveRecordDTO struct {
	ID          string           `json:"id"`
	EmployeeID  string           `json:"employeeId"`
	StartDate   string           `json:"startDate"`
	EndDate     string           `json:"endDate"`
	TotalDays   int              `json:"totalDays"`
	WorkingDays int              `json:"workingDays"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	Year        int              `json:"year"`
	Notes       string           `json:"notes,omitempty"`
	Bonus       *decimal.Decimal `json:"bonus,omitempty"`
	CreatedAt   string           `json:"createdAt,omitempty"`
	UpdatedAt   string           `json:"updatedAt,omitempty"`
}

// LeaveRecordResponse is returned by every leave write: the record plus the
// owner's refreshed snapshot.
type LeaveRecordResponse struct {
	LeaveRecordDTO
	Employee EmployeeDTO `json:"employee"`
}

// CreateLeaveRequest books a leave. totalDays/workingDays are optional and,
// when present, must match the counts computed from the dates.
type CreateLeaveRequest struct {
	EmployeeID  string           `json:"employeeId" validate:"required"`
	StartDate   string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string           `json:"endDate" validate:"required,datetime=2006-01-02"`
	Type        string           `json:"type" validate:"required,oneof=ANNUAL SICK PERSONAL MATERNITY PATERNITY"`
	Status      string           `json:"status" validate:"omitempty,oneof=APPROVED PENDING REJECTED"`
	Year        int              `json:"year" validate:"omitempty,min=1"`
	Notes       string           `json:"notes" validate:"max=2000"`
	Bonus       *decimal.Decimal `json:"bonus"`
	TotalDays   *int             `json:"totalDays"`
	WorkingDays *int             `json:"workingDays"`
}

type UpdateLeaveRequest struct {
	StartDate   *string          `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string          `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Type        *string          `json:"type" validate:"omitempty,oneof=ANNUAL SICK PERSONAL MATERNITY PATERNITY"`
	Status      *string          `json:"status" validate:"omitempty,oneof=APPROVED PENDING REJECTED"`
	Year        *int             `json:"year" validate:"omitempty,min=1"`
	Notes       *string          `json:"notes" validate:"omitempty,max=2000"`
	Bonus       *decimal.Decimal `json:"bonus"`
	TotalDays   *int             `json:"totalDays"`
	WorkingDays *int             `json:"workingDays"`
}

// DeleteLeaveResponse confirms a deletion and carries the refreshed owner.
type DeleteLeaveResponse struct {
	Message  string      `json:"message"`
	ID       string      `json:"id"`
	Employee EmployeeDTO `json:"employee"`
}

// =============================================================================
// BALANCE
// =============================================================================

type BalanceDTO struct {
	EmployeeID  string          `json:"employeeId"`
	Year        int             `json:"year"`
	Entitlement int             `json:"entitlement"`
	Used        int             `json:"used"`
	Pending     int             `json:"pending"`
	Remaining   int             `json:"remaining"`
	BonusTotal  decimal.Decimal `json:"bonusTotal"`
}

// =============================================================================
// SCENARIOS / ADMIN
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

type RefreshResponse struct {
	Refreshed int `json:"refreshed"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ConflictResponse is the 409 body for an overlapping leave.
type ConflictResponse struct {
	ErrorResponse
	ConflictingLeave ConflictingLeaveDTO `json:"conflictingLeave"`
}

type ConflictingLeaveDTO struct {
	ID     string `json:"id"`
	Period string `json:"period"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// FieldErrorDTO names one rejected request field.
type FieldErrorDTO struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:                e.ID,
		Name:              e.Name,
		Department:        e.Department,
		Role:              e.Role,
		Email:             e.Email,
		AnnualEntitlement: e.AnnualEntitlement,
		CurrentStatus:     string(e.Snapshot.Status),
		CreatedAt:         formatTime(e.CreatedAt),
		UpdatedAt:         formatTime(e.UpdatedAt),
	}
	if dto.CurrentStatus == "" {
		dto.CurrentStatus = string(leave.Available)
	}
	if !e.SnapshotAt.IsZero() {
		dto.SnapshotAt = e.SnapshotAt.String()
	}
	if cl := e.Snapshot.CurrentLeave; cl != nil {
		dto.CurrentLeave = &CurrentLeaveDTO{
			LeaveID:   cl.LeaveID,
			StartDate: cl.StartDate.String(),
			EndDate:   cl.EndDate.String(),
			Type:      string(cl.Type),
		}
	}
	return dto
}

func toEmployeeDTOs(employees []leave.Employee) []EmployeeDTO {
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	return dtos
}

func toLeaveRecordDTO(r leave.LeaveRecord) LeaveRecordDTO {
	return LeaveRecordDTO{
		ID:          r.ID,
		EmployeeID:  r.EmployeeID,
		StartDate:   r.StartDate.String(),
		EndDate:     r.EndDate.String(),
		TotalDays:   r.TotalDays,
		WorkingDays: r.WorkingDays,
		Type:        string(r.Type),
		Status:      string(r.Status),
		Year:        r.Year,
		Notes:       r.Notes,
		Bonus:       r.Bonus,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}

func toLeaveRecordDTOs(records []leave.LeaveRecord) []LeaveRecordDTO {
	dtos := make([]LeaveRecordDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, toLeaveRecordDTO(r))
	}
	return dtos
}

func toLeaveRecordResponse(res *leave.LeaveResult) LeaveRecordResponse {
	return LeaveRecordResponse{
		LeaveRecordDTO: toLeaveRecordDTO(res.Record),
		Employee:       toEmployeeDTO(res.Employee),
	}
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  b.EmployeeID,
		Year:        b.Year,
		Entitlement: b.Entitlement,
		Used:        b.Used,
		Pending:     b.Pending,
		Remaining:   b.Remaining,
		BonusTotal:  b.BonusTotal,
	}
}

// toInput assumes the request already passed tag validation, so
// the dates parse.
func (req CreateLeaveRequest) toInput() (leave.CreateLeaveInput, error) {
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		return leave.CreateLeaveInput{}, err
	}
	end, err := calendar.ParseDate(req.EndDate)
	if err != nil {
		return leave.CreateLeaveInput{}, err
	}
	return leave.CreateLeaveInput{
		EmployeeID:  req.EmployeeID,
		StartDate:   start,
		EndDate:     end,
		Type:        leave.LeaveType(req.Type),
		Status:      leave.Status(req.Status),
		Year:        req.Year,
		Notes:       req.Notes,
		Bonus:       req.Bonus,
		TotalDays:   req.TotalDays,
		WorkingDays: req.WorkingDays,
	}, nil
}

func (req UpdateLeaveRequest) toInput() (leave.UpdateLeaveInput, error) {
	in := leave.UpdateLeaveInput{
		Year:        req.Year,
		Notes:       req.Notes,
		Bonus:       req.Bonus,
		TotalDays:   req.TotalDays,
		WorkingDays: req.WorkingDays,
	}
	if req.StartDate != nil {
		d, err := calendar.ParseDate(*req.StartDate)
		if err != nil {
			return in, err
		}
		in.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := calendar.ParseDate(*req.EndDate)
		if err != nil {
			return in, err
		}
		in.EndDate = &d
	}
	if req.Type != nil {
		t := leave.LeaveType(*req.Type)
		in.Type = &t
	}
	if req.Status != nil {
		s := leave.Status(*req.Status)
		in.Status = &s
	}
	return in, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
