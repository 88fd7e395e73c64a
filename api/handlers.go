/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave ledger and availability engine via REST API. Handles
  HTTP request/response and JSON serialization, and delegates every rule to
  leave.Service.

ENDPOINTS:
  Employees:
    GET    /api/employees               List employees with current status
    POST   /api/employees               Create employee
    GET    /api/employees/{id}          Employee + snapshot + leave history
    PUT    /api/employees/{id}          Update profile fields
    DELETE /api/employees/{id}          Delete employee and their records
    GET    /api/employees/{id}/balance  Annual-leave balance (?year=)

  Leave records:
    GET    /api/leave-records           List (?employeeId=&year=&type=&status=)
    POST   /api/leave-records           Book leave (201, or 409 on overlap)
    GET    /api/leave-records/{id}      Get one record
    PUT    /api/leave-records/{id}      Partial update
    DELETE /api/leave-records/{id}      Delete
    POST   /api/leave-records/{id}/approve
    POST   /api/leave-records/{id}/reject

  Admin:
    POST   /api/admin/refresh-availability  Re-derive every snapshot

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario
    POST   /api/scenarios/reset         Remove all data

REQUEST FLOW:
  1. Parse and tag-validate the request (validate.go)
  2. Call the service
  3. Serialize the response, or map the error (errors.go)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *leave.Service
	Logger  *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *leave.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: svc,
		Logger:  logger.Named("api"),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees with their current status.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.ListEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	emp, err := h.Service.CreateEmployee(r.Context(), leave.EmployeeInput{
		ID:                req.ID,
		Name:              req.Name,
		Department:        req.Department,
		Role:              req.Role,
		Email:             req.Email,
		AnnualEntitlement: *req.AnnualEntitlement,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(*emp))
}

// GetEmployee returns an employee with snapshot and full leave history.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EmployeeDetailDTO{
		EmployeeDTO:  toEmployeeDTO(detail.Employee),
		LeaveRecords: toLeaveRecordDTOs(detail.Leaves),
	})
}

func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmployeeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	emp, err := h.Service.UpdateEmployee(r.Context(), chi.URLParam(r, "id"), leave.EmployeeUpdate{
		Name:              req.Name,
		Department:        req.Department,
		Role:              req.Role,
		Email:             req.Email,
		AnnualEntitlement: req.AnnualEntitlement,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.DeleteEmployee(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "employee " + id + " deleted"})
}

// GetBalance returns the annual-leave balance. ?year= defaults to the
// current year.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}

	b, err := h.Service.Balance(r.Context(), chi.URLParam(r, "id"), year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*b))
}

// =============================================================================
// LEAVE RECORD HANDLERS
// =============================================================================

// ListLeaveRecords lists records, newest first, narrowed by query params.
func (h *Handler) ListLeaveRecords(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	records, err := h.Service.ListLeaves(r.Context(), leave.LeaveFilter{
		EmployeeID: q.Get("employeeId"),
		Year:       year,
		Type:       leave.LeaveType(q.Get("type")),
		Status:     leave.Status(q.Get("status")),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRecordDTOs(records))
}

// CreateLeaveRecord books a leave and returns it with the owner's refreshed
// snapshot. Overlaps answer 409 naming the conflicting record.
func (h *Handler) CreateLeaveRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", codeValidation, err.Error())
		return
	}

	res, err := h.Service.CreateLeave(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRecordResponse(res))
}

func (h *Handler) GetLeaveRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.Service.GetLeave(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRecordDTO(*record))
}

func (h *Handler) UpdateLeaveRecord(w http.ResponseWriter, r *http.Request) {
	var req UpdateLeaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", codeValidation, err.Error())
		return
	}

	res, err := h.Service.UpdateLeave(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRecordResponse(res))
}

func (h *Handler) DeleteLeaveRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, err := h.Service.DeleteLeave(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteLeaveResponse{
		Message:  "leave record deleted",
		ID:       id,
		Employee: toEmployeeDTO(*emp),
	})
}

// ApproveLeaveRecord moves a PENDING record to APPROVED.
func (h *Handler) ApproveLeaveRecord(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.ApproveLeave(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRecordResponse(res))
}

// RejectLeaveRecord moves a PENDING or APPROVED record to REJECTED.
func (h *Handler) RejectLeaveRecord(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.RejectLeave(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRecordResponse(res))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RefreshAvailability re-derives every snapshot as of today. Partial
// failures still report how many succeeded.
func (h *Handler) RefreshAvailability(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.RefreshAll(r.Context())
	if err != nil {
		h.Logger.Error("refresh availability incomplete", zap.Int("refreshed", n), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Refresh incomplete", codeInternal, RefreshResponse{Refreshed: n})
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: n})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseYear reads the optional ?year= parameter. Zero means "not given".
func parseYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid year", codeValidation,
			FieldErrorDTO{Field: "year", Reason: "must be a positive integer"})
		return 0, false
	}
	return year, true
}
