/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the ledger with realistic
	data for testing and demos. Every record goes through leave.Service, so
	scenario data obeys the same overlap and snapshot rules as live traffic.

AVAILABLE SCENARIOS:

	team-availability: One employee per availability state, relative to today
	balance:           Entitlement 25, 11 working days used, pending/rejected ignored
	conflicts:         Rejected records sharing dates with an approved one

HOW SCENARIOS WORK:
 1. Reset (delete every employee, cascading to their records)
 2. Create employees
 3. Book leave records; each write refreshes the owner's snapshot

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "team-availability"}

NOTE:

	Scenarios reset all data. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Route table
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "team-availability",
		Name:        "Team Availability",
		Description: "Four employees: on leave, returning soon, available with pending leave, available after a rejection",
	},
	{
		ID:          "balance",
		Name:        "Annual Balance",
		Description: "Entitlement 25 with 11 approved annual working days this year; pending and rejected leave do not count",
	},
	{
		ID:          "conflicts",
		Name:        "Rejected Overlaps",
		Description: "Rejected requests that share dates with an approved leave",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets all data and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "team-availability":
		load = h.loadTeamAvailabilityScenario
	case "balance":
		load = h.loadBalanceScenario
	case "conflicts":
		load = h.loadConflictsScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", codeValidation,
			FieldErrorDTO{Field: "scenarioId", Reason: fmt.Sprintf("unknown scenario %q", req.ScenarioID)})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.reset(ctx); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := load(ctx); err != nil {
		h.writeServiceError(w, r, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}
	h.currentScenario = req.ScenarioID

	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetData deletes every employee and, by cascade, every leave record.
func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, MessageResponse{Message: "all data removed"})
}

func (h *Handler) reset(ctx context.Context) error {
	employees, err := h.Service.ListEmployees(ctx)
	if err != nil {
		return err
	}
	for _, e := range employees {
		if err := h.Service.DeleteEmployee(ctx, e.ID); err != nil && !leave.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadTeamAvailabilityScenario places one employee in each state as of today.
func (h *Handler) loadTeamAvailabilityScenario(ctx context.Context) error {
	today := calendar.FromTime(h.Service.Now())

	team := []leave.EmployeeInput{
		{ID: "emp-alice", Name: "Alice Martin", Department: "Engineering", Role: "Backend Engineer", Email: "alice@example.com", AnnualEntitlement: 25},
		{ID: "emp-bob", Name: "Bob Chen", Department: "Engineering", Role: "SRE", Email: "bob@example.com", AnnualEntitlement: 25},
		{ID: "emp-carol", Name: "Carol Diaz", Department: "Design", Role: "Product Designer", Email: "carol@example.com", AnnualEntitlement: 22},
		{ID: "emp-dave", Name: "Dave Okafor", Department: "Sales", Role: "Account Executive", Email: "dave@example.com", AnnualEntitlement: 20},
	}
	if err := h.createEmployees(ctx, team); err != nil {
		return err
	}

	bookings := []leave.CreateLeaveInput{
		// Alice: 10 days left, on leave
		{EmployeeID: "emp-alice", StartDate: today.AddDays(-2), EndDate: today.AddDays(10), Type: leave.TypeAnnual, Notes: "Summer trip"},
		// Bob: back in 2 days
		{EmployeeID: "emp-bob", StartDate: today.AddDays(-3), EndDate: today.AddDays(2), Type: leave.TypeSick},
		// Carol: available today, pending request next week
		{EmployeeID: "emp-carol", StartDate: today.AddDays(-40), EndDate: today.AddDays(-35), Type: leave.TypeAnnual},
		{EmployeeID: "emp-carol", StartDate: today.AddDays(7), EndDate: today.AddDays(11), Type: leave.TypePersonal, Status: leave.StatusPending},
		// Dave: his request covering today was rejected
		{EmployeeID: "emp-dave", StartDate: today.AddDays(-1), EndDate: today.AddDays(4), Type: leave.TypeAnnual, Status: leave.StatusRejected},
	}
	return h.createLeaves(ctx, bookings)
}

// loadBalanceScenario books 5 + 6 approved annual working days this year.
func (h *Handler) loadBalanceScenario(ctx context.Context) error {
	year := calendar.FromTime(h.Service.Now()).Year()

	err := h.createEmployees(ctx, []leave.EmployeeInput{
		{ID: "emp-erin", Name: "Erin Walsh", Department: "Finance", Role: "Controller", Email: "erin@example.com", AnnualEntitlement: 25},
	})
	if err != nil {
		return err
	}

	feb := firstMonday(year, time.February)
	jun := firstMonday(year, time.June)
	sep := firstMonday(year, time.September)
	oct := firstMonday(year, time.October)
	bonus := decimal.RequireFromString("1.5")

	return h.createLeaves(ctx, []leave.CreateLeaveInput{
		// Mon-Fri: 5 working days
		{EmployeeID: "emp-erin", StartDate: feb, EndDate: feb.AddDays(4), Type: leave.TypeAnnual, Notes: "Ski week"},
		// Mon-Mon: 6 working days
		{EmployeeID: "emp-erin", StartDate: jun, EndDate: jun.AddDays(7), Type: leave.TypeAnnual, Bonus: &bonus},
		{EmployeeID: "emp-erin", StartDate: sep, EndDate: sep.AddDays(4), Type: leave.TypeAnnual, Status: leave.StatusPending},
		{EmployeeID: "emp-erin", StartDate: oct, EndDate: oct.AddDays(2), Type: leave.TypeAnnual, Status: leave.StatusRejected},
		{EmployeeID: "emp-erin", StartDate: oct.AddDays(14), EndDate: oct.AddDays(15), Type: leave.TypeSick},
	})
}

// loadConflictsScenario shows that rejected records never block dates.
func (h *Handler) loadConflictsScenario(ctx context.Context) error {
	today := calendar.FromTime(h.Service.Now())

	err := h.createEmployees(ctx, []leave.EmployeeInput{
		{ID: "emp-frank", Name: "Frank Novak", Department: "Support", Role: "Team Lead", Email: "frank@example.com", AnnualEntitlement: 25},
	})
	if err != nil {
		return err
	}

	start := today.AddDays(14)
	return h.createLeaves(ctx, []leave.CreateLeaveInput{
		{EmployeeID: "emp-frank", StartDate: start, EndDate: start.AddDays(5), Type: leave.TypeAnnual},
		{EmployeeID: "emp-frank", StartDate: start.AddDays(2), EndDate: start.AddDays(8), Type: leave.TypePersonal, Status: leave.StatusRejected},
		{EmployeeID: "emp-frank", StartDate: start.AddDays(-3), EndDate: start.AddDays(1), Type: leave.TypeSick, Status: leave.StatusRejected},
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createEmployees(ctx context.Context, inputs []leave.EmployeeInput) error {
	for _, in := range inputs {
		if _, err := h.Service.CreateEmployee(ctx, in); err != nil {
			return fmt.Errorf("create employee %s: %w", in.ID, err)
		}
	}
	return nil
}

func (h *Handler) createLeaves(ctx context.Context, inputs []leave.CreateLeaveInput) error {
	for _, in := range inputs {
		if _, err := h.Service.CreateLeave(ctx, in); err != nil {
			return fmt.Errorf("book leave for %s: %w", in.EmployeeID, err)
		}
	}
	return nil
}

func firstMonday(year int, month time.Month) calendar.Date {
	d := calendar.NewDate(year, month, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}
