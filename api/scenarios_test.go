/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Employees are created
	- Leave records go through the service and pass overlap checks
	- Snapshots and balances match expected values

These tests double as integration tests over the SQLite store.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

func statusByID(t *testing.T, h *Handler) map[string]leave.Availability {
	t.Helper()
	employees, err := h.Service.ListEmployees(context.Background())
	require.NoError(t, err)

	out := make(map[string]leave.Availability, len(employees))
	for _, e := range employees {
		out[e.ID] = e.Snapshot.Status
	}
	return out
}

func TestScenario_TeamAvailability(t *testing.T) {
	// GIVEN: Today is 2025-03-12
	// WHEN: Loading the team scenario
	// THEN: One employee per availability outcome

	h := setupTestHandler(t, "2025-03-12")
	require.NoError(t, h.loadTeamAvailabilityScenario(context.Background()))

	statuses := statusByID(t, h)
	assert.Equal(t, map[string]leave.Availability{
		"emp-alice": leave.OnLeave,
		"emp-bob":   leave.ReturningSoon,
		"emp-carol": leave.Available,
		"emp-dave":  leave.Available,
	}, statuses)

	detail, err := h.Service.GetEmployee(context.Background(), "emp-alice")
	require.NoError(t, err)
	require.NotNil(t, detail.Employee.Snapshot.CurrentLeave)
	assert.Equal(t, "2025-03-22", detail.Employee.Snapshot.CurrentLeave.EndDate.String())
}

func TestScenario_Balance(t *testing.T) {
	// GIVEN: Balance scenario loaded in 2025
	// WHEN: Projecting the 2025 balance
	// THEN: 25 - (5 + 6) = 14; pending counted separately, rejected ignored

	h := setupTestHandler(t, "2025-03-12")
	require.NoError(t, h.loadBalanceScenario(context.Background()))

	b, err := h.Service.Balance(context.Background(), "emp-erin", 2025)
	require.NoError(t, err)
	assert.Equal(t, 11, b.Used)
	assert.Equal(t, 5, b.Pending)
	assert.Equal(t, 14, b.Remaining)
	assert.Equal(t, "1.5", b.BonusTotal.String())
}

func TestScenario_Conflicts(t *testing.T) {
	h := setupTestHandler(t, "2025-03-12")
	require.NoError(t, h.loadConflictsScenario(context.Background()))

	records, err := h.Service.ListLeaves(context.Background(), leave.LeaveFilter{EmployeeID: "emp-frank"})
	require.NoError(t, err)
	assert.Len(t, records, 3)

	active := 0
	for _, r := range records {
		if r.Status.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestScenario_LoadEndpointResets(t *testing.T) {
	// GIVEN: The team scenario is loaded
	// WHEN: The balance scenario is loaded over it
	// THEN: Only the balance scenario's employee remains

	h := setupTestHandler(t, "2025-03-12")
	router := NewRouter(h, RouterOptions{})

	rec := doRequest(t, router, http.MethodPost, "/api/scenarios/load", map[string]any{"scenarioId": "team-availability"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/load", map[string]any{"scenarioId": "balance"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	employees := decodeBody[[]EmployeeDTO](t, doRequest(t, router, http.MethodGet, "/api/employees", nil))
	require.Len(t, employees, 1)
	assert.Equal(t, "emp-erin", employees[0].ID)

	current := decodeBody[ScenarioDTO](t, doRequest(t, router, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "balance", current.ID)

	rec = doRequest(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]EmployeeDTO](t, doRequest(t, router, http.MethodGet, "/api/employees", nil)))
	assert.Empty(t, decodeBody[[]LeaveRecordDTO](t, doRequest(t, router, http.MethodGet, "/api/leave-records", nil)))
}

func TestScenario_UnknownID(t *testing.T) {
	h := setupTestHandler(t, "2025-03-12")
	rec := doRequest(t, NewRouter(h, RouterOptions{}), http.MethodPost, "/api/scenarios/load", map[string]any{"scenarioId": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	// GIVEN: All available scenarios
	// WHEN: Loading each through the endpoint, on a date where the
	//       relative bookings cross a year boundary
	// THEN: None should error

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			h := setupTestHandler(t, "2025-12-30")
			rec := doRequest(t, NewRouter(h, RouterOptions{}), http.MethodPost, "/api/scenarios/load", map[string]any{"scenarioId": s.ID})
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}
