package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/models"
)

func onboardingRouter(db database.DatabaseInterface) chi.Router {
	h := NewOnboardingHandler(testConfig(), db)
	e := NewEmployeeHandler(testConfig(), db)
	r := chi.NewRouter()
	r.Get("/api/hr/onboarding-tasks", h.ListTasks)
	r.Patch("/api/hr/onboarding-tasks/{id}", h.UpdateTask)
	r.Get("/api/hr/employees", e.List)
	r.Get("/api/hr/employees/{id}", e.Get)
	return r
}

func seedEmployee(t *testing.T, db database.DatabaseInterface) *models.Employee {
	t.Helper()
	employee := &models.Employee{
		FirstName: "Maria",
		LastName:  "Lopez",
		Email:     "maria@example.com",
		Role:      "Dental Hygienist",
	}
	tasks := models.BuildOnboardingTasks(models.DefaultOnboardingChecklist(), "", time.Now())
	require.NoError(t, db.CreateEmployeeWithTasks(employee, tasks))
	return employee
}

func TestListTasksRequiresEmployeeID(t *testing.T) {
	router := onboardingRouter(testDB(t))

	rec, body := doJSON(t, router, http.MethodGet, "/api/hr/onboarding-tasks", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "employee_id required", body["error"])
}

func TestUpdateTaskStampsCompletion(t *testing.T) {
	db := testDB(t)
	router := onboardingRouter(db)
	employee := seedEmployee(t, db)

	rec, body := doJSON(t, router, http.MethodGet, "/api/hr/onboarding-tasks?employee_id="+employee.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 10, body["count"])

	tasks, err := db.ListOnboardingTasks(employee.ID)
	require.NoError(t, err)
	target := tasks[1] // i9_complete

	rec, body = doJSON(t, router, http.MethodPatch, "/api/hr/onboarding-tasks/"+target.ID, map[string]interface{}{
		"status": "completed",
		"notes":  "verified documents in person",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "completed", body["status"])
	require.NotNil(t, body["completed_at"])
	require.Equal(t, "staff", body["completed_by"])
	require.Equal(t, "verified documents in person", body["notes"])

	rec, _ = doJSON(t, router, http.MethodPatch, "/api/hr/onboarding-tasks/"+target.ID, map[string]interface{}{
		"status": "definitely-done",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPatch, "/api/hr/onboarding-tasks/"+target.ID, map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPatch, "/api/hr/onboarding-tasks/unknown", map[string]interface{}{
		"status": "skipped",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetEmployeeWithTasks(t *testing.T) {
	db := testDB(t)
	router := onboardingRouter(db)
	employee := seedEmployee(t, db)

	rec, body := doJSON(t, router, http.MethodGet, "/api/hr/employees/"+employee.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, ok := body["employee"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "Maria", got["first_name"])

	tasks, ok := body["onboarding_tasks"].([]interface{})
	require.True(t, ok)
	require.Len(t, tasks, 10)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/hr/employees/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
