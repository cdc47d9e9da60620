package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/middleware"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/services"
)

func cronRouter(db database.DatabaseInterface, secret string) chi.Router {
	h := NewCronHandler(testConfig(), db, services.NewAIService(testConfig()))
	r := chi.NewRouter()
	r.Route("/api/cron", func(r chi.Router) {
		r.Use(middleware.CronSecret(secret))
		r.Get("/recall", h.Recall)
		r.Get("/lead-nurture", h.LeadNurture)
	})
	return r
}

func TestCronSecretGuard(t *testing.T) {
	router := cronRouter(testDB(t), "topsecret")

	rec, body := doJSON(t, router, http.MethodGet, "/api/cron/recall", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid cron secret", body["error"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/cron/recall?secret=topsecret", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecallQueuesMessagesAndSkipsRecentOutreach(t *testing.T) {
	db := testDB(t)
	router := cronRouter(db, "")

	visit := func(s string) *string { return &s }
	email := "pat@example.com"
	overdue := &models.Patient{FirstName: "Pat", LastName: "Older", Email: &email, Status: "active", LastVisit: visit("2024-03-10")}
	contacted := &models.Patient{FirstName: "Lee", LastName: "Reached", Status: "active", LastVisit: visit("2024-01-05")}
	recent := &models.Patient{FirstName: "Rae", LastName: "Newer", Status: "active", LastVisit: visit(time.Now().Format("2006-01-02"))}
	require.NoError(t, db.CreatePatient(overdue))
	require.NoError(t, db.CreatePatient(contacted))
	require.NoError(t, db.CreatePatient(recent))

	// 30天内已经触达过的患者要被跳过
	require.NoError(t, db.CreateOutreachMessage(&models.OutreachMessage{
		PatientID: contacted.ID, Channel: "sms", Direction: "outbound", Status: "sent", Content: "hi",
	}))

	rec, body := doJSON(t, router, http.MethodGet, "/api/cron/recall", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, body["patients_found"])
	require.EqualValues(t, 1, body["messages_queued"])
	require.EqualValues(t, 1, body["skipped"])

	// 一条召回草稿待审，外加一条executed审计
	pending, err := db.ListPendingActions()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, models.ActionTypeRecallMessage, pending[0].ActionType)
	require.NotNil(t, pending[0].PatientID)
	require.Equal(t, overdue.ID, *pending[0].PatientID)
	require.Contains(t, pending[0].Description, "March 2024")

	audits, err := db.ListActions(models.ActionExecuted, 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, models.ActionTypeCronLog, audits[0].ActionType)
}

func TestRecallNoDuePatients(t *testing.T) {
	router := cronRouter(testDB(t), "")

	rec, body := doJSON(t, router, http.MethodGet, "/api/cron/recall", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, body["processed"])
	require.Equal(t, "No patients need recall at this time", body["message"])
}

func TestLeadNurtureSkipsFreshLeads(t *testing.T) {
	db := testDB(t)
	router := cronRouter(db, "")

	require.NoError(t, db.CreateLead(&models.Lead{FirstName: "Jane", LastName: "Doe", Status: models.LeadNew, Urgency: "medium"}))
	require.NoError(t, db.CreateLead(&models.Lead{FirstName: "John", LastName: "Roe", Status: models.LeadNew, Urgency: "medium"}))

	// 刚进来的线索不算滞留，不该被跟进
	rec, body := doJSON(t, router, http.MethodGet, "/api/cron/lead-nurture", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, body["messages_queued"])

	pending, err := db.ListPendingActions()
	require.NoError(t, err)
	require.Empty(t, pending)

	// 审计动作照常记录
	audits, err := db.ListActions(models.ActionExecuted, 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, "remarketing", audits[0].Module)
}
