package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/services"
)

func leadRouter(db database.DatabaseInterface) chi.Router {
	// 无API key时AI服务退回确定性模板，测试不出网
	h := NewLeadHandler(testConfig(), db, services.NewAIService(testConfig()))
	r := chi.NewRouter()
	r.Post("/api/leads", h.Create)
	r.Get("/api/leads", h.List)
	return r
}

func TestCreateLeadQueuesDraftAction(t *testing.T) {
	db := testDB(t)
	router := leadRouter(db)

	rec, body := doJSON(t, router, http.MethodPost, "/api/leads", map[string]interface{}{
		"first_name":   "Jane",
		"last_name":    "Doe",
		"email":        "jane@example.com",
		"inquiry_type": "teeth whitening",
		"message":      "How much does whitening cost?",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	leadData, ok := body["lead"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "new", leadData["status"])
	require.Equal(t, "website", leadData["source"])
	require.Equal(t, "medium", leadData["urgency"])

	draft, ok := body["ai_draft"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "lead_response_draft", draft["action_type"])
	require.Equal(t, "pending_approval", draft["status"])

	// 草稿进入审批队列且回写到线索
	pending, err := db.ListPendingActions()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "lead_response", pending[0].Module)
	require.NotNil(t, pending[0].LeadID)

	lead, err := db.GetLead(*pending[0].LeadID)
	require.NoError(t, err)
	require.Contains(t, lead.AIResponseDraft, "Jane")
	require.False(t, lead.AIResponseSent)
}

func TestCreateLeadValidation(t *testing.T) {
	router := leadRouter(testDB(t))

	rec, body := doJSON(t, router, http.MethodPost, "/api/leads", map[string]interface{}{
		"first_name": "Jane",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "First and last name required", body["error"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/leads", map[string]interface{}{
		"first_name": "Jane",
		"last_name":  "Doe",
		"urgency":    "extreme",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListLeadsFilter(t *testing.T) {
	db := testDB(t)
	router := leadRouter(db)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/leads", map[string]interface{}{
		"first_name": "Jane", "last_name": "Doe",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = doJSON(t, router, http.MethodPost, "/api/leads", map[string]interface{}{
		"first_name": "John", "last_name": "Roe",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	leads, err := db.ListLeads("", 0)
	require.NoError(t, err)
	require.NoError(t, db.MarkLeadContacted(leads[0].ID, 120))

	rec, body := doJSON(t, router, http.MethodGet, "/api/leads?status=new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/leads?status=contacted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/leads?status=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
