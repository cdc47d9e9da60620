package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/models"
)

func approvalRouter(db database.DatabaseInterface, notifier *fakeNotifier) chi.Router {
	h := NewApprovalHandler(testConfig(), db, notifier)
	r := chi.NewRouter()
	r.Get("/api/approvals", h.ListPending)
	r.Get("/api/approvals/history", h.ListHistory)
	r.Post("/api/approvals/execute", h.Execute)
	return r
}

func seedLeadAction(t *testing.T, db database.DatabaseInterface, draft string) (*models.Lead, *models.AIAction) {
	t.Helper()

	email := "jane@example.com"
	phone := "+15550100200"
	lead := &models.Lead{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     &email,
		Phone:     &phone,
		Source:    "website",
		Urgency:   "medium",
	}
	require.NoError(t, db.CreateLead(lead))

	leadID := lead.ID
	action := &models.AIAction{
		ActionType:  models.ActionTypeLeadResponse,
		Module:      "lead_response",
		Description: "Drafted response for lead: Jane Doe",
		OutputData:  map[string]interface{}{"response": draft, "model": "template"},
		Status:      models.ActionPendingApproval,
		LeadID:      &leadID,
	}
	require.NoError(t, db.CreateAction(action))
	return lead, action
}

func TestExecuteApproveDeliversAndRecordsResults(t *testing.T) {
	db := testDB(t)
	notifier := &fakeNotifier{}
	router := approvalRouter(db, notifier)

	lead, action := seedLeadAction(t, db, "Thanks for reaching out, we'd love to see you!")

	rec, body := doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": action.ID,
		"decision":  "approve",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "executed", body["status"])

	// 邮件和短信都发给了线索
	require.Equal(t, 1, notifier.emailCount())
	require.Equal(t, "jane@example.com", notifier.emails[0].To)
	require.Contains(t, notifier.emails[0].HTML, "we'd love to see you")
	require.Len(t, notifier.sms, 1)
	require.Contains(t, notifier.sms[0].Body, "Hi Jane")

	// 动作带上了执行结果
	got, err := db.GetAction(action.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionExecuted, got.Status)
	require.NotNil(t, got.OutputData["execution_results"])

	// 线索被标记为已联系
	updatedLead, err := db.GetLead(lead.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeadContacted, updatedLead.Status)
	require.True(t, updatedLead.AIResponseSent)
	require.NotNil(t, updatedLead.ResponseTimeSeconds)
}

func TestExecuteDoubleApproveConflicts(t *testing.T) {
	db := testDB(t)
	notifier := &fakeNotifier{}
	router := approvalRouter(db, notifier)

	_, action := seedLeadAction(t, db, "Draft body")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": action.ID,
		"decision":  "approve",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": action.ID,
		"decision":  "approve",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Action already processed", body["error"])

	// 第一次审批的记录不被第二次覆盖，外发也只发生一轮
	got, err := db.GetAction(action.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionExecuted, got.Status)
	require.Equal(t, 1, notifier.emailCount())
}

func TestExecuteRejectRecordsReason(t *testing.T) {
	db := testDB(t)
	notifier := &fakeNotifier{}
	router := approvalRouter(db, notifier)

	_, action := seedLeadAction(t, db, "Draft body")

	rec, body := doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": action.ID,
		"decision":  "reject",
		"reason":    "tone is too pushy",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "rejected", body["status"])

	got, err := db.GetAction(action.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionRejected, got.Status)
	require.Equal(t, "tone is too pushy", got.OutputData["rejection_reason"])

	// 拒绝不触发任何外发
	require.Zero(t, notifier.emailCount())

	// 拒绝之后再放行必须409
	rec, _ = doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": action.ID,
		"decision":  "approve",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecuteEditedContentOverridesDraft(t *testing.T) {
	db := testDB(t)
	notifier := &fakeNotifier{}
	router := approvalRouter(db, notifier)

	_, action := seedLeadAction(t, db, "Original AI draft")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id":      action.ID,
		"decision":       "approve",
		"edited_content": "Hand-polished reply from the front desk.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := db.GetAction(action.ID)
	require.NoError(t, err)
	require.Equal(t, "Hand-polished reply from the front desk.", got.OutputData["edited_content"])
	// 原始草稿仍保留
	require.Equal(t, "Original AI draft", got.OutputData["response"])

	// 实际发出的是编辑后的文本
	require.Contains(t, notifier.emails[0].HTML, "Hand-polished reply")
	require.Contains(t, notifier.sms[0].Body, "Hand-polished reply")
}

func TestExecuteDeliveryFailureDoesNotRollBack(t *testing.T) {
	db := testDB(t)
	notifier := &fakeNotifier{failEmail: true}
	router := approvalRouter(db, notifier)

	_, action := seedLeadAction(t, db, "Draft body")

	rec, body := doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": action.ID,
		"decision":  "approve",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "executed", body["status"])

	// 邮件失败记录在执行结果里，状态仍是executed
	got, err := db.GetAction(action.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionExecuted, got.Status)
	results, ok := got.OutputData["execution_results"].(map[string]interface{})
	require.True(t, ok)
	emailResult, ok := results["email"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, false, emailResult["success"])
}

func TestExecuteValidation(t *testing.T) {
	db := testDB(t)
	router := approvalRouter(db, &fakeNotifier{})

	rec, body := doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "action_id and decision required", body["error"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": "some-id",
		"decision":  "maybe",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "decision must be approve or reject", body["error"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": "does-not-exist",
		"decision":  "approve",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Action not found", body["error"])
}

func TestListPendingAndHistory(t *testing.T) {
	db := testDB(t)
	router := approvalRouter(db, &fakeNotifier{})

	_, action := seedLeadAction(t, db, "Draft body")

	rec, body := doJSON(t, router, http.MethodGet, "/api/approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	// 审批后从队列消失，进入历史
	rec, _ = doJSON(t, router, http.MethodPost, "/api/approvals/execute", map[string]interface{}{
		"action_id": action.ID,
		"decision":  "reject",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, router, http.MethodGet, "/api/approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, body["count"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/approvals/history?status=rejected", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/approvals/history?status=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.True(t, strings.Contains(body["error"].(string), "Invalid status"))
}
