package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/middleware"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/services"
	"dental-ops-backend/pkg/utils"
)

// ApprovalHandler AI审批队列处理器
type ApprovalHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	notifier services.Notifier
}

// NewApprovalHandler 创建审批处理器
func NewApprovalHandler(cfg *config.Config, db database.DatabaseInterface, notifier services.Notifier) *ApprovalHandler {
	return &ApprovalHandler{
		config:   cfg,
		db:       db,
		notifier: notifier,
	}
}

// ListPending 获取待审批队列（最早的排在最前）
// GET /api/approvals
func (h *ApprovalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	actions, err := h.db.ListPendingActions()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load pending actions")
		return
	}
	if actions == nil {
		actions = []models.AIAction{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"actions": actions,
		"count":   len(actions),
	})
}

// ListHistory 获取动作历史
// GET /api/approvals/history?status=&limit=
func (h *ApprovalHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	status := models.ActionStatus(utils.GetQueryParam(r, "status", ""))
	if status != "" && !status.Valid() {
		utils.WriteBadRequestResponse(w, "Invalid status filter")
		return
	}
	limit, _ := strconv.Atoi(utils.GetQueryParam(r, "limit", "50"))

	actions, err := h.db.ListActions(status, limit)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load action history")
		return
	}
	if actions == nil {
		actions = []models.AIAction{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"actions": actions,
		"count":   len(actions),
	})
}

// Execute 审批一条AI动作（approve或reject）
// POST /api/approvals/execute
//
// 放行流程先用条件写声明动作（pending_approval -> executed），再执行外发。
// 两个并发审批只有一个能声明成功，另一个拿到409；外发因此不会重复。
// 外发失败只记录在 execution_results 里，不回滚已声明的状态。
func (h *ApprovalHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActionID      string `json:"action_id"`
		Decision      string `json:"decision"`
		EditedContent string `json:"edited_content,omitempty"`
		Reason        string `json:"reason,omitempty"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.ActionID == "" || req.Decision == "" {
		utils.WriteBadRequestResponse(w, "action_id and decision required")
		return
	}
	if req.Decision != "approve" && req.Decision != "reject" {
		utils.WriteBadRequestResponse(w, "decision must be approve or reject")
		return
	}

	approvedBy := "staff"
	if user, ok := middleware.GetUserFromContext(r.Context()); ok && user != nil {
		approvedBy = user.Email
	}

	action, err := h.db.GetAction(req.ActionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Action not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load action")
		return
	}

	now := time.Now()

	// 拒绝：直接条件写入终态
	if req.Decision == "reject" {
		reason := req.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		if err := h.db.RejectAction(req.ActionID, approvedBy, reason, now); err != nil {
			if errors.Is(err, database.ErrConflict) {
				utils.WriteConflictResponse(w, "Action already processed")
				return
			}
			utils.WriteInternalServerErrorResponse(w, "Failed to reject action")
			return
		}
		utils.WriteSuccessResponse(w, map[string]interface{}{
			"success": true,
			"status":  "rejected",
		})
		return
	}

	// 放行：先声明状态，后执行外发
	finalContent := req.EditedContent
	if finalContent == "" {
		finalContent = action.DraftContent()
	}

	claimPatch := map[string]interface{}{}
	if req.EditedContent != "" {
		claimPatch["edited_content"] = req.EditedContent
	}
	if err := h.db.ApproveAction(req.ActionID, approvedBy, claimPatch, now); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "Action already processed")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to approve action")
		return
	}

	// 声明成功，这次审批独占执行权
	results := h.executeAction(action, finalContent, now)

	if len(results) > 0 {
		if err := h.db.UpdateActionOutput(req.ActionID, map[string]interface{}{
			"execution_results": results,
		}); err != nil {
			fmt.Printf("⚠️  Failed to record execution results for action %s: %v\n", req.ActionID, err)
		}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"success": true,
		"status":  "executed",
		"results": results,
	})
}

// executeAction 按动作类型执行外发。失败不回滚，结果并入 output_data。
func (h *ApprovalHandler) executeAction(action *models.AIAction, finalContent string, now time.Time) map[string]interface{} {
	results := map[string]interface{}{}

	switch {
	case action.ActionType == models.ActionTypeLeadResponse && action.LeadID != nil:
		h.deliverLeadResponse(action, finalContent, now, results)
	case (action.ActionType == models.ActionTypeRecallMessage || action.ActionType == models.ActionTypeOutreachMessage) && action.PatientID != nil:
		h.deliverPatientOutreach(action, finalContent, results)
	}

	return results
}

// deliverLeadResponse 给线索发送已批准的回复
func (h *ApprovalHandler) deliverLeadResponse(action *models.AIAction, finalContent string, now time.Time, results map[string]interface{}) {
	lead, err := h.db.GetLead(*action.LeadID)
	if err != nil {
		results["error"] = "lead not found"
		return
	}

	if lead.Email != nil && *lead.Email != "" {
		subject, html := services.LeadResponseEmail(h.config.PracticeName, lead.FirstName, finalContent)
		results["email"] = h.sendEmailResult(*lead.Email, subject, html)
	}

	if lead.Phone != nil && *lead.Phone != "" {
		body := fmt.Sprintf("Hi %s, thank you for contacting %s! %s",
			lead.FirstName, h.config.PracticeName, truncate(finalContent, 300))
		results["sms"] = h.sendSMSResult(*lead.Phone, body)
	}

	responseTimeSeconds := int64(now.Sub(lead.CreatedAt).Seconds())
	if err := h.db.MarkLeadContacted(lead.ID, responseTimeSeconds); err != nil {
		fmt.Printf("⚠️  Failed to mark lead %s contacted: %v\n", lead.ID, err)
	}
}

// deliverPatientOutreach 给患者发送召回/外联消息并记录外发日志
func (h *ApprovalHandler) deliverPatientOutreach(action *models.AIAction, finalContent string, results map[string]interface{}) {
	patient, err := h.db.GetPatient(*action.PatientID)
	if err != nil {
		results["error"] = "patient not found"
		return
	}

	if patient.Email != nil && *patient.Email != "" {
		subject, html := services.RecallEmail(h.config.PracticeName, patient.FirstName, finalContent)
		results["email"] = h.sendEmailResult(*patient.Email, subject, html)
	}
	if patient.Phone != nil && *patient.Phone != "" {
		body := fmt.Sprintf("Hi %s! %s", patient.FirstName, truncate(finalContent, 300))
		results["sms"] = h.sendSMSResult(*patient.Phone, body)
	}

	channel := "sms"
	if patient.Email != nil && *patient.Email != "" {
		channel = "email"
	}
	msg := &models.OutreachMessage{
		PatientID: patient.ID,
		Channel:   channel,
		Direction: "outbound",
		Status:    "sent",
		Content:   finalContent,
		Metadata:  results,
	}
	if err := h.db.CreateOutreachMessage(msg); err != nil {
		fmt.Printf("⚠️  Failed to log outreach message for patient %s: %v\n", patient.ID, err)
	}
}

func (h *ApprovalHandler) sendEmailResult(to, subject, html string) map[string]interface{} {
	id, err := h.notifier.SendEmail(to, subject, html)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}
	}
	return map[string]interface{}{"success": true, "id": id}
}

func (h *ApprovalHandler) sendSMSResult(to, body string) map[string]interface{} {
	id, err := h.notifier.SendSMS(to, body)
	if err != nil {
		return map[string]interface{}{"success": false, "error": err.Error()}
	}
	return map[string]interface{}{"success": true, "sid": id}
}

// truncate 截断到n个字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}
