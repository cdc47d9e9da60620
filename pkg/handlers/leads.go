package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/services"
	"dental-ops-backend/pkg/utils"
)

// LeadHandler 线索处理器。创建是公开端点（网站表单），列表需staff登录。
type LeadHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	ai     *services.AIService
}

// NewLeadHandler 创建线索处理器
func NewLeadHandler(cfg *config.Config, db database.DatabaseInterface, ai *services.AIService) *LeadHandler {
	return &LeadHandler{
		config: cfg,
		db:     db,
		ai:     ai,
	}
}

// createLeadRequest 网站表单提交的线索
type createLeadRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Source      string  `json:"source"`
	InquiryType *string `json:"inquiry_type,omitempty"`
	Message     *string `json:"message,omitempty"`
	Urgency     string  `json:"urgency"`
}

// Create 接收新线索并生成AI回复草稿
// POST /api/leads
//
// 草稿只进入审批队列，不直接外发。AI生成失败时退回模板草稿，
// 线索创建本身不受影响。
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		utils.WriteBadRequestResponse(w, "First and last name required")
		return
	}
	if req.Source == "" {
		req.Source = "website"
	}
	switch req.Urgency {
	case "low", "medium", "high":
	case "":
		req.Urgency = "medium"
	default:
		utils.WriteBadRequestResponse(w, "urgency must be low, medium or high")
		return
	}

	lead := &models.Lead{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Source:      req.Source,
		InquiryType: req.InquiryType,
		Message:     req.Message,
		Urgency:     req.Urgency,
		Status:      models.LeadNew,
	}
	if err := h.db.CreateLead(lead); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create lead")
		return
	}

	draft := h.draftResponse(lead)

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"lead":     lead,
		"ai_draft": draft,
	})
}

// draftResponse 生成回复草稿并排入审批队列，返回草稿动作（失败返回nil）
func (h *LeadHandler) draftResponse(lead *models.Lead) *models.AIAction {
	inquiry := "general"
	if lead.InquiryType != nil && *lead.InquiryType != "" {
		inquiry = *lead.InquiryType
	}
	message := ""
	if lead.Message != nil {
		message = *lead.Message
	}

	result, err := h.ai.DraftLeadResponse(services.LeadDraftParams{
		PatientName: lead.FirstName,
		Inquiry:     inquiry,
		Message:     message,
		Source:      lead.Source,
		Urgency:     lead.Urgency,
	})
	if err != nil || result == nil {
		fmt.Printf("⚠️  Failed to draft response for lead %s: %v\n", lead.ID, err)
		return nil
	}

	if err := h.db.SetLeadResponseDraft(lead.ID, result.Content); err != nil {
		fmt.Printf("⚠️  Failed to store draft on lead %s: %v\n", lead.ID, err)
	}

	leadID := lead.ID
	action := &models.AIAction{
		ActionType:  models.ActionTypeLeadResponse,
		Module:      "lead_response",
		Description: fmt.Sprintf("Drafted response for lead: %s %s", lead.FirstName, lead.LastName),
		InputData: map[string]interface{}{
			"lead_id":      lead.ID,
			"inquiry_type": inquiry,
			"message":      message,
		},
		OutputData: map[string]interface{}{
			"response": result.Content,
			"model":    result.Model,
		},
		Status:          models.ActionPendingApproval,
		ConfidenceScore: result.Confidence,
		LeadID:          &leadID,
	}
	if err := h.db.CreateAction(action); err != nil {
		fmt.Printf("⚠️  Failed to queue draft action for lead %s: %v\n", lead.ID, err)
		return nil
	}
	return action
}

// List staff查看线索列表
// GET /api/leads?status=&limit=
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.LeadStatus(utils.GetQueryParam(r, "status", ""))
	switch status {
	case "", models.LeadNew, models.LeadContacted, models.LeadConverted, models.LeadClosed:
	default:
		utils.WriteBadRequestResponse(w, "Invalid status filter")
		return
	}
	limit, _ := strconv.Atoi(utils.GetQueryParam(r, "limit", "50"))

	leads, err := h.db.ListLeads(status, limit)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load leads")
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	})
}
