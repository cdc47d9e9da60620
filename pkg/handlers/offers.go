package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/middleware"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/services"
	"dental-ops-backend/pkg/utils"
)

// OfferHandler offer管理处理器（staff端）
type OfferHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	notifier services.Notifier
}

// NewOfferHandler 创建offer处理器
func NewOfferHandler(cfg *config.Config, db database.DatabaseInterface, notifier services.Notifier) *OfferHandler {
	return &OfferHandler{
		config:   cfg,
		db:       db,
		notifier: notifier,
	}
}

// List 列出全部offer，最新在前
// GET /api/hr/offer-letters
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	offers, err := h.db.ListOfferLetters()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load offer letters")
		return
	}
	if offers == nil {
		offers = []models.OfferLetter{}
	}
	utils.WriteSuccessResponse(w, offers)
}

// Get 获取单条offer
// GET /api/hr/offer-letters/{id}
func (h *OfferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	offer, err := h.db.GetOfferLetter(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Offer not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load offer letter")
		return
	}
	utils.WriteSuccessResponse(w, offer)
}

// createOfferRequest 创建offer的请求体
type createOfferRequest struct {
	CandidateFirstName string   `json:"candidate_first_name"`
	CandidateLastName  string   `json:"candidate_last_name"`
	CandidateEmail     string   `json:"candidate_email"`
	CandidatePhone     *string  `json:"candidate_phone,omitempty"`
	JobTitle           string   `json:"job_title"`
	Department         string   `json:"department"`
	EmploymentType     string   `json:"employment_type"`
	StartDate          *string  `json:"start_date,omitempty"`
	SalaryAmount       *int64   `json:"salary_amount,omitempty"`
	SalaryUnit         string   `json:"salary_unit"`
	HourlyRate         *float64 `json:"hourly_rate,omitempty"`
	LetterBody         string   `json:"letter_body"`
	CustomMessage      *string  `json:"custom_message,omitempty"`
	SendNow            bool     `json:"send_now"`
}

func (req *createOfferRequest) validate() string {
	if req.CandidateFirstName == "" || len(req.CandidateFirstName) > 100 {
		return "candidate_first_name is required (max 100 chars)"
	}
	if req.CandidateLastName == "" || len(req.CandidateLastName) > 100 {
		return "candidate_last_name is required (max 100 chars)"
	}
	if req.CandidateEmail == "" || len(req.CandidateEmail) > 254 || !strings.Contains(req.CandidateEmail, "@") {
		return "candidate_email must be a valid email"
	}
	if req.CandidatePhone != nil && len(*req.CandidatePhone) > 20 {
		return "candidate_phone max 20 chars"
	}
	if req.JobTitle == "" || len(req.JobTitle) > 200 {
		return "job_title is required (max 200 chars)"
	}
	if req.Department == "" {
		req.Department = models.DeptClinical
	}
	switch req.Department {
	case models.DeptClinical, models.DeptAdministrative, models.DeptManagement:
	default:
		return "department must be one of Clinical, Administrative, Management"
	}
	if req.EmploymentType == "" {
		req.EmploymentType = "FULL_TIME"
	}
	if !containsString(models.EmploymentTypes, req.EmploymentType) {
		return "employment_type is invalid"
	}
	if req.SalaryAmount != nil && *req.SalaryAmount <= 0 {
		return "salary_amount must be positive"
	}
	if req.SalaryUnit == "" {
		req.SalaryUnit = models.SalaryUnitYear
	}
	if req.SalaryUnit != models.SalaryUnitYear && req.SalaryUnit != models.SalaryUnitHour {
		return "salary_unit must be YEAR or HOUR"
	}
	if req.HourlyRate != nil && *req.HourlyRate <= 0 {
		return "hourly_rate must be positive"
	}
	if len(req.LetterBody) < 10 {
		return "letter_body must be at least 10 characters"
	}
	if req.CustomMessage != nil && len(*req.CustomMessage) > 2000 {
		return "custom_message max 2000 chars"
	}
	return ""
}

// Create 创建offer（可选立即发送）
// POST /api/hr/offer-letters
func (h *OfferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOfferRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.WriteBadRequestResponse(w, msg)
		return
	}

	token, err := utils.GenerateURLToken(24)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate sign token")
		return
	}

	createdBy := ""
	if user, ok := middleware.GetUserFromContext(r.Context()); ok && user != nil {
		createdBy = user.ID
	}

	offer := &models.OfferLetter{
		CandidateFirstName: req.CandidateFirstName,
		CandidateLastName:  req.CandidateLastName,
		CandidateEmail:     req.CandidateEmail,
		CandidatePhone:     req.CandidatePhone,
		JobTitle:           req.JobTitle,
		Department:         req.Department,
		EmploymentType:     req.EmploymentType,
		StartDate:          req.StartDate,
		SalaryAmount:       req.SalaryAmount,
		SalaryUnit:         req.SalaryUnit,
		HourlyRate:         req.HourlyRate,
		LetterBody:         req.LetterBody,
		CustomMessage:      req.CustomMessage,
		Status:             models.OfferDraft,
		SignToken:          token,
		CreatedBy:          createdBy,
	}

	if req.SendNow {
		now := time.Now()
		offer.Status = models.OfferSent
		offer.SentAt = &now
	}

	if err := h.db.CreateOfferLetter(offer); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create offer letter")
		return
	}

	// 立即发送时给候选人发签署邀请（失败不阻断创建）
	if req.SendNow {
		h.sendSignInvite(offer)
	}

	utils.WriteCreatedResponse(w, offer)
}

// sendSignInvite 给候选人发送签署链接邮件
func (h *OfferHandler) sendSignInvite(offer *models.OfferLetter) {
	if h.config.BaseURL == "" {
		return
	}
	signURL := fmt.Sprintf("%s/offer/sign?token=%s", strings.TrimRight(h.config.BaseURL, "/"), offer.SignToken)
	candidateName := offer.CandidateFirstName + " " + offer.CandidateLastName
	subject, html := services.OfferLetterEmail(h.config.PracticeName, candidateName, offer.JobTitle, signURL)
	if _, err := h.notifier.SendEmail(offer.CandidateEmail, subject, html); err != nil && !errors.Is(err, services.ErrNotConfigured) {
		fmt.Printf("⚠️  Failed to send offer email for %s: %v\n", offer.ID, err)
	}
}

// updateOfferRequest 更新offer的请求体
type updateOfferRequest struct {
	Status        *string  `json:"status,omitempty"`
	StartDate     *string  `json:"start_date,omitempty"`
	SalaryAmount  *int64   `json:"salary_amount,omitempty"`
	CustomMessage *string  `json:"custom_message,omitempty"`
	LetterBody    *string  `json:"letter_body,omitempty"`
}

// Update 更新可编辑字段；status 只允许 draft/sent/withdrawn
// PATCH /api/hr/offer-letters/{id}
func (h *OfferHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateOfferRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if req.Status != nil {
		switch models.OfferStatus(*req.Status) {
		case models.OfferDraft, models.OfferSent, models.OfferWithdrawn:
		default:
			utils.WriteBadRequestResponse(w, "status must be one of draft, sent, withdrawn")
			return
		}
	}
	if req.LetterBody != nil && len(*req.LetterBody) < 10 {
		utils.WriteBadRequestResponse(w, "letter_body must be at least 10 characters")
		return
	}
	if req.SalaryAmount != nil && *req.SalaryAmount <= 0 {
		utils.WriteBadRequestResponse(w, "salary_amount must be positive")
		return
	}
	if req.CustomMessage != nil && len(*req.CustomMessage) > 2000 {
		utils.WriteBadRequestResponse(w, "custom_message max 2000 chars")
		return
	}

	offer, err := h.db.GetOfferLetter(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Offer not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load offer letter")
		return
	}

	if req.StartDate != nil {
		offer.StartDate = req.StartDate
	}
	if req.SalaryAmount != nil {
		offer.SalaryAmount = req.SalaryAmount
	}
	if req.CustomMessage != nil {
		offer.CustomMessage = req.CustomMessage
	}
	if req.LetterBody != nil {
		offer.LetterBody = *req.LetterBody
	}
	if req.Status != nil {
		newStatus := models.OfferStatus(*req.Status)
		if newStatus == models.OfferSent && offer.Status != models.OfferSent {
			now := time.Now()
			offer.SentAt = &now
		}
		offer.Status = newStatus
	}

	if err := h.db.UpdateOfferLetter(offer); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update offer letter")
		return
	}

	// 状态改成 sent 且之前从未发过邀请时补发
	if req.Status != nil && offer.Status == models.OfferSent && offer.SignedAt == nil {
		h.sendSignInvite(offer)
	}

	utils.WriteSuccessResponse(w, offer)
}

// Withdraw 撤回offer（软终态，不删除记录）
// DELETE /api/hr/offer-letters/{id}
func (h *OfferHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.db.GetOfferLetter(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Offer not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load offer letter")
		return
	}

	if err := h.db.WithdrawOfferLetter(id); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "Offer already finalized")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to withdraw offer letter")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"success": true})
}

// containsString 检查切片是否包含指定字符串
func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
