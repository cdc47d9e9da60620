package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/middleware"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/utils"
)

// SignHandler 候选人签署处理器（公开端点，凭token访问）
type SignHandler struct {
	config    *config.Config
	db        database.DatabaseInterface
	checklist []models.OnboardingTaskDef
}

// NewSignHandler 创建签署处理器。checklist为nil时使用默认入职清单。
func NewSignHandler(cfg *config.Config, db database.DatabaseInterface, checklist []models.OnboardingTaskDef) *SignHandler {
	if checklist == nil {
		checklist = models.DefaultOnboardingChecklist()
	}
	return &SignHandler{
		config:    cfg,
		db:        db,
		checklist: checklist,
	}
}

// View 候选人查看offer
// GET /api/hr/offer-letters/sign?token=
//
// 首次查看把 sent 提升为 viewed；重复查看不报错。
func (h *SignHandler) View(w http.ResponseWriter, r *http.Request) {
	token := utils.GetQueryParam(r, "token", "")
	if token == "" {
		utils.WriteBadRequestResponse(w, "Token required")
		return
	}

	offer, err := h.db.GetOfferLetterByToken(token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Invalid or expired link")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load offer")
		return
	}

	now := time.Now()
	if offer.ExpiredAt(now) {
		utils.WriteGoneResponse(w, "This offer link has expired")
		return
	}
	if offer.Status == models.OfferWithdrawn {
		utils.WriteGoneResponse(w, "This offer has been withdrawn")
		return
	}

	if offer.Status == models.OfferSent {
		if err := h.db.MarkOfferViewed(token); err != nil {
			fmt.Printf("⚠️  Failed to mark offer %s viewed: %v\n", offer.ID, err)
		}
	}

	utils.WriteSuccessResponse(w, offer.PublicView())
}

// signRequest 候选人签署/拒绝的请求体
type signRequest struct {
	Token         string `json:"token"`
	SignatureName string `json:"signature_name"`
	Accepted      *bool  `json:"accepted"`
}

// Sign 候选人签署或拒绝offer
// POST /api/hr/offer-letters/sign
//
// 签署用条件写入声明状态（sent/viewed -> signed），并发重复提交只有
// 一次能成功；成功后创建员工档案并植入入职清单。
func (h *SignHandler) Sign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if len(req.Token) < 10 {
		utils.WriteBadRequestResponse(w, "Invalid token")
		return
	}
	if len(req.SignatureName) < 2 || len(req.SignatureName) > 200 {
		utils.WriteBadRequestResponse(w, "signature_name must be 2-200 characters")
		return
	}
	if req.Accepted == nil {
		utils.WriteBadRequestResponse(w, "accepted is required")
		return
	}

	offer, err := h.db.GetOfferLetterByToken(req.Token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Invalid link")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load offer")
		return
	}

	now := time.Now()
	if offer.Status == models.OfferSigned {
		utils.WriteConflictResponse(w, "Already signed")
		return
	}
	if offer.ExpiredAt(now) {
		utils.WriteGoneResponse(w, "Link expired")
		return
	}
	if offer.Status == models.OfferWithdrawn {
		utils.WriteGoneResponse(w, "Offer withdrawn")
		return
	}
	if !offer.Status.Signable() {
		utils.WriteConflictResponse(w, "Offer already finalized")
		return
	}

	// 拒绝
	if !*req.Accepted {
		if err := h.db.DeclineOfferLetter(offer.ID); err != nil {
			if errors.Is(err, database.ErrConflict) {
				utils.WriteConflictResponse(w, "Offer already finalized")
				return
			}
			utils.WriteInternalServerErrorResponse(w, "Failed to decline offer")
			return
		}
		utils.WriteSuccessResponse(w, map[string]interface{}{"status": "declined"})
		return
	}

	// 签署：条件写入先声明状态，并发提交只有一次命中
	if err := h.db.SignOfferLetter(offer.ID, req.SignatureName, middleware.GetClientIP(r), now); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "Already signed")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to sign offer")
		return
	}

	// 签署成功后创建员工档案。失败不回滚签名——签署是对候选人的承诺，
	// 员工档案可由staff手工补建。
	employeeID := h.createEmployee(offer, now)

	resp := map[string]interface{}{"status": "signed"}
	if employeeID != "" {
		resp["employee_id"] = employeeID
	}
	utils.WriteSuccessResponse(w, resp)
}

// createEmployee 签署后创建员工档案并植入入职清单，返回员工ID（失败返回空）
func (h *SignHandler) createEmployee(offer *models.OfferLetter, signedAt time.Time) string {
	employee := &models.Employee{
		FirstName: offer.CandidateFirstName,
		LastName:  offer.CandidateLastName,
		Email:     offer.CandidateEmail,
		Phone:     offer.CandidatePhone,
		Role:      offer.JobTitle,
		HireDate:  offer.StartDate,
		Status:    "active",
		Notes:     fmt.Sprintf("Hired via offer letter. Signed %s.", signedAt.Format("1/2/2006")),
	}
	tasks := models.BuildOnboardingTasks(h.checklist, "", signedAt)

	if err := h.db.CreateEmployeeWithTasks(employee, tasks); err != nil {
		fmt.Printf("⚠️  Failed to create employee for offer %s: %v\n", offer.ID, err)
		return ""
	}

	if err := h.db.LinkOfferEmployee(offer.ID, employee.ID); err != nil {
		fmt.Printf("⚠️  Failed to link offer %s to employee %s: %v\n", offer.ID, employee.ID, err)
	}
	return employee.ID
}
