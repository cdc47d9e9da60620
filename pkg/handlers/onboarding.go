package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/middleware"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/utils"
)

// OnboardingHandler 入职清单处理器
type OnboardingHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

// NewOnboardingHandler 创建入职清单处理器
func NewOnboardingHandler(cfg *config.Config, db database.DatabaseInterface) *OnboardingHandler {
	return &OnboardingHandler{
		config: cfg,
		db:     db,
	}
}

// ListTasks 查看某员工的入职清单（按植入顺序）
// GET /api/hr/onboarding?employee_id=
func (h *OnboardingHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	employeeID := utils.GetQueryParam(r, "employee_id", "")
	if employeeID == "" {
		utils.WriteBadRequestResponse(w, "employee_id required")
		return
	}

	tasks, err := h.db.ListOnboardingTasks(employeeID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load onboarding tasks")
		return
	}
	if tasks == nil {
		tasks = []models.OnboardingTask{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// updateTaskRequest 更新清单项的请求体
type updateTaskRequest struct {
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// UpdateTask 更新清单项状态/备注
// PATCH /api/hr/onboarding/{id}
func (h *OnboardingHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateTaskRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Status == nil && req.Notes == nil {
		utils.WriteBadRequestResponse(w, "Nothing to update")
		return
	}

	task, err := h.db.GetOnboardingTask(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Task not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load task")
		return
	}

	status := task.Status
	if req.Status != nil {
		status = models.TaskStatus(*req.Status)
		if !status.Valid() {
			utils.WriteBadRequestResponse(w, "Invalid status")
			return
		}
	}

	completedBy := "staff"
	if user, ok := middleware.GetUserFromContext(r.Context()); ok && user != nil {
		completedBy = user.Email
	}

	if err := h.db.UpdateOnboardingTaskStatus(id, status, req.Notes, completedBy, time.Now()); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update task")
		return
	}

	updated, err := h.db.GetOnboardingTask(id)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to reload task")
		return
	}
	utils.WriteSuccessResponse(w, updated)
}
