package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/utils"
)

// EmployeeHandler 员工档案处理器
type EmployeeHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

// NewEmployeeHandler 创建员工处理器
func NewEmployeeHandler(cfg *config.Config, db database.DatabaseInterface) *EmployeeHandler {
	return &EmployeeHandler{
		config: cfg,
		db:     db,
	}
}

// List 员工列表（最新入职在前）
// GET /api/hr/employees
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	employees, err := h.db.ListEmployees()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load employees")
		return
	}
	if employees == nil {
		employees = []models.Employee{}
	}
	utils.WriteSuccessResponse(w, employees)
}

// Get 员工详情，附带入职清单
// GET /api/hr/employees/{id}
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	employee, err := h.db.GetEmployee(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Employee not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load employee")
		return
	}

	tasks, err := h.db.ListOnboardingTasks(id)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load onboarding tasks")
		return
	}
	if tasks == nil {
		tasks = []models.OnboardingTask{}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"employee":         employee,
		"onboarding_tasks": tasks,
	})
}
