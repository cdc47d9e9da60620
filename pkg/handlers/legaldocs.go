package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/utils"
)

// LegalDocHandler 法务文档处理器
type LegalDocHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

// NewLegalDocHandler 创建法务文档处理器
func NewLegalDocHandler(cfg *config.Config, db database.DatabaseInterface) *LegalDocHandler {
	return &LegalDocHandler{
		config: cfg,
		db:     db,
	}
}

// List 文档列表（软删除的不返回）
// GET /api/legal/documents
func (h *LegalDocHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.db.ListLegalDocuments()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load documents")
		return
	}
	if docs == nil {
		docs = []models.LegalDocument{}
	}
	utils.WriteSuccessResponse(w, docs)
}

// createLegalDocRequest 创建文档的请求体
type createLegalDocRequest struct {
	Title        string `json:"title"`
	DocType      string `json:"doc_type"`
	Counterparty string `json:"counterparty,omitempty"`
	FileURL      string `json:"file_url,omitempty"`
}

// Create 创建文档，初始pending、version 1
// POST /api/legal/documents
func (h *LegalDocHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLegalDocRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Title == "" {
		utils.WriteBadRequestResponse(w, "title required")
		return
	}
	if req.DocType == "" {
		utils.WriteBadRequestResponse(w, "doc_type required")
		return
	}

	doc := &models.LegalDocument{
		Title:        req.Title,
		DocType:      req.DocType,
		Counterparty: req.Counterparty,
		FileURL:      req.FileURL,
		Version:      1,
		Status:       models.LegalDocPending,
	}
	if err := h.db.CreateLegalDocument(doc); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create document")
		return
	}
	utils.WriteCreatedResponse(w, doc)
}

// UpdateStatus 人工切换文档状态（sent/signed/voided等，签署在系统外完成）
// PATCH /api/legal/documents/{id}
func (h *LegalDocHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	status := models.LegalDocStatus(req.Status)
	if !status.Valid() {
		utils.WriteBadRequestResponse(w, "Invalid status")
		return
	}

	if err := h.db.SetLegalDocumentStatus(id, status, time.Now()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Document not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to update document")
		return
	}

	doc, err := h.db.GetLegalDocument(id)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to reload document")
		return
	}
	utils.WriteSuccessResponse(w, doc)
}

// Regenerate 重新生成文档：回到pending、清掉签发时间戳、版本号+1
// POST /api/legal/documents/{id}/regenerate
func (h *LegalDocHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.db.ResetLegalDocument(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Document not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to regenerate document")
		return
	}

	doc, err := h.db.GetLegalDocument(id)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to reload document")
		return
	}
	utils.WriteSuccessResponse(w, doc)
}

// Delete 软删除（deleted_at打标，记录保留）
// DELETE /api/legal/documents/{id}
func (h *LegalDocHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.db.SoftDeleteLegalDocument(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Document not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to delete document")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"success": true})
}
