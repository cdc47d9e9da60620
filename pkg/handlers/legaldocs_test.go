package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/database"
)

func legalDocRouter(db database.DatabaseInterface) chi.Router {
	h := NewLegalDocHandler(testConfig(), db)
	r := chi.NewRouter()
	r.Get("/api/legal/documents", h.List)
	r.Post("/api/legal/documents", h.Create)
	r.Patch("/api/legal/documents/{id}", h.UpdateStatus)
	r.Post("/api/legal/documents/{id}/regenerate", h.Regenerate)
	r.Delete("/api/legal/documents/{id}", h.Delete)
	return r
}

func TestLegalDocumentFlow(t *testing.T) {
	db := testDB(t)
	router := legalDocRouter(db)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/legal/documents", map[string]interface{}{
		"doc_type": "BAA",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/legal/documents", map[string]interface{}{
		"title":        "Business Associate Agreement",
		"doc_type":     "BAA",
		"counterparty": "Acme Dental Labs",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "pending", body["status"])
	require.EqualValues(t, 1, body["version"])
	id := body["id"].(string)

	// 人工标记已发出
	rec, body = doJSON(t, router, http.MethodPatch, "/api/legal/documents/"+id, map[string]interface{}{
		"status": "sent",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sent", body["status"])
	require.NotNil(t, body["sent_at"])

	rec, _ = doJSON(t, router, http.MethodPatch, "/api/legal/documents/"+id, map[string]interface{}{
		"status": "shredded",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 重新生成：版本+1、回到pending、时间戳清空
	rec, body = doJSON(t, router, http.MethodPost, "/api/legal/documents/"+id+"/regenerate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pending", body["status"])
	require.EqualValues(t, 2, body["version"])
	require.Nil(t, body["sent_at"])

	// 软删除后列表与状态接口都看不到
	rec, body = doJSON(t, router, http.MethodDelete, "/api/legal/documents/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])

	rec, _ = doJSON(t, router, http.MethodPatch, "/api/legal/documents/"+id, map[string]interface{}{
		"status": "signed",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, raw := doJSON(t, router, http.MethodGet, "/api/legal/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, raw) // 响应是JSON数组，map解析为空
	require.JSONEq(t, "[]", rec.Body.String())
}
