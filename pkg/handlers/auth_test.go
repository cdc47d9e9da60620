package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/database"
)

func authRouter(db database.DatabaseInterface) chi.Router {
	h := NewAuthHandler(testConfig(), db)
	r := chi.NewRouter()
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)
	r.Post("/api/auth/refresh", h.RefreshToken)
	return r
}

func TestRegisterAndLogin(t *testing.T) {
	db := testDB(t)
	router := authRouter(db)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/register", map[string]interface{}{
		"email":    "Alice@Practice.Test",
		"password": "hunter2hunter2",
		"name":     "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])

	user, ok := body["user"].(map[string]interface{})
	require.True(t, ok)
	// 邮箱规整为小写，密码哈希不进响应
	require.Equal(t, "alice@practice.test", user["email"])
	require.NotContains(t, user, "password")
	require.NotContains(t, user, "password_hash")

	// 重复注册撞409
	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/register", map[string]interface{}{
		"email":    "alice@practice.test",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// 正确密码登录
	rec, body = doJSON(t, router, http.MethodPost, "/api/auth/login", map[string]interface{}{
		"email":    "alice@practice.test",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	refreshToken := body["refresh_token"].(string)
	require.NotEmpty(t, refreshToken)

	// 错误密码与未知账号都是同一个401
	rec, body = doJSON(t, router, http.MethodPost, "/api/auth/login", map[string]interface{}{
		"email":    "alice@practice.test",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid email or password", body["error"])

	rec, body = doJSON(t, router, http.MethodPost, "/api/auth/login", map[string]interface{}{
		"email":    "nobody@practice.test",
		"password": "whatever123",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid email or password", body["error"])

	// 刷新令牌换新访问令牌
	rec, body = doJSON(t, router, http.MethodPost, "/api/auth/refresh", map[string]interface{}{
		"refresh_token": refreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, body["access_token"])
}

func TestRegisterValidation(t *testing.T) {
	router := authRouter(testDB(t))

	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/register", map[string]interface{}{
		"email":    "not-an-email",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/register", map[string]interface{}{
		"email":    "bob@practice.test",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
