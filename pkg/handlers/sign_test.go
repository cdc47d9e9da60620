package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/models"
)

func signRouter(db database.DatabaseInterface) chi.Router {
	h := NewSignHandler(testConfig(), db, nil)
	r := chi.NewRouter()
	r.Get("/api/hr/offer-letters/sign", h.View)
	r.Post("/api/hr/offer-letters/sign", h.Sign)
	return r
}

func seedOffer(t *testing.T, db database.DatabaseInterface, status models.OfferStatus, token string) *models.OfferLetter {
	t.Helper()

	now := time.Now()
	startDate := "2026-10-01"
	offer := &models.OfferLetter{
		CandidateFirstName: "Maria",
		CandidateLastName:  "Lopez",
		CandidateEmail:     "maria@example.com",
		JobTitle:           "Dental Hygienist",
		Department:         models.DeptClinical,
		EmploymentType:     "FULL_TIME",
		StartDate:          &startDate,
		LetterBody:         "We are pleased to offer you the position of Dental Hygienist.",
		Status:             status,
		SignToken:          token,
		SentAt:             &now,
	}
	require.NoError(t, db.CreateOfferLetter(offer))
	return offer
}

func TestViewRequiresToken(t *testing.T) {
	router := signRouter(testDB(t))

	rec, body := doJSON(t, router, http.MethodGet, "/api/hr/offer-letters/sign", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Token required", body["error"])
}

func TestViewUnknownToken(t *testing.T) {
	router := signRouter(testDB(t))

	rec, body := doJSON(t, router, http.MethodGet, "/api/hr/offer-letters/sign?token=abc123", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Invalid or expired link", body["error"])
}

func TestViewPromotesSentToViewed(t *testing.T) {
	db := testDB(t)
	router := signRouter(db)
	offer := seedOffer(t, db, models.OfferSent, "tok_view_0123456789")

	rec, body := doJSON(t, router, http.MethodGet, "/api/hr/offer-letters/sign?token=tok_view_0123456789", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, offer.ID, body["id"])
	require.Equal(t, "Maria", body["candidate_first_name"])
	// 公开视图不得泄露token或创建人
	require.NotContains(t, body, "sign_token")
	require.NotContains(t, body, "created_by")

	got, err := db.GetOfferLetter(offer.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferViewed, got.Status)

	// 重复查看不是错误
	rec, _ = doJSON(t, router, http.MethodGet, "/api/hr/offer-letters/sign?token=tok_view_0123456789", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got, err = db.GetOfferLetter(offer.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferViewed, got.Status)
}

func TestViewExpiredAndWithdrawn(t *testing.T) {
	db := testDB(t)
	router := signRouter(db)

	expired := seedOffer(t, db, models.OfferSent, "tok_expired_01234567")
	past := time.Now().Add(-time.Hour)
	expired.ExpiresAt = &past
	require.NoError(t, db.UpdateOfferLetter(expired))

	rec, body := doJSON(t, router, http.MethodGet, "/api/hr/offer-letters/sign?token=tok_expired_01234567", nil)
	require.Equal(t, http.StatusGone, rec.Code)
	require.Equal(t, "This offer link has expired", body["error"])

	withdrawn := seedOffer(t, db, models.OfferWithdrawn, "tok_withdrawn_012345")
	_ = withdrawn
	rec, body = doJSON(t, router, http.MethodGet, "/api/hr/offer-letters/sign?token=tok_withdrawn_012345", nil)
	require.Equal(t, http.StatusGone, rec.Code)
	require.Equal(t, "This offer has been withdrawn", body["error"])
}

func TestSignValidation(t *testing.T) {
	router := signRouter(testDB(t))

	rec, _ := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", map[string]interface{}{
		"token":          "short",
		"signature_name": "Maria Lopez",
		"accepted":       true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", map[string]interface{}{
		"token":          "tok_long_enough_0123",
		"signature_name": "M",
		"accepted":       true,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", map[string]interface{}{
		"token":          "tok_long_enough_0123",
		"signature_name": "Maria Lopez",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", map[string]interface{}{
		"token":          "tok_unknown_0123456789",
		"signature_name": "Maria Lopez",
		"accepted":       true,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Invalid link", body["error"])
}

func TestSignDeclineCreatesNoEmployee(t *testing.T) {
	db := testDB(t)
	router := signRouter(db)
	offer := seedOffer(t, db, models.OfferSent, "tok_decline_01234567")

	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", map[string]interface{}{
		"token":          "tok_decline_01234567",
		"signature_name": "Maria Lopez",
		"accepted":       false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "declined", body["status"])

	got, err := db.GetOfferLetter(offer.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferDeclined, got.Status)
	require.Nil(t, got.EmployeeID)

	employees, err := db.ListEmployees()
	require.NoError(t, err)
	require.Empty(t, employees)
}

func TestSignAcceptCreatesEmployeeWithChecklist(t *testing.T) {
	db := testDB(t)
	router := signRouter(db)
	offer := seedOffer(t, db, models.OfferViewed, "tok_accept_012345678")

	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", map[string]interface{}{
		"token":          "tok_accept_012345678",
		"signature_name": "Maria Elena Lopez",
		"accepted":       true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "signed", body["status"])
	employeeID, ok := body["employee_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, employeeID)

	// offer进入终态并回链员工
	got, err := db.GetOfferLetter(offer.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferSigned, got.Status)
	require.Equal(t, "Maria Elena Lopez", got.SignatureName)
	require.NotNil(t, got.SignedAt)
	require.NotNil(t, got.EmployeeID)
	require.Equal(t, employeeID, *got.EmployeeID)

	// 恰好一名员工，职位与雇佣日期来自offer
	employees, err := db.ListEmployees()
	require.NoError(t, err)
	require.Len(t, employees, 1)
	require.Equal(t, "Dental Hygienist", employees[0].Role)
	require.Equal(t, "maria@example.com", employees[0].Email)
	require.NotNil(t, employees[0].HireDate)
	require.Equal(t, "2026-10-01", *employees[0].HireDate)

	// 十项清单，只有签署项已完成
	tasks, err := db.ListOnboardingTasks(employeeID)
	require.NoError(t, err)
	require.Len(t, tasks, 10)
	completed := 0
	for _, task := range tasks {
		if task.Status == models.TaskCompleted {
			completed++
			require.Equal(t, models.TaskKeyOfferSigned, task.TaskKey)
			require.Equal(t, "candidate", task.CompletedBy)
		}
	}
	require.Equal(t, 1, completed)
}

func TestSignTwiceConflicts(t *testing.T) {
	db := testDB(t)
	router := signRouter(db)
	seedOffer(t, db, models.OfferSent, "tok_twice_0123456789")

	payload := map[string]interface{}{
		"token":          "tok_twice_0123456789",
		"signature_name": "Maria Lopez",
		"accepted":       true,
	}
	rec, _ := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", payload)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Already signed", body["error"])

	// 第二次提交不会再建员工
	employees, err := db.ListEmployees()
	require.NoError(t, err)
	require.Len(t, employees, 1)
}

func TestSignExpiredAndWithdrawn(t *testing.T) {
	db := testDB(t)
	router := signRouter(db)

	expired := seedOffer(t, db, models.OfferViewed, "tok_sign_expired_012")
	past := time.Now().Add(-time.Minute)
	expired.ExpiresAt = &past
	require.NoError(t, db.UpdateOfferLetter(expired))

	for _, accepted := range []bool{true, false} {
		rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", map[string]interface{}{
			"token":          "tok_sign_expired_012",
			"signature_name": "Maria Lopez",
			"accepted":       accepted,
		})
		require.Equal(t, http.StatusGone, rec.Code)
		require.Equal(t, "Link expired", body["error"])
	}

	seedOffer(t, db, models.OfferWithdrawn, "tok_sign_withdrawn_0")
	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters/sign", map[string]interface{}{
		"token":          "tok_sign_withdrawn_0",
		"signature_name": "Maria Lopez",
		"accepted":       true,
	})
	require.Equal(t, http.StatusGone, rec.Code)
	require.Equal(t, "Offer withdrawn", body["error"])

	employees, err := db.ListEmployees()
	require.NoError(t, err)
	require.Empty(t, employees)
}
