package handlers

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/models"
)

func offerRouter(db database.DatabaseInterface, notifier *fakeNotifier) chi.Router {
	h := NewOfferHandler(testConfig(), db, notifier)
	r := chi.NewRouter()
	r.Get("/api/hr/offer-letters", h.List)
	r.Post("/api/hr/offer-letters", h.Create)
	r.Get("/api/hr/offer-letters/{id}", h.Get)
	r.Patch("/api/hr/offer-letters/{id}", h.Update)
	r.Delete("/api/hr/offer-letters/{id}", h.Withdraw)
	return r
}

func validOfferPayload() map[string]interface{} {
	return map[string]interface{}{
		"candidate_first_name": "Maria",
		"candidate_last_name":  "Lopez",
		"candidate_email":      "maria@example.com",
		"job_title":            "Dental Hygienist",
		"letter_body":          "We are pleased to offer you the position of Dental Hygienist.",
	}
}

func TestCreateOfferValidation(t *testing.T) {
	router := offerRouter(testDB(t), &fakeNotifier{})

	payload := validOfferPayload()
	delete(payload, "candidate_first_name")
	rec, _ := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = validOfferPayload()
	payload["candidate_email"] = "not-an-email"
	rec, _ = doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = validOfferPayload()
	payload["letter_body"] = "too short"
	rec, _ = doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = validOfferPayload()
	payload["department"] = "Surgery"
	rec, _ = doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = validOfferPayload()
	payload["salary_amount"] = -10
	rec, _ = doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOfferDraftDefaults(t *testing.T) {
	db := testDB(t)
	router := offerRouter(db, &fakeNotifier{})

	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", validOfferPayload())
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "draft", body["status"])
	require.Equal(t, "Clinical", body["department"])
	require.Equal(t, "FULL_TIME", body["employment_type"])
	require.Equal(t, "YEAR", body["salary_unit"])
	// token永远不进入staff响应
	require.NotContains(t, body, "sign_token")

	// token已生成并持久化
	created, err := db.GetOfferLetter(body["id"].(string))
	require.NoError(t, err)
	require.NotEmpty(t, created.SignToken)
	require.Nil(t, created.SentAt)
}

func TestCreateOfferSendNow(t *testing.T) {
	db := testDB(t)
	notifier := &fakeNotifier{}
	router := offerRouter(db, notifier)

	payload := validOfferPayload()
	payload["send_now"] = true
	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "sent", body["status"])
	require.NotNil(t, body["sent_at"])

	// 候选人收到带签署链接的邮件
	require.Equal(t, 1, notifier.emailCount())
	require.Equal(t, "maria@example.com", notifier.emails[0].To)
	created, err := db.GetOfferLetter(body["id"].(string))
	require.NoError(t, err)
	require.Contains(t, notifier.emails[0].HTML, created.SignToken)
}

func TestUpdateOffer(t *testing.T) {
	db := testDB(t)
	notifier := &fakeNotifier{}
	router := offerRouter(db, notifier)

	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", validOfferPayload())
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["id"].(string)

	// 状态枚举受限
	rec, _ = doJSON(t, router, http.MethodPatch, "/api/hr/offer-letters/"+id, map[string]interface{}{
		"status": "signed",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doJSON(t, router, http.MethodPatch, "/api/hr/offer-letters/"+id, map[string]interface{}{
		"status":        "sent",
		"start_date":    "2026-11-01",
		"salary_amount": 82000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "sent", body["status"])
	require.NotNil(t, body["sent_at"])
	require.Equal(t, "2026-11-01", body["start_date"])
	require.EqualValues(t, 82000, body["salary_amount"])

	// 改成sent时补发签署邀请
	require.Equal(t, 1, notifier.emailCount())

	rec, _ = doJSON(t, router, http.MethodPatch, "/api/hr/offer-letters/unknown-id", map[string]interface{}{
		"status": "draft",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithdrawOffer(t *testing.T) {
	db := testDB(t)
	router := offerRouter(db, &fakeNotifier{})

	rec, body := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", validOfferPayload())
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["id"].(string)

	rec, body = doJSON(t, router, http.MethodDelete, "/api/hr/offer-letters/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])

	got, err := db.GetOfferLetter(id)
	require.NoError(t, err)
	require.Equal(t, models.OfferWithdrawn, got.Status)

	// 已撤回的再撤回撞终态
	rec, _ = doJSON(t, router, http.MethodDelete, "/api/hr/offer-letters/"+id, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestListOffersNewestFirst(t *testing.T) {
	db := testDB(t)
	router := offerRouter(db, &fakeNotifier{})

	first := validOfferPayload()
	first["candidate_first_name"] = "First"
	rec, _ := doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", first)
	require.Equal(t, http.StatusCreated, rec.Code)

	second := validOfferPayload()
	second["candidate_first_name"] = "Second"
	rec, _ = doJSON(t, router, http.MethodPost, "/api/hr/offer-letters", second)
	require.Equal(t, http.StatusCreated, rec.Code)

	offers, err := db.ListOfferLetters()
	require.NoError(t, err)
	require.Len(t, offers, 2)
	require.Equal(t, "Second", offers[0].CandidateFirstName)
}
