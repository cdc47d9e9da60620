package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/models"
)

func newTestDB(t *testing.T) DatabaseInterface {
	t.Helper()
	return NewLocalDatabaseAt(t.TempDir())
}

func TestApproveActionClaimsExactlyOnce(t *testing.T) {
	db := newTestDB(t)

	action := &models.AIAction{
		ActionType:  models.ActionTypeLeadResponse,
		Module:      "lead_response",
		Description: "Drafted response for lead: Jane Doe",
		OutputData:  map[string]interface{}{"response": "Hi Jane"},
		Status:      models.ActionPendingApproval,
	}
	require.NoError(t, db.CreateAction(action))

	now := time.Now()
	require.NoError(t, db.ApproveAction(action.ID, "alice@practice.test", nil, now))

	// 第二次审批必须撞上冲突，且不能覆盖第一次的审批人
	err := db.ApproveAction(action.ID, "bob@practice.test", nil, now.Add(time.Second))
	require.ErrorIs(t, err, ErrConflict)
	err = db.RejectAction(action.ID, "bob@practice.test", "changed my mind", now.Add(time.Second))
	require.ErrorIs(t, err, ErrConflict)

	got, err := db.GetAction(action.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionExecuted, got.Status)
	require.Equal(t, "alice@practice.test", got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)
}

func TestRejectActionRecordsReason(t *testing.T) {
	db := newTestDB(t)

	action := &models.AIAction{
		ActionType: models.ActionTypeRecallMessage,
		Module:     "recall",
		Status:     models.ActionPendingApproval,
	}
	require.NoError(t, db.CreateAction(action))

	require.NoError(t, db.RejectAction(action.ID, "alice@practice.test", "tone is off", time.Now()))

	got, err := db.GetAction(action.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionRejected, got.Status)
	require.Equal(t, "tone is off", got.OutputData["rejection_reason"])
}

func TestUpdateActionOutputMergesWithoutTouchingStatus(t *testing.T) {
	db := newTestDB(t)

	action := &models.AIAction{
		ActionType: models.ActionTypeLeadResponse,
		Module:     "lead_response",
		OutputData: map[string]interface{}{"response": "Hi"},
	}
	require.NoError(t, db.CreateAction(action))
	require.NoError(t, db.ApproveAction(action.ID, "alice@practice.test", nil, time.Now()))

	require.NoError(t, db.UpdateActionOutput(action.ID, map[string]interface{}{
		"execution_results": map[string]interface{}{"email": "sent"},
	}))

	got, err := db.GetAction(action.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionExecuted, got.Status)
	require.Equal(t, "Hi", got.OutputData["response"])
	require.NotNil(t, got.OutputData["execution_results"])
}

func TestListPendingActionsOldestFirst(t *testing.T) {
	db := newTestDB(t)

	first := &models.AIAction{ActionType: models.ActionTypeLeadResponse, Module: "lead_response"}
	require.NoError(t, db.CreateAction(first))
	time.Sleep(5 * time.Millisecond)
	second := &models.AIAction{ActionType: models.ActionTypeRecallMessage, Module: "recall"}
	require.NoError(t, db.CreateAction(second))
	done := &models.AIAction{ActionType: models.ActionTypeCronLog, Module: "recall", Status: models.ActionExecuted}
	require.NoError(t, db.CreateAction(done))

	pending, err := db.ListPendingActions()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
	require.Equal(t, second.ID, pending[1].ID)
}

func TestSignOfferLetterTransitions(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	offer := &models.OfferLetter{
		CandidateFirstName: "Maria",
		CandidateLastName:  "Lopez",
		CandidateEmail:     "maria@example.com",
		JobTitle:           "Dental Hygienist",
		LetterBody:         "We are pleased to offer you this position.",
		Status:             models.OfferSent,
		SignToken:          "tok_0123456789abcdef",
		SentAt:             &now,
	}
	require.NoError(t, db.CreateOfferLetter(offer))

	require.NoError(t, db.SignOfferLetter(offer.ID, "Maria Lopez", "203.0.113.7", now))

	// 重复签署与事后撤回都必须冲突
	require.ErrorIs(t, db.SignOfferLetter(offer.ID, "Someone Else", "198.51.100.1", now), ErrConflict)
	require.ErrorIs(t, db.DeclineOfferLetter(offer.ID), ErrConflict)
	require.ErrorIs(t, db.WithdrawOfferLetter(offer.ID), ErrConflict)

	got, err := db.GetOfferLetter(offer.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferSigned, got.Status)
	require.Equal(t, "Maria Lopez", got.SignatureName)
	require.Equal(t, "203.0.113.7", got.SignedIP)
	require.NotNil(t, got.SignedAt)
}

func TestMarkOfferViewedIdempotent(t *testing.T) {
	db := newTestDB(t)

	offer := &models.OfferLetter{
		CandidateFirstName: "Sam",
		CandidateLastName:  "Reed",
		CandidateEmail:     "sam@example.com",
		JobTitle:           "Front Desk Coordinator",
		LetterBody:         "Offer body text goes here.",
		Status:             models.OfferSent,
		SignToken:          "tok_viewed_test_0001",
	}
	require.NoError(t, db.CreateOfferLetter(offer))

	require.NoError(t, db.MarkOfferViewed(offer.SignToken))
	// 再次查看不是错误，状态也不回退
	require.NoError(t, db.MarkOfferViewed(offer.SignToken))

	got, err := db.GetOfferLetterByToken(offer.SignToken)
	require.NoError(t, err)
	require.Equal(t, models.OfferViewed, got.Status)
}

func TestSignTokenSurvivesPersistence(t *testing.T) {
	dir := t.TempDir()
	db := NewLocalDatabaseAt(dir)

	offer := &models.OfferLetter{
		CandidateFirstName: "Ana",
		CandidateLastName:  "Kim",
		CandidateEmail:     "ana@example.com",
		JobTitle:           "Dental Assistant",
		LetterBody:         "Offer body text goes here.",
		Status:             models.OfferSent,
		SignToken:          "tok_persisted_42xyz",
	}
	require.NoError(t, db.CreateOfferLetter(offer))

	// 重新打开同一目录，token必须还能查到
	reopened := NewLocalDatabaseAt(dir)
	got, err := reopened.GetOfferLetterByToken("tok_persisted_42xyz")
	require.NoError(t, err)
	require.Equal(t, offer.ID, got.ID)
	require.Equal(t, "tok_persisted_42xyz", got.SignToken)
}

func TestCreateEmployeeWithTasksSeedsChecklistInOrder(t *testing.T) {
	db := newTestDB(t)

	signedAt := time.Now()
	employee := &models.Employee{
		FirstName: "Maria",
		LastName:  "Lopez",
		Email:     "maria@example.com",
		Role:      "Dental Hygienist",
	}
	tasks := models.BuildOnboardingTasks(models.DefaultOnboardingChecklist(), "", signedAt)
	require.NoError(t, db.CreateEmployeeWithTasks(employee, tasks))
	require.NotEmpty(t, employee.ID)

	got, err := db.ListOnboardingTasks(employee.ID)
	require.NoError(t, err)
	require.Len(t, got, 10)

	defs := models.DefaultOnboardingChecklist()
	for i, task := range got {
		require.Equal(t, defs[i].Key, task.TaskKey)
		require.Equal(t, employee.ID, task.EmployeeID)
		if task.TaskKey == models.TaskKeyOfferSigned {
			require.Equal(t, models.TaskCompleted, task.Status)
			require.Equal(t, "candidate", task.CompletedBy)
			require.NotNil(t, task.CompletedAt)
		} else {
			require.Equal(t, models.TaskPending, task.Status)
			require.Nil(t, task.CompletedAt)
		}
	}
}

func TestUpdateOnboardingTaskStatusStampsCompletion(t *testing.T) {
	db := newTestDB(t)

	employee := &models.Employee{FirstName: "Sam", LastName: "Reed", Email: "sam@example.com", Role: "Front Desk"}
	tasks := models.BuildOnboardingTasks(models.DefaultOnboardingChecklist(), "", time.Now())
	require.NoError(t, db.CreateEmployeeWithTasks(employee, tasks))

	list, err := db.ListOnboardingTasks(employee.ID)
	require.NoError(t, err)
	target := list[1] // i9_complete, pending

	at := time.Now()
	require.NoError(t, db.UpdateOnboardingTaskStatus(target.ID, models.TaskCompleted, nil, "alice@practice.test", at))

	got, err := db.GetOnboardingTask(target.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskCompleted, got.Status)
	require.Equal(t, "alice@practice.test", got.CompletedBy)
	require.NotNil(t, got.CompletedAt)

	// 回退到pending要清掉完成标记
	require.NoError(t, db.UpdateOnboardingTaskStatus(target.ID, models.TaskPending, nil, "alice@practice.test", at))
	got, err = db.GetOnboardingTask(target.ID)
	require.NoError(t, err)
	require.Nil(t, got.CompletedAt)
	require.Empty(t, got.CompletedBy)
}

func TestLegalDocumentLifecycle(t *testing.T) {
	db := newTestDB(t)

	doc := &models.LegalDocument{Title: "Business Associate Agreement", DocType: "BAA"}
	require.NoError(t, db.CreateLegalDocument(doc))
	require.Equal(t, 1, doc.Version)
	require.Equal(t, models.LegalDocPending, doc.Status)

	require.NoError(t, db.SetLegalDocumentStatus(doc.ID, models.LegalDocSent, time.Now()))
	got, err := db.GetLegalDocument(doc.ID)
	require.NoError(t, err)
	require.Equal(t, models.LegalDocSent, got.Status)
	require.NotNil(t, got.SentAt)

	require.NoError(t, db.ResetLegalDocument(doc.ID))
	got, err = db.GetLegalDocument(doc.ID)
	require.NoError(t, err)
	require.Equal(t, models.LegalDocPending, got.Status)
	require.Equal(t, 2, got.Version)
	require.Nil(t, got.SentAt)
	require.Nil(t, got.SignedAt)

	require.NoError(t, db.SoftDeleteLegalDocument(doc.ID))
	_, err = db.GetLegalDocument(doc.ID)
	require.ErrorIs(t, err, ErrNotFound)

	list, err := db.ListLegalDocuments()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestListRecallDuePatients(t *testing.T) {
	db := newTestDB(t)

	visit := func(s string) *string { return &s }
	overdue := &models.Patient{FirstName: "Pat", LastName: "Older", Status: "active", LastVisit: visit("2023-01-15")}
	recent := &models.Patient{FirstName: "Rae", LastName: "Newer", Status: "active", LastVisit: visit("2026-08-01")}
	inactive := &models.Patient{FirstName: "Ira", LastName: "Gone", Status: "inactive", LastVisit: visit("2022-05-01")}
	require.NoError(t, db.CreatePatient(overdue))
	require.NoError(t, db.CreatePatient(recent))
	require.NoError(t, db.CreatePatient(inactive))

	due, err := db.ListRecallDuePatients("2026-02-28", 20)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, overdue.ID, due[0].ID)
}

func TestCountRecentOutreach(t *testing.T) {
	db := newTestDB(t)

	patient := &models.Patient{FirstName: "Pat", LastName: "Older", Status: "active"}
	require.NoError(t, db.CreatePatient(patient))

	msg := &models.OutreachMessage{PatientID: patient.ID, Channel: "email", Direction: "outbound", Status: "sent", Content: "Hi"}
	require.NoError(t, db.CreateOutreachMessage(msg))

	count, err := db.CountRecentOutreach(patient.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = db.CountRecentOutreach(patient.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Zero(t, count)
}
