package handlers

import (
	"fmt"
	"net/http"
	"time"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
	"dental-ops-backend/pkg/models"
	"dental-ops-backend/pkg/services"
	"dental-ops-backend/pkg/utils"
)

// CronHandler 定时任务处理器。生成的草稿全部进入审批队列，
// 定时任务本身从不直接外发。
type CronHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	ai     *services.AIService
}

// NewCronHandler 创建定时任务处理器
func NewCronHandler(cfg *config.Config, db database.DatabaseInterface, ai *services.AIService) *CronHandler {
	return &CronHandler{
		config: cfg,
		db:     db,
		ai:     ai,
	}
}

// Recall 扫描超过6个月未到访的活跃患者，生成召回消息草稿
// GET /api/cron/recall（每周一执行）
func (h *CronHandler) Recall(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	cutoff := now.AddDate(0, -6, 0).Format("2006-01-02")

	patients, err := h.db.ListRecallDuePatients(cutoff, 20)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to scan patients")
		return
	}
	if len(patients) == 0 {
		utils.WriteSuccessResponse(w, map[string]interface{}{
			"success":   true,
			"message":   "No patients need recall at this time",
			"processed": 0,
		})
		return
	}

	thirtyDaysAgo := now.AddDate(0, 0, -30)
	processed := 0
	skipped := 0

	for _, patient := range patients {
		// 30天内已联系过的跳过，避免骚扰
		count, err := h.db.CountRecentOutreach(patient.ID, thirtyDaysAgo)
		if err != nil {
			fmt.Printf("⚠️  Failed to check recent outreach for patient %s: %v\n", patient.ID, err)
			continue
		}
		if count > 0 {
			skipped++
			continue
		}

		lastVisit := "a while"
		if patient.LastVisit != nil && *patient.LastVisit != "" {
			if t, err := time.Parse("2006-01-02", *patient.LastVisit); err == nil {
				lastVisit = t.Format("January 2006")
			}
		}

		patientName := patient.FirstName + " " + patient.LastName
		result, err := h.ai.DraftRecallMessage(services.RecallDraftParams{
			PatientName: patientName,
			LastVisit:   lastVisit,
		})
		if err != nil || result == nil {
			fmt.Printf("⚠️  Failed to draft recall for patient %s: %v\n", patient.ID, err)
			continue
		}

		patientID := patient.ID
		action := &models.AIAction{
			ActionType:  models.ActionTypeRecallMessage,
			Module:      "recall",
			Description: fmt.Sprintf("Recall message for %s (last visit: %s)", patientName, lastVisit),
			InputData: map[string]interface{}{
				"patient_id":   patient.ID,
				"patient_name": patientName,
				"last_visit":   patient.LastVisit,
				"email":        patient.Email,
				"phone":        patient.Phone,
			},
			OutputData: map[string]interface{}{
				"response": result.Content,
				"model":    result.Model,
			},
			Status:          models.ActionPendingApproval,
			ConfidenceScore: result.Confidence,
			PatientID:       &patientID,
		}
		if err := h.db.CreateAction(action); err != nil {
			fmt.Printf("⚠️  Failed to queue recall action for patient %s: %v\n", patient.ID, err)
			continue
		}
		processed++
	}

	h.logRun("recall", fmt.Sprintf("Weekly recall scan: %d messages queued, %d skipped (recent outreach)", processed, skipped),
		map[string]interface{}{
			"patients_found":  len(patients),
			"messages_queued": processed,
			"skipped":         skipped,
		})

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"success":         true,
		"patients_found":  len(patients),
		"messages_queued": processed,
		"skipped":         skipped,
	})
}

// staleLeadAge 线索超过该时长仍是new状态就进入跟进流程
const staleLeadAge = 72 * time.Hour

// LeadNurture 给迟迟无人跟进的新线索生成跟进消息草稿
// GET /api/cron/lead-nurture（工作日每2小时执行）
func (h *CronHandler) LeadNurture(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	leads, err := h.db.ListLeads(models.LeadNew, 50)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to scan leads")
		return
	}

	// 已有待审批动作的线索不重复排队
	pendingLeads := map[string]bool{}
	if pending, err := h.db.ListPendingActions(); err == nil {
		for _, a := range pending {
			if a.LeadID != nil {
				pendingLeads[*a.LeadID] = true
			}
		}
	}

	processed := 0
	skipped := 0

	for _, lead := range leads {
		if now.Sub(lead.CreatedAt) < staleLeadAge {
			continue
		}
		if pendingLeads[lead.ID] {
			skipped++
			continue
		}

		daysWaiting := int(now.Sub(lead.CreatedAt).Hours() / 24)
		result, err := h.ai.DraftLeadResponse(services.LeadDraftParams{
			PatientName: lead.FirstName,
			Inquiry:     "Follow-up - no response yet",
			Message:     fmt.Sprintf("This lead reached out %d days ago and has not been contacted. Write a gentle follow-up checking in and offering to help schedule a visit.", daysWaiting),
			Source:      "lead_nurture",
			Urgency:     lead.Urgency,
		})
		if err != nil || result == nil {
			fmt.Printf("⚠️  Failed to draft follow-up for lead %s: %v\n", lead.ID, err)
			continue
		}

		leadID := lead.ID
		action := &models.AIAction{
			ActionType:  models.ActionTypeLeadResponse,
			Module:      "remarketing",
			Description: fmt.Sprintf("Follow-up message for lead: %s %s", lead.FirstName, lead.LastName),
			InputData: map[string]interface{}{
				"lead_id":      lead.ID,
				"days_waiting": daysWaiting,
			},
			OutputData: map[string]interface{}{
				"response": result.Content,
				"model":    result.Model,
			},
			Status:          models.ActionPendingApproval,
			ConfidenceScore: result.Confidence,
			LeadID:          &leadID,
		}
		if err := h.db.CreateAction(action); err != nil {
			fmt.Printf("⚠️  Failed to queue follow-up action for lead %s: %v\n", lead.ID, err)
			continue
		}
		processed++
	}

	h.logRun("remarketing", fmt.Sprintf("Lead nurture scan: %d messages queued, %d skipped", processed, skipped),
		map[string]interface{}{
			"leads_scanned":   len(leads),
			"messages_queued": processed,
			"skipped":         skipped,
		})

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"success":         true,
		"leads_scanned":   len(leads),
		"messages_queued": processed,
		"skipped":         skipped,
	})
}

// logRun 记录一条executed状态的审计动作
func (h *CronHandler) logRun(module, description string, output map[string]interface{}) {
	audit := &models.AIAction{
		ActionType:  models.ActionTypeCronLog,
		Module:      module,
		Description: description,
		OutputData:  output,
		Status:      models.ActionExecuted,
	}
	if err := h.db.CreateAction(audit); err != nil {
		fmt.Printf("⚠️  Failed to log cron run (%s): %v\n", module, err)
	}
}
