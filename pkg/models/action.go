package models

import "time"

type ActionStatus string

const (
	ActionPendingApproval ActionStatus = "pending_approval"
	ActionApproved        ActionStatus = "approved"
	ActionExecuted        ActionStatus = "executed"
	ActionRejected        ActionStatus = "rejected"
)

// Valid reports whether s is one of the known action statuses.
func (s ActionStatus) Valid() bool {
	switch s {
	case ActionPendingApproval, ActionApproved, ActionExecuted, ActionRejected:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s ActionStatus) Terminal() bool {
	return s == ActionApproved || s == ActionExecuted || s == ActionRejected
}

// Action types produced by the AI generators
const (
	ActionTypeLeadResponse    = "lead_response_draft"
	ActionTypeRecallMessage   = "recall_message"
	ActionTypeOutreachMessage = "outreach_message"
	ActionTypeCronLog         = "cron_log"
)

// AIAction is an AI-drafted unit of work held for human review.
// Records are never deleted; terminal statuses are kept as audit history.
type AIAction struct {
	ID              string                 `json:"id" db:"id"`
	ActionType      string                 `json:"action_type" db:"action_type"`
	Module          string                 `json:"module" db:"module"`
	Description     string                 `json:"description" db:"description"`
	InputData       map[string]interface{} `json:"input_data,omitempty" db:"input_data"`
	OutputData      map[string]interface{} `json:"output_data,omitempty" db:"output_data"`
	Status          ActionStatus           `json:"status" db:"status"`
	ConfidenceScore float64                `json:"confidence_score" db:"confidence_score"`
	PatientID       *string                `json:"patient_id,omitempty" db:"patient_id"`
	LeadID          *string                `json:"lead_id,omitempty" db:"lead_id"`
	ApprovedBy      string                 `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time             `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" db:"updated_at"`
}

// DraftContent extracts the drafted message text from the output payload.
// Generators store it under different keys depending on the action type.
func (a *AIAction) DraftContent() string {
	if a.OutputData == nil {
		return ""
	}
	for _, key := range []string{"response", "content", "message"} {
		if v, ok := a.OutputData[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
