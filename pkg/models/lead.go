package models

import "time"

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadConverted LeadStatus = "converted"
	LeadClosed    LeadStatus = "closed"
)

// Lead is an inbound patient inquiry (website form, phone intake, referral).
// New leads get an AI-drafted response that waits in the approval queue.
type Lead struct {
	ID                  string     `json:"id" db:"id"`
	FirstName           string     `json:"first_name" db:"first_name"`
	LastName            string     `json:"last_name" db:"last_name"`
	Email               *string    `json:"email,omitempty" db:"email"`
	Phone               *string    `json:"phone,omitempty" db:"phone"`
	Source              string     `json:"source" db:"source"`
	InquiryType         *string    `json:"inquiry_type,omitempty" db:"inquiry_type"`
	Message             *string    `json:"message,omitempty" db:"message"`
	Urgency             string     `json:"urgency" db:"urgency"` // "low", "medium", "high"
	Status              LeadStatus `json:"status" db:"status"`
	AIResponseDraft     string     `json:"ai_response_draft,omitempty" db:"ai_response_draft"`
	AIResponseSent      bool       `json:"ai_response_sent" db:"ai_response_sent"`
	AIResponseApproved  bool       `json:"ai_response_approved" db:"ai_response_approved"`
	ResponseTimeSeconds *int64     `json:"response_time_seconds,omitempty" db:"response_time_seconds"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}
