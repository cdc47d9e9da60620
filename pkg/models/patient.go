package models

import "time"

// Patient is the minimal patient record the outreach automations need:
// contact details plus the last visit date driving recall scans.
type Patient struct {
	ID        string    `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Status    string    `json:"status" db:"status"` // "active", "inactive"
	LastVisit *string   `json:"last_visit,omitempty" db:"last_visit"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OutreachMessage logs one outbound patient communication sent after an
// approved action executed.
type OutreachMessage struct {
	ID        string                 `json:"id" db:"id"`
	PatientID string                 `json:"patient_id" db:"patient_id"`
	Channel   string                 `json:"channel" db:"channel"`     // "email" or "sms"
	Direction string                 `json:"direction" db:"direction"` // always "outbound" today
	Status    string                 `json:"status" db:"status"`
	Content   string                 `json:"content" db:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
