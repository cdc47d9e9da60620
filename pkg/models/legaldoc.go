package models

import "time"

type LegalDocStatus string

const (
	LegalDocPending LegalDocStatus = "pending"
	LegalDocSent    LegalDocStatus = "sent"
	LegalDocSigned  LegalDocStatus = "signed"
	LegalDocExpired LegalDocStatus = "expired"
	LegalDocVoided  LegalDocStatus = "voided"
)

func (s LegalDocStatus) Valid() bool {
	switch s {
	case LegalDocPending, LegalDocSent, LegalDocSigned, LegalDocExpired, LegalDocVoided:
		return true
	}
	return false
}

// LegalDocument tracks a platform agreement (BAA, MSA, consent form, ...)
// through manual staff-driven status toggles. There is no signature capture
// here; staff mark documents sent/signed after handling them out of band.
// Rows are soft-deleted via deleted_at.
type LegalDocument struct {
	ID           string         `json:"id" db:"id"`
	Title        string         `json:"title" db:"title"`
	DocType      string         `json:"doc_type" db:"doc_type"`
	Counterparty string         `json:"counterparty,omitempty" db:"counterparty"`
	FileURL      string         `json:"file_url,omitempty" db:"file_url"`
	Version      int            `json:"version" db:"version"`
	Status       LegalDocStatus `json:"status" db:"status"`
	SentAt       *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	SignedAt     *time.Time     `json:"signed_at,omitempty" db:"signed_at"`
	DeletedAt    *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}
