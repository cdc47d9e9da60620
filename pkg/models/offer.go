package models

import "time"

type OfferStatus string

const (
	OfferDraft     OfferStatus = "draft"
	OfferSent      OfferStatus = "sent"
	OfferViewed    OfferStatus = "viewed"
	OfferSigned    OfferStatus = "signed"
	OfferDeclined  OfferStatus = "declined"
	OfferExpired   OfferStatus = "expired"
	OfferWithdrawn OfferStatus = "withdrawn"
)

// Terminal reports whether the offer can no longer change state.
func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferSigned, OfferDeclined, OfferExpired, OfferWithdrawn:
		return true
	}
	return false
}

// Signable reports whether a candidate decision is still possible.
// Only sent/viewed offers can be signed or declined.
func (s OfferStatus) Signable() bool {
	return s == OfferSent || s == OfferViewed
}

// Department and employment type enums (mirror the HR dashboard forms)
const (
	DeptClinical       = "Clinical"
	DeptAdministrative = "Administrative"
	DeptManagement     = "Management"
)

var EmploymentTypes = []string{"FULL_TIME", "PART_TIME", "CONTRACTOR", "TEMPORARY", "INTERN"}

const (
	SalaryUnitYear = "YEAR"
	SalaryUnitHour = "HOUR"
)

// OfferLetter is an employment offer exposed to the candidate through a
// single-use sign-token link.
type OfferLetter struct {
	ID                 string      `json:"id" db:"id"`
	CandidateFirstName string      `json:"candidate_first_name" db:"candidate_first_name"`
	CandidateLastName  string      `json:"candidate_last_name" db:"candidate_last_name"`
	CandidateEmail     string      `json:"candidate_email" db:"candidate_email"`
	CandidatePhone     *string     `json:"candidate_phone,omitempty" db:"candidate_phone"`
	JobTitle           string      `json:"job_title" db:"job_title"`
	Department         string      `json:"department" db:"department"`
	EmploymentType     string      `json:"employment_type" db:"employment_type"`
	StartDate          *string     `json:"start_date,omitempty" db:"start_date"`
	SalaryAmount       *int64      `json:"salary_amount,omitempty" db:"salary_amount"`
	SalaryUnit         string      `json:"salary_unit" db:"salary_unit"`
	HourlyRate         *float64    `json:"hourly_rate,omitempty" db:"hourly_rate"`
	LetterBody         string      `json:"letter_body" db:"letter_body"`
	CustomMessage      *string     `json:"custom_message,omitempty" db:"custom_message"`
	Status             OfferStatus `json:"status" db:"status"`
	SignToken          string      `json:"-" db:"sign_token"` // never serialized to staff listings
	ExpiresAt          *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	SentAt             *time.Time  `json:"sent_at,omitempty" db:"sent_at"`
	SignedAt           *time.Time  `json:"signed_at,omitempty" db:"signed_at"`
	SignatureName      string      `json:"signature_name,omitempty" db:"signature_name"`
	SignedIP           string      `json:"signed_ip,omitempty" db:"signed_ip"`
	EmployeeID         *string     `json:"employee_id,omitempty" db:"employee_id"`
	CreatedBy          string      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// ExpiredAt reports whether the offer's expiry has elapsed at now.
// Offers without expires_at never auto-expire; the comparison is strict.
func (o *OfferLetter) ExpiredAt(now time.Time) bool {
	if o.Status == OfferExpired {
		return true
	}
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// PublicOfferView is the candidate-facing subset returned by the token link.
// Compensation and letter text are included; internal bookkeeping is not.
type PublicOfferView struct {
	ID                 string      `json:"id"`
	CandidateFirstName string      `json:"candidate_first_name"`
	CandidateLastName  string      `json:"candidate_last_name"`
	JobTitle           string      `json:"job_title"`
	Department         string      `json:"department"`
	EmploymentType     string      `json:"employment_type"`
	StartDate          *string     `json:"start_date,omitempty"`
	SalaryAmount       *int64      `json:"salary_amount,omitempty"`
	SalaryUnit         string      `json:"salary_unit"`
	HourlyRate         *float64    `json:"hourly_rate,omitempty"`
	LetterBody         string      `json:"letter_body"`
	CustomMessage      *string     `json:"custom_message,omitempty"`
	Status             OfferStatus `json:"status"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty"`
	SignedAt           *time.Time  `json:"signed_at,omitempty"`
}

// PublicView projects the candidate-facing fields.
func (o *OfferLetter) PublicView() *PublicOfferView {
	return &PublicOfferView{
		ID:                 o.ID,
		CandidateFirstName: o.CandidateFirstName,
		CandidateLastName:  o.CandidateLastName,
		JobTitle:           o.JobTitle,
		Department:         o.Department,
		EmploymentType:     o.EmploymentType,
		StartDate:          o.StartDate,
		SalaryAmount:       o.SalaryAmount,
		SalaryUnit:         o.SalaryUnit,
		HourlyRate:         o.HourlyRate,
		LetterBody:         o.LetterBody,
		CustomMessage:      o.CustomMessage,
		Status:             o.Status,
		ExpiresAt:          o.ExpiresAt,
		SignedAt:           o.SignedAt,
	}
}
