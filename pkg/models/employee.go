package models

import "time"

// Employee is a hired staff member. Created automatically when an offer
// letter is signed, or manually from the HR dashboard.
type Employee struct {
	ID        string    `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Role      string    `json:"role" db:"role"`
	HireDate  *string   `json:"hire_date,omitempty" db:"hire_date"`
	Status    string    `json:"status" db:"status"` // "active", "terminated"
	Notes     string    `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
