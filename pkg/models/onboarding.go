package models

import "time"

type TaskStatus string

const (
	TaskPending       TaskStatus = "pending"
	TaskCompleted     TaskStatus = "completed"
	TaskSkipped       TaskStatus = "skipped"
	TaskNotApplicable TaskStatus = "na"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskCompleted, TaskSkipped, TaskNotApplicable:
		return true
	}
	return false
}

// OnboardingTask is one post-hire checklist item for an employee.
type OnboardingTask struct {
	ID          string     `json:"id" db:"id"`
	EmployeeID  string     `json:"employee_id" db:"employee_id"`
	TaskKey     string     `json:"task_key" db:"task_key"`
	TaskLabel   string     `json:"task_label" db:"task_label"`
	Category    string     `json:"category" db:"category"` // "paperwork", "compliance", "systems"
	Status      TaskStatus `json:"status" db:"status"`
	Notes       *string    `json:"notes,omitempty" db:"notes"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy string     `json:"completed_by,omitempty" db:"completed_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// OnboardingTaskDef is a template entry for checklist seeding. The list of
// defs is injected into the signing handler so different checklists can be
// configured without touching the signing flow.
type OnboardingTaskDef struct {
	Key      string
	Label    string
	Category string
}

// TaskKeyOfferSigned is the one checklist item completed by the candidate
// at signing time; everything else starts pending.
const TaskKeyOfferSigned = "offer_signed"

// DefaultOnboardingChecklist is the standard ten-item checklist seeded for
// every new hire.
func DefaultOnboardingChecklist() []OnboardingTaskDef {
	return []OnboardingTaskDef{
		{Key: TaskKeyOfferSigned, Label: "Offer letter signed", Category: "paperwork"},
		{Key: "i9_complete", Label: "I-9 Employment Eligibility (I-9)", Category: "paperwork"},
		{Key: "w4_complete", Label: "Federal W-4 Withholding", Category: "paperwork"},
		{Key: "direct_deposit", Label: "Direct deposit form", Category: "paperwork"},
		{Key: "hipaa_training", Label: "HIPAA training completed", Category: "compliance"},
		{Key: "handbook_ack", Label: "Employee handbook acknowledged", Category: "compliance"},
		{Key: "system_access", Label: "Dashboard access granted", Category: "systems"},
		{Key: "email_setup", Label: "Work email set up", Category: "systems"},
		{Key: "photo_id", Label: "Photo ID on file", Category: "paperwork"},
		{Key: "emergency_contact", Label: "Emergency contact on file", Category: "paperwork"},
	}
}

// BuildOnboardingTasks expands a checklist template for a newly hired
// employee. The offer_signed item is marked completed by the candidate at
// signedAt; all other items start pending.
func BuildOnboardingTasks(defs []OnboardingTaskDef, employeeID string, signedAt time.Time) []OnboardingTask {
	tasks := make([]OnboardingTask, 0, len(defs))
	for _, def := range defs {
		task := OnboardingTask{
			EmployeeID: employeeID,
			TaskKey:    def.Key,
			TaskLabel:  def.Label,
			Category:   def.Category,
			Status:     TaskPending,
		}
		if def.Key == TaskKeyOfferSigned {
			at := signedAt
			task.Status = TaskCompleted
			task.CompletedAt = &at
			task.CompletedBy = "candidate"
		}
		tasks = append(tasks, task)
	}
	return tasks
}
