package database

import (
	"errors"
	"fmt"
	"time"

	"dental-ops-backend/pkg/models"
)

// 存储层哨兵错误：handlers 据此映射 404/409
var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrConflict 条件状态写入未命中（记录已处于终态或被并发修改）
	ErrConflict = errors.New("status transition conflict")
)

// DatabaseInterface 定义数据库访问接口
type DatabaseInterface interface {
	// 员工账号（staff dashboard 用户）
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error

	// AI 审批队列
	CreateAction(a *models.AIAction) error
	GetAction(id string) (*models.AIAction, error)
	// ListPendingActions returns pending_approval actions oldest-first (FIFO review order).
	ListPendingActions() ([]models.AIAction, error)
	// ListActions returns actions newest-first for the dashboard; status "" means all.
	ListActions(status models.ActionStatus, limit int) ([]models.AIAction, error)
	// ApproveAction conditionally moves pending_approval -> executed, stamping the
	// approver and merging outputPatch into output_data. Returns ErrConflict when
	// the action is no longer pending.
	ApproveAction(id, approvedBy string, outputPatch map[string]interface{}, at time.Time) error
	// RejectAction conditionally moves pending_approval -> rejected and records the reason.
	RejectAction(id, approvedBy, reason string, at time.Time) error
	// UpdateActionOutput merges patch into output_data without touching status.
	// Used to attach execution results after an approval already claimed the action.
	UpdateActionOutput(id string, patch map[string]interface{}) error

	// Leads
	CreateLead(lead *models.Lead) error
	GetLead(id string) (*models.Lead, error)
	ListLeads(status models.LeadStatus, limit int) ([]models.Lead, error)
	SetLeadResponseDraft(id, draft string) error
	MarkLeadContacted(id string, responseTimeSeconds int64) error

	// Patients & outreach log
	CreatePatient(p *models.Patient) error
	GetPatient(id string) (*models.Patient, error)
	// ListRecallDuePatients returns active patients whose last visit predates
	// lastVisitBefore (YYYY-MM-DD), oldest visit first.
	ListRecallDuePatients(lastVisitBefore string, limit int) ([]models.Patient, error)
	CreateOutreachMessage(m *models.OutreachMessage) error
	CountRecentOutreach(patientID string, since time.Time) (int, error)

	// Offer letters
	CreateOfferLetter(o *models.OfferLetter) error
	GetOfferLetter(id string) (*models.OfferLetter, error)
	GetOfferLetterByToken(token string) (*models.OfferLetter, error)
	ListOfferLetters() ([]models.OfferLetter, error)
	UpdateOfferLetter(o *models.OfferLetter) error
	MarkOfferSent(id string, at time.Time) error
	// MarkOfferViewed promotes sent -> viewed for the offer behind token.
	// Idempotent: a no-op (nil) when the offer is already viewed or beyond.
	MarkOfferViewed(token string) error
	// SignOfferLetter conditionally moves sent/viewed -> signed, stamping the
	// typed signature, time and origin IP. ErrConflict when not signable.
	SignOfferLetter(id, signatureName, ip string, at time.Time) error
	// DeclineOfferLetter conditionally moves sent/viewed -> declined.
	DeclineOfferLetter(id string) error
	// WithdrawOfferLetter moves draft/sent/viewed -> withdrawn.
	WithdrawOfferLetter(id string) error
	LinkOfferEmployee(offerID, employeeID string) error

	// Employees & onboarding
	// CreateEmployeeWithTasks inserts the employee and the seeded checklist
	// together (one transaction on PostgreSQL).
	CreateEmployeeWithTasks(e *models.Employee, tasks []models.OnboardingTask) error
	GetEmployee(id string) (*models.Employee, error)
	ListEmployees() ([]models.Employee, error)
	ListOnboardingTasks(employeeID string) ([]models.OnboardingTask, error)
	GetOnboardingTask(id string) (*models.OnboardingTask, error)
	UpdateOnboardingTaskStatus(id string, status models.TaskStatus, notes *string, completedBy string, at time.Time) error

	// 法务文档（软删除）
	CreateLegalDocument(d *models.LegalDocument) error
	GetLegalDocument(id string) (*models.LegalDocument, error)
	ListLegalDocuments() ([]models.LegalDocument, error)
	SetLegalDocumentStatus(id string, status models.LegalDocStatus, at time.Time) error
	// ResetLegalDocument prepares a regenerated copy: status back to pending,
	// sent/signed stamps cleared, version bumped.
	ResetLegalDocument(id string) error
	SoftDeleteLegalDocument(id string) error

	// 健康检查
	HealthCheck() error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseLocalDB  bool
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
	Debug       bool
}

// NewDatabase 根据环境与配置选择数据库实现
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	// 本地开发/测试：文件数据库
	if config.UseLocalDB {
		fmt.Printf("📁  Using local file database\n")
		return NewLocalDatabase()
	}

	// 是否在 Vercel 生产环境
	isVercelProduction := isVercelEnvironment()

	if isVercelProduction {
		fmt.Printf("🧭 Detected Vercel production environment\n")

		// Vercel 优先使用 Supabase（避免 IPv6）
		if config.SupabaseURL != "" && config.SupabaseKey != "" {
			fmt.Printf("🚀  Using Supabase REST API (Vercel optimized)\n")
			return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey)
		}

		// 次选 PostgreSQL
		if config.PostgresDSN != "" {
			fmt.Printf("🌐  Using PostgreSQL in Vercel (may have IPv6 issues)\n")
			return NewPostgresDatabase(config.PostgresDSN)
		}

		// 未配置受支持的数据库，直接失败
		panic("No valid database configured for Vercel environment. Please set SUPABASE_URL+SUPABASE_SERVICE_KEY or POSTGRES_DSN")
	}

	// 非 Vercel 环境：PostgreSQL > Supabase
	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	if config.SupabaseURL != "" && config.SupabaseKey != "" {
		fmt.Printf("🧰  Using Supabase REST API\n")
		return NewSupabaseDatabase(config.SupabaseURL, config.SupabaseKey)
	}

	panic("No valid database configuration found. Please configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
}

// isVercelEnvironment 内部检查 Vercel 环境
func isVercelEnvironment() bool {
	return IsVercelEnvironment()
}
