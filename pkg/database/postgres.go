package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dental-ops-backend/pkg/models"

	_ "github.com/lib/pq"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// 尝试多种连接策略来解决Vercel Lambda的IPv6问题
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "prefer_simple_protocol=true"),
		addConnectionParams(dsn, "prefer_simple_protocol=true&connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&prefer_simple_protocol=true"),
		dsn, // 最后尝试原始DSN
	}

	var db *sql.DB
	var err error

	for i, strategy := range strategies {
		fmt.Printf("🔄 Trying connection strategy %d...\n", i+1)

		db, err = sql.Open("postgres", strategy)
		if err != nil {
			fmt.Printf("❌ Strategy %d failed to open: %v\n", i+1, err)
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)                  // 限制最大连接数
		db.SetMaxIdleConns(2)                  // 限制空闲连接数
		db.SetConnMaxLifetime(5 * time.Minute) // 连接最大生命周期

		// 测试连接
		if err = db.Ping(); err != nil {
			fmt.Printf("❌ Strategy %d failed to ping: %v\n", i+1, err)
			db.Close()
			continue
		}

		fmt.Printf("✅ PostgreSQL connection established successfully with strategy %d\n", i+1)
		return &PostgresDatabase{db: db}
	}

	// 所有策略都失败了
	panic(fmt.Sprintf("Failed to connect to PostgreSQL with all strategies. Last error: %v", err))
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}

	return dsn + separator + params
}

// marshalJSON 将map序列化为jsonb参数；nil写成空对象
func marshalJSON(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		m = map[string]interface{}{}
	}
	return json.Marshal(m)
}

func unmarshalJSON(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// ================= Staff users =================

// CreateUser 创建员工账号
func (db *PostgresDatabase) CreateUser(user *models.User) error {
	if user.Role == "" {
		user.Role = "staff"
	}
	query := `
		INSERT INTO staff_users (email, password_hash, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, user.Email, user.Password, user.Name, user.Role).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail 根据邮箱获取员工账号
func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(password_hash,''), COALESCE(name,''), COALESCE(role,'staff'),
		       created_at, updated_at
		FROM staff_users
		WHERE email = $1
	`
	var u models.User
	err := db.db.QueryRow(query, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID 根据ID获取员工账号
func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(name,''), COALESCE(role,'staff'), created_at, updated_at
		FROM staff_users
		WHERE id = $1
	`
	var u models.User
	err := db.db.QueryRow(query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// UpdateUser 更新员工账号
func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	if user.ID == "" {
		return fmt.Errorf("user ID is required for update")
	}
	query := `
		UPDATE staff_users
		SET name = $1,
		    role = COALESCE(NULLIF($2,''), role),
		    updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.db.Exec(query, user.Name, user.Role, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ================= AI 审批队列 =================

// CreateAction 写入一条待审批动作
func (db *PostgresDatabase) CreateAction(a *models.AIAction) error {
	if a.Status == "" {
		a.Status = models.ActionPendingApproval
	}
	inputJSON, err := marshalJSON(a.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal input_data: %w", err)
	}
	outputJSON, err := marshalJSON(a.OutputData)
	if err != nil {
		return fmt.Errorf("failed to marshal output_data: %w", err)
	}
	query := `
		INSERT INTO ai_actions (action_type, module, description, input_data, output_data,
		                        status, confidence_score, patient_id, lead_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = db.db.QueryRow(query, a.ActionType, a.Module, a.Description, inputJSON, outputJSON,
		string(a.Status), a.ConfidenceScore, a.PatientID, a.LeadID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}
	return nil
}

const actionColumns = `id, action_type, module, COALESCE(description,''), input_data, output_data,
	status, COALESCE(confidence_score,0), patient_id, lead_id,
	COALESCE(approved_by,''), approved_at, created_at, updated_at`

func scanAction(row interface{ Scan(...interface{}) error }) (*models.AIAction, error) {
	var a models.AIAction
	var status string
	var inputRaw, outputRaw []byte
	err := row.Scan(&a.ID, &a.ActionType, &a.Module, &a.Description, &inputRaw, &outputRaw,
		&status, &a.ConfidenceScore, &a.PatientID, &a.LeadID,
		&a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = models.ActionStatus(status)
	a.InputData = unmarshalJSON(inputRaw)
	a.OutputData = unmarshalJSON(outputRaw)
	return &a, nil
}

// GetAction 获取单条动作
func (db *PostgresDatabase) GetAction(id string) (*models.AIAction, error) {
	query := `SELECT ` + actionColumns + ` FROM ai_actions WHERE id = $1`
	a, err := scanAction(db.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return a, nil
}

// ListPendingActions 待审批队列，最早创建的排在最前（FIFO）
func (db *PostgresDatabase) ListPendingActions() ([]models.AIAction, error) {
	query := `SELECT ` + actionColumns + ` FROM ai_actions WHERE status = $1 ORDER BY created_at ASC`
	rows, err := db.db.Query(query, string(models.ActionPendingApproval))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	defer rows.Close()

	var actions []models.AIAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// ListActions 动作历史，最新在前；status 为空表示全部
func (db *PostgresDatabase) ListActions(status models.ActionStatus, limit int) ([]models.AIAction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + actionColumns + ` FROM ai_actions`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []models.AIAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// ApproveAction 条件写：仅当仍为 pending_approval 时转为 executed。
// 两个并发审批只有一个能命中该行。
func (db *PostgresDatabase) ApproveAction(id, approvedBy string, outputPatch map[string]interface{}, at time.Time) error {
	patchJSON, err := marshalJSON(outputPatch)
	if err != nil {
		return fmt.Errorf("failed to marshal output patch: %w", err)
	}
	query := `
		UPDATE ai_actions
		SET status = $1,
		    approved_by = $2,
		    approved_at = $3,
		    output_data = COALESCE(output_data, '{}'::jsonb) || $4::jsonb,
		    updated_at = NOW()
		WHERE id = $5 AND status = $6
	`
	res, err := db.db.Exec(query, string(models.ActionExecuted), approvedBy, at, patchJSON,
		id, string(models.ActionPendingApproval))
	if err != nil {
		return fmt.Errorf("failed to approve action: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// RejectAction 条件写：pending_approval -> rejected，拒绝原因并入 output_data
func (db *PostgresDatabase) RejectAction(id, approvedBy, reason string, at time.Time) error {
	patchJSON, err := marshalJSON(map[string]interface{}{"rejection_reason": reason})
	if err != nil {
		return fmt.Errorf("failed to marshal rejection reason: %w", err)
	}
	query := `
		UPDATE ai_actions
		SET status = $1,
		    approved_by = $2,
		    approved_at = $3,
		    output_data = COALESCE(output_data, '{}'::jsonb) || $4::jsonb,
		    updated_at = NOW()
		WHERE id = $5 AND status = $6
	`
	res, err := db.db.Exec(query, string(models.ActionRejected), approvedBy, at, patchJSON,
		id, string(models.ActionPendingApproval))
	if err != nil {
		return fmt.Errorf("failed to reject action: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateActionOutput 合并执行结果到 output_data（不校验状态）
func (db *PostgresDatabase) UpdateActionOutput(id string, patch map[string]interface{}) error {
	patchJSON, err := marshalJSON(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal output patch: %w", err)
	}
	query := `
		UPDATE ai_actions
		SET output_data = COALESCE(output_data, '{}'::jsonb) || $1::jsonb,
		    updated_at = NOW()
		WHERE id = $2
	`
	_, err = db.db.Exec(query, patchJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update action output: %w", err)
	}
	return nil
}

// ================= Leads =================

// CreateLead 创建线索
func (db *PostgresDatabase) CreateLead(lead *models.Lead) error {
	if lead.Status == "" {
		lead.Status = models.LeadNew
	}
	if lead.Source == "" {
		lead.Source = "website"
	}
	if lead.Urgency == "" {
		lead.Urgency = "medium"
	}
	query := `
		INSERT INTO leads (first_name, last_name, email, phone, source, inquiry_type, message,
		                   urgency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, lead.FirstName, lead.LastName, lead.Email, lead.Phone,
		lead.Source, lead.InquiryType, lead.Message, lead.Urgency, string(lead.Status)).
		Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

const leadColumns = `id, first_name, last_name, email, phone, COALESCE(source,'website'),
	inquiry_type, message, COALESCE(urgency,'medium'), status,
	COALESCE(ai_response_draft,''), COALESCE(ai_response_sent,false),
	COALESCE(ai_response_approved,false), response_time_seconds, created_at, updated_at`

func scanLead(row interface{ Scan(...interface{}) error }) (*models.Lead, error) {
	var l models.Lead
	var status string
	err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Source,
		&l.InquiryType, &l.Message, &l.Urgency, &status,
		&l.AIResponseDraft, &l.AIResponseSent, &l.AIResponseApproved,
		&l.ResponseTimeSeconds, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = models.LeadStatus(status)
	return &l, nil
}

// GetLead 获取线索
func (db *PostgresDatabase) GetLead(id string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	l, err := scanLead(db.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// ListLeads 线索列表，最新在前
func (db *PostgresDatabase) ListLeads(status models.LeadStatus, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// SetLeadResponseDraft 写入AI草稿
func (db *PostgresDatabase) SetLeadResponseDraft(id, draft string) error {
	_, err := db.db.Exec(`UPDATE leads SET ai_response_draft = $1, updated_at = NOW() WHERE id = $2`, draft, id)
	if err != nil {
		return fmt.Errorf("failed to set lead response draft: %w", err)
	}
	return nil
}

// MarkLeadContacted 审批放行后更新线索状态与响应耗时
func (db *PostgresDatabase) MarkLeadContacted(id string, responseTimeSeconds int64) error {
	query := `
		UPDATE leads
		SET status = $1, ai_response_sent = true, ai_response_approved = true,
		    response_time_seconds = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.db.Exec(query, string(models.LeadContacted), responseTimeSeconds, id)
	if err != nil {
		return fmt.Errorf("failed to mark lead contacted: %w", err)
	}
	return nil
}

// ================= Patients & outreach =================

// CreatePatient 创建患者档案
func (db *PostgresDatabase) CreatePatient(p *models.Patient) error {
	if p.Status == "" {
		p.Status = "active"
	}
	query := `
		INSERT INTO patients (first_name, last_name, email, phone, status, last_visit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, p.FirstName, p.LastName, p.Email, p.Phone, p.Status, p.LastVisit).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// GetPatient 获取患者档案
func (db *PostgresDatabase) GetPatient(id string) (*models.Patient, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, COALESCE(status,'active'), last_visit,
		       created_at, updated_at
		FROM patients WHERE id = $1
	`
	var p models.Patient
	err := db.db.QueryRow(query, id).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.Status, &p.LastVisit, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &p, nil
}

// ListRecallDuePatients 召回扫描：active 且 last_visit 早于截止日期，最久未到访在前
func (db *PostgresDatabase) ListRecallDuePatients(lastVisitBefore string, limit int) ([]models.Patient, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT id, first_name, last_name, email, phone, COALESCE(status,'active'), last_visit,
		       created_at, updated_at
		FROM patients
		WHERE status = 'active' AND last_visit IS NOT NULL AND last_visit < $1
		ORDER BY last_visit ASC
		LIMIT %d
	`, limit)
	rows, err := db.db.Query(query, lastVisitBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list recall-due patients: %w", err)
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		var p models.Patient
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
			&p.Status, &p.LastVisit, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// CreateOutreachMessage 记录一条外发消息
func (db *PostgresDatabase) CreateOutreachMessage(m *models.OutreachMessage) error {
	metaJSON, err := marshalJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal outreach metadata: %w", err)
	}
	query := `
		INSERT INTO outreach_messages (patient_id, channel, direction, status, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`
	err = db.db.QueryRow(query, m.PatientID, m.Channel, m.Direction, m.Status, m.Content, metaJSON).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outreach message: %w", err)
	}
	return nil
}

// CountRecentOutreach 统计某患者自 since 以来的外发数量（去重复触达用）
func (db *PostgresDatabase) CountRecentOutreach(patientID string, since time.Time) (int, error) {
	var count int
	err := db.db.QueryRow(
		`SELECT COUNT(*) FROM outreach_messages WHERE patient_id = $1 AND created_at >= $2`,
		patientID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent outreach: %w", err)
	}
	return count, nil
}

// ================= Offer letters =================

const offerColumns = `id, candidate_first_name, candidate_last_name, candidate_email, candidate_phone,
	job_title, COALESCE(department,'Clinical'), COALESCE(employment_type,'FULL_TIME'), start_date,
	salary_amount, COALESCE(salary_unit,'YEAR'), hourly_rate, letter_body, custom_message,
	status, sign_token, expires_at, sent_at, signed_at,
	COALESCE(signature_name,''), COALESCE(signed_ip,''), employee_id, COALESCE(created_by,''),
	created_at, updated_at`

func scanOffer(row interface{ Scan(...interface{}) error }) (*models.OfferLetter, error) {
	var o models.OfferLetter
	var status string
	err := row.Scan(&o.ID, &o.CandidateFirstName, &o.CandidateLastName, &o.CandidateEmail, &o.CandidatePhone,
		&o.JobTitle, &o.Department, &o.EmploymentType, &o.StartDate,
		&o.SalaryAmount, &o.SalaryUnit, &o.HourlyRate, &o.LetterBody, &o.CustomMessage,
		&status, &o.SignToken, &o.ExpiresAt, &o.SentAt, &o.SignedAt,
		&o.SignatureName, &o.SignedIP, &o.EmployeeID, &o.CreatedBy,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.OfferStatus(status)
	return &o, nil
}

// CreateOfferLetter 创建offer（含签署token）
func (db *PostgresDatabase) CreateOfferLetter(o *models.OfferLetter) error {
	if o.Status == "" {
		o.Status = models.OfferDraft
	}
	if o.SalaryUnit == "" {
		o.SalaryUnit = models.SalaryUnitYear
	}
	query := `
		INSERT INTO offer_letters (candidate_first_name, candidate_last_name, candidate_email, candidate_phone,
		                           job_title, department, employment_type, start_date,
		                           salary_amount, salary_unit, hourly_rate, letter_body, custom_message,
		                           status, sign_token, expires_at, sent_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, o.CandidateFirstName, o.CandidateLastName, o.CandidateEmail, o.CandidatePhone,
		o.JobTitle, o.Department, o.EmploymentType, o.StartDate,
		o.SalaryAmount, o.SalaryUnit, o.HourlyRate, o.LetterBody, o.CustomMessage,
		string(o.Status), o.SignToken, o.ExpiresAt, o.SentAt, o.CreatedBy).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create offer letter: %w", err)
	}
	return nil
}

// GetOfferLetter 按ID获取offer
func (db *PostgresDatabase) GetOfferLetter(id string) (*models.OfferLetter, error) {
	query := `SELECT ` + offerColumns + ` FROM offer_letters WHERE id = $1`
	o, err := scanOffer(db.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offer letter: %w", err)
	}
	return o, nil
}

// GetOfferLetterByToken 按签署token获取offer
func (db *PostgresDatabase) GetOfferLetterByToken(token string) (*models.OfferLetter, error) {
	query := `SELECT ` + offerColumns + ` FROM offer_letters WHERE sign_token = $1`
	o, err := scanOffer(db.db.QueryRow(query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get offer letter by token: %w", err)
	}
	return o, nil
}

// ListOfferLetters offer列表，最新在前
func (db *PostgresDatabase) ListOfferLetters() ([]models.OfferLetter, error) {
	query := `SELECT ` + offerColumns + ` FROM offer_letters ORDER BY created_at DESC`
	rows, err := db.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list offer letters: %w", err)
	}
	defer rows.Close()

	var offers []models.OfferLetter
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer letter: %w", err)
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

// UpdateOfferLetter 覆盖可编辑字段（正文、备注、起始日期、薪资、状态）
func (db *PostgresDatabase) UpdateOfferLetter(o *models.OfferLetter) error {
	if o.ID == "" {
		return fmt.Errorf("offer letter ID is required for update")
	}
	query := `
		UPDATE offer_letters
		SET start_date = $1, salary_amount = $2, custom_message = $3, letter_body = $4,
		    status = $5, sent_at = $6, expires_at = $7, updated_at = NOW()
		WHERE id = $8
	`
	_, err := db.db.Exec(query, o.StartDate, o.SalaryAmount, o.CustomMessage, o.LetterBody,
		string(o.Status), o.SentAt, o.ExpiresAt, o.ID)
	if err != nil {
		return fmt.Errorf("failed to update offer letter: %w", err)
	}
	return nil
}

// MarkOfferSent draft -> sent
func (db *PostgresDatabase) MarkOfferSent(id string, at time.Time) error {
	query := `
		UPDATE offer_letters
		SET status = $1, sent_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	res, err := db.db.Exec(query, string(models.OfferSent), at, id, string(models.OfferDraft))
	if err != nil {
		return fmt.Errorf("failed to mark offer sent: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkOfferViewed sent -> viewed；已是viewed及之后的状态不再改写
func (db *PostgresDatabase) MarkOfferViewed(token string) error {
	query := `
		UPDATE offer_letters
		SET status = $1, updated_at = NOW()
		WHERE sign_token = $2 AND status = $3
	`
	_, err := db.db.Exec(query, string(models.OfferViewed), token, string(models.OfferSent))
	if err != nil {
		return fmt.Errorf("failed to mark offer viewed: %w", err)
	}
	return nil
}

// SignOfferLetter 条件写：sent/viewed -> signed。命中0行返回 ErrConflict，
// 这是防止同一token二次签署的关键。
func (db *PostgresDatabase) SignOfferLetter(id, signatureName, ip string, at time.Time) error {
	query := `
		UPDATE offer_letters
		SET status = $1, signed_at = $2, signature_name = $3, signed_ip = $4, updated_at = NOW()
		WHERE id = $5 AND status IN ($6, $7)
	`
	res, err := db.db.Exec(query, string(models.OfferSigned), at, signatureName, ip,
		id, string(models.OfferSent), string(models.OfferViewed))
	if err != nil {
		return fmt.Errorf("failed to sign offer letter: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// DeclineOfferLetter 条件写：sent/viewed -> declined
func (db *PostgresDatabase) DeclineOfferLetter(id string) error {
	query := `
		UPDATE offer_letters
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
	`
	res, err := db.db.Exec(query, string(models.OfferDeclined), id,
		string(models.OfferSent), string(models.OfferViewed))
	if err != nil {
		return fmt.Errorf("failed to decline offer letter: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// WithdrawOfferLetter draft/sent/viewed -> withdrawn
func (db *PostgresDatabase) WithdrawOfferLetter(id string) error {
	query := `
		UPDATE offer_letters
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4, $5)
	`
	res, err := db.db.Exec(query, string(models.OfferWithdrawn), id,
		string(models.OfferDraft), string(models.OfferSent), string(models.OfferViewed))
	if err != nil {
		return fmt.Errorf("failed to withdraw offer letter: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// LinkOfferEmployee 签署后回填员工ID
func (db *PostgresDatabase) LinkOfferEmployee(offerID, employeeID string) error {
	_, err := db.db.Exec(`UPDATE offer_letters SET employee_id = $1, updated_at = NOW() WHERE id = $2`,
		employeeID, offerID)
	if err != nil {
		return fmt.Errorf("failed to link offer employee: %w", err)
	}
	return nil
}

// ================= Employees & onboarding =================

// CreateEmployeeWithTasks 员工与入职清单在同一事务内写入，
// 避免签署成功但清单缺失的部分失败。
func (db *PostgresDatabase) CreateEmployeeWithTasks(e *models.Employee, tasks []models.OnboardingTask) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if e.Status == "" {
		e.Status = "active"
	}
	err = tx.QueryRow(`
		INSERT INTO employees (first_name, last_name, email, phone, role, hire_date, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, e.FirstName, e.LastName, e.Email, e.Phone, e.Role, e.HireDate, e.Status, e.Notes).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}

	for i := range tasks {
		t := &tasks[i]
		t.EmployeeID = e.ID
		err = tx.QueryRow(`
			INSERT INTO onboarding_tasks (employee_id, task_key, task_label, category, status,
			                              notes, completed_at, completed_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), NOW())
			RETURNING id, created_at
		`, t.EmployeeID, t.TaskKey, t.TaskLabel, t.Category, string(t.Status),
			t.Notes, t.CompletedAt, t.CompletedBy).
			Scan(&t.ID, &t.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create onboarding task %s: %w", t.TaskKey, err)
		}
	}

	return tx.Commit()
}

// GetEmployee 获取员工
func (db *PostgresDatabase) GetEmployee(id string) (*models.Employee, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, COALESCE(role,''), hire_date,
		       COALESCE(status,'active'), COALESCE(notes,''), created_at, updated_at
		FROM employees WHERE id = $1
	`
	var e models.Employee
	err := db.db.QueryRow(query, id).Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Phone,
		&e.Role, &e.HireDate, &e.Status, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

// ListEmployees 员工列表
func (db *PostgresDatabase) ListEmployees() ([]models.Employee, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, COALESCE(role,''), hire_date,
		       COALESCE(status,'active'), COALESCE(notes,''), created_at, updated_at
		FROM employees ORDER BY created_at DESC
	`
	rows, err := db.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Phone,
			&e.Role, &e.HireDate, &e.Status, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

const taskColumns = `id, employee_id, task_key, task_label, category, status,
	notes, completed_at, COALESCE(completed_by,''), created_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.OnboardingTask, error) {
	var t models.OnboardingTask
	var status string
	err := row.Scan(&t.ID, &t.EmployeeID, &t.TaskKey, &t.TaskLabel, &t.Category, &status,
		&t.Notes, &t.CompletedAt, &t.CompletedBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	return &t, nil
}

// ListOnboardingTasks 按员工列出入职清单，保持播种顺序
func (db *PostgresDatabase) ListOnboardingTasks(employeeID string) ([]models.OnboardingTask, error) {
	query := `SELECT ` + taskColumns + ` FROM onboarding_tasks WHERE employee_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := db.db.Query(query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list onboarding tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.OnboardingTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan onboarding task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// GetOnboardingTask 获取单条任务
func (db *PostgresDatabase) GetOnboardingTask(id string) (*models.OnboardingTask, error) {
	query := `SELECT ` + taskColumns + ` FROM onboarding_tasks WHERE id = $1`
	t, err := scanTask(db.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get onboarding task: %w", err)
	}
	return t, nil
}

// UpdateOnboardingTaskStatus 更新任务状态；completed 时盖章完成人与时间
func (db *PostgresDatabase) UpdateOnboardingTaskStatus(id string, status models.TaskStatus, notes *string, completedBy string, at time.Time) error {
	var res sql.Result
	var err error
	if status == models.TaskCompleted {
		res, err = db.db.Exec(`
			UPDATE onboarding_tasks
			SET status = $1, notes = COALESCE($2, notes), completed_at = $3, completed_by = $4
			WHERE id = $5
		`, string(status), notes, at, completedBy, id)
	} else {
		res, err = db.db.Exec(`
			UPDATE onboarding_tasks
			SET status = $1, notes = COALESCE($2, notes), completed_at = NULL, completed_by = NULL
			WHERE id = $3
		`, string(status), notes, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update onboarding task: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Legal documents =================

const legalDocColumns = `id, title, COALESCE(doc_type,''), COALESCE(counterparty,''), COALESCE(file_url,''),
	COALESCE(version,1), status, sent_at, signed_at, deleted_at, created_at, updated_at`

func scanLegalDoc(row interface{ Scan(...interface{}) error }) (*models.LegalDocument, error) {
	var d models.LegalDocument
	var status string
	err := row.Scan(&d.ID, &d.Title, &d.DocType, &d.Counterparty, &d.FileURL,
		&d.Version, &status, &d.SentAt, &d.SignedAt, &d.DeletedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = models.LegalDocStatus(status)
	return &d, nil
}

// CreateLegalDocument 创建法务文档
func (db *PostgresDatabase) CreateLegalDocument(d *models.LegalDocument) error {
	if d.Status == "" {
		d.Status = models.LegalDocPending
	}
	if d.Version == 0 {
		d.Version = 1
	}
	query := `
		INSERT INTO legal_documents (title, doc_type, counterparty, file_url, version, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, d.Title, d.DocType, d.Counterparty, d.FileURL, d.Version, string(d.Status)).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create legal document: %w", err)
	}
	return nil
}

// GetLegalDocument 获取未删除的法务文档
func (db *PostgresDatabase) GetLegalDocument(id string) (*models.LegalDocument, error) {
	query := `SELECT ` + legalDocColumns + ` FROM legal_documents WHERE id = $1 AND deleted_at IS NULL`
	d, err := scanLegalDoc(db.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get legal document: %w", err)
	}
	return d, nil
}

// ListLegalDocuments 列出未删除的法务文档
func (db *PostgresDatabase) ListLegalDocuments() ([]models.LegalDocument, error) {
	query := `SELECT ` + legalDocColumns + ` FROM legal_documents WHERE deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := db.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list legal documents: %w", err)
	}
	defer rows.Close()

	var docs []models.LegalDocument
	for rows.Next() {
		d, err := scanLegalDoc(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan legal document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// SetLegalDocumentStatus 人工状态切换；sent/signed 顺带盖时间戳
func (db *PostgresDatabase) SetLegalDocumentStatus(id string, status models.LegalDocStatus, at time.Time) error {
	var query string
	switch status {
	case models.LegalDocSent:
		query = `UPDATE legal_documents SET status = $1, sent_at = $2, updated_at = NOW() WHERE id = $3 AND deleted_at IS NULL`
	case models.LegalDocSigned:
		query = `UPDATE legal_documents SET status = $1, signed_at = $2, updated_at = NOW() WHERE id = $3 AND deleted_at IS NULL`
	default:
		query = `UPDATE legal_documents SET status = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`
	}
	res, err := db.db.Exec(query, string(status), at, id)
	if err != nil {
		return fmt.Errorf("failed to set legal document status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetLegalDocument 重新生成：回到 pending 并自增版本
func (db *PostgresDatabase) ResetLegalDocument(id string) error {
	query := `
		UPDATE legal_documents
		SET status = $1, sent_at = NULL, signed_at = NULL, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	res, err := db.db.Exec(query, string(models.LegalDocPending), id)
	if err != nil {
		return fmt.Errorf("failed to reset legal document: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteLegalDocument 软删除
func (db *PostgresDatabase) SoftDeleteLegalDocument(id string) error {
	res, err := db.db.Exec(`UPDATE legal_documents SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete legal document: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck 健康检查
func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

// Close 关闭连接
func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
