package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dental-ops-backend/pkg/models"
)

// SupabaseDatabase Supabase数据库实现（PostgREST）
type SupabaseDatabase struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupabaseDatabase 创建Supabase数据库实例
func NewSupabaseDatabase(apiURL, key string) DatabaseInterface {
	// 确保URL格式正确
	if !strings.HasPrefix(apiURL, "http") {
		apiURL = "https://" + apiURL
	}

	return &SupabaseDatabase{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest 发送HTTP请求到Supabase
func (db *SupabaseDatabase) makeRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	reqURL := db.baseURL + "/rest/v1" + endpoint
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// 设置请求头
	req.Header.Set("apikey", db.apiKey)
	req.Header.Set("Authorization", "Bearer "+db.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := db.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// conditionalUpdate PATCH带状态过滤器的端点。PostgREST返回受影响行，
// 长度为0表示条件未命中（并发修改或已处于终态）。
func (db *SupabaseDatabase) conditionalUpdate(endpoint string, payload interface{}) error {
	data, err := db.makeRequest("PATCH", endpoint, payload)
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse update response: %w", err)
	}
	if len(rows) == 0 {
		return ErrConflict
	}
	return nil
}

// ================= Row wrappers =================

// 模型对外隐藏敏感字段（密码哈希、签署token），REST层需要显式带上它们。

type userRow struct {
	models.User
	PasswordHash string `json:"password_hash,omitempty"`
}

func (r userRow) toModel() *models.User {
	u := r.User
	u.Password = r.PasswordHash
	return &u
}

type offerRow struct {
	models.OfferLetter
	SignToken string `json:"sign_token,omitempty"`
}

func (r offerRow) toModel() *models.OfferLetter {
	o := r.OfferLetter
	o.SignToken = r.SignToken
	return &o
}

// ================= Staff users =================

// CreateUser 创建员工账号
func (db *SupabaseDatabase) CreateUser(user *models.User) error {
	role := user.Role
	if role == "" {
		role = "staff"
	}
	payload := map[string]interface{}{
		"email":         user.Email,
		"password_hash": user.Password,
		"name":          user.Name,
		"role":          role,
	}
	data, err := db.makeRequest("POST", "/staff_users", payload)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	var rows []userRow
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		*user = *rows[0].toModel()
	}
	return nil
}

// GetUserByEmail 根据邮箱获取员工账号
func (db *SupabaseDatabase) GetUserByEmail(email string) (*models.User, error) {
	data, err := db.makeRequest("GET", "/staff_users?email=eq."+url.QueryEscape(email)+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toModel(), nil
}

// GetUserByID 根据ID获取员工账号
func (db *SupabaseDatabase) GetUserByID(id string) (*models.User, error) {
	data, err := db.makeRequest("GET", "/staff_users?id=eq."+id+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toModel(), nil
}

// UpdateUser 更新员工账号
func (db *SupabaseDatabase) UpdateUser(user *models.User) error {
	payload := map[string]interface{}{
		"name":       user.Name,
		"updated_at": time.Now(),
	}
	if user.Role != "" {
		payload["role"] = user.Role
	}
	_, err := db.makeRequest("PATCH", "/staff_users?id=eq."+user.ID, payload)
	return err
}

// ================= AI 审批队列 =================

// CreateAction 写入一条待审批动作
func (db *SupabaseDatabase) CreateAction(a *models.AIAction) error {
	if a.Status == "" {
		a.Status = models.ActionPendingApproval
	}
	payload := map[string]interface{}{
		"action_type":      a.ActionType,
		"module":           a.Module,
		"description":      a.Description,
		"input_data":       a.InputData,
		"output_data":      a.OutputData,
		"status":           string(a.Status),
		"confidence_score": a.ConfidenceScore,
		"patient_id":       a.PatientID,
		"lead_id":          a.LeadID,
	}
	data, err := db.makeRequest("POST", "/ai_actions", payload)
	if err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}
	var rows []models.AIAction
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		*a = rows[0]
	}
	return nil
}

// GetAction 获取单条动作
func (db *SupabaseDatabase) GetAction(id string) (*models.AIAction, error) {
	data, err := db.makeRequest("GET", "/ai_actions?id=eq."+id+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.AIAction
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse action response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListPendingActions 待审批队列，最早创建的排在最前
func (db *SupabaseDatabase) ListPendingActions() ([]models.AIAction, error) {
	endpoint := "/ai_actions?status=eq." + string(models.ActionPendingApproval) + "&order=created_at.asc&select=*"
	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var rows []models.AIAction
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse actions response: %w", err)
	}
	return rows, nil
}

// ListActions 动作历史，最新在前
func (db *SupabaseDatabase) ListActions(status models.ActionStatus, limit int) ([]models.AIAction, error) {
	if limit <= 0 {
		limit = 50
	}
	endpoint := fmt.Sprintf("/ai_actions?order=created_at.desc&limit=%d&select=*", limit)
	if status != "" {
		endpoint += "&status=eq." + string(status)
	}
	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var rows []models.AIAction
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse actions response: %w", err)
	}
	return rows, nil
}

// mergedOutput 读取当前output_data并合入patch。
// 状态声明仍由带过滤器的PATCH保证恰好一次；这里的读改写只影响载荷内容。
func (db *SupabaseDatabase) mergedOutput(id string, patch map[string]interface{}) (map[string]interface{}, error) {
	current, err := db.GetAction(id)
	if err != nil {
		return nil, err
	}
	merged := map[string]interface{}{}
	for k, v := range current.OutputData {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged, nil
}

// ApproveAction 条件写：仅当仍为 pending_approval 时转为 executed
func (db *SupabaseDatabase) ApproveAction(id, approvedBy string, outputPatch map[string]interface{}, at time.Time) error {
	merged, err := db.mergedOutput(id, outputPatch)
	if err != nil {
		return err
	}
	endpoint := "/ai_actions?id=eq." + id + "&status=eq." + string(models.ActionPendingApproval)
	return db.conditionalUpdate(endpoint, map[string]interface{}{
		"status":      string(models.ActionExecuted),
		"approved_by": approvedBy,
		"approved_at": at,
		"output_data": merged,
		"updated_at":  time.Now(),
	})
}

// RejectAction 条件写：pending_approval -> rejected
func (db *SupabaseDatabase) RejectAction(id, approvedBy, reason string, at time.Time) error {
	merged, err := db.mergedOutput(id, map[string]interface{}{"rejection_reason": reason})
	if err != nil {
		return err
	}
	endpoint := "/ai_actions?id=eq." + id + "&status=eq." + string(models.ActionPendingApproval)
	return db.conditionalUpdate(endpoint, map[string]interface{}{
		"status":      string(models.ActionRejected),
		"approved_by": approvedBy,
		"approved_at": at,
		"output_data": merged,
		"updated_at":  time.Now(),
	})
}

// UpdateActionOutput 合并执行结果到 output_data
func (db *SupabaseDatabase) UpdateActionOutput(id string, patch map[string]interface{}) error {
	merged, err := db.mergedOutput(id, patch)
	if err != nil {
		return err
	}
	_, err = db.makeRequest("PATCH", "/ai_actions?id=eq."+id, map[string]interface{}{
		"output_data": merged,
		"updated_at":  time.Now(),
	})
	return err
}

// ================= Leads =================

// CreateLead 创建线索
func (db *SupabaseDatabase) CreateLead(lead *models.Lead) error {
	if lead.Status == "" {
		lead.Status = models.LeadNew
	}
	if lead.Source == "" {
		lead.Source = "website"
	}
	if lead.Urgency == "" {
		lead.Urgency = "medium"
	}
	payload := map[string]interface{}{
		"first_name":   lead.FirstName,
		"last_name":    lead.LastName,
		"email":        lead.Email,
		"phone":        lead.Phone,
		"source":       lead.Source,
		"inquiry_type": lead.InquiryType,
		"message":      lead.Message,
		"urgency":      lead.Urgency,
		"status":       string(lead.Status),
	}
	data, err := db.makeRequest("POST", "/leads", payload)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	var rows []models.Lead
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		*lead = rows[0]
	}
	return nil
}

// GetLead 获取线索
func (db *SupabaseDatabase) GetLead(id string) (*models.Lead, error) {
	data, err := db.makeRequest("GET", "/leads?id=eq."+id+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Lead
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse lead response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListLeads 线索列表，最新在前
func (db *SupabaseDatabase) ListLeads(status models.LeadStatus, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	endpoint := fmt.Sprintf("/leads?order=created_at.desc&limit=%d&select=*", limit)
	if status != "" {
		endpoint += "&status=eq." + string(status)
	}
	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Lead
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse leads response: %w", err)
	}
	return rows, nil
}

// SetLeadResponseDraft 写入AI草稿
func (db *SupabaseDatabase) SetLeadResponseDraft(id, draft string) error {
	_, err := db.makeRequest("PATCH", "/leads?id=eq."+id, map[string]interface{}{
		"ai_response_draft": draft,
		"updated_at":        time.Now(),
	})
	return err
}

// MarkLeadContacted 审批放行后更新线索状态与响应耗时
func (db *SupabaseDatabase) MarkLeadContacted(id string, responseTimeSeconds int64) error {
	_, err := db.makeRequest("PATCH", "/leads?id=eq."+id, map[string]interface{}{
		"status":                string(models.LeadContacted),
		"ai_response_sent":      true,
		"ai_response_approved":  true,
		"response_time_seconds": responseTimeSeconds,
		"updated_at":            time.Now(),
	})
	return err
}

// ================= Patients & outreach =================

// CreatePatient 创建患者档案
func (db *SupabaseDatabase) CreatePatient(p *models.Patient) error {
	if p.Status == "" {
		p.Status = "active"
	}
	payload := map[string]interface{}{
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"email":      p.Email,
		"phone":      p.Phone,
		"status":     p.Status,
		"last_visit": p.LastVisit,
	}
	data, err := db.makeRequest("POST", "/patients", payload)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	var rows []models.Patient
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		*p = rows[0]
	}
	return nil
}

// GetPatient 获取患者档案
func (db *SupabaseDatabase) GetPatient(id string) (*models.Patient, error) {
	data, err := db.makeRequest("GET", "/patients?id=eq."+id+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Patient
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse patient response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListRecallDuePatients 召回扫描
func (db *SupabaseDatabase) ListRecallDuePatients(lastVisitBefore string, limit int) ([]models.Patient, error) {
	if limit <= 0 {
		limit = 20
	}
	endpoint := fmt.Sprintf("/patients?status=eq.active&last_visit=lt.%s&order=last_visit.asc&limit=%d&select=*",
		lastVisitBefore, limit)
	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Patient
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse patients response: %w", err)
	}
	return rows, nil
}

// CreateOutreachMessage 记录一条外发消息
func (db *SupabaseDatabase) CreateOutreachMessage(m *models.OutreachMessage) error {
	payload := map[string]interface{}{
		"patient_id": m.PatientID,
		"channel":    m.Channel,
		"direction":  m.Direction,
		"status":     m.Status,
		"content":    m.Content,
		"metadata":   m.Metadata,
	}
	data, err := db.makeRequest("POST", "/outreach_messages", payload)
	if err != nil {
		return fmt.Errorf("failed to create outreach message: %w", err)
	}
	var rows []models.OutreachMessage
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		*m = rows[0]
	}
	return nil
}

// CountRecentOutreach 统计某患者自 since 以来的外发数量
func (db *SupabaseDatabase) CountRecentOutreach(patientID string, since time.Time) (int, error) {
	endpoint := "/outreach_messages?patient_id=eq." + patientID +
		"&created_at=gte." + url.QueryEscape(since.UTC().Format(time.RFC3339)) + "&select=id"
	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return 0, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("failed to parse outreach response: %w", err)
	}
	return len(rows), nil
}

// ================= Offer letters =================

// CreateOfferLetter 创建offer
func (db *SupabaseDatabase) CreateOfferLetter(o *models.OfferLetter) error {
	if o.Status == "" {
		o.Status = models.OfferDraft
	}
	if o.SalaryUnit == "" {
		o.SalaryUnit = models.SalaryUnitYear
	}
	payload := map[string]interface{}{
		"candidate_first_name": o.CandidateFirstName,
		"candidate_last_name":  o.CandidateLastName,
		"candidate_email":      o.CandidateEmail,
		"candidate_phone":      o.CandidatePhone,
		"job_title":            o.JobTitle,
		"department":           o.Department,
		"employment_type":      o.EmploymentType,
		"start_date":           o.StartDate,
		"salary_amount":        o.SalaryAmount,
		"salary_unit":          o.SalaryUnit,
		"hourly_rate":          o.HourlyRate,
		"letter_body":          o.LetterBody,
		"custom_message":       o.CustomMessage,
		"status":               string(o.Status),
		"sign_token":           o.SignToken,
		"expires_at":           o.ExpiresAt,
		"sent_at":              o.SentAt,
		"created_by":           o.CreatedBy,
	}
	data, err := db.makeRequest("POST", "/offer_letters", payload)
	if err != nil {
		return fmt.Errorf("failed to create offer letter: %w", err)
	}
	var rows []offerRow
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		*o = *rows[0].toModel()
	}
	return nil
}

// GetOfferLetter 按ID获取offer
func (db *SupabaseDatabase) GetOfferLetter(id string) (*models.OfferLetter, error) {
	data, err := db.makeRequest("GET", "/offer_letters?id=eq."+id+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []offerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse offer response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toModel(), nil
}

// GetOfferLetterByToken 按签署token获取offer
func (db *SupabaseDatabase) GetOfferLetterByToken(token string) (*models.OfferLetter, error) {
	data, err := db.makeRequest("GET", "/offer_letters?sign_token=eq."+url.QueryEscape(token)+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []offerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse offer response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].toModel(), nil
}

// ListOfferLetters offer列表，最新在前
func (db *SupabaseDatabase) ListOfferLetters() ([]models.OfferLetter, error) {
	data, err := db.makeRequest("GET", "/offer_letters?order=created_at.desc&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []offerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse offers response: %w", err)
	}
	out := make([]models.OfferLetter, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toModel())
	}
	return out, nil
}

// UpdateOfferLetter 覆盖可编辑字段
func (db *SupabaseDatabase) UpdateOfferLetter(o *models.OfferLetter) error {
	payload := map[string]interface{}{
		"start_date":     o.StartDate,
		"salary_amount":  o.SalaryAmount,
		"custom_message": o.CustomMessage,
		"letter_body":    o.LetterBody,
		"status":         string(o.Status),
		"sent_at":        o.SentAt,
		"expires_at":     o.ExpiresAt,
		"updated_at":     time.Now(),
	}
	_, err := db.makeRequest("PATCH", "/offer_letters?id=eq."+o.ID, payload)
	return err
}

// MarkOfferSent draft -> sent
func (db *SupabaseDatabase) MarkOfferSent(id string, at time.Time) error {
	endpoint := "/offer_letters?id=eq." + id + "&status=eq." + string(models.OfferDraft)
	return db.conditionalUpdate(endpoint, map[string]interface{}{
		"status":     string(models.OfferSent),
		"sent_at":    at,
		"updated_at": time.Now(),
	})
}

// MarkOfferViewed sent -> viewed；已推进的状态保持不变
func (db *SupabaseDatabase) MarkOfferViewed(token string) error {
	endpoint := "/offer_letters?sign_token=eq." + url.QueryEscape(token) + "&status=eq." + string(models.OfferSent)
	_, err := db.makeRequest("PATCH", endpoint, map[string]interface{}{
		"status":     string(models.OfferViewed),
		"updated_at": time.Now(),
	})
	return err
}

// SignOfferLetter 条件写：sent/viewed -> signed
func (db *SupabaseDatabase) SignOfferLetter(id, signatureName, ip string, at time.Time) error {
	endpoint := "/offer_letters?id=eq." + id +
		"&status=in.(" + string(models.OfferSent) + "," + string(models.OfferViewed) + ")"
	return db.conditionalUpdate(endpoint, map[string]interface{}{
		"status":         string(models.OfferSigned),
		"signed_at":      at,
		"signature_name": signatureName,
		"signed_ip":      ip,
		"updated_at":     time.Now(),
	})
}

// DeclineOfferLetter 条件写：sent/viewed -> declined
func (db *SupabaseDatabase) DeclineOfferLetter(id string) error {
	endpoint := "/offer_letters?id=eq." + id +
		"&status=in.(" + string(models.OfferSent) + "," + string(models.OfferViewed) + ")"
	return db.conditionalUpdate(endpoint, map[string]interface{}{
		"status":     string(models.OfferDeclined),
		"updated_at": time.Now(),
	})
}

// WithdrawOfferLetter draft/sent/viewed -> withdrawn
func (db *SupabaseDatabase) WithdrawOfferLetter(id string) error {
	endpoint := "/offer_letters?id=eq." + id +
		"&status=in.(" + string(models.OfferDraft) + "," + string(models.OfferSent) + "," + string(models.OfferViewed) + ")"
	return db.conditionalUpdate(endpoint, map[string]interface{}{
		"status":     string(models.OfferWithdrawn),
		"updated_at": time.Now(),
	})
}

// LinkOfferEmployee 签署后回填员工ID
func (db *SupabaseDatabase) LinkOfferEmployee(offerID, employeeID string) error {
	_, err := db.makeRequest("PATCH", "/offer_letters?id=eq."+offerID, map[string]interface{}{
		"employee_id": employeeID,
		"updated_at":  time.Now(),
	})
	return err
}

// ================= Employees & onboarding =================

// CreateEmployeeWithTasks 员工与入职清单写入。
// REST API没有事务；先写员工再批量写任务，任务失败时员工记录会保留。
func (db *SupabaseDatabase) CreateEmployeeWithTasks(e *models.Employee, tasks []models.OnboardingTask) error {
	if e.Status == "" {
		e.Status = "active"
	}
	payload := map[string]interface{}{
		"first_name": e.FirstName,
		"last_name":  e.LastName,
		"email":      e.Email,
		"phone":      e.Phone,
		"role":       e.Role,
		"hire_date":  e.HireDate,
		"status":     e.Status,
		"notes":      e.Notes,
	}
	data, err := db.makeRequest("POST", "/employees", payload)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}
	var rows []models.Employee
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		*e = rows[0]
	}
	if e.ID == "" {
		return fmt.Errorf("employee created but no id returned")
	}

	// 批量插入清单
	taskPayloads := make([]map[string]interface{}, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		t.EmployeeID = e.ID
		item := map[string]interface{}{
			"employee_id": t.EmployeeID,
			"task_key":    t.TaskKey,
			"task_label":  t.TaskLabel,
			"category":    t.Category,
			"status":      string(t.Status),
			"notes":       t.Notes,
		}
		if t.CompletedAt != nil {
			item["completed_at"] = t.CompletedAt
			item["completed_by"] = t.CompletedBy
		}
		taskPayloads = append(taskPayloads, item)
	}
	if _, err := db.makeRequest("POST", "/onboarding_tasks", taskPayloads); err != nil {
		return fmt.Errorf("failed to create onboarding tasks: %w", err)
	}
	return nil
}

// GetEmployee 获取员工
func (db *SupabaseDatabase) GetEmployee(id string) (*models.Employee, error) {
	data, err := db.makeRequest("GET", "/employees?id=eq."+id+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Employee
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse employee response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListEmployees 员工列表，最新在前
func (db *SupabaseDatabase) ListEmployees() ([]models.Employee, error) {
	data, err := db.makeRequest("GET", "/employees?order=created_at.desc&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.Employee
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse employees response: %w", err)
	}
	return rows, nil
}

// ListOnboardingTasks 按员工列出入职清单
func (db *SupabaseDatabase) ListOnboardingTasks(employeeID string) ([]models.OnboardingTask, error) {
	endpoint := "/onboarding_tasks?employee_id=eq." + employeeID + "&order=created_at.asc&select=*"
	data, err := db.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var rows []models.OnboardingTask
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse tasks response: %w", err)
	}
	return rows, nil
}

// GetOnboardingTask 获取单条任务
func (db *SupabaseDatabase) GetOnboardingTask(id string) (*models.OnboardingTask, error) {
	data, err := db.makeRequest("GET", "/onboarding_tasks?id=eq."+id+"&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.OnboardingTask
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse task response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// UpdateOnboardingTaskStatus 更新任务状态
func (db *SupabaseDatabase) UpdateOnboardingTaskStatus(id string, status models.TaskStatus, notes *string, completedBy string, at time.Time) error {
	payload := map[string]interface{}{
		"status": string(status),
	}
	if notes != nil {
		payload["notes"] = *notes
	}
	if status == models.TaskCompleted {
		payload["completed_at"] = at
		payload["completed_by"] = completedBy
	} else {
		payload["completed_at"] = nil
		payload["completed_by"] = nil
	}
	data, err := db.makeRequest("PATCH", "/onboarding_tasks?id=eq."+id, payload)
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse update response: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= Legal documents =================

// CreateLegalDocument 创建法务文档
func (db *SupabaseDatabase) CreateLegalDocument(d *models.LegalDocument) error {
	if d.Status == "" {
		d.Status = models.LegalDocPending
	}
	if d.Version == 0 {
		d.Version = 1
	}
	payload := map[string]interface{}{
		"title":        d.Title,
		"doc_type":     d.DocType,
		"counterparty": d.Counterparty,
		"file_url":     d.FileURL,
		"version":      d.Version,
		"status":       string(d.Status),
	}
	data, err := db.makeRequest("POST", "/legal_documents", payload)
	if err != nil {
		return fmt.Errorf("failed to create legal document: %w", err)
	}
	var rows []models.LegalDocument
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		*d = rows[0]
	}
	return nil
}

// GetLegalDocument 获取未删除的法务文档
func (db *SupabaseDatabase) GetLegalDocument(id string) (*models.LegalDocument, error) {
	data, err := db.makeRequest("GET", "/legal_documents?id=eq."+id+"&deleted_at=is.null&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.LegalDocument
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse legal document response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListLegalDocuments 列出未删除的法务文档
func (db *SupabaseDatabase) ListLegalDocuments() ([]models.LegalDocument, error) {
	data, err := db.makeRequest("GET", "/legal_documents?deleted_at=is.null&order=created_at.desc&select=*", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.LegalDocument
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse legal documents response: %w", err)
	}
	return rows, nil
}

// SetLegalDocumentStatus 人工状态切换
func (db *SupabaseDatabase) SetLegalDocumentStatus(id string, status models.LegalDocStatus, at time.Time) error {
	payload := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	switch status {
	case models.LegalDocSent:
		payload["sent_at"] = at
	case models.LegalDocSigned:
		payload["signed_at"] = at
	}
	data, err := db.makeRequest("PATCH", "/legal_documents?id=eq."+id+"&deleted_at=is.null", payload)
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse update response: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetLegalDocument 重新生成：回到 pending 并自增版本
func (db *SupabaseDatabase) ResetLegalDocument(id string) error {
	current, err := db.GetLegalDocument(id)
	if err != nil {
		return err
	}
	_, err = db.makeRequest("PATCH", "/legal_documents?id=eq."+id+"&deleted_at=is.null", map[string]interface{}{
		"status":     string(models.LegalDocPending),
		"sent_at":    nil,
		"signed_at":  nil,
		"version":    current.Version + 1,
		"updated_at": time.Now(),
	})
	return err
}

// SoftDeleteLegalDocument 软删除
func (db *SupabaseDatabase) SoftDeleteLegalDocument(id string) error {
	data, err := db.makeRequest("PATCH", "/legal_documents?id=eq."+id+"&deleted_at=is.null", map[string]interface{}{
		"deleted_at": time.Now(),
	})
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse delete response: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// HealthCheck 健康检查
func (db *SupabaseDatabase) HealthCheck() error {
	_, err := db.makeRequest("GET", "/staff_users?select=id&limit=1", nil)
	return err
}

// Close 关闭连接
func (db *SupabaseDatabase) Close() error {
	return nil
}
