package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"dental-ops-backend/pkg/models"

	"github.com/google/uuid"
)

// LocalDatabase 本地文件数据库实现
type LocalDatabase struct {
	dataDir string

	// 文件读改写不是原子操作；用互斥锁串行化所有变更，
	// 条件状态写入（审批、签署）才能保持恰好一次的语义。
	mu sync.Mutex
}

// NewLocalDatabase 创建本地数据库实例
func NewLocalDatabase() DatabaseInterface {
	return NewLocalDatabaseAt("./data")
}

// NewLocalDatabaseAt 在指定目录创建本地数据库（测试用）
func NewLocalDatabaseAt(dataDir string) DatabaseInterface {
	// 在Vercel等只读文件系统中，使用临时目录
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Printf("Warning: Failed to create data directory: %v\n", err)
		dataDir = "/tmp/dental-ops-data"
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			fmt.Printf("Warning: Failed to create temp data directory: %v\n", err)
			dataDir = "."
		}
	}

	return &LocalDatabase{
		dataDir: dataDir,
	}
}

func (db *LocalDatabase) filePath(name string) string {
	return filepath.Join(db.dataDir, name+".json")
}

func loadCollection[T any](db *LocalDatabase, name string) ([]T, error) {
	data, err := os.ReadFile(db.filePath(name))
	if os.IsNotExist(err) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func saveCollection[T any](db *LocalDatabase, name string, items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.filePath(name), data, 0644)
}

// ================= Staff users =================

// CreateUser 创建员工账号
func (db *LocalDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = "staff"
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	users, err := loadCollection[models.User](db, "staff_users")
	if err != nil {
		return err
	}
	users = append(users, *user)
	return saveCollection(db, "staff_users", users)
}

// GetUserByEmail 根据邮箱获取员工账号
func (db *LocalDatabase) GetUserByEmail(email string) (*models.User, error) {
	users, err := loadCollection[models.User](db, "staff_users")
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// GetUserByID 根据ID获取员工账号
func (db *LocalDatabase) GetUserByID(id string) (*models.User, error) {
	users, err := loadCollection[models.User](db, "staff_users")
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateUser 更新员工账号
func (db *LocalDatabase) UpdateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := loadCollection[models.User](db, "staff_users")
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID == user.ID {
			user.UpdatedAt = time.Now()
			users[i] = *user
			return saveCollection(db, "staff_users", users)
		}
	}
	return ErrNotFound
}

// ================= AI 审批队列 =================

// CreateAction 写入一条待审批动作
func (db *LocalDatabase) CreateAction(a *models.AIAction) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = models.ActionPendingApproval
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt

	actions, err := loadCollection[models.AIAction](db, "ai_actions")
	if err != nil {
		return err
	}
	actions = append(actions, *a)
	return saveCollection(db, "ai_actions", actions)
}

// GetAction 获取单条动作
func (db *LocalDatabase) GetAction(id string) (*models.AIAction, error) {
	actions, err := loadCollection[models.AIAction](db, "ai_actions")
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

// ListPendingActions 待审批队列，最早创建的排在最前
func (db *LocalDatabase) ListPendingActions() ([]models.AIAction, error) {
	actions, err := loadCollection[models.AIAction](db, "ai_actions")
	if err != nil {
		return nil, err
	}

	var pending []models.AIAction
	for _, a := range actions {
		if a.Status == models.ActionPendingApproval {
			pending = append(pending, a)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// ListActions 动作历史，最新在前
func (db *LocalDatabase) ListActions(status models.ActionStatus, limit int) ([]models.AIAction, error) {
	if limit <= 0 {
		limit = 50
	}
	actions, err := loadCollection[models.AIAction](db, "ai_actions")
	if err != nil {
		return nil, err
	}

	var out []models.AIAction
	for _, a := range actions {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ApproveAction 条件写：仅当仍为 pending_approval 时转为 executed
func (db *LocalDatabase) ApproveAction(id, approvedBy string, outputPatch map[string]interface{}, at time.Time) error {
	return db.transitionAction(id, models.ActionExecuted, approvedBy, outputPatch, at)
}

// RejectAction 条件写：pending_approval -> rejected
func (db *LocalDatabase) RejectAction(id, approvedBy, reason string, at time.Time) error {
	return db.transitionAction(id, models.ActionRejected, approvedBy,
		map[string]interface{}{"rejection_reason": reason}, at)
}

func (db *LocalDatabase) transitionAction(id string, to models.ActionStatus, approvedBy string, patch map[string]interface{}, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	actions, err := loadCollection[models.AIAction](db, "ai_actions")
	if err != nil {
		return err
	}
	for i := range actions {
		if actions[i].ID != id {
			continue
		}
		if actions[i].Status != models.ActionPendingApproval {
			return ErrConflict
		}
		actions[i].Status = to
		actions[i].ApprovedBy = approvedBy
		t := at
		actions[i].ApprovedAt = &t
		if actions[i].OutputData == nil {
			actions[i].OutputData = map[string]interface{}{}
		}
		for k, v := range patch {
			actions[i].OutputData[k] = v
		}
		actions[i].UpdatedAt = time.Now()
		return saveCollection(db, "ai_actions", actions)
	}
	return ErrConflict
}

// UpdateActionOutput 合并执行结果到 output_data
func (db *LocalDatabase) UpdateActionOutput(id string, patch map[string]interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	actions, err := loadCollection[models.AIAction](db, "ai_actions")
	if err != nil {
		return err
	}
	for i := range actions {
		if actions[i].ID == id {
			if actions[i].OutputData == nil {
				actions[i].OutputData = map[string]interface{}{}
			}
			for k, v := range patch {
				actions[i].OutputData[k] = v
			}
			actions[i].UpdatedAt = time.Now()
			return saveCollection(db, "ai_actions", actions)
		}
	}
	return ErrNotFound
}

// ================= Leads =================

// CreateLead 创建线索
func (db *LocalDatabase) CreateLead(lead *models.Lead) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = models.LeadNew
	}
	if lead.Source == "" {
		lead.Source = "website"
	}
	if lead.Urgency == "" {
		lead.Urgency = "medium"
	}
	lead.CreatedAt = time.Now()
	lead.UpdatedAt = lead.CreatedAt

	leads, err := loadCollection[models.Lead](db, "leads")
	if err != nil {
		return err
	}
	leads = append(leads, *lead)
	return saveCollection(db, "leads", leads)
}

// GetLead 获取线索
func (db *LocalDatabase) GetLead(id string) (*models.Lead, error) {
	leads, err := loadCollection[models.Lead](db, "leads")
	if err != nil {
		return nil, err
	}
	for _, l := range leads {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

// ListLeads 线索列表，最新在前
func (db *LocalDatabase) ListLeads(status models.LeadStatus, limit int) ([]models.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	leads, err := loadCollection[models.Lead](db, "leads")
	if err != nil {
		return nil, err
	}

	var out []models.Lead
	for _, l := range leads {
		if status == "" || l.Status == status {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetLeadResponseDraft 写入AI草稿
func (db *LocalDatabase) SetLeadResponseDraft(id, draft string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	leads, err := loadCollection[models.Lead](db, "leads")
	if err != nil {
		return err
	}
	for i := range leads {
		if leads[i].ID == id {
			leads[i].AIResponseDraft = draft
			leads[i].UpdatedAt = time.Now()
			return saveCollection(db, "leads", leads)
		}
	}
	return ErrNotFound
}

// MarkLeadContacted 审批放行后更新线索状态与响应耗时
func (db *LocalDatabase) MarkLeadContacted(id string, responseTimeSeconds int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	leads, err := loadCollection[models.Lead](db, "leads")
	if err != nil {
		return err
	}
	for i := range leads {
		if leads[i].ID == id {
			leads[i].Status = models.LeadContacted
			leads[i].AIResponseSent = true
			leads[i].AIResponseApproved = true
			rt := responseTimeSeconds
			leads[i].ResponseTimeSeconds = &rt
			leads[i].UpdatedAt = time.Now()
			return saveCollection(db, "leads", leads)
		}
	}
	return ErrNotFound
}

// ================= Patients & outreach =================

// CreatePatient 创建患者档案
func (db *LocalDatabase) CreatePatient(p *models.Patient) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = "active"
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	patients, err := loadCollection[models.Patient](db, "patients")
	if err != nil {
		return err
	}
	patients = append(patients, *p)
	return saveCollection(db, "patients", patients)
}

// GetPatient 获取患者档案
func (db *LocalDatabase) GetPatient(id string) (*models.Patient, error) {
	patients, err := loadCollection[models.Patient](db, "patients")
	if err != nil {
		return nil, err
	}
	for _, p := range patients {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// ListRecallDuePatients 召回扫描：active 且 last_visit 早于截止日期
func (db *LocalDatabase) ListRecallDuePatients(lastVisitBefore string, limit int) ([]models.Patient, error) {
	if limit <= 0 {
		limit = 20
	}
	patients, err := loadCollection[models.Patient](db, "patients")
	if err != nil {
		return nil, err
	}

	// 日期是 YYYY-MM-DD，字典序即时间序
	var due []models.Patient
	for _, p := range patients {
		if p.Status == "active" && p.LastVisit != nil && *p.LastVisit < lastVisitBefore {
			due = append(due, p)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return *due[i].LastVisit < *due[j].LastVisit
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// CreateOutreachMessage 记录一条外发消息
func (db *LocalDatabase) CreateOutreachMessage(m *models.OutreachMessage) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()

	messages, err := loadCollection[models.OutreachMessage](db, "outreach_messages")
	if err != nil {
		return err
	}
	messages = append(messages, *m)
	return saveCollection(db, "outreach_messages", messages)
}

// CountRecentOutreach 统计某患者自 since 以来的外发数量
func (db *LocalDatabase) CountRecentOutreach(patientID string, since time.Time) (int, error) {
	messages, err := loadCollection[models.OutreachMessage](db, "outreach_messages")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range messages {
		if m.PatientID == patientID && !m.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// ================= Offer letters =================

// storedOfferLetter 持久化包装：模型对外隐藏 sign_token（json:"-"），
// 本地文件需要保存它才能按token查询。
type storedOfferLetter struct {
	models.OfferLetter
	SignToken string `json:"sign_token"`
}

func wrapOffer(o models.OfferLetter) storedOfferLetter {
	return storedOfferLetter{OfferLetter: o, SignToken: o.SignToken}
}

func (s storedOfferLetter) unwrap() models.OfferLetter {
	o := s.OfferLetter
	o.SignToken = s.SignToken
	return o
}

func (db *LocalDatabase) loadOffers() ([]storedOfferLetter, error) {
	return loadCollection[storedOfferLetter](db, "offer_letters")
}

// CreateOfferLetter 创建offer
func (db *LocalDatabase) CreateOfferLetter(o *models.OfferLetter) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = models.OfferDraft
	}
	if o.SalaryUnit == "" {
		o.SalaryUnit = models.SalaryUnitYear
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt

	offers, err := db.loadOffers()
	if err != nil {
		return err
	}
	offers = append(offers, wrapOffer(*o))
	return saveCollection(db, "offer_letters", offers)
}

// GetOfferLetter 按ID获取offer
func (db *LocalDatabase) GetOfferLetter(id string) (*models.OfferLetter, error) {
	offers, err := db.loadOffers()
	if err != nil {
		return nil, err
	}
	for _, s := range offers {
		if s.OfferLetter.ID == id {
			o := s.unwrap()
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

// GetOfferLetterByToken 按签署token获取offer
func (db *LocalDatabase) GetOfferLetterByToken(token string) (*models.OfferLetter, error) {
	offers, err := db.loadOffers()
	if err != nil {
		return nil, err
	}
	for _, s := range offers {
		if s.SignToken == token && token != "" {
			o := s.unwrap()
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

// ListOfferLetters offer列表，最新在前
func (db *LocalDatabase) ListOfferLetters() ([]models.OfferLetter, error) {
	offers, err := db.loadOffers()
	if err != nil {
		return nil, err
	}
	out := make([]models.OfferLetter, 0, len(offers))
	for _, s := range offers {
		out = append(out, s.unwrap())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateOfferLetter 覆盖整条记录
func (db *LocalDatabase) UpdateOfferLetter(o *models.OfferLetter) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	offers, err := db.loadOffers()
	if err != nil {
		return err
	}
	for i := range offers {
		if offers[i].OfferLetter.ID == o.ID {
			o.UpdatedAt = time.Now()
			offers[i] = wrapOffer(*o)
			return saveCollection(db, "offer_letters", offers)
		}
	}
	return ErrNotFound
}

// mutateOffer 在锁内按条件修改一条offer；fn 返回 false 表示条件未命中
func (db *LocalDatabase) mutateOffer(match func(*models.OfferLetter) bool, fn func(*models.OfferLetter) bool, missErr error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	offers, err := db.loadOffers()
	if err != nil {
		return err
	}
	for i := range offers {
		o := offers[i].unwrap()
		if !match(&o) {
			continue
		}
		if !fn(&o) {
			return missErr
		}
		o.UpdatedAt = time.Now()
		offers[i] = wrapOffer(o)
		return saveCollection(db, "offer_letters", offers)
	}
	return ErrNotFound
}

// MarkOfferSent draft -> sent
func (db *LocalDatabase) MarkOfferSent(id string, at time.Time) error {
	return db.mutateOffer(
		func(o *models.OfferLetter) bool { return o.ID == id },
		func(o *models.OfferLetter) bool {
			if o.Status != models.OfferDraft {
				return false
			}
			o.Status = models.OfferSent
			t := at
			o.SentAt = &t
			return true
		},
		ErrConflict,
	)
}

// MarkOfferViewed sent -> viewed；其余状态不改写，不报错
func (db *LocalDatabase) MarkOfferViewed(token string) error {
	return db.mutateOffer(
		func(o *models.OfferLetter) bool { return o.SignToken == token && token != "" },
		func(o *models.OfferLetter) bool {
			if o.Status != models.OfferSent {
				return false
			}
			o.Status = models.OfferViewed
			return true
		},
		nil,
	)
}

// SignOfferLetter 条件写：sent/viewed -> signed
func (db *LocalDatabase) SignOfferLetter(id, signatureName, ip string, at time.Time) error {
	return db.mutateOffer(
		func(o *models.OfferLetter) bool { return o.ID == id },
		func(o *models.OfferLetter) bool {
			if !o.Status.Signable() {
				return false
			}
			o.Status = models.OfferSigned
			t := at
			o.SignedAt = &t
			o.SignatureName = signatureName
			o.SignedIP = ip
			return true
		},
		ErrConflict,
	)
}

// DeclineOfferLetter 条件写：sent/viewed -> declined
func (db *LocalDatabase) DeclineOfferLetter(id string) error {
	return db.mutateOffer(
		func(o *models.OfferLetter) bool { return o.ID == id },
		func(o *models.OfferLetter) bool {
			if !o.Status.Signable() {
				return false
			}
			o.Status = models.OfferDeclined
			return true
		},
		ErrConflict,
	)
}

// WithdrawOfferLetter draft/sent/viewed -> withdrawn
func (db *LocalDatabase) WithdrawOfferLetter(id string) error {
	return db.mutateOffer(
		func(o *models.OfferLetter) bool { return o.ID == id },
		func(o *models.OfferLetter) bool {
			switch o.Status {
			case models.OfferDraft, models.OfferSent, models.OfferViewed:
				o.Status = models.OfferWithdrawn
				return true
			}
			return false
		},
		ErrConflict,
	)
}

// LinkOfferEmployee 签署后回填员工ID
func (db *LocalDatabase) LinkOfferEmployee(offerID, employeeID string) error {
	return db.mutateOffer(
		func(o *models.OfferLetter) bool { return o.ID == offerID },
		func(o *models.OfferLetter) bool {
			id := employeeID
			o.EmployeeID = &id
			return true
		},
		nil,
	)
}

// ================= Employees & onboarding =================

// CreateEmployeeWithTasks 员工与入职清单一起写入。
// 单进程文件存储下互斥锁即提供了原子性。
func (db *LocalDatabase) CreateEmployeeWithTasks(e *models.Employee, tasks []models.OnboardingTask) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = "active"
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt

	employees, err := loadCollection[models.Employee](db, "employees")
	if err != nil {
		return err
	}
	employees = append(employees, *e)
	if err := saveCollection(db, "employees", employees); err != nil {
		return err
	}

	all, err := loadCollection[models.OnboardingTask](db, "onboarding_tasks")
	if err != nil {
		return err
	}
	base := time.Now()
	for i := range tasks {
		t := &tasks[i]
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.EmployeeID = e.ID
		// 保持播种顺序可排序
		t.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		all = append(all, *t)
	}
	return saveCollection(db, "onboarding_tasks", all)
}

// GetEmployee 获取员工
func (db *LocalDatabase) GetEmployee(id string) (*models.Employee, error) {
	employees, err := loadCollection[models.Employee](db, "employees")
	if err != nil {
		return nil, err
	}
	for _, e := range employees {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

// ListEmployees 员工列表，最新在前
func (db *LocalDatabase) ListEmployees() ([]models.Employee, error) {
	employees, err := loadCollection[models.Employee](db, "employees")
	if err != nil {
		return nil, err
	}
	sort.Slice(employees, func(i, j int) bool {
		return employees[i].CreatedAt.After(employees[j].CreatedAt)
	})
	return employees, nil
}

// ListOnboardingTasks 按员工列出入职清单，保持播种顺序
func (db *LocalDatabase) ListOnboardingTasks(employeeID string) ([]models.OnboardingTask, error) {
	all, err := loadCollection[models.OnboardingTask](db, "onboarding_tasks")
	if err != nil {
		return nil, err
	}
	var tasks []models.OnboardingTask
	for _, t := range all {
		if t.EmployeeID == employeeID {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// GetOnboardingTask 获取单条任务
func (db *LocalDatabase) GetOnboardingTask(id string) (*models.OnboardingTask, error) {
	all, err := loadCollection[models.OnboardingTask](db, "onboarding_tasks")
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateOnboardingTaskStatus 更新任务状态；completed 时盖章完成人与时间
func (db *LocalDatabase) UpdateOnboardingTaskStatus(id string, status models.TaskStatus, notes *string, completedBy string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	all, err := loadCollection[models.OnboardingTask](db, "onboarding_tasks")
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID != id {
			continue
		}
		all[i].Status = status
		if notes != nil {
			all[i].Notes = notes
		}
		if status == models.TaskCompleted {
			t := at
			all[i].CompletedAt = &t
			all[i].CompletedBy = completedBy
		} else {
			all[i].CompletedAt = nil
			all[i].CompletedBy = ""
		}
		return saveCollection(db, "onboarding_tasks", all)
	}
	return ErrNotFound
}

// ================= Legal documents =================

// CreateLegalDocument 创建法务文档
func (db *LocalDatabase) CreateLegalDocument(d *models.LegalDocument) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = models.LegalDocPending
	}
	if d.Version == 0 {
		d.Version = 1
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt

	docs, err := loadCollection[models.LegalDocument](db, "legal_documents")
	if err != nil {
		return err
	}
	docs = append(docs, *d)
	return saveCollection(db, "legal_documents", docs)
}

// GetLegalDocument 获取未删除的法务文档
func (db *LocalDatabase) GetLegalDocument(id string) (*models.LegalDocument, error) {
	docs, err := loadCollection[models.LegalDocument](db, "legal_documents")
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ID == id && d.DeletedAt == nil {
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

// ListLegalDocuments 列出未删除的法务文档，最新在前
func (db *LocalDatabase) ListLegalDocuments() ([]models.LegalDocument, error) {
	docs, err := loadCollection[models.LegalDocument](db, "legal_documents")
	if err != nil {
		return nil, err
	}
	var out []models.LegalDocument
	for _, d := range docs {
		if d.DeletedAt == nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (db *LocalDatabase) mutateLegalDoc(id string, fn func(*models.LegalDocument)) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	docs, err := loadCollection[models.LegalDocument](db, "legal_documents")
	if err != nil {
		return err
	}
	for i := range docs {
		if docs[i].ID == id && docs[i].DeletedAt == nil {
			fn(&docs[i])
			docs[i].UpdatedAt = time.Now()
			return saveCollection(db, "legal_documents", docs)
		}
	}
	return ErrNotFound
}

// SetLegalDocumentStatus 人工状态切换；sent/signed 顺带盖时间戳
func (db *LocalDatabase) SetLegalDocumentStatus(id string, status models.LegalDocStatus, at time.Time) error {
	return db.mutateLegalDoc(id, func(d *models.LegalDocument) {
		d.Status = status
		t := at
		switch status {
		case models.LegalDocSent:
			d.SentAt = &t
		case models.LegalDocSigned:
			d.SignedAt = &t
		}
	})
}

// ResetLegalDocument 重新生成：回到 pending 并自增版本
func (db *LocalDatabase) ResetLegalDocument(id string) error {
	return db.mutateLegalDoc(id, func(d *models.LegalDocument) {
		d.Status = models.LegalDocPending
		d.SentAt = nil
		d.SignedAt = nil
		d.Version++
	})
}

// SoftDeleteLegalDocument 软删除
func (db *LocalDatabase) SoftDeleteLegalDocument(id string) error {
	return db.mutateLegalDoc(id, func(d *models.LegalDocument) {
		now := time.Now()
		d.DeletedAt = &now
	})
}

// HealthCheck 健康检查
func (db *LocalDatabase) HealthCheck() error {
	return nil
}

// Close 关闭连接
func (db *LocalDatabase) Close() error {
	return nil
}
