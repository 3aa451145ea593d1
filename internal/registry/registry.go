package registry

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"placement-portal/internal/apperr"
	"placement-portal/internal/eligibility"
	"placement-portal/internal/model"
	"placement-portal/internal/sanitize"
	"placement-portal/internal/storage"
	"placement-portal/internal/validation"

	"github.com/google/uuid"
)

// Store 定义 drive 持久化接口。
type Store interface {
	CreateDrive(ctx context.Context, d *model.Drive) error
	GetDrive(ctx context.Context, id string) (*model.Drive, error)
	ListDrives(ctx context.Context, q storage.DriveQuery) ([]model.Drive, error)
	FindActiveDrive(ctx context.Context, companyName string) (*model.Drive, error)
	UpdateDriveStatus(ctx context.Context, id string, from []model.DriveStatus, to model.DriveStatus) (bool, error)
	DeleteDrive(ctx context.Context, id string) error
	AddApplicant(ctx context.Context, a *model.Applicant) error
	GetApplicant(ctx context.Context, driveID, studentID string) (*model.Applicant, error)
	SetApplicantStatus(ctx context.Context, driveID, studentID string, from, to model.ApplicantStatus) (bool, error)
	AdjustDriveCounters(ctx context.Context, id string, delta storage.CounterDelta) error
	RecountDriveCounters(ctx context.Context, id string) (storage.CounterDelta, error)
}

// CreateRequest 创建 drive 的请求，专业可以是展示名或代码。
type CreateRequest struct {
	CompanyName     string            `json:"company_name" validate:"required,max=200"`
	CompanyID       string            `json:"company_id"`
	Position        string            `json:"position" validate:"required,max=200"`
	Description     string            `json:"description"`
	Location        string            `json:"location"`
	Package         string            `json:"package"`
	MinCGPA         float64           `json:"min_cgpa" validate:"gte=0,lte=10"`
	AllowedBranches []string          `json:"allowed_branches"`
	MaxBacklogs     int               `json:"max_backlogs" validate:"gte=0"`
	MinYear         int               `json:"min_year" validate:"omitempty,gte=1,lte=4"`
	Deadline        time.Time         `json:"deadline" validate:"required"`
	Status          model.DriveStatus `json:"status" validate:"omitempty,oneof=draft active"`
}

// Registry 管理 drive 的创建、状态流转与名册。
type Registry struct {
	store  Store
	logger *log.Logger
	now    func() time.Time
}

// New 创建 Registry，未提供 logger 时输出到标准输出。
func New(store Store, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(os.Stdout, "[registry] ", log.LstdFlags)
	}
	return &Registry{store: store, logger: logger, now: time.Now}
}

// WithClock 替换时间源，返回同一实例。
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create 校验并创建 drive；同名公司已有 active drive 时返回 Duplicate。
func (r *Registry) Create(ctx context.Context, req CreateRequest, creator model.User) (*model.Drive, error) {
	if !creator.Role.IsStaff() {
		return nil, apperr.Authorization("only companies, TPOs and admins can create drives")
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Position = strings.TrimSpace(req.Position)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	if !req.Deadline.After(now) {
		return nil, apperr.Validation("deadline must be in the future")
	}

	status := req.Status
	if status == "" {
		status = model.DriveActive
	}
	minYear := req.MinYear
	if minYear == 0 {
		minYear = 1
	}
	branches := eligibility.NormalizeBranches(req.AllowedBranches)
	if len(branches) == 0 {
		branches = []string{model.BranchAll}
	}
	companyID := req.CompanyID
	if creator.Role == model.RoleCompany {
		companyID = creator.ID
	}

	d := &model.Drive{
		ID:          uuid.NewString(),
		CompanyName: req.CompanyName,
		CompanyID:   companyID,
		Position:    req.Position,
		Description: sanitize.PlainText(req.Description),
		Location:    strings.TrimSpace(req.Location),
		Package:     strings.TrimSpace(req.Package),
		Eligibility: model.Eligibility{
			MinCGPA:         req.MinCGPA,
			AllowedBranches: branches,
			MaxBacklogs:     req.MaxBacklogs,
			MinYear:         minYear,
		},
		Status:    status,
		Deadline:  req.Deadline.UTC(),
		CreatedBy: creator.ID,
	}

	if status == model.DriveActive {
		if err := r.ensureNoActiveDrive(ctx, d.CompanyName); err != nil {
			return nil, err
		}
	}
	if err := r.store.CreateDrive(ctx, d); err != nil {
		if apperr.KindOf(err) == apperr.KindDuplicate {
			return nil, duplicateActive(d.CompanyName, err)
		}
		return nil, err
	}
	r.logger.Printf("drive created: %s %s (%s) by %s", d.ID, d.CompanyName, d.Status, creator.ID)
	return d, nil
}

// Get 返回 drive 及名册。
func (r *Registry) Get(ctx context.Context, id string) (*model.Drive, error) {
	return r.store.GetDrive(ctx, id)
}

// List 返回满足条件的 drive。
func (r *Registry) List(ctx context.Context, q storage.DriveQuery) ([]model.Drive, error) {
	return r.store.ListDrives(ctx, q)
}

// transitions 记录每个目标状态允许的来源状态。
var transitions = map[model.DriveStatus][]model.DriveStatus{
	model.DriveActive:    {model.DriveDraft},
	model.DriveClosed:    {model.DriveActive},
	model.DriveCancelled: {model.DriveDraft, model.DriveActive},
}

// Publish 将草稿发布为 active。
func (r *Registry) Publish(ctx context.Context, id string, actor model.User) (*model.Drive, error) {
	return r.ChangeStatus(ctx, id, model.DriveActive, actor)
}

// Close 结束 active drive。
func (r *Registry) Close(ctx context.Context, id string, actor model.User) (*model.Drive, error) {
	return r.ChangeStatus(ctx, id, model.DriveClosed, actor)
}

// Cancel 取消草稿或 active drive。
func (r *Registry) Cancel(ctx context.Context, id string, actor model.User) (*model.Drive, error) {
	return r.ChangeStatus(ctx, id, model.DriveCancelled, actor)
}

// ChangeStatus 按状态表流转 drive 状态。
func (r *Registry) ChangeStatus(ctx context.Context, id string, to model.DriveStatus, actor model.User) (*model.Drive, error) {
	from, ok := transitions[to]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unsupported drive status %q", to))
	}
	d, err := r.store.GetDrive(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManage(*d, actor) {
		return nil, apperr.Authorization("not allowed to manage this drive")
	}
	if d.Status == to {
		return d, nil
	}
	if !containsStatus(from, d.Status) {
		return nil, apperr.Validation(fmt.Sprintf("cannot move drive from %s to %s", d.Status, to))
	}
	if to == model.DriveActive {
		if err := r.ensureNoActiveDrive(ctx, d.CompanyName); err != nil {
			return nil, err
		}
	}

	updated, err := r.store.UpdateDriveStatus(ctx, id, []model.DriveStatus{d.Status}, to)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindDuplicate {
			return nil, duplicateActive(d.CompanyName, err)
		}
		return nil, err
	}
	if !updated {
		return nil, apperr.Validation("drive status changed concurrently, retry")
	}
	r.logger.Printf("drive status: %s %s -> %s by %s", id, d.Status, to, actor.ID)
	d.Status = to
	return d, nil
}

// Delete 删除 drive 并级联删除申请与群组。
func (r *Registry) Delete(ctx context.Context, id string, actor model.User) error {
	d, err := r.store.GetDrive(ctx, id)
	if err != nil {
		return err
	}
	if !CanManage(*d, actor) {
		return apperr.Authorization("not allowed to delete this drive")
	}
	if err := r.store.DeleteDrive(ctx, id); err != nil {
		return err
	}
	r.logger.Printf("drive deleted: %s by %s", id, actor.ID)
	return nil
}

// AddApplicant 在名册末尾追加 pending 记录，重复报名返回 Duplicate。
func (r *Registry) AddApplicant(ctx context.Context, driveID, studentID string, at time.Time) (*model.Applicant, error) {
	a := &model.Applicant{
		DriveID:   driveID,
		StudentID: studentID,
		AppliedAt: at.UTC(),
		Status:    model.ApplicantPending,
	}
	if err := r.store.AddApplicant(ctx, a); err != nil {
		if apperr.KindOf(err) == apperr.KindDuplicate {
			return nil, apperr.Duplicate("student has already applied to this drive", err)
		}
		return nil, err
	}
	return a, nil
}

// UpdateApplicantStatus 修改名册状态并按差值原子调整计数，返回原状态。
func (r *Registry) UpdateApplicantStatus(ctx context.Context, driveID, studentID string, to model.ApplicantStatus) (model.ApplicantStatus, error) {
	current, err := r.store.GetApplicant(ctx, driveID, studentID)
	if err != nil {
		return "", err
	}
	from := current.Status
	if from == to {
		return from, nil
	}
	ok, err := r.store.SetApplicantStatus(ctx, driveID, studentID, from, to)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.Validation("applicant status changed concurrently, retry")
	}
	if err := r.store.AdjustDriveCounters(ctx, driveID, CounterDelta(from, to)); err != nil {
		return "", err
	}
	return from, nil
}

// Recount 以名册为准重算计数，用于修复历史数据。
func (r *Registry) Recount(ctx context.Context, driveID string) (storage.CounterDelta, error) {
	counts, err := r.store.RecountDriveCounters(ctx, driveID)
	if err != nil {
		return storage.CounterDelta{}, err
	}
	r.logger.Printf("drive recount: %s shortlisted=%d selected=%d", driveID, counts.Shortlisted, counts.Selected)
	return counts, nil
}

// CounterDelta 计算名册状态从 from 变为 to 时两个计数的增量。
func CounterDelta(from, to model.ApplicantStatus) storage.CounterDelta {
	var d storage.CounterDelta
	switch from {
	case model.ApplicantShortlisted:
		d.Shortlisted--
	case model.ApplicantSelected:
		d.Selected--
	}
	switch to {
	case model.ApplicantShortlisted:
		d.Shortlisted++
	case model.ApplicantSelected:
		d.Selected++
	}
	return d
}

// CanManage 判断用户能否管理 drive：TPO 与管理员不限，公司仅限自己创建或归属自己的 drive。
func CanManage(d model.Drive, actor model.User) bool {
	switch actor.Role {
	case model.RoleTPO, model.RoleAdmin:
		return true
	case model.RoleCompany:
		return actor.ID != "" && (d.CreatedBy == actor.ID || d.CompanyID == actor.ID)
	default:
		return false
	}
}

func (r *Registry) ensureNoActiveDrive(ctx context.Context, companyName string) error {
	existing, err := r.store.FindActiveDrive(ctx, companyName)
	if err != nil {
		return err
	}
	if existing != nil {
		return duplicateActive(companyName, nil)
	}
	return nil
}

func duplicateActive(companyName string, err error) error {
	return apperr.Duplicate(fmt.Sprintf("company %q already has an active drive", companyName), err)
}

func containsStatus(list []model.DriveStatus, s model.DriveStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
