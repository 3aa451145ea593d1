package ledger

import (
	"context"
	"fmt"
	"time"

	"placement-portal/internal/apperr"
	"placement-portal/internal/model"
	"placement-portal/internal/sanitize"
	"placement-portal/internal/storage"
	"placement-portal/internal/validation"

	"github.com/google/uuid"
)

// Store 定义申请持久化接口。
type Store interface {
	CreateApplication(ctx context.Context, app *model.Application) error
	GetApplication(ctx context.Context, id string) (*model.Application, error)
	FindApplication(ctx context.Context, studentID, driveID string) (*model.Application, error)
	ListApplications(ctx context.Context, q storage.ApplicationQuery) ([]model.Application, error)
	SaveApplicationState(ctx context.Context, app *model.Application, expected model.ApplicationStatus) (bool, error)
}

// template 是新申请的固定时间线。
var template = []string{
	model.StepApplied,
	model.StepResumeScreening,
	model.StepTechnical,
	model.StepHR,
	model.StepFinalResult,
}

// actor 区分学生与处理方（公司、TPO、管理员）。
type actor int

const (
	actorStudent actor = iota
	actorStaff
)

// transitions 状态机：actor -> 当前状态 -> 允许的目标状态。
var transitions = map[actor]map[model.ApplicationStatus][]model.ApplicationStatus{
	actorStudent: {
		model.StatusPending: {model.StatusWithdrawn},
	},
	actorStaff: {
		model.StatusApplied:     {model.StatusShortlisted, model.StatusRejected},
		model.StatusShortlisted: {model.StatusSelected, model.StatusRejected},
	},
}

// Ledger 管理申请记录与状态机。
type Ledger struct {
	store Store
	now   func() time.Time
}

// New 创建 Ledger。
func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// WithClock 替换时间源，返回同一实例。
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// SeedTimeline 生成只有 Applied 已完成的初始时间线。
func SeedTimeline(at time.Time) model.Timeline {
	t := make(model.Timeline, 0, len(template))
	for _, step := range template {
		t = append(t, model.TimelineStep{Step: step})
	}
	model.CompleteStep(t, model.StepApplied, at)
	return t
}

// CanTransition 判断角色能否将申请从 from 改为 to。
func CanTransition(role model.Role, from, to model.ApplicationStatus) bool {
	a, ok := actorOf(role)
	if !ok {
		return false
	}
	for _, next := range transitions[a][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Create 为学生创建 applied 状态的申请；(学生, drive) 已存在时返回 Duplicate。
func (l *Ledger) Create(ctx context.Context, drive model.Drive, studentID string) (*model.Application, error) {
	now := l.now().UTC()
	app := &model.Application{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		DriveID:     drive.ID,
		CompanyID:   drive.CompanyID,
		CompanyName: drive.CompanyName,
		Status:      model.StatusApplied,
		Timeline:    SeedTimeline(now),
		AppliedAt:   now,
		LastUpdated: now,
	}
	if err := l.store.CreateApplication(ctx, app); err != nil {
		if apperr.KindOf(err) == apperr.KindDuplicate {
			return nil, apperr.Duplicate("student has already applied to this drive", err)
		}
		return nil, err
	}
	return app, nil
}

// Get 根据 ID 获取申请。
func (l *Ledger) Get(ctx context.Context, id string) (*model.Application, error) {
	return l.store.GetApplication(ctx, id)
}

// List 按条件列出申请。
func (l *Ledger) List(ctx context.Context, q storage.ApplicationQuery) ([]model.Application, error) {
	return l.store.ListApplications(ctx, q)
}

// Transition 按状态机修改申请状态，并在同一次写入中更新时间线。
func (l *Ledger) Transition(ctx context.Context, app model.Application, to model.ApplicationStatus, role model.Role) (*model.Application, error) {
	if !to.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown application status %q", to))
	}
	if _, ok := actorOf(role); !ok {
		return nil, apperr.Authorization("role cannot change application status")
	}
	from := app.Status
	if !CanTransition(role, from, to) {
		return nil, apperr.Validation(fmt.Sprintf("invalid status transition from %s to %s", from, to))
	}

	now := l.now().UTC()
	next := app
	next.Timeline = append(model.Timeline(nil), app.Timeline...)
	next.Status = to
	next.LastUpdated = now
	switch to {
	case model.StatusShortlisted:
		ensureStep(&next.Timeline, model.StepAptitude, model.StepTechnical)
		model.CompleteStep(next.Timeline, model.StepResumeScreening, now)
		model.CompleteStep(next.Timeline, model.StepAptitude, now)
	case model.StatusSelected, model.StatusRejected:
		ensureStep(&next.Timeline, model.StepFinalResult, "")
		model.CompleteStep(next.Timeline, model.StepFinalResult, now)
	}

	if err := l.save(ctx, &next, from); err != nil {
		return nil, err
	}
	return &next, nil
}

// Withdraw 学生撤回自己的申请，仅 pending 状态可撤回。
func (l *Ledger) Withdraw(ctx context.Context, app model.Application, studentID string) (*model.Application, error) {
	if app.StudentID != studentID {
		return nil, apperr.Authorization("only the applicant can withdraw this application")
	}
	if app.Status != model.StatusPending {
		return nil, apperr.Validation(fmt.Sprintf("cannot withdraw an application in %s status", app.Status))
	}
	return l.Transition(ctx, app, model.StatusWithdrawn, model.RoleStudent)
}

// Schedule 面试安排请求。
type Schedule struct {
	At       time.Time `json:"at" validate:"required"`
	Mode     string    `json:"mode" validate:"omitempty,oneof=online onsite phone"`
	Location string    `json:"location" validate:"max=300"`
	Round    string    `json:"round" validate:"max=100"`
	Notes    string    `json:"notes" validate:"max=2000"`
}

// ScheduleInterview 为已入围的申请安排面试，并在对应时间线步骤记录安排。
func (l *Ledger) ScheduleInterview(ctx context.Context, app model.Application, s Schedule) (*model.Application, error) {
	if err := validation.Struct(s); err != nil {
		return nil, err
	}
	if app.Status != model.StatusShortlisted {
		return nil, apperr.Validation(fmt.Sprintf("interviews can only be scheduled for shortlisted applications, got %s", app.Status))
	}
	now := l.now().UTC()
	if !s.At.After(now) {
		return nil, apperr.Validation("interview time must be in the future")
	}
	round := s.Round
	if round == "" {
		round = model.StepTechnical
	}
	at := s.At.UTC()

	next := app
	next.Timeline = append(model.Timeline(nil), app.Timeline...)
	next.Interview = model.InterviewSchedule{
		At:       &at,
		Mode:     s.Mode,
		Location: s.Location,
		Round:    round,
		Notes:    sanitize.PlainText(s.Notes),
	}
	next.LastUpdated = now
	ensureStep(&next.Timeline, round, model.StepHR)
	i := model.StepIndex(next.Timeline, round)
	next.Timeline[i].Notes = interviewNote(next.Interview)

	if err := l.save(ctx, &next, app.Status); err != nil {
		return nil, err
	}
	return &next, nil
}

func (l *Ledger) save(ctx context.Context, app *model.Application, expected model.ApplicationStatus) error {
	ok, err := l.store.SaveApplicationState(ctx, app, expected)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := l.store.GetApplication(ctx, app.ID); err != nil {
			return err
		}
		return apperr.Validation("application status changed concurrently, retry")
	}
	return nil
}

// ensureStep 在时间线缺少 step 时将其插入到 before 之前（before 为空或不存在时追加到末尾）。
func ensureStep(t *model.Timeline, step, before string) {
	if model.StepIndex(*t, step) >= 0 {
		return
	}
	entry := model.TimelineStep{Step: step}
	i := -1
	if before != "" {
		i = model.StepIndex(*t, before)
	}
	if i < 0 {
		*t = append(*t, entry)
		return
	}
	*t = append(*t, model.TimelineStep{})
	copy((*t)[i+1:], (*t)[i:])
	(*t)[i] = entry
}

func interviewNote(s model.InterviewSchedule) string {
	note := "Scheduled for " + s.At.Format("2006-01-02 15:04 MST")
	if s.Mode != "" {
		note += " (" + s.Mode + ")"
	}
	if s.Location != "" {
		note += " at " + s.Location
	}
	return note
}

func actorOf(role model.Role) (actor, bool) {
	switch {
	case role == model.RoleStudent:
		return actorStudent, true
	case role.IsStaff():
		return actorStaff, true
	default:
		return 0, false
	}
}
