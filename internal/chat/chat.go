// Package chat 维护每个 drive 按专业划分的交流群及其成员。
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"placement-portal/internal/apperr"
	"placement-portal/internal/eligibility"
	"placement-portal/internal/model"

	"github.com/google/uuid"
)

// Store 定义群组持久化接口。
type Store interface {
	CreateChatGroup(ctx context.Context, g *model.ChatGroup) error
	FindChatGroup(ctx context.Context, driveID, department string) (*model.ChatGroup, error)
	ListChatGroups(ctx context.Context, driveID string) ([]model.ChatGroup, error)
	AddChatMember(ctx context.Context, m *model.ChatMember) (bool, error)
}

// Service 负责建群与入群。
type Service struct {
	store  Store
	logger *log.Logger
	now    func() time.Time
}

// New 创建 Service，未提供 logger 时输出到标准输出。
func New(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stdout, "[chat] ", log.LstdFlags)
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithClock 替换时间源，返回同一实例。
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateGroupsForDrive 为 drive 允许的每个专业建一个群，不限专业时只建 All 群。
// 已存在的群会被跳过，创建者以幂等方式加入每个群。
func (s *Service) CreateGroupsForDrive(ctx context.Context, drive *model.Drive, creatorID string) error {
	branches := eligibility.NormalizeBranches(drive.Eligibility.AllowedBranches)
	if len(branches) == 0 || containsAll(branches) {
		branches = []string{model.BranchAll}
	}

	for _, branch := range branches {
		g := &model.ChatGroup{
			ID:         uuid.NewString(),
			DriveID:    drive.ID,
			Department: branch,
			Name:       groupName(drive, branch),
			CreatedBy:  creatorID,
			CreatedAt:  s.now().UTC(),
		}
		if err := s.store.CreateChatGroup(ctx, g); err != nil {
			if !errors.Is(err, apperr.ErrDuplicate) {
				return fmt.Errorf("create chat group %s: %w", branch, err)
			}
			existing, err := s.store.FindChatGroup(ctx, drive.ID, branch)
			if err != nil {
				return fmt.Errorf("load chat group %s: %w", branch, err)
			}
			g = existing
		}
		if creatorID == "" {
			continue
		}
		if _, err := s.join(ctx, g.ID, creatorID); err != nil {
			return err
		}
	}
	return nil
}

// AddStudentToGroup 将学生加入本专业群，没有则退回 All 群；两者都不存在时返回 nil。
func (s *Service) AddStudentToGroup(ctx context.Context, driveID, studentID, branch string) (*model.ChatGroup, error) {
	candidates := []string{model.BranchAll}
	if code := eligibility.NormalizeBranch(branch); code != "" && code != model.BranchAll {
		candidates = []string{code, model.BranchAll}
	}

	for _, dept := range candidates {
		g, err := s.store.FindChatGroup(ctx, driveID, dept)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("find chat group: %w", err)
		}
		added, err := s.join(ctx, g.ID, studentID)
		if err != nil {
			return nil, err
		}
		if added {
			s.logger.Printf("student %s joined group %s", studentID, g.Name)
		}
		return g, nil
	}
	return nil, nil
}

// Groups 返回 drive 下的所有群组。
func (s *Service) Groups(ctx context.Context, driveID string) ([]model.ChatGroup, error) {
	return s.store.ListChatGroups(ctx, driveID)
}

func (s *Service) join(ctx context.Context, groupID, userID string) (bool, error) {
	now := s.now().UTC()
	added, err := s.store.AddChatMember(ctx, &model.ChatMember{
		GroupID:    groupID,
		UserID:     userID,
		JoinedAt:   now,
		LastReadAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("join chat group %s: %w", groupID, err)
	}
	return added, nil
}

func groupName(d *model.Drive, branch string) string {
	if branch == model.BranchAll {
		return d.CompanyName + " - All Branches"
	}
	return d.CompanyName + " - " + branch
}

func containsAll(branches []string) bool {
	for _, b := range branches {
		if b == model.BranchAll {
			return true
		}
	}
	return false
}
