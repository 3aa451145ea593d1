package placement

import (
	"context"

	"placement-portal/internal/apperr"
	"placement-portal/internal/effects"
	"placement-portal/internal/eligibility"
	"placement-portal/internal/model"
	"placement-portal/internal/notifier"
	"placement-portal/internal/registry"
	"placement-portal/internal/storage"
)

// CreateDrive 创建 drive，提交后建群；active drive 同时通知学生与管理人员。
func (s *Service) CreateDrive(ctx context.Context, req registry.CreateRequest, creatorID string) (*model.Drive, error) {
	creator, err := s.user(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	drive, err := s.registry(s.store).Create(ctx, req, *creator)
	if err != nil {
		return nil, err
	}

	tasks := []effects.Task{s.groupsTask(drive, creator.ID)}
	if drive.Status == model.DriveActive {
		tasks = append(tasks, s.notifyTask(notifier.Event{Type: notifier.EventNewDrive, Drive: drive}))
	}
	s.runEffects(ctx, tasks...)
	return drive, nil
}

// ChangeDriveStatus 按状态表变更 drive 状态，发布时补发新 drive 通知。
func (s *Service) ChangeDriveStatus(ctx context.Context, driveID string, to model.DriveStatus, actorID string) (*model.Drive, error) {
	actor, err := s.staff(ctx, actorID)
	if err != nil {
		return nil, err
	}
	before, err := s.store.GetDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	drive, err := s.registry(s.store).ChangeStatus(ctx, driveID, to, *actor)
	if err != nil {
		return nil, err
	}
	if before.Status != model.DriveActive && drive.Status == model.DriveActive {
		s.runEffects(ctx,
			s.groupsTask(drive, actor.ID),
			s.notifyTask(notifier.Event{Type: notifier.EventNewDrive, Drive: drive}),
		)
	}
	return drive, nil
}

// DeleteDrive 删除 drive，级联删除申请、名册与群组。
func (s *Service) DeleteDrive(ctx context.Context, driveID, actorID string) error {
	actor, err := s.staff(ctx, actorID)
	if err != nil {
		return err
	}
	return s.registry(s.store).Delete(ctx, driveID, *actor)
}

// GetDrive 返回 drive 及名册。
func (s *Service) GetDrive(ctx context.Context, driveID string) (*model.Drive, error) {
	return s.store.GetDrive(ctx, driveID)
}

// ListDrives 返回满足条件的 drive。
func (s *Service) ListDrives(ctx context.Context, q storage.DriveQuery) ([]model.Drive, error) {
	return s.registry(s.store).List(ctx, q)
}

// RecountDrive 以名册为准重算 drive 计数。
func (s *Service) RecountDrive(ctx context.Context, driveID string) (storage.CounterDelta, error) {
	return s.registry(s.store).Recount(ctx, driveID)
}

// GetEligibleDrives 返回学生当前可以报名的 active drive。
func (s *Service) GetEligibleDrives(ctx context.Context, studentID string) ([]model.Drive, error) {
	u, err := s.user(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleStudent {
		return nil, apperr.Authorization("only students have eligible drives")
	}
	drives, err := s.store.ListDrives(ctx, storage.DriveQuery{Statuses: []model.DriveStatus{model.DriveActive}})
	if err != nil {
		return nil, err
	}
	apps, err := s.store.ListApplications(ctx, storage.ApplicationQuery{StudentID: u.ID})
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(apps))
	for _, a := range apps {
		applied[a.DriveID] = true
	}

	student := eligibility.FromUser(*u)
	now := s.now().UTC()
	out := make([]model.Drive, 0, len(drives))
	for _, d := range drives {
		state := eligibility.StateOf(d)
		if applied[d.ID] {
			// 列表不加载名册，用申请记录代替本人的名册行
			state.Applicants = []model.Applicant{{DriveID: d.ID, StudentID: u.ID}}
		}
		if eligibility.IsEligible(d.Eligibility, student, state, now) {
			out = append(out, d)
		}
	}
	return out, nil
}

// CheckEligibility 返回学生对某个 drive 的完整资格判断。
func (s *Service) CheckEligibility(ctx context.Context, driveID, studentID string) (eligibility.Result, error) {
	u, err := s.user(ctx, studentID)
	if err != nil {
		return eligibility.Result{}, err
	}
	d, err := s.store.GetDrive(ctx, driveID)
	if err != nil {
		return eligibility.Result{}, err
	}
	return eligibility.Evaluate(d.Eligibility, eligibility.FromUser(*u), eligibility.StateOf(*d), s.now().UTC()), nil
}

// ListEligibleStudents 返回满足 drive 条件且尚未报名的学生。
func (s *Service) ListEligibleStudents(ctx context.Context, driveID, actorID string) ([]model.User, error) {
	actor, err := s.staff(ctx, actorID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDrive(ctx, driveID)
	if err != nil {
		return nil, err
	}
	if !registry.CanManage(*d, *actor) {
		return nil, apperr.Authorization("not allowed to view students for this drive")
	}
	students, err := s.store.ListUsers(ctx, storage.UserQuery{
		Roles:        []model.Role{model.RoleStudent},
		ActiveOnly:   true,
		ApprovedOnly: true,
	})
	if err != nil {
		return nil, err
	}

	state := eligibility.StateOf(*d)
	now := s.now().UTC()
	out := make([]model.User, 0, len(students))
	for _, u := range students {
		if eligibility.IsEligible(d.Eligibility, eligibility.FromUser(u), state, now) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Service) groupsTask(drive *model.Drive, creatorID string) effects.Task {
	return effects.Task{
		Name: "create chat groups",
		Run: func(ctx context.Context) error {
			if s.groups == nil {
				return nil
			}
			return s.groups.CreateGroupsForDrive(ctx, drive, creatorID)
		},
	}
}
