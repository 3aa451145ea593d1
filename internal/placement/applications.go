package placement

import (
	"context"
	"time"

	"placement-portal/internal/apperr"
	"placement-portal/internal/effects"
	"placement-portal/internal/eligibility"
	"placement-portal/internal/ledger"
	"placement-portal/internal/model"
	"placement-portal/internal/notifier"
	"placement-portal/internal/registry"
	"placement-portal/internal/storage"
)

// ApplyToDrive 校验资格后在同一事务内创建申请并追加名册，提交后通知学生并加入群组。
func (s *Service) ApplyToDrive(ctx context.Context, driveID, studentID string) (*model.Application, error) {
	student, err := s.user(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Role != model.RoleStudent {
		return nil, apperr.Authorization("only students can apply to drives")
	}

	var (
		app   *model.Application
		drive *model.Drive
	)
	err = s.store.Transaction(ctx, func(tx *storage.Store) error {
		d, err := tx.GetDrive(ctx, driveID)
		if err != nil {
			return err
		}
		res := eligibility.Evaluate(d.Eligibility, eligibility.FromUser(*student), eligibility.StateOf(*d), s.now().UTC())
		if !res.Eligible {
			return apperr.Ineligible(res.Reasons)
		}
		created, err := s.ledger(tx).Create(ctx, *d, student.ID)
		if err != nil {
			return err
		}
		if _, err := s.registry(tx).AddApplicant(ctx, d.ID, student.ID, created.AppliedAt); err != nil {
			return err
		}
		app, drive = created, d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Printf("application created: %s student=%s drive=%s", app.ID, student.ID, drive.ID)

	s.runEffects(ctx,
		s.notifyTask(notifier.Event{Type: notifier.EventApplicationSubmitted, Drive: drive, Application: app}),
		effects.Task{
			Name: "enroll chat group",
			Run: func(ctx context.Context) error {
				if s.groups == nil {
					return nil
				}
				_, err := s.groups.AddStudentToGroup(ctx, drive.ID, student.ID, student.Department)
				return err
			},
		},
	)
	return app, nil
}

// UpdateApplicationStatus 由公司、TPO 或管理员推进申请状态，名册与计数在同一事务中同步。
func (s *Service) UpdateApplicationStatus(ctx context.Context, applicationID string, to model.ApplicationStatus, actorID string) (*model.Application, error) {
	actor, err := s.staff(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var (
		updated *model.Application
		drive   *model.Drive
	)
	err = s.store.Transaction(ctx, func(tx *storage.Store) error {
		app, d, err := s.loadManaged(ctx, tx, applicationID, *actor)
		if err != nil {
			return err
		}
		next, err := s.ledger(tx).Transition(ctx, *app, to, actor.Role)
		if err != nil {
			return err
		}
		if rs, ok := to.RosterStatus(); ok {
			if _, err := s.registry(tx).UpdateApplicantStatus(ctx, d.ID, app.StudentID, rs); err != nil {
				return err
			}
		}
		updated, drive = next, d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Printf("application status: %s -> %s by %s", updated.ID, updated.Status, actor.ID)

	if ev, ok := notifier.EventForStatus(updated.Status); ok {
		s.runEffects(ctx, s.notifyTask(notifier.Event{Type: ev, Drive: drive, Application: updated}))
	}
	return updated, nil
}

// WithdrawApplication 学生撤回本人申请。
func (s *Service) WithdrawApplication(ctx context.Context, applicationID, studentID string) (*model.Application, error) {
	student, err := s.user(ctx, studentID)
	if err != nil {
		return nil, err
	}
	var updated *model.Application
	err = s.store.Transaction(ctx, func(tx *storage.Store) error {
		l := s.ledger(tx)
		app, err := l.Get(ctx, applicationID)
		if err != nil {
			return err
		}
		updated, err = l.Withdraw(ctx, *app, student.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Printf("application withdrawn: %s by %s", updated.ID, student.ID)
	return updated, nil
}

// ScheduleInterview 为已入围申请安排面试并通知学生。
func (s *Service) ScheduleInterview(ctx context.Context, applicationID string, schedule ledger.Schedule, actorID string) (*model.Application, error) {
	actor, err := s.staff(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var (
		updated *model.Application
		drive   *model.Drive
	)
	err = s.store.Transaction(ctx, func(tx *storage.Store) error {
		app, d, err := s.loadManaged(ctx, tx, applicationID, *actor)
		if err != nil {
			return err
		}
		updated, err = s.ledger(tx).ScheduleInterview(ctx, *app, schedule)
		drive = d
		return err
	})
	if err != nil {
		return nil, err
	}

	extra := map[string]any{"round": updated.Interview.Round}
	if updated.Interview.Mode != "" {
		extra["mode"] = updated.Interview.Mode
	}
	if updated.Interview.At != nil {
		extra["at"] = updated.Interview.At.Format(time.RFC3339)
	}
	s.runEffects(ctx, s.notifyTask(notifier.Event{
		Type:        notifier.EventInterviewScheduled,
		Drive:       drive,
		Application: updated,
		Extra:       extra,
	}))
	return updated, nil
}

// ListApplications 学生只能看到自己的申请；公司需指定自己管理的 drive。
func (s *Service) ListApplications(ctx context.Context, q storage.ApplicationQuery, actorID string) ([]model.Application, error) {
	actor, err := s.user(ctx, actorID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case model.RoleStudent:
		q.StudentID = actor.ID
	case model.RoleCompany:
		if q.DriveID == "" {
			return nil, apperr.Validation("drive_id is required")
		}
		d, err := s.store.GetDrive(ctx, q.DriveID)
		if err != nil {
			return nil, err
		}
		if !registry.CanManage(*d, *actor) {
			return nil, apperr.Authorization("not allowed to view applications for this drive")
		}
	}
	return s.ledger(s.store).List(ctx, q)
}

func (s *Service) loadManaged(ctx context.Context, tx *storage.Store, applicationID string, actor model.User) (*model.Application, *model.Drive, error) {
	app, err := tx.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	d, err := tx.GetDrive(ctx, app.DriveID)
	if err != nil {
		return nil, nil, err
	}
	if !registry.CanManage(*d, actor) {
		return nil, nil, apperr.Authorization("not allowed to manage applications for this drive")
	}
	return app, d, nil
}
