// Package placement 编排 drive 报名与申请流程：主写入在单个事务内完成，
// 通知与群组等副作用在提交后执行，失败只记录日志。
package placement

import (
	"context"
	"log"
	"os"
	"time"

	"placement-portal/internal/apperr"
	"placement-portal/internal/chat"
	"placement-portal/internal/effects"
	"placement-portal/internal/ledger"
	"placement-portal/internal/model"
	"placement-portal/internal/notifier"
	"placement-portal/internal/registry"
	"placement-portal/internal/storage"
)

// Service 是请求层调用的入口。
type Service struct {
	store   *storage.Store
	fanout  *notifier.Fanout
	groups  *chat.Service
	effects *effects.Runner
	logger  *log.Logger
	now     func() time.Time
}

// New 创建 Service，未提供 logger 时输出到标准输出。
func New(store *storage.Store, fanout *notifier.Fanout, groups *chat.Service, runner *effects.Runner, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stdout, "[placement] ", log.LstdFlags)
	}
	return &Service{
		store:   store,
		fanout:  fanout,
		groups:  groups,
		effects: runner,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock 替换时间源，返回同一实例。
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) registry(st *storage.Store) *registry.Registry {
	return registry.New(st, s.logger).WithClock(s.now)
}

func (s *Service) ledger(st *storage.Store) *ledger.Ledger {
	return ledger.New(st).WithClock(s.now)
}

// user 加载调用方，停用账号视为无权限。
func (s *Service) user(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperr.Authorization("missing caller identity")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("user "+id+" not found", err)
		}
		return nil, err
	}
	if !u.Active {
		return nil, apperr.Authorization("account is inactive")
	}
	return u, nil
}

func (s *Service) staff(ctx context.Context, id string) (*model.User, error) {
	u, err := s.user(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Role.IsStaff() {
		return nil, apperr.Authorization("only companies, TPOs and admins can perform this action")
	}
	return u, nil
}

func (s *Service) runEffects(ctx context.Context, tasks ...effects.Task) {
	if s.effects == nil || len(tasks) == 0 {
		return
	}
	s.effects.Run(ctx, tasks...)
}

func (s *Service) notifyTask(ev notifier.Event) effects.Task {
	return effects.Task{
		Name: "notify " + string(ev.Type),
		Run: func(ctx context.Context) error {
			if s.fanout == nil {
				return nil
			}
			s.fanout.Notify(ctx, ev)
			return nil
		},
	}
}

// Notifications 返回用户未过期的通知。
func (s *Service) Notifications(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, u.ID, unreadOnly, s.now().UTC())
}

// MarkNotificationRead 将本人的一条通知标记为已读。
func (s *Service) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	u, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	return s.store.MarkNotificationRead(ctx, notificationID, u.ID, s.now().UTC())
}
