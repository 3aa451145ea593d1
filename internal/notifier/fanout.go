package notifier

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"placement-portal/internal/model"
	"placement-portal/internal/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventType 触发通知的业务事件。
type EventType string

const (
	EventNewDrive             EventType = "new_drive"
	EventApplicationSubmitted EventType = "application_submitted"
	EventShortlisted          EventType = "application_shortlisted"
	EventSelected             EventType = "application_selected"
	EventRejected             EventType = "application_rejected"
	EventInterviewScheduled   EventType = "interview_scheduled"
)

// EventForStatus 返回申请进入某状态时对应的通知事件。
func EventForStatus(status model.ApplicationStatus) (EventType, bool) {
	switch status {
	case model.StatusShortlisted:
		return EventShortlisted, true
	case model.StatusSelected:
		return EventSelected, true
	case model.StatusRejected:
		return EventRejected, true
	default:
		return "", false
	}
}

// Config 通知配置。
type Config struct {
	ExpiryDays int         `yaml:"expiry_days" json:"expiry_days"`
	BatchSize  int         `yaml:"batch_size" json:"batch_size"`
	Email      EmailConfig `yaml:"email" json:"email"`
}

// Store 定义通知写入与收件人查询接口。
type Store interface {
	CreateNotifications(ctx context.Context, items []model.Notification, batchSize int) error
	ListUsers(ctx context.Context, q storage.UserQuery) ([]model.User, error)
	GetDrive(ctx context.Context, id string) (*model.Drive, error)
	GetApplication(ctx context.Context, id string) (*model.Application, error)
}

// Delivery 在通知落库后投递到外部渠道。
type Delivery interface {
	Deliver(ctx context.Context, items []model.Notification) error
}

// Event 是一次通知请求，Drive/Application 按事件类型提供。
type Event struct {
	Type        EventType
	Drive       *model.Drive
	Application *model.Application
	Extra       map[string]any
}

// Fanout 将业务事件展开为每个收件人一条通知记录。
type Fanout struct {
	store      Store
	deliveries []Delivery
	ttl        time.Duration
	batchSize  int
	logger     *log.Logger
	now        func() time.Time
}

// NewFanout 创建 Fanout，未提供 logger 时输出到标准输出。
func NewFanout(store Store, cfg Config, logger *log.Logger, deliveries ...Delivery) *Fanout {
	ttl := model.DefaultNotificationTTL
	if cfg.ExpiryDays > 0 {
		ttl = time.Duration(cfg.ExpiryDays) * 24 * time.Hour
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[notify] ", log.LstdFlags)
	}
	return &Fanout{
		store:      store,
		deliveries: deliveries,
		ttl:        ttl,
		batchSize:  cfg.BatchSize,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock 替换时间源，返回同一实例。
func (f *Fanout) WithClock(now func() time.Time) *Fanout {
	f.now = now
	return f
}

// Notify 生成并保存通知，失败只记录日志，返回已创建的通知（可能为空）。
func (f *Fanout) Notify(ctx context.Context, ev Event) []model.Notification {
	items, err := f.build(ctx, ev)
	if err != nil {
		f.logger.Printf("notify %s: build recipients: %v", ev.Type, err)
		return nil
	}
	created, err := f.CreateBulk(ctx, items)
	if err != nil {
		f.logger.Printf("notify %s: %v", ev.Type, err)
		return nil
	}
	return created
}

// NotifyDrive 按 drive ID 发送 drive 事件通知。
func (f *Fanout) NotifyDrive(ctx context.Context, driveID string, event EventType) ([]model.Notification, error) {
	d, err := f.store.GetDrive(ctx, driveID)
	if err != nil {
		return nil, fmt.Errorf("load drive: %w", err)
	}
	items, err := f.build(ctx, Event{Type: event, Drive: d})
	if err != nil {
		return nil, err
	}
	return f.CreateBulk(ctx, items)
}

// NotifyApplication 按申请 ID 发送申请事件通知。
func (f *Fanout) NotifyApplication(ctx context.Context, applicationID string, event EventType, extra map[string]any) ([]model.Notification, error) {
	app, err := f.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	ev := Event{Type: event, Application: app, Extra: extra}
	if d, err := f.store.GetDrive(ctx, app.DriveID); err == nil {
		ev.Drive = d
	}
	items, err := f.build(ctx, ev)
	if err != nil {
		return nil, err
	}
	return f.CreateBulk(ctx, items)
}

// CreateBulk 补全默认字段后以一次批量写入保存通知，然后交给各投递渠道。
func (f *Fanout) CreateBulk(ctx context.Context, items []model.Notification) ([]model.Notification, error) {
	if len(items) == 0 {
		return nil, nil
	}
	now := f.now().UTC()
	for i := range items {
		if items[i].UserID == "" {
			return nil, fmt.Errorf("notification %d has no owner", i)
		}
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].Type == "" {
			items[i].Type = model.NotificationInfo
		}
		if items[i].Priority == "" {
			items[i].Priority = model.PriorityMedium
		}
		if items[i].ExpiresAt.IsZero() {
			items[i].ExpiresAt = now.Add(f.ttl)
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
	}
	if err := f.store.CreateNotifications(ctx, items, f.batchSize); err != nil {
		return nil, fmt.Errorf("create notifications: %w", err)
	}
	for _, d := range f.deliveries {
		if err := d.Deliver(ctx, items); err != nil {
			f.logger.Printf("deliver notifications: %v", err)
		}
	}
	return items, nil
}

func (f *Fanout) build(ctx context.Context, ev Event) ([]model.Notification, error) {
	switch ev.Type {
	case EventNewDrive:
		return f.buildNewDrive(ctx, ev)
	case EventApplicationSubmitted, EventShortlisted, EventSelected, EventRejected, EventInterviewScheduled:
		if ev.Application == nil {
			return nil, fmt.Errorf("event %s requires an application", ev.Type)
		}
		return []model.Notification{applicationNotification(ev)}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", ev.Type)
	}
}

func (f *Fanout) buildNewDrive(ctx context.Context, ev Event) ([]model.Notification, error) {
	d := ev.Drive
	if d == nil {
		return nil, fmt.Errorf("event %s requires a drive", ev.Type)
	}
	students, err := f.store.ListUsers(ctx, storage.UserQuery{
		Roles:        []model.Role{model.RoleStudent},
		ActiveOnly:   true,
		ApprovedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	staff, err := f.store.ListUsers(ctx, storage.UserQuery{
		Roles:      []model.Role{model.RoleTPO, model.RoleAdmin},
		ActiveOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}

	action := "/drives/" + d.ID
	data := datatypes.JSONMap{"company": d.CompanyName, "position": d.Position}
	items := make([]model.Notification, 0, len(students)+len(staff))
	for _, u := range students {
		items = append(items, model.Notification{
			UserID:      u.ID,
			Title:       "New placement drive: " + d.CompanyName,
			Message:     fmt.Sprintf("%s is hiring for %s. Apply before %s.", d.CompanyName, d.Position, d.Deadline.Format("02 Jan 2006")),
			Type:        model.NotificationInfo,
			Priority:    model.PriorityMedium,
			Event:       string(ev.Type),
			ActionURL:   action,
			RelatedType: "drive",
			RelatedID:   d.ID,
			Data:        data,
		})
	}
	for _, u := range staff {
		if u.ID == d.CreatedBy {
			continue
		}
		items = append(items, model.Notification{
			UserID:      u.ID,
			Title:       "Drive created: " + d.CompanyName,
			Message:     fmt.Sprintf("%s posted a %s drive (%s).", d.CompanyName, d.Position, d.Status),
			Type:        model.NotificationInfo,
			Priority:    model.PriorityLow,
			Event:       string(ev.Type),
			ActionURL:   action,
			RelatedType: "drive",
			RelatedID:   d.ID,
			Data:        data,
		})
	}
	return items, nil
}

func applicationNotification(ev Event) model.Notification {
	app := ev.Application
	subject := app.CompanyName
	if ev.Drive != nil {
		subject = fmt.Sprintf("%s at %s", ev.Drive.Position, ev.Drive.CompanyName)
	}

	n := model.Notification{
		UserID:      app.StudentID,
		Event:       string(ev.Type),
		ActionURL:   "/applications/" + app.ID,
		RelatedType: "application",
		RelatedID:   app.ID,
	}
	switch ev.Type {
	case EventApplicationSubmitted:
		n.Title = "Application submitted"
		n.Message = fmt.Sprintf("Your application for %s has been submitted.", subject)
		n.Type, n.Priority = model.NotificationSuccess, model.PriorityMedium
	case EventShortlisted:
		n.Title = "You have been shortlisted"
		n.Message = fmt.Sprintf("You have been shortlisted for %s.", subject)
		n.Type, n.Priority = model.NotificationSuccess, model.PriorityHigh
	case EventSelected:
		n.Title = "Congratulations! You have been selected"
		n.Message = fmt.Sprintf("You have been selected for %s.", subject)
		n.Type, n.Priority = model.NotificationSuccess, model.PriorityHigh
	case EventRejected:
		n.Title = "Application update"
		n.Message = fmt.Sprintf("Your application for %s was not taken forward.", subject)
		n.Type, n.Priority = model.NotificationInfo, model.PriorityMedium
	case EventInterviewScheduled:
		n.Title = "Interview scheduled"
		n.Message = fmt.Sprintf("An interview has been scheduled for %s.", subject)
		if at := app.Interview.At; at != nil {
			n.Message = fmt.Sprintf("Your %s for %s is scheduled on %s.", roundLabel(app.Interview.Round), subject, at.Format("02 Jan 2006 15:04 MST"))
		}
		n.Type, n.Priority = model.NotificationInfo, model.PriorityHigh
	}

	if len(ev.Extra) > 0 {
		n.Data = datatypes.JSONMap{}
		for k, v := range ev.Extra {
			n.Data[k] = v
		}
	}
	return n
}

func roundLabel(round string) string {
	if round == "" {
		return "interview"
	}
	return round
}
