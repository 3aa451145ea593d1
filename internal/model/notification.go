package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType 通知类型。
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Priority 通知优先级。
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultNotificationTTL 未指定过期时间时的默认有效期。
const DefaultNotificationTTL = 30 * 24 * time.Hour

// Notification 站内通知记录，必须归属某个用户。
type Notification struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	UserID      string            `gorm:"size:36;not null;index" json:"user_id"`
	Title       string            `gorm:"not null" json:"title"`
	Message     string            `json:"message"`
	Type        NotificationType  `gorm:"not null" json:"type"`
	Priority    Priority          `gorm:"not null" json:"priority"`
	Event       string            `gorm:"index" json:"event"`
	Read        bool              `gorm:"not null" json:"read"`
	ReadAt      *time.Time        `json:"read_at,omitempty"`
	ActionURL   string            `json:"action_url,omitempty"`
	RelatedType string            `json:"related_type,omitempty"`
	RelatedID   string            `gorm:"size:36" json:"related_id,omitempty"`
	Data        datatypes.JSONMap `json:"data,omitempty"`
	ExpiresAt   time.Time         `gorm:"index" json:"expires_at"`
	CreatedAt   time.Time         `json:"created_at"`
}
