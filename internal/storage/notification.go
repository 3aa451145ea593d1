package storage

import (
	"context"
	"time"

	"placement-portal/internal/model"

	"gorm.io/gorm"
)

// defaultNotificationBatch 批量写入通知时单条 INSERT 的行数上限。
const defaultNotificationBatch = 200

// CreateNotifications 批量写入通知，batchSize<=0 时使用默认值。
func (s *Store) CreateNotifications(ctx context.Context, items []model.Notification, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultNotificationBatch
	}
	return translate("create notifications", s.db.WithContext(ctx).CreateInBatches(&items, batchSize).Error)
}

// ListNotifications 返回用户未过期的通知，按创建时间倒序。
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, now time.Time) ([]model.Notification, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("created_at DESC")
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	var items []model.Notification
	if err := query.Find(&items).Error; err != nil {
		return nil, translate("list notifications", err)
	}
	return items, nil
}

// MarkNotificationRead 将通知标记为已读，只允许本人操作。
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) error {
	tx := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"read": true, "read_at": at})
	if tx.Error != nil {
		return translate("mark notification read", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return translate("mark notification read", gorm.ErrRecordNotFound)
	}
	return nil
}
