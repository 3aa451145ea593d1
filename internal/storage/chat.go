package storage

import (
	"context"

	"placement-portal/internal/model"

	"gorm.io/gorm/clause"
)

// CreateChatGroup 新增群组，(drive_id, department) 重复时返回 Duplicate。
func (s *Store) CreateChatGroup(ctx context.Context, g *model.ChatGroup) error {
	return translate("create chat group", s.db.WithContext(ctx).Omit("Members").Create(g).Error)
}

// FindChatGroup 根据 drive 与专业代码查找群组，包含成员。
func (s *Store) FindChatGroup(ctx context.Context, driveID, department string) (*model.ChatGroup, error) {
	var g model.ChatGroup
	if err := s.db.WithContext(ctx).Preload("Members").
		First(&g, "drive_id = ? AND department = ?", driveID, department).Error; err != nil {
		return nil, translate("find chat group", err)
	}
	return &g, nil
}

// ListChatGroups 返回 drive 下的所有群组，包含成员。
func (s *Store) ListChatGroups(ctx context.Context, driveID string) ([]model.ChatGroup, error) {
	var groups []model.ChatGroup
	if err := s.db.WithContext(ctx).Preload("Members").
		Where("drive_id = ?", driveID).Order("department ASC").
		Find(&groups).Error; err != nil {
		return nil, translate("list chat groups", err)
	}
	return groups, nil
}

// AddChatMember 加入群组，已是成员时不做任何修改，返回是否新增。
func (s *Store) AddChatMember(ctx context.Context, m *model.ChatMember) (bool, error) {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(m)
	if tx.Error != nil {
		return false, translate("add chat member", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}
