package storage

import (
	"context"

	"placement-portal/internal/model"

	"gorm.io/gorm/clause"
)

// UserQuery 描述用户目录筛选条件。
type UserQuery struct {
	Roles        []model.Role
	ActiveOnly   bool
	ApprovedOnly bool
}

// UpsertUser 写入用户目录记录，主键存在时整体更新。
func (s *Store) UpsertUser(ctx context.Context, u *model.User) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "role", "active", "approved", "department", "cgpa", "backlogs", "year", "updated_at"}),
	}).Create(u).Error
	return translate("upsert user", err)
}

// GetUser 根据 ID 获取用户。
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &u, nil
}

// ListUsers 按角色与状态筛选用户。
func (s *Store) ListUsers(ctx context.Context, q UserQuery) ([]model.User, error) {
	query := s.db.WithContext(ctx).Model(&model.User{}).Order("created_at ASC")
	if len(q.Roles) > 0 {
		query = query.Where("role IN ?", q.Roles)
	}
	if q.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if q.ApprovedOnly {
		query = query.Where("approved = ?", true)
	}
	var users []model.User
	if err := query.Find(&users).Error; err != nil {
		return nil, translate("list users", err)
	}
	return users, nil
}

// UserEmails 返回 ID 到邮箱的映射，缺失邮箱的用户不出现在结果中。
func (s *Store) UserEmails(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []model.User
	if err := s.db.WithContext(ctx).Select("id", "email").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate("list user emails", err)
	}
	for _, u := range users {
		if u.Email != "" {
			out[u.ID] = u.Email
		}
	}
	return out, nil
}
