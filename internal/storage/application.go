package storage

import (
	"context"

	"placement-portal/internal/model"
)

// ApplicationQuery 描述申请筛选条件。
type ApplicationQuery struct {
	StudentID string
	DriveID   string
	Statuses  []model.ApplicationStatus
}

// CreateApplication 写入申请，(student_id, drive_id) 重复时返回 Duplicate。
func (s *Store) CreateApplication(ctx context.Context, app *model.Application) error {
	return translate("create application", s.db.WithContext(ctx).Create(app).Error)
}

// GetApplication 根据 ID 获取申请。
func (s *Store) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	var app model.Application
	if err := s.db.WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, translate("get application", err)
	}
	return &app, nil
}

// FindApplication 获取学生对某 drive 的申请。
func (s *Store) FindApplication(ctx context.Context, studentID, driveID string) (*model.Application, error) {
	var app model.Application
	if err := s.db.WithContext(ctx).First(&app, "student_id = ? AND drive_id = ?", studentID, driveID).Error; err != nil {
		return nil, translate("find application", err)
	}
	return &app, nil
}

// ListApplications 按申请时间倒序返回。
func (s *Store) ListApplications(ctx context.Context, q ApplicationQuery) ([]model.Application, error) {
	query := s.db.WithContext(ctx).Model(&model.Application{}).Order("applied_at DESC")
	if q.StudentID != "" {
		query = query.Where("student_id = ?", q.StudentID)
	}
	if q.DriveID != "" {
		query = query.Where("drive_id = ?", q.DriveID)
	}
	if len(q.Statuses) > 0 {
		query = query.Where("status IN ?", q.Statuses)
	}
	var apps []model.Application
	if err := query.Find(&apps).Error; err != nil {
		return nil, translate("list applications", err)
	}
	return apps, nil
}

// SaveApplicationState 在同一条 UPDATE 中写入状态、时间线与面试安排，
// 仅当库中状态仍为 expected 时生效，返回是否更新成功。
func (s *Store) SaveApplicationState(ctx context.Context, app *model.Application, expected model.ApplicationStatus) (bool, error) {
	tx := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("id = ? AND status = ?", app.ID, expected).
		Select("status", "timeline", "last_updated", "interview_at", "interview_mode", "interview_location", "interview_round", "interview_notes").
		Updates(app)
	if tx.Error != nil {
		return false, translate("save application state", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}
