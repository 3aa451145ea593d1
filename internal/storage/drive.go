package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"placement-portal/internal/model"

	"gorm.io/gorm"
)

// DriveQuery 提供 drive 查询过滤条件。
type DriveQuery struct {
	Statuses    []model.DriveStatus
	CompanyName string
	CreatedBy   string
	Limit       int
	Offset      int
}

// CounterDelta 描述名册状态变化带来的计数增量。
type CounterDelta struct {
	Shortlisted int
	Selected    int
}

// IsZero 表示无需更新计数。
func (d CounterDelta) IsZero() bool { return d.Shortlisted == 0 && d.Selected == 0 }

// CreateDrive 新增 drive。
func (s *Store) CreateDrive(ctx context.Context, d *model.Drive) error {
	return translate("create drive", s.db.WithContext(ctx).Omit("Applicants").Create(d).Error)
}

// GetDrive 根据 ID 获取 drive，名册按报名顺序返回。
func (s *Store) GetDrive(ctx context.Context, id string) (*model.Drive, error) {
	var d model.Drive
	err := s.db.WithContext(ctx).
		Preload("Applicants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&d, "id = ?", id).Error
	if err != nil {
		return nil, translate("get drive", err)
	}
	return &d, nil
}

// ListDrives 返回按截止时间升序的 drive 列表，不加载名册。
func (s *Store) ListDrives(ctx context.Context, q DriveQuery) ([]model.Drive, error) {
	query := s.db.WithContext(ctx).Model(&model.Drive{}).Order("deadline ASC")
	if len(q.Statuses) > 0 {
		query = query.Where("status IN ?", q.Statuses)
	}
	if q.CompanyName != "" {
		query = query.Where("company_name = ?", q.CompanyName)
	}
	if q.CreatedBy != "" {
		query = query.Where("created_by = ?", q.CreatedBy)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	var drives []model.Drive
	if err := query.Find(&drives).Error; err != nil {
		return nil, translate("list drives", err)
	}
	return drives, nil
}

// FindActiveDrive 返回该公司名下的 active drive，不存在时返回 nil。
func (s *Store) FindActiveDrive(ctx context.Context, companyName string) (*model.Drive, error) {
	var d model.Drive
	err := s.db.WithContext(ctx).
		Where("company_name = ? AND status = ?", companyName, model.DriveActive).
		Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("find active drive", err)
	}
	return &d, nil
}

// UpdateDriveStatus 仅当当前状态属于 from 时更新为 to，返回是否更新成功。
func (s *Store) UpdateDriveStatus(ctx context.Context, id string, from []model.DriveStatus, to model.DriveStatus) (bool, error) {
	tx := s.db.WithContext(ctx).Model(&model.Drive{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if tx.Error != nil {
		return false, translate("update drive status", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// AdjustDriveCounters 以相对值更新计数并在零处截断，避免读改写丢失更新。
func (s *Store) AdjustDriveCounters(ctx context.Context, id string, delta CounterDelta) error {
	if delta.IsZero() {
		return nil
	}
	tx := s.db.WithContext(ctx).Model(&model.Drive{}).Where("id = ?", id).Updates(map[string]any{
		"shortlisted_count": gorm.Expr("MAX(shortlisted_count + ?, 0)", delta.Shortlisted),
		"selected_count":    gorm.Expr("MAX(selected_count + ?, 0)", delta.Selected),
	})
	if tx.Error != nil {
		return translate("adjust drive counters", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return translate("adjust drive counters", gorm.ErrRecordNotFound)
	}
	return nil
}

// RecountDriveCounters 根据名册重新计算计数并写回。
func (s *Store) RecountDriveCounters(ctx context.Context, id string) (CounterDelta, error) {
	type row struct {
		Status model.ApplicantStatus
		Total  int
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&model.Applicant{}).
		Select("status, COUNT(*) AS total").
		Where("drive_id = ?", id).
		Group("status").
		Scan(&rows).Error; err != nil {
		return CounterDelta{}, translate("count applicants", err)
	}

	var counts CounterDelta
	for _, r := range rows {
		switch r.Status {
		case model.ApplicantShortlisted:
			counts.Shortlisted = r.Total
		case model.ApplicantSelected:
			counts.Selected = r.Total
		}
	}

	tx := s.db.WithContext(ctx).Model(&model.Drive{}).Where("id = ?", id).Updates(map[string]any{
		"shortlisted_count": counts.Shortlisted,
		"selected_count":    counts.Selected,
	})
	if tx.Error != nil {
		return CounterDelta{}, translate("recount drive counters", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return CounterDelta{}, translate("recount drive counters", gorm.ErrRecordNotFound)
	}
	return counts, nil
}

// DeleteDrive 删除 drive 及其申请、名册、群组与群成员。
func (s *Store) DeleteDrive(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groupIDs := tx.Model(&model.ChatGroup{}).Select("id").Where("drive_id = ?", id)
		if err := tx.Where("group_id IN (?)", groupIDs).Delete(&model.ChatMember{}).Error; err != nil {
			return fmt.Errorf("delete chat members: %w", err)
		}
		if err := tx.Where("drive_id = ?", id).Delete(&model.ChatGroup{}).Error; err != nil {
			return fmt.Errorf("delete chat groups: %w", err)
		}
		if err := tx.Where("drive_id = ?", id).Delete(&model.Application{}).Error; err != nil {
			return fmt.Errorf("delete applications: %w", err)
		}
		if err := tx.Where("drive_id = ?", id).Delete(&model.Applicant{}).Error; err != nil {
			return fmt.Errorf("delete applicants: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.Drive{})
		if res.Error != nil {
			return fmt.Errorf("delete drive: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return translate("delete drive", gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// CloseExpiredDrives 将截止时间早于 now 的 active drive 关闭，返回被关闭的 ID。
func (s *Store) CloseExpiredDrives(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Drive{}).
			Where("status = ? AND deadline < ?", model.DriveActive, now).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("query expired drives: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Model(&model.Drive{}).
			Where("id IN ? AND status = ?", ids, model.DriveActive).
			Update("status", model.DriveClosed).Error; err != nil {
			return fmt.Errorf("close expired drives: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AddApplicant 追加名册记录，(drive_id, student_id) 重复时返回 Duplicate。
func (s *Store) AddApplicant(ctx context.Context, a *model.Applicant) error {
	return translate("add applicant", s.db.WithContext(ctx).Create(a).Error)
}

// GetApplicant 获取某学生在 drive 名册中的记录。
func (s *Store) GetApplicant(ctx context.Context, driveID, studentID string) (*model.Applicant, error) {
	var a model.Applicant
	if err := s.db.WithContext(ctx).First(&a, "drive_id = ? AND student_id = ?", driveID, studentID).Error; err != nil {
		return nil, translate("get applicant", err)
	}
	return &a, nil
}

// SetApplicantStatus 仅当名册状态仍为 from 时更新，返回是否更新成功。
func (s *Store) SetApplicantStatus(ctx context.Context, driveID, studentID string, from, to model.ApplicantStatus) (bool, error) {
	tx := s.db.WithContext(ctx).Model(&model.Applicant{}).
		Where("drive_id = ? AND student_id = ? AND status = ?", driveID, studentID, from).
		Update("status", to)
	if tx.Error != nil {
		return false, translate("set applicant status", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}
