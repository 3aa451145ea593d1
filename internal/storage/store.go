package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"placement-portal/internal/apperr"
	"placement-portal/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Store 封装 SQLite 数据库访问，负责 drive、申请、通知、群组与用户目录的读写。
// 事务内使用的 Store 共享同一个 *gorm.DB 事务句柄。
type Store struct {
	db *gorm.DB
}

// sqliteParams 让并发写事务排队等待而不是立即失败。
const sqliteParams = "_busy_timeout=5000&_txlock=immediate"

// activeCompanyIndex 保证同一公司名同一时间最多一个 active drive。
const activeCompanyIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_drives_active_company ON drives(company_name) WHERE status = 'active'`

// NewStore 创建 Store 并自动迁移数据表。
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := dbPath
	if strings.Contains(dsn, "?") {
		dsn += "&" + sqliteParams
	} else {
		dsn += "?" + sqliteParams
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Drive{},
		&model.Applicant{},
		&model.Application{},
		&model.Notification{},
		&model.ChatGroup{},
		&model.ChatMember{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}
	if err := db.Exec(activeCompanyIndex).Error; err != nil {
		return nil, fmt.Errorf("create active company index: %w", err)
	}

	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// Transaction 在单个事务中执行 fn，fn 返回错误时整体回滚。
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// IsUniqueViolation 判断是否违反唯一约束。
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translate 将 gorm 错误映射为业务错误，其余错误加上操作前缀。
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(op+": not found", err)
	case IsUniqueViolation(err):
		return apperr.Duplicate(op+": already exists", err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
