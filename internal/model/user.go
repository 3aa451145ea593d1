package model

import "time"

// Role 用户角色。
type Role string

const (
	RoleStudent Role = "student"
	RoleCompany Role = "company"
	RoleTPO     Role = "tpo"
	RoleAdmin   Role = "admin"
)

// User 是外部用户目录的本地投影，学生字段用于资格判断。
type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `json:"name"`
	Email      string    `gorm:"index" json:"email"`
	Role       Role      `gorm:"not null;index" json:"role"`
	Active     bool      `gorm:"not null" json:"active"`
	Approved   bool      `gorm:"not null" json:"approved"`
	Department string    `json:"department,omitempty"`
	CGPA       float64   `json:"cgpa"`
	Backlogs   int       `json:"backlogs"`
	Year       string    `json:"year,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsStaff 表示可以处理申请的角色。
func (r Role) IsStaff() bool {
	return r == RoleCompany || r == RoleTPO || r == RoleAdmin
}
