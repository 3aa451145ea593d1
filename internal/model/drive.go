package model

import (
	"time"

	"gorm.io/datatypes"
)

// DriveStatus 招聘宣讲（drive）状态。
type DriveStatus string

const (
	DriveDraft     DriveStatus = "draft"
	DriveActive    DriveStatus = "active"
	DriveClosed    DriveStatus = "closed"
	DriveCancelled DriveStatus = "cancelled"
)

// BranchAll 表示不限专业。
const BranchAll = "All"

// Eligibility 描述报名门槛，AllowedBranches 中存储的是专业代码。
type Eligibility struct {
	MinCGPA         float64                     `json:"min_cgpa"`
	AllowedBranches datatypes.JSONSlice[string] `json:"allowed_branches"`
	MaxBacklogs     int                         `json:"max_backlogs"`
	MinYear         int                         `json:"min_year"`
}

// Drive 表示一家公司的一轮招聘
// - CompanyName: 同名公司同一时间最多一个 active drive
// - ShortlistedCount/SelectedCount: 冗余计数，与 Applicants 中对应状态数量一致
type Drive struct {
	ID               string      `gorm:"primaryKey;size:36" json:"id"`
	CompanyName      string      `gorm:"not null;index" json:"company_name"`
	CompanyID        string      `gorm:"size:36;index" json:"company_id,omitempty"`
	Position         string      `gorm:"not null" json:"position"`
	Description      string      `json:"description,omitempty"`
	Location         string      `json:"location,omitempty"`
	Package          string      `json:"package,omitempty"`
	Eligibility      Eligibility `gorm:"embedded;embeddedPrefix:eligibility_" json:"eligibility"`
	Status           DriveStatus `gorm:"not null;index" json:"status"`
	Deadline         time.Time   `json:"deadline"`
	CreatedBy        string      `gorm:"size:36" json:"created_by"`
	ShortlistedCount int         `gorm:"not null;default:0" json:"shortlisted_count"`
	SelectedCount    int         `gorm:"not null;default:0" json:"selected_count"`
	Applicants       []Applicant `gorm:"foreignKey:DriveID" json:"applicants,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// ApplicantStatus 是 drive 名册上的学生状态。
type ApplicantStatus string

const (
	ApplicantPending     ApplicantStatus = "pending"
	ApplicantShortlisted ApplicantStatus = "shortlisted"
	ApplicantRejected    ApplicantStatus = "rejected"
	ApplicantSelected    ApplicantStatus = "selected"
)

// Applicant 是 drive 名册中的一行，(drive_id, student_id) 唯一。
type Applicant struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	DriveID   string          `gorm:"size:36;not null;uniqueIndex:idx_applicant_drive_student" json:"drive_id"`
	StudentID string          `gorm:"size:36;not null;uniqueIndex:idx_applicant_drive_student;index" json:"student_id"`
	AppliedAt time.Time       `json:"applied_at"`
	Status    ApplicantStatus `gorm:"not null" json:"status"`
}

func (Applicant) TableName() string { return "drive_applicants" }

// HasApplicant 判断学生是否已在名册中。
func (d Drive) HasApplicant(studentID string) bool {
	for _, a := range d.Applicants {
		if a.StudentID == studentID {
			return true
		}
	}
	return false
}
