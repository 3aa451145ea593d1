package model

import "time"

// ApplicationStatus 申请状态。
type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "pending"
	StatusApplied     ApplicationStatus = "applied"
	StatusShortlisted ApplicationStatus = "shortlisted"
	StatusRejected    ApplicationStatus = "rejected"
	StatusSelected    ApplicationStatus = "selected"
	StatusWithdrawn   ApplicationStatus = "withdrawn"
)

// 时间线步骤名称。
const (
	StepApplied         = "Applied"
	StepResumeScreening = "Resume Screening"
	StepAptitude        = "Aptitude & Coding Round"
	StepTechnical       = "Technical Round"
	StepHR              = "HR Round"
	StepFinalResult     = "Final Result"
)

// TimelineStep 是申请流程中的一步。
type TimelineStep struct {
	Step      string     `json:"step"`
	Date      *time.Time `json:"date,omitempty"`
	Completed bool       `json:"completed"`
	Notes     string     `json:"notes,omitempty"`
}

// InterviewSchedule 面试安排。
type InterviewSchedule struct {
	At       *time.Time `json:"at,omitempty"`
	Mode     string     `json:"mode,omitempty"`
	Location string     `json:"location,omitempty"`
	Round    string     `json:"round,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

// Application 是学生对某个 drive 的唯一申请记录，(student_id, drive_id) 唯一。
type Application struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	StudentID   string            `gorm:"size:36;not null;uniqueIndex:idx_application_student_drive" json:"student_id"`
	DriveID     string            `gorm:"size:36;not null;uniqueIndex:idx_application_student_drive;index" json:"drive_id"`
	CompanyID   string            `gorm:"size:36" json:"company_id,omitempty"`
	CompanyName string            `json:"company_name"`
	Status      ApplicationStatus `gorm:"not null;index" json:"status"`
	Timeline    Timeline          `json:"timeline"`
	Interview   InterviewSchedule `gorm:"embedded;embeddedPrefix:interview_" json:"interview"`
	AppliedAt   time.Time         `json:"applied_at"`
	LastUpdated time.Time         `json:"last_updated"`
}

// RosterStatus 返回申请状态在 drive 名册上的对应状态；撤回不改变名册。
func (s ApplicationStatus) RosterStatus() (ApplicantStatus, bool) {
	switch s {
	case StatusPending, StatusApplied:
		return ApplicantPending, true
	case StatusShortlisted:
		return ApplicantShortlisted, true
	case StatusRejected:
		return ApplicantRejected, true
	case StatusSelected:
		return ApplicantSelected, true
	default:
		return "", false
	}
}

// Valid 判断是否为已知状态。
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApplied, StatusShortlisted, StatusRejected, StatusSelected, StatusWithdrawn:
		return true
	default:
		return false
	}
}
