package eligibility

import (
	"fmt"
	"strings"
	"time"

	"placement-portal/internal/model"
)

// Student 是资格判断使用的学生快照。
type Student struct {
	ID       string
	Role     model.Role
	CGPA     float64
	Backlogs int
	Year     string
	Branch   string
}

// FromUser 由用户目录记录构造快照。
func FromUser(u model.User) Student {
	return Student{
		ID:       u.ID,
		Role:     u.Role,
		CGPA:     u.CGPA,
		Backlogs: u.Backlogs,
		Year:     u.Year,
		Branch:   u.Department,
	}
}

// DriveState 是 drive 的可变部分：名册、状态与截止时间。
type DriveState struct {
	Status     model.DriveStatus
	Deadline   time.Time
	Applicants []model.Applicant
}

// StateOf 从 drive 中提取判断所需的状态。
func StateOf(d model.Drive) DriveState {
	return DriveState{Status: d.Status, Deadline: d.Deadline, Applicants: d.Applicants}
}

// Result 资格判断结果，Reasons 列出所有未满足的条件。
type Result struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

type input struct {
	rule    model.Eligibility
	student Student
	drive   DriveState
	now     time.Time
}

// check 是一条规则；pass 与 reason 分开，使布尔路径不需要拼接文案。
type check struct {
	pass   func(in *input) bool
	reason func(in *input) string
}

// checks 同时服务 Evaluate 与 IsEligible，两条路径共用同一张规则表。
var checks = []check{
	{
		pass: func(in *input) bool { return in.student.CGPA >= in.rule.MinCGPA },
		reason: func(in *input) string {
			return fmt.Sprintf("CGPA %.2f is below the required minimum of %.2f", in.student.CGPA, in.rule.MinCGPA)
		},
	},
	{
		pass: func(in *input) bool { return in.student.Backlogs <= in.rule.MaxBacklogs },
		reason: func(in *input) string {
			return fmt.Sprintf("%d backlogs exceed the allowed maximum of %d", in.student.Backlogs, in.rule.MaxBacklogs)
		},
	},
	{
		pass: func(in *input) bool { return ParseYear(in.student.Year) >= in.rule.MinYear },
		reason: func(in *input) string {
			return fmt.Sprintf("year %d is below the required minimum year %d", ParseYear(in.student.Year), in.rule.MinYear)
		},
	},
	{
		pass: func(in *input) bool { return branchAllowed(in.rule.AllowedBranches, in.student.Branch) },
		reason: func(in *input) string {
			return fmt.Sprintf("branch %s is not in the allowed branches (%s)", NormalizeBranch(in.student.Branch), strings.Join(in.rule.AllowedBranches, ", "))
		},
	},
	{
		pass: func(in *input) bool { return !hasApplied(in.drive.Applicants, in.student.ID) },
		reason: func(in *input) string {
			return "already applied to this drive"
		},
	},
	{
		pass: func(in *input) bool { return in.drive.Status == model.DriveActive },
		reason: func(in *input) string {
			return fmt.Sprintf("drive is %s, not accepting applications", in.drive.Status)
		},
	},
	{
		pass: func(in *input) bool { return !in.now.After(in.drive.Deadline) },
		reason: func(in *input) string {
			return "application deadline has passed"
		},
	},
}

const reasonNotStudent = "only students can apply to drives"

// Evaluate 判断学生是否满足 drive 条件，并返回全部未满足原因。
// 角色不是学生时直接返回单条原因，不再检查其余规则。
func Evaluate(rule model.Eligibility, student Student, drive DriveState, now time.Time) Result {
	if student.Role != model.RoleStudent {
		return Result{Eligible: false, Reasons: []string{reasonNotStudent}}
	}
	in := &input{rule: rule, student: student, drive: drive, now: now}
	reasons := []string{}
	for _, c := range checks {
		if !c.pass(in) {
			reasons = append(reasons, c.reason(in))
		}
	}
	return Result{Eligible: len(reasons) == 0, Reasons: reasons}
}

// IsEligible 与 Evaluate 规则一致，但遇到第一条失败即返回，用于批量筛选。
func IsEligible(rule model.Eligibility, student Student, drive DriveState, now time.Time) bool {
	if student.Role != model.RoleStudent {
		return false
	}
	in := &input{rule: rule, student: student, drive: drive, now: now}
	for _, c := range checks {
		if !c.pass(in) {
			return false
		}
	}
	return true
}

func hasApplied(applicants []model.Applicant, studentID string) bool {
	if studentID == "" {
		return false
	}
	for _, a := range applicants {
		if a.StudentID == studentID {
			return true
		}
	}
	return false
}
