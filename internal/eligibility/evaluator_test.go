package eligibility

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"placement-portal/internal/model"
)

var now = time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)

func sampleRule() model.Eligibility {
	return model.Eligibility{
		MinCGPA:         7.5,
		MaxBacklogs:     0,
		AllowedBranches: []string{"CSE"},
		MinYear:         3,
	}
}

func openDrive() DriveState {
	return DriveState{Status: model.DriveActive, Deadline: now.Add(48 * time.Hour)}
}

func TestEvaluateEligibleStudent(t *testing.T) {
	t.Parallel()

	student := Student{ID: "s1", Role: model.RoleStudent, CGPA: 8.0, Backlogs: 0, Branch: "CSE", Year: "4th Year"}
	res := Evaluate(sampleRule(), student, openDrive(), now)
	if !res.Eligible {
		t.Fatalf("expected eligible, got reasons %v", res.Reasons)
	}
	if len(res.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", res.Reasons)
	}
}

func TestEvaluateReportsEveryFailedRule(t *testing.T) {
	t.Parallel()

	student := Student{ID: "s2", Role: model.RoleStudent, CGPA: 6.0, Backlogs: 1, Branch: "ECE", Year: "2nd Year"}
	res := Evaluate(sampleRule(), student, openDrive(), now)
	if res.Eligible {
		t.Fatalf("expected ineligible")
	}
	if len(res.Reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d: %v", len(res.Reasons), res.Reasons)
	}
	joined := strings.Join(res.Reasons, "|")
	for _, want := range []string{"CGPA", "backlogs", "branch", "year"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected a reason mentioning %q, got %v", want, res.Reasons)
		}
	}
}

func TestEvaluateNonStudentShortCircuits(t *testing.T) {
	t.Parallel()

	student := Student{ID: "c1", Role: model.RoleCompany, CGPA: 1, Backlogs: 9, Branch: "ME", Year: "1"}
	res := Evaluate(sampleRule(), student, DriveState{Status: model.DriveClosed}, now)
	if res.Eligible || len(res.Reasons) != 1 {
		t.Fatalf("expected a single role reason, got %+v", res)
	}
	if res.Reasons[0] != reasonNotStudent {
		t.Fatalf("unexpected reason %q", res.Reasons[0])
	}
}

func TestEvaluateDriveStateRules(t *testing.T) {
	t.Parallel()

	student := Student{ID: "s3", Role: model.RoleStudent, CGPA: 9, Branch: "Computer Science", Year: "3"}

	cases := []struct {
		name  string
		state DriveState
		want  int
	}{
		{"already applied", DriveState{Status: model.DriveActive, Deadline: now.Add(time.Hour), Applicants: []model.Applicant{{StudentID: "s3"}}}, 1},
		{"closed drive", DriveState{Status: model.DriveClosed, Deadline: now.Add(time.Hour)}, 1},
		{"deadline passed", DriveState{Status: model.DriveActive, Deadline: now.Add(-time.Minute)}, 1},
		{"closed and expired", DriveState{Status: model.DriveClosed, Deadline: now.Add(-time.Minute)}, 2},
		{"deadline is inclusive", DriveState{Status: model.DriveActive, Deadline: now}, 0},
	}
	for _, tc := range cases {
		res := Evaluate(sampleRule(), student, tc.state, now)
		if len(res.Reasons) != tc.want {
			t.Fatalf("%s: expected %d reasons, got %v", tc.name, tc.want, res.Reasons)
		}
		if res.Eligible != (tc.want == 0) {
			t.Fatalf("%s: eligible flag mismatch", tc.name)
		}
	}
}

func TestEvaluateAllBranchSentinel(t *testing.T) {
	t.Parallel()

	rule := sampleRule()
	rule.AllowedBranches = []string{model.BranchAll}
	student := Student{ID: "s4", Role: model.RoleStudent, CGPA: 8, Branch: "Underwater Basket Weaving", Year: "3rd Year"}
	if res := Evaluate(rule, student, openDrive(), now); !res.Eligible {
		t.Fatalf("expected All sentinel to admit any branch, got %v", res.Reasons)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	t.Parallel()

	student := Student{ID: "s5", Role: model.RoleStudent, CGPA: 7, Backlogs: 2, Branch: "Mechanical", Year: "final"}
	rule := sampleRule()
	first := Evaluate(rule, student, openDrive(), now)
	second := Evaluate(rule, student, openDrive(), now)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
	if !reflect.DeepEqual(rule, sampleRule()) {
		t.Fatalf("evaluate must not mutate the rule")
	}
}

func TestIsEligibleMatchesEvaluate(t *testing.T) {
	t.Parallel()

	students := []Student{
		{ID: "a", Role: model.RoleStudent, CGPA: 8.0, Branch: "CSE", Year: "4th Year"},
		{ID: "b", Role: model.RoleStudent, CGPA: 6.0, Backlogs: 1, Branch: "ECE", Year: "2nd Year"},
		{ID: "c", Role: model.RoleStudent, CGPA: 7.5, Branch: "computer science", Year: "junk"},
		{ID: "d", Role: model.RoleTPO, CGPA: 10, Branch: "CSE", Year: "4"},
		{ID: "e", Role: model.RoleStudent, CGPA: 9.9, Branch: "CSE", Year: "2"},
	}
	states := []DriveState{
		openDrive(),
		{Status: model.DriveDraft, Deadline: now.Add(time.Hour)},
		{Status: model.DriveActive, Deadline: now.Add(time.Hour), Applicants: []model.Applicant{{StudentID: "a"}}},
	}
	for _, st := range states {
		for _, s := range students {
			full := Evaluate(sampleRule(), s, st, now)
			if got := IsEligible(sampleRule(), s, st, now); got != full.Eligible {
				t.Fatalf("student %s state %s: IsEligible=%v Evaluate=%v (%v)", s.ID, st.Status, got, full.Eligible, full.Reasons)
			}
		}
	}
}
