package eligibility

import (
	"reflect"
	"testing"
)

func TestParseYear(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"3rd Year":   3,
		"4th Year":   4,
		" 2nd year ": 2,
		"1":          1,
		"final":      4,
		"":           4,
		"Year 3":     4,
	}
	for in, want := range cases {
		if got := ParseYear(in); got != want {
			t.Fatalf("ParseYear(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestNormalizeBranch(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Computer Science":              "CSE",
		"  computer science ":           "CSE",
		"Electronics and Communication": "ECE",
		"CSE":                           "CSE",
		"Robotics":                      "Robotics",
	}
	for in, want := range cases {
		if got := NormalizeBranch(in); got != want {
			t.Fatalf("NormalizeBranch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeBranchesDedupes(t *testing.T) {
	t.Parallel()

	got := NormalizeBranches([]string{"Computer Science", "CSE", "", "all", "Information Technology"})
	want := []string{"CSE", "All", "IT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
