package sanitize

import "testing"

func TestPlainText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Backend role", "Backend role"},
		{"  multi\n\nline   text ", "multi line text"},
		{"<p>Hiring <b>Go</b> engineers</p><script>alert(1)</script>", "Hiring Go engineers"},
		{"<ul><li>Go</li><li>SQL</li></ul>", "Go SQL"},
		{"Salary &amp; perks", "Salary & perks"},
		{"<style>p{color:red}</style>Visible", "Visible"},
	}
	for _, tc := range cases {
		if got := PlainText(tc.in); got != tc.want {
			t.Fatalf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
