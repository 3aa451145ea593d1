package eligibility

import (
	"strings"

	"placement-portal/internal/model"
)

// branchCodes 将专业展示名映射为专业代码，键为小写展示名。
var branchCodes = map[string]string{
	"computer science":                          "CSE",
	"computer science and engineering":          "CSE",
	"computer science & engineering":            "CSE",
	"information technology":                    "IT",
	"electronics and communication":             "ECE",
	"electronics & communication":               "ECE",
	"electronics and communication engineering": "ECE",
	"electrical engineering":                    "EE",
	"electrical and electronics engineering":    "EEE",
	"electrical & electronics engineering":      "EEE",
	"electronics and instrumentation":           "EIE",
	"mechanical engineering":                    "ME",
	"mechanical":                                "ME",
	"civil engineering":                         "CE",
	"civil":                                     "CE",
	"chemical engineering":                      "CHE",
	"biotechnology":                             "BT",
	"artificial intelligence and data science":  "AIDS",
}

// NormalizeBranch 将展示名转换为专业代码，未收录的名称原样（去空白）返回。
func NormalizeBranch(name string) string {
	trimmed := strings.TrimSpace(name)
	if code, ok := branchCodes[strings.ToLower(trimmed)]; ok {
		return code
	}
	return trimmed
}

// NormalizeBranches 归一化并去重，保持输入顺序，忽略空值。
func NormalizeBranches(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		code := NormalizeBranch(n)
		if code == "" {
			continue
		}
		if strings.EqualFold(code, model.BranchAll) {
			code = model.BranchAll
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func branchAllowed(allowed []string, branch string) bool {
	code := NormalizeBranch(branch)
	for _, a := range allowed {
		if a == model.BranchAll || NormalizeBranch(a) == code {
			return true
		}
	}
	return false
}
