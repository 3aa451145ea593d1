package eligibility

import (
	"strconv"
	"strings"
)

// defaultYear 无法解析年级时的取值，按最高年级处理。
const defaultYear = 4

// ParseYear 从 "3rd Year" 这类文本中提取开头的数字，解析失败时返回 4。
func ParseYear(label string) int {
	s := strings.TrimSpace(label)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return defaultYear
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return defaultYear
	}
	return v
}
