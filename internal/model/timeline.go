package model

import (
	"time"

	"gorm.io/datatypes"
)

// Timeline 以 JSON 列存储，保持步骤顺序。
type Timeline = datatypes.JSONSlice[TimelineStep]

// StepIndex 返回步骤下标，不存在时返回 -1。
func StepIndex(t Timeline, step string) int {
	for i := range t {
		if t[i].Step == step {
			return i
		}
	}
	return -1
}

// CompleteStep 标记步骤完成并记录时间，返回是否找到该步骤。
func CompleteStep(t Timeline, step string, at time.Time) bool {
	i := StepIndex(t, step)
	if i < 0 {
		return false
	}
	stamp := at
	t[i].Completed = true
	t[i].Date = &stamp
	return true
}
