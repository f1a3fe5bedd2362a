package scheduling

import (
	"fmt"
	"strings"
)

// ValidationError 任务字段不合法，包含全部问题
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid scheduling tasks: " + strings.Join(e.Violations, "; ")
}

// Validate 校验全部任务，返回所有问题而不是第一个
func Validate(tasks []Task) error {
	var violations []string
	for i, t := range tasks {
		violations = append(violations, taskViolations(i, t)...)
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// taskViolations 第i个任务的问题，带tasks[i]前缀
func taskViolations(i int, t Task) []string {
	if t == nil {
		return []string{fmt.Sprintf("tasks[%d] must not be null", i)}
	}
	var res []string
	for _, v := range t.violations() {
		res = append(res, fmt.Sprintf("tasks[%d].%s", i, v))
	}
	return res
}
