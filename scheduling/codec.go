package scheduling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// TaskDocument 任务的序列化形式，type字段区分类型
type TaskDocument struct {
	Type     Kind      `json:"type"`
	Action   Action    `json:"action"`
	Moment   time.Time `json:"moment"`
	Weekdays []Weekday `json:"weekdays,omitempty"`
}

// ToDocuments 任务转为文档
func ToDocuments(tasks []Task) []TaskDocument {
	docs := make([]TaskDocument, 0, len(tasks))
	for _, t := range tasks {
		switch task := t.(type) {
		case *OneShotTask:
			docs = append(docs, TaskDocument{Type: KindOneShot, Action: task.Action, Moment: task.Moment})
		case *DailyTask:
			weekdays := make([]Weekday, len(task.Weekdays))
			copy(weekdays, task.Weekdays)
			docs = append(docs, TaskDocument{Type: KindDaily, Action: task.Action, Moment: task.Moment, Weekdays: weekdays})
		}
	}
	return docs
}

// FromDocuments 文档转为任务，未知type和字段问题一并报告
func FromDocuments(docs []TaskDocument) ([]Task, error) {
	tasks := make([]Task, 0, len(docs))
	var violations []string
	for i, doc := range docs {
		var task Task
		switch doc.Type {
		case KindOneShot:
			task = &OneShotTask{Action: doc.Action, Moment: doc.Moment}
		case KindDaily:
			task = &DailyTask{Action: doc.Action, Moment: doc.Moment, Weekdays: doc.Weekdays}
		default:
			violations = append(violations,
				fmt.Sprintf("tasks[%d].type must be one of %s, %s, got %q", i, KindOneShot, KindDaily, doc.Type))
			continue
		}
		violations = append(violations, taskViolations(i, task)...)
		tasks = append(tasks, task)
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return tasks, nil
}

// EncodeTasks 序列化任务列表
func EncodeTasks(tasks []Task) ([]byte, error) {
	bytes, err := json.Marshal(ToDocuments(tasks))
	if err != nil {
		return nil, errors.Wrap(err, "encode tasks")
	}
	return bytes, nil
}

// DecodeTasks 反序列化任务列表
func DecodeTasks(data []byte) ([]Task, error) {
	var docs []TaskDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, "decode tasks")
	}
	return FromDocuments(docs)
}
