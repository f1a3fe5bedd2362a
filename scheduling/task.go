package scheduling

import (
	"time"
)

// Action 设备要执行的指令，内容不做解释
type Action string

const (
	ActionTurnOn  Action = "turn_on"
	ActionTurnOff Action = "turn_off"
)

// Kind 任务类型，序列化时作为type字段
type Kind string

const (
	KindOneShot Kind = "one_shot"
	KindDaily   Kind = "daily"
)

// SchedulerAction 下一个要执行的动作
type SchedulerAction struct {
	Action Action    `json:"action"`
	Moment time.Time `json:"moment"`
}

// Task 调度任务，只有 OneShotTask 和 DailyTask 两种
type Task interface {
	// Kind 任务类型
	Kind() Kind
	// NextAction 计算now之后的下一个动作
	NextAction(now time.Time) SchedulerAction
	// HasPassed 任务已经不会再产生动作
	HasPassed(now time.Time) bool

	violations() []string
}

// OneShotTask 在某一时刻执行一次
type OneShotTask struct {
	Action Action
	Moment time.Time
}

func (t *OneShotTask) Kind() Kind {
	return KindOneShot
}

func (t *OneShotTask) NextAction(now time.Time) SchedulerAction {
	return SchedulerAction{Action: t.Action, Moment: t.Moment}
}

func (t *OneShotTask) HasPassed(now time.Time) bool {
	return now.After(t.Moment)
}

func (t *OneShotTask) violations() []string {
	var v []string
	if t.Action == "" {
		v = append(v, "action must not be empty")
	}
	if t.Moment.IsZero() {
		v = append(v, "moment must not be empty")
	}
	return v
}

// DailyTask 在指定的星期几执行，Moment只取时分秒
type DailyTask struct {
	Action   Action
	Moment   time.Time
	Weekdays []Weekday
}

func (t *DailyTask) Kind() Kind {
	return KindDaily
}

// NextAction 今天的时刻已过则取下一天，不检查下一天是否在Weekdays里
// TODO: search forward for the first allowed weekday once clients stop relying on next-day resolution.
func (t *DailyTask) NextAction(now time.Time) SchedulerAction {
	current := WeekdayOf(now)
	target := current
	if clockOf(now) > clockOf(t.Moment) {
		target = NextAfter(current)
	}

	moment := time.Date(
		now.Year(), now.Month(), now.Day(),
		t.Moment.Hour(), t.Moment.Minute(), t.Moment.Second(), t.Moment.Nanosecond(),
		now.Location(),
	).AddDate(0, 0, DaysBetween(current, target))

	return SchedulerAction{Action: t.Action, Moment: moment}
}

// HasPassed 每天都会有下一次
func (t *DailyTask) HasPassed(now time.Time) bool {
	return false
}

func (t *DailyTask) violations() []string {
	var v []string
	if t.Action == "" {
		v = append(v, "action must not be empty")
	}
	if t.Moment.IsZero() {
		v = append(v, "moment must not be empty")
	}
	if len(t.Weekdays) == 0 {
		v = append(v, "weekdays must not be empty")
	}
	for _, w := range t.Weekdays {
		if !w.Valid() {
			v = append(v, "weekdays contains invalid weekday "+w.String())
		}
	}
	return v
}

// clockOf 一天中的时刻
func clockOf(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}
