package scheduling

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const mod = "scheduler"

// ErrDeviceNotFound 设备不存在或不属于该用户
var ErrDeviceNotFound = errors.New("device not found for user")

// DeviceLookup 检查设备归属
type DeviceLookup interface {
	ExistsForUser(ctx context.Context, deviceID, userID string) (bool, error)
}

// TaskStore 读写设备的任务列表
type TaskStore interface {
	SchedulingTasks(ctx context.Context, deviceID string) ([]Task, error)
	SetSchedulingTasks(ctx context.Context, deviceID string, tasks []Task) error
}

// Clock 当前时间
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时间，统一为UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc 函数形式的 Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// checkOwner 设备必须属于用户
func checkOwner(ctx context.Context, devices DeviceLookup, deviceID, userID string) error {
	ok, err := devices.ExistsForUser(ctx, deviceID, userID)
	if err != nil {
		return errors.Wrap(err, "check device owner")
	}
	if !ok {
		return ErrDeviceNotFound
	}
	return nil
}

// Retriever 查询设备的任务和下一个动作
type Retriever struct {
	devices DeviceLookup
	tasks   TaskStore
	clock   Clock
}

// NewRetriever 创建 Retriever
func NewRetriever(devices DeviceLookup, tasks TaskStore, clock Clock) *Retriever {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Retriever{devices: devices, tasks: tasks, clock: clock}
}

// Tasks 返回设备保存的全部任务
func (r *Retriever) Tasks(ctx context.Context, deviceID, userID string) ([]Task, error) {
	if err := checkOwner(ctx, r.devices, deviceID, userID); err != nil {
		return nil, err
	}
	tasks, err := r.tasks.SchedulingTasks(ctx, deviceID)
	if err != nil {
		return nil, errors.Wrap(err, "load scheduling tasks")
	}
	return tasks, nil
}

// NextAction 返回最早的下一个动作，没有任务时返回nil
func (r *Retriever) NextAction(ctx context.Context, deviceID, userID string) (*SchedulerAction, error) {
	tasks, err := r.Tasks(ctx, deviceID, userID)
	if err != nil {
		return nil, err
	}

	next := Next(r.clock.Now(), tasks)
	log.Debug().Str("mod", mod).Str("device", deviceID).Int("tasks", len(tasks)).Bool("found", next != nil).Send()
	return next, nil
}

// Next 在任务中找出最早的动作，时刻相同时取靠前的任务
func Next(now time.Time, tasks []Task) *SchedulerAction {
	var next *SchedulerAction
	for _, t := range tasks {
		if t == nil || t.HasPassed(now) {
			continue
		}
		action := t.NextAction(now)
		if next == nil || action.Moment.Before(next.Moment) {
			next = &action
		}
	}
	return next
}

// Updater 整体替换设备的任务列表
type Updater struct {
	devices DeviceLookup
	tasks   TaskStore
}

// NewUpdater 创建 Updater
func NewUpdater(devices DeviceLookup, tasks TaskStore) *Updater {
	return &Updater{devices: devices, tasks: tasks}
}

// SetTasks 校验归属和任务后保存，后写覆盖先写
func (u *Updater) SetTasks(ctx context.Context, deviceID, userID string, tasks []Task) error {
	if err := checkOwner(ctx, u.devices, deviceID, userID); err != nil {
		return err
	}
	if err := Validate(tasks); err != nil {
		return err
	}
	return u.save(ctx, deviceID, tasks)
}

func (u *Updater) save(ctx context.Context, deviceID string, tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	if err := u.tasks.SetSchedulingTasks(ctx, deviceID, tasks); err != nil {
		return errors.Wrap(err, "save scheduling tasks")
	}
	log.Info().Str("mod", mod).Str("device", deviceID).Int("tasks", len(tasks)).Msg("tasks replaced")
	return nil
}

// SetDocuments 先检查归属，再把文档转为任务保存
func (u *Updater) SetDocuments(ctx context.Context, deviceID, userID string, docs []TaskDocument) error {
	if err := checkOwner(ctx, u.devices, deviceID, userID); err != nil {
		return err
	}
	tasks, err := FromDocuments(docs)
	if err != nil {
		return err
	}
	return u.save(ctx, deviceID, tasks)
}
