package common

import (
	"context"
	"time"

	"github.com/turnon/wattwise/scheduling"
)

// Store 所有仓库的入口
type Store interface {
	Users() UserRepository
	Devices() DeviceRepository
	Measures() MeasureRepository
	Close(context.Context) error
}

// UserRepository 用户
type UserRepository interface {
	Create(context.Context, User) error
	// Get 不存在时返回nil
	Get(ctx context.Context, userID string) (*User, error)
}

// DeviceRepository 设备及其调度任务
type DeviceRepository interface {
	Create(ctx context.Context, device Device, userID string) error
	ExistsForUser(ctx context.Context, deviceID, userID string) (bool, error)
	UserDevices(ctx context.Context, userID string) ([]Device, error)
	UpdateState(ctx context.Context, deviceID, userID string, turnedOn bool, at time.Time) error
	State(ctx context.Context, deviceID, userID string) (bool, error)

	scheduling.TaskStore
}

// MeasureRepository 设备上报的测量值，按时间升序返回
type MeasureRepository interface {
	Create(ctx context.Context, deviceID, userID string, measures []Measure) error
	Since(ctx context.Context, deviceID string, since time.Time) ([]Measure, error)
	UserSince(ctx context.Context, userID string, since time.Time) ([]Measure, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	Close(context.Context) error
}

// User 用户
type User struct {
	UserID         string
	Username       string
	Email          string
	HashedPassword string
}

// Device 设备
type Device struct {
	DeviceID         string
	Name             string
	TurnedOn         bool
	LastStatusUpdate *time.Time
}

// Measure 一次测量
type Measure struct {
	Timestamp time.Time
	Voltage   float64
	Current   float64
}

// Power 功率
func (m Measure) Power() float64 {
	return m.Voltage * m.Current
}
