package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/turnon/wattwise/scheduling"
	"github.com/turnon/wattwise/store/common"
)

// upsertTasks 各driver的插入或覆盖语句
var upsertTasks = map[string]string{
	"sqlite": `insert into device_tasks (device_id, tasks) values (?, ?)
		on conflict (device_id) do update set tasks = excluded.tasks`,
	"mysql": `insert into device_tasks (device_id, tasks) values (?, ?)
		on duplicate key update tasks = values(tasks)`,
}

type sqlDevices struct {
	db     *sql.DB
	driver string
}

func (devices *sqlDevices) Create(ctx context.Context, d common.Device, userID string) error {
	_, err := devices.db.ExecContext(ctx,
		"insert into devices (device_id, user_id, name, turned_on) values (?, ?, ?, ?)",
		d.DeviceID, userID, d.Name, d.TurnedOn)
	return errors.Wrap(err, "create device")
}

func (devices *sqlDevices) ExistsForUser(ctx context.Context, deviceID, userID string) (bool, error) {
	var count int
	err := devices.db.QueryRowContext(ctx,
		"select count(device_id) from devices where device_id = ? and user_id = ?", deviceID, userID).
		Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "check device")
	}
	return count > 0, nil
}

func (devices *sqlDevices) UserDevices(ctx context.Context, userID string) ([]common.Device, error) {
	rows, err := devices.db.QueryContext(ctx,
		"select device_id, name, turned_on, last_status_update from devices where user_id = ? order by device_id", userID)
	if err != nil {
		return nil, errors.Wrap(err, "list devices")
	}
	defer rows.Close()

	var res []common.Device
	for rows.Next() {
		var (
			d          common.Device
			lastUpdate sql.NullInt64
		)
		if err := rows.Scan(&d.DeviceID, &d.Name, &d.TurnedOn, &lastUpdate); err != nil {
			return nil, errors.Wrap(err, "list devices")
		}
		if lastUpdate.Valid {
			at := fromMillis(lastUpdate.Int64)
			d.LastStatusUpdate = &at
		}
		res = append(res, d)
	}
	return res, errors.Wrap(rows.Err(), "list devices")
}

func (devices *sqlDevices) UpdateState(ctx context.Context, deviceID, userID string, turnedOn bool, at time.Time) error {
	_, err := devices.db.ExecContext(ctx,
		"update devices set turned_on = ?, last_status_update = ? where device_id = ? and user_id = ?",
		turnedOn, toMillis(at), deviceID, userID)
	return errors.Wrap(err, "update device state")
}

func (devices *sqlDevices) State(ctx context.Context, deviceID, userID string) (bool, error) {
	var turnedOn bool
	err := devices.db.QueryRowContext(ctx,
		"select turned_on from devices where device_id = ? and user_id = ?", deviceID, userID).
		Scan(&turnedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "get device state")
	}
	return turnedOn, nil
}

func (devices *sqlDevices) SchedulingTasks(ctx context.Context, deviceID string) ([]scheduling.Task, error) {
	var doc string
	err := devices.db.QueryRowContext(ctx, "select tasks from device_tasks where device_id = ?", deviceID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return []scheduling.Task{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get scheduling tasks")
	}
	return scheduling.DecodeTasks([]byte(doc))
}

// SetSchedulingTasks 没有则插入，有则覆盖
func (devices *sqlDevices) SetSchedulingTasks(ctx context.Context, deviceID string, tasks []scheduling.Task) error {
	doc, err := scheduling.EncodeTasks(tasks)
	if err != nil {
		return err
	}

	_, err = devices.db.ExecContext(ctx, upsertTasks[devices.driver], deviceID, string(doc))
	return errors.Wrap(err, "set scheduling tasks")
}
