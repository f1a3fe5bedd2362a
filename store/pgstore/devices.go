package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/turnon/wattwise/scheduling"
	"github.com/turnon/wattwise/store/common"
)

type pgDevices struct {
	conn *pgxpool.Pool
}

func (devices *pgDevices) Create(ctx context.Context, d common.Device, userID string) error {
	sql := "insert into devices (device_id, user_id, name, turned_on) values ($1, $2, $3, $4)"
	_, err := devices.conn.Exec(ctx, sql, d.DeviceID, userID, d.Name, d.TurnedOn)
	return errors.Wrap(err, "create device")
}

func (devices *pgDevices) ExistsForUser(ctx context.Context, deviceID, userID string) (bool, error) {
	var count int
	sql := "select count(device_id) from devices where device_id = $1 and user_id = $2"
	if err := devices.conn.QueryRow(ctx, sql, deviceID, userID).Scan(&count); err != nil {
		return false, errors.Wrap(err, "check device")
	}
	return count > 0, nil
}

func (devices *pgDevices) UserDevices(ctx context.Context, userID string) ([]common.Device, error) {
	var res []common.Device
	err := devices.conn.AcquireFunc(ctx, func(c *pgxpool.Conn) error {
		sql := "select device_id, name, turned_on, last_status_update from devices where user_id = $1 order by device_id"
		rows, queryErr := c.Query(ctx, sql, userID)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			var d common.Device
			if scanErr := rows.Scan(&d.DeviceID, &d.Name, &d.TurnedOn, &d.LastStatusUpdate); scanErr != nil {
				return scanErr
			}
			res = append(res, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, "list devices")
	}
	return res, nil
}

func (devices *pgDevices) UpdateState(ctx context.Context, deviceID, userID string, turnedOn bool, at time.Time) error {
	sql := "update devices set turned_on = $1, last_status_update = $2 where device_id = $3 and user_id = $4"
	_, err := devices.conn.Exec(ctx, sql, turnedOn, at.UTC(), deviceID, userID)
	return errors.Wrap(err, "update device state")
}

func (devices *pgDevices) State(ctx context.Context, deviceID, userID string) (bool, error) {
	var turnedOn bool
	sql := "select turned_on from devices where device_id = $1 and user_id = $2"
	err := devices.conn.QueryRow(ctx, sql, deviceID, userID).Scan(&turnedOn)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "get device state")
	}
	return turnedOn, nil
}

func (devices *pgDevices) SchedulingTasks(ctx context.Context, deviceID string) ([]scheduling.Task, error) {
	var doc string
	err := devices.conn.QueryRow(ctx, "select tasks from device_tasks where device_id = $1", deviceID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return []scheduling.Task{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get scheduling tasks")
	}
	return scheduling.DecodeTasks([]byte(doc))
}

// SetSchedulingTasks 没有则插入，有则覆盖
func (devices *pgDevices) SetSchedulingTasks(ctx context.Context, deviceID string, tasks []scheduling.Task) error {
	doc, err := scheduling.EncodeTasks(tasks)
	if err != nil {
		return err
	}

	sql := `insert into device_tasks (device_id, tasks) values ($1, $2)
		on conflict (device_id) do update set tasks = excluded.tasks`
	_, err = devices.conn.Exec(ctx, sql, deviceID, string(doc))
	return errors.Wrap(err, "set scheduling tasks")
}
