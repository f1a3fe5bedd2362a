package chmeasures

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"github.com/turnon/wattwise/store/common"
)

const createTable = `
CREATE TABLE IF NOT EXISTS measures (
	device_id String,
	user_id String,
	ts DateTime64(3, 'UTC'),
	voltage Float64,
	amperage Float64
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (user_id, device_id, ts)`

// Init 连接clickhouse，测量值写到clickhouse
func Init(ctx context.Context, cfg map[string]any) (common.MeasureRepository, error) {
	connect, err := newConnect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: connect.addrs,
		Auth: clickhouse.Auth{
			Database: connect.database,
			Username: connect.username,
			Password: connect.password,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "clickhouse: open")
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "clickhouse: ping")
	}
	if err := conn.Exec(ctx, createTable); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "clickhouse: create table")
	}

	log.Info().Str("mod", "chmeasures").Strs("addrs", connect.addrs).Msg("connected")
	return &clickhouseMeasures{conn: conn}, nil
}

type clickhouseConnect struct {
	addrs    []string
	database string
	username string
	password string
}

// newConnect 从配置中读取连接参数
func newConnect(cfg map[string]any) (clickhouseConnect, error) {
	connect := clickhouseConnect{}
	switch addrs := cfg["addrs"].(type) {
	case []string:
		connect.addrs = addrs
	case []any:
		for _, a := range addrs {
			if s, ok := a.(string); ok {
				connect.addrs = append(connect.addrs, s)
			}
		}
	}
	if len(connect.addrs) == 0 {
		return connect, errors.New("clickhouse: addrs is required")
	}
	connect.database, _ = cfg["database"].(string)
	connect.username, _ = cfg["username"].(string)
	connect.password, _ = cfg["password"].(string)
	return connect, nil
}

//------------------------------------------------------------------------------

type clickhouseMeasures struct {
	conn driver.Conn
}

// Create 一批写入
func (ch *clickhouseMeasures) Create(ctx context.Context, deviceID, userID string, ms []common.Measure) error {
	if len(ms) == 0 {
		return nil
	}
	batch, err := ch.conn.PrepareBatch(ctx, "INSERT INTO measures (device_id, user_id, ts, voltage, amperage)")
	if err != nil {
		return errors.Wrap(err, "clickhouse: prepare batch")
	}
	return sendBatch(batch, deviceID, userID, ms)
}

// sendBatch 追加后发送，追加失败时放弃整批
func sendBatch(batch driver.Batch, deviceID, userID string, ms []common.Measure) error {
	for _, m := range ms {
		if err := batch.Append(deviceID, userID, m.Timestamp.UTC(), m.Voltage, m.Current); err != nil {
			return multierr.Append(errors.Wrap(err, "clickhouse: append"), batch.Abort())
		}
	}
	return errors.Wrap(batch.Send(), "clickhouse: send batch")
}

func (ch *clickhouseMeasures) Since(ctx context.Context, deviceID string, since time.Time) ([]common.Measure, error) {
	return ch.query(ctx,
		"SELECT ts, voltage, amperage FROM measures WHERE device_id = ? AND ts >= ? ORDER BY ts",
		deviceID, since.UTC())
}

func (ch *clickhouseMeasures) UserSince(ctx context.Context, userID string, since time.Time) ([]common.Measure, error) {
	return ch.query(ctx,
		"SELECT ts, voltage, amperage FROM measures WHERE user_id = ? AND ts >= ? ORDER BY ts",
		userID, since.UTC())
}

// DeleteBefore clickhouse的删除是异步的，返回提交删除时匹配的行数
func (ch *clickhouseMeasures) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	var count uint64
	if err := ch.conn.QueryRow(ctx, "SELECT count() FROM measures WHERE ts < ?", before.UTC()).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "clickhouse: count expired")
	}
	if count == 0 {
		return 0, nil
	}
	if err := ch.conn.Exec(ctx, "ALTER TABLE measures DELETE WHERE ts < ?", before.UTC()); err != nil {
		return 0, errors.Wrap(err, "clickhouse: delete expired")
	}
	return int64(count), nil
}

func (ch *clickhouseMeasures) Close(ctx context.Context) error {
	return ch.conn.Close()
}

func (ch *clickhouseMeasures) query(ctx context.Context, query string, args ...any) ([]common.Measure, error) {
	rows, err := ch.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "clickhouse: query")
	}
	defer rows.Close()

	var res []common.Measure
	for rows.Next() {
		var m common.Measure
		if err := rows.Scan(&m.Timestamp, &m.Voltage, &m.Current); err != nil {
			return nil, errors.Wrap(err, "clickhouse: scan")
		}
		m.Timestamp = m.Timestamp.UTC()
		res = append(res, m)
	}
	return res, errors.Wrap(rows.Err(), "clickhouse: rows")
}
