package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/turnon/wattwise/store/common"
)

var schema = []string{
	`create table if not exists users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL,
		hashed_password TEXT NOT NULL
	)`,
	`create table if not exists devices (
		device_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		turned_on BOOLEAN NOT NULL DEFAULT FALSE,
		last_status_update TIMESTAMPTZ,
		PRIMARY KEY (device_id, user_id)
	)`,
	`create table if not exists device_tasks (
		device_id TEXT PRIMARY KEY,
		tasks TEXT NOT NULL
	)`,
	`create table if not exists measures (
		device_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		voltage DOUBLE PRECISION NOT NULL,
		amperage DOUBLE PRECISION NOT NULL
	)`,
	`create index if not exists measures_device_ts on measures (device_id, ts)`,
}

// Init 初始化pg存储
func Init(ctx context.Context, cfg map[string]any) (common.Store, error) {
	url, _ := cfg["url"].(string)
	if url == "" {
		return nil, errors.New("pg store: url is required")
	}

	conn, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "pg store: connect")
	}

	s := &pgStore{conn: conn}
	if err := s.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// pgStore 基于pg的存储
type pgStore struct {
	conn *pgxpool.Pool
}

// debugf 打印调试信息
func (s *pgStore) debugf(str string, v ...any) {
	log.Debug().Str("mod", "pgstore").Msgf(str, v...)
}

// init 建表
func (s *pgStore) init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "pg store: create schema")
		}
	}
	s.debugf("schema ready")
	return nil
}

func (s *pgStore) Users() common.UserRepository {
	return &pgUsers{conn: s.conn}
}

func (s *pgStore) Devices() common.DeviceRepository {
	return &pgDevices{conn: s.conn}
}

func (s *pgStore) Measures() common.MeasureRepository {
	return &pgMeasures{conn: s.conn}
}

// Close 断开pg
func (s *pgStore) Close(ctx context.Context) error {
	s.conn.Close()
	return nil
}

//------------------------------------------------------------------------------

type pgUsers struct {
	conn *pgxpool.Pool
}

func (users *pgUsers) Create(ctx context.Context, u common.User) error {
	sql := "insert into users (user_id, username, email, hashed_password) values ($1, $2, $3, $4)"
	_, err := users.conn.Exec(ctx, sql, u.UserID, u.Username, u.Email, u.HashedPassword)
	return errors.Wrap(err, "create user")
}

func (users *pgUsers) Get(ctx context.Context, userID string) (*common.User, error) {
	u := common.User{}
	sql := "select user_id, username, email, hashed_password from users where user_id = $1"
	err := users.conn.QueryRow(ctx, sql, userID).Scan(&u.UserID, &u.Username, &u.Email, &u.HashedPassword)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

//------------------------------------------------------------------------------

type pgMeasures struct {
	conn *pgxpool.Pool
}

// Create 用copy批量写入
func (measures *pgMeasures) Create(ctx context.Context, deviceID, userID string, ms []common.Measure) error {
	if len(ms) == 0 {
		return nil
	}
	columns := []string{"device_id", "user_id", "ts", "voltage", "amperage"}
	rows := pgx.CopyFromSlice(len(ms), func(i int) ([]any, error) {
		return []any{deviceID, userID, ms[i].Timestamp.UTC(), ms[i].Voltage, ms[i].Current}, nil
	})
	_, err := measures.conn.CopyFrom(ctx, pgx.Identifier{"measures"}, columns, rows)
	return errors.Wrap(err, "create measures")
}

func (measures *pgMeasures) Since(ctx context.Context, deviceID string, since time.Time) ([]common.Measure, error) {
	sql := "select ts, voltage, amperage from measures where device_id = $1 and ts >= $2 order by ts"
	return measures.query(ctx, sql, deviceID, since.UTC())
}

func (measures *pgMeasures) UserSince(ctx context.Context, userID string, since time.Time) ([]common.Measure, error) {
	sql := "select ts, voltage, amperage from measures where user_id = $1 and ts >= $2 order by ts"
	return measures.query(ctx, sql, userID, since.UTC())
}

func (measures *pgMeasures) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := measures.conn.Exec(ctx, "delete from measures where ts < $1", before.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "delete measures")
	}
	return tag.RowsAffected(), nil
}

func (measures *pgMeasures) Close(ctx context.Context) error {
	return nil
}

func (measures *pgMeasures) query(ctx context.Context, sql string, args ...any) ([]common.Measure, error) {
	var res []common.Measure
	err := measures.conn.AcquireFunc(ctx, func(c *pgxpool.Conn) error {
		rows, queryErr := c.Query(ctx, sql, args...)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			var m common.Measure
			if scanErr := rows.Scan(&m.Timestamp, &m.Voltage, &m.Current); scanErr != nil {
				return scanErr
			}
			m.Timestamp = m.Timestamp.UTC()
			res = append(res, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, "query measures")
	}
	return res, nil
}
