package sqlstore

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/turnon/wattwise/store/common"
	_ "modernc.org/sqlite"
)

// 时间统一存为毫秒时间戳，sqlite和mysql通用
var schema = []string{
	`create table if not exists users (
		user_id VARCHAR(64) NOT NULL PRIMARY KEY,
		username VARCHAR(32) NOT NULL,
		email VARCHAR(255) NOT NULL,
		hashed_password VARCHAR(255) NOT NULL
	)`,
	`create table if not exists devices (
		device_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		turned_on BOOLEAN NOT NULL DEFAULT FALSE,
		last_status_update BIGINT,
		PRIMARY KEY (device_id, user_id)
	)`,
	`create table if not exists device_tasks (
		device_id VARCHAR(64) NOT NULL PRIMARY KEY,
		tasks TEXT NOT NULL
	)`,
	`create table if not exists measures (
		device_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		ts BIGINT NOT NULL,
		voltage DOUBLE PRECISION NOT NULL,
		amperage DOUBLE PRECISION NOT NULL
	)`,
}

// Init 打开数据库并建表，driver为sqlite或mysql
func Init(ctx context.Context, driver string, cfg map[string]any) (common.Store, error) {
	if _, ok := upsertTasks[driver]; !ok {
		return nil, errors.Errorf("unsupported sql driver %q", driver)
	}
	dsn, _ := cfg["url"].(string)
	if dsn == "" {
		return nil, errors.Errorf("%s store: url is required", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "%s store: open", driver)
	}
	if driver == "sqlite" {
		// sqlite只用一个连接，内存库也不会丢
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	}

	s := &sqlStore{db: db, driver: driver}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqlStore 基于database/sql的存储
type sqlStore struct {
	db     *sql.DB
	driver string
}

// debugf 打印调试信息
func (s *sqlStore) debugf(str string, v ...any) {
	log.Debug().Str("mod", "sqlstore").Str("driver", s.driver).Msgf(str, v...)
}

// init 建表
func (s *sqlStore) init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "%s store: create schema", s.driver)
		}
	}
	s.debugf("schema ready")
	return nil
}

func (s *sqlStore) Users() common.UserRepository {
	return &sqlUsers{db: s.db}
}

func (s *sqlStore) Devices() common.DeviceRepository {
	return &sqlDevices{db: s.db, driver: s.driver}
}

func (s *sqlStore) Measures() common.MeasureRepository {
	return &sqlMeasures{db: s.db}
}

// Close 关闭数据库
func (s *sqlStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

//------------------------------------------------------------------------------

type sqlUsers struct {
	db *sql.DB
}

func (users *sqlUsers) Create(ctx context.Context, u common.User) error {
	_, err := users.db.ExecContext(ctx,
		"insert into users (user_id, username, email, hashed_password) values (?, ?, ?, ?)",
		u.UserID, u.Username, u.Email, u.HashedPassword)
	return errors.Wrap(err, "create user")
}

func (users *sqlUsers) Get(ctx context.Context, userID string) (*common.User, error) {
	u := common.User{}
	err := users.db.QueryRowContext(ctx,
		"select user_id, username, email, hashed_password from users where user_id = ?", userID).
		Scan(&u.UserID, &u.Username, &u.Email, &u.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

//------------------------------------------------------------------------------

type sqlMeasures struct {
	db *sql.DB
}

// Create 在一个事务里写入
func (measures *sqlMeasures) Create(ctx context.Context, deviceID, userID string, ms []common.Measure) error {
	if len(ms) == 0 {
		return nil
	}
	tx, err := measures.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "create measures")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"insert into measures (device_id, user_id, ts, voltage, amperage) values (?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "create measures")
	}
	defer stmt.Close()

	for _, m := range ms {
		if _, err := stmt.ExecContext(ctx, deviceID, userID, toMillis(m.Timestamp), m.Voltage, m.Current); err != nil {
			return errors.Wrap(err, "create measures")
		}
	}
	return errors.Wrap(tx.Commit(), "create measures")
}

func (measures *sqlMeasures) Since(ctx context.Context, deviceID string, since time.Time) ([]common.Measure, error) {
	return measures.query(ctx,
		"select ts, voltage, amperage from measures where device_id = ? and ts >= ? order by ts",
		deviceID, toMillis(since))
}

func (measures *sqlMeasures) UserSince(ctx context.Context, userID string, since time.Time) ([]common.Measure, error) {
	return measures.query(ctx,
		"select ts, voltage, amperage from measures where user_id = ? and ts >= ? order by ts",
		userID, toMillis(since))
}

func (measures *sqlMeasures) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := measures.db.ExecContext(ctx, "delete from measures where ts < ?", toMillis(before))
	if err != nil {
		return 0, errors.Wrap(err, "delete measures")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "delete measures")
}

func (measures *sqlMeasures) Close(ctx context.Context) error {
	return nil
}

func (measures *sqlMeasures) query(ctx context.Context, query string, args ...any) ([]common.Measure, error) {
	rows, err := measures.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query measures")
	}
	defer rows.Close()

	var res []common.Measure
	for rows.Next() {
		var (
			m  common.Measure
			ts int64
		)
		if err := rows.Scan(&ts, &m.Voltage, &m.Current); err != nil {
			return nil, errors.Wrap(err, "query measures")
		}
		m.Timestamp = fromMillis(ts)
		res = append(res, m)
	}
	return res, errors.Wrap(rows.Err(), "query measures")
}
