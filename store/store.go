package store

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/turnon/wattwise/store/chmeasures"
	"github.com/turnon/wattwise/store/common"
	"github.com/turnon/wattwise/store/pgstore"
	"github.com/turnon/wattwise/store/sqlstore"
)

// New 根据配置中的type创建存储，measuresCfg不为空时测量值另存
func New(ctx context.Context, cfg map[string]any, measuresCfg map[string]any) (common.Store, error) {
	s, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(measuresCfg) == 0 {
		return s, nil
	}

	measures, err := newMeasures(ctx, measuresCfg)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return &splitStore{Store: s, measures: measures}, nil
}

func newStore(ctx context.Context, cfg map[string]any) (common.Store, error) {
	switch cfg["type"] {
	case "pg":
		return pgstore.Init(ctx, cfg)
	case "sqlite":
		return sqlstore.Init(ctx, "sqlite", cfg)
	case "mysql":
		return sqlstore.Init(ctx, "mysql", cfg)
	}
	return nil, errors.Errorf("unknown store type %v", cfg["type"])
}

func newMeasures(ctx context.Context, cfg map[string]any) (common.MeasureRepository, error) {
	switch cfg["type"] {
	case "clickhouse":
		return chmeasures.Init(ctx, cfg)
	}
	return nil, errors.Errorf("unknown measures type %v", cfg["type"])
}

// splitStore 测量值使用单独的仓库
type splitStore struct {
	common.Store
	measures common.MeasureRepository
}

func (s *splitStore) Measures() common.MeasureRepository {
	return s.measures
}

func (s *splitStore) Close(ctx context.Context) error {
	return multierr.Append(s.measures.Close(ctx), s.Store.Close(ctx))
}
