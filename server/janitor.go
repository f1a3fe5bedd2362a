package server

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/turnon/wattwise/scheduling"
	"github.com/turnon/wattwise/store/common"
)

// janitor 定期清理过期的测量值
type janitor struct {
	ctx      context.Context
	measures common.MeasureRepository
	clock    scheduling.Clock
	keep     time.Duration
	cron     *cron.Cron
	ch       chan struct{}
}

// newJanitor 创建并启动janitor
func newJanitor(ctx context.Context, schedule string, keep time.Duration, measures common.MeasureRepository) (*janitor, error) {
	j := &janitor{
		ctx:      ctx,
		measures: measures,
		clock:    scheduling.SystemClock{},
		keep:     keep,
		cron:     cron.New(),
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, err
	}
	j.loop()
	return j, nil
}

// wait 等待janitor退出
func (j *janitor) wait() chan struct{} {
	return j.ch
}

func (j *janitor) logInfo(str string, v ...any) {
	log.Info().Str("mod", "janitor").Msgf(str, v...)
}

// loop 运行cron直到ctx结束
func (j *janitor) loop() {
	j.ch = make(chan struct{})
	j.cron.Start()
	j.logInfo("start")

	go func() {
		defer close(j.ch)
		<-j.ctx.Done()
		<-j.cron.Stop().Done()
		j.logInfo("stop")
	}()
}

// sweep 删除keep之前的测量值
func (j *janitor) sweep() {
	before := j.clock.Now().Add(-j.keep)
	deleted, err := j.measures.DeleteBefore(j.ctx, before)
	if err != nil {
		log.Error().Str("mod", "janitor").Stack().Err(err).Send()
		return
	}
	j.logInfo("deleted %d measures before %s", deleted, before.Format(time.RFC3339))
}
