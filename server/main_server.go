package server

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/turnon/wattwise/store"
)

// config 服务器配置
type config struct {
	Port       int            `yaml:"port"`
	Secret     string         `yaml:"secret"`
	LogLevel   string         `yaml:"log_level"`
	RatePerSec float64        `yaml:"rate_per_sec"`
	Store      map[string]any `yaml:"store"`
	Measures   map[string]any `yaml:"measures"`
	Retention  retention      `yaml:"retention"`
}

// retention 测量值保留策略，schedule为空时不清理
type retention struct {
	Schedule string `yaml:"schedule"`
	Keep     string `yaml:"keep"`

	keep time.Duration
}

// mainServer 主服务器
type mainServer struct {
	cfg *config
}

// subordinate 从服务器
type subordinate interface {
	wait() chan struct{}
}

// loadConfig 读取配置，支持环境变量
func loadConfig(cfgPath string) (*config, error) {
	bytesArr, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var cfg config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(bytesArr))), &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if cfg.Port <= 0 {
		cfg.Port = 80
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = zerolog.LevelInfoValue
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("secret is required")
	}
	if len(cfg.Store) == 0 {
		return nil, errors.New("store is required")
	}
	if cfg.Retention.Schedule != "" {
		keep, err := time.ParseDuration(cfg.Retention.Keep)
		if err != nil {
			return nil, errors.Wrap(err, "retention.keep")
		}
		if keep <= 0 {
			return nil, errors.New("retention.keep must be positive")
		}
		cfg.Retention.keep = keep
	}
	return &cfg, nil
}

// setupLogger 日志级别和错误堆栈
func setupLogger(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "log_level")
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	return nil
}

// Run 根据配置启动服务器
func Run(cfgPath string) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		panic(err)
	}
	if err := setupLogger(cfg.LogLevel); err != nil {
		panic(err)
	}

	srv := mainServer{cfg: cfg}
	<-srv.run()
}

// run 运行主服务器和从服务器
func (srv *mainServer) run() chan struct{} {
	ch := make(chan struct{})
	sigCtx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// 连接存储
	s, err := store.New(sigCtx, srv.cfg.Store, srv.cfg.Measures)
	if err != nil {
		log.Error().Str("mod", "server").Stack().Err(err).Msg("store.New")
		close(ch)
		return ch
	}

	// 运行从服务器
	children := []subordinate{newApi(sigCtx, srv.cfg, s)}
	if srv.cfg.Retention.Schedule != "" {
		j, err := newJanitor(sigCtx, srv.cfg.Retention.Schedule, srv.cfg.Retention.keep, s.Measures())
		if err != nil {
			log.Error().Str("mod", "server").Err(err).Msg("retention.schedule")
		} else {
			children = append(children, j)
		}
	}

	// 等待从服务器退出后关闭存储
	go func() {
		defer close(ch)
		for _, child := range children {
			<-child.wait()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Close(ctx); err != nil {
			for _, e := range multierr.Errors(err) {
				log.Error().Str("mod", "server").Err(e).Msg("close store")
			}
			return
		}
		log.Info().Str("mod", "server").Msg("bye")
	}()

	return ch
}
