package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/turnon/wattwise/scheduling"
	"github.com/turnon/wattwise/store/common"
)

const mod = "api"

type ApplicationInterface struct {
	port      int
	ch        chan struct{}
	ctx       context.Context
	store     common.Store
	clock     scheduling.Clock
	auth      *authority
	limiters  *localcache
	retriever *scheduling.Retriever
	updater   *scheduling.Updater
}

func newApplicationInterface(ctx context.Context, cfg *config, s common.Store, clock scheduling.Clock) *ApplicationInterface {
	api := &ApplicationInterface{
		ctx:       ctx,
		port:      cfg.Port,
		store:     s,
		clock:     clock,
		auth:      &authority{secret: []byte(cfg.Secret), now: time.Now},
		retriever: scheduling.NewRetriever(s.Devices(), s.Devices(), clock),
		updater:   scheduling.NewUpdater(s.Devices(), s.Devices()),
	}
	if cfg.RatePerSec > 0 {
		api.limiters = newLocalcache(rate.Limit(cfg.RatePerSec), int(cfg.RatePerSec)+1)
	}
	return api
}

func newApi(ctx context.Context, cfg *config, s common.Store) *ApplicationInterface {
	api := newApplicationInterface(ctx, cfg, s, scheduling.SystemClock{})
	api.start()
	return api
}

// wait 等待api退出
func (api *ApplicationInterface) wait() chan struct{} {
	return api.ch
}

// logErr 输出日志
func (api *ApplicationInterface) logErr(err error) {
	log.Error().Str("mod", mod).Stack().Err(err).Send()
}

// router 注册路由
func (api *ApplicationInterface) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger())
	router.Use(gin.Recovery())
	router.Use(cors())
	if api.limiters != nil {
		router.Use(api.rateLimit())
	}

	public := api.require(permissionPublic)
	user := api.require(permissionUser)
	device := api.require(permissionDevice)

	v1 := router.Group("api").Group("/v1")
	{
		v1.POST("/users", public, api.register)
		v1.POST("/users/login", public, api.login)

		v1.GET("/devices", user, api.listDevices)
		v1.POST("/devices", user, api.createDevice)
		v1.POST("/devices/:device_id/token", user, api.deviceToken)
		v1.GET("/devices/:device_id/state", device, api.getState)
		v1.PUT("/devices/:device_id/state", device, api.updateState)
		v1.POST("/devices/:device_id/measure", device, api.addMeasure)
		v1.POST("/devices/:device_id/measures", device, api.addMeasures)
		v1.GET("/devices/:device_id/measures", user, api.getMeasures)
		v1.GET("/measures", user, api.getAllMeasures)

		v1.POST("/devices/:device_id/scheduler/tasks", user, api.setSchedulingTasks)
		v1.GET("/devices/:device_id/scheduler/tasks", device, api.getSchedulingTasks)
		v1.GET("/devices/:device_id/scheduler/next_action", device, api.getNextSchedulingAction)
	}
	return router
}

func (api *ApplicationInterface) start() {
	api.ch = make(chan struct{})
	if api.port == 0 {
		api.port = 80
	}

	httpSrv := &http.Server{
		Addr:    ":" + strconv.Itoa(api.port),
		Handler: api.router(),
	}

	go func() {
		log.Info().Str("mod", mod).Int("port", api.port).Msg("listen")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			api.logErr(err)
		}
	}()

	go func() {
		<-api.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(ctx)
		if err == nil {
			log.Info().Str("mod", mod).Msg("shutdown")
		} else {
			api.logErr(err)
		}
		close(api.ch)
	}()
}

// badRequest 客户端错误
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}

// validationFailed 返回全部校验错误
func validationFailed(c *gin.Context, violations []string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message":           "Validation failed",
		"validation_errors": violations,
	})
}

// serverError 记录错误，只返回笼统的信息
func (api *ApplicationInterface) serverError(c *gin.Context, err error, message string) {
	log.Error().Str("mod", mod).Str("path", c.FullPath()).Stack().Err(err).Send()
	c.JSON(http.StatusInternalServerError, gin.H{"message": message})
}

// logWarn 记录客户端错误
func logWarn(c *gin.Context, err error) {
	log.Warn().Str("mod", mod).Str("path", c.FullPath()).Err(err).Send()
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		startTime := time.Now()
		requestID := xid.New().String()
		ctx.Header("X-Request-Id", requestID)

		ctx.Next()

		log.
			Info().
			Str("mod", mod).
			Str("request_id", requestID).
			Int("code", ctx.Writer.Status()).
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.RequestURI).
			TimeDiff("latency", time.Now(), startTime).
			Send()
	}
}

// cors 允许跨域
func cors() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if origin == "" {
			ctx.Next()
			return
		}
		ctx.Header("Access-Control-Allow-Origin", origin)
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		ctx.Header("Vary", "Origin")
		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

var errTooManyRequests = errors.New("too many requests")

// rateLimit 按客户端ip限流
func (api *ApplicationInterface) rateLimit() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !api.limiters.get(ctx.ClientIP()).Allow() {
			logWarn(ctx, errTooManyRequests)
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}
		ctx.Next()
	}
}
