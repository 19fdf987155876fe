package bootstrap

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/mks-gateway/internal/api"
	"github.com/taoyao-code/mks-gateway/internal/api/middleware"
	"github.com/taoyao-code/mks-gateway/internal/app"
	"github.com/taoyao-code/mks-gateway/internal/canbus"
	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"github.com/taoyao-code/mks-gateway/internal/gateway"
	"github.com/taoyao-code/mks-gateway/internal/health"
	"github.com/taoyao-code/mks-gateway/internal/metrics"
	"github.com/taoyao-code/mks-gateway/internal/protocol/mks"
	"github.com/taoyao-code/mks-gateway/internal/session"
	"github.com/taoyao-code/mks-gateway/internal/tcpserver"
)

// ErrNoSource 未启用任何帧来源
var ErrNoSource = errors.New("no frame source enabled")

// Run 统一启动流程，阻塞至 ctx 结束或回放类来源全部结束（仅回放时）
func Run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger, stdout io.Writer) error {
	serverID := app.GenerateServerID()
	log = log.With(zap.String("server_id", serverID))
	log.Info("starting mks gateway", zap.String("env", cfg.App.Env))

	// ========== 阶段1: 基础组件 ==========
	reg, appm := app.NewMetrics()
	ready := health.New()
	sess := app.NewSession(cfg.Session, log)
	filter := app.BusFilter(cfg.Bus)

	// ========== 阶段2: Redis（可选，失败直接返回）==========
	redisClient, err := app.NewRedisClient(ctx, cfg.Output.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// ========== 阶段3: 解码管线 ==========
	dec := mks.NewDecoder(nil)
	out := app.NewSink(cfg.Output, stdout, redisClient, serverID, appm, log)
	pipe := gateway.New(gateway.Options{
		Filter:         filter,
		VerifyChecksum: cfg.Decoder.VerifyChecksum,
		QueueSize:      cfg.Decoder.QueueSize,
	}, dec, sess, out, appm, log)

	// ========== 阶段4: 帧来源 ==========
	var tcpSrv *tcpserver.Server
	sources := app.NewSources(cfg.Sources, filter, log)
	if cfg.Sources.TCP.Enable {
		tcpSrv = app.NewTCPServer(cfg.Sources.TCP, appm, log)
		sources = append(sources, tcpSrv)
	}
	if len(sources) == 0 {
		return ErrNoSource
	}
	for _, s := range sources {
		ready.Expect(s.Name())
	}

	// ========== 阶段5: HTTP ==========
	healthAgg := app.NewHealthAggregator(func() time.Time { return pipe.Stats().LastFrame }, 10*cfg.Session.StaleAfter)
	app.AddTCPChecker(healthAgg, tcpSrv)
	app.AddRedisChecker(healthAgg, redisClient)

	var metricsHandler = metrics.Handler(reg)
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}
	httpSrv := app.NewHTTPServer(cfg.HTTP, cfg.Metrics.Path, metricsHandler, ready.Ready, log)
	var mirror *session.RedisMirror
	if redisClient != nil && cfg.Output.Redis.MirrorMotors {
		mirror = session.NewRedisMirror(redisClient.Client, serverID, 5*cfg.Session.StaleAfter)
	}
	apiHandler := api.NewHandler(dec, sess, log)
	if mirror != nil {
		apiHandler.SetMirror(mirror)
	}
	httpSrv.Register(func(r gin.IRouter) {
		api.RegisterRoutes(r, apiHandler, middleware.AuthConfig{APIKeys: cfg.HTTP.APIKeys}, log)
		health.RegisterHTTPRoutes(r, healthAgg)
	})
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()

	// ========== 阶段6: 运行 ==========
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	syncer := &app.MotorSync{Manager: sess, Mirror: mirror, Metrics: appm, Interval: cfg.Session.StaleAfter, Logger: log}

	// 管线在所有来源返回后才取消，保证已投递的帧全部处理
	pipeCtx, pipeCancel := context.WithCancel(context.Background())
	defer pipeCancel()

	var wg sync.WaitGroup
	pipeDone := make(chan struct{})
	go func() {
		defer close(pipeDone)
		_ = pipe.Run(pipeCtx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		syncer.Run(runCtx)
	}()

	errC := make(chan error, len(sources))
	srcWG := runSources(runCtx, sources, pipe, ready, log, errC)

	// 只有回放来源时，回放结束即退出
	finite := onlyReplay(sources)
	srcDone := make(chan struct{})
	go func() {
		srcWG.Wait()
		close(srcDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, gracefully shutting down...")
	case err := <-errC:
		runErr = err
		log.Error("frame source failed", zap.Error(err))
	case <-waitIf(finite, srcDone):
		select {
		case runErr = <-errC:
			log.Error("frame source failed", zap.Error(runErr))
		default:
			log.Info("replay finished")
		}
	}

	// 等待来源停止，再停管线（管线会排空队列）
	cancel()
	srcWG.Wait()
	pipeCancel()
	<-pipeDone
	wg.Wait()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)

	st := pipe.Stats()
	log.Info("shutdown complete", zap.Uint64("processed", st.Processed), zap.Uint64("emitted", st.Emitted))
	return runErr
}

func runSources(ctx context.Context, sources []canbus.Source, pipe *gateway.Pipeline, ready *health.Readiness, log *zap.Logger, errC chan<- error) *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, s := range sources {
		wg.Add(1)
		go func(s canbus.Source) {
			defer wg.Done()
			if n, ok := s.(canbus.ReadyNotifier); ok {
				n.SetOnReady(func() {
					log.Info("frame source ready", zap.String("source", s.Name()))
					ready.Set(s.Name(), true)
				})
			} else {
				ready.Set(s.Name(), true)
			}
			err := s.Run(ctx, pipe.Handler(ctx, s.Name()))
			ready.Set(s.Name(), false)
			if err != nil && !errors.Is(err, context.Canceled) {
				errC <- err
				return
			}
			log.Info("frame source stopped", zap.String("source", s.Name()))
		}(s)
	}
	return &wg
}

func onlyReplay(sources []canbus.Source) bool {
	for _, s := range sources {
		if _, ok := s.(*canbus.Replay); !ok {
			return false
		}
	}
	return true
}

// waitIf cond 为 false 时返回永不关闭的通道
func waitIf(cond bool, ch <-chan struct{}) <-chan struct{} {
	if cond {
		return ch
	}
	return nil
}
