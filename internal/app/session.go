package app

import (
	"context"
	"time"

	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"github.com/taoyao-code/mks-gateway/internal/metrics"
	"github.com/taoyao-code/mks-gateway/internal/session"
	"go.uber.org/zap"
)

// NewSession 构造电机在线跟踪
func NewSession(cfg cfgpkg.SessionConfig, logger *zap.Logger) *session.Manager {
	mgr := session.New(cfg.MaxMotors, cfg.StaleAfter)
	logger.Info("motor tracking initialized",
		zap.Int("max_motors", mgr.Capacity()),
		zap.Duration("stale_after", cfg.StaleAfter))
	return mgr
}

// MotorSync 周期刷新在线电机指标，可选同步到 Redis
type MotorSync struct {
	Manager  *session.Manager
	Mirror   *session.RedisMirror
	Metrics  *metrics.AppMetrics
	Interval time.Duration
	Logger   *zap.Logger
}

// Run 阻塞直至 ctx 结束
func (s *MotorSync) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = session.DefaultStaleAfter
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.tick(ctx, now)
		}
	}
}

func (s *MotorSync) tick(ctx context.Context, now time.Time) {
	if s.Metrics != nil {
		s.Metrics.MotorsOnline.Set(float64(s.Manager.OnlineCount(now)))
	}
	if s.Mirror == nil {
		return
	}
	if err := s.Mirror.Sync(ctx, s.Manager.Snapshot(now)); err != nil && ctx.Err() == nil {
		s.Logger.Warn("motor mirror sync failed", zap.Error(err))
	}
}
