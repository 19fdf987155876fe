package app

import (
	"io"

	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"github.com/taoyao-code/mks-gateway/internal/metrics"
	"github.com/taoyao-code/mks-gateway/internal/sink"
	redisstorage "github.com/taoyao-code/mks-gateway/internal/storage/redis"
	"go.uber.org/zap"
)

// NewSink 组合显示行输出：stdout、Redis 发布；均未启用时写日志
func NewSink(cfg cfgpkg.OutputConfig, stdout io.Writer, redisClient *redisstorage.Client, serverID string, appm *metrics.AppMetrics, logger *zap.Logger) *sink.Multi {
	var sinks []sink.Named
	if cfg.Stdout {
		sinks = append(sinks, sink.Named{Name: "stdout", Sink: sink.NewWriter(stdout)})
	}
	if redisClient != nil {
		sinks = append(sinks, sink.Named{Name: "redis", Sink: sink.NewRedis(redisClient.Client, cfg.Redis.Channel, serverID)})
	}
	if len(sinks) == 0 {
		sinks = append(sinks, sink.Named{Name: "log", Sink: sink.NewLogger(logger)})
	}
	onError := func(name string, err error) {
		if appm != nil {
			appm.SinkErrors.WithLabelValues(name).Inc()
		}
	}
	return sink.NewMulti(onError, sinks...)
}
