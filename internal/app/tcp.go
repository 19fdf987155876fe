package app

import (
	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"github.com/taoyao-code/mks-gateway/internal/metrics"
	"github.com/taoyao-code/mks-gateway/internal/tcpserver"
	"go.uber.org/zap"
)

// NewTCPServer 根据配置创建 TCP 网关并接入指标
func NewTCPServer(cfg cfgpkg.TCPConfig, appm *metrics.AppMetrics, logger *zap.Logger) *tcpserver.Server {
	s := tcpserver.New(cfg, logger)
	if appm != nil {
		s.SetMetricsCallbacks(
			func() { appm.TCPAccepted.Inc() },
			func(n int) { appm.TCPBytesReceived.Add(float64(n)) },
			func(reason string) { appm.TCPRejected.WithLabelValues(reason).Inc() },
			func() { appm.TCPBadLines.Inc() },
		)
	}
	return s
}
