package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/mks-gateway/internal/tcpserver"
)

// TCPStats TCP 网关统计来源
type TCPStats interface {
	ActiveConnections() int
	MaxConnections() int
	GetLimiterStats() tcpserver.LimiterStats
	GetRateLimiterStats() tcpserver.RateLimiterStats
}

// TCPChecker 连接占用率检查
type TCPChecker struct {
	server TCPStats
}

func NewTCPChecker(server TCPStats) *TCPChecker {
	return &TCPChecker{server: server}
}

func (c *TCPChecker) Name() string { return "tcp" }

func (c *TCPChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	active, limit := c.server.ActiveConnections(), c.server.MaxConnections()

	details := map[string]any{
		"active_connections": active,
		"max_connections":    limit,
		"rejected_total":     c.server.GetLimiterStats().RejectedTotal,
		"rate_rejected":      c.server.GetRateLimiterStats().RejectedTotal,
	}
	if limit <= 0 {
		return CheckResult{Status: StatusHealthy, Message: "no limiting enabled", Details: details, Latency: time.Since(start)}
	}

	utilization := float64(active) / float64(limit)
	details["utilization"] = fmt.Sprintf("%.1f%%", utilization*100)

	status, message := StatusHealthy, "ok"
	switch {
	case utilization >= 1:
		status, message = StatusUnhealthy, "connection limit exhausted"
	case utilization > 0.8:
		status, message = StatusDegraded, "high connection usage"
	}
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
