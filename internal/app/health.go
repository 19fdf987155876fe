package app

import (
	"time"

	"github.com/taoyao-code/mks-gateway/internal/health"
	redisstorage "github.com/taoyao-code/mks-gateway/internal/storage/redis"
	"github.com/taoyao-code/mks-gateway/internal/tcpserver"
)

// NewHealthAggregator 创建健康检查聚合器，初始包含总线静默检查
func NewHealthAggregator(lastFrame func() time.Time, quietAfter time.Duration) *health.Aggregator {
	return health.NewAggregator(health.NewBusChecker(lastFrame, quietAfter))
}

// AddTCPChecker 添加TCP检查器到聚合器
func AddTCPChecker(aggregator *health.Aggregator, tcpServer *tcpserver.Server) {
	if tcpServer != nil {
		aggregator.AddChecker(health.NewTCPChecker(tcpServer))
	}
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.Client) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient.Client))
	}
}
