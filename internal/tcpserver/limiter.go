package tcpserver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxConnections = 64
	defaultAcceptRate     = 10
)

// ConnectionLimiter 并发连接上限（信号量）
type ConnectionLimiter struct {
	slots    chan struct{}
	wait     time.Duration
	active   atomic.Int64
	rejected atomic.Int64
}

// NewConnectionLimiter maxConn<=0 时取默认值；wait 为等待空位的最长时间
func NewConnectionLimiter(maxConn int, wait time.Duration) *ConnectionLimiter {
	if maxConn <= 0 {
		maxConn = defaultMaxConnections
	}
	if wait <= 0 {
		wait = time.Second
	}
	return &ConnectionLimiter{slots: make(chan struct{}, maxConn), wait: wait}
}

// Acquire 占用一个连接位
func (l *ConnectionLimiter) Acquire(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		l.rejected.Add(1)
		return fmt.Errorf("connection limit exceeded: max=%d", cap(l.slots))
	}
}

// Release 归还连接位
func (l *ConnectionLimiter) Release() {
	select {
	case <-l.slots:
		l.active.Add(-1)
	default:
	}
}

func (l *ConnectionLimiter) Current() int         { return int(l.active.Load()) }
func (l *ConnectionLimiter) MaxConnections() int  { return cap(l.slots) }
func (l *ConnectionLimiter) RejectedCount() int64 { return l.rejected.Load() }

// Stats 统计快照
func (l *ConnectionLimiter) Stats() LimiterStats {
	cur := l.Current()
	return LimiterStats{
		MaxConnections:    cap(l.slots),
		ActiveConnections: cur,
		RejectedTotal:     l.RejectedCount(),
		Utilization:       float64(cur) / float64(cap(l.slots)),
	}
}

// LimiterStats 连接限流统计
type LimiterStats struct {
	MaxConnections    int     `json:"max_connections"`
	ActiveConnections int     `json:"active_connections"`
	RejectedTotal     int64   `json:"rejected_total"`
	Utilization       float64 `json:"utilization"`
}

// RateLimiter 接入速率（令牌桶）
type RateLimiter struct {
	bucket   *rate.Limiter
	perSec   int
	burst    int
	allowed  atomic.Int64
	rejected atomic.Int64
}

// NewRateLimiter burst<=0 时取 2*perSec
func NewRateLimiter(perSec, burst int) *RateLimiter {
	if perSec <= 0 {
		perSec = defaultAcceptRate
	}
	if burst <= 0 {
		burst = perSec * 2
	}
	return &RateLimiter{bucket: rate.NewLimiter(rate.Limit(perSec), burst), perSec: perSec, burst: burst}
}

// Allow 非阻塞取令牌
func (l *RateLimiter) Allow() bool {
	if !l.bucket.Allow() {
		l.rejected.Add(1)
		return false
	}
	l.allowed.Add(1)
	return true
}

// Stats 统计快照
func (l *RateLimiter) Stats() RateLimiterStats {
	return RateLimiterStats{
		RatePerSecond: l.perSec,
		Burst:         l.burst,
		AllowedTotal:  l.allowed.Load(),
		RejectedTotal: l.rejected.Load(),
	}
}

// RateLimiterStats 速率限流统计
type RateLimiterStats struct {
	RatePerSecond int   `json:"rate_per_second"`
	Burst         int   `json:"burst"`
	AllowedTotal  int64 `json:"allowed_total"`
	RejectedTotal int64 `json:"rejected_total"`
}
