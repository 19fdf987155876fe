package health

import (
	"context"
	"time"
)

// BusChecker 总线静默检查：超过 quietAfter 未收到任何帧则降级
type BusChecker struct {
	lastFrame  func() time.Time
	quietAfter time.Duration
	now        func() time.Time
}

func NewBusChecker(lastFrame func() time.Time, quietAfter time.Duration) *BusChecker {
	if quietAfter <= 0 {
		quietAfter = 10 * time.Second
	}
	return &BusChecker{lastFrame: lastFrame, quietAfter: quietAfter, now: time.Now}
}

func (c *BusChecker) Name() string { return "bus" }

func (c *BusChecker) Check(ctx context.Context) CheckResult {
	start := c.now()
	last := c.lastFrame()
	if last.IsZero() {
		return CheckResult{Status: StatusDegraded, Message: "no frames received yet", Latency: time.Since(start)}
	}
	idle := start.Sub(last)
	res := CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{"last_frame": last, "idle": idle.String()},
		Latency: time.Since(start),
	}
	if idle > c.quietAfter {
		res.Status, res.Message = StatusDegraded, "bus quiet"
	}
	return res
}
