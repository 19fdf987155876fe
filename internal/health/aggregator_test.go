package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/mks-gateway/internal/tcpserver"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: m.status, Message: "mock", Latency: time.Millisecond}
}

func TestAggregator(t *testing.T) {
	tests := []struct {
		name  string
		want  Status
		ready bool
		items []Checker
	}{
		{"全部健康", StatusHealthy, true, []Checker{&mockChecker{"bus", StatusHealthy}, &mockChecker{"tcp", StatusHealthy}}},
		{"部分降级", StatusDegraded, true, []Checker{&mockChecker{"bus", StatusHealthy}, &mockChecker{"redis", StatusDegraded}}},
		{"部分不健康", StatusUnhealthy, false, []Checker{&mockChecker{"redis", StatusDegraded}, &mockChecker{"tcp", StatusUnhealthy}}},
		{"无检查器", StatusHealthy, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.items...)
			rep := agg.Report(context.Background())
			assert.Equal(t, tt.want, rep.Status)
			assert.Len(t, rep.Checks, len(tt.items))
			assert.Equal(t, tt.ready, agg.Ready(context.Background()))
		})
	}

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
		agg.AddChecker(&mockChecker{"added", StatusHealthy})
		assert.Len(t, agg.CheckAll(context.Background()), 2)
	})
}

type fakeTCP struct {
	active, limit int
}

func (f fakeTCP) ActiveConnections() int { return f.active }
func (f fakeTCP) MaxConnections() int    { return f.limit }
func (f fakeTCP) GetLimiterStats() tcpserver.LimiterStats {
	return tcpserver.LimiterStats{RejectedTotal: 2}
}
func (f fakeTCP) GetRateLimiterStats() tcpserver.RateLimiterStats {
	return tcpserver.RateLimiterStats{}
}

func TestTCPChecker(t *testing.T) {
	tests := []struct {
		name string
		srv  fakeTCP
		want Status
	}{
		{"空闲", fakeTCP{1, 10}, StatusHealthy},
		{"高占用", fakeTCP{9, 10}, StatusDegraded},
		{"已满", fakeTCP{10, 10}, StatusUnhealthy},
		{"无上限", fakeTCP{3, 0}, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTCPChecker(tt.srv).Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.EqualValues(t, 2, r.Details["rejected_total"])
		})
	}
}

func TestBusChecker(t *testing.T) {
	now := time.Now()
	var last time.Time
	c := NewBusChecker(func() time.Time { return last }, time.Second)
	c.now = func() time.Time { return now }

	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	last = now.Add(-500 * time.Millisecond)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	last = now.Add(-5 * time.Second)
	r := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, "bus quiet", r.Message)
}

func TestReadiness(t *testing.T) {
	r := New()
	assert.False(t, r.Ready())

	r.Expect("tcp")
	r.Expect("replay")
	assert.False(t, r.Ready())
	r.Set("tcp", true)
	assert.False(t, r.Ready())
	r.Set("replay", true)
	assert.True(t, r.Ready())
}

func TestRegisterHTTPRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHTTPRoutes(r, NewAggregator(&mockChecker{"bus", StatusDegraded}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rep HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, StatusDegraded, rep.Status)
	assert.Contains(t, rep.Checks, "bus")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterHTTPRoutes_Unhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHTTPRoutes(r, NewAggregator(&mockChecker{"tcp", StatusUnhealthy}))

	for _, path := range []string{"/health", "/health/ready"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}
