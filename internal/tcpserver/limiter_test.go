package tcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLimiter(t *testing.T) {
	t.Run("基本限流功能", func(t *testing.T) {
		l := NewConnectionLimiter(2, 50*time.Millisecond)
		ctx := context.Background()
		require.NoError(t, l.Acquire(ctx))
		require.NoError(t, l.Acquire(ctx))
		assert.Error(t, l.Acquire(ctx))
		assert.Equal(t, int64(1), l.RejectedCount())

		l.Release()
		assert.NoError(t, l.Acquire(ctx))
	})

	t.Run("统计功能", func(t *testing.T) {
		l := NewConnectionLimiter(4, time.Second)
		_ = l.Acquire(context.Background())
		_ = l.Acquire(context.Background())

		st := l.Stats()
		assert.Equal(t, 2, st.ActiveConnections)
		assert.Equal(t, 4, st.MaxConnections)
		assert.InDelta(t, 0.5, st.Utilization, 1e-9)
	})

	t.Run("多余释放不变为负", func(t *testing.T) {
		l := NewConnectionLimiter(1, time.Second)
		l.Release()
		assert.Equal(t, 0, l.Current())
	})

	t.Run("默认值", func(t *testing.T) {
		l := NewConnectionLimiter(0, 0)
		assert.Equal(t, defaultMaxConnections, l.MaxConnections())
	})
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(10, 3)
	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(), "burst %d", i)
	}
	assert.False(t, l.Allow())

	st := l.Stats()
	assert.Equal(t, int64(3), st.AllowedTotal)
	assert.Equal(t, int64(1), st.RejectedTotal)
	assert.Equal(t, 3, st.Burst)

	time.Sleep(150 * time.Millisecond)
	assert.True(t, l.Allow())
}
