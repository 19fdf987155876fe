package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 使用测试用Redis客户端（需要真实Redis实例）
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})
	return client
}

func TestRedisMirror_SyncAndLoad(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	mgr := New(4, time.Second)
	now := time.Now()
	msg, line := decode(t, 7, 0x30, 0, 0, 0, 0, 0x40, 0, 0xAA)
	mgr.Observe(msg, line, now)
	msg, line = decode(t, 8, 0x3A, 0x01, 0x00)
	mgr.Observe(msg, line, now.Add(-time.Minute))

	mirror := NewRedisMirror(client, "gw-1", time.Minute)
	require.NoError(t, mirror.Sync(ctx, mgr.Snapshot(now)))

	mo, server, ok, err := mirror.Load(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gw-1", server)
	assert.Contains(t, mo.LastLine, "Motor 0x7: ENCODER")
	assert.Equal(t, "ENCODER", mo.LastName)

	// 离线电机不写入
	_, _, ok, err = mirror.Load(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	addrs, err := mirror.OnlineAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, addrs)

	ttl := client.TTL(ctx, motorKey(7)).Val()
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisMirror_EmptySync(t *testing.T) {
	client := setupTestRedis(t)
	mirror := NewRedisMirror(client, "gw-1", 0)
	assert.NoError(t, mirror.Sync(context.Background(), nil))
}
