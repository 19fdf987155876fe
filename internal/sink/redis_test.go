package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_Publish(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
	}
	t.Cleanup(func() { client.Close() })

	sub := client.Subscribe(ctx, "mks:test:lines")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	s := NewRedis(client, "mks:test:lines", "gw-test")
	require.NoError(t, s.Emit(ctx, Event{Line: "Motor 0x1: GO HOME", At: time.Unix(1700000000, 0)}))

	select {
	case msg := <-sub.Channel():
		var got struct {
			Instance string `json:"instance"`
			Line     string `json:"line"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "gw-test", got.Instance)
		assert.Equal(t, "Motor 0x1: GO HOME", got.Line)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestRedis_PublishError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	err := NewRedis(client, "c", "gw").Emit(context.Background(), Event{Line: "x"})
	assert.Error(t, err)
}
