package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis 将显示行以 JSON 发布到频道
type Redis struct {
	client   redis.UniversalClient
	channel  string
	instance string
	timeout  time.Duration
}

// envelope 发布载荷
type envelope struct {
	Instance string `json:"instance"`
	Event
}

func NewRedis(client redis.UniversalClient, channel, instance string) *Redis {
	return &Redis{client: client, channel: channel, instance: instance, timeout: time.Second}
}

func (s *Redis) Emit(ctx context.Context, e Event) error {
	b, err := json.Marshal(envelope{Instance: s.instance, Event: e})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel, err)
	}
	return nil
}
