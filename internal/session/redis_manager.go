package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis Key设计
const (
	// mks:motor:{addr} -> motorRecord JSON，TTL 到期即视为离线
	keyMotorPrefix = "mks:motor:"
)

// RedisMirror 将电机快照同步到 Redis，供其他进程读取
type RedisMirror struct {
	client   redis.UniversalClient
	serverID string
	ttl      time.Duration
}

// motorRecord Redis 存储结构
type motorRecord struct {
	Motor
	ServerID string `json:"server_id"`
}

// NewRedisMirror ttl 通常取 staleAfter 的数倍
func NewRedisMirror(client redis.UniversalClient, serverID string, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = 5 * DefaultStaleAfter
	}
	return &RedisMirror{client: client, serverID: serverID, ttl: ttl}
}

func motorKey(addr int) string { return keyMotorPrefix + strconv.Itoa(addr) }

// Sync 批量写入在线电机；离线电机交给 TTL 过期
func (r *RedisMirror) Sync(ctx context.Context, motors []Motor) error {
	pipe := r.client.Pipeline()
	n := 0
	for _, mo := range motors {
		if !mo.Online {
			continue
		}
		b, err := json.Marshal(motorRecord{Motor: mo, ServerID: r.serverID})
		if err != nil {
			return fmt.Errorf("marshal motor %d: %w", mo.Address, err)
		}
		pipe.Set(ctx, motorKey(mo.Address), b, r.ttl)
		n++
	}
	if n == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis sync motors: %w", err)
	}
	return nil
}

// Load 读取单台电机；不存在返回 ok=false
func (r *RedisMirror) Load(ctx context.Context, addr int) (Motor, string, bool, error) {
	b, err := r.client.Get(ctx, motorKey(addr)).Bytes()
	if err == redis.Nil {
		return Motor{}, "", false, nil
	}
	if err != nil {
		return Motor{}, "", false, fmt.Errorf("redis get motor %d: %w", addr, err)
	}
	var rec motorRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return Motor{}, "", false, fmt.Errorf("decode motor %d: %w", addr, err)
	}
	return rec.Motor, rec.ServerID, true, nil
}

// OnlineAddresses 扫描仍在 TTL 内的电机地址
func (r *RedisMirror) OnlineAddresses(ctx context.Context) ([]int, error) {
	var (
		cursor uint64
		out    []int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyMotorPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan motors: %w", err)
		}
		for _, k := range keys {
			if addr, err := strconv.Atoi(k[len(keyMotorPrefix):]); err == nil {
				out = append(out, addr)
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}
