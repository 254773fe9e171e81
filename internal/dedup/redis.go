package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stlalpha/v3toss/internal/store"
)

// RedisGate keeps dedup records as Redis keys "dupe:<AREA>:<msgid>". Keys
// expire after ttl when ttl is positive.
type RedisGate struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGate connects to addr and verifies the connection.
func NewRedisGate(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisGate, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisGate{client: client, ttl: ttl}, nil
}

// NewRedisGateFromClient wraps an existing client.
func NewRedisGateFromClient(client *redis.Client, ttl time.Duration) *RedisGate {
	return &RedisGate{client: client, ttl: ttl}
}

func dupeKey(area store.Area, msgid string) string {
	return fmt.Sprintf("dupe:%s:%s", area.Name, msgid)
}

func (g *RedisGate) Seen(ctx context.Context, area store.Area, msgid string) (bool, error) {
	n, err := g.client.Exists(ctx, dupeKey(area, msgid)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (g *RedisGate) Admit(ctx context.Context, area store.Area, msgid string) (bool, error) {
	ok, err := g.client.SetNX(ctx, dupeKey(area, msgid), time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisGate) Forget(ctx context.Context, area store.Area, msgid string) error {
	if err := g.client.Del(ctx, dupeKey(area, msgid)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the client.
func (g *RedisGate) Close() error {
	return g.client.Close()
}
