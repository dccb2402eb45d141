package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"Investa/internal/session"
	rdb "Investa/storage/redis"
)

// SessionKV 基于 Redis 的会话持久化，写入与删除都在 MULTI/EXEC 中执行
type SessionKV struct {
	client  redis.UniversalClient
	breaker *CircuitBreaker
	keyFn   func(string) string
}

var _ session.KV = (*SessionKV)(nil)

// NewSessionKV client 为 nil 时使用全局 Redis 客户端
func NewSessionKV(client redis.UniversalClient) *SessionKV {
	if client == nil {
		client = rdb.Client()
	}
	return &SessionKV{
		client: client,
		// 连续失败3次后熔断，10秒后尝试恢复
		breaker: NewCircuitBreaker("session_cache", 3, 10*time.Second),
		keyFn:   func(k string) string { return rdb.Key(k) },
	}
}

func (s *SessionKV) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.keyFn(k)
	}

	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		vals, err := s.client.MGet(ctx, full...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			if str, ok := v.(string); ok {
				out[keys[i]] = str
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load session from redis: %w", err)
	}
	return out, nil
}

func (s *SessionKV) Save(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}

	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range entries {
				pipe.Set(ctx, s.keyFn(k), v, 0)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

func (s *SessionKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.keyFn(k)
	}

	err := s.breaker.Call(ctx, func(ctx context.Context) error {
		return s.client.Del(ctx, full...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}
