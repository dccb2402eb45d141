package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"Investa/config"
	redisotel "Investa/pkg/redis"
)

var (
	client *redis.Client
	once   sync.Once
	err    error
)

// Init 连接会话后端使用的 Redis。
// 连不上时调用方会降级到内存，探测超时要短，不能拖住代理启动。
func Init() error {
	once.Do(func() {
		cfg := config.Cfg

		// 单用户代理，连接池很小即可
		c := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			PoolSize:     4,
			MaxRetries:   1,
		})

		if cfg.TracingEnabled {
			c.AddHook(redisotel.NewTracingHook(cfg.ServiceName, cfg.RedisDB))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if pingErr := c.Ping(ctx).Err(); pingErr != nil {
			_ = c.Close()
			err = fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, pingErr)
			return
		}

		client = c
	})

	return err
}

// Client 未初始化时返回 nil，调用方按 storage.SessionBackend() 判断是否可用
func Client() *redis.Client {
	return client
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// Key 拼接带前缀的 key，空片段会被跳过，例如 investa:session:access_token
func Key(parts ...string) string {
	prefix := config.Cfg.RedisPrefix
	if prefix == "" {
		prefix = "investa"
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	for _, part := range parts {
		if part != "" {
			sb.WriteByte(':')
			sb.WriteString(part)
		}
	}
	return sb.String()
}
