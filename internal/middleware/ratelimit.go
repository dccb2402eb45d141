package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"Investa/pkg/errors"
	"Investa/pkg/logger"
	"Investa/pkg/response"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	KeyPrefix   string
}

// RateLimiter 基于 Redis zset 的滑动窗口限流
type RateLimiter struct {
	client redislib.UniversalClient
	config RateLimitConfig
	keyFn  func(parts ...string) string
}

func NewRateLimiter(client redislib.UniversalClient, config RateLimitConfig, keyFn func(parts ...string) string) *RateLimiter {
	return &RateLimiter{client: client, config: config, keyFn: keyFn}
}

// key 按路由和客户端 IP 区分
func (rl *RateLimiter) key(c *app.RequestContext) string {
	return rl.keyFn(rl.config.KeyPrefix, string(c.Path()), "ip", c.ClientIP())
}

// Allow 返回是否放行以及窗口内的请求数
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	now := time.Now()
	windowStart := now.Add(-rl.config.Window)

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redislib.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(card.Val())
	return count <= rl.config.MaxRequests, count, nil
}

// RateLimitMiddleware client 为空时不限流；Redis 出错时放行，只记录日志
func RateLimitMiddleware(client redislib.UniversalClient, config RateLimitConfig, keyFn func(parts ...string) string) app.HandlerFunc {
	if client == nil || config.MaxRequests <= 0 {
		return func(ctx context.Context, c *app.RequestContext) { c.Next(ctx) }
	}
	limiter := NewRateLimiter(client, config, keyFn)

	return func(ctx context.Context, c *app.RequestContext) {
		allowed, count, err := limiter.Allow(ctx, limiter.key(c))
		if err != nil {
			logger.Logger.Warn("Rate limit check failed, allowing request", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}

// AuthRateLimitMiddleware 登录、注册、验证码接口按 IP 每分钟限流
func AuthRateLimitMiddleware(client redislib.UniversalClient, perMinute int, keyFn func(parts ...string) string) app.HandlerFunc {
	return RateLimitMiddleware(client, RateLimitConfig{
		Window:      time.Minute,
		MaxRequests: perMinute,
		KeyPrefix:   "auth:rate",
	}, keyFn)
}
