package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"Investa/pkg/logger"
)

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 正常读写 Redis
	StateOpen                  // 熔断中，会话只写内存
	StateHalfOpen              // 放一个探测请求过去
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrBreakerOpen 熔断中直接拒绝
var ErrBreakerOpen = fmt.Errorf("circuit breaker is open")

// CircuitBreaker 会话后端的熔断器。
// Redis 挂掉时 Store 的持久化快速失败，内存中的会话不受影响。
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
	log          *zap.Logger
	opened       metric.Int64Counter

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		log:          logger.Named("breaker").With(zap.String("breaker", name)),
	}
	// 指标创建失败不影响熔断本身
	cb.opened, _ = otel.Meter("investa-cache").Int64Counter(
		"session.breaker.opened.total",
		metric.WithDescription("Times the session backend breaker opened"),
	)
	return cb
}

// Call 执行带熔断保护的操作
func (cb *CircuitBreaker) Call(ctx context.Context, operation func(ctx context.Context) error) error {
	if !cb.acquire() {
		return fmt.Errorf("%s: %w", cb.name, ErrBreakerOpen)
	}

	err := operation(ctx)
	cb.release(ctx, err)
	return err
}

// acquire 半开状态同一时刻只放行一个探测请求
func (cb *CircuitBreaker) acquire() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		cb.setStateLocked(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true
	}
	return false
}

func (cb *CircuitBreaker) release(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasTrial := cb.state == StateHalfOpen
	cb.trialInFlight = false

	if err == nil {
		cb.failures = 0
		if wasTrial {
			cb.setStateLocked(StateClosed)
		}
		return
	}

	cb.failures++
	cb.log.Warn("Session backend operation failed", zap.Int("failures", cb.failures), zap.Error(err))

	if wasTrial || (cb.state == StateClosed && cb.failures >= cb.maxFailures) {
		cb.openedAt = cb.now()
		cb.setStateLocked(StateOpen)
		if cb.opened != nil {
			cb.opened.Add(ctx, 1, metric.WithAttributes(attribute.String("breaker", cb.name)))
		}
	}
}

func (cb *CircuitBreaker) setStateLocked(to State) {
	if cb.state == to {
		return
	}
	cb.log.Info("Circuit breaker state changed",
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
		zap.Duration("reset_timeout", cb.resetTimeout),
	)
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
}

// GetState 获取当前状态
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
