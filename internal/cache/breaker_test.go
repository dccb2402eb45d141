package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cb := NewCircuitBreaker("test", 2, time.Second)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, cb.Call(ctx, fail), boom)
	assert.ErrorIs(t, cb.Call(ctx, fail), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	assert.ErrorIs(t, cb.Call(ctx, ok), ErrBreakerOpen)

	now = now.Add(2 * time.Second)
	assert.NoError(t, cb.Call(ctx, ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cb := NewCircuitBreaker("test", 1, time.Second)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	_ = cb.Call(ctx, func(context.Context) error { return boom })
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, cb.Call(ctx, func(context.Context) error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Call(ctx, func(context.Context) error { return nil }), ErrBreakerOpen)
}

func TestCircuitBreaker_SingleHalfOpenCall(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cb := NewCircuitBreaker("test", 1, time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Call(ctx, func(context.Context) error { return errors.New("down") })
	now = now.Add(2 * time.Second)

	var inner error
	err := cb.Call(ctx, func(context.Context) error {
		assert.Equal(t, StateHalfOpen, cb.GetState())
		// 探测进行中，其它调用被拒绝
		inner = cb.Call(ctx, func(context.Context) error { return nil })
		return nil
	})
	assert.NoError(t, err)
	assert.ErrorIs(t, inner, ErrBreakerOpen)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
