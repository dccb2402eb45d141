package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Investa/internal/session"
	rdb "Investa/storage/redis"
)

// fakeRedis 只实现 SessionKV 用到的命令；事务内的写入在 EXEC 时一次性提交
type fakeRedis struct {
	redis.UniversalClient

	mu      sync.Mutex
	data    map[string]string
	txErr   error
	txCount int
	mgets   [][]string
	dels    [][]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mgets = append(f.mgets, keys)
	vals := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := f.data[k]; ok {
			vals[i] = v
		}
	}
	return redis.NewSliceResult(vals, nil)
}

func (f *fakeRedis) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	pipe := &fakePipe{pending: map[string]string{}}
	if err := fn(pipe); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCount++
	if f.txErr != nil {
		return nil, f.txErr
	}
	for k, v := range pipe.pending {
		f.data[k] = v
	}
	return nil, nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dels = append(f.dels, keys)
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type fakePipe struct {
	redis.Pipeliner
	pending map[string]string
}

func (p *fakePipe) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	p.pending[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func TestSessionKV_SaveWritesPairInOneTransaction(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	kv := NewSessionKV(fake)

	require.NoError(t, kv.Save(ctx, map[string]string{
		session.KeyAccessToken:  "a",
		session.KeyRefreshToken: "r",
	}))

	assert.Equal(t, 1, fake.txCount)
	assert.Equal(t, map[string]string{
		rdb.Key(session.KeyAccessToken):  "a",
		rdb.Key(session.KeyRefreshToken): "r",
	}, fake.data)
}

func TestSessionKV_FailedTransactionWritesNothing(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.txErr = errors.New("EXECABORT")
	kv := NewSessionKV(fake)

	err := kv.Save(ctx, map[string]string{
		session.KeyAccessToken:  "a",
		session.KeyRefreshToken: "r",
	})
	require.Error(t, err)
	assert.Empty(t, fake.data)
}

func TestSessionKV_LoadMapsBackToSessionKeys(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.data[rdb.Key(session.KeyAccessToken)] = "a"
	fake.data[rdb.Key(session.KeyUser)] = `{"id":"u1"}`
	kv := NewSessionKV(fake)

	got, err := kv.Load(ctx, session.Keys...)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		session.KeyAccessToken: "a",
		session.KeyUser:        `{"id":"u1"}`,
	}, got)

	require.Len(t, fake.mgets, 1)
	for i, k := range session.Keys {
		assert.Equal(t, rdb.Key(k), fake.mgets[0][i])
	}
}

func TestSessionKV_DeleteRemovesKeysTogether(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	kv := NewSessionKV(fake)
	require.NoError(t, kv.Save(ctx, map[string]string{
		session.KeyAccessToken:  "a",
		session.KeyRefreshToken: "r",
		session.KeyUser:         "{}",
	}))

	require.NoError(t, kv.Delete(ctx, session.Keys...))
	require.Len(t, fake.dels, 1)
	assert.Len(t, fake.dels[0], len(session.Keys))
	assert.Empty(t, fake.data)
}

func TestSessionKV_BreakerStopsCallingRedis(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.txErr = errors.New("connection refused")
	kv := NewSessionKV(fake)

	entries := map[string]string{session.KeyUser: "{}"}
	for i := 0; i < 3; i++ {
		require.Error(t, kv.Save(ctx, entries))
	}
	assert.Equal(t, 3, fake.txCount)

	err := kv.Save(ctx, entries)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 3, fake.txCount)
}
