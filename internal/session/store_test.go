package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Investa/internal/model"
	"Investa/pkg/errors"
	"Investa/pkg/token"
	"Investa/utils"
)

var secret = []byte("session-test")

func tokenPair(t *testing.T, accessTTL time.Duration) (string, string) {
	t.Helper()
	access, refresh, err := token.GenerateTokenPair(secret, "u1", accessTTL, time.Hour)
	require.NoError(t, err)
	return access, refresh
}

func TestStore_SetTokensAndVerify(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV())

	assert.False(t, s.VerifyToken())

	access, refresh := tokenPair(t, time.Hour)
	require.NoError(t, s.SetTokens(ctx, access, refresh))
	assert.True(t, s.VerifyToken())

	gotA, gotR := s.Tokens()
	assert.Equal(t, access, gotA)
	assert.Equal(t, refresh, gotR)
}

func TestStore_RejectsPartialPair(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewStore(kv)

	err := s.SetTokens(ctx, "only-access", "")
	assert.ErrorIs(t, err, errors.TokenPairIncomplete)
	err = s.SetTokens(ctx, "", "only-refresh")
	assert.ErrorIs(t, err, errors.TokenPairIncomplete)

	a, r := s.Tokens()
	assert.Empty(t, a)
	assert.Empty(t, r)
	assert.Zero(t, kv.Len())
}

func TestStore_VerifyToken_Leeway(t *testing.T) {
	ctx := context.Background()
	access, refresh := tokenPair(t, 20*time.Second)

	strict := NewStore(nil, WithLeeway(30*time.Second))
	require.NoError(t, strict.SetTokens(ctx, access, refresh))
	assert.False(t, strict.VerifyToken())

	lax := NewStore(nil)
	require.NoError(t, lax.SetTokens(ctx, access, refresh))
	assert.True(t, lax.VerifyToken())

	later := NewStore(nil, WithClock(func() time.Time { return time.Now().Add(time.Minute) }))
	require.NoError(t, later.SetTokens(ctx, access, refresh))
	assert.False(t, later.VerifyToken())
}

func TestStore_VerifyToken_Malformed(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.SetTokens(context.Background(), "garbage", "garbage"))
	assert.NotPanics(t, func() {
		assert.False(t, s.VerifyToken())
	})
}

func TestStore_ClearAll(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewStore(kv)

	access, refresh := tokenPair(t, time.Hour)
	require.NoError(t, s.SetTokens(ctx, access, refresh))
	require.NoError(t, s.SetUser(ctx, &model.UserRecord{ID: "u1"}))
	assert.Equal(t, 3, kv.Len())

	require.NoError(t, s.ClearAll(ctx))
	assert.False(t, s.VerifyToken())
	assert.Nil(t, s.GetUser())
	assert.Zero(t, kv.Len())
}

func TestStore_ClearAll_NoHalfClearedReads(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	access, refresh := tokenPair(t, time.Hour)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := s.Snapshot()
			if (snap.AccessToken == "") != (snap.RefreshToken == "") {
				t.Errorf("observed half-cleared session")
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		require.NoError(t, s.SetTokens(ctx, access, refresh))
		require.NoError(t, s.ClearAll(ctx))
	}
	close(stop)
	wg.Wait()
}

func TestStore_GetUserReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	require.NoError(t, s.SetUser(ctx, &model.UserRecord{ID: "u1", FullName: "A"}))

	u := s.GetUser()
	u.FullName = "mutated"
	assert.Equal(t, "A", s.GetUser().FullName)
}

func TestStore_RestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	access, refresh := tokenPair(t, time.Hour)

	first := NewStore(kv)
	require.NoError(t, first.SetTokens(ctx, access, refresh))
	require.NoError(t, first.SetUser(ctx, &model.UserRecord{ID: "u1", KYCStatus: model.KYCApproved}))

	second := NewStore(kv)
	require.NoError(t, second.Restore(ctx))
	assert.Equal(t, first.Snapshot(), second.Snapshot())
	assert.True(t, second.VerifyToken())
}

func TestStore_RestoreDiscardsPartialPair(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Save(ctx, map[string]string{
		KeyAccessToken: "orphan",
		KeyUser:        `{"id":"u1"}`,
	}))

	s := NewStore(kv)
	require.NoError(t, s.Restore(ctx))

	a, r := s.Tokens()
	assert.Empty(t, a)
	assert.Empty(t, r)
	require.NotNil(t, s.GetUser())
	assert.Equal(t, "u1", s.GetUser().ID)

	left, err := kv.Load(ctx, Keys...)
	require.NoError(t, err)
	assert.NotContains(t, left, KeyAccessToken)
}

func TestStore_EncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	cipher, err := utils.NewCipher([]byte(strings.Repeat("x", 32)))
	require.NoError(t, err)

	access, refresh := tokenPair(t, time.Hour)
	s := NewStore(kv, WithCodec(cipher))
	require.NoError(t, s.SetTokens(ctx, access, refresh))

	raw, err := kv.Load(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, access, raw[KeyAccessToken])

	restored := NewStore(kv, WithCodec(cipher))
	require.NoError(t, restored.Restore(ctx))
	gotA, _ := restored.Tokens()
	assert.Equal(t, access, gotA)

	// 没有密钥时读到的是密文，不是合法 token
	plain := NewStore(kv)
	require.NoError(t, plain.Restore(ctx))
	assert.False(t, plain.VerifyToken())

	// 密钥不匹配时解密失败，整对丢弃
	other, err := utils.NewCipher([]byte(strings.Repeat("y", 32)))
	require.NoError(t, err)
	wrongKey := NewStore(kv, WithCodec(other))
	require.NoError(t, wrongKey.Restore(ctx))
	assert.False(t, wrongKey.Snapshot().HasTokenPair())
}

func TestStore_OnChange(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	var seen []model.Session
	s.OnChange(func(snap model.Session) {
		// 监听器在锁外执行，可以回读
		_ = s.Snapshot()
		seen = append(seen, snap)
	})

	access, refresh := tokenPair(t, time.Hour)
	require.NoError(t, s.SetTokens(ctx, access, refresh))
	require.NoError(t, s.ClearAll(ctx))

	require.Len(t, seen, 2)
	assert.Equal(t, access, seen[0].AccessToken)
	assert.Empty(t, seen[1].AccessToken)
}

func TestStore_CompareAndSetTokens(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)
	access, refresh := tokenPair(t, time.Hour)
	require.NoError(t, s.SetTokens(ctx, access, refresh))

	newA, newR := tokenPair(t, 2*time.Hour)
	ok, err := s.CompareAndSetTokens(ctx, refresh, newA, newR)
	require.NoError(t, err)
	assert.True(t, ok)

	// 旧的 refresh token 已被替换
	ok, err = s.CompareAndSetTokens(ctx, refresh, access, refresh)
	require.NoError(t, err)
	assert.False(t, ok)
	gotA, _ := s.Tokens()
	assert.Equal(t, newA, gotA)

	// 清除之后不会被写回
	require.NoError(t, s.ClearAll(ctx))
	ok, err = s.CompareAndSetTokens(ctx, newR, access, refresh)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.VerifyToken())
}
