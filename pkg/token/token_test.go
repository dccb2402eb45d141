package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestParse_ReadsClaimsWithoutSignatureCheck(t *testing.T) {
	access, refresh, err := GenerateTokenPair(secret, "42", time.Minute, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(access)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt, 2*time.Second)

	claims, err = Parse(refresh)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.Type)

	// 客户端不持有密钥，用别的密钥签发的 token 也能解析
	other, _, err := GenerateTokenPair([]byte("other"), "7", time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = Parse(other)
	assert.NoError(t, err)
}

func TestIsUsable(t *testing.T) {
	now := time.Now()

	valid, _, err := GenerateTokenPair(secret, "1", time.Hour, time.Hour)
	require.NoError(t, err)
	expired, _, err := GenerateTokenPair(secret, "1", -time.Minute, time.Hour)
	require.NoError(t, err)
	nearExpiry, _, err := GenerateTokenPair(secret, "1", 10*time.Second, time.Hour)
	require.NoError(t, err)

	assert.True(t, IsUsable(valid, now, 0))
	assert.False(t, IsUsable(expired, now, 0))
	assert.False(t, IsUsable(nearExpiry, now, 30*time.Second))
	assert.True(t, IsUsable(nearExpiry, now, 0))

	assert.False(t, IsUsable("", now, 0))
	assert.False(t, IsUsable("   ", now, 0))
	assert.False(t, IsUsable("not-a-jwt", now, 0))
	assert.False(t, IsUsable("a.b.c", now, 0))
}
