package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklistExpiresWithToken(t *testing.T) {
	m := mr.RunT(t)
	bl := NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()

	require.NoError(t, bl.Add(ctx, "eyJ.access.one", 2*time.Second))
	revoked, err := bl.Contains(ctx, "eyJ.access.one")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = bl.Contains(ctx, "eyJ.access.two")
	require.NoError(t, err)
	assert.False(t, revoked)

	keys := m.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "revoked:access:"))
	assert.NotContains(t, keys[0], "eyJ")

	m.FastForward(3 * time.Second)
	revoked, err = bl.Contains(ctx, "eyJ.access.one")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBlacklistSkipsExpiredTokens(t *testing.T) {
	m := mr.RunT(t)
	bl := NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	require.NoError(t, bl.Add(context.Background(), "stale", 0))
	assert.Empty(t, m.Keys())
}

func TestBlacklistWithoutRedis(t *testing.T) {
	ctx := context.Background()
	for _, bl := range []*Blacklist{nil, NewBlacklist(nil)} {
		require.NoError(t, bl.Add(ctx, "tok", time.Second))
		revoked, err := bl.Contains(ctx, "tok")
		require.NoError(t, err)
		assert.False(t, revoked)
	}
}
