package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, "test:session:"), m
}

func session(refresh, userID string, ttl time.Duration) *Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Session{ID: "id-" + refresh, RefreshToken: refresh, UserID: userID, UserAgent: "curl/8", CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	s := session("r1", "user-1", time.Hour)
	require.NoError(t, repo.Create(ctx, s))

	require.Equal(t, "user-1", m.HGet("test:session:r1", "userId"))
	require.True(t, m.Exists("test:session:user:user-1"))

	got, err := repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, s, got)

	require.NoError(t, repo.DeleteByRefresh(ctx, "r1"))
	got, err = repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	require.Nil(t, got)
	members, _ := m.SMembers("test:session:user:user-1")
	require.Empty(t, members)

	// unknown tokens are not an error
	require.NoError(t, repo.DeleteByRefresh(ctx, "nope"))
}

func TestRedisRepository_TTLExpiry(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, session("r2", "user-2", time.Second)))

	got, err := repo.GetByRefresh(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got)

	m.FastForward(2 * time.Second)

	got, err = repo.GetByRefresh(ctx, "r2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_DeleteByUser(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, session("a", "user-1", time.Hour)))
	require.NoError(t, repo.Create(ctx, session("b", "user-1", time.Hour)))
	require.NoError(t, repo.Create(ctx, session("c", "user-2", time.Hour)))

	n, err := repo.DeleteByUser(ctx, "user-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.False(t, m.Exists("test:session:a"))
	require.False(t, m.Exists("test:session:user:user-1"))

	got, err := repo.GetByRefresh(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, got)

	n, err = repo.DeleteByUser(ctx, "nobody")
	require.NoError(t, err)
	require.Zero(t, n)
}
