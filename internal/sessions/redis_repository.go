package sessions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each session in a hash at <prefix><refreshToken> and
// indexes a user's refresh tokens in the set <prefix>user:<userId>. Both keys
// expire with the session.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(refresh string) string  { return r.prefix + refresh }
func (r *RedisRepository) userKey(userID string) string { return r.prefix + "user:" + userID }

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	key, idx := r.key(s.RefreshToken), r.userKey(s.UserID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"id", s.ID,
			"userId", s.UserID,
			"userAgent", s.UserAgent,
			"createdAt", s.CreatedAt.UnixMilli(),
			"expiresAt", s.ExpiresAt.UnixMilli(),
		)
		p.Expire(ctx, key, ttl)
		p.SAdd(ctx, idx, s.RefreshToken)
		// sessions share one configured lifetime, so the newest outlives the rest
		p.Expire(ctx, idx, ttl)
		return nil
	})
	return err
}

func millis(v string) time.Time {
	n, _ := strconv.ParseInt(v, 10, 64)
	return time.UnixMilli(n).UTC()
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	h, err := r.client.HGetAll(ctx, r.key(refresh)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	s := &Session{
		ID:           h["id"],
		RefreshToken: refresh,
		UserID:       h["userId"],
		UserAgent:    h["userAgent"],
		CreatedAt:    millis(h["createdAt"]),
		ExpiresAt:    millis(h["expiresAt"]),
	}
	if s.Expired(time.Now().UTC()) {
		return nil, r.DeleteByRefresh(ctx, refresh)
	}
	return s, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	key := r.key(refresh)
	userID, err := r.client.HGet(ctx, key, "userId").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.SRem(ctx, r.userKey(userID), refresh)
		return nil
	})
	return err
}

func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	idx := r.userKey(userID)
	tokens, err := r.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, r.key(t))
	}
	var n int64
	if len(keys) > 0 {
		if n, err = r.client.Del(ctx, keys...).Result(); err != nil {
			return 0, err
		}
	}
	return n, r.client.Del(ctx, idx).Err()
}
