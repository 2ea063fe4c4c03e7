package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked access tokens until they would have expired.
// Keys hold a SHA-256 digest so bearer tokens never sit in Redis verbatim.
// A nil client turns every method into a no-op.
type Blacklist struct {
	client *redis.Client
}

func NewBlacklist(c *redis.Client) *Blacklist {
	return &Blacklist{client: c}
}

func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "revoked:access:" + hex.EncodeToString(sum[:])
}

// Add blacklists token for ttl. Tokens that already expired are skipped.
func (b *Blacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if b == nil || b.client == nil || ttl <= 0 {
		return nil
	}
	return b.client.SetArgs(ctx, revokedKey(token), time.Now().UTC().Format(time.RFC3339), redis.SetArgs{TTL: ttl}).Err()
}

// Contains reports whether token has been revoked.
func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	if b == nil || b.client == nil {
		return false, nil
	}
	n, err := b.client.Exists(ctx, revokedKey(token)).Result()
	return n == 1, err
}
