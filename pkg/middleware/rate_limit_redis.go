package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared by every API
// replica. A window admits rps*window+burst requests per key. When Redis
// cannot be reached the request is let through and the error logged.
func RedisRateLimitMiddleware(client *redis.Client, scope string, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(scope, rps, burst)
	}
	if window < time.Second {
		window = time.Second
	}
	span := int64(window / time.Second)
	allowed := int64(rps*float64(span)) + int64(burst)
	limit := strconv.FormatInt(allowed, 10)

	return func(c *gin.Context) {
		now := time.Now().Unix()
		slot := now / span
		key := fmt.Sprintf("rl:%s:%s:%d", scope, rateKey(c), slot)

		var incr *redis.IntCmd
		_, err := client.Pipelined(c.Request.Context(), func(p redis.Pipeliner) error {
			incr = p.Incr(c.Request.Context(), key)
			p.Expire(c.Request.Context(), key, window+time.Second)
			return nil
		})
		if err != nil {
			logger.Warnf("rate limit %s: redis unavailable, allowing: %v", scope, err)
			c.Next()
			return
		}

		n := incr.Val()
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(allowed-n, 0), 10))
		if n > allowed {
			tooMany(c, "redis", scope, time.Duration((slot+1)*span-now)*time.Second)
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis", scope).Inc()
		c.Next()
	}
}
