package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// Each call owns its buckets, so limiters mounted on different route groups
// (scope) never share tokens. The key is the authenticated subject when
// present, otherwise the client IP.
func RateLimitMiddleware(scope string, rps float64, burst int) gin.HandlerFunc {
	buckets := newBucketSet(rps, burst, time.Now)
	limit := strconv.Itoa(burst)
	return func(c *gin.Context) {
		res := buckets.get(rateKey(c)).Reserve()
		c.Header("X-RateLimit-Limit", limit)
		if wait := res.Delay(); !res.OK() || wait > 0 {
			res.Cancel()
			tooMany(c, "memory", scope, wait)
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory", scope).Inc()
		c.Next()
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// bucketSet holds one limiter per key and drops keys idle for longer than a
// full refill, at which point a fresh limiter behaves the same.
type bucketSet struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	idle  time.Duration
	swept time.Time
	now   func() time.Time
	m     map[string]*bucket
}

func newBucketSet(rps float64, burst int, now func() time.Time) *bucketSet {
	idle := 10 * time.Minute
	if rps > 0 {
		idle = max(idle, time.Duration(float64(burst)/rps*float64(time.Second)))
	}
	return &bucketSet{rps: rate.Limit(rps), burst: burst, idle: idle, now: now, swept: now(), m: make(map[string]*bucket)}
}

func (s *bucketSet) get(key string) *rate.Limiter {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.swept) >= s.idle {
		for k, b := range s.m {
			if now.Sub(b.seen) >= s.idle {
				delete(s.m, k)
			}
		}
		s.swept = now
	}
	b, ok := s.m[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(s.rps, s.burst)}
		s.m[key] = b
	}
	b.seen = now
	return b.lim
}

func (s *bucketSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// tooMany rejects the request; Retry-After is the wait rounded up to whole
// seconds, at least one.
func tooMany(c *gin.Context, backend, scope string, wait time.Duration) {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 || wait == rate.InfDuration {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	metrics.RateLimitRejected.WithLabelValues(backend, scope).Inc()
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
}
