package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func hit(r *gin.Engine, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code
}

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware("test-allow", 10, 2))
	r.GET("/ok", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/ok"))
	require.Equal(t, http.StatusOK, hit(r, "/ok"))

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory", "test-allow")))
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware("test-block", 2, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/limited"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/limited"))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory", "test-block")))

	// one token every 500ms
	time.Sleep(600 * time.Millisecond)
	require.Equal(t, http.StatusOK, hit(r, "/limited"))
}

func TestRateLimitMiddleware_ScopesDoNotShareBuckets(t *testing.T) {
	r := gin.New()
	r.GET("/a", RateLimitMiddleware("scope-a", 0.1, 1), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", RateLimitMiddleware("scope-b", 0.1, 1), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, hit(r, "/a"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/a"))
	require.Equal(t, http.StatusOK, hit(r, "/b"))
}

func TestRateLimitMiddleware_RetryAfterMatchesRefill(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware("test-retry", 0.25, 1))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, hit(r, "/r"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/r", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "4", w.Header().Get("Retry-After"))
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitMiddleware_UsesSubjectWhenPresent(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ClaimsKey, map[string]interface{}{"sub": c.GetHeader("X-User")})
		c.Next()
	})
	r.Use(RateLimitMiddleware("test-subject", 0.1, 1))
	r.GET("/u", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	as := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/u", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	require.Equal(t, http.StatusOK, as("user-123"))
	require.Equal(t, http.StatusTooManyRequests, as("user-123"))
	// same IP, different subject
	require.Equal(t, http.StatusOK, as("user-456"))
}

func TestBucketSetDropsIdleKeys(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newBucketSet(1, 5, func() time.Time { return now })
	require.Equal(t, 10*time.Minute, s.idle)

	first := s.get("ip:10.0.0.1")
	s.get("ip:10.0.0.2")
	require.Equal(t, 2, s.size())

	now = now.Add(5 * time.Minute)
	require.Same(t, first, s.get("ip:10.0.0.1"), "recently used key keeps its bucket")

	now = now.Add(6 * time.Minute)
	s.get("ip:10.0.0.3")
	require.Equal(t, 2, s.size(), "10.0.0.2 idle past the window")

	now = now.Add(11 * time.Minute)
	s.get("ip:10.0.0.4")
	require.Equal(t, 1, s.size())
}

func TestBucketSetIdleCoversFullRefill(t *testing.T) {
	s := newBucketSet(0.01, 60, time.Now)
	require.Equal(t, 100*time.Minute, s.idle)
}

func TestIdentifyKeysGlobalLimitBySubject(t *testing.T) {
	ver := &fakeVerifier{good: "goodtoken", claims: map[string]interface{}{"sub": "user1"}}
	r := gin.New()
	r.Use(Identify(ver), RateLimitMiddleware("test-identify", 0.1, 1))
	r.GET("/g", func(c *gin.Context) {
		_, authed := CurrentUser(c)
		require.False(t, authed, "Identify does not authenticate")
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, serve(r, "Bearer goodtoken", "/g").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, "Bearer goodtoken", "/g").Code)
	// same IP, anonymous and bad tokens share the IP bucket
	require.Equal(t, http.StatusOK, serve(r, "", "/g").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, "Bearer badtoken", "/g").Code)
}
