package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/clubhub/clubhub/backend/go-services/internal/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeVerifier implements Verifier
type fakeVerifier struct {
	good   string
	claims map[string]interface{}
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == f.good {
		return MapToken(f.claims), nil
	}
	return nil, fmt.Errorf("invalid token")
}

func memberVerifier() *fakeVerifier {
	return &fakeVerifier{good: "goodtoken", claims: map[string]interface{}{"sub": "user1", "email": "test@example.com", "role": "member"}}
}

func serve(g *gin.Engine, header string, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(memberVerifier()), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, serve(g, "", "/").Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(memberVerifier()), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, serve(g, "BadHeader", "/").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, "Basic goodtoken", "/").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer badtoken", "/").Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(memberVerifier()), func(c *gin.Context) {
		p, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role, "token": c.GetString(AccessTokenKey)})
	})
	rw := serve(g, "Bearer goodtoken", "/")
	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "user1", got["id"])
	require.Equal(t, "member", got["role"])
	require.Equal(t, "goodtoken", got["token"])
}

func TestAuthMiddleware_QueryTokenOnlyWhenEnabled(t *testing.T) {
	g := gin.New()
	g.GET("/plain", AuthMiddleware(memberVerifier()), func(c *gin.Context) { c.Status(http.StatusOK) })
	g.GET("/ws", AuthMiddleware(memberVerifier(), WithQueryToken()), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusUnauthorized, serve(g, "", "/plain?access_token=goodtoken").Code)
	require.Equal(t, http.StatusOK, serve(g, "", "/ws?access_token=goodtoken").Code)
}

func TestAuthMiddleware_RejectsBlacklistedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	bl := sessions.NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	require.NoError(t, bl.Add(context.Background(), "goodtoken", 5*time.Second))

	g := gin.New()
	g.GET("/", AuthMiddleware(memberVerifier(), WithBlacklist(bl)), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer goodtoken", "/").Code)
}

func TestChain_FallsThrough(t *testing.T) {
	local := &fakeVerifier{good: "local", claims: map[string]interface{}{"sub": "a"}}
	remote := &fakeVerifier{good: "remote", claims: map[string]interface{}{"sub": "b"}}
	v := Chain(local, nil, remote)

	tok, err := v.Verify(context.Background(), "remote")
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "b", claims["sub"])

	_, err = v.Verify(context.Background(), "neither")
	require.Error(t, err)

	_, err = Chain().Verify(context.Background(), "x")
	require.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	admin := &fakeVerifier{good: "admintoken", claims: map[string]interface{}{"sub": "boss", "role": "admin"}}
	g := gin.New()
	g.GET("/admin", AuthMiddleware(Chain(admin, memberVerifier())), RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(g, "Bearer admintoken", "/admin").Code)
	require.Equal(t, http.StatusForbidden, serve(g, "Bearer goodtoken", "/admin").Code)
}

func TestMapTokenDecodesIntoStruct(t *testing.T) {
	var out struct {
		Sub  string `json:"sub"`
		Role string `json:"role"`
	}
	require.NoError(t, MapToken{"sub": "u", "role": "admin"}.Claims(&out))
	require.Equal(t, "u", out.Sub)
	require.Equal(t, "admin", out.Role)
}

func TestAuthMiddleware_Optional(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(memberVerifier(), WithOptional()), func(c *gin.Context) {
		p, ok := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"authed": ok, "id": p.ID})
	})

	rw := serve(g, "", "/")
	require.Equal(t, http.StatusOK, rw.Code)
	require.JSONEq(t, `{"authed":false,"id":""}`, rw.Body.String())

	rw = serve(g, "Bearer goodtoken", "/")
	require.Equal(t, http.StatusOK, rw.Code)
	require.JSONEq(t, `{"authed":true,"id":"user1"}`, rw.Body.String())

	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer nope", "/").Code)
}
