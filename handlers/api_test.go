package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/clubhub/clubhub/backend/go-services/internal/applications"
	"github.com/clubhub/clubhub/backend/go-services/internal/config"
	"github.com/clubhub/clubhub/backend/go-services/internal/dashboard"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/clubhub/clubhub/backend/go-services/internal/marketplace"
	"github.com/clubhub/clubhub/backend/go-services/internal/memberships"
	"github.com/clubhub/clubhub/backend/go-services/internal/messages"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/internal/payments"
	"github.com/clubhub/clubhub/backend/go-services/internal/realtime"
	"github.com/clubhub/clubhub/backend/go-services/internal/sessions"
	"github.com/clubhub/clubhub/backend/go-services/internal/standings"
	"github.com/clubhub/clubhub/backend/go-services/internal/storage"
	"github.com/clubhub/clubhub/backend/go-services/internal/tokens"
	"github.com/clubhub/clubhub/backend/go-services/internal/users"
	"github.com/clubhub/clubhub/backend/go-services/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "handler-test-secret"

type testAPI struct {
	t     *testing.T
	g     *gin.Engine
	deps  Deps
	redis *mr.Miniredis
}

// newTestAPI wires every service on memory repositories and a miniredis
// backed blacklist.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	usersSvc := users.NewService(users.NewMemoryRepository())
	usersSvc.PasswordCost = bcrypt.MinCost
	appsSvc := applications.NewService(applications.NewMemoryRepository(), nil)
	invSvc := invoices.NewService(invoices.NewMemoryRepository(), nil, invoices.Defaults{Currency: "EUR", DueDays: 14})
	paySvc := payments.NewService(payments.NewMemoryRepository(), invSvc, nil)
	memberSvc := memberships.NewService(memberships.NewMemoryTierRepository(), memberships.NewMemoryRepository(), invSvc, nil, "EUR")
	paySvc.OnInvoicePaid(memberSvc)
	marketSvc := marketplace.NewService(marketplace.NewMemoryCategoryRepository(), marketplace.NewMemoryRepository(), "EUR")
	hub := realtime.NewHub(nil)
	t.Cleanup(hub.Close)
	msgSvc := messages.NewService(messages.NewMemoryRepository(), usersSvc, marketSvc, storage.NewMemoryStore(), hub, messages.Options{})
	marketSvc.OnListingClosed(msgSvc)

	d := Deps{
		JWT:          config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: time.Hour},
		Verifier:     tokens.NewHMACVerifier(testSecret),
		Blacklist:    sessions.NewBlacklist(rdb),
		Users:        usersSvc,
		Sessions:     sessions.NewService(sessions.NewMemoryRepository(), time.Hour),
		Applications: appsSvc,
		Invoices:     invSvc,
		Payments:     paySvc,
		Memberships:  memberSvc,
		Marketplace:  marketSvc,
		Messages:     msgSvc,
		Standings:    standings.NewService(standings.NewMemoryRepository(), nil),
		Dashboard:    dashboard.NewService(appsSvc, invSvc, paySvc, memberSvc, msgSvc, marketSvc),
		Hub:          hub,
	}
	g := gin.New()
	Register(g, d)
	return &testAPI{t: t, g: g, deps: d, redis: m}
}

// member registers a user and returns it with a signed access token.
func (a *testAPI) member(email, name string) (*models.User, string) {
	a.t.Helper()
	u, err := a.deps.Users.Register(context.Background(), users.RegisterInput{Email: email, Password: "password123", Name: name})
	require.NoError(a.t, err)
	return u, a.token(u)
}

func (a *testAPI) admin() (*models.User, string) {
	a.t.Helper()
	u, _, err := a.deps.Users.EnsureAdmin(context.Background(), "admin@club.test", "password123")
	require.NoError(a.t, err)
	return u, a.token(u)
}

func (a *testAPI) token(u *models.User) string {
	tok, err := tokens.GenerateAccessToken(testSecret, u, time.Minute)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.g.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/me", "/api/invoices", "/api/messages/conversations", "/api/negotiations", "/api/admin/dashboard"} {
		w := api.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAdminRoutesRejectMembers(t *testing.T) {
	api := newTestAPI(t)
	_, tok := api.member("m@club.test", "Mia")
	for _, path := range []string{"/api/applications", "/api/invoices", "/api/payments", "/api/admin/users", "/api/admin/dashboard"} {
		w := api.do(http.MethodGet, path, tok, nil)
		require.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestDashboard(t *testing.T) {
	api := newTestAPI(t)
	_, tok := api.admin()

	w := api.do(http.MethodGet, "/api/admin/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	require.Contains(t, body, "applications")
	require.Contains(t, body, "invoices")
	require.EqualValues(t, 0, body["openOffers"])
}

func TestGlobalLimitIsPerSignedInUser(t *testing.T) {
	api := newTestAPI(t)
	_, alice := api.member("alice@club.test", "Alice")
	_, bob := api.member("bob@club.test", "Bob")

	d := api.deps
	d.GlobalLimit = middleware.RateLimitMiddleware("test-global", 0.01, 1)
	api.g = gin.New()
	Register(api.g, d)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/me", alice, nil).Code)
	require.Equal(t, http.StatusTooManyRequests, api.do(http.MethodGet, "/api/me", alice, nil).Code)
	// same client IP, different subject
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/me", bob, nil).Code)
}
