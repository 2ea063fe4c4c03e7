package handlers

import (
	"net/http"
	"testing"

	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/stretchr/testify/require"
)

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int         `json:"expiresIn"`
	User         models.User `json:"user"`
}

func TestRegisterLoginMe(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "Ana@Club.test", "password": "password123", "name": "Ana"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[authResponse](t, w)
	require.NotEmpty(t, reg.AccessToken)
	require.NotEmpty(t, reg.RefreshToken)
	require.Equal(t, 900, reg.ExpiresIn)
	require.Equal(t, "ana@club.test", reg.User.Email)
	require.Equal(t, models.RoleMember, reg.User.Role)
	require.NotContains(t, w.Body.String(), "password")

	w = api.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "ana@club.test", "password": "password123", "name": "Ana"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@club.test", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid email or password", errorOf(t, w))

	w = api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@club.test", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[authResponse](t, w)

	w = api.do(http.MethodGet, "/api/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]models.User](t, w)
	require.Equal(t, reg.User.ID, me["user"].ID)
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "not-an-email", "password": "password123", "name": "X"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "x@club.test", "password": "short", "name": "X"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, errorOf(t, w), "at least 8")
}

func TestRefreshRotatesToken(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "r@club.test", "password": "password123", "name": "R"})
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode[authResponse](t, w)

	w = api.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[authResponse](t, w)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, first.User.ID, second.User.ID)

	// the old refresh token is spent
	w = api.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/auth/refresh", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutRevokesTokens(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "l@club.test", "password": "password123", "name": "L"})
	require.Equal(t, http.StatusCreated, w.Code)
	res := decode[authResponse](t, w)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/me", res.AccessToken, nil).Code)

	w = api.do(http.MethodPost, "/auth/logout", res.AccessToken, map[string]string{"refreshToken": res.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/me", res.AccessToken, nil).Code)
	w = api.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": res.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Len(t, api.redis.Keys(), 1)
}

func TestAdminUsersAndRoles(t *testing.T) {
	api := newTestAPI(t)
	admin, adminTok := api.admin()
	member, memberTok := api.member("p@club.test", "Pat")

	w := api.do(http.MethodGet, "/api/admin/users?search=pat", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.List[models.User]](t, w)
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, member.ID, list.Items[0].ID)

	w = api.do(http.MethodPatch, "/api/admin/users/"+member.ID+"/role", memberTok, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPatch, "/api/admin/users/"+member.ID+"/role", adminTok, map[string]string{"role": "owner"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPatch, "/api/admin/users/"+admin.ID+"/role", adminTok, map[string]string{"role": "member"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPatch, "/api/admin/users/"+member.ID+"/role", adminTok, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, models.RoleAdmin, decode[models.User](t, w).Role)

	w = api.do(http.MethodPatch, "/api/admin/users/missing/role", adminTok, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRevokeSessions(t *testing.T) {
	api := newTestAPI(t)
	login := func() authResponse {
		w := api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "multi@club.test", "password": "password123"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode[authResponse](t, w)
	}
	api.member("multi@club.test", "Multi")
	phone, laptop := login(), login()

	w := api.do(http.MethodDelete, "/api/me/sessions", laptop.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, 2, decode[map[string]int64](t, w)["revoked"])

	for _, rt := range []string{phone.RefreshToken, laptop.RefreshToken} {
		w = api.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": rt})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/me", laptop.AccessToken, nil).Code)
}
