package handlers

import (
	"net/http"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/config"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/internal/sessions"
	"github.com/clubhub/clubhub/backend/go-services/internal/tokens"
	"github.com/clubhub/clubhub/backend/go-services/internal/users"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// AuthHandler issues and revokes local access and refresh tokens.
type AuthHandler struct {
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	blacklist   *sessions.Blacklist
	jwt         config.JWTConfig
}

func NewAuthHandler(jwt config.JWTConfig, u *users.Service, s *sessions.Service, bl *sessions.Blacklist) *AuthHandler {
	if jwt.AccessTokenTTL <= 0 {
		jwt.AccessTokenTTL = 15 * time.Minute
	}
	return &AuthHandler{usersSvc: u, sessionsSvc: s, blacklist: bl, jwt: jwt}
}

// Register routes under /auth. limit guards the credential endpoints.
func (h *AuthHandler) Register(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/register", limit, h.SignUp)
	a.POST("/login", limit, h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

func (h *AuthHandler) issue(c *gin.Context, status int, u *models.User, refresh string) {
	access, err := tokens.GenerateAccessToken(h.jwt.Secret, u, h.jwt.AccessTokenTTL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(status, gin.H{
		"accessToken":  access,
		"refreshToken": refresh,
		"user":         u,
		"expiresIn":    int(h.jwt.AccessTokenTTL.Seconds()),
	})
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req users.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID, c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	h.issue(c, http.StatusCreated, u, rft)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID, c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	logger.Debugf("login: user=%s", u.ID)
	h.issue(c, http.StatusOK, u, rft)
}

// Refresh rotates the refresh token and returns a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	sess, next, err := h.sessionsSvc.Rotate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	u, err := h.usersSvc.Get(c.Request.Context(), sess.UserID)
	if err != nil {
		_ = h.sessionsSvc.DeleteRefresh(c.Request.Context(), next)
		fail(c, apperr.Unauthorized("invalid refresh token"))
		return
	}
	h.issue(c, http.StatusOK, u, next)
}

// Logout removes the refresh session and blacklists the presented access
// token until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if at := bearerToken(c); at != "" {
		ttl := tokens.NewHMACVerifier(h.jwt.Secret).RemainingTTL(at)
		if err := h.blacklist.Add(c.Request.Context(), at, ttl); err != nil {
			fail(c, err)
			return
		}
	}
	if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// RevokeSessions ends every refresh session of the caller. The presented
// access token is blacklisted as on logout.
func (h *AuthHandler) RevokeSessions(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	if at := bearerToken(c); at != "" {
		ttl := tokens.NewHMACVerifier(h.jwt.Secret).RemainingTTL(at)
		if err := h.blacklist.Add(c.Request.Context(), at, ttl); err != nil {
			fail(c, err)
			return
		}
	}
	n, err := h.sessionsSvc.RevokeAll(c.Request.Context(), p.ID)
	if err != nil {
		fail(c, err)
		return
	}
	logger.Infof("user %s revoked %d sessions", p.ID, n)
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

func bearerToken(c *gin.Context) string {
	if v, ok := c.Get(middleware.AccessTokenKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	const prefix = "Bearer "
	auth := c.GetHeader("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// UsersHandler serves the caller's profile and the admin user list.
type UsersHandler struct {
	svc *users.Service
}

func NewUsersHandler(svc *users.Service) *UsersHandler { return &UsersHandler{svc: svc} }

func (h *UsersHandler) Me(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), p.ID)
	respond(c, http.StatusOK, gin.H{"user": u}, err)
}

func (h *UsersHandler) List(c *gin.Context) {
	var q users.Query
	if !bindQuery(c, &q) {
		return
	}
	out, err := h.svc.List(c.Request.Context(), q)
	respond(c, http.StatusOK, out, err)
}

func (h *UsersHandler) SetRole(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.svc.SetRole(c.Request.Context(), p.ID, c.Param("id"), req.Role)
	respond(c, http.StatusOK, u, err)
}
