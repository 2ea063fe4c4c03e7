package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey      = "claims"
	AccessTokenKey = "accessToken"
)

// subjectKey holds the subject found by Identify. Only rate limiting reads it.
const subjectKey = "rateSubject"


// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Blacklist reports revoked access tokens.
type Blacklist interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// MapToken is a Token backed by an already decoded claims map.
type MapToken map[string]interface{}

func (t MapToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = map[string]interface{}(t)
		return nil
	}
	b, err := json.Marshal(map[string]interface{}(t))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

type chain []Verifier

// Chain tries each verifier in order and returns the first success.
func Chain(verifiers ...Verifier) Verifier {
	var c chain
	for _, v := range verifiers {
		if v != nil {
			c = append(c, v)
		}
	}
	return c
}

func (c chain) Verify(ctx context.Context, raw string) (Token, error) {
	err := errors.New("no token verifier configured")
	for _, v := range c {
		var tok Token
		if tok, err = v.Verify(ctx, raw); err == nil {
			return tok, nil
		}
	}
	return nil, err
}

type authOptions struct {
	blacklist  Blacklist
	queryToken bool
	optional   bool
}

type AuthOption func(*authOptions)

// WithBlacklist rejects tokens found in bl.
func WithBlacklist(bl Blacklist) AuthOption {
	return func(o *authOptions) { o.blacklist = bl }
}

// WithQueryToken also accepts ?access_token= (browsers cannot set headers on WebSocket upgrades).
func WithQueryToken() AuthOption {
	return func(o *authOptions) { o.queryToken = true }
}

// WithOptional lets requests without any token through anonymously. A token
// that is present must still be valid.
func WithOptional() AuthOption {
	return func(o *authOptions) { o.optional = true }
}

func bearer(c *gin.Context, queryToken bool) (string, string) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		if queryToken {
			if t := c.Query("access_token"); t != "" {
				return t, ""
			}
		}
		return "", "missing Authorization header"
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", "invalid Authorization header"
	}
	return strings.TrimSpace(token), ""
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier
func AuthMiddleware(ver Verifier, opts ...AuthOption) gin.HandlerFunc {
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(c *gin.Context) {
		token, problem := bearer(c, o.queryToken)
		if token == "" && o.optional && c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}

		if o.blacklist != nil {
			revoked, err := o.blacklist.Contains(c.Request.Context(), token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(AccessTokenKey, token)
		c.Next()
	}
}

// Identify records the subject of a valid bearer token for the rate limiters
// mounted after it. It never rejects a request and does not authorize one;
// routes still need AuthMiddleware.
func Identify(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := bearer(c, false)
		if token == "" {
			c.Next()
			return
		}
		tok, err := ver.Verify(c.Request.Context(), token)
		if err == nil {
			var claims struct {
				Sub string `json:"sub"`
			}
			if tok.Claims(&claims) == nil && claims.Sub != "" {
				c.Set(subjectKey, claims.Sub)
			}
		}
		c.Next()
	}
}
