package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Principal is the authenticated caller.
type Principal struct {
	ID    string
	Email string
	Name  string
	Role  string
}

func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CurrentUser reads the principal from the claims stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return Principal{}, false
	}
	cm, ok := v.(map[string]interface{})
	if !ok {
		return Principal{}, false
	}
	p := Principal{}
	p.ID, _ = cm["sub"].(string)
	p.Email, _ = cm["email"].(string)
	p.Name, _ = cm["name"].(string)
	p.Role, _ = cm["role"].(string)
	return p, p.ID != ""
}

// RequireRole aborts with 403 unless the caller has one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

func rateKey(c *gin.Context) string {
	if p, ok := CurrentUser(c); ok {
		return "sub:" + p.ID
	}
	if sub := c.GetString(subjectKey); sub != "" {
		return "sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
