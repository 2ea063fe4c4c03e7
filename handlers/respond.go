package handlers

import (
	"net/http"

	"github.com/clubhub/clubhub/backend/go-services/internal/apperr"
	"github.com/clubhub/clubhub/backend/go-services/internal/models"
	"github.com/clubhub/clubhub/backend/go-services/pkg/logger"
	"github.com/clubhub/clubhub/backend/go-services/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// fail maps err to a status and writes {"error": msg}. Causes of 500s are
// logged and hidden from the client.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, v any) bool {
	if err := c.ShouldBindQuery(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// caller returns the authenticated principal. Routes using it sit behind
// AuthMiddleware, so a missing principal is a 401.
func caller(c *gin.Context) (middleware.Principal, bool) {
	p, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return p, ok
}

func respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(status, v)
}

func pageQuery(c *gin.Context) (models.Page, bool) {
	var p models.Page
	return p, bindQuery(c, &p)
}

// bindOptionalJSON binds a body when one was sent.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, v)
}
