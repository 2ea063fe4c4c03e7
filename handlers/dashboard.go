package handlers

import (
	"net/http"

	"github.com/clubhub/clubhub/backend/go-services/internal/dashboard"
	"github.com/gin-gonic/gin"
)

func DashboardHandler(svc *dashboard.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Overview(c.Request.Context())
		respond(c, http.StatusOK, o, err)
	}
}
