package handlers

import (
	"github.com/clubhub/clubhub/backend/go-services/internal/applications"
	"github.com/clubhub/clubhub/backend/go-services/internal/config"
	"github.com/clubhub/clubhub/backend/go-services/internal/dashboard"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/clubhub/clubhub/backend/go-services/internal/marketplace"
	"github.com/clubhub/clubhub/backend/go-services/internal/memberships"
	"github.com/clubhub/clubhub/backend/go-services/internal/messages"
	"github.com/clubhub/clubhub/backend/go-services/internal/payments"
	"github.com/clubhub/clubhub/backend/go-services/internal/realtime"
	"github.com/clubhub/clubhub/backend/go-services/internal/sessions"
	"github.com/clubhub/clubhub/backend/go-services/internal/standings"
	"github.com/clubhub/clubhub/backend/go-services/internal/users"
	"github.com/clubhub/clubhub/backend/go-services/pkg/middleware"
	"github.com/clubhub/clubhub/backend/go-services/pkg/validation"
	"github.com/gin-gonic/gin"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	JWT          config.JWTConfig
	Verifier     middleware.Verifier
	Blacklist    *sessions.Blacklist
	GlobalLimit  gin.HandlerFunc
	PublicLimit  gin.HandlerFunc
	MaxUpload    int64
	Users        *users.Service
	Sessions     *sessions.Service
	Applications *applications.Service
	Invoices     *invoices.Service
	Payments     *payments.Service
	Memberships  *memberships.Service
	Marketplace  *marketplace.Service
	Messages     *messages.Service
	Standings    *standings.Service
	Dashboard    *dashboard.Service
	Hub          *realtime.Hub
}

// Register mounts every API route on r.
func Register(r *gin.Engine, d Deps) {
	validation.Register()

	if d.GlobalLimit != nil {
		// per subject for signed-in callers, per IP otherwise
		r.Use(middleware.Identify(d.Verifier), d.GlobalLimit)
	}
	limit := d.PublicLimit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	authOpts := []middleware.AuthOption{middleware.WithBlacklist(d.Blacklist)}
	auth := middleware.AuthMiddleware(d.Verifier, authOpts...)
	optionalAuth := middleware.AuthMiddleware(d.Verifier, append(authOpts, middleware.WithOptional())...)
	admin := middleware.RequireRole("admin")

	authH := NewAuthHandler(d.JWT, d.Users, d.Sessions, d.Blacklist)
	authH.Register(r.Group("/"), limit)

	api := r.Group("/api")

	uh := NewUsersHandler(d.Users)
	api.GET("/me", auth, uh.Me)
	api.DELETE("/me/sessions", auth, authH.RevokeSessions)
	adm := api.Group("/admin", auth, admin)
	adm.GET("/users", uh.List)
	adm.PATCH("/users/:id/role", uh.SetRole)
	adm.GET("/dashboard", DashboardHandler(d.Dashboard))

	ah := NewApplicationsHandler(d.Applications)
	api.POST("/applications", limit, ah.Submit)
	apps := api.Group("/applications", auth, admin)
	apps.GET("", ah.List)
	apps.GET("/stats", ah.Stats)
	apps.GET("/export", ah.Export)
	apps.GET("/:id", ah.Get)
	apps.PUT("/:id", ah.Update)
	apps.DELETE("/:id", ah.Delete)
	apps.PATCH("/:id/status", ah.Review)

	ih := NewInvoicesHandler(d.Invoices)
	api.GET("/invoices/mine", auth, ih.Mine)
	inv := api.Group("/invoices", auth, admin)
	inv.GET("", ih.List)
	inv.POST("", ih.Create)
	inv.GET("/summary", ih.Summary)
	inv.GET("/export", ih.Export)
	inv.GET("/:id", ih.Get)
	inv.PUT("/:id", ih.Update)
	inv.DELETE("/:id", ih.Delete)
	inv.POST("/:id/send", ih.Send)
	inv.POST("/:id/cancel", ih.Cancel)

	ph := NewPaymentsHandler(d.Payments)
	api.GET("/payments/mine", auth, ph.Mine)
	pay := api.Group("/payments", auth, admin)
	pay.GET("", ph.List)
	pay.POST("", ph.Record)
	pay.GET("/export", ph.Export)
	pay.GET("/:id", ph.Get)
	pay.POST("/:id/refund", ph.Refund)

	mh := NewMembershipsHandler(d.Memberships)
	api.GET("/memberships/tiers", optionalAuth, mh.Tiers)
	ms := api.Group("/memberships", auth)
	ms.POST("", mh.Subscribe)
	ms.GET("/mine", mh.Mine)
	ms.POST("/:id/cancel", mh.Cancel)
	ms.POST("/tiers", admin, mh.CreateTier)
	ms.PUT("/tiers/:id", admin, mh.UpdateTier)
	ms.DELETE("/tiers/:id", admin, mh.DeleteTier)
	ms.GET("", admin, mh.List)
	ms.GET("/export", admin, mh.Export)
	ms.GET("/:id", admin, mh.Get)
	ms.POST("/:id/renew", admin, mh.Renew)

	mk := NewMarketplaceHandler(d.Marketplace)
	market := api.Group("/marketplace")
	market.GET("/categories", mk.Categories)
	market.GET("/listings", mk.Listings)
	market.GET("/listings/:id", mk.Listing)
	market.POST("/listings", auth, mk.Create)
	market.PUT("/listings/:id", auth, mk.Update)
	market.DELETE("/listings/:id", auth, mk.Withdraw)
	market.POST("/listings/:id/sold", auth, mk.MarkSold)
	market.POST("/categories", auth, admin, mk.CreateCategory)
	market.PUT("/categories/:id", auth, admin, mk.UpdateCategory)
	market.DELETE("/categories/:id", auth, admin, mk.DeleteCategory)

	msh := NewMessagesHandler(d.Messages, d.Hub, d.MaxUpload)
	msg := api.Group("/messages", auth)
	msg.POST("", msh.Send)
	msg.GET("/conversations", msh.Conversations)
	msg.GET("/conversations/:id", msh.Thread)
	msg.POST("/conversations/:id/read", msh.MarkRead)
	msg.GET("/unread-count", msh.UnreadCount)
	msg.DELETE("/:id", msh.Delete)
	msg.GET("/:id/attachments/:attachmentId", msh.Attachment)
	msg.GET("/:id/attachments/:attachmentId/link", msh.AttachmentLink)
	api.GET("/ws", middleware.AuthMiddleware(d.Verifier, append(authOpts, middleware.WithQueryToken())...), msh.Live)

	nh := NewNegotiationsHandler(d.Messages)
	neg := api.Group("/negotiations", auth)
	neg.GET("", nh.List)
	neg.POST("", nh.Create)
	neg.POST("/:id/accept", nh.Accept)
	neg.POST("/:id/reject", nh.Reject)
	neg.POST("/:id/counter", nh.Counter)
	neg.POST("/:id/cancel", nh.Cancel)

	sh := NewStandingsHandler(d.Standings)
	api.GET("/standings", sh.Table)
	api.GET("/standings/seasons", sh.Seasons)
	api.GET("/matches", sh.Matches)
	matches := api.Group("/matches", auth, admin)
	matches.POST("", sh.CreateMatch)
	matches.PUT("/:id", sh.UpdateMatch)
	matches.DELETE("/:id", sh.DeleteMatch)
	matches.POST("/:id/result", sh.RecordResult)
}
