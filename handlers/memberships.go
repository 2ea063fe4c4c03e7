package handlers

import (
	"net/http"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/csvexport"
	"github.com/clubhub/clubhub/backend/go-services/internal/memberships"
	"github.com/clubhub/clubhub/backend/go-services/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type MembershipsHandler struct {
	svc *memberships.Service
}

func NewMembershipsHandler(svc *memberships.Service) *MembershipsHandler {
	return &MembershipsHandler{svc: svc}
}

// Tiers lists active tiers. Admins may pass ?all=true to include inactive ones;
// the route is public, so the principal is optional.
func (h *MembershipsHandler) Tiers(c *gin.Context) {
	all := false
	if c.Query("all") == "true" {
		p, ok := middleware.CurrentUser(c)
		all = ok && p.IsAdmin()
	}
	tiers, err := h.svc.ListTiers(c.Request.Context(), all)
	if tiers == nil {
		tiers = []memberships.Tier{}
	}
	respond(c, http.StatusOK, gin.H{"items": tiers}, err)
}

func (h *MembershipsHandler) CreateTier(c *gin.Context) {
	var in memberships.TierInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.svc.CreateTier(c.Request.Context(), in)
	respond(c, http.StatusCreated, t, err)
}

func (h *MembershipsHandler) UpdateTier(c *gin.Context) {
	var in memberships.TierInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.svc.UpdateTier(c.Request.Context(), c.Param("id"), in)
	respond(c, http.StatusOK, t, err)
}

func (h *MembershipsHandler) DeleteTier(c *gin.Context) {
	if err := h.svc.DeleteTier(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MembershipsHandler) Subscribe(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var in memberships.SubscribeInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.Subscribe(c.Request.Context(), memberships.Member{ID: p.ID, Name: p.Name, Email: p.Email}, in)
	respond(c, http.StatusCreated, m, err)
}

func (h *MembershipsHandler) Mine(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	items, err := h.svc.Mine(c.Request.Context(), p.ID)
	if items == nil {
		items = []memberships.Membership{}
	}
	respond(c, http.StatusOK, gin.H{"items": items}, err)
}

func (h *MembershipsHandler) Cancel(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	m, err := h.svc.Cancel(c.Request.Context(), p.ID, p.IsAdmin(), c.Param("id"))
	respond(c, http.StatusOK, m, err)
}

func (h *MembershipsHandler) List(c *gin.Context) {
	var q memberships.Query
	if !bindQuery(c, &q) {
		return
	}
	out, err := h.svc.List(c.Request.Context(), q)
	respond(c, http.StatusOK, out, err)
}

func (h *MembershipsHandler) Export(c *gin.Context) {
	var q memberships.Query
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.svc.All(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	if err := csvexport.Write(c.Writer, "memberships", time.Now(), memberships.CSVHeader, items); err != nil {
		_ = c.Error(err)
	}
}

func (h *MembershipsHandler) Get(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	m, err := h.svc.Get(c.Request.Context(), p.ID, p.IsAdmin(), c.Param("id"))
	respond(c, http.StatusOK, m, err)
}

func (h *MembershipsHandler) Renew(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	m, err := h.svc.Renew(c.Request.Context(), p.ID, c.Param("id"))
	respond(c, http.StatusOK, m, err)
}
