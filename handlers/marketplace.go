package handlers

import (
	"net/http"

	"github.com/clubhub/clubhub/backend/go-services/internal/marketplace"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type MarketplaceHandler struct {
	svc *marketplace.Service
}

func NewMarketplaceHandler(svc *marketplace.Service) *MarketplaceHandler {
	return &MarketplaceHandler{svc: svc}
}

func actor(c *gin.Context) (marketplace.Actor, bool) {
	p, ok := caller(c)
	return marketplace.Actor{ID: p.ID, Name: p.Name, Admin: p.IsAdmin()}, ok
}

func (h *MarketplaceHandler) Categories(c *gin.Context) {
	cats, err := h.svc.ListCategories(c.Request.Context(), false)
	if cats == nil {
		cats = []marketplace.Category{}
	}
	respond(c, http.StatusOK, gin.H{"items": cats}, err)
}

func (h *MarketplaceHandler) CreateCategory(c *gin.Context) {
	var in marketplace.CategoryInput
	if !bindJSON(c, &in) {
		return
	}
	cat, err := h.svc.CreateCategory(c.Request.Context(), in)
	respond(c, http.StatusCreated, cat, err)
}

func (h *MarketplaceHandler) UpdateCategory(c *gin.Context) {
	var in marketplace.CategoryInput
	if !bindJSON(c, &in) {
		return
	}
	cat, err := h.svc.UpdateCategory(c.Request.Context(), c.Param("id"), in)
	respond(c, http.StatusOK, cat, err)
}

func (h *MarketplaceHandler) DeleteCategory(c *gin.Context) {
	if err := h.svc.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func priceParam(c *gin.Context, name string) (*decimal.Decimal, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be a number"})
		return nil, false
	}
	return &d, true
}

// Listings is public. Without a status or seller filter only active
// listings are shown.
func (h *MarketplaceHandler) Listings(c *gin.Context) {
	var q marketplace.Query
	if !bindQuery(c, &q) {
		return
	}
	var ok bool
	if q.MinPrice, ok = priceParam(c, "minPrice"); !ok {
		return
	}
	if q.MaxPrice, ok = priceParam(c, "maxPrice"); !ok {
		return
	}
	if q.Status == "" && q.SellerID == "" {
		q.Status = marketplace.StatusActive
	}
	out, err := h.svc.List(c.Request.Context(), q)
	respond(c, http.StatusOK, out, err)
}

func (h *MarketplaceHandler) Listing(c *gin.Context) {
	l, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, l, err)
}

func (h *MarketplaceHandler) Create(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var in marketplace.ListingInput
	if !bindJSON(c, &in) {
		return
	}
	l, err := h.svc.Create(c.Request.Context(), who, in)
	respond(c, http.StatusCreated, l, err)
}

func (h *MarketplaceHandler) Update(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var in marketplace.ListingInput
	if !bindJSON(c, &in) {
		return
	}
	l, err := h.svc.Update(c.Request.Context(), who, c.Param("id"), in)
	respond(c, http.StatusOK, l, err)
}

func (h *MarketplaceHandler) Withdraw(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	l, err := h.svc.Withdraw(c.Request.Context(), who, c.Param("id"))
	respond(c, http.StatusOK, l, err)
}

func (h *MarketplaceHandler) MarkSold(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	l, err := h.svc.MarkSold(c.Request.Context(), who, c.Param("id"))
	respond(c, http.StatusOK, l, err)
}
