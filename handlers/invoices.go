package handlers

import (
	"net/http"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/csvexport"
	"github.com/clubhub/clubhub/backend/go-services/internal/invoices"
	"github.com/gin-gonic/gin"
)

type InvoicesHandler struct {
	svc *invoices.Service
}

func NewInvoicesHandler(svc *invoices.Service) *InvoicesHandler {
	return &InvoicesHandler{svc: svc}
}

func (h *InvoicesHandler) Create(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var in invoices.CreateInput
	if !bindJSON(c, &in) {
		return
	}
	in.CreatedBy = p.ID
	inv, err := h.svc.Create(c.Request.Context(), in)
	respond(c, http.StatusCreated, inv, err)
}

func (h *InvoicesHandler) List(c *gin.Context) {
	var q invoices.Query
	if !bindQuery(c, &q) {
		return
	}
	out, err := h.svc.List(c.Request.Context(), q)
	respond(c, http.StatusOK, out, err)
}

func (h *InvoicesHandler) Mine(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	out, err := h.svc.ListForMember(c.Request.Context(), p.ID, page)
	respond(c, http.StatusOK, out, err)
}

func (h *InvoicesHandler) Summary(c *gin.Context) {
	s, err := h.svc.Summary(c.Request.Context())
	respond(c, http.StatusOK, s, err)
}

func (h *InvoicesHandler) Export(c *gin.Context) {
	var q invoices.Query
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.svc.All(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	if err := csvexport.Write(c.Writer, "invoices", time.Now(), invoices.CSVHeader, items); err != nil {
		_ = c.Error(err)
	}
}

func (h *InvoicesHandler) Get(c *gin.Context) {
	inv, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, inv, err)
}

func (h *InvoicesHandler) Update(c *gin.Context) {
	var in invoices.UpdateInput
	if !bindJSON(c, &in) {
		return
	}
	inv, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	respond(c, http.StatusOK, inv, err)
}

func (h *InvoicesHandler) Send(c *gin.Context) {
	inv, err := h.svc.Send(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, inv, err)
}

func (h *InvoicesHandler) Cancel(c *gin.Context) {
	inv, err := h.svc.Cancel(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, inv, err)
}

func (h *InvoicesHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
