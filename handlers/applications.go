package handlers

import (
	"net/http"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/applications"
	"github.com/clubhub/clubhub/backend/go-services/internal/csvexport"
	"github.com/gin-gonic/gin"
)

type ApplicationsHandler struct {
	svc *applications.Service
}

func NewApplicationsHandler(svc *applications.Service) *ApplicationsHandler {
	return &ApplicationsHandler{svc: svc}
}

func (h *ApplicationsHandler) Submit(c *gin.Context) {
	var in applications.SubmitInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.svc.Submit(c.Request.Context(), in)
	respond(c, http.StatusCreated, a, err)
}

func (h *ApplicationsHandler) List(c *gin.Context) {
	var q applications.Query
	if !bindQuery(c, &q) {
		return
	}
	out, err := h.svc.List(c.Request.Context(), q)
	respond(c, http.StatusOK, out, err)
}

func (h *ApplicationsHandler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	respond(c, http.StatusOK, st, err)
}

func (h *ApplicationsHandler) Export(c *gin.Context) {
	var q applications.Query
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.svc.All(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	if err := csvexport.Write(c.Writer, "applications", time.Now(), applications.CSVHeader, items); err != nil {
		_ = c.Error(err)
	}
}

func (h *ApplicationsHandler) Get(c *gin.Context) {
	a, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, a, err)
}

func (h *ApplicationsHandler) Update(c *gin.Context) {
	var in applications.UpdateInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	respond(c, http.StatusOK, a, err)
}

func (h *ApplicationsHandler) Review(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var in applications.ReviewInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.svc.Review(c.Request.Context(), c.Param("id"), p.ID, in)
	respond(c, http.StatusOK, a, err)
}

func (h *ApplicationsHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
