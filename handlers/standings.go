package handlers

import (
	"net/http"

	"github.com/clubhub/clubhub/backend/go-services/internal/standings"
	"github.com/gin-gonic/gin"
)

type StandingsHandler struct {
	svc *standings.Service
}

func NewStandingsHandler(svc *standings.Service) *StandingsHandler {
	return &StandingsHandler{svc: svc}
}

func (h *StandingsHandler) Table(c *gin.Context) {
	t, err := h.svc.Table(c.Request.Context(), c.Query("season"), c.Query("division"))
	respond(c, http.StatusOK, t, err)
}

func (h *StandingsHandler) Seasons(c *gin.Context) {
	out, err := h.svc.Seasons(c.Request.Context())
	respond(c, http.StatusOK, gin.H{"items": out}, err)
}

func (h *StandingsHandler) Matches(c *gin.Context) {
	var q standings.MatchQuery
	if !bindQuery(c, &q) {
		return
	}
	out, err := h.svc.ListMatches(c.Request.Context(), q)
	respond(c, http.StatusOK, out, err)
}

func (h *StandingsHandler) CreateMatch(c *gin.Context) {
	var in standings.MatchInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.CreateMatch(c.Request.Context(), in)
	respond(c, http.StatusCreated, m, err)
}

func (h *StandingsHandler) UpdateMatch(c *gin.Context) {
	var in standings.MatchInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.UpdateMatch(c.Request.Context(), c.Param("id"), in)
	respond(c, http.StatusOK, m, err)
}

func (h *StandingsHandler) DeleteMatch(c *gin.Context) {
	if err := h.svc.DeleteMatch(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StandingsHandler) RecordResult(c *gin.Context) {
	var in standings.ResultInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.RecordResult(c.Request.Context(), c.Param("id"), in)
	respond(c, http.StatusOK, m, err)
}
