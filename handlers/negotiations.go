package handlers

import (
	"net/http"

	"github.com/clubhub/clubhub/backend/go-services/internal/messages"
	"github.com/gin-gonic/gin"
)

// NegotiationsHandler exposes marketplace offers. Offers live in the
// messages service because each one is a message in a conversation.
type NegotiationsHandler struct {
	svc *messages.Service
}

func NewNegotiationsHandler(svc *messages.Service) *NegotiationsHandler {
	return &NegotiationsHandler{svc: svc}
}

func (h *NegotiationsHandler) List(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var q messages.OfferQuery
	if !bindQuery(c, &q) {
		return
	}
	q.UserID = p.ID
	out, err := h.svc.Offers(c.Request.Context(), q)
	respond(c, http.StatusOK, out, err)
}

func (h *NegotiationsHandler) Create(c *gin.Context) {
	buyer, ok := participant(c)
	if !ok {
		return
	}
	var in messages.OfferInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.MakeOffer(c.Request.Context(), buyer, in)
	respond(c, http.StatusCreated, m, err)
}

func (h *NegotiationsHandler) Accept(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var in messages.RespondInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	m, err := h.svc.Accept(c.Request.Context(), p.ID, c.Param("id"), in)
	respond(c, http.StatusOK, m, err)
}

func (h *NegotiationsHandler) Reject(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var in messages.RespondInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	m, err := h.svc.Reject(c.Request.Context(), p.ID, c.Param("id"), in)
	respond(c, http.StatusOK, m, err)
}

func (h *NegotiationsHandler) Counter(c *gin.Context) {
	responder, ok := participant(c)
	if !ok {
		return
	}
	var in messages.CounterInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.Counter(c.Request.Context(), responder, c.Param("id"), in)
	respond(c, http.StatusCreated, m, err)
}

func (h *NegotiationsHandler) Cancel(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	m, err := h.svc.Cancel(c.Request.Context(), p.ID, c.Param("id"))
	respond(c, http.StatusOK, m, err)
}
