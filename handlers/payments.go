package handlers

import (
	"net/http"
	"time"

	"github.com/clubhub/clubhub/backend/go-services/internal/csvexport"
	"github.com/clubhub/clubhub/backend/go-services/internal/payments"
	"github.com/gin-gonic/gin"
)

type PaymentsHandler struct {
	svc *payments.Service
}

func NewPaymentsHandler(svc *payments.Service) *PaymentsHandler {
	return &PaymentsHandler{svc: svc}
}

func (h *PaymentsHandler) Record(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var in payments.RecordInput
	if !bindJSON(c, &in) {
		return
	}
	pay, err := h.svc.Record(c.Request.Context(), p.ID, in)
	respond(c, http.StatusCreated, pay, err)
}

func (h *PaymentsHandler) List(c *gin.Context) {
	var q payments.Query
	if !bindQuery(c, &q) {
		return
	}
	out, err := h.svc.List(c.Request.Context(), q)
	respond(c, http.StatusOK, out, err)
}

func (h *PaymentsHandler) Mine(c *gin.Context) {
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

func (h *PaymentsHandler) Export(c *gin.Context) {
	var q payments.Query
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.svc.All(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	if err := csvexport.Write(c.Writer, "payments", time.Now(), payments.CSVHeader, items); err != nil {
		_ = c.Error(err)
	}
}

func (h *PaymentsHandler) Get(c *gin.Context) {
	pay, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	respond(c, http.StatusOK, pay, err)
}

func (h *PaymentsHandler) Refund(c *gin.Context) {
	var in payments.RefundInput
	if !bindOptionalJSON(c, &in) {
		return
	}
	pay, err := h.svc.Refund(c.Request.Context(), c.Param("id"), in)
	respond(c, http.StatusOK, pay, err)
}
