package handlers

import (
	"github.com/gin-gonic/gin"

	"batterystock/internal/domain/bill"
	"batterystock/internal/infrastructure/http/v1/dto"
)

// BillHandler serves supplier bills.
type BillHandler struct {
	*BaseHandler
	service *bill.Service
}

// NewBillHandler creates a new bill handler.
func NewBillHandler(base *BaseHandler, service *bill.Service) *BillHandler {
	return &BillHandler{BaseHandler: base, service: service}
}

// Create handles POST /bills.
func (h *BillHandler) Create(c *gin.Context) {
	var req dto.CreateBillRequest
	if !h.BindJSON(c, &req) {
		return
	}
	b, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, b)
}

// Get handles GET /bills/:id.
func (h *BillHandler) Get(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// ListUnpaid handles GET /bills/unpaid.
func (h *BillHandler) ListUnpaid(c *gin.Context) {
	items, err := h.service.ListUnpaid(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.List(c, items, len(items))
}

// RecordPayment handles POST /bills/:id/payments.
func (h *BillHandler) RecordPayment(c *gin.Context) {
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	b, err := h.service.RecordPayment(c.Request.Context(), c.Param("id"), req.Amount, req.PaidAt)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// SetStatus handles PUT /bills/:id/status.
func (h *BillHandler) SetStatus(c *gin.Context) {
	var req dto.StatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	b, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}
