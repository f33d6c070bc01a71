package handlers

import (
	"github.com/gin-gonic/gin"

	"batterystock/internal/domain/invoice"
	"batterystock/internal/domain/transfer"
	"batterystock/internal/infrastructure/http/v1/dto"
)

// SalesHandler serves stock transfers and invoices.
type SalesHandler struct {
	*BaseHandler
	transfers *transfer.Service
	invoices  *invoice.Service
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(base *BaseHandler, transfers *transfer.Service, invoices *invoice.Service) *SalesHandler {
	return &SalesHandler{BaseHandler: base, transfers: transfers, invoices: invoices}
}

// Transfer handles POST /transfers.
func (h *SalesHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	t, err := h.transfers.Transfer(c.Request.Context(), req.VariantID, req.FromWarehouseID, req.ToWarehouseID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, t)
}

// CreateInvoice handles POST /invoices.
func (h *SalesHandler) CreateInvoice(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv := req.ToEntity()
	if err := h.invoices.Create(c.Request.Context(), inv); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, inv)
}

// GetInvoice handles GET /invoices/:id.
func (h *SalesHandler) GetInvoice(c *gin.Context) {
	inv, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}
