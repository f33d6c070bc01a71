package handlers

import (
	"github.com/gin-gonic/gin"

	"batterystock/internal/domain/stockentry"
	"batterystock/internal/infrastructure/http/v1/dto"
)

// StockEntryHandler serves stock entries.
type StockEntryHandler struct {
	*BaseHandler
	service *stockentry.Service
}

// NewStockEntryHandler creates a new stock entry handler.
func NewStockEntryHandler(base *BaseHandler, service *stockentry.Service) *StockEntryHandler {
	return &StockEntryHandler{BaseHandler: base, service: service}
}

// Create handles POST /stock-entries.
func (h *StockEntryHandler) Create(c *gin.Context) {
	var req dto.CreateStockEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	e, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, e)
}

// Get handles GET /stock-entries/:id.
func (h *StockEntryHandler) Get(c *gin.Context) {
	e, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// ListPending handles GET /stock-entries/pending.
func (h *StockEntryHandler) ListPending(c *gin.Context) {
	items, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.List(c, items, len(items))
}

// Approve handles POST /stock-entries/:id/approve.
func (h *StockEntryHandler) Approve(c *gin.Context) {
	e, err := h.service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}

// Return handles POST /stock-entries/:id/return.
func (h *StockEntryHandler) Return(c *gin.Context) {
	var req dto.ReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	e, err := h.service.Return(c.Request.Context(), c.Param("id"), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}
