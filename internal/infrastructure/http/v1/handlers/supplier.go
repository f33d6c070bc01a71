package handlers

import (
	"github.com/gin-gonic/gin"

	"batterystock/internal/domain/supplier"
	"batterystock/internal/infrastructure/http/v1/dto"
)

// SupplierHandler serves suppliers.
type SupplierHandler struct {
	*BaseHandler
	service *supplier.Service
}

// NewSupplierHandler creates a new supplier handler.
func NewSupplierHandler(base *BaseHandler, service *supplier.Service) *SupplierHandler {
	return &SupplierHandler{BaseHandler: base, service: service}
}

// Create handles POST /suppliers.
func (h *SupplierHandler) Create(c *gin.Context) {
	var req dto.CreateSupplierRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), s); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromSupplier(s))
}

// Get handles GET /suppliers/:id.
func (h *SupplierHandler) Get(c *gin.Context) {
	s, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSupplier(s))
}
