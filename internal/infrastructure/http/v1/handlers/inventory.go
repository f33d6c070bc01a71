package handlers

import (
	"github.com/gin-gonic/gin"

	"batterystock/internal/domain/inventory"
	"batterystock/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves warehouses, products and variants.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, service: service}
}

// CreateWarehouse handles POST /warehouses.
func (h *InventoryHandler) CreateWarehouse(c *gin.Context) {
	var req dto.CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	w, err := h.service.CreateWarehouse(c.Request.Context(), req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, w)
}

// ListWarehouses handles GET /warehouses.
func (h *InventoryHandler) ListWarehouses(c *gin.Context) {
	items, err := h.service.ListWarehouses(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.List(c, items, len(items))
}

// CreateProduct handles POST /products.
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p := req.ToEntity()
	if err := h.service.CreateProduct(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// CreateVariant handles POST /variants.
func (h *InventoryHandler) CreateVariant(c *gin.Context) {
	var req dto.CreateVariantRequest
	if !h.BindJSON(c, &req) {
		return
	}
	v := req.ToEntity()
	if err := h.service.CreateVariant(c.Request.Context(), v); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, v)
}

// ListVariants handles GET /variants?productId=&includeArchived=.
func (h *InventoryHandler) ListVariants(c *gin.Context) {
	items, err := h.service.ListVariants(c.Request.Context(), inventory.VariantFilter{
		ProductID:       c.Query("productId"),
		IncludeArchived: h.ParseBoolQuery(c, "includeArchived", false),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.List(c, items, len(items))
}

// GetVariant handles GET /variants/:id.
func (h *InventoryHandler) GetVariant(c *gin.Context) {
	v, err := h.service.GetVariant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, v)
}

// SetThresholds handles PUT /variants/:id/thresholds.
func (h *InventoryHandler) SetThresholds(c *gin.Context) {
	var req dto.ThresholdsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	v, err := h.service.SetThresholds(c.Request.Context(), c.Param("id"), req.ToThresholds())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, v)
}

// Archive handles POST /variants/:id/archive.
func (h *InventoryHandler) Archive(c *gin.Context) {
	v, err := h.service.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, v)
}

// LowStock handles GET /low-stock.
func (h *InventoryHandler) LowStock(c *gin.Context) {
	levels, err := h.service.LowStock(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.List(c, levels, len(levels))
}
