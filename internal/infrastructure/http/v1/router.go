// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"batterystock/internal/app"
	appctx "batterystock/internal/core/context"
	"batterystock/internal/infrastructure/http/v1/handlers"
	"batterystock/internal/infrastructure/http/v1/middleware"
	"batterystock/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Services are the business services the handlers call
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Ping checks store connectivity for the readiness probe
	Ping handlers.PingFunc

	// Backend names the store backend in health responses
	Backend string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Ping, cfg.Backend)
	router.GET("/health", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	{
		base := handlers.NewBaseHandler()
		registerInventoryRoutes(v1, handlers.NewInventoryHandler(base, cfg.Services.Inventory))
		registerSupplierRoutes(v1, handlers.NewSupplierHandler(base, cfg.Services.Suppliers))
		registerStockEntryRoutes(v1, handlers.NewStockEntryHandler(base, cfg.Services.Entries))
		registerBillRoutes(v1, handlers.NewBillHandler(base, cfg.Services.Bills))
		registerSalesRoutes(v1, handlers.NewSalesHandler(base, cfg.Services.Transfers, cfg.Services.Invoices))
	}

	return router
}

func registerInventoryRoutes(rg *gin.RouterGroup, h *handlers.InventoryHandler) {
	rg.POST("/warehouses", h.CreateWarehouse)
	rg.GET("/warehouses", h.ListWarehouses)
	rg.POST("/products", h.CreateProduct)

	variants := rg.Group("/variants")
	{
		variants.POST("", h.CreateVariant)
		variants.GET("", h.ListVariants)
		variants.GET("/:id", h.GetVariant)
		variants.PUT("/:id/thresholds", h.SetThresholds)
		variants.POST("/:id/archive", h.Archive)
	}

	rg.GET("/low-stock", h.LowStock)
}

func registerSupplierRoutes(rg *gin.RouterGroup, h *handlers.SupplierHandler) {
	rg.POST("/suppliers", h.Create)
	rg.GET("/suppliers/:id", h.Get)
}

func registerStockEntryRoutes(rg *gin.RouterGroup, h *handlers.StockEntryHandler) {
	entries := rg.Group("/stock-entries")
	{
		entries.POST("", h.Create)
		entries.GET("/pending", h.ListPending)
		entries.GET("/:id", h.Get)
		entries.POST("/:id/approve", middleware.RequireRole(appctx.RoleAdmin), h.Approve)
		entries.POST("/:id/return", h.Return)
	}
}

func registerBillRoutes(rg *gin.RouterGroup, h *handlers.BillHandler) {
	bills := rg.Group("/bills")
	{
		bills.POST("", h.Create)
		bills.GET("/unpaid", h.ListUnpaid)
		bills.GET("/:id", h.Get)
		bills.POST("/:id/payments", h.RecordPayment)
		bills.PUT("/:id/status", h.SetStatus)
	}
}

func registerSalesRoutes(rg *gin.RouterGroup, h *handlers.SalesHandler) {
	rg.POST("/transfers", h.Transfer)
	rg.POST("/invoices", h.CreateInvoice)
	rg.GET("/invoices/:id", h.GetInvoice)
}
