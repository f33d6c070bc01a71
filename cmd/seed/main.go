// Package main provides a CLI tool for seeding the store with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"batterystock/internal/app"
	"batterystock/internal/config"
	appctx "batterystock/internal/core/context"
	"batterystock/internal/core/id"
	"batterystock/internal/core/types"
	"batterystock/internal/domain/auth"
	"batterystock/internal/domain/bill"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/stockentry"
	"batterystock/internal/domain/supplier"
	"batterystock/pkg/logger"
)

const adminEmail = "admin@batterystock.local"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.Store.Driver == config.DriverMemory {
		log.Fatal("seeding the memory store has no lasting effect; set STORE_DRIVER")
	}

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg.Store, nil, log)
	if err != nil {
		log.Fatalw("failed to open store", "error", err)
	}
	defer store.Close(ctx)

	adminID := id.New()
	ctx = appctx.WithUser(ctx, &appctx.UserContext{
		UserID:  adminID,
		Email:   adminEmail,
		Roles:   []string{appctx.RoleAdmin},
		IsAdmin: true,
	})

	if err := seedDemoData(ctx, app.NewServices(store, cfg.App), log); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	if cfg.Auth.JWTIssuer != "" {
		jwtConfig.Issuer = cfg.Auth.JWTIssuer
	}
	token, expiresAt, err := auth.NewJWTService(jwtConfig).GenerateAccessToken(adminID, adminEmail, []string{appctx.RoleAdmin})
	if err != nil {
		log.Fatalw("failed to issue admin token", "error", err)
	}

	fmt.Println("========================================")
	fmt.Println("Seed completed successfully!")
	fmt.Println("========================================")
	fmt.Printf("Admin token (expires %s):\n%s\n", expiresAt.Format(time.RFC3339), token)
	fmt.Println("========================================")
}

func seedDemoData(ctx context.Context, svc *app.Services, log *logger.Logger) error {
	mainWh, err := svc.Inventory.CreateWarehouse(ctx, "Main")
	if err != nil {
		return fmt.Errorf("create warehouse: %w", err)
	}
	showroom, err := svc.Inventory.CreateWarehouse(ctx, "Showroom")
	if err != nil {
		return fmt.Errorf("create warehouse: %w", err)
	}
	log.Infow("seeded warehouses", "main", mainWh.ID, "showroom", showroom.ID)

	product := &inventory.Product{Name: "Volta AGM", Brand: "Volta"}
	if err := svc.Inventory.CreateProduct(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	sup := &supplier.Supplier{
		Name:               "Volta Trading",
		YearlyTargetAmount: types.MustMoney("50000"),
		YearlyTargetYear:   time.Now().Year(),
	}
	if err := svc.Suppliers.Create(ctx, sup); err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}

	demo := []struct {
		capacity int64
		min      int64
		stock    int64
		cost     string
	}{
		{capacity: 45, min: 5, stock: 20, cost: "55.00"},
		{capacity: 60, min: 5, stock: 4, cost: "70.00"},
		{capacity: 100, min: 2, stock: 0, cost: "120.00"},
	}
	for _, d := range demo {
		v := &inventory.Variant{
			ProductID:     product.ID,
			SKU:           fmt.Sprintf("VOLTA-%dAH", d.capacity),
			Capacity:      d.capacity,
			MinQuantity:   d.min,
			MinQuantities: map[string]int64{showroom.ID: 1},
		}
		if err := svc.Inventory.CreateVariant(ctx, v); err != nil {
			return fmt.Errorf("create variant %dAh: %w", d.capacity, err)
		}
		if d.stock == 0 {
			continue
		}
		if _, err := svc.Entries.Create(ctx, stockentry.CreateInput{
			ProductVariantID: v.ID,
			WarehouseID:      mainWh.ID,
			SupplierID:       sup.ID,
			Quantity:         d.stock,
			CostPrice:        types.MustMoney(d.cost),
			Approve:          true,
		}); err != nil {
			return fmt.Errorf("stock variant %dAh: %w", d.capacity, err)
		}
	}
	log.Infow("seeded variants", "product", product.ID, "count", len(demo))

	b, err := svc.Bills.Create(ctx, bill.CreateInput{
		SupplierID: sup.ID,
		Reference:  "INV-DEMO-1",
		Amount:     types.MustMoney("1380.00"),
		DueDate:    time.Now().AddDate(0, 0, 2),
	})
	if err != nil {
		return fmt.Errorf("create bill: %w", err)
	}
	log.Infow("seeded supplier", "supplier", sup.ID, "bill", b.ID)
	return nil
}
