// Package app assembles stores, services and the watch session from
// configuration. The binaries under cmd/ share it.
package app

import (
	"context"
	"fmt"
	"time"

	"batterystock/internal/config"
	"batterystock/internal/core/changefeed"
	"batterystock/internal/core/tx"
	"batterystock/internal/domain/bill"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/invoice"
	"batterystock/internal/domain/ledger"
	"batterystock/internal/domain/stockentry"
	"batterystock/internal/domain/supplier"
	"batterystock/internal/domain/transfer"
	"batterystock/internal/infrastructure/storage/memory"
	"batterystock/internal/infrastructure/storage/mongodb"
	"batterystock/internal/infrastructure/storage/postgres"
	"batterystock/internal/infrastructure/storage/postgres/catalog_repo"
	"batterystock/internal/infrastructure/storage/postgres/document_repo"
	"batterystock/internal/infrastructure/storage/postgres/register_repo"
	"batterystock/pkg/logger"
)

// Store is one storage backend with every repository the services need.
type Store struct {
	Backend string

	TxManager tx.Manager
	Feed      changefeed.Feed

	Warehouses inventory.WarehouseRepository
	Products   inventory.ProductRepository
	Variants   inventory.VariantRepository
	Suppliers  supplier.Repository
	Movements  ledger.MovementRepository
	Entries    stockentry.Repository
	Bills      bill.Repository
	Transfers  transfer.Repository
	Invoices   invoice.Repository

	// Maintain runs periodic backend housekeeping; nil when there is none.
	Maintain func(ctx context.Context) error
	// Ping checks the backend is reachable.
	Ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Close releases the backend's connections.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// RetryPolicy builds the transaction retry policy from configuration.
func RetryPolicy(cfg config.StoreConfig) tx.RetryPolicy {
	p := tx.DefaultRetryPolicy()
	p.MaxRetries = cfg.TxMaxRetries
	return p
}

// OpenStore connects the configured backend. onRetry, if not nil, is
// called whenever a conflicting transaction is re-run.
func OpenStore(ctx context.Context, cfg config.StoreConfig, onRetry func(backend string) func(error), log *logger.Logger) (*Store, error) {
	hook := func(backend string) func(error) {
		if onRetry == nil {
			return nil
		}
		return onRetry(backend)
	}
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryStore(memory.Options{Retry: RetryPolicy(cfg), OnRetry: hook(config.DriverMemory), Logger: log}), nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, hook(config.DriverPostgres), log)
	case config.DriverMongoDB:
		return openMongo(ctx, cfg, hook(config.DriverMongoDB), log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewMemoryStore wraps an in-process store.
func NewMemoryStore(opts memory.Options) *Store {
	s := memory.New(opts)
	return &Store{
		Backend:    config.DriverMemory,
		TxManager:  s,
		Feed:       s,
		Warehouses: memory.NewWarehouseRepo(s),
		Products:   memory.NewProductRepo(s),
		Variants:   memory.NewVariantRepo(s),
		Suppliers:  memory.NewSupplierRepo(s),
		Movements:  memory.NewMovementRepo(s),
		Entries:    memory.NewEntryRepo(s),
		Bills:      memory.NewBillRepo(s),
		Transfers:  memory.NewTransferRepo(s),
		Invoices:   memory.NewInvoiceRepo(s),
		Ping:       func(context.Context) error { return nil },
	}
}

// changeRetention is how long postgres keeps change log rows.
const changeRetention = 7 * 24 * time.Hour

func openPostgres(ctx context.Context, cfg config.StoreConfig, onRetry func(error), log *logger.Logger) (*Store, error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	txm := postgres.NewTxManager(pool, RetryPolicy(cfg))
	if onRetry != nil {
		txm.OnRetry(onRetry)
	}
	recorder := postgres.NewChangeRecorder(txm)

	movements := register_repo.NewMovementRepo(txm, recorder)
	entries := document_repo.NewStockEntryRepo(txm, recorder)
	bills := document_repo.NewBillRepo(txm, recorder)

	feed := postgres.NewFeed(pool, txm, log)
	feed.Register(changefeed.StockEntries, entries.Snapshot)
	feed.Register(changefeed.Bills, bills.Snapshot)

	return &Store{
		Backend:    config.DriverPostgres,
		TxManager:  txm,
		Feed:       feed,
		Warehouses: catalog_repo.NewWarehouseRepo(txm),
		Products:   catalog_repo.NewProductRepo(txm),
		Variants:   catalog_repo.NewVariantRepo(txm),
		Suppliers:  catalog_repo.NewSupplierRepo(txm),
		Movements:  movements,
		Entries:    entries,
		Bills:      bills,
		Transfers:  document_repo.NewTransferRepo(txm),
		Invoices:   document_repo.NewInvoiceRepo(txm),
		Maintain: func(ctx context.Context) error {
			n, err := recorder.Prune(ctx, changeRetention)
			if err == nil && n > 0 {
				logger.Info(ctx, "pruned change log", "rows", n)
			}
			postgres.LogPoolStats(ctx, pool)
			return err
		},
		Ping: func(ctx context.Context) error { return pool.Ping(ctx) },
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}

func openMongo(ctx context.Context, cfg config.StoreConfig, onRetry func(error), log *logger.Logger) (*Store, error) {
	mcfg := mongodb.DefaultConfig()
	mcfg.URI = cfg.MongoURI
	mcfg.Database = cfg.MongoDatabase

	client, err := mongodb.NewClient(ctx, mcfg)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}

	txm := mongodb.NewTxManager(client, RetryPolicy(cfg))
	if onRetry != nil {
		txm.OnRetry(onRetry)
	}

	return &Store{
		Backend:    config.DriverMongoDB,
		TxManager:  txm,
		Feed:       mongodb.NewFeed(client, log),
		Warehouses: mongodb.NewWarehouseRepo(client),
		Products:   mongodb.NewProductRepo(client),
		Variants:   mongodb.NewVariantRepo(client),
		Suppliers:  mongodb.NewSupplierRepo(client),
		Movements:  mongodb.NewMovementRepo(client),
		Entries:    mongodb.NewEntryRepo(client),
		Bills:      mongodb.NewBillRepo(client),
		Transfers:  mongodb.NewTransferRepo(client),
		Invoices:   mongodb.NewInvoiceRepo(client),
		Ping:       client.HealthCheck,
		close:      client.Close,
	}, nil
}
