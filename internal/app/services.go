package app

import (
	"io"

	"batterystock/internal/config"
	"batterystock/internal/domain/bill"
	"batterystock/internal/domain/inventory"
	"batterystock/internal/domain/invoice"
	"batterystock/internal/domain/ledger"
	"batterystock/internal/domain/stockentry"
	"batterystock/internal/domain/supplier"
	"batterystock/internal/domain/transfer"
	"batterystock/internal/domain/watch"
	"batterystock/internal/infrastructure/notify"
	"batterystock/pkg/logger"
)

// Services are the business services over one store.
type Services struct {
	Inventory *inventory.Service
	Suppliers *supplier.Service
	Entries   *stockentry.Service
	Bills     *bill.Service
	Transfers *transfer.Service
	Invoices  *invoice.Service
}

// NewServices wires the services to st.
func NewServices(st *Store, cfg config.AppConfig) *Services {
	updater := ledger.NewUpdater(st.Variants, st.Suppliers, st.Movements)
	return &Services{
		Inventory: inventory.NewService(st.TxManager, st.Warehouses, st.Products, st.Variants),
		Suppliers: supplier.NewService(st.Suppliers),
		Entries:   stockentry.NewService(st.TxManager, st.Entries, updater, st.Variants, st.Warehouses, st.Suppliers),
		Bills:     bill.NewService(st.TxManager, st.Bills, updater, st.Suppliers),
		Transfers: transfer.NewService(st.TxManager, st.Transfers, updater, st.Variants, st.Warehouses,
			transfer.Options{AllowNegativeStock: cfg.AllowNegativeStock}),
		Invoices: invoice.NewService(st.TxManager, st.Invoices, updater, st.Variants, st.Warehouses,
			invoice.Options{AllowNegativeStock: cfg.AllowNegativeStock}),
	}
}

// WatchConfig converts configuration to session settings.
func WatchConfig(cfg config.WatchConfig) watch.Config {
	return watch.Config{
		SweepInterval:      cfg.SweepInterval,
		BillRescanInterval: cfg.BillRescanInterval,
		BillDueWindowDays:  cfg.BillDueWindowDays,
		CheckConcurrency:   cfg.CheckConcurrency,
		ResubscribeDelay:   cfg.ResubscribeDelay,
	}
}

// NewSession builds a watch session over st.
func NewSession(st *Store, cfg config.WatchConfig, notifier watch.Notifier, rec watch.Recorder, log *logger.Logger) *watch.Session {
	return watch.NewSession(WatchConfig(cfg), watch.Deps{
		Feed:       st.Feed,
		Variants:   st.Variants,
		Products:   st.Products,
		Warehouses: st.Warehouses,
		Notifier:   notifier,
		Recorder:   rec,
		Logger:     log,
	})
}

// NewNotifier builds the configured sinks. The returned closer flushes
// them.
func NewNotifier(cfg config.NotifyConfig, log *logger.Logger) (watch.Notifier, io.Closer) {
	var (
		sinks   notify.Multi
		closers closerList
	)
	for _, s := range cfg.Sinks {
		switch s {
		case config.SinkLog:
			sinks = append(sinks, notify.NewLogNotifier(log))
		case config.SinkKafka:
			kcfg := notify.DefaultKafkaConfig()
			kcfg.Brokers = cfg.KafkaBrokers
			kcfg.Topic = cfg.KafkaTopic
			k := notify.NewKafkaNotifier(kcfg, log)
			sinks = append(sinks, k)
			closers = append(closers, k)
		}
	}
	if len(sinks) == 1 {
		return sinks[0], closers
	}
	return sinks, closers
}

type closerList []io.Closer

func (l closerList) Close() error {
	var first error
	for _, c := range l {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
