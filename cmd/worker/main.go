// Package main is the entry point for the batterystock stock watch worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"batterystock/internal/app"
	"batterystock/internal/config"
	"batterystock/internal/domain/watch"
	"batterystock/internal/infrastructure/metrics"
	"batterystock/pkg/logger"
)

const maintenanceInterval = 1 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting batterystock worker", "store", cfg.Store.Driver, "sinks", cfg.Notify.Sinks)

	m := metrics.New()

	store, err := app.OpenStore(ctx, cfg.Store, m.TxRetryHook, log)
	if err != nil {
		log.Fatalw("failed to open store", "error", err)
	}

	notifier, closer := app.NewNotifier(cfg.Notify, log)
	session := app.NewSession(store, cfg.Watch, notifier, m, log)

	if cfg.Metrics.Addr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infow("metrics server starting", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	worker := NewWorker(session, store, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := worker.Run(ctx); err != nil {
			log.Errorw("worker failed", "error", err)
			cancel()
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	if err := closer.Close(); err != nil {
		log.Warnw("failed to close notification sinks", "error", err)
	}
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := store.Close(closeCtx); err != nil {
		log.Warnw("failed to close store", "error", err)
	}
	log.Info("worker stopped")
}

// Worker runs the watch session and periodic store housekeeping.
type Worker struct {
	session *watch.Session
	store   *app.Store
	log     *logger.Logger
}

// NewWorker runs session against the feed and repositories of store.
func NewWorker(session *watch.Session, store *app.Store, log *logger.Logger) *Worker {
	return &Worker{
		session: session,
		store:   store,
		log:     log.WithComponent("worker"),
	}
}

// Run starts the session and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.session.Start(ctx); err != nil {
		return fmt.Errorf("start watch session: %w", err)
	}
	defer w.session.Stop()

	if w.store.Maintain == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.store.Maintain(ctx); err != nil {
				w.log.Warnw("store maintenance failed", "error", err)
			}
		}
	}
}
