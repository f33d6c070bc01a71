// Package main is the entry point for the batterystock API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"batterystock/internal/app"
	"batterystock/internal/config"
	"batterystock/internal/domain/auth"
	v1 "batterystock/internal/infrastructure/http/v1"
	"batterystock/internal/infrastructure/metrics"
	"batterystock/pkg/logger"
)

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

	ctx := context.Background()
	log.Infow("starting batterystock server", "store", cfg.Store.Driver)

	m := metrics.New()

	store, err := app.OpenStore(ctx, cfg.Store, m.TxRetryHook, log)
	if err != nil {
		log.Fatalw("failed to open store", "error", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warnw("failed to close store", "error", err)
		}
	}()

	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	if cfg.Auth.JWTIssuer != "" {
		jwtConfig.Issuer = cfg.Auth.JWTIssuer
	}
	jwtService := auth.NewJWTService(jwtConfig)

	router := v1.NewRouter(v1.RouterConfig{
		Services:     app.NewServices(store, cfg.App),
		Logger:       log,
		JWTValidator: jwtService,
		Ping:         store.Ping,
		Backend:      store.Backend,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      gzhttp.GzipHandler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = &http.Server{
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
	}

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
