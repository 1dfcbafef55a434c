package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vanshika/paybridge/internal/ack"
	"github.com/vanshika/paybridge/internal/config"
	"github.com/vanshika/paybridge/internal/logging"
	"github.com/vanshika/paybridge/internal/notification"
	"github.com/vanshika/paybridge/internal/reconcile"
	"github.com/vanshika/paybridge/internal/repository"
	"github.com/vanshika/paybridge/internal/server"
	"github.com/vanshika/paybridge/internal/service"
	"github.com/vanshika/paybridge/internal/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to open transaction store", "error", err, "driver", cfg.Store.Driver)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing transaction store failed", "error", err)
		}
	}()

	claims, err := trigger.Open(cfg.Broker, logger)
	if err != nil {
		logger.Error("failed to open transfer trigger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := claims.Close(); err != nil {
			logger.Warn("closing transfer trigger failed", "error", err)
		}
	}()

	apiHandlers := server.NewAPIHandlers(
		logger,
		notification.NewNormalizer(),
		reconcile.NewEngine(store, claims, logger),
		service.NewPaymentService(store, logger),
		ack.New(cfg.Callback),
	)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: store},
		API:              apiHandlers,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	if err := server.New(logger, cfg.HTTP, router).Run(ctx); err != nil {
		logger.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
