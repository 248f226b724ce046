// Package main runs the token radar service: the discovery/refresh scheduler
// and the HTTP API over the tracked-token dataset.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-token-radar/internal/api"
	"solana-token-radar/internal/app"
	"solana-token-radar/internal/config"
	"solana-token-radar/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (default: ./config.yaml if present)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	if err := run(*configPath, *useMemory); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useMemory bool) error {
	if useMemory {
		os.Setenv(config.EnvPrefix+"_STORAGE_USE_MEMORY", "true")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := app.NewStores(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	// Scheduler stop never cancels passCtx; only shutdown does.
	passCtx, cancelPasses := context.WithCancel(context.Background())
	defer cancelPasses()

	svc := app.NewService(app.Options{
		Config:  cfg,
		Stores:  stores,
		Clients: app.NewClients(cfg.Upstream, logger),
		Context: passCtx,
		Logger:  logger,
	})
	server := api.New(api.Config{Debug: cfg.HTTP.Debug}, svc, logger)

	if cfg.Scheduler.Autostart {
		svc.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
		if err := server.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		svc.Stop()
		if err := server.ShutdownWithTimeout(cfg.HTTP.ShutdownTimeout); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := svc.Wait(waitCtx); err != nil {
			logger.Warn("in-flight pass did not finish, cancelling", zap.Error(err))
			cancelPasses()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
