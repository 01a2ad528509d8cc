// Package main runs the marketplace layer daemon: the settlement engine,
// its background workers, and the REST API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/Meridian-Network/marketplace_layer/internal/app"
	"github.com/Meridian-Network/marketplace_layer/internal/app/httpapi"
	"github.com/Meridian-Network/marketplace_layer/internal/app/ledger"
	"github.com/Meridian-Network/marketplace_layer/internal/app/storage/postgres"
	"github.com/Meridian-Network/marketplace_layer/internal/chain"
	"github.com/Meridian-Network/marketplace_layer/internal/config"
	"github.com/Meridian-Network/marketplace_layer/internal/errors"
	"github.com/Meridian-Network/marketplace_layer/internal/middleware"
	"github.com/Meridian-Network/marketplace_layer/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "marketd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.LoadMarketplaceFile(); err != nil {
		return err
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}).WithField("component", "marketd")

	stores, closeStores, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	opts := app.Options{AuditInterval: cfg.Marketplace.AuditInterval}
	if cfg.Chain.Enabled {
		settlement, chainErr := buildChainLedger(cfg, log)
		if chainErr != nil {
			return fmt.Errorf("configure chain ledger: %w", chainErr)
		}
		opts.Ledger = settlement
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Stop(stopCtx); err != nil {
			log.WithError(err).Warn("shutdown incomplete")
		}
	}()

	if cfg.Marketplace.AutoInitialize {
		if err := autoInitialize(ctx, application, cfg, log); err != nil {
			return err
		}
	}

	handler := httpapi.NewHandler(application)
	// Inside the router so the route template is available as the path label.
	handler.Use(middleware.Metrics)

	auth := middleware.NewAuthMiddleware(cfg.Auth.Secret, log, []string{"/health", "/metrics"})
	limiter := middleware.NewRateLimiter(cfg.Marketplace.RateLimitPerSecond, cfg.Marketplace.RateLimitBurst)

	var root http.Handler = handler
	root = limiter.Handler(root)
	root = auth.Handler(root)
	root = middleware.CORS(root)
	root = middleware.RequestID(root)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("marketplace API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	switch cfg.Database.Driver {
	case "", "memory":
		return app.Stores{}, func() {}, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
		}
		store := postgres.New(db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return app.Stores{}, nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("postgres store ready")
		return app.Stores{Configs: store, Services: store, Asks: store}, func() { db.Close() }, nil
	default:
		return app.Stores{}, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildChainLedger(cfg *config.Config, log *logger.Logger) (ledger.Ledger, error) {
	client, err := chain.NewClient(chain.Config{
		RPCURL:    cfg.Chain.RPCURL,
		NetworkID: cfg.Chain.NetworkID,
		Timeout:   cfg.Chain.Timeout,
	})
	if err != nil {
		return nil, err
	}
	wallet, err := chain.NewWallet(cfg.Chain.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	return ledger.NewChainLedger(client, wallet, cfg.Chain.GasTokenHash, cfg.Chain.ContractHash, log), nil
}

func autoInitialize(ctx context.Context, application *app.Application, cfg *config.Config, log *logger.Logger) error {
	if cfg.Marketplace.Admin == "" {
		return fmt.Errorf("auto initialize requires MARKETPLACE_ADMIN")
	}
	_, err := application.Marketplace.Initialize(ctx, cfg.Marketplace.Admin, cfg.Marketplace.RoyaltyFeeBasisPoints)
	if err != nil {
		if errors.ErrAlreadyInitialized.Is(err) {
			log.Info("marketplace already initialized")
			return nil
		}
		return fmt.Errorf("auto initialize: %w", err)
	}
	log.WithField("admin", cfg.Marketplace.Admin).Info("marketplace initialized at startup")
	return nil
}
