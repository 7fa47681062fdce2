package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-commerce/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-commerce/internal/app"
	"github.com/odyssey-erp/odyssey-commerce/internal/cart"
	"github.com/odyssey-erp/odyssey-commerce/internal/catalog"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/observability"
	"github.com/odyssey-erp/odyssey-commerce/internal/orders"
	"github.com/odyssey-erp/odyssey-commerce/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-commerce/internal/platform/db"
	"github.com/odyssey-erp/odyssey-commerce/internal/rbac"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(ctx, cfg, logger, os.Args[2:]))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		// Stock reads fall through to postgres without a cache.
		logger.Warn("redis unavailable, inventory cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}
	auditLogger := shared.NewAuditLogger(dbpool)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), auditLogger, catalog.ServiceConfig{
		DefaultCurrency: cfg.DefaultCurrency,
	})
	inventoryService := inventory.NewService(
		inventory.NewRepository(dbpool),
		cache.NewJSONCache(redisClient, cfg.InventoryCacheTTL).WithLogger(logger),
		auditLogger,
	).WithLogger(logger)
	cartService := cart.NewService(cart.NewRepository(dbpool), catalogService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("jobs inspector close", slog.Any("error", err))
		}
	}()

	ordersService := orders.NewService(
		orders.NewRepository(dbpool, orders.RepositoryConfig{
			StatementTimeout: cfg.CheckoutStatementTimeout,
			LockTimeout:      cfg.CheckoutLockTimeout,
		}),
		auditLogger,
		shared.NewIdempotencyStore(dbpool),
		orders.ServiceConfig{
			CheckoutTimeout: cfg.CheckoutTimeout,
			DefaultCurrency: cfg.DefaultCurrency,
		},
		orders.Hooks{
			Notifier: jobClient,
			Stock:    inventoryService,
			Metrics:  metrics.Checkout(),
			Logger:   logger,
		},
	)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		RBACMiddleware:   rbacMiddleware,
		CatalogHandler:   catalog.NewHandler(logger, catalogService, rbacMiddleware),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		CartHandler:      cart.NewHandler(logger, cartService, rbacMiddleware),
		OrdersHandler:    orders.NewHandler(logger, ordersService, rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		logger.Error("jobs cli", slog.Any("error", err))
		return 1
	}
	defer jobsCLI.Close()
	if err := jobsCLI.Run(ctx, args, os.Stdout); err != nil {
		logger.Error("jobs command", slog.Any("error", err))
		return 2
	}
	return 0
}
