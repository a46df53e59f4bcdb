package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockyard-wms/stockyard/internal/app"
	"github.com/stockyard-wms/stockyard/internal/invoice"
	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/masterdata/employees"
	"github.com/stockyard-wms/stockyard/internal/masterdata/items"
	"github.com/stockyard-wms/stockyard/internal/masterdata/locations"
	"github.com/stockyard-wms/stockyard/internal/masterdata/suppliers"
	"github.com/stockyard-wms/stockyard/internal/observability"
	"github.com/stockyard-wms/stockyard/internal/platform/cache"
	"github.com/stockyard-wms/stockyard/internal/platform/db"
	"github.com/stockyard-wms/stockyard/internal/rental"
	"github.com/stockyard-wms/stockyard/internal/shared"
	"github.com/stockyard-wms/stockyard/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var cacheStore *cache.Store
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, running without cache", slog.Any("error", err))
	} else {
		cacheStore = cache.NewStore(redisClient, cfg.CacheTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	employeeService := employees.NewService(employees.NewRepository(pool))
	employeesHandler := employees.NewHandler(logger, employeeService)
	itemsHandler := items.NewHandler(logger, items.NewService(items.NewRepository(pool)))
	locationsHandler := locations.NewHandler(logger, locations.NewService(locations.NewRepository(pool)))
	suppliersHandler := suppliers.NewHandler(logger, suppliers.NewService(suppliers.NewRepository(pool)))

	stockHandler := ledger.NewHandler(logger, ledger.NewRepository(pool), cacheStore)

	invoiceService := invoice.NewService(pool, logger, auditLogger, approvalRecorder, cacheStore)
	invoiceHandler := invoice.NewHandler(logger, invoiceService, idempotencyStore)

	rentalService := rental.NewService(pool, logger, auditLogger)
	rentalHandler := rental.NewHandler(logger, rentalService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		EmployeeService:  employeeService,
		StockHandler:     stockHandler,
		InvoiceHandler:   invoiceHandler,
		RentalHandler:    rentalHandler,
		ItemsHandler:     itemsHandler,
		LocationsHandler: locationsHandler,
		SuppliersHandler: suppliersHandler,
		EmployeesHandler: employeesHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
