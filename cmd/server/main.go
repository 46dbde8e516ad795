package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/auditlog"
	"github.com/catalogsync/backend/internal/infrastructure/cache"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/ecommerce"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/persistence"
	"github.com/catalogsync/backend/internal/infrastructure/scheduler"
	"github.com/catalogsync/backend/internal/infrastructure/storage"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/catalogsync/backend/internal/interfaces/http/handler"
	"github.com/catalogsync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	// Log export, attached before anything else logs
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		Level:             cfg.Telemetry.LogsLevel,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer shutdownProvider(log, "logger", loggerProvider.Shutdown)
	exported, err := loggerProvider.Attach(log)
	if err != nil {
		log.Fatal("Failed to attach log export", zap.Error(err))
	}
	log = exported

	log.Info("Starting catalog sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Traces
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.TracingEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownProvider(log, "tracer", tracerProvider.Shutdown)
	tp := tracerProvider.Provider()

	// Metrics
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer shutdownProvider(log, "meter", meterProvider.Shutdown)
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormLevel))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.TracingEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
			DBName:                cfg.Database.DBName,
			IncludeQueryVariables: cfg.Telemetry.DBTraceVariables,
			TracerProvider:        tp,
		}); err != nil {
			log.Fatal("Failed to enable database tracing", zap.Error(err))
		}
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access connection pool", zap.Error(err))
	}
	dbMetrics, err := telemetry.NewDBMetrics(meter, sqlDB, telemetry.DBMetricsConfig{}, log)
	if err != nil {
		log.Fatal("Failed to initialize database metrics", zap.Error(err))
	}
	dbMetrics.Start(ctx)
	defer dbMetrics.Stop()

	productRepo := persistence.NewGormProductRepository(db.DB)

	// Remote catalog
	shopifyCfg := ecommerce.NewShopifyConfig(cfg.Shopify.StoreDomain, cfg.Shopify.AccessToken)
	if cfg.Shopify.APIVersion != "" {
		shopifyCfg.APIVersion = cfg.Shopify.APIVersion
	}
	if cfg.Shopify.Timeout > 0 {
		shopifyCfg.Timeout = cfg.Shopify.Timeout
	}
	if cfg.Shopify.RetryAttempts > 0 {
		shopifyCfg.RetryAttempts = cfg.Shopify.RetryAttempts
	}
	if cfg.Shopify.RetryDelay > 0 {
		shopifyCfg.RetryDelay = cfg.Shopify.RetryDelay
	}
	platform, err := ecommerce.NewShopifyAdapter(shopifyCfg,
		ecommerce.WithShopifyLogger(log),
		ecommerce.WithShopifyTracerProvider(tp),
	)
	if err != nil {
		log.Fatal("Failed to initialize Shopify client", zap.Error(err))
	}

	// Product sync
	syncMetrics, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		log.Fatal("Failed to initialize sync metrics", zap.Error(err))
	}
	syncOpts := []syncapp.ProductSyncOption{
		syncapp.WithSyncLogger(log),
		syncapp.WithSyncMetrics(syncMetrics),
	}
	if archiver := newAuditArchiver(ctx, cfg, log); archiver != nil {
		syncOpts = append(syncOpts, syncapp.WithAuditArchiver(archiver))
	}
	syncService := syncapp.NewProductSyncService(
		productRepo,
		platform,
		auditlog.NewFactory(auditlog.Config{
			Dir:         cfg.AuditLog.Dir,
			Prefix:      cfg.AuditLog.Prefix,
			MaxBuffered: cfg.AuditLog.MaxBuffered,
		}, log),
		syncapp.SyncConfig{
			PageSize:       cfg.Sync.PageSize,
			FlushThreshold: cfg.Sync.FlushThreshold,
			RequestDelay:   cfg.Sync.RequestDelay,
			SkipTags:       cfg.Sync.SkipTags,
			ClearSkipped:   cfg.Sync.ClearSkipped,
		},
		syncOpts...,
	)

	// Single-flight guard and scheduler
	lockFactory := cache.NewSyncLockFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	syncLock, err := lockFactory.CreateLock()
	if err != nil {
		log.Fatal("Failed to create sync lock", zap.Error(err))
	}

	syncScheduler, err := scheduler.NewProductSyncScheduler(
		scheduler.ProductSyncSchedulerConfig{HistorySize: cfg.Scheduler.HistorySize},
		syncService,
		syncLock,
		log,
		scheduler.WithTracerProvider(tp),
	)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}

	var intervalTrigger *scheduler.IntervalTrigger
	if cfg.Scheduler.IntervalEnabled {
		intervalTrigger, err = scheduler.NewIntervalTrigger(
			scheduler.IntervalTriggerConfig{Interval: cfg.Scheduler.Interval},
			syncScheduler,
			log,
		)
		if err != nil {
			log.Fatal("Failed to create interval trigger", zap.Error(err))
		}
		intervalTrigger.Start(ctx)
	}

	// HTTP
	ginMode := gin.DebugMode
	if cfg.App.Env == "production" {
		ginMode = gin.ReleaseMode
	}
	engineCfg := router.EngineConfig{
		Mode:           ginMode,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}
	if cfg.Telemetry.TracingEnabled {
		engineCfg.TracerProvider = tp
		engineCfg.ServiceName = cfg.Telemetry.ServiceName
	}
	engine, err := router.NewEngine(engineCfg, log)
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}
	router.NewRouter(engine).
		Register(handler.NewCatalogSyncHandler(syncScheduler, syncService)).
		Register(handler.NewSystemHandler(cfg.App.Name, db)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	httpCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if intervalTrigger != nil {
		intervalTrigger.Stop()
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Scheduler.StopTimeout)
	defer stopCancel()
	if err := syncScheduler.Stop(stopCtx); err != nil {
		log.Warn("Product sync did not stop in time", zap.Error(err))
	}
	if closer, ok := syncLock.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error("Error closing sync lock", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// shutdownProvider flushes one telemetry provider at exit
func shutdownProvider(log *zap.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error("Error shutting down "+name+" provider", zap.Error(err))
	}
}

// newAuditArchiver returns nil when archiving is disabled or misconfigured;
// the sync still writes the local audit file.
func newAuditArchiver(ctx context.Context, cfg *config.Config, log *zap.Logger) integration.AuditArchiver {
	if !cfg.Storage.Enabled {
		return nil
	}
	archiver, err := storage.NewS3AuditArchiver(ctx, &cfg.Storage, storage.WithLogger(log))
	if err != nil {
		log.Error("Audit archive disabled", zap.Error(err))
		return nil
	}
	return archiver
}
