package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/order"
	"github.com/erp/ordersync/internal/infrastructure/cache"
	"github.com/erp/ordersync/internal/infrastructure/config"
	"github.com/erp/ordersync/internal/infrastructure/idgen"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/persistence"
	"github.com/erp/ordersync/internal/infrastructure/storage"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
	"github.com/erp/ordersync/internal/infrastructure/warehouse"
	"github.com/erp/ordersync/internal/interfaces/http/handler"
	"github.com/erp/ordersync/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()
	otelCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}

	logsCfg := otelCfg
	logsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled
	logProvider, err := telemetry.NewLoggerProvider(ctx, logsCfg)
	if err != nil {
		panic("Failed to initialize log exporter: " + err.Error())
	}
	var extraCores []zapcore.Core
	if core := logProvider.Core(); core != nil {
		extraCores = append(extraCores, core)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, extraCores...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting order sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, otelCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	metricsCfg := telemetry.MetricsConfig{Config: otelCfg, Interval: cfg.Telemetry.MetricsInterval}
	metricsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled
	meterProvider, err := telemetry.NewMeterProvider(ctx, metricsCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	meter := meterProvider.Meter(telemetry.TracerName)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}
	dbMeter := meter
	if !meterProvider.IsEnabled() {
		dbMeter = nil
	}
	if err := telemetry.InstrumentDB(db.DB, telemetry.DBConfig{
		TraceEnabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBSystem:     cfg.Database.Driver,
	}, dbMeter, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	ids, err := idgen.NewSnowflake(cfg.App.NodeID)
	if err != nil {
		log.Fatal("Failed to create ID generator", zap.Error(err))
	}

	recommender, err := warehouse.NewRecommender(cfg.Warehouse)
	if err != nil {
		log.Fatal("Failed to create warehouse recommender", zap.Error(err))
	}

	var archive order.PayloadArchive = storage.NoopPayloadArchive{}
	if cfg.Archive.Enabled {
		archive, err = storage.NewS3PayloadArchive(ctx, &cfg.Archive, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create payload archive", zap.Error(err))
		}
	}

	ledger := cache.NewDeliveryLedger(ctx, cfg.Redis, log)

	customerPolicy, err := order.ParseCustomerMergePolicy(cfg.Webhook.CustomerMergePolicy)
	if err != nil {
		log.Fatal("Invalid customer merge policy", zap.Error(err))
	}

	var metrics ordersync.Metrics = ordersync.NopMetrics{}
	if meterProvider.IsEnabled() {
		ingestionMetrics, err := telemetry.NewIngestionMetrics(meter)
		if err != nil {
			log.Fatal("Failed to create ingestion metrics", zap.Error(err))
		}
		metrics = ingestionMetrics
	}

	shops := persistence.NewGormShopRepository(db.DB)
	reconciler := ordersync.NewReconciler(ordersync.ReconcilerConfig{
		Scope:            persistence.NewGormReconcileScope(db.DB, ids),
		IDs:              ids,
		Warehouse:        recommender,
		WarehouseTimeout: cfg.Warehouse.Timeout,
		UnknownSKUPolicy: order.UnknownSKUPolicy(cfg.Webhook.UnknownSKUPolicy),
		CustomerPolicy:   customerPolicy,
		Metrics:          metrics,
		Logger:           log,
	})
	ingestion := ordersync.NewIngestionService(ordersync.IngestionServiceConfig{
		Shops:                   shops,
		Reconciler:              reconciler,
		Ledger:                  ledger,
		DeliveryTTL:             cfg.Webhook.DeliveryTTL,
		Archive:                 archive,
		SkipSignatureValidation: cfg.Webhook.SkipSignatureValidation,
		Metrics:                 metrics,
		Logger:                  log,
	})
	if cfg.Webhook.SkipSignatureValidation {
		log.Warn("Webhook signature validation is disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := router.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		TracingEnabled:   tracerProvider.IsEnabled(),
		ProfilingEnabled: profiler.IsEnabled(),
		MaxBodyBytes:     cfg.Webhook.MaxBodyBytes,
	}
	if meterProvider.IsEnabled() {
		routerCfg.Meter = meter
	}
	engine, err := router.New(routerCfg, log,
		handler.NewHealthHandler(db),
		handler.NewOrderWebhookHandler(ingestion, cfg.Webhook.MaxBodyBytes),
	)
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := ledger.Close(); err != nil {
		log.Error("Error closing delivery ledger", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
