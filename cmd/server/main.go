package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ledgerlink/backend/docs"
	appledger "github.com/ledgerlink/backend/internal/application/ledger"
	appreconcile "github.com/ledgerlink/backend/internal/application/reconcile"
	"github.com/ledgerlink/backend/internal/application/saga"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/infrastructure/cache"
	"github.com/ledgerlink/backend/internal/infrastructure/config"
	"github.com/ledgerlink/backend/internal/infrastructure/erp"
	"github.com/ledgerlink/backend/internal/infrastructure/logger"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence"
	"github.com/ledgerlink/backend/internal/infrastructure/telemetry"
	"github.com/ledgerlink/backend/internal/interfaces/http/handler"
	"github.com/ledgerlink/backend/internal/interfaces/http/middleware"
	"github.com/ledgerlink/backend/internal/interfaces/http/router"
)

//	@title			LedgerLink Backend API
//	@version		1.0
//	@description	ERP-synchronized batch inventory ledger

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log := logger.New(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting inventory ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("error shutting down meter provider", zap.Error(err))
		}
	}()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()
	log.Info("database connected")

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBSystem:   "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("failed to register database tracing", zap.Error(err))
	}

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	locationRepo := persistence.NewGormLocationRepository(db.DB)
	lotRepo := persistence.NewGormLotRepository(db.DB)
	stockRepo := persistence.NewGormLocationStockRepository(db.DB)
	operationRepo := persistence.NewGormOperationRepository(db.DB)
	documentRepo := persistence.NewGormExternalDocumentRepository(db.DB)
	runRepo := persistence.NewGormReconciliationRunRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	// ERP client
	erpClient, err := erp.NewClient(cfg.ERP, log)
	if err != nil {
		log.Fatal("failed to configure ERP client", zap.Error(err))
	}

	// Run lock: Redis when reachable, process-local otherwise
	lockFactory := cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log))
	runLock, err := lockFactory.CreateLock()
	if err != nil {
		log.Fatal("failed to create run lock", zap.Error(err))
	}
	defer func() {
		if err := runLock.Close(); err != nil {
			log.Error("error closing run lock", zap.Error(err))
		}
	}()

	// Application services
	batchLedger := appledger.NewBatchLedgerService(scope, lotRepo, stockRepo, log)
	coordinator := saga.NewDualWriteCoordinator(
		scope, batchLedger, operationRepo, productRepo, locationRepo,
		erpClient, cfg.Sync.CommitTimeout, log,
	)
	scanner := appreconcile.NewScanner(
		runLock, erpClient, runRepo, documentRepo, operationRepo, productRepo,
		cfg.Reconcile, log,
	)
	importer := appreconcile.NewImportService(
		scope, batchLedger, documentRepo, productRepo, locationRepo, lotRepo, log,
	)

	if meterProvider.IsEnabled() {
		businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:          meterProvider.Meter("ledger.business"),
			Logger:         log,
			ReviewProvider: reviewQueueProvider{docs: documentRepo},
		})
		if err != nil {
			log.Fatal("failed to initialize business metrics", zap.Error(err))
		}
		defer businessMetrics.Stop()

		batchLedger.SetBusinessMetrics(businessMetrics)
		coordinator.SetBusinessMetrics(businessMetrics)
		scanner.SetBusinessMetrics(businessMetrics)
		importer.SetBusinessMetrics(businessMetrics)

		go businessMetrics.StartPeriodicCollection(ctx, 5*time.Minute)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Liveness and readiness outside API versioning
	systemHandler := handler.NewSystemHandler(map[string]handler.ReadyCheck{
		"database": func(ctx context.Context) error {
			return db.Ping()
		},
	})
	systemHandler.RegisterRootRoutes(engine)

	if cfg.Swagger.Enabled {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(handler.NewOperationHandler(coordinator)).
		Register(handler.NewInventoryHandler(batchLedger)).
		Register(handler.NewReconciliationHandler(scanner, runRepo)).
		Register(handler.NewExternalDocumentHandler(importer)).
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
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

// reviewQueueProvider feeds the review queue depth gauge from the document
// repository's per-status counts.
type reviewQueueProvider struct {
	docs reconcile.ExternalDocumentRepository
}

func (p reviewQueueProvider) OpenDocumentCount(ctx context.Context) (int64, error) {
	counts, err := p.docs.CountByStatus(ctx)
	if err != nil {
		return 0, err
	}
	return counts[reconcile.DocStatusPendingReview] + counts[reconcile.DocStatusAcknowledged], nil
}
