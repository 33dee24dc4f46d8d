package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/gestloc/backend/internal/application/billing"
	"github.com/gestloc/backend/internal/infrastructure/cache"
	"github.com/gestloc/backend/internal/infrastructure/config"
	"github.com/gestloc/backend/internal/infrastructure/logger"
	"github.com/gestloc/backend/internal/infrastructure/migration"
	"github.com/gestloc/backend/internal/infrastructure/notification"
	"github.com/gestloc/backend/internal/infrastructure/persistence"
	"github.com/gestloc/backend/internal/infrastructure/scheduler"
	"github.com/gestloc/backend/internal/infrastructure/telemetry"
	"github.com/gestloc/backend/internal/interfaces/http/handler"
	"github.com/gestloc/backend/internal/interfaces/http/middleware"
	"github.com/gestloc/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const migrationsPath = "migrations"

// Batch run summaries are sent to this list until per-owner contact
// management lands.
const billingNotifyRecipient = "owners@gestloc.local"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.New(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting GestLoc Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Schema migrations
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access database handle", zap.Error(err))
	}
	migrator, err := migration.New(sqlDB, migrationsPath, log)
	if err != nil {
		log.Fatal("Failed to initialize migrator", zap.Error(err))
	}
	if err := migrator.Up(); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Repositories
	billRepo := persistence.NewGormBillRepository(db.DB)
	ledgerRepo := persistence.NewGormProfitLedgerRepository(db.DB)
	leaseRepo := persistence.NewGormLeaseRepository(db.DB)
	jobRecorder := persistence.NewGormJobRecorder(db.DB)
	txManager := persistence.NewGormTxManager(db.DB)

	// Statistics cache: Redis when reachable, in-process fallback
	var statsCache billingapp.StatsCache
	redisCache, err := cache.NewRedisStatsCache(cfg.Redis, log)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory statistics cache", zap.Error(err))
		statsCache = cache.NewInMemoryStatsCache()
	} else {
		statsCache = redisCache
		defer func() {
			_ = redisCache.Close()
		}()
	}

	// Application services
	statsService := billingapp.NewStatsService(billRepo, statsCache, cfg.Billing.StatsCacheTTL, nil, log)
	generationService := billingapp.NewGenerationService(
		leaseRepo, billRepo, nil,
		billingapp.GenerationConfig{PerLeaseTimeout: cfg.Billing.PerLeaseTimeout},
		log,
	).WithStatsInvalidator(statsService)
	paymentService := billingapp.NewPaymentService(billRepo, ledgerRepo, txManager, nil, log)
	overdueService := billingapp.NewOverdueService(billRepo, nil, log)

	// Scheduler
	billingScheduler, err := scheduler.NewBillingScheduler(
		cfg.Scheduler, generationService, overdueService, jobRecorder, nil, log)
	if err != nil {
		log.Fatal("Failed to initialize scheduler", zap.Error(err))
	}
	billingScheduler.WithNotifier(notification.NewLogNotifier(log), billingNotifyRecipient)

	if cfg.Scheduler.Enabled {
		if err := billingScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := billingScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()
		log.Info("Billing scheduler started",
			zap.Duration("tick_interval", cfg.Scheduler.TickInterval),
			zap.Int("monthly_run_hour", cfg.Scheduler.MonthlyRunHour),
		)
	} else {
		log.Warn("Billing scheduler disabled, bills are generated only on manual trigger")
	}

	// HTTP engine and middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check outside API versioning
	engine.GET("/health", healthHandler(db))

	// Handlers
	billingHandler := handler.NewBillingHandler(generationService, paymentService, statsService, billingScheduler)
	schedulerHandler := handler.NewSchedulerHandler(billingScheduler, jobRecorder)
	systemHandler := handler.NewSystemHandler()

	// Routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	billingRoutes := router.NewDomainGroup("billing", "/billing")
	billingRoutes.POST("/generate", billingHandler.GenerateBills)
	billingRoutes.GET("/statistics", billingHandler.GetStatistics)

	billRoutes := router.NewDomainGroup("bills", "/bills")
	billRoutes.GET("", billingHandler.ListBills)
	billRoutes.GET("/:billID", billingHandler.GetBill)
	billRoutes.POST("/:billID/pay", billingHandler.PayBill)
	billRoutes.POST("/:billID/undo-payment", billingHandler.UndoPayment)
	billRoutes.POST("/:billID/receipt-sent", billingHandler.MarkReceiptSent)

	ownerRoutes := router.NewDomainGroup("owners", "/owners")
	ownerRoutes.POST("/:ownerID/billing/generate", billingHandler.GenerateOwnerBills)
	ownerRoutes.GET("/:ownerID/ledger", billingHandler.GetOwnerLedger)

	schedulerRoutes := router.NewDomainGroup("scheduler", "/scheduler")
	schedulerRoutes.GET("/status", schedulerHandler.GetStatus)
	schedulerRoutes.GET("/jobs", schedulerHandler.ListJobs)
	schedulerRoutes.POST("/overdue-sweep", schedulerHandler.TriggerOverdueSweep)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)

	r.Register(billingRoutes).
		Register(billRoutes).
		Register(ownerRoutes).
		Register(schedulerRoutes).
		Register(systemRoutes)
	r.Setup()

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
