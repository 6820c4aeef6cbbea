package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docindex-platform/internal/audit"
	"docindex-platform/internal/auth"
	"docindex-platform/internal/catalog"
	"docindex-platform/internal/config"
	"docindex-platform/internal/indexmgr"
	"docindex-platform/internal/lock"
	"docindex-platform/internal/logger"
	"docindex-platform/internal/progress"
	"docindex-platform/internal/queue"
	"docindex-platform/internal/telemetry"
	"docindex-platform/middleware"
	"docindex-platform/routes"
	"docindex-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName, cfg.OTLPEndpoint, 1.0)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Failed to initialize metrics", "error", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration for task queue:", err)
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	tokens, err := auth.NewTokenService(cfg.AccessSecret, redisClient)
	if err != nil {
		log.Fatal("Failed to initialize token service:", err)
	}

	guard := lock.NewGuard(lock.NewMongoStore(db), logger.Logger)
	resources := indexmgr.New(db, indexmgr.Options{
		VectorSearchEnabled: cfg.VectorSearchEnabled,
		VectorDimensions:    cfg.VectorDimensions,
	}, logger.Logger)
	runs := queue.NewMongoRunStore(db)

	// The API only starts runs; steps execute in the worker.
	driver := queue.NewDriver(nil, runs, queueClient, queue.StepTaskOptions{
		MaxRetry: cfg.ReindexMaxRetry,
		Timeout:  cfg.ReindexStepTimeout,
	}, logger.Logger)

	documents := services.NewDocumentService(
		catalog.New(db, cfg.ExcludedContentTypes),
		resources,
		guard,
		queueClient,
		nil, nil,
		logger.Logger,
	)

	auditLogger := audit.NewLogger(audit.NewMongoSink(db), 1000, logger.Logger)
	defer auditLogger.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestSizeLimit(cfg.MaxRequestBody))
	router.Use(middleware.AuditMiddleware(auditLogger))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"reindex":   guard.Check(c.Request.Context()),
		})
	})

	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// Setup routes
	routes.SetupAdminRoutes(router, routes.AdminDeps{
		Guard:      guard,
		Starter:    driver,
		Progress:   progress.NewRedisNotifier(redisClient),
		Runs:       runs,
		Limiter:    redisClient,
		RateLimit:  cfg.RateLimitReqs,
		RateWindow: time.Duration(cfg.RateLimitWindow) * time.Second,
		Metrics:    metrics,
	}, authMiddleware)
	routes.SetupDocumentRoutes(router, documents, guard, metrics, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
