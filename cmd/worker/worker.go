package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docindex-platform/internal/catalog"
	"docindex-platform/internal/config"
	"docindex-platform/internal/extract"
	"docindex-platform/internal/indexmgr"
	"docindex-platform/internal/lock"
	"docindex-platform/internal/logger"
	"docindex-platform/internal/progress"
	"docindex-platform/internal/queue"
	"docindex-platform/internal/saga"
	"docindex-platform/internal/schedule"
	"docindex-platform/internal/telemetry"
	"docindex-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg.ServiceName+"-worker", cfg.OTLPEndpoint, 1.0)
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

	docs := catalog.New(db, cfg.ExcludedContentTypes)
	resources := indexmgr.New(db, indexmgr.Options{
		VectorSearchEnabled: cfg.VectorSearchEnabled,
		VectorDimensions:    cfg.VectorDimensions,
	}, logger.Logger)
	guard := lock.NewGuard(lock.NewMongoStore(db), logger.Logger)

	reextractor, closeExtractor, err := extract.NewFromConfig(context.Background(), cfg, resources, logger.Logger)
	if err != nil {
		log.Fatal("Failed to initialize content extractor:", err)
	}
	defer closeExtractor()

	publishers := progress.Multi{
		progress.NewRedisNotifier(redisClient),
		progress.NewLogNotifier(logger.Logger),
	}
	if cfg.AlertsEnabled() {
		publishers = append(publishers, services.NewReindexAlerter(services.NewSMTPEmailSender(cfg), cfg.AdminEmails, logger.Logger))
	}

	orchestrator, err := saga.New(saga.Deps{
		Catalog:   docs,
		Resources: resources,
		Active:    resources,
		Extractor: reextractor,
		Progress:  publishers,
		Lock:      guard,
		Metrics:   metrics,
		Logger:    logger.Logger,
	}, saga.Options{
		BatchSize:     cfg.ReindexBatchSize,
		DocumentDelay: cfg.ReindexDocumentDelay,
		ErrorHistory:  cfg.ReindexErrorHistory,
	})
	if err != nil {
		log.Fatal("Failed to build reindex saga:", err)
	}

	driver := queue.NewDriver(orchestrator, queue.NewMongoRunStore(db), queueClient, queue.StepTaskOptions{
		MaxRetry: cfg.ReindexMaxRetry,
		Timeout:  cfg.ReindexStepTimeout,
	}, logger.Logger)

	documents := services.NewDocumentService(docs, resources, guard, queueClient, orchestrator.Migrator(), reextractor, logger.Logger)
	documentHandler := queue.NewDocumentHandler(documents, logger.Logger)

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
				queue.QueueLow:      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task failed", "type", task.Type(), "retried", retried, "max_retry", maxRetry, "error", err)
			}),
			Logger: asynqLogger{},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskReindexStep, driver.HandleReindexStep)
	mux.HandleFunc(queue.TaskDocumentReprocess, documentHandler.HandleDocumentTask)

	scheduler := schedule.NewScheduler()
	if cfg.ReindexCron != "" {
		if err := scheduler.ScheduleJob(schedule.ReindexJobTag, cfg.ReindexCron, schedule.ReindexJob(guard, driver, logger.Logger)); err != nil {
			log.Fatal("Invalid REINDEX_CRON:", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("Periodic reindex scheduled", "cron", cfg.ReindexCron)
	}

	logger.Info("Starting Asynq worker",
		"concurrency", cfg.WorkerConcurrency,
		"queues", "critical(6), default(3), low(1)",
		"batch_size", cfg.ReindexBatchSize,
		"extractor", cfg.ExtractorProvider,
	)

	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")
	server.Shutdown()
}

// asynqLogger routes asynq's own logging through slog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.Debug("asynq", "msg", args) }
func (asynqLogger) Info(args ...interface{})  { logger.Info("asynq", "msg", args) }
func (asynqLogger) Warn(args ...interface{})  { logger.Warn("asynq", "msg", args) }
func (asynqLogger) Error(args ...interface{}) { logger.Error("asynq", "msg", args) }
func (asynqLogger) Fatal(args ...interface{}) { log.Fatal(args...) }
