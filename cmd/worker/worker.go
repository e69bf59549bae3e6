package main

import (
	"context"
	"log"
	"time"

	"clicksprout/internal/config"
	"clicksprout/internal/engine"
	"clicksprout/internal/logger"
	"clicksprout/internal/platform"
	"clicksprout/internal/queue"
	"clicksprout/internal/store"
	"clicksprout/internal/telemetry"
	"clicksprout/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure Redis:", err)
	}
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	backend, closeStore, err := store.Open(cfg)
	if err != nil {
		log.Fatal("Failed to open store:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		closeStore(ctx)
	}()
	repos := store.NewRepositories(backend)

	alerts := services.NewAlertService(repos.Alerts, newNotifier(cfg))

	// Retries found by the worker are queued back onto Redis
	dispatcher := queue.NewAsynqDispatcher(redisOpt)
	defer dispatcher.Close()

	// the API process toggles maintenance through the same Redis key
	eng, err := engine.New(engine.Deps{
		Repos:       repos,
		Publishers:  platform.NewRegistry(cfg, metrics),
		Alerts:      alerts,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Maintenance: queue.NewRedisMaintenanceFlag(rdb),
	}, engine.ConfigFromEnv(cfg))
	if err != nil {
		log.Fatal("Failed to create posting engine:", err)
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.EngineConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
				queue.QueueLow:      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(eng)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskExecutePost, processor.ExecutePost)

	logger.Info("Starting asynq worker",
		"concurrency", cfg.EngineConcurrency,
		"queues", "critical(6), default(3), low(1)",
		"store", cfg.StoreBackend)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}

func newNotifier(cfg *config.Config) services.Notifier {
	sender := services.NewSMTPEmailSender(cfg)
	if !sender.Enabled() {
		return nil
	}
	return services.NewEmailNotifier(sender, cfg.AdminEmails)
}
