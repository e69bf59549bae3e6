package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clicksprout/internal/ai"
	"clicksprout/internal/auth"
	"clicksprout/internal/config"
	"clicksprout/internal/crawler"
	"clicksprout/internal/engine"
	"clicksprout/internal/generator"
	"clicksprout/internal/logger"
	"clicksprout/internal/platform"
	"clicksprout/internal/queue"
	"clicksprout/internal/settings"
	"clicksprout/internal/store"
	"clicksprout/internal/telemetry"
	"clicksprout/routes"
	"clicksprout/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("clicksprout", cfg.OTLPEndpoint, cfg.TraceSample)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
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
		if err := closeStore(ctx); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()
	repos := store.NewRepositories(backend)

	// Redis backs rate limiting, token revocation and the asynq dispatcher
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without it", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	ctx := context.Background()
	gen := generator.New(nil, metrics)
	gemini, err := ai.NewGeminiClient(ctx, cfg, metrics)
	switch {
	case err != nil:
		logger.Warn("Gemini client unavailable, using templates", "error", err)
	case gemini != nil:
		defer gemini.Close()
		gen = generator.New(gemini, metrics)
	}

	publishers := platform.NewRegistry(cfg, metrics)
	alerts := services.NewAlertService(repos.Alerts, newNotifier(cfg))

	var dispatcher engine.Dispatcher
	if cfg.DispatchBackend == "asynq" {
		redisOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			log.Fatal("Failed to configure asynq:", err)
		}
		asynqDispatcher := queue.NewAsynqDispatcher(redisOpt)
		defer asynqDispatcher.Close()
		dispatcher = asynqDispatcher
		logger.Info("Posts are dispatched through asynq, run cmd/worker to publish them")
	}

	// maintenance mode lives in Redis when available so workers honour it too
	var maintenance engine.MaintenanceFlag
	if rdb != nil {
		maintenance = queue.NewRedisMaintenanceFlag(rdb)
	}

	eng, err := engine.New(engine.Deps{
		Repos:       repos,
		Publishers:  publishers,
		Alerts:      alerts,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Maintenance: maintenance,
	}, engine.ConfigFromEnv(cfg))
	if err != nil {
		log.Fatal("Failed to create posting engine:", err)
	}
	if err := eng.Start(ctx); err != nil {
		log.Fatal("Failed to start posting engine:", err)
	}

	prefs, err := settings.NewService(cfg.SettingsFile)
	if err != nil {
		log.Fatal("Failed to load settings:", err)
	}

	ttl, err := time.ParseDuration(cfg.JWTExpiresIn)
	if err != nil {
		logger.Warn("Invalid JWT_EXPIRES_IN, using 24h", "value", cfg.JWTExpiresIn)
		ttl = 24 * time.Hour
	}
	issuer := auth.NewIssuer(cfg.JWTSecret, ttl, rdb)
	if !issuer.Enabled() {
		logger.Warn("JWT_SECRET not set, operator routes are open")
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(routes.Dependencies{
		Config:     cfg,
		Scraper:    crawler.NewScraper(crawler.OptionsFromConfig(cfg), metrics),
		Generator:  gen,
		Repos:      repos,
		Engine:     eng,
		Publishers: publishers,
		Analytics:  services.NewAnalyticsService(repos, publishers, cfg.AnalyticsCacheTTL),
		Export:     services.NewExportService(repos.Posts, repos.Analytics),
		Settings:   prefs,
		Issuer:     issuer,
		Operator:   auth.Operator{Username: cfg.OperatorUsername, PasswordHash: cfg.OperatorPasswordHash},
		Redis:      rdb,
		Metrics:    metrics,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting",
			"port", cfg.Port,
			"store", cfg.StoreBackend,
			"dispatch", cfg.DispatchBackend,
			"llm", gen.LLMEnabled())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	eng.Stop()

	logger.Info("Server exited")
}

func newNotifier(cfg *config.Config) services.Notifier {
	sender := services.NewSMTPEmailSender(cfg)
	if !sender.Enabled() {
		return nil
	}
	return services.NewEmailNotifier(sender, cfg.AdminEmails)
}
