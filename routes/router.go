// Package routes exposes ClickSprout over HTTP.
package routes

import (
	"net/http"
	"time"

	"clicksprout/internal/auth"
	"clicksprout/internal/config"
	"clicksprout/internal/crawler"
	"clicksprout/internal/engine"
	"clicksprout/internal/generator"
	"clicksprout/internal/platform"
	"clicksprout/internal/settings"
	"clicksprout/internal/store"
	"clicksprout/internal/telemetry"
	"clicksprout/middleware"
	"clicksprout/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName  = "clicksprout"
	maxBodyBytes = 1 << 20
)

// Dependencies are the components the handlers call into
type Dependencies struct {
	Config     *config.Config
	Scraper    *crawler.Scraper
	Generator  *generator.Generator
	Repos      *store.Repositories
	Engine     *engine.Engine
	Publishers *platform.Registry
	Analytics  *services.AnalyticsService
	Export     *services.ExportService
	Settings   *settings.Service
	Issuer     *auth.Issuer
	Operator   auth.Operator
	Redis      *redis.Client
	Metrics    *telemetry.Metrics
}

// NewRouter builds the gin engine with middleware and every route group
func NewRouter(d Dependencies) *gin.Engine {
	cfg := d.Config

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(d.Metrics))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(maxBodyBytes))
	router.Use(middleware.RateLimitMiddleware(d.Redis, middleware.RateLimit{
		Requests: cfg.RateLimitReqs,
		Window:   time.Duration(cfg.RateLimitWindow) * time.Second,
		Scope:    "api",
	}))

	router.GET("/health", handleHealth(d))

	authMiddleware := middleware.NewAuthMiddleware(d.Issuer)
	guard := []gin.HandlerFunc{authMiddleware.RequireOperator(), middleware.AuditMiddleware()}

	SetupAuthRoutes(router, d)
	SetupContentRoutes(router, d)
	SetupCampaignRoutes(router, d)
	SetupPostingRoutes(router, d, guard)
	SetupAnalyticsRoutes(router, d)
	SetupSettingsRoutes(router, d, guard)

	return router
}

func handleHealth(d Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := d.Engine.Status()
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now().UTC(),
			"engine":      status.Running,
			"maintenance": status.Maintenance,
			"llm":         d.Generator.LLMEnabled(),
			"store":       d.Config.StoreBackend,
			"dispatch":    d.Config.DispatchBackend,
		})
	}
}

// guarded prefixes h with the operator guard chain
func guarded(guard []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(guard)+1)
	return append(append(chain, guard...), h)
}
