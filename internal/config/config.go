package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Storage backend: "memory" or "mongo"
	StoreBackend string
	MongoURI     string
	DBName       string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting (requests per window seconds, per IP and route)
	RateLimitReqs   int
	RateLimitWindow int

	// Operator auth. Empty JWT secret disables auth on operator routes.
	JWTSecret            string
	JWTExpiresIn         string
	OperatorUsername     string
	OperatorPasswordHash string

	// LLM. Empty key selects template generation.
	GeminiAPIKey string
	GeminiModel  string
	GeminiTier   string
	LLMTimeout   time.Duration

	// Scraper
	ScrapeTimeout   time.Duration
	ScrapeUserAgent string
	ScrapeRenderJS  bool
	RenderTimeout   time.Duration

	// Posting engine. DispatchBackend is "local" or "asynq",
	// RetryBackoff is "exponential" or "fixed".
	DispatchBackend    string
	EngineConcurrency  int
	EngineScanInterval time.Duration
	DefaultMaxRetries  int
	RetryBackoff       string
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	HealthWindow       time.Duration
	DegradedErrorCount int
	CriticalErrorCount int
	PlatformTimeout    time.Duration
	PlatformRPS        float64
	SimulatedPostDelay time.Duration
	PlatformTokens     map[string]string
	PlatformBaseURLs   map[string]string
	AnalyticsCacheTTL  time.Duration

	// Settings file for the operator settings service
	SettingsFile string

	// Telemetry
	OTLPEndpoint string
	TraceSample  float64

	// SMTP Configuration for alert mail
	SMTPHost    string
	SMTPPort    string `default:"587"`
	SMTPUser    string
	SMTPPass    string
	SMTPFrom    string
	AdminEmails []string
}

var platformNames = []string{"instagram", "facebook", "twitter", "linkedin", "pinterest", "reddit", "tiktok", "medium"}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/clicksprout"),
		DBName:       getEnv("DB_NAME", "clicksprout"),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTExpiresIn:         getEnv("JWT_EXPIRES_IN", "24h"),
		OperatorUsername:     getEnv("OPERATOR_USERNAME", "admin"),
		OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:   getEnv("GEMINI_TIER", "free"),
		LLMTimeout:   getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		ScrapeTimeout:   getEnvDuration("SCRAPE_TIMEOUT", 15*time.Second),
		ScrapeUserAgent: getEnv("SCRAPE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
		ScrapeRenderJS:  getEnvBool("SCRAPER_RENDER_JS", false),
		RenderTimeout:   getEnvDuration("SCRAPER_RENDER_TIMEOUT", 45*time.Second),

		DispatchBackend:    getEnv("DISPATCH_BACKEND", "local"),
		EngineConcurrency:  getEnvInt("ENGINE_CONCURRENCY", 4),
		EngineScanInterval: getEnvDuration("ENGINE_SCAN_INTERVAL", 15*time.Second),
		DefaultMaxRetries:  getEnvInt("DEFAULT_MAX_RETRIES", 3),
		RetryBackoff:       getEnv("RETRY_BACKOFF", "exponential"),
		RetryBaseDelay:     getEnvDuration("RETRY_BASE_DELAY", time.Minute),
		RetryMaxDelay:      getEnvDuration("RETRY_MAX_DELAY", 30*time.Minute),
		HealthWindow:       getEnvDuration("HEALTH_WINDOW", time.Hour),
		DegradedErrorCount: getEnvInt("HEALTH_DEGRADED_ERRORS", 3),
		CriticalErrorCount: getEnvInt("HEALTH_CRITICAL_ERRORS", 5),
		PlatformTimeout:    getEnvDuration("PLATFORM_TIMEOUT", 30*time.Second),
		PlatformRPS:        getEnvFloat64("PLATFORM_RPS", 1),
		SimulatedPostDelay: getEnvDuration("SIMULATED_POST_DELAY", 500*time.Millisecond),
		PlatformTokens:     make(map[string]string),
		PlatformBaseURLs:   make(map[string]string),
		AnalyticsCacheTTL:  getEnvDuration("ANALYTICS_CACHE_TTL", time.Hour),

		SettingsFile: getEnv("SETTINGS_FILE", "./data/settings.json"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSample:  getEnvFloat64("OTEL_TRACE_SAMPLE", 0.1),

		SMTPHost:    getEnv("SMTP_HOST", ""),
		SMTPPort:    getEnv("SMTP_PORT", "587"),
		SMTPUser:    getEnv("SMTP_USER", ""),
		SMTPPass:    getEnv("SMTP_PASS", ""),
		SMTPFrom:    getEnv("SMTP_FROM", ""),
		AdminEmails: splitNonEmpty(getEnv("ADMIN_EMAILS", "")),
	}

	// Per-platform credentials, e.g. TWITTER_ACCESS_TOKEN / TWITTER_API_URL
	for _, name := range platformNames {
		prefix := strings.ToUpper(name)
		if token := getEnv(prefix+"_ACCESS_TOKEN", ""); token != "" {
			cfg.PlatformTokens[name] = token
		}
		if base := getEnv(prefix+"_API_URL", ""); base != "" {
			cfg.PlatformBaseURLs[name] = base
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory", "mongo":
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or mongo, got %q", c.StoreBackend)
	}
	switch c.DispatchBackend {
	case "local":
	case "asynq":
		if c.RedisURL == "" {
			return fmt.Errorf("DISPATCH_BACKEND=asynq requires REDIS_URL")
		}
		// the worker runs in another process and must read the same posts
		if c.StoreBackend != "mongo" {
			return fmt.Errorf("DISPATCH_BACKEND=asynq requires STORE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("DISPATCH_BACKEND must be local or asynq, got %q", c.DispatchBackend)
	}
	switch c.RetryBackoff {
	case "exponential", "fixed":
	default:
		return fmt.Errorf("RETRY_BACKOFF must be exponential or fixed, got %q", c.RetryBackoff)
	}
	if c.EngineConcurrency <= 0 {
		return fmt.Errorf("ENGINE_CONCURRENCY must be positive")
	}
	if c.JWTSecret != "" && c.OperatorPasswordHash == "" {
		return fmt.Errorf("OPERATOR_PASSWORD_HASH is required when JWT_SECRET is set")
	}
	return nil
}

// LLMEnabled reports whether generation can use the external model
func (c *Config) LLMEnabled() bool {
	return c.GeminiAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
