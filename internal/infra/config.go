package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	StoragePath string

	// Database pool sizing.
	DBMaxConns        int
	DBMinConns        int
	DBMaxConnLifetime time.Duration
	DBMaxConnIdleTime time.Duration

	// Dispatcher / reclaimer tuning.
	DispatchBatchSize      int
	DispatchPollInterval   time.Duration
	ReclaimInterval        time.Duration
	QuotaReconcileInterval time.Duration

	// Quota economy.
	QuotaHardStopMultiplier float64
	QuotaAlertFraction      float64

	// Renderer provider.
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	RenderTimeout time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),

		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 1),
		DBMaxConnLifetime: time.Minute * time.Duration(getEnvInt("DB_MAX_CONN_LIFETIME_MINUTES", 60)),
		DBMaxConnIdleTime: time.Minute * time.Duration(getEnvInt("DB_MAX_CONN_IDLE_MINUTES", 5)),

		DispatchBatchSize:      getEnvInt("DISPATCH_BATCH_SIZE", 5),
		DispatchPollInterval:   time.Second * time.Duration(getEnvInt("DISPATCH_POLL_INTERVAL_SECONDS", 2)),
		ReclaimInterval:        time.Second * time.Duration(getEnvInt("RECLAIM_INTERVAL_SECONDS", 60)),
		QuotaReconcileInterval: time.Second * time.Duration(getEnvInt("QUOTA_RECONCILE_INTERVAL_SECONDS", 300)),

		QuotaHardStopMultiplier: getEnvFloat("QUOTA_HARD_STOP_MULTIPLIER", 1.10),
		QuotaAlertFraction:      getEnvFloat("QUOTA_ALERT_FRACTION", 0.80),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		RenderTimeout: time.Second * time.Duration(getEnvInt("RENDER_TIMEOUT_SECONDS", 120)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.DispatchBatchSize < 1 {
		cfg.DispatchBatchSize = 1
	}
	if cfg.DBMaxConns < 1 {
		cfg.DBMaxConns = 1
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		cfg.DBMinConns = 0
	}
	if cfg.QuotaHardStopMultiplier < 1 {
		cfg.QuotaHardStopMultiplier = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
