package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDBConnection is the SQLite DSN used when DB_CONNECTION is unset
const DefaultDBConnection = "./data/magicjournal.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"

type Config struct {
	// Application
	AppName         string
	AppEnv          string
	AppURL          string
	Port            string
	FrontendURL     string
	FrontendOrigins []string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string
	SeedCatalog  bool

	// Session
	SessionSecret string
	SessionExpiry time.Duration

	// Google sign-in
	GoogleClientID     string
	GoogleClientSecret string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Observability (optional)
	SentryDSN   string
	LogFile     string
	MetricsUser string
	MetricsPass string

	// Storage (S3-compatible, optional: avatar uploads are disabled without a bucket)
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string
	S3PresignExpiry time.Duration

	// Reflection assistant
	OllamaBaseURL string
	OllamaModel   string
	OllamaTimeout time.Duration

	// Rate limiting for /api/auth/*
	AuthRateLimit float64
	AuthBurst     int
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	appURL := envRequired("APP_URL")
	frontendURL := envString("FRONTEND_URL", appURL)

	cfg := &Config{
		// Application
		AppName:         envString("APP_NAME", "MagicJournal"),
		AppEnv:          envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:          appURL,
		Port:            envString("PORT", "8090"),
		FrontendURL:     frontendURL,
		FrontendOrigins: envList("FRONTEND_ORIGINS", []string{frontendURL}),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", DefaultDBConnection),
		SeedCatalog:  envBool("SEED_CATALOG", true),

		// Session
		SessionSecret: envRequired("SESSION_SECRET"),
		SessionExpiry: envDuration("SESSION_EXPIRY", 168*time.Hour), // 7 days

		// Google
		GoogleClientID:     envRequired("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: envString("GOOGLE_CLIENT_SECRET", ""),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Observability
		SentryDSN:   envString("SENTRY_DSN", ""),
		LogFile:     envString("LOG_FILE", ""),
		MetricsUser: envString("METRICS_USER", ""),
		MetricsPass: envString("METRICS_PASS", ""),

		// Storage
		S3Region:        envString("S3_REGION", ""),
		S3Bucket:        envString("S3_BUCKET", ""),
		S3AccessKey:     envString("S3_ACCESS_KEY", ""),
		S3SecretKey:     envString("S3_SECRET_KEY", ""),
		S3Endpoint:      envString("S3_ENDPOINT", ""),
		S3PresignExpiry: envDuration("S3_PRESIGN_EXPIRY", 168*time.Hour),

		// Assistant
		OllamaBaseURL: strings.TrimRight(envString("OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		OllamaModel:   envString("OLLAMA_MODEL", "phi3:mini"),
		OllamaTimeout: envDuration("OLLAMA_TIMEOUT", 120*time.Second),

		// Rate limiting: one token every 5s, bursts of 5
		AuthRateLimit: envFloat("RATE_LIMIT_AUTH_RPS", 0.2),
		AuthBurst:     envInt("RATE_LIMIT_AUTH_BURST", 5),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to use log mode for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if len(cfg.SessionSecret) < 32 {
		slog.Error("production deployment requires SESSION_SECRET of at least 32 bytes")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList splits a comma separated value, dropping empty items
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// StorageEnabled reports whether an S3 bucket is configured
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// MetricsEnabled reports whether /metrics should be mounted
func (c *Config) MetricsEnabled() bool {
	return c.MetricsUser != "" && c.MetricsPass != ""
}

// GoogleRedirectEnabled reports whether the browser redirect flow can run
func (c *Config) GoogleRedirectEnabled() bool {
	return c.GoogleClientSecret != ""
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:         c.AppName,
		AppEnv:          c.AppEnv,
		AppURL:          c.AppURL,
		Port:            c.Port,
		FrontendURL:     c.FrontendURL,
		FrontendOrigins: c.FrontendOrigins,
		DBDriver:        c.DBDriver,
		SessionExpiry:   c.SessionExpiry,
		GoogleClientID:  c.GoogleClientID,
		EmailFrom:       c.EmailFrom,
		S3Endpoint:      c.S3Endpoint,
		OllamaBaseURL:   c.OllamaBaseURL,
		OllamaModel:     c.OllamaModel,
	}
}
