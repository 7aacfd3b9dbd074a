package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Auth0
	Auth0Domain   string
	Auth0Audience string

	// Server
	Port                string
	CORSOrigins         []string
	Env                 string
	RateLimitPerMinute  int
	BatchLimitPerMinute int

	// S3 Storage for receipts and closing reports
	S3 S3Config

	// Redis, optional: closing triggers are deduplicated in memory when empty
	Redis RedisConfig

	// SMTP, optional: notices are only logged when empty
	SMTP SMTPConfig

	Reports ReportConfig

	ClosingInterval time.Duration
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// RedisConfig holds the trigger guard connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SMTPConfig holds the administrator mail relay
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether a relay is configured
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// ReportConfig controls closing statement rendering
type ReportConfig struct {
	Format                string // html or pdf
	ChromeRemoteURL       string // Optional: headless Chrome devtools endpoint
	ReceiptFetchTimeout   time.Duration
	ReceiptBundleDeadline time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		Auth0Domain:         getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience:       getEnv("AUTH0_AUDIENCE", ""),
		Port:                getEnv("PORT", "8080"),
		CORSOrigins:         strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:                 getEnv("ENV", "development"),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		BatchLimitPerMinute: getEnvInt("BATCH_LIMIT_PER_MINUTE", 6),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", "condo-ledger"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "ledger@localhost"),
		},
		Reports: ReportConfig{
			Format:                strings.ToLower(getEnv("REPORT_FORMAT", "html")),
			ChromeRemoteURL:       getEnv("CHROME_REMOTE_URL", ""),
			ReceiptFetchTimeout:   getEnvDuration("RECEIPT_FETCH_TIMEOUT", 10*time.Second),
			ReceiptBundleDeadline: getEnvDuration("RECEIPT_BUNDLE_DEADLINE", 60*time.Second),
		},
		ClosingInterval: getEnvDuration("CLOSING_INTERVAL", time.Hour),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth0Domain == "" {
		return fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required")
	}
	if c.Reports.Format != "html" && c.Reports.Format != "pdf" {
		return fmt.Errorf("REPORT_FORMAT must be html or pdf, got %q", c.Reports.Format)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.BatchLimitPerMinute <= 0 {
		return fmt.Errorf("BATCH_LIMIT_PER_MINUTE must be positive")
	}
	if c.ClosingInterval <= 0 {
		return fmt.Errorf("CLOSING_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
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
