package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the monitoring service
// SSOT: all environment variables are read here and only here
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data feed
	Feed FeedConfig

	// Monitoring engine thresholds
	Monitor MonitorConfig

	// Notifications
	WebhookURL string

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FeedConfig holds market data feed configuration
type FeedConfig struct {
	BaseURL     string
	APIKey      string
	WSURL       string // empty disables the streaming feed
	CacheTTL    time.Duration
	RatePerSec  float64
	RateBurst   int
	HTTPTimeout time.Duration
}

// MonitorConfig holds engine threshold configuration.
// The two historical implementations disagreed on thresholds, so every value
// is an environment variable with the canonical default.
type MonitorConfig struct {
	ConfirmationCount    int
	ConfirmationWindow   time.Duration
	StaleConfirmationAge time.Duration
	TrailingStopFactor   float64
	CheckInterval        time.Duration
	DebounceDelay        time.Duration
	RepairSchedule       string
}

// Load reads configuration from environment variables
// SSOT: this is the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Feed
		Feed: FeedConfig{
			BaseURL:     getEnv("FEED_BASE_URL", "https://marketdata.tradermade.com/api/v1"),
			APIKey:      getEnv("FEED_API_KEY", ""),
			WSURL:       getEnv("FEED_WS_URL", ""),
			CacheTTL:    getEnvAsDuration("FEED_CACHE_TTL", "60s"),
			RatePerSec:  getEnvAsFloat("FEED_RATE_PER_SEC", 5),
			RateBurst:   getEnvAsInt("FEED_RATE_BURST", 10),
			HTTPTimeout: getEnvAsDuration("FEED_HTTP_TIMEOUT", "10s"),
		},

		// Monitor
		Monitor: MonitorConfig{
			ConfirmationCount:    getEnvAsInt("MONITOR_CONFIRMATION_COUNT", 2),
			ConfirmationWindow:   getEnvAsDuration("MONITOR_CONFIRMATION_WINDOW", "15s"),
			StaleConfirmationAge: getEnvAsDuration("MONITOR_STALE_CONFIRMATION_AGE", "60s"),
			TrailingStopFactor:   getEnvAsFloat("MONITOR_TRAILING_STOP_FACTOR", 0.5),
			CheckInterval:        getEnvAsDuration("MONITOR_CHECK_INTERVAL", "3s"),
			DebounceDelay:        getEnvAsDuration("MONITOR_DEBOUNCE_DELAY", "250ms"),
			RepairSchedule:       getEnv("MONITOR_REPAIR_SCHEDULE", "0 */10 * * * *"),
		},

		// Notifications
		WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	// Monitor thresholds must stay meaningful
	if c.Monitor.ConfirmationCount < 1 {
		return fmt.Errorf("MONITOR_CONFIRMATION_COUNT must be >= 1")
	}
	if c.Monitor.TrailingStopFactor <= 0 || c.Monitor.TrailingStopFactor >= 1 {
		return fmt.Errorf("MONITOR_TRAILING_STOP_FACTOR must be in (0, 1)")
	}
	if c.Monitor.CheckInterval <= 0 {
		return fmt.Errorf("MONITOR_CHECK_INTERVAL must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
