package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/purchases"
	"github.com/terrierbot/registrar/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database postgres.ConnectionConfig

	// Redis configuration
	Redis RedisConfig

	// Billing configuration
	Billing BillingConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RedisConfig holds the catalog cache backend configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// BillingConfig holds checkout provider configuration
type BillingConfig struct {
	BaseURL    string
	PriceTiers []purchases.TieredPrice
}

// ReaperConfig holds session liveness sweep configuration
type ReaperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Billing:       loadBillingConfig(),
		Reaper:        loadReaperConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("REGISTRAR_HOST", "0.0.0.0"),
		Port:            getEnv("REGISTRAR_PORT", "8080"),
		ReadTimeout:     getEnvDuration("REGISTRAR_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("REGISTRAR_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("REGISTRAR_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("REGISTRAR_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("REGISTRAR_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		URL:         getEnv("REGISTRAR_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("REGISTRAR_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("REGISTRAR_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("REGISTRAR_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("REGISTRAR_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("REGISTRAR_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// loadRedisConfig loads catalog cache configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  getEnvBool("REGISTRAR_REDIS_ENABLED", false),
		Addr:     getEnv("REGISTRAR_REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REGISTRAR_REDIS_PASSWORD", ""),
		DB:       getEnvInt("REGISTRAR_REDIS_DB", 0),
	}
}

// loadBillingConfig loads checkout provider configuration from environment
func loadBillingConfig() BillingConfig {
	return BillingConfig{
		BaseURL:    getEnv("REGISTRAR_BILLING_BASE_URL", "https://checkout.example.com"),
		PriceTiers: parsePriceTiers(getEnv("REGISTRAR_PRICE_TIERS", "1:24.99,3:19.99,5:14.99")),
	}
}

// loadReaperConfig loads session liveness sweep configuration from environment
func loadReaperConfig() ReaperConfig {
	return ReaperConfig{
		Interval:   getEnvDuration("REGISTRAR_REAP_INTERVAL", 5*time.Second),
		StaleAfter: getEnvDuration("REGISTRAR_STALE_AFTER", 45*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("REGISTRAR_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("REGISTRAR_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// Validate billing config
	if len(c.Billing.PriceTiers) == 0 {
		return fmt.Errorf("at least one price tier is required")
	}
	for _, tier := range c.Billing.PriceTiers {
		if tier.RequiredQuantity <= 0 {
			return fmt.Errorf("price tier quantity must be positive, got %d", tier.RequiredQuantity)
		}
		if tier.UnitPrice <= 0 {
			return fmt.Errorf("price tier unit price must be positive, got %f", tier.UnitPrice)
		}
	}

	// Validate reaper config
	if c.Reaper.Interval <= 0 {
		return fmt.Errorf("reap interval must be positive")
	}
	if c.Reaper.StaleAfter <= 0 {
		return fmt.Errorf("stale threshold must be positive")
	}

	return nil
}

// parsePriceTiers parses a tier table of the form "qty:price,qty:price".
// Malformed entries are skipped.
func parsePriceTiers(value string) []purchases.TieredPrice {
	var tiers []purchases.TieredPrice
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			continue
		}
		quantity, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			continue
		}
		tiers = append(tiers, purchases.TieredPrice{
			RequiredQuantity: quantity,
			UnitPrice:        price,
		})
	}
	return tiers
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
