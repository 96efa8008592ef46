// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	REGISTRAR_HOST="0.0.0.0"
//	REGISTRAR_PORT="8080"
//	REGISTRAR_HEALTH_PORT="9090"
//	REGISTRAR_READ_TIMEOUT="15s"
//	REGISTRAR_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	REGISTRAR_POSTGRES_URL="postgres://localhost/registrar"
//	REGISTRAR_POSTGRES_MAX_CONNS="25"
//	REGISTRAR_POSTGRES_MIN_CONNS="5"
//
// Cache settings:
//
//	REGISTRAR_REDIS_ENABLED="true"
//	REGISTRAR_REDIS_ADDR="localhost:6379"
//	REGISTRAR_REDIS_DB="0"
//
// Billing settings:
//
//	REGISTRAR_BILLING_BASE_URL="https://checkout.example.com"
//	REGISTRAR_PRICE_TIERS="1:24.99,3:19.99,5:14.99"  # quantity:unit_price pairs
//
// Reaper settings:
//
//	REGISTRAR_REAP_INTERVAL="5s"
//	REGISTRAR_STALE_AFTER="45s"
//
// Observability settings:
//
//	REGISTRAR_LOG_LEVEL="info"  # debug, info, warn, error
//	REGISTRAR_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage/postgres: Uses database configuration
//   - pkg/observability: Uses observability configuration
package config
