package config

import (
	"os"
	"testing"
	"time"

	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/purchases"
	"github.com/terrierbot/registrar/pkg/storage/postgres"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
		{
			name:         "returns true for 'TRUE' (case insensitive)",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "TRUE",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns parsed int",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "returns default for invalid int",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "invalid",
			want:         10,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOT_SET",
			defaultValue: 10,
			envValue:     "",
			want:         10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns parsed duration",
			key:          "TEST_DURATION",
			defaultValue: time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default for invalid duration",
			key:          "TEST_DURATION",
			defaultValue: time.Second,
			envValue:     "invalid",
			want:         time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOT_SET",
			defaultValue: time.Minute,
			envValue:     "",
			want:         time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestParsePriceTiers tests tier table parsing
func TestParsePriceTiers(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []purchases.TieredPrice
	}{
		{
			name:  "parses multiple tiers",
			value: "1:24.99,3:19.99,5:14.99",
			want: []purchases.TieredPrice{
				{RequiredQuantity: 1, UnitPrice: 24.99},
				{RequiredQuantity: 3, UnitPrice: 19.99},
				{RequiredQuantity: 5, UnitPrice: 14.99},
			},
		},
		{
			name:  "skips malformed entries",
			value: "1:24.99,bogus,3:nope,:5,5:14.99",
			want: []purchases.TieredPrice{
				{RequiredQuantity: 1, UnitPrice: 24.99},
				{RequiredQuantity: 5, UnitPrice: 14.99},
			},
		},
		{
			name:  "tolerates whitespace",
			value: " 1 : 24.99 , 3 : 19.99 ",
			want: []purchases.TieredPrice{
				{RequiredQuantity: 1, UnitPrice: 24.99},
				{RequiredQuantity: 3, UnitPrice: 19.99},
			},
		},
		{
			name:  "empty string yields no tiers",
			value: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePriceTiers(tt.value)
			if len(got) != len(tt.want) {
				t.Fatalf("parsePriceTiers() returned %d tiers, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tier %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  observability.LogLevel
	}{
		{name: "debug", level: "debug", want: observability.DebugLevel},
		{name: "info", level: "info", want: observability.InfoLevel},
		{name: "warn", level: "warn", want: observability.WarnLevel},
		{name: "warning alias", level: "warning", want: observability.WarnLevel},
		{name: "error", level: "error", want: observability.ErrorLevel},
		{name: "uppercase", level: "DEBUG", want: observability.DebugLevel},
		{name: "unknown defaults to info", level: "bogus", want: observability.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLogLevel(tt.level)
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

// TestLoadConfigDefaults tests configuration loading with defaults
func TestLoadConfigDefaults(t *testing.T) {
	os.Setenv("REGISTRAR_POSTGRES_URL", "postgres://localhost/registrar")
	defer os.Unsetenv("REGISTRAR_POSTGRES_URL")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %v, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Server.HealthPort = %v, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %v, want 25", cfg.Database.MaxConns)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis.Enabled = true, want false by default")
	}
	if cfg.Reaper.Interval != 5*time.Second {
		t.Errorf("Reaper.Interval = %v, want 5s", cfg.Reaper.Interval)
	}
	if cfg.Reaper.StaleAfter != 45*time.Second {
		t.Errorf("Reaper.StaleAfter = %v, want 45s", cfg.Reaper.StaleAfter)
	}
	if len(cfg.Billing.PriceTiers) != 3 {
		t.Errorf("Billing.PriceTiers has %d entries, want 3", len(cfg.Billing.PriceTiers))
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Observability.LogLevel = %v, want info", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.MetricsEnabled {
		t.Error("Observability.MetricsEnabled = false, want true by default")
	}
}

// TestLoadConfigFromEnvironment tests configuration loading with overrides
func TestLoadConfigFromEnvironment(t *testing.T) {
	env := map[string]string{
		"REGISTRAR_POSTGRES_URL":  "postgres://db.internal/registrar",
		"REGISTRAR_PORT":          "8888",
		"REGISTRAR_HEALTH_PORT":   "9999",
		"REGISTRAR_REDIS_ENABLED": "true",
		"REGISTRAR_REDIS_ADDR":    "redis.internal:6379",
		"REGISTRAR_REAP_INTERVAL": "10s",
		"REGISTRAR_STALE_AFTER":   "90s",
		"REGISTRAR_PRICE_TIERS":   "1:9.99,10:4.99",
		"REGISTRAR_LOG_LEVEL":     "debug",
	}
	for k, v := range env {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range env {
			os.Unsetenv(k)
		}
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Database.URL != "postgres://db.internal/registrar" {
		t.Errorf("Database.URL = %v", cfg.Database.URL)
	}
	if cfg.Server.Port != "8888" {
		t.Errorf("Server.Port = %v, want 8888", cfg.Server.Port)
	}
	if !cfg.Redis.Enabled {
		t.Error("Redis.Enabled = false, want true")
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Redis.Addr = %v", cfg.Redis.Addr)
	}
	if cfg.Reaper.Interval != 10*time.Second {
		t.Errorf("Reaper.Interval = %v, want 10s", cfg.Reaper.Interval)
	}
	if cfg.Reaper.StaleAfter != 90*time.Second {
		t.Errorf("Reaper.StaleAfter = %v, want 90s", cfg.Reaper.StaleAfter)
	}
	if len(cfg.Billing.PriceTiers) != 2 {
		t.Fatalf("Billing.PriceTiers has %d entries, want 2", len(cfg.Billing.PriceTiers))
	}
	if cfg.Billing.PriceTiers[1].RequiredQuantity != 10 || cfg.Billing.PriceTiers[1].UnitPrice != 4.99 {
		t.Errorf("Billing.PriceTiers[1] = %+v", cfg.Billing.PriceTiers[1])
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Observability.LogLevel = %v, want debug", cfg.Observability.LogLevel)
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{
				Port:       "8080",
				HealthPort: "9090",
			},
			Database: postgres.ConnectionConfig{
				URL: "postgres://localhost/registrar",
			},
			Billing: BillingConfig{
				PriceTiers: []purchases.TieredPrice{{RequiredQuantity: 1, UnitPrice: 9.99}},
			},
			Reaper: ReaperConfig{
				Interval:   5 * time.Second,
				StaleAfter: 45 * time.Second,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing server port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: true,
		},
		{
			name:    "missing health port",
			mutate:  func(c *Config) { c.Server.HealthPort = "" },
			wantErr: true,
		},
		{
			name:    "same port for server and health",
			mutate:  func(c *Config) { c.Server.HealthPort = "8080" },
			wantErr: true,
		},
		{
			name:    "missing postgres URL",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: true,
		},
		{
			name:    "no price tiers",
			mutate:  func(c *Config) { c.Billing.PriceTiers = nil },
			wantErr: true,
		},
		{
			name: "non-positive tier quantity",
			mutate: func(c *Config) {
				c.Billing.PriceTiers = []purchases.TieredPrice{{RequiredQuantity: 0, UnitPrice: 9.99}}
			},
			wantErr: true,
		},
		{
			name: "non-positive tier price",
			mutate: func(c *Config) {
				c.Billing.PriceTiers = []purchases.TieredPrice{{RequiredQuantity: 1, UnitPrice: 0}}
			},
			wantErr: true,
		},
		{
			name:    "non-positive reap interval",
			mutate:  func(c *Config) { c.Reaper.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive stale threshold",
			mutate:  func(c *Config) { c.Reaper.StaleAfter = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
