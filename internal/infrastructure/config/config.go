package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	ML       MLConfig       `mapstructure:"ml"`
	Device   DeviceConfig   `mapstructure:"device"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// envAliases maps the operational environment variable names to config keys.
// These are the knobs operators already use, kept without the FD_ prefix.
var envAliases = map[string]string{
	"DATABASE_URL":                  "database.url",
	"DISPATCH_ENGINE":               "dispatch.engine",
	"PROTOTYPE_MODE":                "dispatch.prototype_mode",
	"ACK_DEADLINE_MS":               "dispatch.ack_deadline_ms",
	"AUTO_RESOLVE_MS":               "dispatch.auto_resolve_ms",
	"SWEEPER_INTERVAL_MS":           "dispatch.sweeper_interval_ms",
	"ARRIVAL_THRESHOLD_M":           "dispatch.arrival_threshold_m",
	"DEVIATION_THRESHOLD_M":         "dispatch.deviation_threshold_m",
	"MIN_DIST_TO_DEST_FOR_RECALC_M": "dispatch.min_dist_to_dest_for_recalc_m",
	"DEFAULT_LOCATION_LAT":          "dispatch.default_location_lat",
	"DEFAULT_LOCATION_LON":          "dispatch.default_location_lon",
	"ROUTE_CACHE_TTL_MS":            "routing.cache_ttl_ms",
	"ROUTE_BREAKER_FAILS":           "routing.breaker_fails",
	"ROUTE_BREAKER_OPEN_MS":         "routing.breaker_open_ms",
	"ML_SERVICE_URL":                "ml.url",
	"ML_SERVICE_TIMEOUT_MS":         "ml.timeout_ms",
	"ML_SERVICE_ENABLED":            "ml.enabled",
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fleetdispatch")
	}

	v.SetEnvPrefix("FD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - don't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Operational env names without the FD_ prefix win over the file
	for env, key := range envAliases {
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// MustLoadConfig loads configuration and panics on error (for use in main.go)
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
