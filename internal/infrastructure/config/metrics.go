package config

// MetricsConfig holds Prometheus metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
