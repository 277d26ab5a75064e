package config

import "time"

// MLConfig holds the external ML scorer settings
type MLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`

	// MaxRetries bounds prediction retries before MLUnavailable
	MaxRetries int `mapstructure:"max_retries"`

	// HealthCacheMS is how long a health probe result is trusted
	HealthCacheMS int `mapstructure:"health_cache_ms"`
}

// Timeout returns the per-request deadline
func (c MLConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// HealthCache returns the health probe cache window
func (c MLConfig) HealthCache() time.Duration {
	return time.Duration(c.HealthCacheMS) * time.Millisecond
}
