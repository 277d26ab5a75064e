package config

import "time"

// RoutingConfig holds the external routing provider settings
type RoutingConfig struct {
	// BaseURL of the OSRM-compatible driving-route provider
	BaseURL string `mapstructure:"base_url"`

	TimeoutMS int `mapstructure:"timeout_ms"`

	// Result cache TTL keyed by rounded (from, to) pair
	CacheTTLMS int `mapstructure:"cache_ttl_ms"`

	// Circuit breaker: consecutive failures to open, and open window
	BreakerFails  int `mapstructure:"breaker_fails"`
	BreakerOpenMS int `mapstructure:"breaker_open_ms"`

	// Client-side request rate limit
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Timeout returns the per-request deadline
func (c RoutingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// CacheTTL returns the route cache TTL
func (c RoutingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMS) * time.Millisecond
}

// BreakerOpen returns how long the breaker stays open
func (c RoutingConfig) BreakerOpen() time.Duration {
	return time.Duration(c.BreakerOpenMS) * time.Millisecond
}
