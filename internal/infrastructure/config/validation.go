package config

import "fmt"

// ValidateConfig checks cross-field constraints after defaults are applied
func ValidateConfig(cfg *Config) error {
	switch cfg.Database.Type {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.type must be postgres or sqlite, got %q", cfg.Database.Type)
	}

	switch cfg.Dispatch.Engine {
	case ScorerRule, ScorerML:
	default:
		return fmt.Errorf("dispatch.engine must be RULE or ML, got %q", cfg.Dispatch.Engine)
	}

	if cfg.Dispatch.Engine == ScorerML && cfg.ML.Enabled && cfg.ML.URL == "" {
		return fmt.Errorf("ml.url is required when the ML engine is enabled")
	}

	if cfg.Dispatch.AckDeadlineMS < 0 || cfg.Dispatch.AutoResolveMS < 0 || cfg.Dispatch.SweeperIntervalMS < 0 {
		return fmt.Errorf("dispatch timer intervals must be non-negative")
	}

	if cfg.Dispatch.ArrivalThresholdM <= 0 {
		return fmt.Errorf("dispatch.arrival_threshold_m must be positive")
	}
	if cfg.Dispatch.DeviationThresholdM <= 0 {
		return fmt.Errorf("dispatch.deviation_threshold_m must be positive")
	}

	if cfg.Dispatch.DefaultLocationLat < -90 || cfg.Dispatch.DefaultLocationLat > 90 {
		return fmt.Errorf("dispatch.default_location_lat out of range")
	}
	if cfg.Dispatch.DefaultLocationLon < -180 || cfg.Dispatch.DefaultLocationLon > 180 {
		return fmt.Errorf("dispatch.default_location_lon out of range")
	}

	if cfg.Routing.BreakerFails < 1 {
		return fmt.Errorf("routing.breaker_fails must be at least 1")
	}

	return nil
}
