package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "fleetdispatch"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "fleetdispatch"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 10000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 15000
	}
	if cfg.Server.ShutdownTimeoutMS == 0 {
		cfg.Server.ShutdownTimeoutMS = 15000
	}

	// Dispatch defaults
	if cfg.Dispatch.Engine == "" {
		cfg.Dispatch.Engine = ScorerRule
	}
	if cfg.Dispatch.AckDeadlineMS == 0 {
		cfg.Dispatch.AckDeadlineMS = 60000
	}
	if cfg.Dispatch.AutoResolveMS == 0 {
		cfg.Dispatch.AutoResolveMS = 30000
	}
	if cfg.Dispatch.SweeperIntervalMS == 0 {
		cfg.Dispatch.SweeperIntervalMS = 30000
	}
	if cfg.Dispatch.ArrivalThresholdM == 0 {
		cfg.Dispatch.ArrivalThresholdM = 50
	}
	if cfg.Dispatch.DeviationThresholdM == 0 {
		cfg.Dispatch.DeviationThresholdM = 200
	}
	if cfg.Dispatch.MinDistToDestForRecalcM == 0 {
		cfg.Dispatch.MinDistToDestForRecalcM = 500
	}
	if cfg.Dispatch.BatchCap == 0 {
		cfg.Dispatch.BatchCap = 100
	}

	// Routing defaults
	if cfg.Routing.BaseURL == "" {
		cfg.Routing.BaseURL = "http://localhost:5000"
	}
	if cfg.Routing.TimeoutMS == 0 {
		cfg.Routing.TimeoutMS = 5000
	}
	if cfg.Routing.CacheTTLMS == 0 {
		cfg.Routing.CacheTTLMS = 300000
	}
	if cfg.Routing.BreakerFails == 0 {
		cfg.Routing.BreakerFails = 3
	}
	if cfg.Routing.BreakerOpenMS == 0 {
		cfg.Routing.BreakerOpenMS = 60000
	}
	if cfg.Routing.RateLimitRPS == 0 {
		cfg.Routing.RateLimitRPS = 10
	}
	if cfg.Routing.RateLimitBurst == 0 {
		cfg.Routing.RateLimitBurst = 20
	}

	// ML defaults
	if cfg.ML.TimeoutMS == 0 {
		cfg.ML.TimeoutMS = 5000
	}
	if cfg.ML.MaxRetries == 0 {
		cfg.ML.MaxRetries = 2
	}
	if cfg.ML.HealthCacheMS == 0 {
		cfg.ML.HealthCacheMS = 30000
	}

	// Device defaults
	if cfg.Device.ClientID == "" {
		cfg.Device.ClientID = "fleetdispatch-core"
	}
	if cfg.Device.QueueCap == 0 {
		cfg.Device.QueueCap = 100
	}
	if cfg.Device.MaxReconnectAttempts == 0 {
		cfg.Device.MaxReconnectAttempts = 10
	}
	if cfg.Device.ConnectTimeoutMS == 0 {
		cfg.Device.ConnectTimeoutMS = 5000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
