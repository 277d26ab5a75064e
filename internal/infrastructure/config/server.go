package config

import "time"

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Address           string `mapstructure:"address"`
	ReadTimeoutMS     int    `mapstructure:"read_timeout_ms"`
	WriteTimeoutMS    int    `mapstructure:"write_timeout_ms"`
	ShutdownTimeoutMS int    `mapstructure:"shutdown_timeout_ms"`
}

// ReadTimeout returns the HTTP read deadline
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the HTTP write deadline
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful drain deadline
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
