package config

import "time"

// DeviceConfig holds the device message-broker settings
type DeviceConfig struct {
	// BrokerURL of the MQTT broker, e.g. tcp://localhost:1883
	BrokerURL string `mapstructure:"broker_url"`
	ClientID  string `mapstructure:"client_id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`

	// QueueCap bounds outbound publishes queued while disconnected
	// (drop-oldest beyond the cap)
	QueueCap int `mapstructure:"queue_cap"`

	// Reconnect backoff ceiling in attempts; operation continues with the
	// queue even past the ceiling, it is only logged
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts"`

	ConnectTimeoutMS int `mapstructure:"connect_timeout_ms"`
}

// ConnectTimeout returns the broker connect deadline
func (c DeviceConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}
