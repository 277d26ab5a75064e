package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

const (
	dispatchTopicFmt  = "device/%s/dispatch"
	confirmationTopic = "vehicle/+/confirmation"
	resolvedTopic     = "vehicle/+/resolved"

	// at-least-once
	qos = 1
)

// QueueMetrics receives queue depth observations
type QueueMetrics interface {
	SetDeviceQueueDepth(n int)
}

type queuedPublish struct {
	topic   string
	payload []byte
}

// Channel is the MQTT device channel. Outbound dispatch commands publish with
// QoS 1; while the broker is unreachable they queue (cap from config,
// drop-oldest) and drain on reconnect. Inbound confirmation/resolution
// messages are forwarded to the protocol handlers.
type Channel struct {
	client   mqtt.Client
	logger   *zap.Logger
	handlers *ProtocolHandlers
	metrics  QueueMetrics

	mu       sync.Mutex
	queue    []queuedPublish
	queueCap int

	connectTimeout   config.DeviceConfig
	reconnectCount   int
	maxReconnectLogs int
}

// NewChannel creates the device channel. Connect must be called before use;
// publishing works even while disconnected (commands queue).
func NewChannel(cfg config.DeviceConfig, handlers *ProtocolHandlers, logger *zap.Logger, metrics QueueMetrics) *Channel {
	ch := &Channel{
		logger:           logger,
		handlers:         handlers,
		metrics:          metrics,
		queueCap:         cfg.QueueCap,
		connectTimeout:   cfg,
		maxReconnectLogs: cfg.MaxReconnectAttempts,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout()).
		SetOnConnectHandler(ch.onConnect).
		SetConnectionLostHandler(ch.onConnectionLost).
		SetReconnectingHandler(ch.onReconnecting)

	ch.client = mqtt.NewClient(opts)
	return ch
}

// Connect dials the broker. A failed initial connect is logged, not fatal:
// the auto-reconnect loop keeps trying and commands queue meanwhile.
func (c *Channel) Connect() {
	token := c.client.Connect()
	if !token.WaitTimeout(c.connectTimeout.ConnectTimeout()) || token.Error() != nil {
		c.logger.Warn("device channel connect failed, commands will queue",
			zap.Error(token.Error()))
	}
}

// Disconnect closes the broker connection
func (c *Channel) Disconnect() {
	c.client.Disconnect(250)
}

// Connected reports broker connectivity
func (c *Channel) Connected() bool {
	return c.client.IsConnected()
}

// PublishDispatch publishes a dispatch command to the device's topic.
// Never returns an error for a down channel; the command is queued instead.
func (c *Channel) PublishDispatch(ctx context.Context, externalDeviceID string, cmd common.DispatchCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch command: %w", err)
	}
	topic := fmt.Sprintf(dispatchTopicFmt, externalDeviceID)

	if !c.client.IsConnected() {
		c.enqueue(topic, payload)
		return nil
	}

	c.client.Publish(topic, qos, false, payload)
	return nil
}

// QueueDepth returns the number of commands waiting for reconnect
func (c *Channel) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Channel) enqueue(topic string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) >= c.queueCap {
		dropped := c.queue[0]
		c.queue = c.queue[1:]
		c.logger.Warn("device queue full, dropping oldest command",
			zap.String("topic", dropped.topic),
			zap.Int("cap", c.queueCap))
	}
	c.queue = append(c.queue, queuedPublish{topic: topic, payload: payload})
	c.publishQueueDepth(len(c.queue))
}

// onConnect subscribes to device messages and drains the outbound queue
func (c *Channel) onConnect(client mqtt.Client) {
	c.reconnectCount = 0
	c.logger.Info("device channel connected")

	client.Subscribe(confirmationTopic, qos, c.handlers.HandleConfirmation)
	client.Subscribe(resolvedTopic, qos, c.handlers.HandleResolution)

	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()
	c.publishQueueDepth(0)

	for _, p := range pending {
		client.Publish(p.topic, qos, false, p.payload)
	}
	if len(pending) > 0 {
		c.logger.Info("drained queued device commands", zap.Int("count", len(pending)))
	}
}

func (c *Channel) onConnectionLost(_ mqtt.Client, err error) {
	c.logger.Warn("device channel disconnected, queueing outbound commands",
		zap.Error(err))
}

func (c *Channel) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.reconnectCount++
	if c.reconnectCount <= c.maxReconnectLogs {
		c.logger.Info("device channel reconnecting",
			zap.Int("attempt", c.reconnectCount),
			zap.Int("ceiling", c.maxReconnectLogs))
	} else if c.reconnectCount == c.maxReconnectLogs+1 {
		c.logger.Error("device channel reconnect ceiling reached, still retrying in background",
			zap.Int("attempts", c.reconnectCount))
	}
}

func (c *Channel) publishQueueDepth(n int) {
	if c.metrics != nil {
		c.metrics.SetDeviceQueueDepth(n)
	}
}
