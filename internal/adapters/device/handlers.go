package device

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// LifecycleService is the fault-FSM entry point the protocol handlers call
type LifecycleService interface {
	// Confirm applies the confirmation transition for the fault, validating
	// that the vehicle number matches the assignment
	Confirm(ctx context.Context, faultID, vehicleNumber string) error

	// Resolve applies the resolution transition for the fault
	Resolve(ctx context.Context, faultID, vehicleNumber string) error
}

// handlerTimeout bounds one inbound message's store work
const handlerTimeout = 5 * time.Second

// ProtocolHandlers interprets device messages and drives the fault FSM.
// Malformed messages are logged and dropped; a handler never fails the process.
type ProtocolHandlers struct {
	lifecycle LifecycleService
	logger    *zap.Logger
}

// NewProtocolHandlers creates the device protocol handlers
func NewProtocolHandlers(lifecycle LifecycleService, logger *zap.Logger) *ProtocolHandlers {
	return &ProtocolHandlers{lifecycle: lifecycle, logger: logger}
}

type confirmationMessage struct {
	FaultID   string `json:"faultId"`
	Confirmed bool   `json:"confirmed"`
}

type resolutionMessage struct {
	FaultID  string `json:"faultId"`
	Resolved bool   `json:"resolved"`
}

// HandleConfirmation processes one message on vehicle/{number}/confirmation
func (h *ProtocolHandlers) HandleConfirmation(_ mqtt.Client, msg mqtt.Message) {
	vehicleNumber, ok := vehicleNumberFromTopic(msg.Topic())
	if !ok {
		h.logger.Warn("confirmation on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}

	var body confirmationMessage
	if err := json.Unmarshal(msg.Payload(), &body); err != nil {
		h.logger.Warn("malformed confirmation message",
			zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if body.FaultID == "" || !body.Confirmed {
		h.logger.Warn("ignoring confirmation without faultId or confirmed flag",
			zap.String("topic", msg.Topic()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := h.lifecycle.Confirm(ctx, body.FaultID, vehicleNumber); err != nil {
		h.logger.Warn("confirmation rejected",
			zap.String("fault_id", body.FaultID),
			zap.String("vehicle_number", vehicleNumber),
			zap.Error(err))
	}
}

// HandleResolution processes one message on vehicle/{number}/resolved
func (h *ProtocolHandlers) HandleResolution(_ mqtt.Client, msg mqtt.Message) {
	vehicleNumber, ok := vehicleNumberFromTopic(msg.Topic())
	if !ok {
		h.logger.Warn("resolution on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}

	var body resolutionMessage
	if err := json.Unmarshal(msg.Payload(), &body); err != nil {
		h.logger.Warn("malformed resolution message",
			zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if body.FaultID == "" || !body.Resolved {
		h.logger.Warn("ignoring resolution without faultId or resolved flag",
			zap.String("topic", msg.Topic()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := h.lifecycle.Resolve(ctx, body.FaultID, vehicleNumber); err != nil {
		h.logger.Warn("resolution rejected",
			zap.String("fault_id", body.FaultID),
			zap.String("vehicle_number", vehicleNumber),
			zap.Error(err))
	}
}

// vehicleNumberFromTopic extracts {number} from vehicle/{number}/suffix
func vehicleNumberFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "vehicle" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
