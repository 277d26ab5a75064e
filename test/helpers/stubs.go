package helpers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/domain/routing"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// RecordingBus captures published events for assertions
type RecordingBus struct {
	mu     sync.Mutex
	events []RecordedEvent
}

// RecordedEvent is one captured publication
type RecordedEvent struct {
	Name    string
	Payload interface{}
}

// NewRecordingBus creates an empty recording bus
func NewRecordingBus() *RecordingBus {
	return &RecordingBus{}
}

// Publish records the event
func (b *RecordingBus) Publish(name string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, RecordedEvent{Name: name, Payload: payload})
}

// Names returns the event names in publication order
func (b *RecordingBus) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, len(b.events))
	for i, e := range b.events {
		names[i] = e.Name
	}
	return names
}

// Count returns how many events with the name were published
func (b *RecordingBus) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, e := range b.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Last returns the most recent payload published under the name
func (b *RecordingBus) Last(name string) (interface{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Name == name {
			return b.events[i].Payload, true
		}
	}
	return nil, false
}

// MemCache is a minimal in-memory common.Cache for tests (no TTL expiry)
type MemCache struct {
	mu    sync.Mutex
	items map[string]interface{}
}

// NewMemCache creates an empty cache
func NewMemCache() *MemCache {
	return &MemCache{items: make(map[string]interface{})}
}

// Set stores the value; the TTL is ignored
func (c *MemCache) Set(key string, value interface{}, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// Get returns the value for the key
func (c *MemCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

// Delete removes the key
func (c *MemCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// DeleteByPrefix removes every key with the prefix
func (c *MemCache) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// StubPlanner returns a straight-line route between the requested points
type StubPlanner struct {
	mu    sync.Mutex
	calls int
}

// NewStubPlanner creates a stub planner
func NewStubPlanner() *StubPlanner {
	return &StubPlanner{}
}

// ComputeRoute returns a two-waypoint fallback-style route
func (p *StubPlanner) ComputeRoute(_ context.Context, from, to shared.LatLon) (*routing.PlannedRoute, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	distance := shared.Haversine(from, to)
	return &routing.PlannedRoute{
		Waypoints:  []shared.LatLon{from, to},
		DistanceM:  distance,
		DurationS:  distance / 13.89,
		Source:     routing.SourceFallback,
		IsFallback: true,
	}, nil
}

// Calls returns how many routes were computed
func (p *StubPlanner) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// StubDeviceChannel records published dispatch commands
type StubDeviceChannel struct {
	mu        sync.Mutex
	commands  []StubDeviceCommand
	connected bool
}

// StubDeviceCommand is one captured publish
type StubDeviceCommand struct {
	ExternalDeviceID string
	Command          common.DispatchCommand
}

// NewStubDeviceChannel creates a connected stub channel
func NewStubDeviceChannel() *StubDeviceChannel {
	return &StubDeviceChannel{connected: true}
}

// PublishDispatch records the command
func (d *StubDeviceChannel) PublishDispatch(_ context.Context, externalDeviceID string, cmd common.DispatchCommand) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, StubDeviceCommand{ExternalDeviceID: externalDeviceID, Command: cmd})
	return nil
}

// Connected reports the stubbed connectivity
func (d *StubDeviceChannel) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// SetConnected flips the stubbed connectivity
func (d *StubDeviceChannel) SetConnected(connected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = connected
}

// Commands returns the captured commands
func (d *StubDeviceChannel) Commands() []StubDeviceCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]StubDeviceCommand, len(d.commands))
	copy(out, d.commands)
	return out
}

// StubMLClient scripts the external scorer
type StubMLClient struct {
	mu         sync.Mutex
	healthy    bool
	prediction *common.MLPrediction
	err        error
	calls      int
}

// NewStubMLClient creates an unhealthy stub (rule-based fallback path)
func NewStubMLClient() *StubMLClient {
	return &StubMLClient{}
}

// ScriptPrediction makes the stub healthy and returns the given prediction
func (m *StubMLClient) ScriptPrediction(p *common.MLPrediction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = true
	m.prediction = p
	m.err = nil
}

// ScriptFailure makes the stub healthy but failing on predict
func (m *StubMLClient) ScriptFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = true
	m.prediction = nil
	m.err = err
}

// Healthy reports the scripted health
func (m *StubMLClient) Healthy(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// Predict returns the scripted answer
func (m *StubMLClient) Predict(_ context.Context, _ []common.MLFeatures) (*common.MLPrediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.prediction, nil
}

// PredictCalls returns how many predictions were requested
func (m *StubMLClient) PredictCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
