package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

// Client is the external ML scorer collaborator. Health probes are cached for
// a short window; predictions have a bounded deadline and bounded retries.
// Any failure mode (down, timeout, schema violation, out-of-range result)
// surfaces as MLUnavailableError and the dispatch engine falls back to the
// rule-based scorer.
type Client struct {
	url        string
	enabled    bool
	maxRetries int
	http       *http.Client
	clock      shared.Clock
	logger     *zap.Logger

	healthTTL    time.Duration
	healthMu     sync.Mutex
	healthOK     bool
	healthProbed time.Time
}

// NewClient creates an ML client
func NewClient(cfg config.MLConfig, clock shared.Clock, logger *zap.Logger) *Client {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Client{
		url:        cfg.URL,
		enabled:    cfg.Enabled,
		maxRetries: cfg.MaxRetries,
		http:       &http.Client{Timeout: cfg.Timeout()},
		clock:      clock,
		logger:     logger,
		healthTTL:  cfg.HealthCache(),
	}
}

// Healthy reports whether the scorer is reachable, caching the probe result
func (c *Client) Healthy(ctx context.Context) bool {
	if !c.enabled || c.url == "" {
		return false
	}

	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if c.clock.Now().Sub(c.healthProbed) < c.healthTTL {
		return c.healthOK
	}

	c.healthOK = c.probe(ctx)
	c.healthProbed = c.clock.Now()
	return c.healthOK
}

func (c *Client) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type predictRequest struct {
	Candidates []common.MLFeatures `json:"candidates"`
}

// Predict scores the candidate set and returns the best index
func (c *Client) Predict(ctx context.Context, candidates []common.MLFeatures) (*common.MLPrediction, error) {
	if !c.enabled || c.url == "" {
		return nil, shared.NewMLUnavailableError("disabled")
	}
	if len(candidates) == 0 {
		return nil, shared.NewMLUnavailableError("empty candidate set")
	}
	for i, f := range candidates {
		if err := validateFeatures(f); err != nil {
			return nil, shared.NewMLUnavailableError(fmt.Sprintf("candidate %d: %v", i, err))
		}
	}

	body, err := json.Marshal(predictRequest{Candidates: candidates})
	if err != nil {
		return nil, shared.NewMLUnavailableError(err.Error())
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.clock.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}

		prediction, err := c.predictOnce(ctx, body, len(candidates))
		if err == nil {
			return prediction, nil
		}
		lastErr = err
		c.logger.Warn("ml prediction attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, shared.NewMLUnavailableError(lastErr.Error())
}

func (c *Client) predictOnce(ctx context.Context, body []byte, candidateCount int) (*common.MLPrediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var prediction common.MLPrediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	if prediction.BestIndex < 0 || prediction.BestIndex >= candidateCount {
		return nil, fmt.Errorf("bestIndex %d out of range for %d candidates", prediction.BestIndex, candidateCount)
	}
	if len(prediction.Scores) != candidateCount {
		return nil, fmt.Errorf("got %d scores for %d candidates", len(prediction.Scores), candidateCount)
	}

	return &prediction, nil
}

// validateFeatures enforces the documented ranges before the wire call
func validateFeatures(f common.MLFeatures) error {
	if f.DistanceM < 0 {
		return fmt.Errorf("distanceM %v < 0", f.DistanceM)
	}
	if f.DistanceCat < 0 || f.DistanceCat > 2 {
		return fmt.Errorf("distanceCat %d not in {0,1,2}", f.DistanceCat)
	}
	if f.PastPerf < 1 || f.PastPerf > 10 {
		return fmt.Errorf("pastPerf %v not in [1,10]", f.PastPerf)
	}
	if f.FaultHistory < 0 {
		return fmt.Errorf("faultHistory %d < 0", f.FaultHistory)
	}
	if f.FatigueH < 0 || f.FatigueH > 24 {
		return fmt.Errorf("fatigueH %v not in [0,24]", f.FatigueH)
	}
	if f.FaultSeverity < 1 || f.FaultSeverity > 3 {
		return fmt.Errorf("faultSeverity %d not in {1,2,3}", f.FaultSeverity)
	}
	return nil
}
