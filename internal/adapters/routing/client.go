package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	domainrouting "github.com/andrescamacho/fleetdispatch/internal/domain/routing"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

// fallbackSpeedMps is the assumed speed for straight-line fallback routes
// (~50 km/h)
const fallbackSpeedMps = 13.89

// MetricsRecorder receives routing client observations
type MetricsRecorder interface {
	RecordRoute(source string)
	SetBreakerState(state float64)
}

// Client computes driving routes against an OSRM-compatible provider.
// Results are cached by rounded coordinate pair; provider failures are
// absorbed by the circuit breaker and degrade to a straight-line fallback.
// ComputeRoute never fails to the caller.
type Client struct {
	baseURL string
	http    *http.Client
	cache   common.Cache
	ttl     time.Duration
	breaker *CircuitBreaker
	limiter *rate.Limiter
	clock   shared.Clock
	logger  *zap.Logger
	metrics MetricsRecorder
}

// NewClient creates a routing client
func NewClient(cfg config.RoutingConfig, cache common.Cache, clock shared.Clock, logger *zap.Logger, metrics MetricsRecorder) *Client {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout()},
		cache:   cache,
		ttl:     cfg.CacheTTL(),
		breaker: NewCircuitBreaker(cfg.BreakerFails, cfg.BreakerOpen(), clock),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// osrmResponse is the subset of the OSRM route response the client consumes
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"routes"`
}

// ComputeRoute returns a drivable route from -> to. Provider failure degrades
// to the straight-line fallback; the error return is always nil for valid
// coordinates.
func (c *Client) ComputeRoute(ctx context.Context, from, to shared.LatLon) (*domainrouting.PlannedRoute, error) {
	if err := shared.ValidateCoordinate(from.Lat, from.Lon); err != nil {
		return nil, err
	}
	if err := shared.ValidateCoordinate(to.Lat, to.Lon); err != nil {
		return nil, err
	}

	key := cacheKey(from, to)
	if cached, ok := c.cache.Get(key); ok {
		if planned, ok := cached.(*domainrouting.PlannedRoute); ok {
			c.recordRoute("cache")
			return planned, nil
		}
	}

	var planned *domainrouting.PlannedRoute
	err := c.breaker.Call(func() error {
		result, err := c.fetch(ctx, from, to)
		if err != nil {
			return err
		}
		planned = result
		return nil
	})
	c.publishBreakerState()

	if err != nil {
		c.logger.Warn("routing provider unavailable, using fallback route",
			zap.Error(err),
			zap.Int("consecutive_failures", c.breaker.FailureCount()))
		planned = FallbackRoute(from, to)
		c.recordRoute("fallback")
		return planned, nil
	}

	c.cache.Set(key, planned, c.ttl)
	c.recordRoute("external")
	return planned, nil
}

// fetch calls the provider once
func (c *Client) fetch(ctx context.Context, from, to shared.LatLon) (*domainrouting.PlannedRoute, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, shared.NewRoutingUnavailableError(err.Error())
	}

	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, from.Lon, from.Lat, to.Lon, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, shared.NewRoutingUnavailableError(err.Error())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, shared.NewRoutingUnavailableError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, shared.NewRoutingUnavailableError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, shared.NewRoutingUnavailableError("malformed response: " + err.Error())
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, shared.NewRoutingUnavailableError("no route in response")
	}

	route := body.Routes[0]
	waypoints := make([]shared.LatLon, 0, len(route.Geometry.Coordinates))
	for _, pair := range route.Geometry.Coordinates {
		if len(pair) != 2 {
			return nil, shared.NewRoutingUnavailableError("malformed coordinate pair")
		}
		waypoints = append(waypoints, shared.LatLon{Lat: pair[1], Lon: pair[0]})
	}
	if len(waypoints) < 2 {
		waypoints = []shared.LatLon{from, to}
	}

	return &domainrouting.PlannedRoute{
		Waypoints:  waypoints,
		DistanceM:  route.Distance,
		DurationS:  route.Duration,
		Source:     domainrouting.SourceExternal,
		IsFallback: false,
	}, nil
}

// FallbackRoute builds the two-point straight-line route used when the
// provider is unavailable
func FallbackRoute(from, to shared.LatLon) *domainrouting.PlannedRoute {
	distance := shared.Haversine(from, to)
	return &domainrouting.PlannedRoute{
		Waypoints:  []shared.LatLon{from, to},
		DistanceM:  distance,
		DurationS:  distance / fallbackSpeedMps,
		Source:     domainrouting.SourceFallback,
		IsFallback: true,
	}
}

// BreakerState exposes the circuit state for health reporting
func (c *Client) BreakerState() CircuitState {
	return c.breaker.State()
}

func (c *Client) recordRoute(source string) {
	if c.metrics != nil {
		c.metrics.RecordRoute(source)
	}
}

func (c *Client) publishBreakerState() {
	if c.metrics != nil {
		c.metrics.SetBreakerState(float64(c.breaker.State()))
	}
}

// cacheKey rounds both coordinates to 4 decimals (~11 m) so nearby requests
// share a cache entry
func cacheKey(from, to shared.LatLon) string {
	return fmt.Sprintf("%s%.4f,%.4f;%.4f,%.4f",
		common.CachePrefixRoutes, from.Lat, from.Lon, to.Lat, to.Lon)
}
