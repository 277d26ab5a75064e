package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/httpapi"
	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/application/dispatch"
	"github.com/andrescamacho/fleetdispatch/internal/application/lifecycle"
	"github.com/andrescamacho/fleetdispatch/internal/application/tracking"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
	"github.com/andrescamacho/fleetdispatch/test/helpers"
)

type apiFixture struct {
	server *httptest.Server
	db     *gorm.DB
	device *helpers.StubDeviceChannel
}

func apiConfig() config.DispatchConfig {
	return config.DispatchConfig{
		Engine:                  config.ScorerRule,
		PrototypeMode:           false,
		AckDeadlineMS:           60000,
		AutoResolveMS:           60000,
		SweeperIntervalMS:       30000,
		ArrivalThresholdM:       100,
		DeviationThresholdM:     100,
		MinDistToDestForRecalcM: 500,
		DefaultLocationLat:      10.0,
		DefaultLocationLon:      20.0,
		BatchCap:                100,
	}
}

func newAPIFixture(t *testing.T) *apiFixture {
	cfg := apiConfig()
	db := helpers.NewTestDB(t)
	logger := zap.NewNop()

	bus := helpers.NewRecordingBus()
	memCache := helpers.NewMemCache()
	planner := helpers.NewStubPlanner()
	device := helpers.NewStubDeviceChannel()
	ml := helpers.NewStubMLClient()
	vehicleLocks := common.NewKeyedMutex()
	faultLocks := common.NewKeyedMutex()
	timedOut := dispatch.NewTimedOutSet()

	timers := lifecycle.NewTimerService(cfg, logger, nil)
	t.Cleanup(timers.Stop)

	faults := persistence.NewFaultRepository(db)
	vehicles := persistence.NewVehicleRepository(db)

	service := lifecycle.NewService(cfg, lifecycle.ServiceDeps{
		Faults:       faults,
		Vehicles:     vehicles,
		Trips:        persistence.NewTripRepository(db),
		Routes:       persistence.NewRouteRepository(db),
		Alerts:       persistence.NewAlertRepository(db),
		Reservations: persistence.NewReservationStore(db),
		Cache:        memCache,
		Bus:          bus,
		Logger:       logger,
		Timers:       timers,
		TimedOut:     timedOut,
		VehicleLocks: vehicleLocks,
		FaultLocks:   faultLocks,
	})

	engine := dispatch.NewEngine(cfg, dispatch.EngineDeps{
		Faults:       faults,
		Vehicles:     vehicles,
		Stats:        persistence.NewStatsRepository(db),
		Alerts:       persistence.NewAlertRepository(db),
		Routes:       persistence.NewRouteRepository(db),
		Samples:      persistence.NewTelemetryRepository(db),
		Planner:      planner,
		Reservations: persistence.NewReservationStore(db),
		ML:           ml,
		Device:       device,
		Cache:        memCache,
		Bus:          bus,
		Logger:       logger,
		TimedOut:     timedOut,
		VehicleLocks: vehicleLocks,
		FaultLocks:   faultLocks,
	})
	engine.SetAckScheduler(timers)
	engine.SetConfirmer(service)
	service.SetRedispatcher(engine)

	tracker := tracking.NewHandler(cfg, tracking.HandlerDeps{
		Samples:      persistence.NewTelemetryRepository(db),
		Vehicles:     vehicles,
		Faults:       faults,
		Routes:       persistence.NewRouteRepository(db),
		Planner:      planner,
		Timers:       timers,
		Cache:        memCache,
		Bus:          bus,
		Logger:       logger,
		VehicleLocks: vehicleLocks,
	})

	handlers := httpapi.NewHandlers(cfg, engine, tracker, planner, faults, vehicles, memCache, device, db, logger)
	router := httpapi.NewRouter(handlers, prometheus.NewRegistry(), logger)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{server: server, db: db, device: device}
}

func (fx *apiFixture) post(t *testing.T, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(fx.server.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (fx *apiFixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(fx.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestReportFault_Created(t *testing.T) {
	// Arrange
	fx := newAPIFixture(t)

	// Act
	resp, raw := fx.post(t, "/faults",
		`{"type": "ENGINE_FAILURE", "location": "Dock 4", "category": "HIGH", "lat": 41.38, "lon": 2.17}`)

	// Assert
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID       string  `json:"id"`
		Status   string  `json:"status"`
		Lat      float64 `json:"lat"`
		Category string  `json:"category"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "WAITING", body.Status)
	assert.Equal(t, 41.38, body.Lat)
	assert.Equal(t, "HIGH", body.Category)

	persisted, err := persistence.NewFaultRepository(fx.db).FindByID(context.Background(), body.ID)
	require.NoError(t, err)
	assert.Equal(t, "ENGINE_FAILURE", persisted.Type)
}

func TestReportFault_DefaultsLocationWhenCoordsAbsent(t *testing.T) {
	fx := newAPIFixture(t)

	resp, raw := fx.post(t, "/faults",
		`{"type": "ENGINE_FAILURE", "location": "Dock 4", "category": "LOW"}`)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 10.0, body.Lat)
	assert.Equal(t, 20.0, body.Lon)
}

func TestReportFault_RejectsBadCategory(t *testing.T) {
	fx := newAPIFixture(t)

	resp, _ := fx.post(t, "/faults",
		`{"type": "ENGINE_FAILURE", "category": "URGENT"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportFault_RejectsMalformedJSON(t *testing.T) {
	fx := newAPIFixture(t)

	resp, _ := fx.post(t, "/faults", `{not json`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunDispatch_DispatchesWaitingFault(t *testing.T) {
	// Arrange
	fx := newAPIFixture(t)
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.0, 20.0)

	// Act
	resp, raw := fx.post(t, "/dispatch/run", ``)

	// Assert
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary struct {
		Dispatched int `json:"dispatched"`
		Failed     int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.Dispatched)
	assert.Equal(t, 0, summary.Failed)

	f, err := persistence.NewFaultRepository(fx.db).FindByID(context.Background(), "fault-1")
	require.NoError(t, err)
	assert.Equal(t, fault.StatusPendingConfirmation, f.Status)
	assert.Len(t, fx.device.Commands(), 1)
}

func TestIngestGPS_Accepted(t *testing.T) {
	fx := newAPIFixture(t)
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)

	resp, _ := fx.post(t, "/gps", `{"vehicleId": "veh-1", "lat": 41.38, "lon": 2.17, "speed": 8.5}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestIngestGPS_RejectsMissingCoordinates(t *testing.T) {
	fx := newAPIFixture(t)

	resp, _ := fx.post(t, "/gps", `{"vehicleId": "veh-1", "lat": 41.38}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestGPS_UnknownVehicle(t *testing.T) {
	fx := newAPIFixture(t)

	resp, _ := fx.post(t, "/gps", `{"vehicleId": "ghost", "lat": 41.38, "lon": 2.17}`)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCalculateRoute_ReturnsPlannedRoute(t *testing.T) {
	fx := newAPIFixture(t)

	resp, raw := fx.get(t, "/routes/calculate?fromLat=0&fromLng=0&toLat=0.1&toLng=0")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Waypoints  [][2]float64 `json:"waypoints"`
		DistanceM  float64      `json:"distanceM"`
		IsFallback bool         `json:"isFallback"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Waypoints, 2)
	assert.InDelta(t, 11120, body.DistanceM, 100)
	assert.True(t, body.IsFallback)
}

func TestCalculateRoute_RejectsBadQuery(t *testing.T) {
	fx := newAPIFixture(t)

	resp, _ := fx.get(t, "/routes/calculate?fromLat=abc&fromLng=0&toLat=0.1&toLng=0")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListVehicles_FiltersByStatus(t *testing.T) {
	// Arrange
	fx := newAPIFixture(t)
	helpers.SeedVehicle(t, fx.db, "veh-1", "V-001", fleet.VehicleStatusAvailable, true)
	helpers.SeedVehicle(t, fx.db, "veh-2", "V-002", fleet.VehicleStatusWorking, true)

	// Act
	resp, raw := fx.get(t, "/vehicles?status=AVAILABLE")

	// Assert
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var vehicles []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(raw, &vehicles))
	require.Len(t, vehicles, 1)
	assert.Equal(t, "veh-1", vehicles[0].ID)
}

func TestListFaults_FiltersByStatus(t *testing.T) {
	fx := newAPIFixture(t)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.0, 20.0)
	helpers.SeedFault(t, fx.db, "fault-2", fault.StatusResolved, 10.0, 20.0)

	resp, raw := fx.get(t, "/faults?status=WAITING")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var faults []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &faults))
	require.Len(t, faults, 1)
	assert.Equal(t, "fault-1", faults[0].ID)
}

func TestHealthz_ReportsDeviceChannel(t *testing.T) {
	fx := newAPIFixture(t)

	resp, raw := fx.get(t, "/healthz")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["store"])
	assert.Equal(t, "connected", body["device"])
}

func TestMetricsEndpoint_Serves(t *testing.T) {
	fx := newAPIFixture(t)

	resp, _ := fx.get(t, "/metrics")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListFaults_ServesRepeatFromCache(t *testing.T) {
	// Arrange - prime the cache, then add a fault behind its back
	fx := newAPIFixture(t)
	helpers.SeedFault(t, fx.db, "fault-1", fault.StatusWaiting, 10.0, 20.0)
	_, raw := fx.get(t, "/faults?status=WAITING")
	var first []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &first))
	require.Len(t, first, 1)

	helpers.SeedFault(t, fx.db, "fault-2", fault.StatusWaiting, 10.0, 20.0)

	// Act - inside the listing TTL the cached answer wins
	_, raw = fx.get(t, "/faults?status=WAITING")

	// Assert
	var second []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &second))
	assert.Len(t, second, 1)
}
