package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/application/common"
	"github.com/andrescamacho/fleetdispatch/internal/application/dispatch"
	"github.com/andrescamacho/fleetdispatch/internal/application/tracking"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
	"github.com/andrescamacho/fleetdispatch/internal/domain/routing"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
	"github.com/andrescamacho/fleetdispatch/internal/infrastructure/config"
)

// listTTL keeps listing reads hot between state transitions; transitions
// invalidate by prefix
const listTTL = 5 * time.Second

// Handlers holds the HTTP endpoint implementations
type Handlers struct {
	engine   *dispatch.Engine
	tracker  *tracking.Handler
	planner  routing.Planner
	faults   fault.Repository
	vehicles fleet.VehicleRepository
	cache    common.Cache
	device   common.DeviceChannel
	db       *gorm.DB
	cfg      config.DispatchConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandlers creates the endpoint implementations
func NewHandlers(cfg config.DispatchConfig, engine *dispatch.Engine, tracker *tracking.Handler, planner routing.Planner, faults fault.Repository, vehicles fleet.VehicleRepository, cache common.Cache, device common.DeviceChannel, db *gorm.DB, logger *zap.Logger) *Handlers {
	return &Handlers{
		engine:   engine,
		tracker:  tracker,
		planner:  planner,
		faults:   faults,
		vehicles: vehicles,
		cache:    cache,
		device:   device,
		db:       db,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

type reportFaultRequest struct {
	Type     string   `json:"type" validate:"required"`
	Location string   `json:"location"`
	Category string   `json:"category" validate:"required,oneof=HIGH MEDIUM LOW"`
	Lat      *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon      *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	Detail   string   `json:"detail"`
}

type faultResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Location   string    `json:"location"`
	Category   string    `json:"category"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Detail     string    `json:"detail,omitempty"`
	ReportedAt time.Time `json:"reportedAt"`
	Status     string    `json:"status"`
	VehicleID  *string   `json:"assignedVehicleId,omitempty"`
}

// ReportFault handles POST /faults: create the fault and dispatch it
// asynchronously
func (h *Handlers) ReportFault(w http.ResponseWriter, r *http.Request) {
	var req reportFaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, shared.NewValidationError("body", "malformed JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, shared.NewValidationError("body", err.Error()))
		return
	}

	lat, lon := h.cfg.DefaultLocationLat, h.cfg.DefaultLocationLon
	if req.Lat != nil && req.Lon != nil {
		lat, lon = *req.Lat, *req.Lon
	}

	f, err := h.engine.ReportFault(r.Context(), dispatch.ReportFaultInput{
		Type:     req.Type,
		Location: req.Location,
		Category: fault.Category(req.Category),
		Lat:      lat,
		Lon:      lon,
		Detail:   req.Detail,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFaultResponse(f))
}

// RunDispatch handles POST /dispatch/run
func (h *Handlers) RunDispatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.RunBatch(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type gpsRequest struct {
	VehicleID string   `json:"vehicleId" validate:"required"`
	Lat       *float64 `json:"lat" validate:"required"`
	Lon       *float64 `json:"lon" validate:"required"`
	Speed     float64  `json:"speed"`
}

// IngestGPS handles POST /gps
func (h *Handlers) IngestGPS(w http.ResponseWriter, r *http.Request) {
	var req gpsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, shared.NewValidationError("body", "malformed JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, shared.NewValidationError("body", err.Error()))
		return
	}

	if err := h.tracker.Ingest(r.Context(), req.VehicleID, *req.Lat, *req.Lon, req.Speed); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type calculatedRouteResponse struct {
	Waypoints    [][2]float64 `json:"waypoints"`
	DistanceM    float64      `json:"distanceM"`
	DurationS    float64      `json:"durationS"`
	Source       string       `json:"source"`
	IsFallback   bool         `json:"isFallback"`
	CalculatedAt time.Time    `json:"calculatedAt"`
}

// CalculateRoute handles GET /routes/calculate
func (h *Handlers) CalculateRoute(w http.ResponseWriter, r *http.Request) {
	from, err := queryLatLon(r, "fromLat", "fromLng")
	if err != nil {
		h.writeError(w, err)
		return
	}
	to, err := queryLatLon(r, "toLat", "toLng")
	if err != nil {
		h.writeError(w, err)
		return
	}

	planned, err := h.planner.ComputeRoute(r.Context(), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}

	waypoints := make([][2]float64, len(planned.Waypoints))
	for i, wp := range planned.Waypoints {
		waypoints[i] = [2]float64{wp.Lat, wp.Lon}
	}
	writeJSON(w, http.StatusOK, calculatedRouteResponse{
		Waypoints:    waypoints,
		DistanceM:    planned.DistanceM,
		DurationS:    planned.DurationS,
		Source:       string(planned.Source),
		IsFallback:   planned.IsFallback,
		CalculatedAt: time.Now().UTC(),
	})
}

// ListFaults handles GET /faults?status=
func (h *Handlers) ListFaults(w http.ResponseWriter, r *http.Request) {
	statuses := []fault.Status{fault.StatusWaiting, fault.StatusPendingConfirmation, fault.StatusAssigned, fault.StatusResolved}
	if q := r.URL.Query().Get("status"); q != "" {
		statuses = []fault.Status{fault.Status(q)}
	}

	cacheKey := common.CachePrefixFaults + "list:" + r.URL.RawQuery
	if cached, ok := h.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	out := make([]faultResponse, 0)
	for _, status := range statuses {
		faults, err := h.faults.ListByStatus(r.Context(), status)
		if err != nil {
			h.writeError(w, err)
			return
		}
		for _, f := range faults {
			out = append(out, toFaultResponse(f))
		}
	}

	h.cache.Set(cacheKey, out, listTTL)
	writeJSON(w, http.StatusOK, out)
}

type vehicleResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
}

// ListVehicles handles GET /vehicles?status=
func (h *Handlers) ListVehicles(w http.ResponseWriter, r *http.Request) {
	statuses := []fleet.VehicleStatus{
		fleet.VehicleStatusAvailable, fleet.VehicleStatusIdle,
		fleet.VehicleStatusOnRoute, fleet.VehicleStatusWorking,
	}
	if q := r.URL.Query().Get("status"); q != "" {
		statuses = []fleet.VehicleStatus{fleet.VehicleStatus(q)}
	}

	cacheKey := common.CachePrefixVehicles + "list:" + r.URL.RawQuery
	if cached, ok := h.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	vehicles, err := h.vehicles.ListByStatuses(r.Context(), statuses)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]vehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, vehicleResponse{ID: v.ID, Number: v.Number, Status: string(v.Status)})
	}

	h.cache.Set(cacheKey, out, listTTL)
	writeJSON(w, http.StatusOK, out)
}

// Healthz handles GET /healthz
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	storeUp := true
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		storeUp = false
	}

	body := map[string]string{
		"status": "ok",
		"store":  "up",
		"device": "disconnected",
	}
	if h.device != nil && h.device.Connected() {
		body["device"] = "connected"
	}

	status := http.StatusOK
	if !storeUp {
		body["status"] = "degraded"
		body["store"] = "down"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func toFaultResponse(f *fault.Fault) faultResponse {
	return faultResponse{
		ID:         f.ID,
		Type:       f.Type,
		Location:   f.Location,
		Category:   string(f.Category),
		Lat:        f.Lat,
		Lon:        f.Lon,
		Detail:     f.Detail,
		ReportedAt: f.ReportedAt,
		Status:     string(f.Status),
		VehicleID:  f.AssignedVehicleID,
	}
}

func queryLatLon(r *http.Request, latKey, lonKey string) (shared.LatLon, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get(latKey), 64)
	if err != nil {
		return shared.LatLon{}, shared.NewValidationError(latKey, "must be a float")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get(lonKey), 64)
	if err != nil {
		return shared.LatLon{}, shared.NewValidationError(lonKey, "must be a float")
	}
	return shared.NewLatLon(lat, lon)
}
