package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/domain/routing"
	"github.com/andrescamacho/fleetdispatch/internal/domain/shared"
)

// RouteRepositoryGORM implements route persistence using GORM
type RouteRepositoryGORM struct {
	db *gorm.DB
}

// NewRouteRepository creates a new GORM-based route repository
func NewRouteRepository(db *gorm.DB) *RouteRepositoryGORM {
	return &RouteRepositoryGORM{db: db}
}

// Create persists a route. Any still-ACTIVE route for the same
// (vehicle, fault) pair is superseded first so the at-most-one-active
// invariant holds.
func (r *RouteRepositoryGORM) Create(ctx context.Context, route *routing.Route) error {
	model, err := routeToModel(route)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if route.Status == routing.StatusActive {
			err := tx.Model(&RouteModel{}).
				Where("vehicle_id = ? AND fault_id = ? AND status = ?",
					route.VehicleID, route.FaultID, string(routing.StatusActive)).
				Update("status", string(routing.StatusSuperseded)).Error
			if err != nil {
				return fmt.Errorf("failed to supersede active routes: %w", err)
			}
		}
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to create route: %w", err)
		}
		return nil
	})
}

// FindByID retrieves a route
func (r *RouteRepositoryGORM) FindByID(ctx context.Context, id string) (*routing.Route, error) {
	var model RouteModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.NewNotFoundError("route", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find route: %w", err)
	}
	return routeToDomain(&model)
}

// FindActiveByVehicle returns the vehicle's ACTIVE route, or nil
func (r *RouteRepositoryGORM) FindActiveByVehicle(ctx context.Context, vehicleID string) (*routing.Route, error) {
	var model RouteModel
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND status = ?", vehicleID, string(routing.StatusActive)).
		Order("calculated_at DESC").
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active route: %w", err)
	}
	return routeToDomain(&model)
}

// FindActiveByVehicleAndFault returns the ACTIVE route for the pair, or nil
func (r *RouteRepositoryGORM) FindActiveByVehicleAndFault(ctx context.Context, vehicleID, faultID string) (*routing.Route, error) {
	var model RouteModel
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND fault_id = ? AND status = ?",
			vehicleID, faultID, string(routing.StatusActive)).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active route for pair: %w", err)
	}
	return routeToDomain(&model)
}

// MarkStatus transitions ACTIVE -> to
func (r *RouteRepositoryGORM) MarkStatus(ctx context.Context, id string, to routing.Status) error {
	result := r.db.WithContext(ctx).
		Model(&RouteModel{}).
		Where("id = ? AND status = ?", id, string(routing.StatusActive)).
		Update("status", string(to))
	if result.Error != nil {
		return fmt.Errorf("failed to mark route status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewContendedError("route " + id)
	}
	return nil
}

// CancelActiveByVehicle cancels all ACTIVE routes for the vehicle
func (r *RouteRepositoryGORM) CancelActiveByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&RouteModel{}).
		Where("vehicle_id = ? AND status = ?", vehicleID, string(routing.StatusActive)).
		Update("status", string(routing.StatusCancelled))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cancel active routes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func routeToModel(route *routing.Route) (*RouteModel, error) {
	pairs := make([][2]float64, len(route.Waypoints))
	for i, wp := range route.Waypoints {
		pairs[i] = [2]float64{wp.Lat, wp.Lon}
	}
	raw, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode waypoints: %w", err)
	}

	return &RouteModel{
		ID:           route.ID,
		VehicleID:    route.VehicleID,
		FaultID:      route.FaultID,
		Waypoints:    string(raw),
		DistanceM:    route.DistanceM,
		DurationS:    route.DurationS,
		Source:       string(route.Source),
		IsFallback:   route.IsFallback,
		CalculatedAt: route.CalculatedAt,
		RouteStartAt: route.RouteStartAt,
		Status:       string(route.Status),
	}, nil
}

func routeToDomain(m *RouteModel) (*routing.Route, error) {
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(m.Waypoints), &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode waypoints for route %s: %w", m.ID, err)
	}
	waypoints := make([]shared.LatLon, len(pairs))
	for i, p := range pairs {
		waypoints[i] = shared.LatLon{Lat: p[0], Lon: p[1]}
	}

	return &routing.Route{
		ID:           m.ID,
		VehicleID:    m.VehicleID,
		FaultID:      m.FaultID,
		Waypoints:    waypoints,
		DistanceM:    m.DistanceM,
		DurationS:    m.DurationS,
		Source:       routing.Source(m.Source),
		IsFallback:   m.IsFallback,
		CalculatedAt: m.CalculatedAt,
		RouteStartAt: m.RouteStartAt,
		Status:       routing.Status(m.Status),
	}, nil
}
