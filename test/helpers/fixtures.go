package helpers

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/adapters/persistence"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
	"github.com/andrescamacho/fleetdispatch/internal/domain/fleet"
)

// SeedVehicle inserts a vehicle in the given status, optionally with a device
func SeedVehicle(t *testing.T, db *gorm.DB, id, number string, status fleet.VehicleStatus, withDevice bool) *fleet.Vehicle {
	t.Helper()

	model := &persistence.VehicleModel{
		ID:     id,
		Number: number,
		Status: string(status),
	}
	if err := db.Create(model).Error; err != nil {
		t.Fatalf("failed to seed vehicle %s: %v", id, err)
	}

	if withDevice {
		deviceID := id + "-device"
		device := &persistence.DeviceModel{
			ID:               deviceID,
			ExternalDeviceID: "ext-" + id,
			VehicleID:        &id,
			Status:           "ACTIVE",
			InstalledAt:      time.Now().UTC(),
		}
		if err := db.Create(device).Error; err != nil {
			t.Fatalf("failed to seed device for vehicle %s: %v", id, err)
		}
		if err := db.Model(model).Update("device_id", deviceID).Error; err != nil {
			t.Fatalf("failed to attach device to vehicle %s: %v", id, err)
		}
	}

	repo := persistence.NewVehicleRepository(db)
	v, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to reload seeded vehicle %s: %v", id, err)
	}
	return v
}

// SeedFault inserts a fault in the given status at the given position
func SeedFault(t *testing.T, db *gorm.DB, id string, status fault.Status, lat, lon float64) *fault.Fault {
	t.Helper()
	return SeedFaultWithVehicle(t, db, id, status, lat, lon, nil)
}

// SeedFaultWithVehicle inserts a fault already holding a vehicle
func SeedFaultWithVehicle(t *testing.T, db *gorm.DB, id string, status fault.Status, lat, lon float64, vehicleID *string) *fault.Fault {
	t.Helper()

	model := &persistence.FaultModel{
		ID:                id,
		Type:              "ENGINE_FAILURE",
		Location:          "Dock 4",
		Category:          string(fault.CategoryHigh),
		Lat:               lat,
		Lon:               lon,
		ReportedAt:        time.Now().UTC(),
		Status:            string(status),
		AssignedVehicleID: vehicleID,
	}
	if err := db.Create(model).Error; err != nil {
		t.Fatalf("failed to seed fault %s: %v", id, err)
	}

	repo := persistence.NewFaultRepository(db)
	f, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to reload seeded fault %s: %v", id, err)
	}
	return f
}
