package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetdispatch/internal/domain/fault"
)

// AlertRepositoryGORM implements alert persistence using GORM
type AlertRepositoryGORM struct {
	db *gorm.DB
}

// NewAlertRepository creates a new GORM-based alert repository
func NewAlertRepository(db *gorm.DB) *AlertRepositoryGORM {
	return &AlertRepositoryGORM{db: db}
}

// Create persists an alert
func (r *AlertRepositoryGORM) Create(ctx context.Context, a *fault.Alert) error {
	model := &AlertModel{
		ID:             a.ID,
		FaultID:        a.FaultID,
		VehicleID:      a.VehicleID,
		Priority:       string(a.Priority),
		Solved:         a.Solved,
		AcknowledgedBy: a.AcknowledgedBy,
		Timestamp:      a.Timestamp,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// MarkSolved marks every unsolved alert for the fault as solved
func (r *AlertRepositoryGORM) MarkSolved(ctx context.Context, faultID string) error {
	err := r.db.WithContext(ctx).
		Model(&AlertModel{}).
		Where("fault_id = ? AND solved = ?", faultID, false).
		Update("solved", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark alerts solved: %w", err)
	}
	return nil
}

// FindByFault returns the alerts for a fault
func (r *AlertRepositoryGORM) FindByFault(ctx context.Context, faultID string) ([]*fault.Alert, error) {
	var models []AlertModel
	err := r.db.WithContext(ctx).
		Where("fault_id = ?", faultID).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find alerts: %w", err)
	}

	alerts := make([]*fault.Alert, 0, len(models))
	for i := range models {
		m := &models[i]
		alerts = append(alerts, &fault.Alert{
			ID:             m.ID,
			FaultID:        m.FaultID,
			VehicleID:      m.VehicleID,
			Priority:       fault.Category(m.Priority),
			Solved:         m.Solved,
			AcknowledgedBy: m.AcknowledgedBy,
			Timestamp:      m.Timestamp,
		})
	}
	return alerts, nil
}
