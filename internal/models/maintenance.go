package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaintenanceType distinguishes planned service from repairs.
type MaintenanceType string

const (
	TypePreventive MaintenanceType = "PREVENTIVE"
	TypeCorrective MaintenanceType = "CORRECTIVE"
)

// IsValidMaintenanceType checks if a type is one of the known values.
func IsValidMaintenanceType(t MaintenanceType) bool {
	return t == TypePreventive || t == TypeCorrective
}

// MaintenanceStatus is the lifecycle state of an order. Transitions are
// one-directional: PLANNED -> OPEN -> CLOSED.
type MaintenanceStatus string

const (
	OrderPlanned MaintenanceStatus = "PLANNED"
	OrderOpen    MaintenanceStatus = "OPEN"
	OrderClosed  MaintenanceStatus = "CLOSED"
)

// MaintenanceOrder is a unit of service work for one bus.
type MaintenanceOrder struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BusID     string             `bson:"bus_id" json:"bus_id"`
	Type      MaintenanceType    `bson:"type" json:"type"`
	Status    MaintenanceStatus  `bson:"status" json:"status"`
	PlannedAt *time.Time         `bson:"planned_at,omitempty" json:"planned_at,omitempty"`
	OpenedAt  *time.Time         `bson:"opened_at,omitempty" json:"opened_at,omitempty"`
	ClosedAt  *time.Time         `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
