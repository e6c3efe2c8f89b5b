package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BusStatus is the operational maintenance status of a bus.
type BusStatus string

const (
	StatusOK            BusStatus = "OK"             // operational, no maintenance pending
	StatusProximo       BusStatus = "PROXIMO"        // maintenance upcoming
	StatusVencido       BusStatus = "VENCIDO"        // maintenance overdue
	StatusFueraServicio BusStatus = "FUERA_SERVICIO" // withdrawn from service
	StatusReemplazado   BusStatus = "REEMPLAZADO"    // replaced by another bus
)

// IsValidBusStatus checks if a status is one of the known values.
func IsValidBusStatus(s BusStatus) bool {
	switch s {
	case StatusOK, StatusProximo, StatusVencido, StatusFueraServicio, StatusReemplazado:
		return true
	default:
		return false
	}
}

// Severity returns the total order used to merge classifications. Higher is
// worse. Unknown statuses rank below OK so they can never win a merge.
func (s BusStatus) Severity() int {
	switch s {
	case StatusOK:
		return 0
	case StatusProximo:
		return 1
	case StatusVencido:
		return 2
	case StatusFueraServicio:
		return 3
	case StatusReemplazado:
		return 4
	default:
		return -1
	}
}

// Worse returns the more severe of two statuses.
func (s BusStatus) Worse(other BusStatus) BusStatus {
	if other.Severity() > s.Severity() {
		return other
	}
	return s
}

// IsTerminal reports whether the status is a manual override that suppresses
// recalculation.
func (s BusStatus) IsTerminal() bool {
	return s == StatusFueraServicio || s == StatusReemplazado
}

// Bus represents a fleet vehicle tracked for maintenance compliance.
type Bus struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Plate               string             `bson:"plate" json:"plate"`
	KmCurrent           int64              `bson:"km_current" json:"km_current"`
	LastMaintenanceDate *time.Time         `bson:"last_maintenance_date,omitempty" json:"last_maintenance_date,omitempty"`
	NextMaintenanceDate *time.Time         `bson:"next_maintenance_date,omitempty" json:"next_maintenance_date,omitempty"`
	Status              BusStatus          `bson:"status" json:"status"`
	ReplacementID       string             `bson:"replacement_id,omitempty" json:"replacement_id,omitempty"`
	Alias               string             `bson:"alias,omitempty" json:"alias,omitempty"`
	Notes               string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
}
