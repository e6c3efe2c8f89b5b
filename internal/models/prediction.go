package models

import "time"

// Prediction is the transient result of the next-maintenance estimate. It is
// never persisted.
type Prediction struct {
	BusID      string     `json:"bus_id"`
	DateByKm   *time.Time `json:"date_by_km,omitempty"`
	DateByTime *time.Time `json:"date_by_time,omitempty"`
	FinalDate  *time.Time `json:"final_date,omitempty"`
	Note       string     `json:"note,omitempty"`
}
