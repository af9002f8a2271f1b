package model

import "time"

// OrderRecord is the read-only projection of an order handed to
// presentation and telemetry consumers.
type OrderRecord struct {
	ID               string    `json:"id" yaml:"id"`
	Pickup           string    `json:"pickup" yaml:"pickup"`
	Dropoff          string    `json:"dropoff" yaml:"dropoff"`
	Priority         string    `json:"priority" yaml:"priority"`
	Status           string    `json:"status" yaml:"status"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	Deadline         time.Time `json:"deadline" yaml:"deadline"`
	AssignedVehicle  string    `json:"assigned_vehicle,omitempty" yaml:"assigned_vehicle,omitempty"`
	RemainingSeconds float64   `json:"remaining_seconds" yaml:"remaining_seconds"`
	WaitSeconds      float64   `json:"wait_seconds,omitempty" yaml:"wait_seconds,omitempty"`
	TotalSeconds     float64   `json:"total_seconds,omitempty" yaml:"total_seconds,omitempty"`
}

// Record projects the order at the given simulated time.
func (o *Order) Record(now time.Time) OrderRecord {
	return OrderRecord{
		ID:               o.ID,
		Pickup:           o.Pickup.ID,
		Dropoff:          o.Dropoff.ID,
		Priority:         o.Priority.String(),
		Status:           o.Status.String(),
		CreatedAt:        o.CreatedAt,
		Deadline:         o.Deadline,
		AssignedVehicle:  o.AssignedVehicle,
		RemainingSeconds: o.RemainingTime(now).Seconds(),
		WaitSeconds:      o.WaitTime().Seconds(),
		TotalSeconds:     o.TotalTime().Seconds(),
	}
}
