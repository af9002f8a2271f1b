package events

// VehicleBlocked is emitted when a vehicle halts for lack of charge. Its
// order, if any, stays assigned.
type VehicleBlocked struct {
	Header
	VehicleID string  `json:"vehicle_id"`
	OrderID   string  `json:"order_id,omitempty"`
	Reason    string  `json:"reason"`
	Charge    float64 `json:"charge"`
}

// VehicleResumed is emitted when a blocked vehicle can move again.
type VehicleResumed struct {
	Header
	VehicleID string `json:"vehicle_id"`
}

// VehicleRemoved is emitted when a vehicle leaves the fleet.
type VehicleRemoved struct {
	Header
	VehicleID string `json:"vehicle_id"`
}

// BatteryAlert is emitted when a battery crosses a threshold downwards.
type BatteryAlert struct {
	Header
	VehicleID string  `json:"vehicle_id"`
	Level     string  `json:"level"`
	Percent   float64 `json:"percent"`
}

func (VehicleBlocked) Name() string { return "vehicle_blocked" }
func (VehicleResumed) Name() string { return "vehicle_resumed" }
func (VehicleRemoved) Name() string { return "vehicle_removed" }
func (BatteryAlert) Name() string   { return "battery_alert" }
