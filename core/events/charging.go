package events

// ChargingQueued is emitted when a vehicle enters a station wait queue.
type ChargingQueued struct {
	Header
	VehicleID string `json:"vehicle_id"`
	StationID string `json:"station_id"`
	Position  int    `json:"position"`
}

// ChargingAdmitted is emitted when a vehicle is granted a slot, either on
// request or by promotion from the queue.
type ChargingAdmitted struct {
	Header
	VehicleID string `json:"vehicle_id"`
	StationID string `json:"station_id"`
	Promoted  bool   `json:"promoted"`
}

// ChargingStarted is emitted when the vehicle reaches its slot.
type ChargingStarted struct {
	Header
	VehicleID string  `json:"vehicle_id"`
	StationID string  `json:"station_id"`
	Percent   float64 `json:"percent"`
}

// ChargingCompleted is emitted when the vehicle leaves the station.
type ChargingCompleted struct {
	Header
	VehicleID string  `json:"vehicle_id"`
	StationID string  `json:"station_id"`
	Energy    float64 `json:"energy"`
}

func (ChargingQueued) Name() string    { return "charging_queued" }
func (ChargingAdmitted) Name() string  { return "charging_admitted" }
func (ChargingStarted) Name() string   { return "charging_started" }
func (ChargingCompleted) Name() string { return "charging_completed" }
