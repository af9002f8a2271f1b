package events

import "github.com/kilianp07/agv/core/model"

// OrderGenerated is emitted when an order enters the queue.
type OrderGenerated struct {
	Header
	Order  model.OrderRecord `json:"order"`
	Manual bool              `json:"manual"`
}

// OrderAssigned is emitted at the commit of an assignment.
type OrderAssigned struct {
	Header
	OrderID     string  `json:"order_id"`
	VehicleID   string  `json:"vehicle_id"`
	Score       float64 `json:"score"`
	Forced      bool    `json:"forced"`
	WaitSeconds float64 `json:"wait_seconds"`
}

// OrderPickedUp is emitted when the vehicle reaches the pickup node.
type OrderPickedUp struct {
	Header
	OrderID   string `json:"order_id"`
	VehicleID string `json:"vehicle_id"`
}

// OrderCompleted is emitted when the cargo reaches the dropoff node.
type OrderCompleted struct {
	Header
	OrderID      string  `json:"order_id"`
	VehicleID    string  `json:"vehicle_id"`
	TotalSeconds float64 `json:"total_seconds"`
}

// OrderCancelled is emitted when an order is cancelled.
type OrderCancelled struct {
	Header
	OrderID   string `json:"order_id"`
	VehicleID string `json:"vehicle_id,omitempty"`
	Reason    string `json:"reason"`
}

// OrderExpired is emitted by the expiry sweep.
type OrderExpired struct {
	Header
	OrderID   string `json:"order_id"`
	VehicleID string `json:"vehicle_id,omitempty"`
}

// OrderReleased is emitted when an assigned order returns to Pending.
type OrderReleased struct {
	Header
	OrderID   string `json:"order_id"`
	VehicleID string `json:"vehicle_id"`
}

// AssignmentFailed is emitted when no eligible vehicle exists for the
// order selected by the active strategy.
type AssignmentFailed struct {
	Header
	OrderID  string `json:"order_id"`
	Idle     int    `json:"idle"`
	Strategy string `json:"strategy"`
}

func (OrderGenerated) Name() string   { return "order_generated" }
func (OrderAssigned) Name() string    { return "order_assigned" }
func (OrderPickedUp) Name() string    { return "order_picked_up" }
func (OrderCompleted) Name() string   { return "order_completed" }
func (OrderCancelled) Name() string   { return "order_cancelled" }
func (OrderExpired) Name() string     { return "order_expired" }
func (OrderReleased) Name() string    { return "order_released" }
func (AssignmentFailed) Name() string { return "assignment_failed" }
