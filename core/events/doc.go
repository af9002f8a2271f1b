// Package events defines the notifications emitted by the dispatch core.
//
// Events are pushed to an outbox while a tick runs and drained once the
// tick has finished, so consumers never observe a half-applied tick and can
// never re-enter the core from a handler.
//
// Available event types:
//   - OrderGenerated, OrderAssigned, OrderPickedUp, OrderCompleted
//   - OrderCancelled, OrderExpired, OrderReleased, AssignmentFailed
//   - VehicleBlocked, VehicleResumed, VehicleRemoved, BatteryAlert
//   - ChargingQueued, ChargingAdmitted, ChargingStarted, ChargingCompleted
package events

import "time"

// Event is implemented by every core notification.
type Event interface {
	Name() string
	OccurredAt() time.Time
}

// Header carries the simulated time and tick of an event.
type Header struct {
	At   time.Time `json:"at"`
	Tick uint64    `json:"tick"`
}

func (h Header) OccurredAt() time.Time { return h.At }
