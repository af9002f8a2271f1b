package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid order transition")

// OrderStatus is the lifecycle state of an order.
type OrderStatus int

const (
	StatusPending OrderStatus = iota
	StatusAssigned
	StatusInProgress
	StatusCompleted
	StatusCancelled
	StatusExpired
)

// String returns a human-readable representation of the status.
func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAssigned:
		return "assigned"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// CanTransition reports whether moving from s to next follows the order
// lifecycle. Cancelled and Expired are only reachable from Pending or
// Assigned.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusAssigned || next == StatusCancelled || next == StatusExpired
	case StatusAssigned:
		return next == StatusInProgress || next == StatusCancelled || next == StatusExpired
	case StatusInProgress:
		return next == StatusCompleted
	default:
		return false
	}
}

// TransitionError reports a rejected status change. The order is left
// untouched when it is returned.
type TransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: invalid transition %s -> %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Order is a transport request between a pickup and a dropoff location.
// Timestamps are simulated time.
type Order struct {
	ID              string
	Pickup          Location
	Dropoff         Location
	Priority        Priority
	Status          OrderStatus
	CreatedAt       time.Time
	Deadline        time.Time
	AssignedVehicle string

	AssignedAt  time.Time
	PickedUpAt  time.Time
	FinishedAt  time.Time
	Assignments int
}

// NewOrder returns a pending order whose deadline is createdAt plus slack.
// A non-positive slack yields an order that is already expired.
func NewOrder(id string, pickup, dropoff Location, prio Priority, createdAt time.Time, slack time.Duration) *Order {
	return &Order{
		ID:        id,
		Pickup:    pickup,
		Dropoff:   dropoff,
		Priority:  prio,
		Status:    StatusPending,
		CreatedAt: createdAt,
		Deadline:  createdAt.Add(slack),
	}
}

func (o *Order) transition(next OrderStatus) error {
	if !o.Status.CanTransition(next) {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: next}
	}
	o.Status = next
	return nil
}

// Assign binds the order to a vehicle.
func (o *Order) Assign(vehicleID string, now time.Time) error {
	if err := o.transition(StatusAssigned); err != nil {
		return err
	}
	o.AssignedVehicle = vehicleID
	o.AssignedAt = now
	o.Assignments++
	return nil
}

// Start marks the cargo as picked up.
func (o *Order) Start(now time.Time) error {
	if err := o.transition(StatusInProgress); err != nil {
		return err
	}
	o.PickedUpAt = now
	return nil
}

// Complete marks the cargo as delivered.
func (o *Order) Complete(now time.Time) error {
	if err := o.transition(StatusCompleted); err != nil {
		return err
	}
	o.FinishedAt = now
	return nil
}

// Cancel aborts a pending or assigned order.
func (o *Order) Cancel(now time.Time) error {
	if err := o.transition(StatusCancelled); err != nil {
		return err
	}
	o.FinishedAt = now
	return nil
}

// Expire marks a pending or assigned order as expired.
func (o *Order) Expire(now time.Time) error {
	if err := o.transition(StatusExpired); err != nil {
		return err
	}
	o.FinishedAt = now
	return nil
}

// Release detaches an assigned order from its vehicle and returns it to
// Pending. It is the only backward step of the lifecycle and is used for
// reassignment before pickup.
func (o *Order) Release() error {
	if o.Status != StatusAssigned {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: StatusPending}
	}
	o.Status = StatusPending
	o.AssignedVehicle = ""
	o.AssignedAt = time.Time{}
	return nil
}

// IsExpired reports whether the deadline has been reached while the order
// is still Pending or Assigned.
func (o *Order) IsExpired(now time.Time) bool {
	if o.Status != StatusPending && o.Status != StatusAssigned {
		return false
	}
	return !now.Before(o.Deadline)
}

// RemainingTime returns the time left until the deadline. It is negative
// once the deadline has passed.
func (o *Order) RemainingTime(now time.Time) time.Duration {
	return o.Deadline.Sub(now)
}

// WaitTime is the time spent pending before the last assignment.
func (o *Order) WaitTime() time.Duration {
	if o.AssignedAt.IsZero() {
		return 0
	}
	return o.AssignedAt.Sub(o.CreatedAt)
}

// TotalTime is the time from creation to a terminal state.
func (o *Order) TotalTime() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.CreatedAt)
}

// StageTimes splits a finished order's lifetime into its stages. Stages
// that were never reached are omitted.
func (o *Order) StageTimes() map[string]time.Duration {
	st := make(map[string]time.Duration, 3)
	if !o.AssignedAt.IsZero() {
		st["waiting"] = o.AssignedAt.Sub(o.CreatedAt)
		if !o.PickedUpAt.IsZero() {
			st["to_pickup"] = o.PickedUpAt.Sub(o.AssignedAt)
			if o.Status == StatusCompleted {
				st["to_dropoff"] = o.FinishedAt.Sub(o.PickedUpAt)
			}
		}
	}
	return st
}
