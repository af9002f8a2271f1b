// Package agent models a vehicle of the fleet: its battery, its position and
// the leg it is travelling. A vehicle refers to its order and its charging
// station by id only; the order queue and the charging registry own them.
package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/agv/core/battery"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/routing"
)

var (
	ErrNotIdle    = errors.New("vehicle is not idle")
	ErrNotBlocked = errors.New("vehicle is not blocked")

	ErrInvalidRescue = errors.New("rescue amount must be positive")
)

// State is the activity of a vehicle.
type State int

const (
	StateIdle State = iota
	StateToPickup
	StateToDropoff
	StateToCharger
	StateWaitingCharge
	StateCharging
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateToPickup:
		return "to_pickup"
	case StateToDropoff:
		return "to_dropoff"
	case StateToCharger:
		return "to_charger"
	case StateWaitingCharge:
		return "waiting_charge"
	case StateCharging:
		return "charging"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Moving reports whether the vehicle travels a leg in this state.
func (s State) Moving() bool {
	return s == StateToPickup || s == StateToDropoff || s == StateToCharger
}

// Block reasons.
const (
	ReasonDepleted     = "battery depleted"
	ReasonInsufficient = "insufficient charge for remaining leg"
)

// Report lists what happened to a vehicle during one update.
type Report struct {
	PickedUp       bool
	Delivered      bool
	AtStation      bool
	Blocked        bool
	ChargeComplete bool
	Alert          battery.Alert
	Energy         float64
}

// Vehicle is one AGV.
type Vehicle struct {
	ID       string
	Battery  *battery.Battery
	Position model.Location
	State    State

	OrderID   string
	Carrying  bool
	StationID string

	OrdersCompleted  int
	DistanceTraveled float64
	BlockReason      string

	pickup  model.Location
	dropoff model.Location
	leg     *routing.Leg
	resume  State
}

// New returns an idle vehicle at pos.
func New(id string, b *battery.Battery, pos model.Location) *Vehicle {
	return &Vehicle{ID: id, Battery: b, Position: pos, State: StateIdle}
}

// Idle reports whether the vehicle is free for work.
func (v *Vehicle) Idle() bool { return v.State == StateIdle }

// Eligible reports whether the vehicle may be considered for an order.
func (v *Vehicle) Eligible() bool {
	return v.State == StateIdle && v.OrderID == "" && v.Battery.CanMove()
}

// Assign binds an order and heads for its pickup node.
func (v *Vehicle) Assign(orderID string, pickup, dropoff model.Location, est routing.Estimator) error {
	if v.State != StateIdle || v.OrderID != "" {
		return fmt.Errorf("%w: %s is %s", ErrNotIdle, v.ID, v.State)
	}
	v.OrderID = orderID
	v.pickup, v.dropoff = pickup, dropoff
	v.leg = routing.Plan(est, v.Position, pickup)
	v.State = StateToPickup
	return nil
}

// FinishOrder clears a delivered order and counts it.
func (v *Vehicle) FinishOrder() {
	v.OrdersCompleted++
	v.clearOrder()
	v.State = StateIdle
}

// Unbind detaches the vehicle from its order without counting it. A blocked
// vehicle stays blocked and will resume as idle.
func (v *Vehicle) Unbind() {
	v.clearOrder()
	if v.State == StateBlocked {
		v.resume = StateIdle
		return
	}
	v.State = StateIdle
}

func (v *Vehicle) clearOrder() {
	v.OrderID = ""
	v.Carrying = false
	v.leg = nil
	v.pickup, v.dropoff = model.Location{}, model.Location{}
}

// GoCharge sends an idle vehicle to a charging station.
func (v *Vehicle) GoCharge(stationID string, at model.Location, est routing.Estimator) error {
	if v.State != StateIdle || v.OrderID != "" {
		return fmt.Errorf("%w: %s is %s", ErrNotIdle, v.ID, v.State)
	}
	v.StationID = stationID
	v.leg = routing.Plan(est, v.Position, at)
	v.State = StateToCharger
	return nil
}

// StartCharging occupies a slot at the current station.
func (v *Vehicle) StartCharging(efficiency float64) {
	v.State = StateCharging
	v.leg = nil
	v.Battery.StartCharging(efficiency)
}

// WaitForCharge parks the vehicle in the station queue.
func (v *Vehicle) WaitForCharge() {
	v.State = StateWaitingCharge
	v.leg = nil
}

// LeaveStation ends any charging session and makes the vehicle idle.
func (v *Vehicle) LeaveStation() {
	v.Battery.StopCharging()
	v.StationID = ""
	if v.State == StateCharging || v.State == StateWaitingCharge || v.State == StateToCharger {
		v.State = StateIdle
		v.leg = nil
	}
}

// Rescue adds charge in place, simulating a battery swap or a tow. A blocked
// vehicle that can move again and can finish its leg resumes what it was
// doing and true is returned.
func (v *Vehicle) Rescue(amount float64, est routing.Estimator) (bool, error) {
	if v.State != StateBlocked {
		return false, fmt.Errorf("%w: %s is %s", ErrNotBlocked, v.ID, v.State)
	}
	if amount <= 0 {
		return false, fmt.Errorf("%w: %v", ErrInvalidRescue, amount)
	}
	v.Battery.Recharge(amount)
	if !v.Battery.CanMove() {
		return false, nil
	}
	if v.resume.Moving() && v.leg != nil {
		minutes := routing.Plan(est, v.Position, v.leg.To).Remaining().Minutes()
		if !v.Battery.CanCompleteTask(minutes, true, v.Carrying) {
			return false, nil
		}
	}
	v.State = v.resume
	v.BlockReason = ""
	if v.State.Moving() && v.leg != nil {
		v.leg = routing.Plan(est, v.Position, v.leg.To)
	}
	return true, nil
}

// Target returns the node the vehicle is heading to.
func (v *Vehicle) Target() (model.Location, bool) {
	if v.leg == nil {
		return model.Location{}, false
	}
	return v.leg.To, true
}

// Remaining returns the travel time left on the current leg.
func (v *Vehicle) Remaining() time.Duration {
	if v.leg == nil {
		return 0
	}
	return v.leg.Remaining()
}

// Update advances the vehicle by dt of simulated time.
func (v *Vehicle) Update(dt time.Duration, est routing.Estimator) Report {
	var r Report
	if dt <= 0 {
		return r
	}
	secs := dt.Seconds()
	switch {
	case v.State.Moving():
		v.move(dt, est, &r)
	case v.State == StateCharging:
		before := v.Battery.Charge()
		v.Battery.Update(secs, false, false)
		r.Energy = v.Battery.Charge() - before
		if !v.Battery.IsCharging() || v.Battery.IsFullyCharged() {
			v.Battery.StopCharging()
			r.ChargeComplete = true
		}
	default:
		r.Alert = v.Battery.Update(secs, false, false)
	}
	return r
}

func (v *Vehicle) move(dt time.Duration, est routing.Estimator, r *Report) {
	if !v.Battery.CanMove() {
		v.block(ReasonDepleted, r)
		return
	}
	dist, arrived := v.leg.Advance(dt)
	v.Position = v.leg.Position()
	v.DistanceTraveled += dist
	r.Alert = v.Battery.Update(dt.Seconds(), true, v.Carrying)
	if !arrived {
		switch {
		case v.Battery.Charge() <= 0:
			v.block(ReasonDepleted, r)
		case r.Alert == battery.AlertCritical &&
			!v.Battery.CanCompleteTask(v.leg.Remaining().Minutes(), true, v.Carrying):
			v.block(ReasonInsufficient, r)
		}
		return
	}
	v.Position = v.leg.To
	switch v.State {
	case StateToPickup:
		v.Carrying = true
		v.leg = routing.Plan(est, v.Position, v.dropoff)
		v.State = StateToDropoff
		r.PickedUp = true
		if r.Alert == battery.AlertCritical &&
			!v.Battery.CanCompleteTask(v.leg.Remaining().Minutes(), true, v.Carrying) {
			v.block(ReasonInsufficient, r)
		}
	case StateToDropoff:
		v.Carrying = false
		v.leg = nil
		r.Delivered = true
	case StateToCharger:
		v.leg = nil
		v.State = StateWaitingCharge
		r.AtStation = true
	}
}

func (v *Vehicle) block(reason string, r *Report) {
	v.resume = v.State
	v.State = StateBlocked
	v.BlockReason = reason
	r.Blocked = true
}

// Status is the read-only projection of a vehicle.
type Status struct {
	ID               string  `json:"id" yaml:"id"`
	State            string  `json:"state" yaml:"state"`
	Location         string  `json:"location,omitempty" yaml:"location,omitempty"`
	X                float64 `json:"x" yaml:"x"`
	Y                float64 `json:"y" yaml:"y"`
	Target           string  `json:"target,omitempty" yaml:"target,omitempty"`
	Charge           float64 `json:"charge" yaml:"charge"`
	BatteryPercent   float64 `json:"battery_percent" yaml:"battery_percent"`
	BatteryStatus    string  `json:"battery_status" yaml:"battery_status"`
	OrderID          string  `json:"order_id,omitempty" yaml:"order_id,omitempty"`
	Carrying         bool    `json:"carrying" yaml:"carrying"`
	StationID        string  `json:"station_id,omitempty" yaml:"station_id,omitempty"`
	OrdersCompleted  int     `json:"orders_completed" yaml:"orders_completed"`
	DistanceTraveled float64 `json:"distance_traveled" yaml:"distance_traveled"`
	BlockReason      string  `json:"block_reason,omitempty" yaml:"block_reason,omitempty"`
}

// Status returns the projection of the vehicle.
func (v *Vehicle) Status() Status {
	s := Status{
		ID:               v.ID,
		State:            v.State.String(),
		Location:         v.Position.ID,
		X:                v.Position.X,
		Y:                v.Position.Y,
		Charge:           v.Battery.Charge(),
		BatteryPercent:   v.Battery.Percent(),
		BatteryStatus:    v.Battery.Status().String(),
		OrderID:          v.OrderID,
		Carrying:         v.Carrying,
		StationID:        v.StationID,
		OrdersCompleted:  v.OrdersCompleted,
		DistanceTraveled: v.DistanceTraveled,
		BlockReason:      v.BlockReason,
	}
	if t, ok := v.Target(); ok {
		s.Target = t.ID
	}
	return s
}
