package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/battery"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/order"
)

// OrderRequest describes a manual order. Empty fields are drawn like a
// generated order.
type OrderRequest struct {
	Pickup   string
	Dropoff  string
	Priority string
	Slack    *time.Duration
}

// SubmitOrder builds a manual order and queues it.
func (e *Engine) SubmitOrder(ctx context.Context, req OrderRequest) (model.OrderRecord, error) {
	var rec model.OrderRecord
	err := e.Exec(ctx, func() error {
		ov := order.Overrides{Slack: req.Slack}
		if req.Pickup != "" {
			l, ok := e.m.Lookup(req.Pickup)
			if !ok {
				return fmt.Errorf("unknown pickup location %s", req.Pickup)
			}
			ov.Pickup = &l
		}
		if req.Dropoff != "" {
			l, ok := e.m.Lookup(req.Dropoff)
			if !ok {
				return fmt.Errorf("unknown dropoff location %s", req.Dropoff)
			}
			ov.Dropoff = &l
		}
		if req.Priority != "" {
			p, err := model.ParsePriority(req.Priority)
			if err != nil {
				return err
			}
			ov.Priority = p
		}
		now := e.sched.Now()
		o, err := e.gen.Generate(now, ov)
		if err != nil {
			return err
		}
		if err := e.sched.AddOrder(o, true); err != nil {
			return err
		}
		rec = o.Record(now)
		return nil
	})
	return rec, err
}

// CancelOrder cancels a pending or assigned order.
func (e *Engine) CancelOrder(ctx context.Context, id, reason string) error {
	return e.Exec(ctx, func() error { return e.sched.CancelOrder(id, reason) })
}

// ReassignOrder returns an assigned order to the pending set.
func (e *Engine) ReassignOrder(ctx context.Context, id string) error {
	return e.Exec(ctx, func() error { return e.sched.ReassignOrder(id) })
}

// ForceAssign binds an order to a vehicle without scoring.
func (e *Engine) ForceAssign(ctx context.Context, orderID, vehicleID string) (bool, error) {
	var ok bool
	err := e.Exec(ctx, func() error {
		ok = e.sched.ForceAssignOrder(orderID, vehicleID)
		return nil
	})
	return ok, err
}

// RescueVehicle recharges a blocked vehicle in place.
func (e *Engine) RescueVehicle(ctx context.Context, id string, amount float64) error {
	return e.Exec(ctx, func() error { return e.sched.RescueVehicle(id, amount) })
}

// AddVehicle adds a fully charged vehicle at a map location.
func (e *Engine) AddVehicle(ctx context.Context, id, locationID string) error {
	at, ok := e.m.Lookup(locationID)
	if !ok {
		return fmt.Errorf("unknown location %s", locationID)
	}
	return e.Exec(ctx, func() error {
		return e.sched.AddVehicle(agent.New(id, battery.New(e.battery), at))
	})
}

// RemoveVehicle takes a vehicle out of the fleet.
func (e *Engine) RemoveVehicle(ctx context.Context, id string) error {
	return e.Exec(ctx, func() error { return e.sched.RemoveVehicle(id) })
}

// SetStrategy changes the order selection strategy.
func (e *Engine) SetStrategy(ctx context.Context, s order.Strategy) error {
	return e.Exec(ctx, func() error {
		e.sched.SetStrategy(s)
		return nil
	})
}

// SetBalancedWeights changes the BALANCED weights.
func (e *Engine) SetBalancedWeights(ctx context.Context, w order.BalancedWeights) error {
	return e.Exec(ctx, func() error {
		e.sched.SetBalancedWeights(w)
		return nil
	})
}

// SetGenerationRate changes the mean arrival rate in orders per minute.
func (e *Engine) SetGenerationRate(ctx context.Context, perMinute float64) error {
	return e.Exec(ctx, func() error { return e.gen.SetRate(perMinute, e.sched.Now()) })
}

// StartGenerator arms stochastic arrivals from the current simulated time.
func (e *Engine) StartGenerator(ctx context.Context) error {
	return e.Exec(ctx, func() error {
		e.gen.Start(e.sched.Now())
		return nil
	})
}

// StopGenerator disarms stochastic arrivals.
func (e *Engine) StopGenerator(ctx context.Context) error {
	return e.Exec(ctx, func() error {
		e.gen.Stop()
		return nil
	})
}

// SetStationOperational toggles a charging station.
func (e *Engine) SetStationOperational(ctx context.Context, id string, up bool) error {
	return e.Exec(ctx, func() error { return e.sched.SetStationOperational(id, up) })
}
