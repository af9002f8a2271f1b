package sim

import (
	"fmt"

	"github.com/kilianp07/agv/core/battery"
	"github.com/kilianp07/agv/core/charging"
	"github.com/kilianp07/agv/core/dispatch"
	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/logger"
	"github.com/kilianp07/agv/core/order"
	"github.com/kilianp07/agv/core/routing"
	"github.com/kilianp07/agv/internal/eventbus"
)

// Options gathers the configuration of every simulation component.
type Options struct {
	Sim       Config
	Battery   battery.Config
	Routing   routing.Config
	Charging  charging.Config
	Generator order.GeneratorConfig
	Dispatch  dispatch.Config
}

// Build wires the map, the charging registry, the queue, the scheduler, the
// generator and the initial fleet into an engine. The generator is started
// when enabled.
func Build(opts Options, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Nop{}
	}
	opts.Routing.SetDefaults()
	if err := opts.Routing.Validate(); err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}
	pools, err := routing.NewPools(opts.Routing.Locations)
	if err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}
	est, err := opts.Routing.Build()
	if err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}
	opts.Battery.SetDefaults()
	if err := opts.Battery.Validate(); err != nil {
		return nil, fmt.Errorf("battery: %w", err)
	}
	opts.Charging.SetDefaults(pools)
	if err := opts.Charging.Validate(); err != nil {
		return nil, fmt.Errorf("charging: %w", err)
	}
	reg, err := opts.Charging.Build(pools)
	if err != nil {
		return nil, fmt.Errorf("charging: %w", err)
	}
	gen, err := order.NewGenerator(opts.Generator, pools, log)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	out := eventbus.NewOutbox[events.Event]()
	q := order.NewQueue(est, opts.Dispatch.Balanced)
	sched, err := dispatch.NewScheduler(opts.Dispatch, q, reg, est, out, log)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	opts.Sim.SetDefaults()
	fleet, err := Fleet(opts.Sim, opts.Battery, pools)
	if err != nil {
		return nil, err
	}
	for _, v := range fleet {
		if err := sched.AddVehicle(v); err != nil {
			return nil, err
		}
	}
	e, err := New(opts.Sim, sched, gen, out, log)
	if err != nil {
		return nil, err
	}
	e.battery = opts.Battery
	if opts.Generator.Enabled {
		gen.Start(e.Now())
		e.mu.Lock()
		e.publish()
		e.mu.Unlock()
	}
	return e, nil
}
