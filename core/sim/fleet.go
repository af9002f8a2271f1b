package sim

import (
	"fmt"

	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/battery"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/routing"
)

// Fleet builds the initial vehicles with ids PREFIX-01..PREFIX-NN. They are
// spread round-robin over the configured start locations, or over the depot
// and then pickup nodes of the map.
func Fleet(cfg Config, bc battery.Config, pools *routing.Pools) ([]*agent.Vehicle, error) {
	starts, err := startLocations(cfg, pools)
	if err != nil {
		return nil, err
	}
	out := make([]*agent.Vehicle, 0, cfg.Vehicles)
	for i := 0; i < cfg.Vehicles; i++ {
		id := fmt.Sprintf("%s-%02d", cfg.VehiclePrefix, i+1)
		b := battery.NewWithCharge(bc, bc.Capacity*cfg.InitialCharge/100)
		out = append(out, agent.New(id, b, starts[i%len(starts)]))
	}
	return out, nil
}

func startLocations(cfg Config, pools *routing.Pools) ([]model.Location, error) {
	if len(cfg.StartLocations) > 0 {
		out := make([]model.Location, 0, len(cfg.StartLocations))
		for _, id := range cfg.StartLocations {
			l, ok := pools.Lookup(id)
			if !ok {
				return nil, fmt.Errorf("unknown start location %s", id)
			}
			out = append(out, l)
		}
		return out, nil
	}
	if d := pools.DepotLocations(); len(d) > 0 {
		return d, nil
	}
	if p := pools.PickupLocations(); len(p) > 0 {
		return p, nil
	}
	return []model.Location{{ID: "origin"}}, nil
}
