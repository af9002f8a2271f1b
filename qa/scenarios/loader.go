package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/agv/core/order"
	"github.com/kilianp07/agv/core/sim"
)

// OrderDef is a manual order submitted before the given tick runs.
type OrderDef struct {
	AtTick       int      `yaml:"at_tick"`
	Pickup       string   `yaml:"pickup"`
	Dropoff      string   `yaml:"dropoff"`
	Priority     string   `yaml:"priority"`
	SlackSeconds *float64 `yaml:"slack_seconds,omitempty"`
}

func (o OrderDef) ToRequest() sim.OrderRequest {
	req := sim.OrderRequest{Pickup: o.Pickup, Dropoff: o.Dropoff, Priority: o.Priority}
	if o.SlackSeconds != nil {
		d := time.Duration(*o.SlackSeconds * float64(time.Second))
		req.Slack = &d
	}
	return req
}

// Expected lists the checks run after the last tick. Nil bounds are not
// checked.
type Expected struct {
	MinCompleted          int    `yaml:"min_completed"`
	Completed             *int   `yaml:"completed,omitempty"`
	Expired               *int   `yaml:"expired,omitempty"`
	MaxExpired            *int   `yaml:"max_expired,omitempty"`
	FirstAssignedPriority string `yaml:"first_assigned_priority,omitempty"`
	MaxPending            *int   `yaml:"max_pending,omitempty"`
}

type Scenario struct {
	Name          string     `yaml:"name"`
	Description   string     `yaml:"description,omitempty"`
	Seed          int64      `yaml:"seed"`
	Ticks         int        `yaml:"ticks"`
	TickMS        int        `yaml:"tick_ms"`
	Speed         float64    `yaml:"speed"`
	Vehicles      int        `yaml:"vehicles"`
	InitialCharge float64    `yaml:"initial_charge,omitempty"`
	Strategy      string     `yaml:"strategy,omitempty"`
	RatePerMinute float64    `yaml:"rate_per_minute,omitempty"`
	StationsDown  []string   `yaml:"stations_down,omitempty"`
	Orders        []OrderDef `yaml:"orders"`
	Expected      Expected   `yaml:"expected"`
}

// Options returns the simulation settings of the scenario.
func (s Scenario) Options() sim.Options {
	opts := sim.Options{
		Sim: sim.Config{TickMS: s.TickMS, Speed: s.Speed, Vehicles: s.Vehicles, InitialCharge: s.InitialCharge},
		Generator: order.GeneratorConfig{
			Enabled:       s.RatePerMinute > 0,
			RatePerMinute: s.RatePerMinute,
			Seed:          s.Seed,
		},
	}
	opts.Dispatch.Strategy = s.Strategy
	return opts
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
