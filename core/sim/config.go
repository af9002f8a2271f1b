package sim

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config drives the simulation clock and the initial fleet.
type Config struct {
	TickMS         int      `json:"tick_ms"`
	Speed          float64  `json:"speed"`
	Start          string   `json:"start"`
	Vehicles       int      `json:"vehicles"`
	VehiclePrefix  string   `json:"vehicle_prefix"`
	StartLocations []string `json:"start_locations"`
	InitialCharge  float64  `json:"initial_charge"`
	InboxSize      int      `json:"inbox_size"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TickMS <= 0 {
		c.TickMS = 100
	}
	if c.Speed == 0 {
		c.Speed = 1
	}
	if c.Start == "" {
		c.Start = "2024-01-01T08:00:00Z"
	}
	if c.VehiclePrefix == "" {
		c.VehiclePrefix = "AGV"
	}
	if c.InitialCharge == 0 {
		c.InitialCharge = 100
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 64
	}
}

// Validate checks the clock settings.
func (c Config) Validate() error {
	var err error
	if c.Speed <= 0 {
		err = multierr.Append(err, fmt.Errorf("speed must be positive"))
	}
	if c.Vehicles < 0 {
		err = multierr.Append(err, fmt.Errorf("vehicles must not be negative"))
	}
	if c.InitialCharge < 0 || c.InitialCharge > 100 {
		err = multierr.Append(err, fmt.Errorf("initial_charge must be a percentage"))
	}
	if _, perr := time.Parse(time.RFC3339, c.Start); perr != nil {
		err = multierr.Append(err, fmt.Errorf("start: %w", perr))
	}
	return err
}

// TickInterval is the wall-clock period between ticks.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// Epoch is the simulated time of tick zero.
func (c Config) Epoch() time.Time {
	t, err := time.Parse(time.RFC3339, c.Start)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
