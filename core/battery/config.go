package battery

import (
	"fmt"
	"strings"
)

// Config holds battery capacity, rates and thresholds. Rates are in charge
// units per second, thresholds in percent of capacity.
type Config struct {
	Preset              string  `json:"preset"`
	Capacity            float64 `json:"capacity"`
	MovingRate          float64 `json:"moving_rate"`
	IdleRate            float64 `json:"idle_rate"`
	CargoRate           float64 `json:"cargo_rate"`
	ChargeRate          float64 `json:"charge_rate"`
	MinToMove           float64 `json:"min_to_move"`
	CriticalPct         float64 `json:"critical_pct"`
	LowPct              float64 `json:"low_pct"`
	MediumPct           float64 `json:"medium_pct"`
	HighPct             float64 `json:"high_pct"`
	SafetyMarginMinutes float64 `json:"safety_margin_minutes"`

	// Explicit lists the keys set by the configuration source. SetDefaults
	// leaves them alone even when zero.
	Explicit []string `json:"-" yaml:"-"`
}

// DefaultConfig returns the balanced profile.
func DefaultConfig() Config {
	return Config{
		Preset:      "balanced",
		Capacity:    100,
		MovingRate:  0.8,
		IdleRate:    0.02,
		CargoRate:   1.2,
		ChargeRate:  8.0,
		CriticalPct: 15,
		LowPct:      30,
		MediumPct:   60,
		HighPct:     90,
	}
}

// Preset returns a named profile: conservative, balanced or aggressive.
func Preset(name string) (Config, error) {
	c := DefaultConfig()
	switch strings.ToLower(name) {
	case "", "balanced":
	case "conservative":
		c.LowPct, c.CriticalPct, c.ChargeRate = 40, 20, 6
	case "aggressive":
		c.LowPct, c.CriticalPct, c.ChargeRate = 20, 10, 12
	default:
		return Config{}, fmt.Errorf("unknown battery preset %q", name)
	}
	c.Preset = strings.ToLower(name)
	if c.Preset == "" {
		c.Preset = "balanced"
	}
	return c, nil
}

// SetDefaults fills zero fields from the selected preset, except the keys
// listed in Explicit.
func (c *Config) SetDefaults() {
	p, err := Preset(c.Preset)
	if err != nil {
		return
	}
	c.Preset = p.Preset
	explicit := make(map[string]bool, len(c.Explicit))
	for _, k := range c.Explicit {
		explicit[k] = true
	}
	fill := func(key string, dst *float64, v float64) {
		if *dst == 0 && !explicit[key] {
			*dst = v
		}
	}
	fill("capacity", &c.Capacity, p.Capacity)
	fill("moving_rate", &c.MovingRate, p.MovingRate)
	fill("idle_rate", &c.IdleRate, p.IdleRate)
	fill("cargo_rate", &c.CargoRate, p.CargoRate)
	fill("charge_rate", &c.ChargeRate, p.ChargeRate)
	fill("critical_pct", &c.CriticalPct, p.CriticalPct)
	fill("low_pct", &c.LowPct, p.LowPct)
	fill("medium_pct", &c.MediumPct, p.MediumPct)
	fill("high_pct", &c.HighPct, p.HighPct)
}

// Validate checks rates and the ordering of thresholds.
func (c Config) Validate() error {
	if _, err := Preset(c.Preset); err != nil {
		return err
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("battery capacity must be positive")
	}
	if c.MovingRate < 0 || c.IdleRate < 0 || c.CargoRate < 0 || c.ChargeRate < 0 {
		return fmt.Errorf("battery rates must not be negative")
	}
	if c.MinToMove < 0 || c.MinToMove >= c.Capacity {
		return fmt.Errorf("min_to_move must be in [0, capacity)")
	}
	if !(c.CriticalPct <= c.LowPct && c.LowPct <= c.MediumPct && c.MediumPct <= c.HighPct && c.HighPct <= 100) {
		return fmt.Errorf("thresholds must satisfy critical <= low <= medium <= high <= 100")
	}
	if c.SafetyMarginMinutes < 0 {
		return fmt.Errorf("safety_margin_minutes must not be negative")
	}
	return nil
}
