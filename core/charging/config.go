package charging

import (
	"fmt"

	"github.com/kilianp07/agv/core/routing"
)

// StationConfig declares a charger placed on a map location.
type StationConfig struct {
	ID         string  `json:"id"`
	Location   string  `json:"location"`
	MaxSlots   int     `json:"max_slots"`
	Efficiency float64 `json:"efficiency"`
}

// Config lists the chargers of the facility.
type Config struct {
	DefaultSlots int             `json:"default_slots"`
	Stations     []StationConfig `json:"stations"`
}

// SetDefaults fills slot counts and, when no stations are listed, places
// one station on every charging location of the map.
func (c *Config) SetDefaults(m routing.Map) {
	if c.DefaultSlots <= 0 {
		c.DefaultSlots = 2
	}
	if len(c.Stations) == 0 && m != nil {
		for _, l := range m.ChargingLocations() {
			c.Stations = append(c.Stations, StationConfig{ID: "CS-" + l.ID, Location: l.ID})
		}
	}
	for i := range c.Stations {
		if c.Stations[i].MaxSlots <= 0 {
			c.Stations[i].MaxSlots = c.DefaultSlots
		}
		if c.Stations[i].Efficiency <= 0 {
			c.Stations[i].Efficiency = 1
		}
	}
}

// Validate checks station ids and efficiencies.
func (c Config) Validate() error {
	seen := map[string]bool{}
	for _, s := range c.Stations {
		if s.ID == "" {
			return fmt.Errorf("charging station id is required")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate charging station %s", s.ID)
		}
		seen[s.ID] = true
		if s.Efficiency > 1 {
			return fmt.Errorf("station %s: efficiency must be <= 1", s.ID)
		}
	}
	return nil
}

// Build creates a registry with every configured station resolved on the
// map.
func (c Config) Build(m routing.Map) (*Registry, error) {
	r := NewRegistry()
	for _, s := range c.Stations {
		loc, ok := m.Lookup(s.Location)
		if !ok {
			return nil, fmt.Errorf("station %s: unknown location %s", s.ID, s.Location)
		}
		if err := r.AddStation(s.ID, loc, s.MaxSlots, s.Efficiency); err != nil {
			return nil, err
		}
	}
	return r, nil
}
