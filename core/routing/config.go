package routing

import "fmt"

// LocationConfig declares one map node.
type LocationConfig struct {
	ID   string  `json:"id"`
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Config describes the facility map and how travel is estimated.
type Config struct {
	Metric    string           `json:"metric"`
	Speed     float64          `json:"speed"`
	Locations []LocationConfig `json:"locations"`
	Pairs     []Pair           `json:"pairs"`
}

// SetDefaults provides a small demo floor when no locations are configured.
func (c *Config) SetDefaults() {
	if c.Metric == "" {
		c.Metric = "euclidean"
	}
	if c.Speed == 0 {
		c.Speed = 1.5
	}
	if len(c.Locations) == 0 {
		c.Locations = []LocationConfig{
			{ID: "depot", Kind: "depot", X: 0, Y: 0},
			{ID: "P1", Kind: "pickup", X: 10, Y: 0},
			{ID: "P2", Kind: "pickup", X: 10, Y: 20},
			{ID: "P3", Kind: "pickup", X: 10, Y: 40},
			{ID: "D1", Kind: "dropoff", X: 60, Y: 0},
			{ID: "D2", Kind: "dropoff", X: 60, Y: 20},
			{ID: "D3", Kind: "dropoff", X: 60, Y: 40},
			{ID: "C1", Kind: "charging", X: 30, Y: -10},
			{ID: "C2", Kind: "charging", X: 30, Y: 50},
		}
	}
}

// Validate checks the metric, the speed and that the map can feed orders.
func (c Config) Validate() error {
	if _, err := ParseMetric(c.Metric); err != nil {
		return err
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed must be positive")
	}
	p, err := NewPools(c.Locations)
	if err != nil {
		return err
	}
	if len(p.pickup) == 0 || len(p.dropoff) == 0 {
		return fmt.Errorf("map needs at least one pickup and one dropoff location")
	}
	for _, pr := range c.Pairs {
		if _, ok := p.Lookup(pr.From); !ok {
			return fmt.Errorf("pair references unknown location %s", pr.From)
		}
		if _, ok := p.Lookup(pr.To); !ok {
			return fmt.Errorf("pair references unknown location %s", pr.To)
		}
	}
	return nil
}

// Build returns the estimator described by the configuration.
func (c Config) Build() (Estimator, error) {
	m, err := ParseMetric(c.Metric)
	if err != nil {
		return nil, err
	}
	grid := NewGridRouter(m, c.Speed)
	if len(c.Pairs) == 0 {
		return grid, nil
	}
	return NewTableRouter(c.Pairs, grid), nil
}
