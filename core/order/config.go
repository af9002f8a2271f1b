package order

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/kilianp07/agv/core/model"
)

// DefaultRatePerMinute is the arrival rate used when none is configured.
const DefaultRatePerMinute = 2.0

// GeneratorConfig configures the stochastic order source. Priority weights
// and slack are keyed by priority name.
type GeneratorConfig struct {
	Enabled            bool               `json:"enabled"`
	RatePerMinute      float64            `json:"rate_per_minute"`
	Seed               int64              `json:"seed"`
	IDPrefix           string             `json:"id_prefix"`
	TimeoutBaseSeconds float64            `json:"timeout_base_seconds"`
	PriorityWeights    map[string]float64 `json:"priority_weights"`
	SlackSeconds       map[string]float64 `json:"slack_seconds"`
}

var (
	defaultWeights = map[model.Priority]float64{
		model.PriorityLow:       10,
		model.PriorityNormal:    60,
		model.PriorityHigh:      20,
		model.PriorityUrgent:    8,
		model.PriorityEmergency: 2,
	}
	slackFactor = map[model.Priority]float64{
		model.PriorityLow:       2,
		model.PriorityNormal:    1,
		model.PriorityHigh:      0.6,
		model.PriorityUrgent:    0.4,
		model.PriorityEmergency: 0.2,
	}
)

// SetDefaults fills missing keys only, so an explicit zero weight or a
// non-positive slack survives. The arrival rate is left alone because zero
// is a meaningful rate.
func (c *GeneratorConfig) SetDefaults() {
	if c.IDPrefix == "" {
		c.IDPrefix = "ORD"
	}
	if c.TimeoutBaseSeconds <= 0 {
		c.TimeoutBaseSeconds = 300
	}
	if c.PriorityWeights == nil {
		c.PriorityWeights = map[string]float64{}
	}
	if c.SlackSeconds == nil {
		c.SlackSeconds = map[string]float64{}
	}
	for _, p := range model.Priorities {
		if _, ok := c.PriorityWeights[p.String()]; !ok {
			c.PriorityWeights[p.String()] = defaultWeights[p]
		}
		if _, ok := c.SlackSeconds[p.String()]; !ok {
			c.SlackSeconds[p.String()] = c.TimeoutBaseSeconds * slackFactor[p]
		}
	}
}

// Validate checks the rate and the priority tables.
func (c GeneratorConfig) Validate() error {
	var err error
	if c.RatePerMinute < 0 {
		err = multierr.Append(err, fmt.Errorf("rate_per_minute must not be negative"))
	}
	sum := 0.0
	for name, w := range c.PriorityWeights {
		if _, perr := model.ParsePriority(name); perr != nil {
			err = multierr.Append(err, perr)
		}
		if w < 0 {
			err = multierr.Append(err, fmt.Errorf("priority weight %s must not be negative", name))
		}
		sum += w
	}
	if sum <= 0 {
		err = multierr.Append(err, fmt.Errorf("priority weights must not all be zero"))
	}
	for name := range c.SlackSeconds {
		if _, perr := model.ParsePriority(name); perr != nil {
			err = multierr.Append(err, perr)
		}
	}
	return err
}

// weights returns the priority weights ordered like model.Priorities.
func (c GeneratorConfig) weights() []float64 {
	w := make([]float64, len(model.Priorities))
	for i, p := range model.Priorities {
		w[i] = c.PriorityWeights[p.String()]
	}
	return w
}
