package dispatch

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/kilianp07/agv/core/order"
)

// ScoreWeights weight the terms of the vehicle score. Distance is measured
// against DistanceRef: a vehicle DistanceRef away or further gets no
// distance credit.
type ScoreWeights struct {
	Distance      float64 `json:"distance"`
	Battery       float64 `json:"battery"`
	Cargo         float64 `json:"cargo"`
	Experience    float64 `json:"experience"`
	ChargePenalty float64 `json:"charge_penalty"`
	DistanceRef   float64 `json:"distance_ref"`
}

// DefaultScoreWeights favours close vehicles, then charged ones.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Distance:      1.0,
		Battery:       0.4,
		Cargo:         0.5,
		Experience:    0.1,
		ChargePenalty: 0.3,
		DistanceRef:   1000,
	}
}

func (w ScoreWeights) isZero() bool {
	return w.Distance == 0 && w.Battery == 0 && w.Cargo == 0 && w.Experience == 0 && w.ChargePenalty == 0
}

// Config defines scheduler settings.
type Config struct {
	Strategy                string                `json:"strategy"`
	AssignmentIntervalTicks int                   `json:"assignment_interval_ticks"`
	ExpirySweepTicks        int                   `json:"expiry_sweep_ticks"`
	StatsWindow             int                   `json:"stats_window"`
	HistorySize             int                   `json:"history_size"`
	Balanced                order.BalancedWeights `json:"balanced"`
	Score                   ScoreWeights          `json:"score"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = order.StrategyBalanced.String()
	}
	if c.AssignmentIntervalTicks <= 0 {
		c.AssignmentIntervalTicks = 1
	}
	if c.ExpirySweepTicks <= 0 {
		c.ExpirySweepTicks = 10
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = 100
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	if c.Balanced.IsZero() {
		c.Balanced = order.DefaultBalancedWeights()
	}
	if c.Score.isZero() {
		ref := c.Score.DistanceRef
		c.Score = DefaultScoreWeights()
		if ref > 0 {
			c.Score.DistanceRef = ref
		}
	}
	if c.Score.DistanceRef <= 0 {
		c.Score.DistanceRef = DefaultScoreWeights().DistanceRef
	}
}

// Validate checks the strategy name and the weights.
func (c Config) Validate() error {
	var err error
	if _, perr := order.ParseStrategy(c.Strategy); perr != nil {
		err = multierr.Append(err, perr)
	}
	b := c.Balanced
	if b.Priority < 0 || b.Waiting < 0 || b.Urgency < 0 {
		err = multierr.Append(err, fmt.Errorf("balanced weights must not be negative"))
	}
	s := c.Score
	if s.Distance < 0 || s.Battery < 0 || s.Cargo < 0 || s.Experience < 0 || s.ChargePenalty < 0 {
		err = multierr.Append(err, fmt.Errorf("score weights must not be negative"))
	}
	return err
}
