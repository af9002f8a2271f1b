package order

import (
	"fmt"
	"strings"
)

// Strategy selects which pending order is served next.
type Strategy int

const (
	StrategyFIFO Strategy = iota
	StrategyPriority
	StrategyShortestJob
	StrategyNearestFirst
	StrategyDeadlineFirst
	StrategyBalanced
)

// Strategies lists every strategy.
var Strategies = []Strategy{
	StrategyFIFO, StrategyPriority, StrategyShortestJob,
	StrategyNearestFirst, StrategyDeadlineFirst, StrategyBalanced,
}

func (s Strategy) String() string {
	switch s {
	case StrategyFIFO:
		return "FIFO"
	case StrategyPriority:
		return "PRIORITY"
	case StrategyShortestJob:
		return "SHORTEST_JOB"
	case StrategyNearestFirst:
		return "NEAREST_FIRST"
	case StrategyDeadlineFirst:
		return "DEADLINE_FIRST"
	case StrategyBalanced:
		return "BALANCED"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	for _, st := range Strategies {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// BalancedWeights weight the normalised terms of the BALANCED strategy.
type BalancedWeights struct {
	Priority float64 `json:"priority"`
	Waiting  float64 `json:"waiting"`
	Urgency  float64 `json:"urgency"`
}

// DefaultBalancedWeights favours priority, then waiting time, then the
// deadline.
func DefaultBalancedWeights() BalancedWeights {
	return BalancedWeights{Priority: 0.5, Waiting: 0.3, Urgency: 0.2}
}

// IsZero reports whether every weight is zero.
func (w BalancedWeights) IsZero() bool {
	return w.Priority == 0 && w.Waiting == 0 && w.Urgency == 0
}
