package routing

import (
	"time"

	"github.com/kilianp07/agv/core/model"
)

// Pair is a fixed estimate between two named locations.
type Pair struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
	Seconds  float64 `json:"seconds"`
}

// TableRouter answers from a table of known pairs keyed "from|to" and
// defers to a fallback for anything else, including anonymous mid-leg
// positions.
type TableRouter struct {
	pairs    map[string]Estimate
	fallback Estimator
}

// NewTableRouter builds a router from pairs. Pairs are not mirrored; list
// both directions when travel is symmetric.
func NewTableRouter(pairs []Pair, fallback Estimator) *TableRouter {
	m := make(map[string]Estimate, len(pairs))
	for _, p := range pairs {
		m[p.From+"|"+p.To] = Estimate{Distance: p.Distance, Duration: time.Duration(p.Seconds * float64(time.Second))}
	}
	if fallback == nil {
		fallback = NewGridRouter(MetricEuclidean, 1)
	}
	return &TableRouter{pairs: m, fallback: fallback}
}

func (t *TableRouter) Estimate(from, to model.Location) Estimate {
	if from.ID != "" && to.ID != "" {
		if from.ID == to.ID {
			return Estimate{}
		}
		if e, ok := t.pairs[from.ID+"|"+to.ID]; ok {
			return e
		}
	}
	return t.fallback.Estimate(from, to)
}
