package routing

import (
	"fmt"
	"time"

	"github.com/kilianp07/agv/core/model"
)

// Metric selects how GridRouter measures distance.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricManhattan
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricManhattan:
		return "manhattan"
	default:
		return "unknown"
	}
}

// ParseMetric converts a metric name into a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "euclidean":
		return MetricEuclidean, nil
	case "manhattan":
		return MetricManhattan, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// GridRouter estimates travel on an open floor at constant speed.
type GridRouter struct {
	Metric Metric
	Speed  float64 // distance units per second
}

// NewGridRouter returns a router moving at speed units per second.
func NewGridRouter(metric Metric, speed float64) GridRouter {
	if speed <= 0 {
		speed = 1
	}
	return GridRouter{Metric: metric, Speed: speed}
}

func (g GridRouter) Estimate(from, to model.Location) Estimate {
	var d float64
	if g.Metric == MetricManhattan {
		d = from.Manhattan(to)
	} else {
		d = from.Euclidean(to)
	}
	speed := g.Speed
	if speed <= 0 {
		speed = 1
	}
	return Estimate{Distance: d, Duration: time.Duration(d / speed * float64(time.Second))}
}
