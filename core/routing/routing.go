// Package routing defines the routing and map collaborators consumed by the
// dispatch core. The core never computes geometry itself; it asks an
// Estimator for distance and travel time and advances Legs to learn when a
// node has been reached.
package routing

import (
	"time"

	"github.com/kilianp07/agv/core/model"
)

// Estimate is the travel distance and duration between two locations.
type Estimate struct {
	Distance float64
	Duration time.Duration
}

// Estimator returns travel estimates between locations.
type Estimator interface {
	Estimate(from, to model.Location) Estimate
}

// Leg is a single movement between two nodes. It reports arrival once the
// elapsed travel time reaches the estimated duration.
type Leg struct {
	From     model.Location
	To       model.Location
	Distance float64
	Duration time.Duration
	elapsed  time.Duration
}

// Plan builds a leg using the estimator.
func Plan(r Estimator, from, to model.Location) *Leg {
	e := r.Estimate(from, to)
	return &Leg{From: from, To: to, Distance: e.Distance, Duration: e.Duration}
}

// Advance moves along the leg by dt and returns the distance covered and
// whether the destination has been reached.
func (l *Leg) Advance(dt time.Duration) (float64, bool) {
	if l.Arrived() {
		return 0, true
	}
	before := l.progress()
	l.elapsed += dt
	if l.elapsed > l.Duration {
		l.elapsed = l.Duration
	}
	return (l.progress() - before) * l.Distance, l.Arrived()
}

// Arrived reports whether the destination has been reached.
func (l *Leg) Arrived() bool { return l.elapsed >= l.Duration }

// Remaining returns the travel time left on the leg.
func (l *Leg) Remaining() time.Duration { return l.Duration - l.elapsed }

// Position interpolates the current point on the leg.
func (l *Leg) Position() model.Location {
	return l.From.Lerp(l.To, l.progress())
}

func (l *Leg) progress() float64 {
	if l.Duration <= 0 {
		return 1
	}
	return float64(l.elapsed) / float64(l.Duration)
}
