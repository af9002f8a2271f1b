package dispatch

import (
	"math"

	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/routing"
)

// taskMinutes estimates the travel time of an order for a vehicle: to the
// pickup node, then to the dropoff node.
func taskMinutes(est routing.Estimator, v *agent.Vehicle, o *model.Order) float64 {
	toPickup := est.Estimate(v.Position, o.Pickup)
	job := est.Estimate(o.Pickup, o.Dropoff)
	return (toPickup.Duration + job.Duration).Minutes()
}

// Feasible reports whether the vehicle can run the whole order on its
// current charge. The carrying profile is applied to both legs.
func Feasible(est routing.Estimator, v *agent.Vehicle, o *model.Order) bool {
	return v.Battery.CanCompleteTask(taskMinutes(est, v, o), true, true)
}

// Score rates a vehicle for an order; higher is better. Infeasible vehicles
// score -Inf.
func Score(w ScoreWeights, est routing.Estimator, v *agent.Vehicle, o *model.Order) float64 {
	if !Feasible(est, v, o) {
		return math.Inf(-1)
	}
	d := est.Estimate(v.Position, o.Pickup).Distance
	score := w.Distance * math.Max(0, 1-d/w.DistanceRef)
	score += w.Battery * v.Battery.Fraction()
	if v.Carrying {
		score -= w.Cargo
	}
	n := float64(v.OrdersCompleted)
	score += w.Experience * n / (n + 10)
	if v.Battery.NeedsCharging() {
		score -= w.ChargePenalty
	}
	return score
}
