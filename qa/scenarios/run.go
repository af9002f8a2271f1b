package scenarios

import (
	"context"
	"sync"
	"testing"

	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/sim"
	"github.com/kilianp07/agv/core/status"
)

type assignments struct {
	mu    sync.Mutex
	order []string
}

func (a *assignments) Observe(_ status.Snapshot, evs []events.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ev := range evs {
		if as, ok := ev.(events.OrderAssigned); ok {
			a.order = append(a.order, as.OrderID)
		}
	}
}

func RunScenario(t *testing.T, sc *Scenario) {
	e, err := sim.Build(sc.Options(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rec := &assignments{}
	e.AddObserver(rec)

	ctx := context.Background()
	for _, id := range sc.StationsDown {
		if err := e.SetStationOperational(ctx, id, false); err != nil {
			t.Fatalf("station %s: %v", id, err)
		}
	}

	due := ordersByTick(sc.Orders)
	priorities := map[string]string{}
	for tick := 0; tick < sc.Ticks; tick++ {
		for _, def := range due[tick] {
			r, err := e.SubmitOrder(ctx, def.ToRequest())
			if err != nil {
				t.Fatalf("submit order at tick %d: %v", tick, err)
			}
			priorities[r.ID] = r.Priority
		}
		if err := e.Step(1); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	stats := e.Snapshot().Stats
	exp := sc.Expected
	if stats.TotalCompleted < exp.MinCompleted {
		t.Errorf("scenario %s expected at least %d completed, got %d", sc.Name, exp.MinCompleted, stats.TotalCompleted)
	}
	if exp.Completed != nil && stats.TotalCompleted != *exp.Completed {
		t.Errorf("scenario %s expected %d completed, got %d", sc.Name, *exp.Completed, stats.TotalCompleted)
	}
	if exp.Expired != nil && stats.TotalExpired != *exp.Expired {
		t.Errorf("scenario %s expected %d expired, got %d", sc.Name, *exp.Expired, stats.TotalExpired)
	}
	if exp.MaxExpired != nil && stats.TotalExpired > *exp.MaxExpired {
		t.Errorf("scenario %s expected at most %d expired, got %d", sc.Name, *exp.MaxExpired, stats.TotalExpired)
	}
	if exp.MaxPending != nil && stats.Queue.Pending > *exp.MaxPending {
		t.Errorf("scenario %s expected at most %d pending, got %d", sc.Name, *exp.MaxPending, stats.Queue.Pending)
	}
	if exp.FirstAssignedPriority != "" {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if len(rec.order) == 0 {
			t.Fatalf("scenario %s: no assignment", sc.Name)
		}
		if got := priorities[rec.order[0]]; got != exp.FirstAssignedPriority {
			t.Errorf("scenario %s expected first assignment %s, got %s", sc.Name, exp.FirstAssignedPriority, got)
		}
	}
}

func ordersByTick(defs []OrderDef) map[int][]OrderDef {
	out := map[int][]OrderDef{}
	for _, d := range defs {
		out[d.AtTick] = append(out[d.AtTick], d)
	}
	return out
}
