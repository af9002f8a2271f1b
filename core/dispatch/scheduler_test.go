package dispatch

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/battery"
	"github.com/kilianp07/agv/core/charging"
	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/order"
	"github.com/kilianp07/agv/core/routing"
	"github.com/kilianp07/agv/internal/eventbus"
)

var (
	epoch  = time.Unix(0, 0).UTC()
	router = routing.NewGridRouter(routing.MetricEuclidean, 1)
	depot  = model.Location{ID: "depot"}
	pickup = model.Location{ID: "P", X: 10}
	drop   = model.Location{ID: "D", X: 20}
)

type fixture struct {
	t   *testing.T
	s   *Scheduler
	out *eventbus.Outbox[events.Event]
	now time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := charging.NewRegistry()
	require.NoError(t, reg.AddStation("CS-1", depot, 1, 1))
	out := eventbus.NewOutbox[events.Event]()
	s, err := NewScheduler(cfg, order.NewQueue(router, order.BalancedWeights{}), reg, router, out, nil)
	require.NoError(t, err)
	return &fixture{t: t, s: s, out: out, now: epoch}
}

func batteryConfig() battery.Config {
	cfg := battery.DefaultConfig()
	cfg.MovingRate = 1
	cfg.CargoRate = 0
	cfg.IdleRate = 0
	return cfg
}

func (f *fixture) vehicle(id string, charge float64, at model.Location) *agent.Vehicle {
	f.t.Helper()
	v := agent.New(id, battery.NewWithCharge(batteryConfig(), charge), at)
	require.NoError(f.t, f.s.AddVehicle(v))
	return v
}

func (f *fixture) order(id string, prio model.Priority, from, to model.Location, slack time.Duration) *model.Order {
	f.t.Helper()
	o := model.NewOrder(id, from, to, prio, f.now, slack)
	require.NoError(f.t, f.s.AddOrder(o, false))
	return o
}

func (f *fixture) run(n int) {
	for i := 0; i < n; i++ {
		f.now = f.now.Add(time.Second)
		f.s.Begin(f.now)
		f.s.Tick(time.Second)
	}
}

func (f *fixture) events() []events.Event { return f.out.Drain() }

func names(evs []events.Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Name())
	}
	return out
}

func assigned(evs []events.Event) []events.OrderAssigned {
	var out []events.OrderAssigned
	for _, e := range evs {
		if a, ok := e.(events.OrderAssigned); ok {
			out = append(out, a)
		}
	}
	return out
}

func TestOrderDeliveredEndToEnd(t *testing.T) {
	f := newFixture(t, Config{})
	v := f.vehicle("agv-1", 100, depot)
	f.order("ORD-1", model.PriorityNormal, pickup, drop, time.Hour)

	f.run(25)
	evs := f.events()
	assert.Subset(t, names(evs), []string{"order_generated", "order_assigned", "order_picked_up", "order_completed"})
	assert.Equal(t, 1, v.OrdersCompleted)
	assert.Equal(t, agent.StateIdle, v.State)
	assert.Empty(t, v.OrderID)

	st := f.s.Stats()
	assert.Equal(t, 1, st.TotalAssigned)
	assert.Equal(t, 1, st.TotalCompleted)
	assert.Equal(t, 1.0, st.SuccessRate)
	assert.Equal(t, 1.0, st.CompletionRate)
	assert.InDelta(t, 1.0, st.AvgWaitSeconds, 1e-9)
	assert.InDelta(t, 21.0, st.AvgCompletionSeconds, 1e-9)
	assert.Equal(t, 0, st.Queue.Pending)
	require.Len(t, f.s.History(), 1)
	assert.Equal(t, "completed", f.s.History()[0].Status)
}

func TestInfeasibleVehicleNeverAssigned(t *testing.T) {
	f := newFixture(t, Config{})
	cfg := batteryConfig()
	cfg.LowPct, cfg.CriticalPct = 1, 1
	v := agent.New("agv-1", battery.NewWithCharge(cfg, 5), depot)
	require.NoError(t, f.s.AddVehicle(v))
	f.order("ORD-1", model.PriorityNormal, depot, model.Location{ID: "D", X: 10}, time.Hour)

	f.run(5)
	evs := f.events()
	assert.Empty(t, assigned(evs))
	assert.Contains(t, names(evs), "assignment_failed")
	assert.Equal(t, agent.StateIdle, v.State)
	o, ok := f.s.Queue().Order("ORD-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusPending, o.Status)

	st := f.s.Stats()
	assert.Equal(t, 5, st.TotalFailed)
	assert.Equal(t, 0.0, st.SuccessRate)
}

func TestPriorityStrategyServesUrgentFirst(t *testing.T) {
	f := newFixture(t, Config{Strategy: "PRIORITY"})
	f.vehicle("agv-1", 100, depot)
	f.order("N", model.PriorityNormal, pickup, drop, time.Hour)
	f.order("U", model.PriorityUrgent, pickup, drop, time.Hour)

	f.run(1)
	a := assigned(f.events())
	require.Len(t, a, 1)
	assert.Equal(t, "U", a[0].OrderID)
}

func TestBestScoringVehicleWins(t *testing.T) {
	f := newFixture(t, Config{})
	f.vehicle("far", 100, model.Location{ID: "X", X: 500})
	f.vehicle("near", 100, model.Location{ID: "Y", X: 9})
	f.order("ORD-1", model.PriorityNormal, pickup, drop, time.Hour)

	f.run(1)
	a := assigned(f.events())
	require.Len(t, a, 1)
	assert.Equal(t, "near", a[0].VehicleID)
}

func TestOneOrderPerVehicle(t *testing.T) {
	f := newFixture(t, Config{})
	f.vehicle("agv-1", 100, depot)
	f.vehicle("agv-2", 100, depot)
	for _, id := range []string{"A", "B", "C"} {
		f.order(id, model.PriorityNormal, pickup, drop, time.Hour)
	}
	f.run(1)
	a := assigned(f.events())
	require.Len(t, a, 2)
	assert.NotEqual(t, a[0].VehicleID, a[1].VehicleID)
	assert.Equal(t, 1, f.s.Stats().Queue.Pending)
}

func TestExpiredOrderSweptBeforeAssignment(t *testing.T) {
	f := newFixture(t, Config{ExpirySweepTicks: 1})
	f.vehicle("agv-1", 100, depot)
	f.order("late", model.PriorityNormal, pickup, drop, 0)

	f.run(1)
	evs := f.events()
	assert.Empty(t, assigned(evs))
	assert.Contains(t, names(evs), "order_expired")
	assert.Equal(t, 1, f.s.Stats().TotalExpired)
	assert.Equal(t, 0, f.s.CleanExpiredOrders())
}

func TestExpiryDetachesAssignedVehicle(t *testing.T) {
	f := newFixture(t, Config{ExpirySweepTicks: 1})
	v := f.vehicle("agv-1", 100, depot)
	f.order("ORD-1", model.PriorityNormal, pickup, drop, 3*time.Second)

	f.run(1)
	require.Equal(t, "ORD-1", v.OrderID)
	f.run(3)
	assert.Empty(t, v.OrderID)
	assert.Equal(t, agent.StateIdle, v.State)
	assert.Equal(t, 1, f.s.Stats().TotalExpired)
}

func TestForceAssignOrder(t *testing.T) {
	f := newFixture(t, Config{AssignmentIntervalTicks: 1000})
	cfg := batteryConfig()
	cfg.LowPct, cfg.CriticalPct = 1, 1
	weak := agent.New("weak", battery.NewWithCharge(cfg, 5), depot)
	require.NoError(t, f.s.AddVehicle(weak))
	f.order("A", model.PriorityNormal, pickup, drop, time.Hour)
	f.order("B", model.PriorityNormal, pickup, drop, time.Hour)

	assert.False(t, f.s.ForceAssignOrder("A", "ghost"))
	assert.False(t, f.s.ForceAssignOrder("ghost", "weak"))
	assert.True(t, f.s.ForceAssignOrder("A", "weak"), "battery check is bypassed")
	assert.False(t, f.s.ForceAssignOrder("B", "weak"), "vehicle already busy")
	assert.False(t, f.s.ForceAssignOrder("A", "weak"), "order no longer pending")

	o, _ := f.s.Queue().Order("B")
	assert.Equal(t, model.StatusPending, o.Status)
	st := f.s.Stats()
	assert.Equal(t, 1, st.TotalAssigned)
	assert.Equal(t, 1, st.TotalForced)
}

func TestBlockedVehicleOrderReassigned(t *testing.T) {
	f := newFixture(t, Config{AssignmentIntervalTicks: 1000})
	cfg := batteryConfig()
	cfg.LowPct, cfg.CriticalPct = 1, 1
	weak := agent.New("weak", battery.NewWithCharge(cfg, 3), depot)
	require.NoError(t, f.s.AddVehicle(weak))
	f.order("A", model.PriorityNormal, pickup, drop, time.Hour)
	require.True(t, f.s.ForceAssignOrder("A", "weak"))

	f.run(4)
	require.Equal(t, agent.StateBlocked, weak.State)
	assert.Contains(t, names(f.events()), "vehicle_blocked")
	o, _ := f.s.Queue().Order("A")
	assert.Equal(t, model.StatusAssigned, o.Status, "blocked vehicle keeps its order")

	require.NoError(t, f.s.ReassignOrder("A"))
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Empty(t, weak.OrderID)
	assert.Equal(t, agent.StateBlocked, weak.State)

	f.vehicle("strong", 100, depot)
	require.True(t, f.s.ForceAssignOrder("A", "strong"))
	assert.Equal(t, 2, o.Assignments)

	require.NoError(t, f.s.RescueVehicle("weak", 50))
	assert.Equal(t, agent.StateIdle, weak.State)
	assert.Contains(t, names(f.events()), "vehicle_resumed")
}

func TestPickupAndBlockOnSameTick(t *testing.T) {
	f := newFixture(t, Config{AssignmentIntervalTicks: 1000})
	weak := f.vehicle("weak", 25, depot)
	f.order("A", model.PriorityNormal, pickup, model.Location{ID: "far", X: 40}, time.Hour)
	require.True(t, f.s.ForceAssignOrder("A", "weak"))

	f.run(12)
	require.Equal(t, agent.StateBlocked, weak.State)
	assert.Equal(t, agent.ReasonInsufficient, weak.BlockReason)
	assert.Equal(t, "P", weak.Position.ID)
	assert.Subset(t, names(f.events()), []string{"order_picked_up", "vehicle_blocked"})
	o, _ := f.s.Queue().Order("A")
	assert.Equal(t, model.StatusInProgress, o.Status)
}

func TestReassignRejectsNonAssigned(t *testing.T) {
	f := newFixture(t, Config{AssignmentIntervalTicks: 1000})
	f.order("A", model.PriorityNormal, pickup, drop, time.Hour)
	assert.ErrorIs(t, f.s.ReassignOrder("A"), model.ErrInvalidTransition)
	assert.ErrorIs(t, f.s.ReassignOrder("nope"), order.ErrUnknownOrder)
}

func TestCancelOrderFreesVehicle(t *testing.T) {
	f := newFixture(t, Config{})
	v := f.vehicle("agv-1", 100, depot)
	f.order("A", model.PriorityNormal, pickup, drop, time.Hour)
	f.run(1)
	require.Equal(t, "A", v.OrderID)

	require.NoError(t, f.s.CancelOrder("A", "operator"))
	assert.Empty(t, v.OrderID)
	assert.Equal(t, agent.StateIdle, v.State)
	assert.Equal(t, 1, f.s.Stats().TotalCancelled)
	assert.Error(t, f.s.CancelOrder("A", "again"))
}

func TestRemoveVehicle(t *testing.T) {
	f := newFixture(t, Config{})
	v := f.vehicle("agv-1", 100, depot)
	f.order("A", model.PriorityNormal, pickup, drop, time.Hour)
	f.run(1)
	require.Equal(t, "A", v.OrderID)

	require.NoError(t, f.s.RemoveVehicle("agv-1"))
	o, _ := f.s.Queue().Order("A")
	assert.Equal(t, model.StatusPending, o.Status)
	_, ok := f.s.Vehicle("agv-1")
	assert.False(t, ok)
	assert.ErrorIs(t, f.s.RemoveVehicle("agv-1"), ErrUnknownVehicle)

	w := f.vehicle("agv-2", 100, pickup)
	f.run(2)
	require.True(t, w.Carrying)
	assert.ErrorIs(t, f.s.RemoveVehicle("agv-2"), ErrVehicleNotIdle)
}

func TestChargingQueueAndPromotion(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.vehicle("agv-1", 20, depot)
	b := f.vehicle("agv-2", 20, depot)

	f.run(1)
	assert.Equal(t, agent.StateToCharger, a.State)
	f.run(1)
	assert.Equal(t, agent.StateCharging, a.State)
	assert.Equal(t, agent.StateWaitingCharge, b.State)
	st, err := f.s.Registry().Status("CS-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"agv-1"}, st.Occupants)
	assert.Equal(t, []string{"agv-2"}, st.Queue)
	assert.False(t, b.Eligible())

	f.run(11)
	assert.Equal(t, agent.StateIdle, a.State)
	assert.True(t, a.Battery.IsFullyCharged())
	assert.Equal(t, agent.StateCharging, b.State)

	var promoted bool
	for _, e := range f.events() {
		if ad, ok := e.(events.ChargingAdmitted); ok && ad.VehicleID == "agv-2" {
			promoted = ad.Promoted
		}
	}
	assert.True(t, promoted)
}

func TestRemoveChargingVehiclePromotesNext(t *testing.T) {
	f := newFixture(t, Config{})
	f.vehicle("agv-1", 20, depot)
	b := f.vehicle("agv-2", 20, depot)
	f.run(2)
	require.NoError(t, f.s.RemoveVehicle("agv-1"))
	assert.Equal(t, agent.StateCharging, b.State)
	assert.True(t, f.s.Registry().IsAGVCharging("CS-1", "agv-2"))
}

func TestStationDownRejectsArrival(t *testing.T) {
	f := newFixture(t, Config{})
	v := f.vehicle("agv-1", 20, depot)
	f.run(1)
	require.Equal(t, agent.StateToCharger, v.State)
	require.NoError(t, f.s.SetStationOperational("CS-1", false))
	f.run(1)
	assert.Equal(t, agent.StateIdle, v.State)
	assert.Empty(t, v.StationID)

	require.NoError(t, f.s.SetStationOperational("CS-1", true))
	f.run(2)
	assert.Equal(t, agent.StateCharging, v.State)
}

func TestSetStrategyAndWeights(t *testing.T) {
	f := newFixture(t, Config{})
	assert.Equal(t, order.StrategyBalanced, f.s.Strategy())
	f.s.SetStrategy(order.StrategyFIFO)
	assert.Equal(t, "FIFO", f.s.Stats().Strategy)

	f.s.SetBalancedWeights(order.BalancedWeights{Priority: 1})
	assert.Equal(t, 1.0, f.s.Queue().BalancedWeights().Priority)
	f.s.SetScoreWeights(ScoreWeights{Distance: 2})
	assert.Equal(t, 1000.0, f.s.ScoreWeights().DistanceRef)
}

func TestAssignmentMetrics(t *testing.T) {
	f := newFixture(t, Config{})
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	f.vehicle("agv-1", 100, depot)
	f.order("A", model.PriorityNormal, pickup, drop, time.Hour)
	f.run(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentsTotal.WithLabelValues("BALANCED", "false")))
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, "BALANCED", c.Strategy)
	assert.Equal(t, DefaultScoreWeights(), c.Score)

	bad := Config{Strategy: "RANDOM", Score: ScoreWeights{Distance: -1}}
	assert.Error(t, bad.Validate())
}
