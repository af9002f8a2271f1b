package order

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/routing"
)

func loc(id string, x, y float64) model.Location { return model.Location{ID: id, X: x, Y: y} }

func newQueue() *Queue {
	return NewQueue(routing.NewGridRouter(routing.MetricEuclidean, 1), BalancedWeights{})
}

func mustAdd(t *testing.T, q *Queue, o *model.Order) *model.Order {
	t.Helper()
	require.NoError(t, q.AddOrder(o))
	return o
}

func TestAddOrderRejectsDuplicates(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("A", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	err := q.AddOrder(model.NewOrder("A", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	_, err = q.CancelOrder("A", epoch)
	require.NoError(t, err)
	q.DrainTerminal()
	err = q.AddOrder(model.NewOrder("A", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	assert.ErrorIs(t, err, ErrDuplicateOrder, "ids stay reserved after eviction")
}

func TestGetNextOrderStrategies(t *testing.T) {
	q := newQueue()
	// A: oldest, low priority, long job, far from idle vehicle, late deadline.
	mustAdd(t, q, model.NewOrder("A", loc("PA", 100, 0), loc("DA", 200, 0), model.PriorityLow, epoch, 10*time.Minute))
	// B: urgent, medium job.
	mustAdd(t, q, model.NewOrder("B", loc("PB", 50, 0), loc("DB", 90, 0), model.PriorityUrgent, epoch.Add(time.Second), 5*time.Minute))
	// C: short job close to the vehicle, earliest deadline.
	mustAdd(t, q, model.NewOrder("C", loc("PC", 1, 0), loc("DC", 3, 0), model.PriorityNormal, epoch.Add(2*time.Second), time.Minute))

	sel := Selection{Now: epoch.Add(3 * time.Second), IdleVehicles: []model.Location{loc("V", 0, 0)}}
	cases := []struct {
		name string
		got  Strategy
		want string
	}{
		{"fifo", StrategyFIFO, "A"},
		{"priority", StrategyPriority, "B"},
		{"shortest job", StrategyShortestJob, "C"},
		{"nearest first", StrategyNearestFirst, "C"},
		{"deadline first", StrategyDeadlineFirst, "C"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			o := q.GetNextOrder(c.got, sel)
			require.NotNil(t, o)
			assert.Equal(t, c.want, o.ID)
		})
	}
	assert.Equal(t, 3, q.Counts().Pending, "selection does not remove")
}

func TestPriorityPrefersUrgentOverNormal(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("N", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	mustAdd(t, q, model.NewOrder("U", loc("P", 0, 0), loc("D", 1, 0), model.PriorityUrgent, epoch, time.Minute))
	o := q.GetNextOrder(StrategyPriority, Selection{Now: epoch})
	require.NotNil(t, o)
	assert.Equal(t, "U", o.ID)
}

func TestTiesBreakByID(t *testing.T) {
	q := newQueue()
	for _, id := range []string{"c", "a", "b"} {
		mustAdd(t, q, model.NewOrder(id, loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	}
	for _, s := range Strategies {
		o := q.GetNextOrder(s, Selection{Now: epoch, IdleVehicles: []model.Location{loc("V", 5, 5)}})
		require.NotNil(t, o, s.String())
		assert.Equal(t, "a", o.ID, s.String())
	}
}

func TestBalancedIsMonotonicInPriority(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("lo", loc("P", 0, 0), loc("D", 1, 0), model.PriorityLow, epoch, time.Minute))
	mustAdd(t, q, model.NewOrder("hi", loc("P", 0, 0), loc("D", 1, 0), model.PriorityHigh, epoch, time.Minute))
	o := q.GetNextOrder(StrategyBalanced, Selection{Now: epoch})
	require.NotNil(t, o)
	assert.Equal(t, "hi", o.ID)

	q.SetBalancedWeights(BalancedWeights{Waiting: 1})
	mustAdd(t, q, model.NewOrder("old", loc("P", 0, 0), loc("D", 1, 0), model.PriorityLow, epoch.Add(-time.Minute), 2*time.Minute))
	o = q.GetNextOrder(StrategyBalanced, Selection{Now: epoch})
	require.NotNil(t, o)
	assert.Equal(t, "old", o.ID)
}

func TestGetNextOrderEmptyAndExpired(t *testing.T) {
	q := newQueue()
	assert.Nil(t, q.GetNextOrder(StrategyFIFO, Selection{Now: epoch}))
	mustAdd(t, q, model.NewOrder("late", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, 0))
	assert.Nil(t, q.GetNextOrder(StrategyFIFO, Selection{Now: epoch}))
}

func TestAssignCompleteLifecycle(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("A", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	mustAdd(t, q, model.NewOrder("B", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))

	require.NoError(t, q.AssignOrder("A", "v1", epoch))
	assert.ErrorIs(t, q.AssignOrder("B", "v1", epoch), ErrVehicleBusy)
	assert.ErrorIs(t, q.AssignOrder("A", "v2", epoch), ErrInvalidTransition)
	assert.ErrorIs(t, q.AssignOrder("Z", "v2", epoch), ErrUnknownOrder)

	c := q.Counts()
	assert.Equal(t, 1, c.Pending)
	assert.Equal(t, 1, c.Assigned)

	_, err := q.StartOrder("v1", epoch.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, q.Counts().InProgress)
	_, err = q.CancelOrder("A", epoch)
	assert.ErrorIs(t, err, ErrInvalidTransition, "in-progress orders cannot be cancelled")

	o, err := q.CompleteOrder("v1", epoch.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, o.Status)
	_, held := q.Assignment("v1")
	assert.False(t, held)

	_, err = q.CompleteOrder("v1", epoch)
	assert.ErrorIs(t, err, ErrNoAssignment)

	done := q.DrainTerminal()
	require.Len(t, done, 1)
	assert.Empty(t, q.DrainTerminal())
	assert.Equal(t, 1, q.Counts().Completed)
}

func TestCompleteAssignedPassesThroughInProgress(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("A", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	require.NoError(t, q.AssignOrder("A", "v1", epoch))
	o, err := q.CompleteOrder("v1", epoch.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Second), o.PickedUpAt)
}

func TestCancelFromEitherStructure(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("A", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	mustAdd(t, q, model.NewOrder("B", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	require.NoError(t, q.AssignOrder("B", "v1", epoch))

	_, err := q.CancelOrder("A", epoch)
	require.NoError(t, err)
	o, err := q.CancelOrder("B", epoch)
	require.NoError(t, err)
	assert.Equal(t, "v1", o.AssignedVehicle)
	_, held := q.Assignment("v1")
	assert.False(t, held)

	_, err = q.CancelOrder("A", epoch)
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.Equal(t, 2, q.Counts().Cancelled)
}

func TestReleaseReturnsOrderToPending(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("A", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Minute))
	require.NoError(t, q.AssignOrder("A", "v1", epoch))
	o, err := q.ReleaseOrder("v1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, o.Status)
	require.NoError(t, q.AssignOrder("A", "v2", epoch))
	assert.Equal(t, 2, o.Assignments)

	_, err = q.ReleaseOrder("v1")
	assert.True(t, errors.Is(err, ErrNoAssignment))
}

func TestCleanExpiredOrders(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("past", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, -time.Second))
	mustAdd(t, q, model.NewOrder("held", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, 10*time.Second))
	mustAdd(t, q, model.NewOrder("fresh", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Hour))
	require.NoError(t, q.AssignOrder("held", "v1", epoch))

	hits := q.CleanExpiredOrders(epoch)
	require.Len(t, hits, 1)
	assert.Equal(t, "past", hits[0].ID)
	assert.Equal(t, model.StatusExpired, hits[0].Status)
	assert.Empty(t, q.CleanExpiredOrders(epoch), "second sweep finds nothing")

	hits = q.CleanExpiredOrders(epoch.Add(10 * time.Second))
	require.Len(t, hits, 1)
	assert.Equal(t, "v1", hits[0].AssignedVehicle)
	_, held := q.Assignment("v1")
	assert.False(t, held)
	assert.Equal(t, 2, q.Counts().Expired)
	assert.Equal(t, 3, q.Counts().Total())
}

func TestInProgressNeverExpires(t *testing.T) {
	q := newQueue()
	mustAdd(t, q, model.NewOrder("A", loc("P", 0, 0), loc("D", 1, 0), model.PriorityNormal, epoch, time.Second))
	require.NoError(t, q.AssignOrder("A", "v1", epoch))
	_, err := q.StartOrder("v1", epoch)
	require.NoError(t, err)
	assert.Empty(t, q.CleanExpiredOrders(epoch.Add(time.Hour)))
}
