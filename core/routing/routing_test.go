package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/agv/core/model"
)

func TestGridRouterEstimate(t *testing.T) {
	a := model.Location{ID: "a"}
	b := model.Location{ID: "b", X: 3, Y: 4}
	e := NewGridRouter(MetricEuclidean, 2).Estimate(a, b)
	assert.Equal(t, 5.0, e.Distance)
	assert.Equal(t, 2500*time.Millisecond, e.Duration)

	e = NewGridRouter(MetricManhattan, 1).Estimate(a, b)
	assert.Equal(t, 7.0, e.Distance)
	assert.Equal(t, 7*time.Second, e.Duration)
}

func TestTableRouterFallsBack(t *testing.T) {
	r := NewTableRouter([]Pair{{From: "a", To: "b", Distance: 100, Seconds: 50}}, NewGridRouter(MetricEuclidean, 1))
	a := model.Location{ID: "a"}
	b := model.Location{ID: "b", X: 3, Y: 4}
	assert.Equal(t, 100.0, r.Estimate(a, b).Distance)
	assert.Equal(t, 5.0, r.Estimate(b, a).Distance, "pairs are directional")
	assert.Equal(t, Estimate{}, r.Estimate(a, a))
}

func TestLegAdvance(t *testing.T) {
	leg := Plan(NewGridRouter(MetricEuclidean, 1), model.Location{ID: "a"}, model.Location{ID: "b", X: 10})
	d, arrived := leg.Advance(4 * time.Second)
	assert.InDelta(t, 4, d, 1e-9)
	assert.False(t, arrived)
	assert.InDelta(t, 4, leg.Position().X, 1e-9)
	assert.Equal(t, 6*time.Second, leg.Remaining())

	d, arrived = leg.Advance(10 * time.Second)
	assert.InDelta(t, 6, d, 1e-9)
	assert.True(t, arrived)
	assert.Equal(t, "b", leg.Position().ID)

	zero := Plan(NewGridRouter(MetricEuclidean, 1), model.Location{ID: "a"}, model.Location{ID: "a"})
	assert.True(t, zero.Arrived())
}

func TestPools(t *testing.T) {
	var c Config
	c.SetDefaults()
	require.NoError(t, c.Validate())
	p, err := NewPools(c.Locations)
	require.NoError(t, err)
	assert.Len(t, p.PickupLocations(), 3)
	assert.Len(t, p.DropoffLocations(), 3)
	assert.Len(t, p.ChargingLocations(), 2)
	l, ok := p.Lookup("C2")
	require.True(t, ok)
	assert.Equal(t, 50.0, l.Y)

	_, err = NewPools([]LocationConfig{{ID: "x", Kind: "pickup"}, {ID: "x", Kind: "dropoff"}})
	assert.Error(t, err)
	_, err = NewPools([]LocationConfig{{ID: "x", Kind: "warehouse"}})
	assert.Error(t, err)
}
