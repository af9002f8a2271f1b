package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(0, 0).UTC()

func newTestOrder(slack time.Duration) *Order {
	return NewOrder("ORD-1", Location{ID: "P1"}, Location{ID: "D1", X: 10}, PriorityNormal, epoch, slack)
}

func TestOrderLifecycle(t *testing.T) {
	o := newTestOrder(time.Minute)
	require.NoError(t, o.Assign("agv-1", epoch.Add(5*time.Second)))
	require.NoError(t, o.Start(epoch.Add(10*time.Second)))
	require.NoError(t, o.Complete(epoch.Add(30*time.Second)))

	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, 5*time.Second, o.WaitTime())
	assert.Equal(t, 30*time.Second, o.TotalTime())
	st := o.StageTimes()
	assert.Equal(t, 5*time.Second, st["waiting"])
	assert.Equal(t, 5*time.Second, st["to_pickup"])
	assert.Equal(t, 20*time.Second, st["to_dropoff"])
}

func TestOrderIllegalTransitions(t *testing.T) {
	cases := []struct {
		name string
		prep func(o *Order)
		step func(o *Order) error
	}{
		{"complete pending", func(*Order) {}, func(o *Order) error { return o.Complete(epoch) }},
		{"start pending", func(*Order) {}, func(o *Order) error { return o.Start(epoch) }},
		{"cancel in progress", func(o *Order) {
			_ = o.Assign("v", epoch)
			_ = o.Start(epoch)
		}, func(o *Order) error { return o.Cancel(epoch) }},
		{"expire in progress", func(o *Order) {
			_ = o.Assign("v", epoch)
			_ = o.Start(epoch)
		}, func(o *Order) error { return o.Expire(epoch) }},
		{"assign cancelled", func(o *Order) { _ = o.Cancel(epoch) }, func(o *Order) error { return o.Assign("v", epoch) }},
		{"release pending", func(*Order) {}, func(o *Order) error { return o.Release() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOrder(time.Minute)
			tc.prep(o)
			before := *o
			err := tc.step(o)
			var te *TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("expected TransitionError got %v", err)
			}
			if *o != before {
				t.Fatalf("order mutated on rejected transition")
			}
		})
	}
}

func TestOrderReleaseReturnsToPending(t *testing.T) {
	o := newTestOrder(time.Minute)
	require.NoError(t, o.Assign("agv-1", epoch))
	require.NoError(t, o.Release())
	assert.Equal(t, StatusPending, o.Status)
	assert.Empty(t, o.AssignedVehicle)
	require.NoError(t, o.Assign("agv-2", epoch))
	assert.Equal(t, 2, o.Assignments)
}

func TestOrderExpiry(t *testing.T) {
	o := newTestOrder(10 * time.Second)
	assert.False(t, o.IsExpired(epoch.Add(9*time.Second)))
	assert.True(t, o.IsExpired(epoch.Add(10*time.Second)))
	assert.Equal(t, -5*time.Second, o.RemainingTime(epoch.Add(15*time.Second)))

	zero := newTestOrder(0)
	assert.True(t, zero.IsExpired(epoch))

	_ = o.Assign("v", epoch)
	_ = o.Start(epoch)
	assert.False(t, o.IsExpired(epoch.Add(time.Hour)), "in-progress orders never expire")
}

func TestPriorityParse(t *testing.T) {
	for _, p := range Priorities {
		got, err := ParsePriority(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	var p Priority
	require.NoError(t, p.UnmarshalText([]byte("urgent")))
	assert.Equal(t, PriorityUrgent, p)
	_, err := ParsePriority("whenever")
	assert.Error(t, err)
	assert.True(t, PriorityUrgent > PriorityNormal)
}

func TestOrderRecord(t *testing.T) {
	o := newTestOrder(time.Minute)
	rec := o.Record(epoch.Add(20 * time.Second))
	assert.Equal(t, "ORD-1", rec.ID)
	assert.Equal(t, "P1", rec.Pickup)
	assert.Equal(t, "NORMAL", rec.Priority)
	assert.Equal(t, "pending", rec.Status)
	assert.InDelta(t, 40.0, rec.RemainingSeconds, 1e-9)
}
