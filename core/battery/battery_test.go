package battery

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	c := DefaultConfig()
	c.MovingRate = 1
	c.IdleRate = 0.1
	c.CargoRate = 0.5
	c.ChargeRate = 10
	return c
}

func TestUpdateDischargeAndClamp(t *testing.T) {
	b := NewWithCharge(testConfig(), 50)
	b.Update(10, true, false)
	assert.InDelta(t, 40, b.Charge(), 1e-9)
	b.Update(10, true, true)
	assert.InDelta(t, 25, b.Charge(), 1e-9)
	b.Update(10, false, false)
	assert.InDelta(t, 24, b.Charge(), 1e-9)
	alert := b.Update(1000, true, true)
	assert.Equal(t, 0.0, b.Charge())
	assert.Equal(t, AlertDepleted, alert)
	assert.False(t, b.CanMove())
	assert.InDelta(t, 50, b.Stats().TotalConsumed, 1e-9)
}

func TestChargingStopsWhenFull(t *testing.T) {
	b := NewWithCharge(testConfig(), 95)
	b.StartCharging(1)
	require.True(t, b.IsCharging())
	b.Update(0.2, false, false)
	assert.InDelta(t, 97, b.Charge(), 1e-9)
	assert.True(t, b.IsCharging())
	b.Update(10, false, false)
	assert.Equal(t, 100.0, b.Charge())
	assert.False(t, b.IsCharging())
	assert.Equal(t, 1, b.Stats().ChargingCycles)
	assert.InDelta(t, 5, b.Stats().TotalCharged, 1e-9)
}

func TestChargingEfficiency(t *testing.T) {
	b := NewWithCharge(testConfig(), 0)
	b.StartCharging(0.5)
	b.Update(1, false, false)
	assert.InDelta(t, 5, b.Charge(), 1e-9)
}

func TestMovingEndsCharging(t *testing.T) {
	b := NewWithCharge(testConfig(), 50)
	b.StartCharging(1)
	b.Update(1, true, false)
	assert.False(t, b.IsCharging())
	assert.InDelta(t, 49, b.Charge(), 1e-9)
}

func TestStatusClassification(t *testing.T) {
	cfg := testConfig()
	cases := []struct {
		charge   float64
		charging bool
		want     Status
	}{
		{100, false, StatusFull},
		{91, false, StatusFull},
		{90, false, StatusHigh},
		{60, false, StatusMedium},
		{30, false, StatusLow},
		{15, false, StatusCritical},
		{0, false, StatusEmpty},
		{0, true, StatusCharging},
		{95, true, StatusCharging},
	}
	for _, tc := range cases {
		b := NewWithCharge(cfg, tc.charge)
		if tc.charging {
			b.StartCharging(1)
		}
		if got := b.Status(); got != tc.want {
			t.Fatalf("charge %.0f charging=%v: want %s got %s", tc.charge, tc.charging, tc.want, got)
		}
	}
}

func TestThresholdPredicates(t *testing.T) {
	b := NewWithCharge(testConfig(), 31)
	assert.False(t, b.NeedsCharging())
	b.Update(1, true, false)
	assert.True(t, b.NeedsCharging())
	assert.False(t, b.NeedsImmediateCharging())
	b.Update(15, true, false)
	assert.True(t, b.NeedsImmediateCharging())
	assert.False(t, NewWithCharge(testConfig(), 97).IsFullyCharged())
	assert.True(t, NewWithCharge(testConfig(), 98).IsFullyCharged())
}

func TestAlertsFireOncePerCrossing(t *testing.T) {
	b := NewWithCharge(testConfig(), 31)
	assert.Equal(t, AlertLow, b.Update(2, true, false))
	assert.Equal(t, AlertNone, b.Update(1, true, false))
	assert.Equal(t, AlertCritical, b.Update(13, true, false))
	assert.Equal(t, AlertNone, b.Update(1, true, false))
	b.Recharge(50)
	assert.Equal(t, AlertLow, b.Update(40, true, false))
}

func TestCanCompleteTaskRejectsShortCharge(t *testing.T) {
	cfg := testConfig()
	b := NewWithCharge(cfg, 5)
	tenSeconds := 10.0 / 60
	assert.False(t, b.CanCompleteTask(tenSeconds, true, false))
	assert.True(t, b.CanCompleteTask(4.0/60, true, false))

	cfg.SafetyMarginMinutes = 1
	b = NewWithCharge(cfg, 50)
	assert.False(t, b.CanCompleteTask(tenSeconds, true, false))
}

func TestEstimates(t *testing.T) {
	b := NewWithCharge(testConfig(), 60)
	assert.InDelta(t, 1.0, b.EstimateRemainingTime(true, false), 1e-9)
	assert.InDelta(t, 10.0, b.EstimateRemainingTime(false, false), 1e-9)
	assert.InDelta(t, 40.0/10/60, b.EstimateChargingTime(100), 1e-9)
	assert.Equal(t, 0.0, b.EstimateChargingTime(50))

	cfg := testConfig()
	cfg.IdleRate = 0
	assert.True(t, math.IsInf(NewWithCharge(cfg, 10).EstimateRemainingTime(false, false), 1))
}

func TestPresets(t *testing.T) {
	checks := []struct {
		name          string
		low, critical float64
		charge        float64
	}{
		{"conservative", 40, 20, 6},
		{"balanced", 30, 15, 8},
		{"aggressive", 20, 10, 12},
	}
	for _, c := range checks {
		p, err := Preset(c.name)
		require.NoError(t, err)
		assert.Equal(t, c.low, p.LowPct, c.name)
		assert.Equal(t, c.critical, p.CriticalPct, c.name)
		assert.Equal(t, c.charge, p.ChargeRate, c.name)
		assert.NoError(t, p.Validate())
	}
	_, err := Preset("reckless")
	assert.Error(t, err)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	c := Config{Preset: "aggressive", MovingRate: 2}
	c.SetDefaults()
	assert.Equal(t, 2.0, c.MovingRate)
	assert.Equal(t, 20.0, c.LowPct)
	assert.Equal(t, 100.0, c.Capacity)
	require.NoError(t, c.Validate())

	bad := DefaultConfig()
	bad.LowPct = 10
	assert.Error(t, bad.Validate())
}

func TestConfigDefaultsKeepExplicitZeros(t *testing.T) {
	c := Config{Preset: "balanced", Explicit: []string{"idle_rate"}}
	c.SetDefaults()
	assert.Zero(t, c.IdleRate)
	assert.Equal(t, 0.8, c.MovingRate)
	require.NoError(t, c.Validate())
}
