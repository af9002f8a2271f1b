// Package battery models the energy budget of a single vehicle.
package battery

import "math"

// Status classifies the battery for display and dispatch decisions.
type Status int

const (
	StatusFull Status = iota
	StatusHigh
	StatusMedium
	StatusLow
	StatusCritical
	StatusEmpty
	StatusCharging
)

func (s Status) String() string {
	switch s {
	case StatusFull:
		return "full"
	case StatusHigh:
		return "high"
	case StatusMedium:
		return "medium"
	case StatusLow:
		return "low"
	case StatusCritical:
		return "critical"
	case StatusEmpty:
		return "empty"
	case StatusCharging:
		return "charging"
	default:
		return "unknown"
	}
}

// Alert is raised by Update when the charge crosses a threshold downwards.
type Alert int

const (
	AlertNone Alert = iota
	AlertLow
	AlertCritical
	AlertDepleted
)

func (a Alert) String() string {
	switch a {
	case AlertNone:
		return "none"
	case AlertLow:
		return "low"
	case AlertCritical:
		return "critical"
	case AlertDepleted:
		return "depleted"
	default:
		return "unknown"
	}
}

// fullyChargedPct is the level at which a battery is reported as full
// enough to leave a charger early.
const fullyChargedPct = 98.0

// Stats are cumulative counters of a battery.
type Stats struct {
	TotalConsumed  float64 `json:"total_consumed"`
	TotalCharged   float64 `json:"total_charged"`
	ChargingCycles int     `json:"charging_cycles"`
}

// Battery tracks charge in [0, Capacity]. It is not safe for concurrent
// use; the simulation mutates it from a single goroutine.
type Battery struct {
	cfg        Config
	charge     float64
	charging   bool
	efficiency float64
	stats      Stats

	lowLatched      bool
	criticalLatched bool
	emptyLatched    bool
}

// New returns a fully charged battery.
func New(cfg Config) *Battery {
	return NewWithCharge(cfg, cfg.Capacity)
}

// NewWithCharge returns a battery holding the given charge, clamped to the
// capacity.
func NewWithCharge(cfg Config, charge float64) *Battery {
	b := &Battery{cfg: cfg, efficiency: 1}
	b.charge = clamp(charge, 0, cfg.Capacity)
	b.syncLatches()
	return b
}

// Config returns the active configuration.
func (b *Battery) Config() Config { return b.cfg }

// SetConfig replaces rates and thresholds. The charge is clamped to the new
// capacity.
func (b *Battery) SetConfig(cfg Config) {
	b.cfg = cfg
	b.charge = clamp(b.charge, 0, cfg.Capacity)
	b.syncLatches()
}

func (b *Battery) Charge() float64   { return b.charge }
func (b *Battery) Capacity() float64 { return b.cfg.Capacity }
func (b *Battery) IsCharging() bool  { return b.charging }
func (b *Battery) Stats() Stats      { return b.stats }

// Percent returns the charge as a percentage of capacity.
func (b *Battery) Percent() float64 {
	if b.cfg.Capacity <= 0 {
		return 0
	}
	return b.charge / b.cfg.Capacity * 100
}

// Fraction returns the charge as a fraction of capacity.
func (b *Battery) Fraction() float64 { return b.Percent() / 100 }

// Rate returns the discharge rate per second for a usage profile.
func (b *Battery) Rate(moving, carrying bool) float64 {
	if !moving {
		return b.cfg.IdleRate
	}
	r := b.cfg.MovingRate
	if carrying {
		r += b.cfg.CargoRate
	}
	return r
}

// Update advances the battery by elapsed seconds. A charging battery gains
// charge and stops charging once full; otherwise it drains at the rate of
// the usage profile. Moving stops any charging session first. The returned
// alert reports the most severe threshold crossed during this update.
func (b *Battery) Update(elapsed float64, moving, carrying bool) Alert {
	if elapsed <= 0 {
		return AlertNone
	}
	if moving && b.charging {
		b.charging = false
	}
	if b.charging {
		gain := math.Min(elapsed*b.cfg.ChargeRate*b.efficiency, b.cfg.Capacity-b.charge)
		b.charge += gain
		b.stats.TotalCharged += gain
		if b.charge >= b.cfg.Capacity {
			b.charge = b.cfg.Capacity
			b.charging = false
		}
		b.syncLatches()
		return AlertNone
	}
	loss := math.Min(elapsed*b.Rate(moving, carrying), b.charge)
	b.charge -= loss
	b.stats.TotalConsumed += loss
	return b.raise()
}

// Recharge adds energy outside a charging session, e.g. a manual swap.
func (b *Battery) Recharge(amount float64) {
	if amount <= 0 {
		return
	}
	gain := math.Min(amount, b.cfg.Capacity-b.charge)
	b.charge += gain
	b.stats.TotalCharged += gain
	b.syncLatches()
}

// StartCharging begins a charging session at the given station efficiency.
// It is a no-op when the battery is already charging.
func (b *Battery) StartCharging(efficiency float64) {
	if b.charging {
		return
	}
	if efficiency <= 0 {
		efficiency = 1
	}
	b.efficiency = efficiency
	b.charging = true
	b.stats.ChargingCycles++
}

// StopCharging ends the current session.
func (b *Battery) StopCharging() { b.charging = false }

// CanMove reports whether the charge is above the minimum needed to move.
func (b *Battery) CanMove() bool { return b.charge > b.cfg.MinToMove }

// NeedsCharging reports whether the charge is at or below the low threshold.
func (b *Battery) NeedsCharging() bool { return b.Percent() <= b.cfg.LowPct }

// NeedsImmediateCharging reports whether the charge is at or below the
// critical threshold.
func (b *Battery) NeedsImmediateCharging() bool { return b.Percent() <= b.cfg.CriticalPct }

// IsFullyCharged reports whether the charge is close enough to capacity.
func (b *Battery) IsFullyCharged() bool { return b.Percent() >= fullyChargedPct }

// Status classifies the battery. Charging takes precedence over the charge
// thresholds, which are checked from the lowest up.
func (b *Battery) Status() Status {
	pct := b.Percent()
	switch {
	case b.charging:
		return StatusCharging
	case b.charge <= b.cfg.MinToMove:
		return StatusEmpty
	case pct <= b.cfg.CriticalPct:
		return StatusCritical
	case pct <= b.cfg.LowPct:
		return StatusLow
	case pct <= b.cfg.MediumPct:
		return StatusMedium
	case pct <= b.cfg.HighPct:
		return StatusHigh
	default:
		return StatusFull
	}
}

// Consumption returns the charge used over the given minutes.
func (b *Battery) Consumption(minutes float64, moving, carrying bool) float64 {
	return minutes * 60 * b.Rate(moving, carrying)
}

// EstimateRemainingTime returns the minutes until empty for a usage
// profile, or +Inf if that profile does not drain the battery.
func (b *Battery) EstimateRemainingTime(moving, carrying bool) float64 {
	r := b.Rate(moving, carrying)
	if r <= 0 {
		return math.Inf(1)
	}
	return b.charge / r / 60
}

// EstimateChargingTime returns the minutes needed to reach targetPct while
// charging at the configured rate and current efficiency.
func (b *Battery) EstimateChargingTime(targetPct float64) float64 {
	target := clamp(targetPct, 0, 100) / 100 * b.cfg.Capacity
	if target <= b.charge {
		return 0
	}
	rate := b.cfg.ChargeRate * b.efficiency
	if rate <= 0 {
		return math.Inf(1)
	}
	return (target - b.charge) / rate / 60
}

// CanCompleteTask reports whether running the profile for the estimated
// minutes, plus the configured safety margin, leaves the charge at or above
// zero.
func (b *Battery) CanCompleteTask(estimatedMinutes float64, moving, carrying bool) bool {
	need := b.Consumption(estimatedMinutes+b.cfg.SafetyMarginMinutes, moving, carrying)
	return b.charge-need >= 0
}

func (b *Battery) raise() Alert {
	pct := b.Percent()
	alert := AlertNone
	if pct <= b.cfg.LowPct && !b.lowLatched {
		b.lowLatched = true
		alert = AlertLow
	}
	if pct <= b.cfg.CriticalPct && !b.criticalLatched {
		b.criticalLatched = true
		alert = AlertCritical
	}
	if b.charge <= 0 && !b.emptyLatched {
		b.emptyLatched = true
		alert = AlertDepleted
	}
	return alert
}

// syncLatches rearms alerts once the charge has recovered above a threshold.
func (b *Battery) syncLatches() {
	pct := b.Percent()
	b.lowLatched = pct <= b.cfg.LowPct
	b.criticalLatched = pct <= b.cfg.CriticalPct
	b.emptyLatched = b.charge <= 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
