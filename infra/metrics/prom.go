package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/status"
)

// PromSink exposes the fleet snapshot as Prometheus gauges.
type PromSink struct {
	vehicles  *prometheus.GaugeVec
	battery   *prometheus.GaugeVec
	occupancy *prometheus.GaugeVec
	queued    *prometheus.GaugeVec
	simTime   prometheus.Gauge
	success   prometheus.Gauge
	events    *prometheus.CounterVec
}

var vehicleStates = []agent.State{
	agent.StateIdle, agent.StateToPickup, agent.StateToDropoff, agent.StateToCharger,
	agent.StateWaitingCharge, agent.StateCharging, agent.StateBlocked,
}

// NewPromSink registers the gauges on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		vehicles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agv_vehicles",
			Help: "Number of vehicles per state",
		}, []string{"state"}),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agv_vehicle_battery_percent",
			Help: "Battery level of each vehicle",
		}, []string{"vehicle_id"}),
		occupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agv_station_occupied_slots",
			Help: "Occupied charging slots per station",
		}, []string{"station_id"}),
		queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agv_station_queue_length",
			Help: "Vehicles waiting for a slot per station",
		}, []string{"station_id"}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agv_sim_elapsed_seconds",
			Help: "Simulated seconds since the start of the run",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agv_assignment_success_ratio",
			Help: "Assignments over assignment attempts",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agv_events_total",
			Help: "Events emitted by the dispatch core",
		}, []string{"name"}),
	}
	var err error
	if s.vehicles, err = register(reg, s.vehicles); err != nil {
		return nil, err
	}
	if s.battery, err = register(reg, s.battery); err != nil {
		return nil, err
	}
	if s.occupancy, err = register(reg, s.occupancy); err != nil {
		return nil, err
	}
	if s.queued, err = register(reg, s.queued); err != nil {
		return nil, err
	}
	if s.simTime, err = register(reg, s.simTime); err != nil {
		return nil, err
	}
	if s.success, err = register(reg, s.success); err != nil {
		return nil, err
	}
	if s.events, err = register(reg, s.events); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSnapshot sets every gauge from the snapshot.
func (s *PromSink) RecordSnapshot(snap status.Snapshot) error {
	counts := make(map[string]int, len(vehicleStates))
	s.battery.Reset()
	for _, v := range snap.Vehicles {
		counts[v.State]++
		s.battery.WithLabelValues(v.ID).Set(v.BatteryPercent)
	}
	for _, st := range vehicleStates {
		s.vehicles.WithLabelValues(st.String()).Set(float64(counts[st.String()]))
	}
	s.occupancy.Reset()
	s.queued.Reset()
	for _, st := range snap.Stations {
		s.occupancy.WithLabelValues(st.ID).Set(float64(len(st.Occupants)))
		s.queued.WithLabelValues(st.ID).Set(float64(len(st.Queue)))
	}
	s.simTime.Set(snap.ElapsedSeconds)
	s.success.Set(snap.Stats.SuccessRate)
	return nil
}

// RecordEvents counts events by name.
func (s *PromSink) RecordEvents(evs []events.Event) error {
	for _, ev := range evs {
		s.events.WithLabelValues(ev.Name()).Inc()
	}
	return nil
}
