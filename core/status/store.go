// Package status holds the read-only view of the simulation handed to
// presentation and telemetry consumers.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/charging"
	"github.com/kilianp07/agv/core/dispatch"
	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/model"
)

// GeneratorStatus describes the order source.
type GeneratorStatus struct {
	Running       bool           `json:"running" yaml:"running"`
	RatePerMinute float64        `json:"rate_per_minute" yaml:"rate_per_minute"`
	NextArrival   *time.Time     `json:"next_arrival,omitempty" yaml:"next_arrival,omitempty"`
	Counts        map[string]int `json:"counts" yaml:"counts"`
}

// Snapshot is the state of the simulation at the end of a tick.
type Snapshot struct {
	RunID          string                   `json:"run_id" yaml:"run_id"`
	Tick           uint64                   `json:"tick" yaml:"tick"`
	Time           time.Time                `json:"time" yaml:"time"`
	ElapsedSeconds float64                  `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Paused         bool                     `json:"paused" yaml:"paused"`
	Speed          float64                  `json:"speed" yaml:"speed"`
	Generator      GeneratorStatus          `json:"generator" yaml:"generator"`
	Vehicles       []agent.Status           `json:"vehicles" yaml:"vehicles"`
	Orders         []model.OrderRecord      `json:"orders" yaml:"orders"`
	Recent         []model.OrderRecord      `json:"recent" yaml:"recent"`
	Stations       []charging.StationStatus `json:"stations" yaml:"stations"`
	Stats          dispatch.Statistics      `json:"stats" yaml:"stats"`
}

// Filter narrows vehicle and order listings. Empty fields match anything.
type Filter struct {
	State    string
	Priority string
}

// Store keeps the latest snapshot.
type Store interface {
	Set(Snapshot)
	Latest() (Snapshot, bool)
	Vehicles(Filter) []agent.Status
	Vehicle(id string) (agent.Status, bool)
	Orders(Filter) []model.OrderRecord
	Order(id string) (model.OrderRecord, bool)
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	snap     Snapshot
	set      bool
	vehicles map[string]agent.Status
	orders   map[string]model.OrderRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vehicles: map[string]agent.Status{}, orders: map[string]model.OrderRecord{}}
}

// Set replaces the snapshot. Terminal orders stay listed until they fall
// out of the snapshot's recent history.
func (s *MemoryStore) Set(snap Snapshot) {
	vehicles := make(map[string]agent.Status, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		vehicles[v.ID] = v
	}
	orders := make(map[string]model.OrderRecord, len(snap.Orders)+len(snap.Recent))
	for _, o := range snap.Recent {
		orders[o.ID] = o
	}
	for _, o := range snap.Orders {
		orders[o.ID] = o
	}
	s.mu.Lock()
	s.snap, s.set = snap, true
	s.vehicles, s.orders = vehicles, orders
	s.mu.Unlock()
}

// Observe stores the snapshot of a finished tick.
func (s *MemoryStore) Observe(snap Snapshot, _ []events.Event) { s.Set(snap) }

func (s *MemoryStore) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.set
}

func (s *MemoryStore) Vehicles(f Filter) []agent.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]agent.Status, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if f.State != "" && v.State != f.State {
			continue
		}
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (s *MemoryStore) Vehicle(id string) (agent.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	return v, ok
}

func (s *MemoryStore) Orders(f Filter) []model.OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.OrderRecord, 0, len(s.orders))
	for _, o := range s.orders {
		if f.State != "" && o.Status != f.State {
			continue
		}
		if f.Priority != "" && o.Priority != f.Priority {
			continue
		}
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (s *MemoryStore) Order(id string) (model.OrderRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}
