// Package charging tracks charging station occupancy and wait queues.
//
// A vehicle id appears at most once across all stations, either as an
// occupant or in a wait queue. Removing a vehicle that is not present is a
// benign failure reported through ErrNotPresent.
package charging

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/routing"
)

var (
	ErrUnknownStation   = errors.New("unknown charging station")
	ErrDuplicateStation = errors.New("duplicate charging station")
	ErrNotPresent       = errors.New("vehicle not at station")
	ErrAlreadyPresent   = errors.New("vehicle already registered at another station")
	ErrStationDown      = errors.New("charging station not operational")
	ErrNoStation        = errors.New("no operational charging station")
)

// Station is a charger with a bounded number of slots and a FIFO wait
// queue.
type Station struct {
	ID          string
	Location    model.Location
	MaxSlots    int
	Efficiency  float64
	Operational bool

	occupants     map[string]struct{}
	queue         []string
	totalSessions int
	totalEnergy   float64
}

// StationStatus is a read-only view of a station.
type StationStatus struct {
	ID            string   `json:"id" yaml:"id"`
	Location      string   `json:"location" yaml:"location"`
	MaxSlots      int      `json:"max_slots" yaml:"max_slots"`
	Occupants     []string `json:"occupants" yaml:"occupants"`
	Queue         []string `json:"queue" yaml:"queue"`
	Operational   bool     `json:"operational" yaml:"operational"`
	Utilization   float64  `json:"utilization" yaml:"utilization"`
	TotalSessions int      `json:"total_sessions" yaml:"total_sessions"`
	TotalEnergy   float64  `json:"total_energy" yaml:"total_energy"`
}

// Registry owns every charging station.
type Registry struct {
	stations map[string]*Station
	ids      []string
	where    map[string]string // vehicle id -> station id
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stations: map[string]*Station{}, where: map[string]string{}}
}

// AddStation registers a station. Slots below one are raised to one.
func (r *Registry) AddStation(id string, loc model.Location, maxSlots int, efficiency float64) error {
	if id == "" {
		return fmt.Errorf("station id is required")
	}
	if _, ok := r.stations[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStation, id)
	}
	if maxSlots < 1 {
		maxSlots = 1
	}
	if efficiency <= 0 {
		efficiency = 1
	}
	r.stations[id] = &Station{
		ID:          id,
		Location:    loc,
		MaxSlots:    maxSlots,
		Efficiency:  efficiency,
		Operational: true,
		occupants:   map[string]struct{}{},
	}
	r.ids = append(r.ids, id)
	sort.Strings(r.ids)
	return nil
}

func (r *Registry) station(id string) (*Station, error) {
	s, ok := r.stations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, id)
	}
	return s, nil
}

// CanAccept reports whether the station has a free slot.
func (r *Registry) CanAccept(stationID string) (bool, error) {
	s, err := r.station(stationID)
	if err != nil {
		return false, err
	}
	return s.Operational && len(s.occupants) < s.MaxSlots, nil
}

// AddAGVToCharge requests a slot. It returns true when the vehicle occupies
// a slot and false when it has been appended to the wait queue. Repeated
// requests at the same station do not enqueue the vehicle twice.
func (r *Registry) AddAGVToCharge(stationID, vehicleID string) (bool, error) {
	s, err := r.station(stationID)
	if err != nil {
		return false, err
	}
	if at, ok := r.where[vehicleID]; ok {
		if at != stationID {
			return false, fmt.Errorf("%w: %s at %s", ErrAlreadyPresent, vehicleID, at)
		}
		_, charging := s.occupants[vehicleID]
		return charging, nil
	}
	if !s.Operational {
		return false, fmt.Errorf("%w: %s", ErrStationDown, stationID)
	}
	r.where[vehicleID] = stationID
	if len(s.occupants) < s.MaxSlots {
		s.occupants[vehicleID] = struct{}{}
		s.totalSessions++
		return true, nil
	}
	s.queue = append(s.queue, vehicleID)
	return false, nil
}

// RemoveAGVFromCharge removes a vehicle from the station. When an occupant
// leaves and the queue is not empty, the head of the queue is promoted and
// its id returned. Removing a queued vehicle just drops it from the queue.
func (r *Registry) RemoveAGVFromCharge(stationID, vehicleID string) (string, error) {
	s, err := r.station(stationID)
	if err != nil {
		return "", err
	}
	if _, ok := s.occupants[vehicleID]; ok {
		delete(s.occupants, vehicleID)
		delete(r.where, vehicleID)
		return r.promote(s), nil
	}
	for i, id := range s.queue {
		if id == vehicleID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			delete(r.where, vehicleID)
			return "", nil
		}
	}
	return "", fmt.Errorf("%w: %s at %s", ErrNotPresent, vehicleID, stationID)
}

// Release removes the vehicle from wherever it is registered.
func (r *Registry) Release(vehicleID string) (string, error) {
	at, ok := r.where[vehicleID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotPresent, vehicleID)
	}
	return r.RemoveAGVFromCharge(at, vehicleID)
}

func (r *Registry) promote(s *Station) string {
	if !s.Operational || len(s.queue) == 0 || len(s.occupants) >= s.MaxSlots {
		return ""
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	s.occupants[next] = struct{}{}
	s.totalSessions++
	return next
}

// Locate returns the station a vehicle is registered at and whether it
// occupies a slot there.
func (r *Registry) Locate(vehicleID string) (stationID string, charging bool, ok bool) {
	at, ok := r.where[vehicleID]
	if !ok {
		return "", false, false
	}
	_, charging = r.stations[at].occupants[vehicleID]
	return at, charging, true
}

// IsAGVCharging reports whether the vehicle occupies a slot at the station.
func (r *Registry) IsAGVCharging(stationID, vehicleID string) bool {
	s, ok := r.stations[stationID]
	if !ok {
		return false
	}
	_, in := s.occupants[vehicleID]
	return in
}

// QueuePosition returns the 1-based position in the wait queue, or -1.
func (r *Registry) QueuePosition(stationID, vehicleID string) int {
	s, ok := r.stations[stationID]
	if !ok {
		return -1
	}
	for i, id := range s.queue {
		if id == vehicleID {
			return i + 1
		}
	}
	return -1
}

// RecordEnergy adds delivered energy to the station counters.
func (r *Registry) RecordEnergy(stationID string, amount float64) {
	if s, ok := r.stations[stationID]; ok && amount > 0 {
		s.totalEnergy += amount
	}
}

// SetOperational toggles a station. Taking a station down keeps current
// occupants but stops admissions and promotions; bringing it back fills
// free slots from the queue and returns the promoted ids.
func (r *Registry) SetOperational(stationID string, up bool) ([]string, error) {
	s, err := r.station(stationID)
	if err != nil {
		return nil, err
	}
	s.Operational = up
	var promoted []string
	for up {
		id := r.promote(s)
		if id == "" {
			break
		}
		promoted = append(promoted, id)
	}
	return promoted, nil
}

// Efficiency returns the charge rate multiplier of a station.
func (r *Registry) Efficiency(stationID string) float64 {
	if s, ok := r.stations[stationID]; ok {
		return s.Efficiency
	}
	return 1
}

// Location returns the map node of a station.
func (r *Registry) Location(stationID string) (model.Location, bool) {
	s, ok := r.stations[stationID]
	if !ok {
		return model.Location{}, false
	}
	return s.Location, true
}

// Nearest returns the closest operational station by travel distance.
// Ties go to the lowest station id.
func (r *Registry) Nearest(from model.Location, est routing.Estimator) (string, error) {
	best := ""
	bestDist := math.Inf(1)
	for _, id := range r.ids {
		s := r.stations[id]
		if !s.Operational {
			continue
		}
		d := est.Estimate(from, s.Location).Distance
		if d < bestDist {
			best, bestDist = id, d
		}
	}
	if best == "" {
		return "", ErrNoStation
	}
	return best, nil
}

// Stations returns the status of every station ordered by id.
func (r *Registry) Stations() []StationStatus {
	out := make([]StationStatus, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.stations[id].status())
	}
	return out
}

// Status returns the status of one station.
func (r *Registry) Status(stationID string) (StationStatus, error) {
	s, err := r.station(stationID)
	if err != nil {
		return StationStatus{}, err
	}
	return s.status(), nil
}

func (s *Station) status() StationStatus {
	occ := make([]string, 0, len(s.occupants))
	for id := range s.occupants {
		occ = append(occ, id)
	}
	sort.Strings(occ)
	return StationStatus{
		ID:            s.ID,
		Location:      s.Location.ID,
		MaxSlots:      s.MaxSlots,
		Occupants:     occ,
		Queue:         append([]string{}, s.queue...),
		Operational:   s.Operational,
		Utilization:   float64(len(s.occupants)) / float64(s.MaxSlots),
		TotalSessions: s.totalSessions,
		TotalEnergy:   s.totalEnergy,
	}
}
