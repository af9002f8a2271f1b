// Package dispatch matches pending orders with vehicles and drives the
// vehicles through their tasks and charging sessions.
//
// The scheduler is single threaded: every method must be called from the
// goroutine that runs the ticks. Notifications are pushed to an outbox that
// the owner drains after each tick.
package dispatch

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/battery"
	"github.com/kilianp07/agv/core/charging"
	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/logger"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/order"
	"github.com/kilianp07/agv/core/routing"
	"github.com/kilianp07/agv/internal/eventbus"
)

var (
	ErrUnknownVehicle   = errors.New("unknown vehicle")
	ErrDuplicateVehicle = errors.New("duplicate vehicle")
	ErrVehicleNotIdle   = errors.New("vehicle not idle")
)

// Scheduler owns the fleet and assigns orders from the queue.
type Scheduler struct {
	cfg      Config
	strategy order.Strategy
	queue    *order.Queue
	registry *charging.Registry
	est      routing.Estimator
	outbox   *eventbus.Outbox[events.Event]
	log      logger.Logger

	vehicles map[string]*agent.Vehicle
	ids      []string
	session  map[string]float64 // vehicle id -> energy of the current charge

	stats   *counters
	history []model.OrderRecord

	now  time.Time
	tick uint64
}

// NewScheduler creates a scheduler around a queue and a charging registry.
// A nil outbox discards events.
func NewScheduler(cfg Config, q *order.Queue, reg *charging.Registry, est routing.Estimator,
	out *eventbus.Outbox[events.Event], log logger.Logger) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy, _ := order.ParseStrategy(cfg.Strategy)
	if out == nil {
		out = eventbus.NewOutbox[events.Event]()
	}
	if log == nil {
		log = logger.Nop{}
	}
	q.SetBalancedWeights(cfg.Balanced)
	return &Scheduler{
		cfg:      cfg,
		strategy: strategy,
		queue:    q,
		registry: reg,
		est:      est,
		outbox:   out,
		log:      log,
		vehicles: map[string]*agent.Vehicle{},
		session:  map[string]float64{},
		stats:    newCounters(cfg.StatsWindow),
	}, nil
}

// Begin opens a tick at simulated time now. Commands and arrivals applied
// before Tick are stamped with this tick.
func (s *Scheduler) Begin(now time.Time) uint64 {
	s.now = now
	s.tick++
	return s.tick
}

// SetClock sets the simulated time without opening a tick.
func (s *Scheduler) SetClock(now time.Time) { s.now = now }

// Now returns the simulated time of the current tick.
func (s *Scheduler) Now() time.Time { return s.now }

// TickCount returns the number of ticks begun so far.
func (s *Scheduler) TickCount() uint64 { return s.tick }

func (s *Scheduler) header() events.Header {
	return events.Header{At: s.now, Tick: s.tick}
}

func (s *Scheduler) emit(e events.Event) { s.outbox.Push(e) }

// Tick advances every vehicle by dt, serves charging requests, sweeps
// expired orders at its cadence and runs the assignment loop.
func (s *Scheduler) Tick(dt time.Duration) {
	arrived := s.updateVehicles(dt)
	s.serveCharging(arrived)
	if s.tick%uint64(s.cfg.ExpirySweepTicks) == 0 {
		s.sweep()
	}
	if s.tick%uint64(s.cfg.AssignmentIntervalTicks) == 0 {
		s.assign()
	}
	s.collect()
}

// AddVehicle adds a vehicle to the fleet.
func (s *Scheduler) AddVehicle(v *agent.Vehicle) error {
	if v == nil || v.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if _, ok := s.vehicles[v.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateVehicle, v.ID)
	}
	s.vehicles[v.ID] = v
	s.ids = append(s.ids, v.ID)
	sort.Strings(s.ids)
	return nil
}

// RemoveVehicle takes a vehicle out of the fleet. An assigned order goes
// back to Pending and a charging slot is handed to the next in line. A
// vehicle carrying cargo cannot be removed.
func (s *Scheduler) RemoveVehicle(id string) error {
	v, ok := s.vehicles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, id)
	}
	if v.Carrying {
		return fmt.Errorf("%w: %s carries order %s", ErrVehicleNotIdle, id, v.OrderID)
	}
	if v.OrderID != "" {
		if err := s.release(v); err != nil {
			return err
		}
	}
	if v.StationID != "" {
		s.leaveStation(v, false)
	}
	delete(s.vehicles, id)
	for i, vid := range s.ids {
		if vid == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	s.emit(events.VehicleRemoved{Header: s.header(), VehicleID: id})
	s.log.Infof("vehicle %s removed", id)
	return nil
}

// Vehicle returns a fleet member.
func (s *Scheduler) Vehicle(id string) (*agent.Vehicle, bool) {
	v, ok := s.vehicles[id]
	return v, ok
}

// Vehicles returns the fleet ordered by id.
func (s *Scheduler) Vehicles() []*agent.Vehicle {
	out := make([]*agent.Vehicle, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.vehicles[id])
	}
	return out
}

// Queue returns the order queue.
func (s *Scheduler) Queue() *order.Queue { return s.queue }

// Registry returns the charging registry.
func (s *Scheduler) Registry() *charging.Registry { return s.registry }

// AddOrder puts an order in the queue.
func (s *Scheduler) AddOrder(o *model.Order, manual bool) error {
	if err := s.queue.AddOrder(o); err != nil {
		return err
	}
	s.emit(events.OrderGenerated{Header: s.header(), Order: o.Record(s.now), Manual: manual})
	return nil
}

// Strategy returns the active selection strategy.
func (s *Scheduler) Strategy() order.Strategy { return s.strategy }

// SetStrategy changes the selection strategy.
func (s *Scheduler) SetStrategy(st order.Strategy) {
	s.strategy = st
	s.log.Infof("strategy set to %s", st)
}

// SetBalancedWeights changes the BALANCED weights.
func (s *Scheduler) SetBalancedWeights(w order.BalancedWeights) {
	s.cfg.Balanced = w
	s.queue.SetBalancedWeights(w)
}

// SetScoreWeights changes the vehicle score weights.
func (s *Scheduler) SetScoreWeights(w ScoreWeights) {
	if w.DistanceRef <= 0 {
		w.DistanceRef = s.cfg.Score.DistanceRef
	}
	s.cfg.Score = w
}

// ScoreWeights returns the vehicle score weights.
func (s *Scheduler) ScoreWeights() ScoreWeights { return s.cfg.Score }

func (s *Scheduler) updateVehicles(dt time.Duration) []*agent.Vehicle {
	var arrived []*agent.Vehicle
	for _, id := range s.ids {
		v := s.vehicles[id]
		r := v.Update(dt, s.est)
		if r.Alert != battery.AlertNone {
			s.emit(events.BatteryAlert{Header: s.header(), VehicleID: id, Level: r.Alert.String(), Percent: v.Battery.Percent()})
		}
		if r.Energy > 0 {
			s.registry.RecordEnergy(v.StationID, r.Energy)
			s.session[id] += r.Energy
		}
		if r.PickedUp {
			if _, err := s.queue.StartOrder(id, s.now); err != nil {
				s.log.Errorf("pickup of %s by %s: %v", v.OrderID, id, err)
			}
			s.emit(events.OrderPickedUp{Header: s.header(), OrderID: v.OrderID, VehicleID: id})
		}
		switch {
		case r.Blocked:
			s.stats.blocked++
			vehiclesBlocked.Inc()
			s.emit(events.VehicleBlocked{Header: s.header(), VehicleID: id, OrderID: v.OrderID, Reason: v.BlockReason, Charge: v.Battery.Charge()})
			s.log.Warnf("vehicle %s blocked: %s", id, v.BlockReason)
		case r.Delivered:
			s.deliver(v)
		case r.ChargeComplete:
			s.leaveStation(v, true)
		case r.AtStation:
			arrived = append(arrived, v)
		}
	}
	return arrived
}

func (s *Scheduler) deliver(v *agent.Vehicle) {
	o, err := s.queue.CompleteOrder(v.ID, s.now)
	if err != nil {
		s.log.Errorf("completion by %s: %v", v.ID, err)
		v.Unbind()
		return
	}
	v.FinishOrder()
	s.emit(events.OrderCompleted{Header: s.header(), OrderID: o.ID, VehicleID: v.ID, TotalSeconds: o.TotalTime().Seconds()})
	s.log.Debugw("order completed", map[string]any{"order_id": o.ID, "vehicle_id": v.ID, "total_seconds": o.TotalTime().Seconds()})
}

// serveCharging handles, in ascending vehicle id, vehicles that reached a
// station this tick and idle vehicles that need charge.
func (s *Scheduler) serveCharging(arrived []*agent.Vehicle) {
	for _, v := range arrived {
		s.requestSlot(v)
	}
	for _, id := range s.ids {
		v := s.vehicles[id]
		if v.State != agent.StateIdle || v.OrderID != "" || !v.Battery.NeedsCharging() {
			continue
		}
		st, err := s.registry.Nearest(v.Position, s.est)
		if err != nil {
			s.log.Debugf("vehicle %s needs charge: %v", id, err)
			continue
		}
		loc, _ := s.registry.Location(st)
		if err := v.GoCharge(st, loc, s.est); err != nil {
			s.log.Errorf("send %s to %s: %v", id, st, err)
		}
	}
}

func (s *Scheduler) requestSlot(v *agent.Vehicle) {
	ok, err := s.registry.AddAGVToCharge(v.StationID, v.ID)
	if err != nil {
		s.log.Warnf("vehicle %s rejected at %s: %v", v.ID, v.StationID, err)
		v.LeaveStation()
		return
	}
	if ok {
		s.startCharging(v, false)
		return
	}
	v.WaitForCharge()
	s.emit(events.ChargingQueued{Header: s.header(), VehicleID: v.ID, StationID: v.StationID,
		Position: s.registry.QueuePosition(v.StationID, v.ID)})
}

func (s *Scheduler) startCharging(v *agent.Vehicle, promoted bool) {
	v.StartCharging(s.registry.Efficiency(v.StationID))
	s.session[v.ID] = 0
	s.emit(events.ChargingAdmitted{Header: s.header(), VehicleID: v.ID, StationID: v.StationID, Promoted: promoted})
	s.emit(events.ChargingStarted{Header: s.header(), VehicleID: v.ID, StationID: v.StationID, Percent: v.Battery.Percent()})
}

// leaveStation frees the vehicle's slot or queue place and starts the
// vehicle promoted in its stead.
func (s *Scheduler) leaveStation(v *agent.Vehicle, completed bool) {
	station := v.StationID
	promoted, err := s.registry.RemoveAGVFromCharge(station, v.ID)
	if err != nil && !errors.Is(err, charging.ErrNotPresent) {
		s.log.Errorf("leave %s: %v", station, err)
	}
	v.LeaveStation()
	if completed {
		s.emit(events.ChargingCompleted{Header: s.header(), VehicleID: v.ID, StationID: station, Energy: s.session[v.ID]})
	}
	delete(s.session, v.ID)
	s.promote(promoted)
}

func (s *Scheduler) promote(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if p, ok := s.vehicles[id]; ok {
			s.startCharging(p, true)
		}
	}
}

// SetStationOperational toggles a charging station. Vehicles promoted when
// it comes back start charging at once.
func (s *Scheduler) SetStationOperational(stationID string, up bool) error {
	promoted, err := s.registry.SetOperational(stationID, up)
	if err != nil {
		return err
	}
	s.promote(promoted...)
	return nil
}

func (s *Scheduler) sweep() int {
	hits := s.queue.CleanExpiredOrders(s.now)
	for _, o := range hits {
		vid := ""
		if v, ok := s.vehicles[o.AssignedVehicle]; ok && v.OrderID == o.ID {
			v.Unbind()
			vid = v.ID
		}
		s.emit(events.OrderExpired{Header: s.header(), OrderID: o.ID, VehicleID: vid})
	}
	if len(hits) > 0 {
		s.log.Infof("%d orders expired", len(hits))
	}
	return len(hits)
}

// CleanExpiredOrders runs the expiry sweep now and returns the number of
// orders expired.
func (s *Scheduler) CleanExpiredOrders() int {
	n := s.sweep()
	s.collect()
	return n
}

func (s *Scheduler) eligible() []*agent.Vehicle {
	var out []*agent.Vehicle
	for _, id := range s.ids {
		if v := s.vehicles[id]; v.Eligible() {
			out = append(out, v)
		}
	}
	return out
}

// assign serves pending orders while eligible vehicles remain. An order no
// vehicle can take ends the loop for this tick.
func (s *Scheduler) assign() {
	for {
		idle := s.eligible()
		if len(idle) == 0 {
			return
		}
		pos := make([]model.Location, len(idle))
		for i, v := range idle {
			pos[i] = v.Position
		}
		o := s.queue.GetNextOrder(s.strategy, order.Selection{Now: s.now, IdleVehicles: pos})
		if o == nil {
			return
		}
		best, score := s.selectVehicle(o, idle)
		if best == nil {
			s.stats.failed++
			assignmentFailures.Inc()
			s.emit(events.AssignmentFailed{Header: s.header(), OrderID: o.ID, Idle: len(idle), Strategy: s.strategy.String()})
			s.log.Debugf("no eligible vehicle for %s among %d idle", o.ID, len(idle))
			return
		}
		if err := s.commit(o, best, score, false); err != nil {
			s.log.Errorf("assign %s to %s: %v", o.ID, best.ID, err)
			return
		}
	}
}

// selectVehicle returns the best scoring feasible vehicle. Ties go to the
// lowest id.
func (s *Scheduler) selectVehicle(o *model.Order, idle []*agent.Vehicle) (*agent.Vehicle, float64) {
	var best *agent.Vehicle
	bestScore := math.Inf(-1)
	for _, v := range idle {
		sc := Score(s.cfg.Score, s.est, v, o)
		if math.IsInf(sc, -1) {
			continue
		}
		if best == nil || sc > bestScore {
			best, bestScore = v, sc
		}
	}
	return best, bestScore
}

// commit binds the order and the vehicle. Either both sides change or
// neither does.
func (s *Scheduler) commit(o *model.Order, v *agent.Vehicle, score float64, forced bool) error {
	if !v.Idle() || v.OrderID != "" {
		return fmt.Errorf("%w: %s", ErrVehicleNotIdle, v.ID)
	}
	if err := s.queue.AssignOrder(o.ID, v.ID, s.now); err != nil {
		return err
	}
	if err := v.Assign(o.ID, o.Pickup, o.Dropoff, s.est); err != nil {
		if _, rerr := s.queue.ReleaseOrder(v.ID); rerr != nil {
			s.log.Errorf("rollback %s: %v", o.ID, rerr)
		}
		return err
	}
	s.stats.assigned++
	if forced {
		s.stats.forced++
	}
	wait := o.WaitTime().Seconds()
	s.stats.wait.add(wait)
	orderWaitSeconds.Observe(wait)
	assignmentsTotal.WithLabelValues(s.strategy.String(), strconv.FormatBool(forced)).Inc()
	s.emit(events.OrderAssigned{Header: s.header(), OrderID: o.ID, VehicleID: v.ID, Score: score, Forced: forced, WaitSeconds: wait})
	s.log.Debugw("order assigned", map[string]any{
		"order_id": o.ID, "vehicle_id": v.ID, "score": score, "forced": forced, "strategy": s.strategy.String(),
	})
	return nil
}

// ForceAssignOrder assigns a pending order to an idle vehicle without
// scoring or battery check. It returns false and changes nothing when the
// order is not pending or the vehicle is not idle.
func (s *Scheduler) ForceAssignOrder(orderID, vehicleID string) bool {
	o, ok := s.queue.Order(orderID)
	if !ok || o.Status != model.StatusPending {
		return false
	}
	v, ok := s.vehicles[vehicleID]
	if !ok || !v.Idle() || v.OrderID != "" {
		return false
	}
	if err := s.commit(o, v, 0, true); err != nil {
		s.log.Warnf("force assign %s to %s: %v", orderID, vehicleID, err)
		return false
	}
	return true
}

// CancelOrder cancels a pending or assigned order and frees its vehicle.
func (s *Scheduler) CancelOrder(orderID, reason string) error {
	o, err := s.queue.CancelOrder(orderID, s.now)
	if err != nil {
		return err
	}
	vid := ""
	if v, ok := s.vehicles[o.AssignedVehicle]; ok && v.OrderID == o.ID {
		v.Unbind()
		vid = v.ID
	}
	s.emit(events.OrderCancelled{Header: s.header(), OrderID: o.ID, VehicleID: vid, Reason: reason})
	s.log.Infof("order %s cancelled: %s", o.ID, reason)
	s.collect()
	return nil
}

// ReassignOrder detaches an assigned order from its vehicle, blocked or
// not, and returns it to Pending for the next assignment loop.
func (s *Scheduler) ReassignOrder(orderID string) error {
	o, ok := s.queue.Order(orderID)
	if !ok {
		return fmt.Errorf("%w: %s", order.ErrUnknownOrder, orderID)
	}
	if o.Status != model.StatusAssigned {
		return &model.TransitionError{OrderID: o.ID, From: o.Status, To: model.StatusPending}
	}
	v, ok := s.vehicles[o.AssignedVehicle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, o.AssignedVehicle)
	}
	return s.release(v)
}

func (s *Scheduler) release(v *agent.Vehicle) error {
	o, err := s.queue.ReleaseOrder(v.ID)
	if err != nil {
		return err
	}
	v.Unbind()
	s.stats.released++
	s.emit(events.OrderReleased{Header: s.header(), OrderID: o.ID, VehicleID: v.ID})
	s.log.Infof("order %s released from %s", o.ID, v.ID)
	return nil
}

// RescueVehicle recharges a blocked vehicle in place by amount.
func (s *Scheduler) RescueVehicle(id string, amount float64) error {
	v, ok := s.vehicles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, id)
	}
	resumed, err := v.Rescue(amount, s.est)
	if err != nil {
		return err
	}
	if resumed {
		s.emit(events.VehicleResumed{Header: s.header(), VehicleID: id})
		s.log.Infof("vehicle %s resumed", id)
	}
	return nil
}

// collect accounts for orders that reached a terminal status.
func (s *Scheduler) collect() {
	for _, o := range s.queue.DrainTerminal() {
		switch o.Status {
		case model.StatusCompleted:
			s.stats.completed++
			s.stats.completion.add(o.TotalTime().Seconds())
		case model.StatusExpired:
			s.stats.expired++
		case model.StatusCancelled:
			s.stats.cancelled++
		}
		orderTotalSeconds.WithLabelValues(o.Status.String()).Observe(o.TotalTime().Seconds())
		s.history = append(s.history, o.Record(s.now))
		if len(s.history) > s.cfg.HistorySize {
			s.history = s.history[len(s.history)-s.cfg.HistorySize:]
		}
	}
}

// History returns the most recent terminal orders, oldest first.
func (s *Scheduler) History() []model.OrderRecord {
	return append([]model.OrderRecord(nil), s.history...)
}

// Stats returns the dispatch statistics.
func (s *Scheduler) Stats() Statistics {
	st := s.stats.snapshot()
	st.Strategy = s.strategy.String()
	st.Queue = s.queue.Counts()
	return st
}
