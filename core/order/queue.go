package order

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/routing"
)

var (
	ErrDuplicateOrder = errors.New("duplicate order id")
	ErrUnknownOrder   = errors.New("unknown order")
	ErrVehicleBusy    = errors.New("vehicle already holds an order")
	ErrNoAssignment   = errors.New("vehicle holds no order")

	ErrInvalidTransition = model.ErrInvalidTransition
)

// Selection carries the context a strategy needs to rank pending orders.
type Selection struct {
	Now          time.Time
	IdleVehicles []model.Location
}

// Counts summarises the queue by status. Terminal counts are cumulative.
type Counts struct {
	Pending    int `json:"pending" yaml:"pending"`
	Assigned   int `json:"assigned" yaml:"assigned"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	Completed  int `json:"completed" yaml:"completed"`
	Cancelled  int `json:"cancelled" yaml:"cancelled"`
	Expired    int `json:"expired" yaml:"expired"`
}

// Total returns every order ever accepted.
func (c Counts) Total() int {
	return c.Pending + c.Assigned + c.InProgress + c.Completed + c.Cancelled + c.Expired
}

// Queue is the owner of record for every order. An order id lives in
// exactly one of the pending set, the assignment map or the terminal
// records.
type Queue struct {
	est      routing.Estimator
	balanced BalancedWeights

	pending  map[string]*model.Order
	assigned map[string]string       // vehicle id -> order id
	active   map[string]*model.Order // order id -> assigned or in-progress order
	terminal []*model.Order
	seen     map[string]struct{}

	completed, cancelled, expired int
}

// NewQueue creates an empty queue. The estimator backs SHORTEST_JOB and
// NEAREST_FIRST.
func NewQueue(est routing.Estimator, balanced BalancedWeights) *Queue {
	if est == nil {
		est = routing.NewGridRouter(routing.MetricEuclidean, 1)
	}
	if balanced.IsZero() {
		balanced = DefaultBalancedWeights()
	}
	return &Queue{
		est:      est,
		balanced: balanced,
		pending:  map[string]*model.Order{},
		assigned: map[string]string{},
		active:   map[string]*model.Order{},
		seen:     map[string]struct{}{},
	}
}

// SetBalancedWeights replaces the BALANCED weights.
func (q *Queue) SetBalancedWeights(w BalancedWeights) { q.balanced = w }

// BalancedWeights returns the BALANCED weights.
func (q *Queue) BalancedWeights() BalancedWeights { return q.balanced }

// AddOrder inserts a pending order. Ids are unique over the queue's
// lifetime, including evicted terminal orders.
func (q *Queue) AddOrder(o *model.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order id is required")
	}
	if _, ok := q.seen[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	if o.Status != model.StatusPending {
		return &model.TransitionError{OrderID: o.ID, From: o.Status, To: model.StatusPending}
	}
	q.seen[o.ID] = struct{}{}
	q.pending[o.ID] = o
	ordersPending.Set(float64(len(q.pending)))
	return nil
}

// Order looks up a live order by id.
func (q *Queue) Order(id string) (*model.Order, bool) {
	if o, ok := q.pending[id]; ok {
		return o, true
	}
	o, ok := q.active[id]
	return o, ok
}

// Assignment returns the order held by a vehicle.
func (q *Queue) Assignment(vehicleID string) (*model.Order, bool) {
	id, ok := q.assigned[vehicleID]
	if !ok {
		return nil, false
	}
	return q.active[id], true
}

// GetNextOrder selects, without removing it, the pending order the
// strategy serves next. Orders whose deadline has been reached are
// skipped; the expiry sweep removes them. Ties break by order id.
func (q *Queue) GetNextOrder(s Strategy, sel Selection) *model.Order {
	cands := q.candidates(sel.Now)
	if len(cands) == 0 {
		return nil
	}
	keys := q.keys(s, cands, sel)
	best := 0
	for i := 1; i < len(cands); i++ {
		if lessKey(keys[i], keys[best]) {
			best = i
		}
	}
	return cands[best]
}

// candidates returns live pending orders sorted by id.
func (q *Queue) candidates(now time.Time) []*model.Order {
	out := make([]*model.Order, 0, len(q.pending))
	for _, o := range q.pending {
		if !o.IsExpired(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// keys computes a lexicographic key per candidate; lower wins.
func (q *Queue) keys(s Strategy, cands []*model.Order, sel Selection) [][]float64 {
	keys := make([][]float64, len(cands))
	rel := func(t time.Time) float64 { return t.Sub(sel.Now).Seconds() }
	if s == StrategyBalanced {
		for i, score := range q.balancedScores(cands, sel.Now) {
			keys[i] = []float64{-score}
		}
		return keys
	}
	for i, o := range cands {
		switch s {
		case StrategyPriority:
			keys[i] = []float64{-float64(o.Priority), rel(o.CreatedAt)}
		case StrategyShortestJob:
			e := q.est.Estimate(o.Pickup, o.Dropoff)
			keys[i] = []float64{e.Duration.Seconds(), e.Distance}
		case StrategyNearestFirst:
			keys[i] = []float64{q.nearestIdle(o.Pickup, sel.IdleVehicles)}
		case StrategyDeadlineFirst:
			keys[i] = []float64{rel(o.Deadline)}
		default:
			keys[i] = []float64{rel(o.CreatedAt)}
		}
	}
	return keys
}

func (q *Queue) nearestIdle(pickup model.Location, idle []model.Location) float64 {
	best := math.Inf(1)
	for _, v := range idle {
		if d := q.est.Estimate(v, pickup).Distance; d < best {
			best = d
		}
	}
	return best
}

// balancedScores combines normalised priority, waiting time and deadline
// urgency. Waiting and urgency are min-max normalised over the candidates.
func (q *Queue) balancedScores(cands []*model.Order, now time.Time) []float64 {
	n := len(cands)
	wait := make([]float64, n)
	remaining := make([]float64, n)
	for i, o := range cands {
		wait[i] = now.Sub(o.CreatedAt).Seconds()
		remaining[i] = o.RemainingTime(now).Seconds()
	}
	minW, maxW := floats.Min(wait), floats.Max(wait)
	minR, maxR := floats.Min(remaining), floats.Max(remaining)
	span := float64(model.PriorityEmergency - model.PriorityLow)

	scores := make([]float64, n)
	for i, o := range cands {
		p := float64(o.Priority-model.PriorityLow) / span
		w := normalise(wait[i], minW, maxW)
		u := 1 - normalise(remaining[i], minR, maxR)
		if maxR == minR {
			u = 0
		}
		scores[i] = q.balanced.Priority*p + q.balanced.Waiting*w + q.balanced.Urgency*u
	}
	return scores
}

func normalise(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

func lessKey(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// AssignOrder moves a pending order into the assignment map.
func (q *Queue) AssignOrder(orderID, vehicleID string, now time.Time) error {
	if _, busy := q.assigned[vehicleID]; busy {
		return fmt.Errorf("%w: %s", ErrVehicleBusy, vehicleID)
	}
	o, ok := q.pending[orderID]
	if !ok {
		if a, live := q.active[orderID]; live {
			return &model.TransitionError{OrderID: orderID, From: a.Status, To: model.StatusAssigned}
		}
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if err := o.Assign(vehicleID, now); err != nil {
		return err
	}
	delete(q.pending, orderID)
	q.active[orderID] = o
	q.assigned[vehicleID] = orderID
	ordersPending.Set(float64(len(q.pending)))
	return nil
}

// StartOrder marks the vehicle's order as picked up.
func (q *Queue) StartOrder(vehicleID string, now time.Time) (*model.Order, error) {
	o, ok := q.Assignment(vehicleID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAssignment, vehicleID)
	}
	if err := o.Start(now); err != nil {
		return nil, err
	}
	return o, nil
}

// CompleteOrder completes the vehicle's order. An order still in Assigned
// passes through InProgress first.
func (q *Queue) CompleteOrder(vehicleID string, now time.Time) (*model.Order, error) {
	o, ok := q.Assignment(vehicleID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAssignment, vehicleID)
	}
	if o.Status == model.StatusAssigned {
		if err := o.Start(now); err != nil {
			return nil, err
		}
	}
	if err := o.Complete(now); err != nil {
		return nil, err
	}
	q.retire(o)
	q.completed++
	return o, nil
}

// CancelOrder cancels a pending or assigned order. The returned order
// still names the vehicle it was assigned to, if any.
func (q *Queue) CancelOrder(orderID string, now time.Time) (*model.Order, error) {
	o, ok := q.Order(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if err := o.Cancel(now); err != nil {
		return nil, err
	}
	q.retire(o)
	q.cancelled++
	return o, nil
}

// ReleaseOrder returns the vehicle's assigned order to the pending set.
func (q *Queue) ReleaseOrder(vehicleID string) (*model.Order, error) {
	o, ok := q.Assignment(vehicleID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAssignment, vehicleID)
	}
	if err := o.Release(); err != nil {
		return nil, err
	}
	delete(q.assigned, vehicleID)
	delete(q.active, o.ID)
	q.pending[o.ID] = o
	ordersPending.Set(float64(len(q.pending)))
	return o, nil
}

// CleanExpiredOrders expires every pending or assigned order whose deadline
// has been reached and returns them in id order. The AssignedVehicle field
// of an expired order names the vehicle it was detached from.
func (q *Queue) CleanExpiredOrders(now time.Time) []*model.Order {
	var hits []*model.Order
	for _, o := range q.pending {
		if o.IsExpired(now) {
			hits = append(hits, o)
		}
	}
	for _, o := range q.active {
		if o.IsExpired(now) {
			hits = append(hits, o)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	for _, o := range hits {
		if err := o.Expire(now); err != nil {
			continue
		}
		q.retire(o)
		q.expired++
	}
	return hits
}

// retire moves an order that just reached a terminal state out of the live
// structures.
func (q *Queue) retire(o *model.Order) {
	delete(q.pending, o.ID)
	if _, ok := q.active[o.ID]; ok {
		delete(q.active, o.ID)
		if q.assigned[o.AssignedVehicle] == o.ID {
			delete(q.assigned, o.AssignedVehicle)
		}
	}
	q.terminal = append(q.terminal, o)
	ordersFinished.WithLabelValues(o.Status.String()).Inc()
	ordersPending.Set(float64(len(q.pending)))
}

// DrainTerminal hands over the terminal orders retired since the last call
// and evicts them.
func (q *Queue) DrainTerminal() []*model.Order {
	out := q.terminal
	q.terminal = nil
	return out
}

// Pending returns pending orders sorted by id.
func (q *Queue) Pending() []*model.Order {
	out := make([]*model.Order, 0, len(q.pending))
	for _, o := range q.pending {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Live returns every pending, assigned or in-progress order sorted by id.
func (q *Queue) Live() []*model.Order {
	out := q.Pending()
	for _, o := range q.active {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts returns the queue summary.
func (q *Queue) Counts() Counts {
	c := Counts{
		Pending:   len(q.pending),
		Completed: q.completed,
		Cancelled: q.cancelled,
		Expired:   q.expired,
	}
	for _, o := range q.active {
		if o.Status == model.StatusInProgress {
			c.InProgress++
		} else {
			c.Assigned++
		}
	}
	return c
}
