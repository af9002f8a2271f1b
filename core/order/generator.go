package order

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/agv/core/logger"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/routing"
)

// ErrEmptyPool is returned when the map offers no pickup or dropoff node.
var ErrEmptyPool = errors.New("empty location pool")

// Overrides replace parts of a manually generated order. Zero fields are
// drawn like a stochastic arrival.
type Overrides struct {
	Pickup   *model.Location
	Dropoff  *model.Location
	Priority model.Priority
	Slack    *time.Duration
}

// Generator produces orders following a Poisson arrival process in
// simulated time. Arrivals are only materialised by Poll, which the
// simulation calls once per tick.
type Generator struct {
	cfg      GeneratorConfig
	pools    routing.Map
	src      rand.Source
	rng      *rand.Rand
	priority distuv.Categorical
	slack    map[model.Priority]time.Duration
	log      logger.Logger

	rate    float64
	running bool
	next    time.Time
	seq     int
	counts  map[model.Priority]int
}

// NewGenerator creates a stopped generator. The pools must contain at least
// one pickup and one dropoff location.
func NewGenerator(cfg GeneratorConfig, pools routing.Map, log logger.Logger) (*Generator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pools == nil || len(pools.PickupLocations()) == 0 || len(pools.DropoffLocations()) == 0 {
		return nil, ErrEmptyPool
	}
	if log == nil {
		log = logger.Nop{}
	}
	seed := uint64(cfg.Seed)
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	g := &Generator{
		cfg:      cfg,
		pools:    pools,
		src:      src,
		rng:      rand.New(src),
		priority: distuv.NewCategorical(cfg.weights(), src),
		slack:    make(map[model.Priority]time.Duration, len(model.Priorities)),
		log:      log,
		rate:     cfg.RatePerMinute,
		counts:   make(map[model.Priority]int),
	}
	for _, p := range model.Priorities {
		g.slack[p] = time.Duration(cfg.SlackSeconds[p.String()] * float64(time.Second))
	}
	return g, nil
}

// Start arms the arrival clock from now. Time spent stopped is never
// caught up.
func (g *Generator) Start(now time.Time) {
	g.running = true
	g.schedule(now)
}

// Stop disarms the arrival clock.
func (g *Generator) Stop() { g.running = false }

// Map returns the location pools orders are drawn from.
func (g *Generator) Map() routing.Map { return g.pools }

// Running reports whether stochastic arrivals are enabled.
func (g *Generator) Running() bool { return g.running }

// Rate returns the mean arrival rate in orders per minute.
func (g *Generator) Rate() float64 { return g.rate }

// SetRate changes the arrival rate and redraws the next arrival from now.
func (g *Generator) SetRate(perMinute float64, now time.Time) error {
	if perMinute < 0 {
		return fmt.Errorf("rate must not be negative")
	}
	g.rate = perMinute
	if g.running {
		g.schedule(now)
	}
	return nil
}

// NextArrival returns the scheduled time of the next stochastic order.
// ok is false when no arrival is scheduled.
func (g *Generator) NextArrival() (time.Time, bool) {
	if !g.running || g.rate <= 0 {
		return time.Time{}, false
	}
	return g.next, true
}

// Poll returns every order whose arrival time is at or before now, each
// created at its own arrival instant.
func (g *Generator) Poll(now time.Time) []*model.Order {
	if !g.running || g.rate <= 0 {
		return nil
	}
	var out []*model.Order
	for !g.next.After(now) {
		out = append(out, g.build(g.next, Overrides{}, false))
		g.next = g.next.Add(g.interArrival())
	}
	return out
}

// Generate builds an order immediately, bypassing the arrival clock.
func (g *Generator) Generate(now time.Time, ov Overrides) (*model.Order, error) {
	if ov.Priority != 0 && !ov.Priority.Valid() {
		return nil, fmt.Errorf("invalid priority %d", int(ov.Priority))
	}
	return g.build(now, ov, true), nil
}

// Counts returns how many orders were built per priority.
func (g *Generator) Counts() map[string]int {
	out := make(map[string]int, len(g.counts))
	for p, n := range g.counts {
		out[p.String()] = n
	}
	return out
}

func (g *Generator) schedule(now time.Time) {
	if g.rate <= 0 {
		return
	}
	g.next = now.Add(g.interArrival())
}

func (g *Generator) interArrival() time.Duration {
	exp := distuv.Exponential{Rate: g.rate / 60, Src: g.src}
	d := time.Duration(exp.Rand() * float64(time.Second))
	if d <= 0 {
		d = time.Nanosecond
	}
	return d
}

func (g *Generator) build(at time.Time, ov Overrides, manual bool) *model.Order {
	g.seq++
	pickup := g.pick(g.pools.PickupLocations())
	if ov.Pickup != nil {
		pickup = *ov.Pickup
	}
	dropoff := g.pick(g.pools.DropoffLocations())
	if ov.Dropoff != nil {
		dropoff = *ov.Dropoff
	}
	prio := ov.Priority
	if prio == 0 {
		prio = model.Priorities[int(g.priority.Rand())]
	}
	slack := g.slack[prio]
	if ov.Slack != nil {
		slack = *ov.Slack
	}
	g.counts[prio]++
	source := "poisson"
	if manual {
		source = "manual"
	}
	ordersGenerated.WithLabelValues(prio.String(), source).Inc()
	id := fmt.Sprintf("%s-%06d", g.cfg.IDPrefix, g.seq)
	o := model.NewOrder(id, pickup, dropoff, prio, at, slack)
	g.log.Debugw("order generated", map[string]any{
		"order_id": id, "pickup": pickup.ID, "dropoff": dropoff.ID, "priority": prio.String(),
	})
	return o
}

func (g *Generator) pick(pool []model.Location) model.Location {
	if len(pool) == 0 {
		return model.Location{}
	}
	return pool[g.rng.IntN(len(pool))]
}
