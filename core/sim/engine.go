// Package sim runs the dispatch core on a single logical clock.
//
// Every tick advances simulated time by the wall-clock tick interval times
// the speed multiplier. Ticks, queued commands and generator arrivals are
// all applied on one goroutine; callers from other goroutines go through
// Exec, which hands the command to that goroutine and waits for its result.
package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/agv/core/battery"
	"github.com/kilianp07/agv/core/dispatch"
	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/logger"
	"github.com/kilianp07/agv/core/order"
	"github.com/kilianp07/agv/core/routing"
	"github.com/kilianp07/agv/core/status"
	"github.com/kilianp07/agv/internal/eventbus"
)

var (
	ErrRunning = errors.New("simulation already running")
	ErrPaused  = errors.New("simulation paused")
)

// Observer receives the snapshot and the events of every finished tick. It
// runs on the simulation goroutine and must not block or call back into
// the engine.
type Observer interface {
	Observe(snap status.Snapshot, evs []events.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(status.Snapshot, []events.Event)

func (f ObserverFunc) Observe(s status.Snapshot, evs []events.Event) { f(s, evs) }

type command struct {
	fn   func() error
	done chan error
}

// Engine owns the scheduler and the generator.
type Engine struct {
	cfg    Config
	runID  string
	sched  *dispatch.Scheduler
	gen    *order.Generator
	outbox *eventbus.Outbox[events.Event]
	bus    *eventbus.TypedBus[events.Event]
	log    logger.Logger

	m       routing.Map
	battery battery.Config

	observers []Observer
	inbox     chan command

	mu      sync.Mutex
	epoch   time.Time
	elapsed time.Duration

	// gate orders inbox sends against the end of Run; halt is closed when
	// Run starts to stop.
	gate    sync.RWMutex
	halt    chan struct{}
	running atomic.Bool
	paused  atomic.Bool
	speed   atomic.Uint64
	last    atomic.Pointer[status.Snapshot]
}

// New assembles an engine. The outbox must be the one the scheduler pushes
// to.
func New(cfg Config, sched *dispatch.Scheduler, gen *order.Generator, out *eventbus.Outbox[events.Event], log logger.Logger) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}
	e := &Engine{
		cfg:    cfg,
		runID:  uuid.NewString(),
		sched:  sched,
		gen:    gen,
		outbox: out,
		bus:    eventbus.NewTyped[events.Event](),
		log:    log,
		inbox:  make(chan command, cfg.InboxSize),
		epoch:  cfg.Epoch(),
		m:      gen.Map(),
	}
	e.battery.SetDefaults()
	e.speed.Store(math.Float64bits(cfg.Speed))
	sched.SetClock(e.epoch)
	e.publish()
	return e, nil
}

// Scheduler exposes the dispatch core. It must only be used from Exec or
// while the engine is stopped.
func (e *Engine) Scheduler() *dispatch.Scheduler { return e.sched }

// RunID identifies this simulation run.
func (e *Engine) RunID() string { return e.runID }

// Events returns the bus that carries the events of every tick.
func (e *Engine) Events() *eventbus.TypedBus[events.Event] { return e.bus }

// AddObserver registers an observer. It must be called before Run or Step.
func (e *Engine) AddObserver(o Observer) { e.observers = append(e.observers, o) }

// Now returns the current simulated time.
func (e *Engine) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch.Add(e.elapsed)
}

// Pause suspends tick advancement. No simulated time accrues while paused.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume restarts tick advancement.
func (e *Engine) Resume() { e.paused.Store(false) }

// Paused reports whether the simulation is paused.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Speed returns the simulated seconds per wall-clock second.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed changes the speed multiplier from the next tick on.
func (e *Engine) SetSpeed(x float64) error {
	if x <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return errors.New("speed must be positive")
	}
	e.speed.Store(math.Float64bits(x))
	return nil
}

// Snapshot returns the state published after the last tick or command.
func (e *Engine) Snapshot() status.Snapshot {
	if s := e.last.Load(); s != nil {
		return *s
	}
	return status.Snapshot{}
}

// Run ticks at the configured wall-clock interval until ctx is done.
// Queued commands are applied before each tick, also while paused.
func (e *Engine) Run(ctx context.Context) error {
	e.gate.Lock()
	if e.running.Load() {
		e.gate.Unlock()
		return ErrRunning
	}
	e.running.Store(true)
	e.halt = make(chan struct{})
	e.gate.Unlock()
	defer e.stop()
	interval := e.cfg.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	e.log.Infof("simulation %s running, tick %s, speed %.2f", e.runID, interval, e.Speed())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.mu.Lock()
			e.drainInbox()
			if !e.paused.Load() {
				e.tick(e.dt())
			}
			e.mu.Unlock()
		}
	}
}

// stop marks the loop as gone and applies the commands queued before.
func (e *Engine) stop() {
	close(e.halt)
	e.gate.Lock()
	e.running.Store(false)
	e.gate.Unlock()
	for {
		select {
		case cmd := <-e.inbox:
			e.apply(cmd)
		default:
			return
		}
	}
}

func (e *Engine) apply(cmd command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run(cmd)
}

// drainInbox applies the pending commands. e.mu must be held.
func (e *Engine) drainInbox() {
	for {
		select {
		case cmd := <-e.inbox:
			e.run(cmd)
		default:
			return
		}
	}
}

func (e *Engine) run(cmd command) {
	err := cmd.fn()
	e.publish()
	cmd.done <- err
}

func (e *Engine) dt() time.Duration {
	return time.Duration(float64(e.cfg.TickInterval()) * e.Speed())
}

// Step advances n ticks synchronously. It is meant for headless runs and
// tests and fails while Run is active or the simulation is paused.
func (e *Engine) Step(n int) error {
	if e.running.Load() {
		return ErrRunning
	}
	if e.paused.Load() {
		return ErrPaused
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	dt := e.dt()
	for i := 0; i < n; i++ {
		e.tick(dt)
	}
	return nil
}

// Exec runs fn on the simulation goroutine between two ticks and returns
// its error. Without a running loop fn is applied directly.
func (e *Engine) Exec(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	queued, err := e.enqueue(ctx, cmd)
	if err != nil {
		return err
	}
	if !queued {
		e.apply(cmd)
		return <-cmd.done
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue hands cmd to the running loop. It reports false when no loop will
// drain the inbox, in which case the caller applies cmd itself.
func (e *Engine) enqueue(ctx context.Context, cmd command) (bool, error) {
	e.gate.RLock()
	defer e.gate.RUnlock()
	if !e.running.Load() {
		return false, nil
	}
	select {
	case e.inbox <- cmd:
		return true, nil
	case <-e.halt:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// tick advances the clock by dt. e.mu must be held.
func (e *Engine) tick(dt time.Duration) {
	e.elapsed += dt
	now := e.epoch.Add(e.elapsed)
	e.sched.Begin(now)
	for _, o := range e.gen.Poll(now) {
		if err := e.sched.AddOrder(o, false); err != nil {
			e.log.Errorf("add generated order %s: %v", o.ID, err)
		}
	}
	e.sched.Tick(dt)
	e.publish()
}

// publish drains the outbox, fans the events out and refreshes the
// snapshot. e.mu must be held.
func (e *Engine) publish() {
	evs := e.outbox.Drain()
	for _, ev := range evs {
		e.bus.Publish(ev)
	}
	snap := e.snapshot()
	e.last.Store(&snap)
	for _, o := range e.observers {
		o.Observe(snap, evs)
	}
}

func (e *Engine) snapshot() status.Snapshot {
	q := e.sched.Queue()
	live := q.Live()
	now := e.epoch.Add(e.elapsed)
	snap := status.Snapshot{
		RunID:          e.runID,
		Tick:           e.sched.TickCount(),
		Time:           now,
		ElapsedSeconds: e.elapsed.Seconds(),
		Paused:         e.paused.Load(),
		Speed:          e.Speed(),
		Generator: status.GeneratorStatus{
			Running:       e.gen.Running(),
			RatePerMinute: e.gen.Rate(),
			Counts:        e.gen.Counts(),
		},
		Stations: e.sched.Registry().Stations(),
		Stats:    e.sched.Stats(),
		Recent:   e.sched.History(),
	}
	if next, ok := e.gen.NextArrival(); ok {
		snap.Generator.NextArrival = &next
	}
	for _, v := range e.sched.Vehicles() {
		snap.Vehicles = append(snap.Vehicles, v.Status())
	}
	for _, o := range live {
		snap.Orders = append(snap.Orders, o.Record(now))
	}
	return snap
}
