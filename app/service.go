// Package app wires the simulation engine to its presentation and telemetry
// collaborators.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/kilianp07/agv/api"
	"github.com/kilianp07/agv/config"
	"github.com/kilianp07/agv/core/eventlog"
	coremetrics "github.com/kilianp07/agv/core/metrics"
	coremqtt "github.com/kilianp07/agv/core/mqtt"
	"github.com/kilianp07/agv/core/sim"
	"github.com/kilianp07/agv/core/status"
	"github.com/kilianp07/agv/infra/logger"
	"github.com/kilianp07/agv/infra/metrics"
	"github.com/kilianp07/agv/infra/mqtt"
)

// Service runs a simulation with its API, event log and telemetry.
type Service struct {
	Engine *sim.Engine
	Status *status.MemoryStore

	cfg       *config.Config
	events    eventlog.Store
	sink      coremetrics.Sink
	client    *mqtt.PahoClient
	publisher *mqtt.Publisher
	onOrder   atomic.Pointer[mqtt.OrderHandler]
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	engine, err := sim.Build(cfg.SimOptions(), logger.New("sim"))
	if err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	s := &Service{Engine: engine, Status: status.NewMemoryStore(), cfg: cfg, log: logg}
	s.Status.Set(engine.Snapshot())
	engine.AddObserver(s.Status)

	store, err := eventlog.Open(cfg.EventLog)
	if err != nil {
		return nil, fmt.Errorf("event log: %w", err)
	}
	if store != nil {
		s.events = store
		engine.AddObserver(eventlog.NewRecorder(store, engine.RunID(), logger.New("eventlog")))
	}

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink

	if cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT, s.handleOrder)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.client = client
		s.publisher = mqtt.NewPublisher(client, cfg.MQTT.Topics(), engine.RunID(), cfg.MQTT.QueueSize)
		engine.AddObserver(s.publisher)
	}
	return s, nil
}

// handleOrder forwards MQTT order commands once Run has installed the
// handler. Earlier commands are dropped.
func (s *Service) handleOrder(cmd coremqtt.OrderCommand) {
	h := s.onOrder.Load()
	if h == nil {
		s.log.Warnf("order command %s received before start, dropped", cmd.CommandID)
		return
	}
	(*h)(cmd)
}

// Run starts the simulation and its collaborators and blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				s.log.Errorf("%s: %v", name, err)
			}
		}()
	}

	if s.publisher != nil {
		h := mqtt.NewOrderHandler(ctx, s.Engine.SubmitOrder, s.publisher, 5*time.Second)
		s.onOrder.Store(&h)
		goRun("mqtt publisher", func() error {
			s.publisher.Run(ctx)
			return nil
		})
	}
	metrics.StartEventCollector(ctx, s.Engine.Events(), s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		goRun("prom server", func() error { return metrics.ServeMetrics(ctx, addr, nil) })
	}
	if s.cfg.API.Enabled {
		router := api.NewRouter(api.Deps{
			Engine: s.Engine,
			Status: s.Status,
			Events: s.events,
			Token:  s.cfg.API.Token,
			Log:    logger.New("api"),
		})
		goRun("api server", func() error { return api.Serve(ctx, s.cfg.API.Addr, router, logger.New("api")) })
	}
	if s.cfg.Telemetry.Enabled {
		c := cron.New()
		if _, err := c.AddFunc(s.cfg.Telemetry.Schedule, s.pushTelemetry); err != nil {
			return fmt.Errorf("telemetry schedule: %w", err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	err := s.Engine.Run(ctx)
	wg.Wait()
	return err
}

// pushTelemetry sends the latest snapshot to the metrics sinks and MQTT.
func (s *Service) pushTelemetry() {
	snap := s.Engine.Snapshot()
	if err := s.sink.RecordSnapshot(snap); err != nil {
		s.log.Errorf("record snapshot: %v", err)
	}
	if s.publisher != nil {
		s.publisher.PublishSnapshot(snap)
	}
	s.log.Debugw("telemetry pushed", map[string]any{
		"tick":     snap.Tick,
		"vehicles": len(snap.Vehicles),
		"orders":   len(snap.Orders),
	})
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var err error
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.events != nil {
		err = multierr.Append(err, s.events.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return err
}
