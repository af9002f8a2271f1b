package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilianp07/agv/core/order"
)

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := write(t, "config.yaml", `simulation:
  tick_ms: 50
  speed: 4
  vehicles: 5
battery:
  preset: conservative
map:
  speed: 2
generator:
  rate_per_minute: 6
  seed: 42
  priority_weights:
    normal: 50
scheduler:
  strategy: DEADLINE_FIRST
  assignment_interval_ticks: 2
eventlog:
  backend: rotating
  path: events.jsonl
metrics:
  sinks:
    - type: "nop"
  prometheus_addr: ":9100"
mqtt:
  enabled: true
  broker: "tcp://broker:1883"
  topic_prefix: "plant"
api:
  enabled: true
  token: "tok"
telemetry:
  enabled: true
  interval_seconds: 5
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"simulation.tick_ms", cfg.Simulation.TickMS, 50},
		{"simulation.speed", cfg.Simulation.Speed, 4.0},
		{"simulation.vehicles", cfg.Simulation.Vehicles, 5},
		{"battery.preset", cfg.Battery.Preset, "conservative"},
		{"battery.low_pct", cfg.Battery.LowPct, 40.0},
		{"map.speed", cfg.Map.Speed, 2.0},
		{"map.locations", len(cfg.Map.Locations) > 0, true},
		{"generator.rate", cfg.Generator.RatePerMinute, 6.0},
		{"generator.enabled", cfg.Generator.Enabled, true},
		{"generator.seed", cfg.Generator.Seed, int64(42)},
		{"generator.weight", cfg.Generator.PriorityWeights["NORMAL"], 50.0},
		{"generator.weight_default", cfg.Generator.PriorityWeights["LOW"], 10.0},
		{"scheduler.strategy", cfg.Scheduler.Strategy, "DEADLINE_FIRST"},
		{"scheduler.interval", cfg.Scheduler.AssignmentIntervalTicks, 2},
		{"eventlog.backend", cfg.EventLog.Backend, "rotating"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://broker:1883"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "plant"},
		{"mqtt.client_id", cfg.MQTT.ClientID, "agv-sim"},
		{"api.addr", cfg.API.Addr, ":8080"},
		{"api.token", cfg.API.Token, "tok"},
		{"telemetry.schedule", cfg.Telemetry.Schedule, "@every 5s"},
		{"logging.level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadJSONAndEnv(t *testing.T) {
	path := write(t, "config.json", `{"generator":{"rate_per_minute":0,"enabled":false},"simulation":{"vehicles":2}}`)
	t.Setenv("AGV_SIMULATION__SPEED", "7.5")
	t.Setenv("AGV_SCHEDULER__STRATEGY", "fifo")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Simulation.Speed != 7.5 {
		t.Errorf("env override not applied: %v", cfg.Simulation.Speed)
	}
	if cfg.Scheduler.Strategy != "fifo" {
		t.Errorf("strategy override not applied: %v", cfg.Scheduler.Strategy)
	}
	if cfg.Generator.RatePerMinute != 0 || cfg.Generator.Enabled {
		t.Errorf("explicit generator settings lost: %+v", cfg.Generator)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Generator.RatePerMinute != order.DefaultRatePerMinute || !cfg.Generator.Enabled {
		t.Errorf("unexpected generator defaults: %+v", cfg.Generator)
	}
	if cfg.Scheduler.Strategy != "BALANCED" {
		t.Errorf("unexpected strategy %s", cfg.Scheduler.Strategy)
	}
	if cfg.Simulation.Vehicles != DefaultVehicles {
		t.Errorf("unexpected fleet size %d", cfg.Simulation.Vehicles)
	}
}

func TestLoadAggregatesErrors(t *testing.T) {
	path := write(t, "bad.yaml", `simulation:
  speed: -1
scheduler:
  strategy: ROUND_ROBIN
eventlog:
  backend: postgres
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"simulation", "scheduler", "eventlog"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load(write(t, "config.toml", "")); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadKeepsExplicitBatteryZeros(t *testing.T) {
	path := write(t, "cfg.yaml", `
battery:
  preset: conservative
  idle_rate: 0
  cargo_rate: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Battery.IdleRate != 0 || cfg.Battery.CargoRate != 0 {
		t.Errorf("explicit zero rates replaced: idle=%v cargo=%v", cfg.Battery.IdleRate, cfg.Battery.CargoRate)
	}
	if cfg.Battery.MovingRate != 0.8 || cfg.Battery.LowPct != 40 {
		t.Errorf("preset values not applied: %+v", cfg.Battery)
	}
	cfg.Battery.SetDefaults()
	if cfg.Battery.IdleRate != 0 {
		t.Errorf("second SetDefaults replaced idle rate: %v", cfg.Battery.IdleRate)
	}
}
