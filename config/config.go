package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/multierr"

	"github.com/kilianp07/agv/api"
	"github.com/kilianp07/agv/core/battery"
	"github.com/kilianp07/agv/core/charging"
	"github.com/kilianp07/agv/core/dispatch"
	"github.com/kilianp07/agv/core/eventlog"
	"github.com/kilianp07/agv/core/metrics"
	"github.com/kilianp07/agv/core/order"
	"github.com/kilianp07/agv/core/routing"
	"github.com/kilianp07/agv/core/sim"
	"github.com/kilianp07/agv/infra/logger"
	"github.com/kilianp07/agv/infra/mqtt"
)

// EnvPrefix prefixes environment overrides, e.g. AGV_SIMULATION__SPEED.
const EnvPrefix = "AGV_"

// DefaultVehicles is the fleet size when simulation.vehicles is absent.
const DefaultVehicles = 4

type Config struct {
	Simulation sim.Config            `json:"simulation"`
	Battery    battery.Config        `json:"battery"`
	Map        routing.Config        `json:"map"`
	Charging   charging.Config       `json:"charging"`
	Generator  order.GeneratorConfig `json:"generator"`
	Scheduler  dispatch.Config       `json:"scheduler"`
	Logging    logger.Config         `json:"logging"`
	EventLog   eventlog.Config       `json:"eventlog"`
	Metrics    metrics.Config        `json:"metrics"`
	MQTT       mqtt.Config           `json:"mqtt"`
	API        api.Config            `json:"api"`
	Telemetry  TelemetryConfig       `json:"telemetry"`
}

// Load reads the file at path, when given, then applies environment
// overrides and defaults, and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if !k.Exists("simulation.vehicles") {
		cfg.Simulation.Vehicles = DefaultVehicles
	}
	if !k.Exists("generator.rate_per_minute") {
		cfg.Generator.RatePerMinute = order.DefaultRatePerMinute
	}
	if !k.Exists("generator.enabled") {
		cfg.Generator.Enabled = true
	}
	for _, key := range k.Cut("battery").Keys() {
		cfg.Battery.Explicit = append(cfg.Battery.Explicit, key)
	}
	cfg.Generator.PriorityWeights = upperKeys(cfg.Generator.PriorityWeights)
	cfg.Generator.SlackSeconds = upperKeys(cfg.Generator.SlackSeconds)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Simulation.Vehicles = DefaultVehicles
	cfg.Generator.Enabled = true
	cfg.Generator.RatePerMinute = order.DefaultRatePerMinute
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every section. The charging section depends on the map
// and is completed when the simulation is built.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Battery.SetDefaults()
	c.Map.SetDefaults()
	c.Generator.SetDefaults()
	c.Scheduler.SetDefaults()
	c.EventLog.SetDefaults()
	c.MQTT.SetDefaults()
	c.API.SetDefaults()
	c.Telemetry.SetDefaults()
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports the errors of all sections at once.
func (c Config) Validate() error {
	var err error
	section := func(name string, e error) {
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", name, e))
		}
	}
	section("simulation", c.Simulation.Validate())
	section("battery", c.Battery.Validate())
	section("map", c.Map.Validate())
	section("charging", c.Charging.Validate())
	section("generator", c.Generator.Validate())
	section("scheduler", c.Scheduler.Validate())
	section("eventlog", c.EventLog.Validate())
	section("mqtt", c.MQTT.Validate())
	section("telemetry", c.Telemetry.Validate())
	return err
}

// SimOptions returns the simulation part of the configuration.
func (c Config) SimOptions() sim.Options {
	return sim.Options{
		Sim:       c.Simulation,
		Battery:   c.Battery,
		Routing:   c.Map,
		Charging:  c.Charging,
		Generator: c.Generator,
		Dispatch:  c.Scheduler,
	}
}

func upperKeys(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}
