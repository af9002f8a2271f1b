package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// TelemetryConfig schedules the wall-clock job pushing snapshots to the
// metrics sinks and MQTT.
type TelemetryConfig struct {
	Enabled         bool   `json:"enabled"`
	Schedule        string `json:"schedule"`
	IntervalSeconds int    `json:"interval_seconds"`
}

func (c *TelemetryConfig) SetDefaults() {
	if c.Schedule == "" {
		c.Schedule = fmt.Sprintf("@every %ds", c.Interval())
	}
}

func (c TelemetryConfig) Interval() int {
	if c.IntervalSeconds <= 0 {
		return 10
	}
	return c.IntervalSeconds
}

// Validate checks the cron expression.
func (c TelemetryConfig) Validate() error {
	if c.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}
	return nil
}
