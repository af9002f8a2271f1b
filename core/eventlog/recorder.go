package eventlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/logger"
	"github.com/kilianp07/agv/core/status"
)

// Config selects the event log backend. An empty backend disables it.
type Config struct {
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills rotation settings and the file path.
func (c *Config) SetDefaults() {
	c.Backend = strings.ToLower(c.Backend)
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "agv-events.db"
		default:
			c.Path = "agv-events.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case "", "jsonl", "rotating", "sqlite":
		return nil
	default:
		return fmt.Errorf("unknown eventlog backend %q", c.Backend)
	}
}

// Open returns the configured store, or nil when the log is disabled.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	switch cfg.Backend {
	case "":
		return nil, nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown eventlog backend %q", cfg.Backend)
	}
}

// Recorder appends the events of every tick to a Store.
type Recorder struct {
	store Store
	runID string
	log   logger.Logger
}

func NewRecorder(store Store, runID string, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop{}
	}
	return &Recorder{store: store, runID: runID, log: log}
}

// Observe persists evs. Failures are logged and do not stop the run.
func (r *Recorder) Observe(_ status.Snapshot, evs []events.Event) {
	if len(evs) == 0 {
		return
	}
	ctx := context.Background()
	recs := make([]Record, 0, len(evs))
	for _, ev := range evs {
		rec, err := NewRecord(r.runID, ev)
		if err != nil {
			r.log.Errorf("encode event %s: %v", ev.Name(), err)
			continue
		}
		recs = append(recs, rec)
	}
	if b, ok := r.store.(BatchAppender); ok {
		if err := b.AppendBatch(ctx, recs); err != nil {
			r.log.Errorf("append %d events: %v", len(recs), err)
		}
		return
	}
	for _, rec := range recs {
		if err := r.store.Append(ctx, rec); err != nil {
			r.log.Errorf("append event %s: %v", rec.Name, err)
		}
	}
}
