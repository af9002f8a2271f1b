package metrics

import (
	"go.uber.org/multierr"

	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/status"
)

// Sink records fleet snapshots for observability purposes.
type Sink interface {
	RecordSnapshot(snap status.Snapshot) error
}

// EventRecorder is implemented by sinks that record individual events.
type EventRecorder interface {
	RecordEvents(evs []events.Event) error
}

// NopSink implements Sink and EventRecorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSnapshot(status.Snapshot) error { return nil }
func (NopSink) RecordEvents([]events.Event) error    { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSnapshot forwards the snapshot to every sink. A failing sink does
// not stop the others; the errors are combined.
func (m *MultiSink) RecordSnapshot(snap status.Snapshot) error {
	var err error
	for _, s := range m.Sinks {
		err = multierr.Append(err, s.RecordSnapshot(snap))
	}
	return err
}

// RecordEvents forwards events to the sinks that record them.
func (m *MultiSink) RecordEvents(evs []events.Event) error {
	var err error
	for _, s := range m.Sinks {
		if rec, ok := s.(EventRecorder); ok {
			err = multierr.Append(err, rec.RecordEvents(evs))
		}
	}
	return err
}
