package metrics

import (
	"errors"
	"testing"

	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/factory"
	"github.com/kilianp07/agv/core/status"
)

type recordSink struct {
	snaps, events int
	err           error
}

func (r *recordSink) RecordSnapshot(status.Snapshot) error {
	r.snaps++
	return r.err
}

func (r *recordSink) RecordEvents(evs []events.Event) error {
	r.events += len(evs)
	return nil
}

type snapshotOnly struct{ snaps int }

func (s *snapshotOnly) RecordSnapshot(status.Snapshot) error {
	s.snaps++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{err: errors.New("down")}
	s2 := &snapshotOnly{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordSnapshot(status.Snapshot{}); err == nil {
		t.Fatalf("expected error from failing sink")
	}
	if s1.snaps != 1 || s2.snaps != 1 {
		t.Fatalf("snapshot not forwarded to every sink")
	}
	if err := m.RecordEvents([]events.Event{events.OrderExpired{OrderID: "o"}}); err != nil {
		t.Fatalf("record events: %v", err)
	}
	if s1.events != 1 {
		t.Fatalf("events not forwarded")
	}
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
	if err := RegisterSink("test-record", func(map[string]any) (Sink, error) { return &recordSink{}, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	s, err = NewSink([]factory.ModuleConfig{{Type: "test-record"}, {Type: "test-record"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*MultiSink)
	if !ok || len(m.Sinks) != 2 {
		t.Fatalf("expected MultiSink with 2 sinks, got %T", s)
	}
	if _, err := NewSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
