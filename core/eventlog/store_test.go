package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/agv/core/events"
	"github.com/kilianp07/agv/core/model"
	"github.com/kilianp07/agv/core/status"
)

var at = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func sample() []events.Event {
	return []events.Event{
		events.OrderGenerated{Header: events.Header{At: at, Tick: 1}, Order: model.OrderRecord{ID: "ORD-1"}},
		events.OrderAssigned{Header: events.Header{At: at.Add(time.Second), Tick: 2}, OrderID: "ORD-1", VehicleID: "AGV-01"},
		events.ChargingQueued{Header: events.Header{At: at.Add(2 * time.Second), Tick: 3}, VehicleID: "AGV-02", StationID: "CS-1"},
	}
}

func TestNewRecordExtractsRefs(t *testing.T) {
	evs := sample()
	rec, err := NewRecord("run", evs[0])
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Name != "order_generated" || rec.OrderID != "ORD-1" || rec.Tick != 1 || rec.ID == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	rec, _ = NewRecord("run", evs[1])
	if rec.VehicleID != "AGV-01" || rec.OrderID != "ORD-1" {
		t.Fatalf("unexpected refs %+v", rec)
	}
}

func checkStore(t *testing.T, store Store) {
	t.Helper()
	NewRecorder(store, "run-1", nil).Observe(status.Snapshot{}, sample())
	ctx := context.Background()

	all, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 || all[0].Name != "order_generated" || all[2].Name != "charging_queued" {
		t.Fatalf("unexpected records %+v", all)
	}
	if all[1].Tick != 2 || !all[1].At.Equal(at.Add(time.Second)) || len(all[1].Payload) == 0 {
		t.Fatalf("record fields not preserved: %+v", all[1])
	}
	byOrder, _ := store.Query(ctx, Query{OrderID: "ORD-1"})
	if len(byOrder) != 2 {
		t.Fatalf("expected 2 records for ORD-1, got %d", len(byOrder))
	}
	byVehicle, _ := store.Query(ctx, Query{VehicleID: "AGV-02", Name: "charging_queued"})
	if len(byVehicle) != 1 || byVehicle[0].RunID != "run-1" {
		t.Fatalf("unexpected vehicle records %+v", byVehicle)
	}
	window, _ := store.Query(ctx, Query{Start: at.Add(time.Second), End: at.Add(time.Second)})
	if len(window) != 1 || window[0].Name != "order_assigned" {
		t.Fatalf("unexpected window %+v", window)
	}
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	checkStore(t, store)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "events.jsonl"), 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	checkStore(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore("file:events.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	checkStore(t, store)
}

func TestOpen(t *testing.T) {
	store, err := Open(Config{})
	if err != nil || store != nil {
		t.Fatalf("expected disabled log, got %v %v", store, err)
	}
	if err := (Config{Backend: "kafka"}).Validate(); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	store, err = Open(Config{Backend: "JSONL", Path: filepath.Join(t.TempDir(), "e.jsonl")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := store.(*JSONLStore); !ok {
		t.Fatalf("expected jsonl store, got %T", store)
	}
}

// appendOnly hides the batch method of the wrapped store.
type appendOnly struct {
	Store
	appends int
}

func (a *appendOnly) Append(ctx context.Context, rec Record) error {
	a.appends++
	return a.Store.Append(ctx, rec)
}

func TestRecorderWithoutBatch(t *testing.T) {
	inner, err := NewJSONLStore(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = inner.Close() }()
	store := &appendOnly{Store: inner}
	NewRecorder(store, "run", nil).Observe(status.Snapshot{}, sample())
	NewRecorder(store, "run", nil).Observe(status.Snapshot{}, nil)
	if store.appends != 3 {
		t.Fatalf("expected 3 appends, got %d", store.appends)
	}
}
