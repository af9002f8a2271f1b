package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/agv/core/agent"
	"github.com/kilianp07/agv/core/dispatch"
	"github.com/kilianp07/agv/core/events"
	coremetrics "github.com/kilianp07/agv/core/metrics"
	"github.com/kilianp07/agv/core/status"
)

type lineServer struct {
	mu     sync.Mutex
	bodies []string
	srv    *httptest.Server
}

func newLineServer(t *testing.T) *lineServer {
	ls := &lineServer{}
	ls.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		ls.mu.Lock()
		ls.bodies = append(ls.bodies, strings.TrimSpace(string(data)))
		ls.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ls.srv.Close)
	return ls
}

func (ls *lineServer) lines() []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	var out []string
	for _, b := range ls.bodies {
		out = append(out, strings.Split(b, "\n")...)
	}
	return out
}

func TestInfluxSink_RecordSnapshot(t *testing.T) {
	ls := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: ls.srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	snap := status.Snapshot{
		RunID: "run",
		Time:  now,
		Vehicles: []agent.Status{
			{ID: "AGV-01", State: "idle", BatteryPercent: 80.5, OrdersCompleted: 2, DistanceTraveled: 12.25},
		},
		Stats: dispatch.Statistics{Strategy: "FIFO", TotalAssigned: 3, SuccessRate: 0.75},
	}
	if err := sink.RecordSnapshot(snap); err != nil {
		t.Fatalf("record error: %v", err)
	}
	vehicle := write.NewPointWithMeasurement("vehicle_state").
		AddTag("vehicle_id", "AGV-01").
		AddTag("run_id", "run").
		AddTag("state", "idle").
		AddField("battery_percent", 80.5).
		AddField("carrying", false).
		AddField("orders_completed", 2).
		AddField("distance", 12.25).
		SetTime(now)
	lines := ls.lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %#v", lines)
	}
	if exp := strings.TrimSpace(write.PointToLineProtocol(vehicle, time.Nanosecond)); lines[0] != exp {
		t.Errorf("unexpected vehicle line: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "fleet_stats,run_id=run,strategy=FIFO ") {
		t.Errorf("unexpected stats line: %s", lines[1])
	}
}

func TestInfluxSink_RecordEvents(t *testing.T) {
	ls := newLineServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: ls.srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	evs := []events.Event{
		events.OrderGenerated{Header: events.Header{At: now}},
		events.OrderExpired{Header: events.Header{At: now}, OrderID: "ORD-1"},
	}
	if err := sink.RecordEvents(evs); err != nil {
		t.Fatalf("record error: %v", err)
	}
	exp := strings.TrimSpace(write.PointToLineProtocol(finished("expired", "ORD-1", "", now), time.Nanosecond))
	lines := ls.lines()
	if len(lines) != 1 || lines[0] != exp {
		t.Errorf("unexpected lines: %#v", lines)
	}
	if err := sink.RecordEvents([]events.Event{events.OrderGenerated{}}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if len(ls.lines()) != 1 {
		t.Errorf("expected no write for untracked events")
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink on failing health check, got %T", sink)
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
