package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/agv/core/events"
	coremetrics "github.com/kilianp07/agv/core/metrics"
	"github.com/kilianp07/agv/core/status"
	"github.com/kilianp07/agv/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes fleet snapshots and order events to an InfluxDB
// instance using the official client. Points carry simulated time.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSnapshot writes one vehicle_state point per vehicle and one
// fleet_stats point.
func (s *InfluxSink) RecordSnapshot(snap status.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(snap.Vehicles)+1)
	for _, v := range snap.Vehicles {
		points = append(points, write.NewPointWithMeasurement("vehicle_state").
			AddTag("vehicle_id", v.ID).
			AddTag("run_id", snap.RunID).
			AddTag("state", v.State).
			AddField("battery_percent", round3(v.BatteryPercent)).
			AddField("carrying", v.Carrying).
			AddField("orders_completed", v.OrdersCompleted).
			AddField("distance", round3(v.DistanceTraveled)).
			SetTime(snap.Time))
	}
	st := snap.Stats
	points = append(points, write.NewPointWithMeasurement("fleet_stats").
		AddTag("run_id", snap.RunID).
		AddTag("strategy", st.Strategy).
		AddField("pending", st.Queue.Pending).
		AddField("assigned", st.TotalAssigned).
		AddField("completed", st.TotalCompleted).
		AddField("expired", st.TotalExpired).
		AddField("failed", st.TotalFailed).
		AddField("success_rate", round3(st.SuccessRate)).
		AddField("avg_wait_s", round3(st.AvgWaitSeconds)).
		SetTime(snap.Time))
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordEvents writes assignments and terminal order events.
func (s *InfluxSink) RecordEvents(evs []events.Event) error {
	var points []*write.Point
	for _, ev := range evs {
		switch e := ev.(type) {
		case events.OrderAssigned:
			points = append(points, write.NewPointWithMeasurement("order_assigned").
				AddTag("vehicle_id", e.VehicleID).
				AddTag("forced", strconv.FormatBool(e.Forced)).
				AddField("order_id", e.OrderID).
				AddField("score", round3(e.Score)).
				AddField("wait_s", round3(e.WaitSeconds)).
				SetTime(e.At))
		case events.OrderCompleted:
			points = append(points, finished("completed", e.OrderID, e.VehicleID, e.At).
				AddField("total_s", round3(e.TotalSeconds)))
		case events.OrderExpired:
			points = append(points, finished("expired", e.OrderID, e.VehicleID, e.At))
		case events.OrderCancelled:
			points = append(points, finished("cancelled", e.OrderID, e.VehicleID, e.At).
				AddField("reason", e.Reason))
		}
	}
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, points...)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func finished(status, orderID, vehicleID string, at time.Time) *write.Point {
	p := write.NewPointWithMeasurement("order_finished").
		AddTag("status", status)
	if vehicleID != "" {
		p = p.AddTag("vehicle_id", vehicleID)
	}
	return p.AddField("order_id", orderID).SetTime(at)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
