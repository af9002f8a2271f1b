// Package eventlog persists the events of a simulation run.
package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/agv/core/events"
)

// Record is one persisted event.
type Record struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	Name      string          `json:"name"`
	Tick      uint64          `json:"tick"`
	At        time.Time       `json:"at"`
	VehicleID string          `json:"vehicle_id,omitempty"`
	OrderID   string          `json:"order_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Query defines filters for retrieving records. Zero fields match anything.
type Query struct {
	Start     time.Time
	End       time.Time
	Name      string
	VehicleID string
	OrderID   string
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// BatchAppender is implemented by stores that write several records at
// once. Recorder uses it to persist a tick in one write.
type BatchAppender interface {
	AppendBatch(ctx context.Context, recs []Record) error
}

type refs struct {
	VehicleID string `json:"vehicle_id"`
	OrderID   string `json:"order_id"`
	Order     struct {
		ID string `json:"id"`
	} `json:"order"`
}

// NewRecord encodes an event of the given run.
func NewRecord(runID string, ev events.Event) (Record, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return Record{}, err
	}
	var h struct {
		Tick uint64 `json:"tick"`
	}
	var r refs
	_ = json.Unmarshal(b, &h)
	_ = json.Unmarshal(b, &r)
	rec := Record{
		ID:        uuid.NewString(),
		RunID:     runID,
		Name:      ev.Name(),
		Tick:      h.Tick,
		At:        ev.OccurredAt(),
		VehicleID: r.VehicleID,
		OrderID:   r.OrderID,
		Payload:   b,
	}
	if rec.OrderID == "" {
		rec.OrderID = r.Order.ID
	}
	return rec, nil
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.At.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.At.After(q.End) {
		return false
	}
	if q.Name != "" && r.Name != q.Name {
		return false
	}
	if q.VehicleID != "" && r.VehicleID != q.VehicleID {
		return false
	}
	if q.OrderID != "" && r.OrderID != q.OrderID {
		return false
	}
	return true
}
