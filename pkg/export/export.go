// Package export writes persisted simulation events for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/agv/core/eventlog"
)

// Header lists the CSV columns written by WriteCSV.
var Header = []string{"id", "run_id", "name", "tick", "at", "vehicle_id", "order_id"}

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []eventlog.Record) error {
	if recs == nil {
		recs = []eventlog.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteCSV writes one row per record. Payloads are left out.
func WriteCSV(w io.Writer, recs []eventlog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.ID,
			r.RunID,
			r.Name,
			strconv.FormatUint(r.Tick, 10),
			r.At.UTC().Format(time.RFC3339Nano),
			r.VehicleID,
			r.OrderID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
