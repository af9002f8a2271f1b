package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	run_id     TEXT NOT NULL,
	name       TEXT NOT NULL,
	tick       INTEGER NOT NULL,
	at_ns      INTEGER NOT NULL,
	vehicle_id TEXT NOT NULL DEFAULT '',
	order_id   TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_name ON events (name);
CREATE INDEX IF NOT EXISTS events_vehicle ON events (vehicle_id);
CREATE INDEX IF NOT EXISTS events_order ON events (order_id);
CREATE INDEX IF NOT EXISTS events_at ON events (at_ns);`

// SQLiteStore keeps records in an indexed table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path. Any DSN accepted by
// modernc.org/sqlite works, including in-memory ones.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, multierr.Append(fmt.Errorf("schema: %w", err), db.Close())
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	return s.AppendBatch(ctx, []Record{rec})
}

// AppendBatch inserts the records in one transaction.
func (s *SQLiteStore) AppendBatch(ctx context.Context, recs []Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, run_id, name, tick, at_ns, vehicle_id, order_id, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err = stmt.ExecContext(ctx, r.ID, r.RunID, r.Name, int64(r.Tick), r.At.UnixNano(), r.VehicleID, r.OrderID, string(r.Payload)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns the matching records in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		where = append(where, clause)
		args = append(args, v)
	}
	if !q.Start.IsZero() {
		add("at_ns >= ?", q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		add("at_ns <= ?", q.End.UnixNano())
	}
	if q.Name != "" {
		add("name = ?", q.Name)
	}
	if q.VehicleID != "" {
		add("vehicle_id = ?", q.VehicleID)
	}
	if q.OrderID != "" {
		add("order_id = ?", q.OrderID)
	}
	query := `SELECT id, run_id, name, tick, at_ns, vehicle_id, order_id, payload FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY seq", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			r       Record
			tick    int64
			atNS    int64
			payload string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Name, &tick, &atNS, &r.VehicleID, &r.OrderID, &payload); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.At = time.Unix(0, atNS).UTC()
		r.Payload = []byte(payload)
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
