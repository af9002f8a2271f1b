package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// lineStore appends one JSON document per line to w and answers queries by
// scanning the files returned by sources, oldest first.
type lineStore struct {
	mu      sync.Mutex
	w       io.WriteCloser
	sources func() ([]string, error)
}

func (s *lineStore) Append(_ context.Context, rec Record) error {
	return s.AppendBatch(context.Background(), []Record{rec})
}

// AppendBatch writes the records with a single write call.
func (s *lineStore) AppendBatch(_ context.Context, recs []Record) error {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, buf.String())
	return err
}

func (s *lineStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, err := s.sources()
	if err != nil {
		return nil, err
	}
	var res []Record
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err = scanFile(name, q, res)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *lineStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

// scanFile appends the matching records of the file to res. Missing files
// and malformed lines are skipped.
func scanFile(name string, q Query, res []Record) ([]Record, error) {
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec Record
		if json.Unmarshal(sc.Bytes(), &rec) != nil {
			continue
		}
		if q.match(rec) {
			res = append(res, rec)
		}
	}
	return res, sc.Err()
}

// JSONLStore keeps every record in a single JSON lines file.
type JSONLStore struct{ lineStore }

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLStore{lineStore{
		w:       f,
		sources: func() ([]string, error) { return []string{path}, nil },
	}}, nil
}

// RotatingJSONLStore is a JSONLStore whose file is rotated by size. Rotated
// backups stay queryable until lumberjack prunes them.
type RotatingJSONLStore struct{ lineStore }

// NewRotatingJSONLStore creates the parent directory of path when needed.
// Sizes are in megabytes and ages in days.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	ext := filepath.Ext(path)
	pattern := strings.TrimSuffix(path, ext) + "-*" + ext
	return &RotatingJSONLStore{lineStore{
		w: lj,
		sources: func() ([]string, error) {
			backups, err := filepath.Glob(pattern)
			if err != nil {
				return nil, err
			}
			// lumberjack names backups by timestamp
			sort.Strings(backups)
			return append(backups, path), nil
		},
	}}, nil
}
