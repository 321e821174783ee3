package sampler

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultBatchSize is how many rows are buffered before the log is appended to.
const DefaultBatchSize = 20

// CSVLog is the on-disk sample history. Rows are buffered and appended in batches so
// sampling does not wait on the disk every tick.
type CSVLog struct {
	mu      sync.Mutex
	path    string
	batch   int
	pending [][]string
}

// OpenCSVLog truncates path and writes header. Parent directories are created.
func OpenCSVLog(path string, header []string, batch int) (*CSVLog, error) {
	if batch < 1 {
		batch = DefaultBatchSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	return &CSVLog{path: path, batch: batch}, nil
}

// Path returns the log file path.
func (l *CSVLog) Path() string {
	return l.path
}

// Append buffers a record, flushing once a full batch is pending. It returns the
// number of rows written to disk by this call.
func (l *CSVLog) Append(record []string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, record)
	if len(l.pending) < l.batch {
		return 0, nil
	}
	return l.flushLocked()
}

// Flush writes all pending rows.
func (l *CSVLog) Flush() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

// Pending returns the number of buffered rows.
func (l *CSVLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *CSVLog) flushLocked() (int, error) {
	if len(l.pending) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open CSV log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(l.pending); err != nil {
		return 0, fmt.Errorf("failed to append CSV rows: %w", err)
	}

	n := len(l.pending)
	l.pending = l.pending[:0]
	return n, nil
}
