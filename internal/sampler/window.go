package sampler

import "sync"

// Row is one sample: a formatted timestamp and one value per catalog column, in
// catalog column order.
type Row struct {
	Timestamp string
	Values    []float64
}

// Window keeps the most recent rows, dropping the oldest once full.
type Window struct {
	mu   sync.Mutex
	size int
	rows []Row
}

// NewWindow returns a window holding at most size rows.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, rows: make([]Row, 0, size)}
}

// Append adds a row and returns the resulting length.
func (w *Window) Append(r Row) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.rows) == w.size {
		copy(w.rows, w.rows[1:])
		w.rows = w.rows[:w.size-1]
	}
	w.rows = append(w.rows, r)
	return len(w.rows)
}

// Rows returns a copy of the window, oldest first.
func (w *Window) Rows() []Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Row(nil), w.rows...)
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}
