// Package sampler polls the phone sensors, keeps a rolling window of samples and serves
// it as snapshots over HTTP.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/redmiedge/sensordash/internal/metrics"
	"github.com/redmiedge/sensordash/internal/sensor"
)

const (
	DefaultInterval   = 500 * time.Millisecond
	DefaultWindowSize = 150

	// TimestampLayout formats the timestamp column of every row.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Groups with special handling when sampling.
const (
	proximityGroup = "Proximity"
	lightGroup     = "Light"
)

var (
	// ErrNoCatalogSensors is returned when the device has sensors but none match the
	// catalog.
	ErrNoCatalogSensors = errors.New("none of the catalog sensors were found")

	errNoReadings = errors.New("sensor read returned no data")
)

// Config configures a Sampler.
type Config struct {
	Catalog    *sensor.Catalog
	Source     Source
	Interval   time.Duration
	WindowSize int

	// CSVPath is the history log. Empty disables it.
	CSVPath   string
	BatchSize int

	Logger  zerolog.Logger
	Metrics *metrics.Registry
	Now     func() time.Time
}

// Sampler owns the rolling window and the CSV history log.
type Sampler struct {
	cfg     Config
	columns []string
	window  *Window
	csv     *CSVLog

	mu      sync.RWMutex
	mapping Mapping
	calls   []string
}

// New validates cfg, fills defaults and truncates the CSV log.
func New(cfg Config) (*Sampler, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("sampler requires a sensor source")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = sensor.DefaultCatalog()
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Sampler{
		cfg:     cfg,
		columns: cfg.Catalog.Columns(),
		window:  NewWindow(cfg.WindowSize),
	}

	if cfg.CSVPath != "" {
		log, err := OpenCSVLog(cfg.CSVPath, s.columns, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		s.csv = log
	}
	return s, nil
}

// Interval returns the sampling and push interval.
func (s *Sampler) Interval() time.Duration {
	return s.cfg.Interval
}

// CSVPath returns the history log path, or "" when logging is disabled.
func (s *Sampler) CSVPath() string {
	if s.csv == nil {
		return ""
	}
	return s.csv.Path()
}

// Mapping returns the mapping found by the last Discover.
func (s *Sampler) Mapping() Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapping
}

// Discover lists the device sensors and maps catalog groups onto them.
func (s *Sampler) Discover(ctx context.Context) (Mapping, error) {
	devices, err := s.cfg.Source.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, sensor.ErrNoSensors
	}

	mapping := BuildMapping(s.cfg.Catalog, devices)
	calls := mapping.CallList()

	s.mu.Lock()
	s.mapping = mapping
	s.calls = calls
	s.mu.Unlock()

	if len(calls) == 0 {
		return mapping, ErrNoCatalogSensors
	}
	return mapping, nil
}

// Run discovers the sensors and then samples every interval until ctx is done. Read
// failures are logged and sampling carries on. Pending CSV rows are flushed on return.
func (s *Sampler) Run(ctx context.Context) error {
	mapping, err := s.Discover(ctx)
	for _, a := range mapping {
		device := a.Device
		if device == "" {
			device = notFound
		}
		s.cfg.Logger.Info().Str("group", a.Group).Str("device", device).Msg("Sensor mapping")
	}
	if err != nil {
		s.cfg.Logger.Error().Err(err).Msg("Sampling stopped")
		return err
	}

	s.cfg.Logger.Info().
		Strs("sensors", s.calls).
		Dur("interval", s.cfg.Interval).
		Msg("Sampling started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.SampleOnce(ctx); err != nil && !errors.Is(err, errNoReadings) {
			s.cfg.Logger.Warn().Err(err).Msg("Sample failed")
		}

		select {
		case <-ctx.Done():
			if _, err := s.Flush(); err != nil {
				s.cfg.Logger.Error().Err(err).Msg("Failed to flush CSV log")
			}
			return nil
		case <-ticker.C:
		}
	}
}

// SampleOnce reads every mapped device once and records a row.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	s.mu.RLock()
	mapping, calls := s.mapping, s.calls
	s.mu.RUnlock()

	data, err := s.cfg.Source.Read(ctx, calls)
	if err != nil {
		s.countError()
		return err
	}
	if len(data) == 0 {
		return errNoReadings
	}

	row := Row{Timestamp: s.cfg.Now().Format(TimestampLayout)}
	for _, spec := range s.cfg.Catalog.Specs {
		device, mapped := mapping.Device(spec.Name)

		var values []float64
		if mapped {
			values = data[device]
		}
		if spec.Name == proximityGroup && !mapped {
			values = proximityFromLight(mapping, data)
		}
		row.Values = append(row.Values, pad(values, len(spec.Axes))...)
	}

	n := s.window.Append(row)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.Samples.Inc()
		s.cfg.Metrics.WindowRows.Set(float64(n))
	}

	if s.csv != nil {
		written, err := s.csv.Append(row.record())
		s.countWritten(written)
		if err != nil {
			return err
		}
	}
	return nil
}

// proximityFromLight uses the second value of the light sensor, which combined
// light/proximity chips report as the distance.
func proximityFromLight(mapping Mapping, data map[string][]float64) []float64 {
	light, ok := mapping.Device(lightGroup)
	if !ok {
		return nil
	}
	values, ok := data[light]
	if !ok {
		return nil
	}
	if len(values) > 1 {
		return []float64{values[1]}
	}
	return []float64{0}
}

// pad truncates or zero-pads values to n entries.
func pad(values []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, values)
	return out
}

func (r Row) record() []string {
	rec := make([]string, 0, len(r.Values)+1)
	rec = append(rec, r.Timestamp)
	for _, v := range r.Values {
		rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return rec
}

// Flush writes pending CSV rows.
func (s *Sampler) Flush() (int, error) {
	if s.csv == nil {
		return 0, nil
	}
	n, err := s.csv.Flush()
	s.countWritten(n)
	return n, err
}

func (s *Sampler) countWritten(n int) {
	if s.cfg.Metrics != nil && n > 0 {
		s.cfg.Metrics.CSVRows.Add(float64(n))
	}
}

func (s *Sampler) countError() {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SampleErrors.Inc()
	}
}

// Rows returns the number of rows in the window.
func (s *Sampler) Rows() int {
	return s.window.Len()
}

// Snapshot builds the pushed dataset from the current window. Only catalog groups
// are included; latest and previous rows keep the timestamp and catalog columns.
func (s *Sampler) Snapshot() *sensor.Snapshot {
	rows := s.window.Rows()
	snap := &sensor.Snapshot{}
	if len(rows) == 0 {
		return snap
	}

	type slot struct{ series, axis int }
	slots := make([]slot, len(s.columns)-1)
	for i, col := range s.columns[1:] {
		group, axis := s.cfg.Catalog.Normalize(col)
		if !s.cfg.Catalog.Has(group) {
			slots[i] = slot{-1, -1}
			continue
		}
		si := seriesIndex(snap, group)
		ai := axisIndex(&snap.Sensors[si], axis, len(rows))
		slots[i] = slot{si, ai}
	}

	for _, row := range rows {
		snap.Time = append(snap.Time, sensor.Timestamp{Text: row.Timestamp})
		for i, v := range row.Values {
			if i >= len(slots) || slots[i].series < 0 {
				continue
			}
			ax := &snap.Sensors[slots[i].series].Axes[slots[i].axis]
			ax.Values = append(ax.Values, v)
		}
	}

	snap.LatestRow = s.rowFields(rows[len(rows)-1])
	if len(rows) > 1 {
		snap.PreviousRow = s.rowFields(rows[len(rows)-2])
	}
	return snap
}

func (s *Sampler) rowFields(r Row) []sensor.Field {
	fields := []sensor.Field{sensor.TextField(s.columns[0], r.Timestamp)}
	for i, v := range r.Values {
		col := s.columns[i+1]
		group, _ := s.cfg.Catalog.Normalize(col)
		if !s.cfg.Catalog.Has(group) {
			continue
		}
		fields = append(fields, sensor.NumberField(col, v))
	}
	return fields
}

func seriesIndex(snap *sensor.Snapshot, group string) int {
	for i := range snap.Sensors {
		if snap.Sensors[i].Name == group {
			return i
		}
	}
	snap.Sensors = append(snap.Sensors, sensor.Series{Name: group})
	return len(snap.Sensors) - 1
}

func axisIndex(series *sensor.Series, axis string, capacity int) int {
	for i := range series.Axes {
		if series.Axes[i].Name == axis {
			return i
		}
	}
	series.Axes = append(series.Axes, sensor.Axis{Name: axis, Values: make([]float64, 0, capacity)})
	return len(series.Axes) - 1
}
