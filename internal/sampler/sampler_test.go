package sampler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmiedge/sensordash/internal/metrics"
	"github.com/redmiedge/sensordash/internal/sensor"
)

type fakeSource struct {
	devices  []string
	readings map[string][]float64
	err      error
}

func (f *fakeSource) List(context.Context) ([]string, error) {
	return f.devices, nil
}

func (f *fakeSource) Read(_ context.Context, devices []string) (map[string][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string][]float64)
	for _, d := range devices {
		if v, ok := f.readings[d]; ok {
			out[d] = v
		}
	}
	return out, nil
}

func testCatalog() *sensor.Catalog {
	return &sensor.Catalog{Specs: []sensor.Spec{
		{Name: "Accelerometer", Candidates: []string{"accelerometer"}, Axes: []string{"X", "Y", "Z"}},
		{Name: "Light", Candidates: []string{"light", "alsps"}, Axes: []string{"Lux"}},
		{Name: "Proximity", Candidates: []string{"proximity"}, Axes: []string{"Distance"}},
	}}
}

func fixedClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

func newTestSampler(t *testing.T, src Source, csvPath string) *Sampler {
	t.Helper()
	s, err := New(Config{
		Catalog:   testCatalog(),
		Source:    src,
		CSVPath:   csvPath,
		BatchSize: 2,
		Logger:    zerolog.Nop(),
		Metrics:   metrics.New("sampler"),
		Now:       fixedClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)),
	})
	require.NoError(t, err)
	return s
}

func TestMatchSensor(t *testing.T) {
	devices := []string{"BMI160 Accelerometer", "TMD2772 ALSPS", "Step Counter"}

	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"case insensitive", []string{"accelerometer"}, "BMI160 Accelerometer"},
		{"second candidate", []string{"light", "alsps"}, "TMD2772 ALSPS"},
		{"no match", []string{"gyroscope"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchSensor(devices, tt.candidates); got != tt.want {
				t.Errorf("MatchSensor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildMappingCallList(t *testing.T) {
	devices := []string{"TMD2772 ALSPS", "BMI160 Accelerometer", "Step Counter"}
	cat := sensor.DefaultCatalog()

	m := BuildMapping(cat, devices)
	require.Len(t, m, len(cat.Specs))

	light, ok := m.Device("Light")
	assert.True(t, ok)
	assert.Equal(t, "TMD2772 ALSPS", light)
	prox, _ := m.Device("Proximity")
	assert.Equal(t, "TMD2772 ALSPS", prox)
	_, ok = m.Device("Gyroscope")
	assert.False(t, ok)

	assert.Equal(t, []string{"BMI160 Accelerometer", "Step Counter", "TMD2772 ALSPS"}, m.CallList())
}

func TestMappingOutput(t *testing.T) {
	m := Mapping{{Group: "Accelerometer", Device: "BMI160 Accelerometer"}, {Group: "Gyroscope"}}

	var b strings.Builder
	m.WriteTable(&b)
	assert.Contains(t, b.String(), "Accelerometer")
	assert.Contains(t, b.String(), "BMI160 Accelerometer")
	assert.Contains(t, b.String(), "NOT FOUND")

	diagram := m.Mermaid()
	assert.Contains(t, diagram, "flowchart")
	assert.Contains(t, diagram, "BMI160 Accelerometer")
	assert.Contains(t, diagram, "NOT FOUND")
}

func TestParseSensorList(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []string
	}{
		{"json", `{"sensors": ["Accelerometer", "Gyroscope"]}`, []string{"Accelerometer", "Gyroscope"}},
		{"lines", "BMI160 Accelerometer: Bosch\n\nStep Counter\n", []string{"BMI160 Accelerometer", "Step Counter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSensorList([]byte(tt.out)))
		})
	}
}

func TestParseReadings(t *testing.T) {
	got, err := ParseReadings([]byte(`{"BMI160 Accelerometer": {"values": [0.1, 9.8, 0.2]}, "Step Counter": {"values": [42]}}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 9.8, 0.2}, got["BMI160 Accelerometer"])
	assert.Equal(t, []float64{42}, got["Step Counter"])

	_, err = ParseReadings([]byte("termux-api not installed"))
	assert.Error(t, err)
}

func TestDiscoverErrors(t *testing.T) {
	s := newTestSampler(t, &fakeSource{}, "")
	_, err := s.Discover(context.Background())
	assert.ErrorIs(t, err, sensor.ErrNoSensors)

	s = newTestSampler(t, &fakeSource{devices: []string{"Barometer"}}, "")
	_, err = s.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoCatalogSensors)

	// Run stops without sampling.
	assert.ErrorIs(t, s.Run(context.Background()), ErrNoCatalogSensors)
	assert.Equal(t, 0, s.Rows())
}

func TestSampleOncePadsAndFallsBack(t *testing.T) {
	src := &fakeSource{
		devices: []string{"BMI160 Accelerometer", "Ambient Light"},
		readings: map[string][]float64{
			"BMI160 Accelerometer": {1, 2},
			"Ambient Light":        {40, 7},
		},
	}
	s := newTestSampler(t, src, "")
	_, err := s.Discover(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.SampleOnce(context.Background()))
	require.NoError(t, s.SampleOnce(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, []string{"Accelerometer", "Light", "Proximity"}, snap.SensorNames())

	acc, _ := snap.Sensor("Accelerometer")
	assert.Equal(t, "Z", acc.Axes[2].Name)
	assert.Equal(t, []float64{0, 0}, acc.Axes[2].Values)

	light, _ := snap.Sensor("Light")
	assert.Equal(t, "LUX", light.Axes[0].Name)

	prox, _ := snap.Sensor("Proximity")
	assert.Equal(t, "DISTANCE", prox.Axes[0].Name)
	assert.Equal(t, []float64{7, 7}, prox.Axes[0].Values)

	require.Len(t, snap.Time, 2)
	assert.Equal(t, "2024-05-01 10:00:01", snap.Time[1].Text)
	require.Len(t, snap.LatestRow, 6)
	assert.Equal(t, sensor.TextField("timestamp", "2024-05-01 10:00:01"), snap.LatestRow[0])
	assert.Equal(t, sensor.NumberField("Proximity_Distance", 7), snap.LatestRow[5])
	assert.Equal(t, "2024-05-01 10:00:00", snap.PreviousRow[0].Text)
}

func TestSampleOnceSkipsEmptyReads(t *testing.T) {
	src := &fakeSource{devices: []string{"BMI160 Accelerometer"}}
	s := newTestSampler(t, src, "")
	_, err := s.Discover(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, s.SampleOnce(context.Background()), errNoReadings)

	src.err = errors.New("termux-sensor: exit status 1")
	assert.Error(t, s.SampleOnce(context.Background()))
	assert.Equal(t, 0, s.Rows())
}

func TestSnapshotEmptyWindow(t *testing.T) {
	s := newTestSampler(t, &fakeSource{}, "")
	data, err := s.Snapshot().MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":[],"sensors":{},"latest_row":{},"previous_row":{}}`, string(data))
}

func TestWindowDropsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, ts := range []string{"1", "2", "3", "4", "5"} {
		w.Append(Row{Timestamp: ts})
	}

	rows := w.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "3", rows[0].Timestamp)
	assert.Equal(t, "5", rows[2].Timestamp)
}

func TestCSVLogBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "sensor_log.csv")
	log, err := OpenCSVLog(path, []string{"timestamp", "Step_Count"}, 2)
	require.NoError(t, err)

	lines := func() []string {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	n, err := log.Append([]string{"t1", "1"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, lines(), 1)

	n, err = log.Append([]string{"t2", "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"timestamp,Step_Count", "t1,1", "t2,2"}, lines())

	_, err = log.Append([]string{"t3", "3"})
	require.NoError(t, err)
	assert.Equal(t, 1, log.Pending())

	n, err = log.Flush()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, lines(), 4)
}

func TestRunFlushesOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor_log.csv")
	src := &fakeSource{
		devices:  []string{"BMI160 Accelerometer"},
		readings: map[string][]float64{"BMI160 Accelerometer": {1, 2, 3}},
	}
	s, err := New(Config{
		Catalog:  testCatalog(),
		Source:   src,
		Interval: time.Millisecond,
		CSVPath:  path,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Rows() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Equal(t, "timestamp,Accelerometer_X,Accelerometer_Y,Accelerometer_Z,Light_Lux,Proximity_Distance", lines[0])
	assert.GreaterOrEqual(t, len(lines)-1, 3)
	assert.True(t, strings.HasSuffix(lines[1], ",1,2,3,0,0"), lines[1])
}

func TestSimulatedSourceMapsCatalog(t *testing.T) {
	src := NewSimulatedSource()
	s, err := New(Config{Source: src, Logger: zerolog.Nop()})
	require.NoError(t, err)

	m, err := s.Discover(context.Background())
	require.NoError(t, err)
	_, ok := m.Device("Proximity")
	assert.False(t, ok)

	require.NoError(t, s.SampleOnce(context.Background()))
	prox, ok := s.Snapshot().Sensor("Proximity")
	require.True(t, ok)
	assert.Equal(t, []float64{5}, prox.Axes[0].Values)
}
