package dashboard

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmiedge/sensordash/internal/prefs"
	"github.com/redmiedge/sensordash/internal/sensor"
	"github.com/redmiedge/sensordash/internal/stream"
)

const threeSensors = `{
	"time": ["10:00:00", "10:00:01", "10:00:02"],
	"sensors": {
		"Accelerometer": {"X": [0.1, 0.2, 0.3], "Y": [1, 1, 1], "Z": [9.8, 9.7, 9.8]},
		"Gyroscope": {"X": [0, 0.5, 0], "Y": [0, 0, 0], "Z": [0, 0, 0]},
		"Light": {"LUX": [0, 0, 0]}
	},
	"latest_row": {"timestamp": "10:00:02", "Accelerometer_X": 0.3, "Light_LUX": 0},
	"previous_row": {"timestamp": "10:00:01", "Accelerometer_X": 0.2, "Light_LUX": 0}
}`

func mustDecode(t *testing.T, data string) *sensor.Snapshot {
	t.Helper()
	snap, err := sensor.Decode([]byte(data))
	require.NoError(t, err)
	return snap
}

func newTestApp(t *testing.T) (*App, *prefs.MemoryKV) {
	t.Helper()
	kv := prefs.NewMemoryKV()
	return NewApp(prefs.New(kv), zerolog.Nop()), kv
}

func chartPointers(s *Scene) map[string]*Chart {
	out := make(map[string]*Chart)
	for _, w := range s.Widgets() {
		for _, c := range w.Charts {
			out[c.ID] = c
		}
	}
	return out
}

func TestSameSignatureReusesWidgets(t *testing.T) {
	app, _ := newTestApp(t)

	res := app.HandleSnapshot(mustDecode(t, threeSensors), true)
	require.True(t, res.Rebuilt)
	widgets := make(map[string]*Widget)
	for _, w := range app.Scene().Widgets() {
		widgets[w.Sensor] = w
	}
	charts := chartPointers(app.Scene())
	require.NotEmpty(t, charts)

	res = app.HandleSnapshot(mustDecode(t, threeSensors), false)
	assert.False(t, res.Rebuilt)

	for _, w := range app.Scene().Widgets() {
		assert.Same(t, widgets[w.Sensor], w, "widget %s recreated", w.Sensor)
	}
	for id, c := range chartPointers(app.Scene()) {
		assert.Same(t, charts[id], c, "chart %s recreated", id)
		assert.Equal(t, 2, c.Revision, "chart %s data not updated", id)
	}
}

func TestSignatureChangeRebuildsPinnedFirst(t *testing.T) {
	app, _ := newTestApp(t)
	app.HandleSnapshot(mustDecode(t, threeSensors), true)
	assert.Equal(t, []string{"Accelerometer", "Gyroscope", "Light"}, app.LastRender().Order)

	require.NoError(t, app.TogglePin("Light"))
	require.NoError(t, app.TogglePin("Gyroscope"))

	res := app.LastRender()
	assert.True(t, res.Rebuilt)
	assert.Equal(t, []string{"Light", "Gyroscope", "Accelerometer"}, res.Order)
	assert.Equal(t, []string{"Light", "Gyroscope", "Accelerometer"}, app.Scene().Order())

	res = app.HandleSnapshot(mustDecode(t, threeSensors), false)
	assert.False(t, res.Rebuilt)
}

func TestMissingSelectedSensorFallsBackToAll(t *testing.T) {
	kv := prefs.NewMemoryKV()
	require.NoError(t, kv.Set(prefs.KeySelectedSensor, "Barometer"))
	app := NewApp(prefs.New(kv), zerolog.Nop())

	res := app.HandleSnapshot(mustDecode(t, threeSensors), true)
	assert.True(t, res.FellBack)
	assert.Equal(t, prefs.AllSensors, app.Prefs().SelectedSensor())

	saved, ok := kv.Get(prefs.KeySelectedSensor)
	require.True(t, ok)
	assert.Equal(t, prefs.AllSensors, saved)
	assert.Equal(t, 3, app.Scene().Len())
}

func TestFallbackSignatureMatchesAll(t *testing.T) {
	kv := prefs.NewMemoryKV()
	require.NoError(t, kv.Set(prefs.KeySelectedSensor, "Barometer"))
	app := NewApp(prefs.New(kv), zerolog.Nop())

	res := app.HandleSnapshot(mustDecode(t, threeSensors), true)
	require.True(t, res.FellBack)
	require.True(t, res.Rebuilt)

	// The signature is taken after the reset, so the next snapshot is incremental.
	res = app.HandleSnapshot(mustDecode(t, threeSensors), false)
	assert.False(t, res.FellBack)
	assert.False(t, res.Rebuilt)
	assert.Equal(t, []string{"Accelerometer", "Gyroscope", "Light"}, res.Order)
}

func TestSelectSensorRendersOnlyThatSensor(t *testing.T) {
	app, _ := newTestApp(t)
	app.HandleSnapshot(mustDecode(t, threeSensors), true)

	require.NoError(t, app.SelectSensor("Gyroscope"))
	assert.Equal(t, []string{"Gyroscope"}, app.Scene().Order())

	require.NoError(t, app.CycleSensor(1))
	assert.Equal(t, "Light", app.Prefs().SelectedSensor())
	require.NoError(t, app.CycleSensor(1))
	assert.Equal(t, prefs.AllSensors, app.Prefs().SelectedSensor())
}

func TestTogglePinTwiceRestoresOrder(t *testing.T) {
	app, _ := newTestApp(t)
	app.HandleSnapshot(mustDecode(t, threeSensors), true)
	require.NoError(t, app.TogglePin("Light"))
	require.NoError(t, app.TogglePin("Accelerometer"))
	before := app.Prefs().Pinned()

	require.NoError(t, app.TogglePin("Gyroscope"))
	require.NoError(t, app.TogglePin("Gyroscope"))
	assert.Equal(t, before, app.Prefs().Pinned())
}

func TestInvalidSensorIsAbsent(t *testing.T) {
	app, _ := newTestApp(t)
	app.HandleSnapshot(mustDecode(t, `{
		"time": [0, 1],
		"sensors": {
			"Accelerometer": {"X": [0, 0], "Y": [0, 0]},
			"Magnetometer": {"X": []},
			"Light": {"LUX": [0, 0]},
			"Gyroscope": {"X": [0, 0.1]}
		}
	}`), true)

	assert.Nil(t, app.Scene().Widget("Accelerometer"))
	assert.Nil(t, app.Scene().Widget("Magnetometer"))
	assert.NotNil(t, app.Scene().Widget("Light"), "light sensors are exempt from the zero check")
	assert.NotNil(t, app.Scene().Widget("Gyroscope"))

	// A sensor that goes idle loses its widget on the cheap path too.
	app.HandleSnapshot(mustDecode(t, `{
		"time": [0, 1],
		"sensors": {"Light": {"LUX": [0, 0]}, "Gyroscope": {"X": [0, 0]}}
	}`), false)
	assert.Nil(t, app.Scene().Widget("Gyroscope"))
	assert.NotNil(t, app.Scene().Widget("Light"))
}

func TestExportCSV(t *testing.T) {
	app, _ := newTestApp(t)
	dir := t.TempDir()

	_, err := app.ExportCSV(dir, time.Now())
	assert.ErrorIs(t, err, sensor.ErrNoData)

	app.HandleSnapshot(mustDecode(t, `{"time":[0,1],"sensors":{"A":{"x":[1,2]}}}`), true)
	path, err := app.ExportCSV(dir, time.UnixMilli(1700000000000))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sensor-data-1700000000000.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "time,A_x\n0,1\n1,2\n", string(data))
}

func TestDarkModeAppliesToNextRender(t *testing.T) {
	app, _ := newTestApp(t)
	app.HandleSnapshot(mustDecode(t, threeSensors), true)
	old := app.Scene().Widget("Accelerometer").CombinedChart()
	assert.Equal(t, LightBackground, old.Background)

	assert.True(t, app.ToggleDark())
	app.HandleSnapshot(mustDecode(t, threeSensors), false)

	for _, w := range app.Scene().Widgets() {
		for _, c := range w.Charts {
			assert.Equal(t, DarkBackground, c.Background, "chart %s", c.ID)
		}
	}
	assert.Equal(t, LightBackground, old.Background, "charts dropped before the toggle keep their colour")
}

func TestReconnectShowsLoaderAndFullyRenders(t *testing.T) {
	app, _ := newTestApp(t)
	assert.True(t, app.Loading())

	app.SetConn(stream.Streaming)
	res := app.HandleSnapshot(mustDecode(t, threeSensors), true)
	assert.True(t, res.Rebuilt)
	assert.False(t, app.Loading())

	res = app.HandleSnapshot(mustDecode(t, threeSensors), false)
	assert.False(t, res.Rebuilt)

	app.SetConn(stream.Disconnected)
	assert.True(t, app.Loading())
	app.SetConn(stream.Connecting)
	app.SetConn(stream.Streaming)
	assert.True(t, app.Loading(), "loader stays until the first snapshot")

	res = app.HandleSnapshot(mustDecode(t, threeSensors), true)
	assert.True(t, res.Rebuilt, "first snapshot after reconnect is a full render")
	assert.False(t, app.Loading())
}

func TestViewModesAndAxisFilter(t *testing.T) {
	app, kv := newTestApp(t)
	app.HandleSnapshot(mustDecode(t, threeSensors), true)
	w := app.Scene().Widget("Accelerometer")

	combined := w.CombinedChart()
	require.NotNil(t, combined)
	assert.Equal(t, "plot-Accelerometer-XYZ", combined.ID)
	require.Len(t, combined.Traces, 3)
	assert.Equal(t, "X", combined.Traces[0].Name)
	assert.Same(t, combined, w.VisibleChart())

	require.NoError(t, app.SetView("Accelerometer", prefs.ViewSeparate))
	saved, _ := kv.Get("viewMode-Accelerometer")
	assert.Equal(t, "separate", saved)
	visible := w.VisibleCharts()
	require.Len(t, visible, 3)
	assert.Equal(t, "plot-Accelerometer-X", visible[0].ID)
	assert.Equal(t, "Accelerometer X", visible[0].Title)
	assert.False(t, combined.Visible)

	axis, err := app.CycleAxisFilter("Accelerometer")
	require.NoError(t, err)
	assert.Equal(t, "X", axis)
	visible = w.VisibleCharts()
	require.Len(t, visible, 1)
	assert.Equal(t, "plot-Accelerometer-X", visible[0].ID)

	// Controls are rebuilt on each plot and start from the saved filter.
	gen := w.Controls.Generation
	app.HandleSnapshot(mustDecode(t, threeSensors), false)
	assert.Greater(t, w.Controls.Generation, gen)
	assert.Equal(t, "X", w.Controls.AxisFilter)
	assert.Len(t, w.VisibleCharts(), 1)

	require.NoError(t, app.SetView("Accelerometer", prefs.ViewCombined))
	assert.Equal(t, prefs.AxisAll, app.Prefs().AxisFilter("Accelerometer"))
	assert.Equal(t, []*Chart{combined}, w.VisibleCharts())
}

func TestExportPNG(t *testing.T) {
	app, _ := newTestApp(t)
	app.ToggleDark()
	app.HandleSnapshot(mustDecode(t, threeSensors), true)

	dir := t.TempDir()
	path, err := app.ExportPNG(dir, "Accelerometer")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Accelerometer-plot-Accelerometer-XYZ.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, PNGWidth, cfg.Width)
	assert.Equal(t, PNGHeight, cfg.Height)

	_, err = app.ExportPNG(dir, "Barometer")
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestScrollState(t *testing.T) {
	var s ScrollState
	s.Observe(40)
	s.Begin(42)
	assert.Equal(t, 42, s.End())

	s.Observe(0)
	assert.Equal(t, 42, s.YBeforeUpdate, "scroll events during restore are ignored")
	assert.Equal(t, 42, s.Finish())

	s.Observe(10)
	assert.Equal(t, 10, s.YBeforeUpdate)
}

func TestSignatureString(t *testing.T) {
	assert.Equal(t, "all|", Signature{Mode: "all"}.String())
	assert.Equal(t, "Light|Step,Gyroscope", Signature{Mode: "Light", Pinned: []string{"Step", "Gyroscope"}}.String())
}
