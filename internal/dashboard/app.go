// Package dashboard holds the dashboard's application state: the retained widget
// scene, the renderer that fills it and the reconciler deciding between updating and
// rebuilding it.
package dashboard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/redmiedge/sensordash/internal/prefs"
	"github.com/redmiedge/sensordash/internal/sensor"
	"github.com/redmiedge/sensordash/internal/stream"
)

var tracer = otel.Tracer("github.com/redmiedge/sensordash/internal/dashboard")

// App is the single owner of dashboard state. It is not safe for concurrent use; the
// terminal UI mutates it from its update loop only.
type App struct {
	prefs      *prefs.Store
	scene      *Scene
	renderer   *Renderer
	reconciler *Reconciler
	log        zerolog.Logger

	Scroll ScrollState

	snapshot *sensor.Snapshot
	options  []string
	loading  bool
	conn     stream.State
	last     Result
	updated  time.Time
}

// NewApp creates the application state. The loader is shown until the first snapshot.
func NewApp(store *prefs.Store, logger zerolog.Logger) *App {
	scene := NewScene()
	renderer := NewRenderer(scene, store)
	return &App{
		prefs:      store,
		scene:      scene,
		renderer:   renderer,
		reconciler: NewReconciler(scene, renderer, store),
		log:        logger.With().Str("component", "dashboard").Logger(),
		loading:    true,
		conn:       stream.Disconnected,
	}
}

// Prefs returns the preference store.
func (a *App) Prefs() *prefs.Store { return a.prefs }

// Scene returns the retained widgets.
func (a *App) Scene() *Scene { return a.scene }

// Snapshot returns the last received snapshot, or nil.
func (a *App) Snapshot() *sensor.Snapshot { return a.snapshot }

// Loading reports whether the loader is shown.
func (a *App) Loading() bool { return a.loading }

// Conn returns the connection state.
func (a *App) Conn() stream.State { return a.conn }

// LastRender returns the result of the latest reconciliation.
func (a *App) LastRender() Result { return a.last }

// Updated returns when the last snapshot was handled.
func (a *App) Updated() time.Time { return a.updated }

// SetConn records a connection state change. Any state but streaming shows the loader.
func (a *App) SetConn(state stream.State) {
	a.conn = state
	if state != stream.Streaming {
		a.loading = true
	}
}

// HandleSnapshot replaces the current snapshot and renders it. The first snapshot of
// a connection is a full render: the sensor options are rebuilt, the widgets are
// recreated and the loader is hidden.
func (a *App) HandleSnapshot(snap *sensor.Snapshot, first bool) Result {
	_, span := tracer.Start(context.Background(), "dashboard.snapshot")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("snapshot.first", first),
		attribute.Int("snapshot.sensors", len(snap.Sensors)),
	)

	a.snapshot = snap
	a.updated = time.Now()
	if first {
		a.options = append([]string{prefs.AllSensors}, snap.SensorNames()...)
		a.reconciler.Invalidate()
	}

	a.render()
	if first {
		a.loading = false
	}
	return a.last
}

func (a *App) render() {
	if a.snapshot == nil {
		return
	}
	res, err := a.reconciler.Render(a.snapshot)
	if err != nil {
		a.log.Error().Err(err).Msg("render fallback not saved")
	}
	if res.FellBack {
		a.log.Debug().Msg("selected sensor missing, showing all sensors")
	}
	a.last = res
}

// Rerender rebuilds every widget from the last snapshot.
func (a *App) Rerender() {
	a.reconciler.Invalidate()
	a.render()
}

// Options returns the sensor selection choices: all, then the sensors of the first
// snapshot of the current connection.
func (a *App) Options() []string {
	return slices.Clone(a.options)
}

// SelectSensor changes the selected sensor mode and rebuilds immediately.
func (a *App) SelectSensor(mode string) error {
	if err := a.prefs.SetSelectedSensor(mode); err != nil {
		return fmt.Errorf("failed to save selected sensor: %w", err)
	}
	a.Rerender()
	return nil
}

// CycleSensor moves the selected sensor mode by delta through Options.
func (a *App) CycleSensor(delta int) error {
	if len(a.options) == 0 {
		return nil
	}
	i := slices.Index(a.options, a.prefs.SelectedSensor())
	if i < 0 {
		i = 0
	}
	n := len(a.options)
	return a.SelectSensor(a.options[((i+delta)%n+n)%n])
}

// TogglePin pins or unpins name and rebuilds immediately.
func (a *App) TogglePin(name string) error {
	if err := a.prefs.TogglePin(name); err != nil {
		return fmt.Errorf("failed to save pinned sensors: %w", err)
	}
	a.Rerender()
	return nil
}

// ToggleDark flips dark mode and rebuilds so new charts pick up the background.
func (a *App) ToggleDark() bool {
	dark := !a.prefs.DarkMode()
	a.prefs.SetDarkMode(dark)
	a.Rerender()
	return dark
}

// SetView switches name between combined and separate charts.
func (a *App) SetView(name string, view prefs.ViewMode) error {
	if a.snapshot == nil {
		return sensor.ErrNoData
	}
	return a.renderer.SetView(name, view, a.snapshot)
}

// CycleAxisFilter advances the axis filter of name and returns the new value.
func (a *App) CycleAxisFilter(name string) (string, error) {
	current := a.prefs.AxisFilter(name)
	i := slices.Index(prefs.AxisFilters, current)
	next := prefs.AxisFilters[(i+1)%len(prefs.AxisFilters)]
	if err := a.renderer.SetAxisFilter(name, next); err != nil {
		return current, err
	}
	return next, nil
}

// LiveRows returns the live table of the current snapshot.
func (a *App) LiveRows() []sensor.LiveRow {
	if a.snapshot == nil {
		return nil
	}
	return sensor.LiveRows(a.snapshot.LatestRow, a.snapshot.PreviousRow)
}

// VisibleChart returns the chart fullscreen and export act on for name.
func (a *App) VisibleChart(name string) *Chart {
	w := a.scene.Widget(name)
	if w == nil {
		return nil
	}
	return w.VisibleChart()
}

// ExportCSV writes the current snapshot to dir and returns the file path.
func (a *App) ExportCSV(dir string, now time.Time) (string, error) {
	if a.snapshot == nil || len(a.snapshot.Sensors) == 0 {
		return "", sensor.ErrNoData
	}
	path := filepath.Join(dir, sensor.CSVFileName(now))
	if err := writeFile(path, func(f *os.File) error { return sensor.WriteCSV(f, a.snapshot) }); err != nil {
		return "", err
	}
	a.log.Info().Str("path", path).Msg("exported CSV")
	return path, nil
}

// ExportPNG writes the visible chart of name to dir and returns the file path.
func (a *App) ExportPNG(dir, name string) (string, error) {
	c := a.VisibleChart(name)
	if c == nil {
		return "", ErrNothingToExport
	}
	path := filepath.Join(dir, PNGFileName(c))
	if err := writeFile(path, func(f *os.File) error { return WritePNG(f, c) }); err != nil {
		return "", err
	}
	a.log.Info().Str("path", path).Str("chart", c.ID).Msg("exported PNG")
	return path, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
