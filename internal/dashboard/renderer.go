package dashboard

import (
	"fmt"

	"github.com/redmiedge/sensordash/internal/prefs"
	"github.com/redmiedge/sensordash/internal/sensor"
)

// Renderer draws one sensor at a time into the retained scene.
type Renderer struct {
	scene      *Scene
	prefs      *prefs.Store
	generation int
}

// NewRenderer creates a renderer over scene reading preferences from store.
func NewRenderer(scene *Scene, store *prefs.Store) *Renderer {
	return &Renderer{scene: scene, prefs: store}
}

// Plot renders or updates the widget of name from snap. Sensors failing the validity
// gate have their widget removed.
func (r *Renderer) Plot(name string, snap *sensor.Snapshot) {
	series, _ := snap.Sensor(name)
	if !sensor.ShouldRender(name, series) {
		r.scene.remove(name)
		return
	}

	w := r.scene.ensure(name)
	r.rebuildControls(w)

	if r.prefs.View(name) == prefs.ViewSeparate {
		r.showSeparate(w, series, snap)
	} else {
		r.showCombined(w, series, snap)
	}
	applyAxisFilter(w, r.prefs.View(name), r.prefs.AxisFilter(name))
}

// SetView is the combined/separate control action. It draws the requested view from
// snap, saves it and resets the axis filter to all.
func (r *Renderer) SetView(name string, view prefs.ViewMode, snap *sensor.Snapshot) error {
	w := r.scene.Widget(name)
	if w == nil {
		return fmt.Errorf("sensor %q is not rendered", name)
	}
	series, ok := snap.Sensor(name)
	if !ok {
		return fmt.Errorf("sensor %q not in snapshot", name)
	}

	if view == prefs.ViewSeparate {
		r.showSeparate(w, series, snap)
	} else {
		r.showCombined(w, series, snap)
	}
	if err := r.prefs.SetView(name, view); err != nil {
		return fmt.Errorf("failed to save view mode: %w", err)
	}
	if err := r.prefs.SetAxisFilter(name, prefs.AxisAll); err != nil {
		return fmt.Errorf("failed to save axis filter: %w", err)
	}
	if w.Controls != nil {
		w.Controls.View = view
		w.Controls.AxisFilter = prefs.AxisAll
	}
	applyAxisFilter(w, view, prefs.AxisAll)
	return nil
}

// SetAxisFilter is the axis select control action.
func (r *Renderer) SetAxisFilter(name, axis string) error {
	w := r.scene.Widget(name)
	if w == nil {
		return fmt.Errorf("sensor %q is not rendered", name)
	}
	if err := r.prefs.SetAxisFilter(name, axis); err != nil {
		return err
	}
	if w.Controls != nil {
		w.Controls.AxisFilter = axis
	}
	applyAxisFilter(w, r.prefs.View(name), axis)
	return nil
}

func (r *Renderer) rebuildControls(w *Widget) {
	r.generation++
	w.Controls = &Controls{
		Generation: r.generation,
		View:       r.prefs.View(w.Sensor),
		AxisFilter: r.prefs.AxisFilter(w.Sensor),
	}
}

func (r *Renderer) background() string {
	if r.prefs.DarkMode() {
		return DarkBackground
	}
	return LightBackground
}

func (r *Renderer) showCombined(w *Widget, series *sensor.Series, snap *sensor.Snapshot) {
	chart, _ := w.ensureChart(combinedID(w.Sensor))
	chart.Title = ""
	chart.Traces = chart.Traces[:0]
	for _, axis := range series.Axes {
		chart.Traces = append(chart.Traces, Trace{
			Name: axisLabel(axis.Name),
			X:    snap.Time,
			Y:    axis.Values,
		})
	}
	chart.Background = r.background()
	chart.Revision++

	for _, c := range w.Charts {
		c.Visible = false
	}
	chart.Visible = true
}

func (r *Renderer) showSeparate(w *Widget, series *sensor.Series, snap *sensor.Snapshot) {
	if combined := w.CombinedChart(); combined != nil {
		combined.Visible = false
	}

	for _, axis := range series.Axes {
		chart, _ := w.ensureChart(axisID(w.Sensor, axis.Name))
		chart.Axis = axisLabel(axis.Name)
		chart.Title = w.Sensor + " " + axis.Name
		chart.Traces = []Trace{{
			Name: axisLabel(axis.Name),
			X:    snap.Time,
			Y:    axis.Values,
		}}
		chart.Background = r.background()
		chart.Revision++
		chart.Visible = true
	}
}

// applyAxisFilter decides the final visibility of every chart of w. A specific axis
// shows only the chart of that axis if one has been created, whatever the view mode.
func applyAxisFilter(w *Widget, view prefs.ViewMode, axis string) {
	for _, c := range w.Charts {
		c.Visible = false
	}

	if axis == prefs.AxisAll {
		for _, c := range w.Charts {
			if view == prefs.ViewSeparate {
				c.Visible = !c.Combined()
			} else {
				c.Visible = c.Combined()
			}
		}
		return
	}

	for _, c := range w.Charts {
		if !c.Combined() && c.Axis == axis {
			c.Visible = true
			return
		}
	}
}
