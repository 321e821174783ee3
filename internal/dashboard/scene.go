package dashboard

import (
	"slices"
	"strings"

	"github.com/redmiedge/sensordash/internal/prefs"
	"github.com/redmiedge/sensordash/internal/sensor"
)

// Chart backgrounds for the two themes.
const (
	LightBackground = "#fff"
	DarkBackground  = "#222"
)

// Trace is one line of a chart.
type Trace struct {
	Name string
	X    []sensor.Timestamp
	Y    []float64
}

// Chart is a retained chart node. Combined charts have an empty Axis.
type Chart struct {
	ID         string
	Sensor     string
	Axis       string
	Title      string
	Traces     []Trace
	Background string
	Visible    bool
	// Revision counts data updates pushed into this chart.
	Revision int
}

// Combined reports whether the chart carries every axis of its sensor.
func (c *Chart) Combined() bool {
	return c.Axis == ""
}

// Controls is the per-sensor control block. It is replaced on every plot of the
// sensor; Generation identifies the block so stale actions can be detected.
type Controls struct {
	Generation int
	View       prefs.ViewMode
	AxisFilter string
}

// Widget is everything rendered for one sensor.
type Widget struct {
	Sensor   string
	Charts   []*Chart
	Controls *Controls
}

// Chart returns the chart with id, or nil.
func (w *Widget) Chart(id string) *Chart {
	for _, c := range w.Charts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CombinedChart returns the combined chart if it exists.
func (w *Widget) CombinedChart() *Chart {
	return w.Chart(combinedID(w.Sensor))
}

// VisibleCharts returns the visible charts in creation order.
func (w *Widget) VisibleCharts() []*Chart {
	var out []*Chart
	for _, c := range w.Charts {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out
}

// VisibleChart is the chart fullscreen and image export act on: the combined chart if
// it is visible, else the first visible single-axis chart.
func (w *Widget) VisibleChart() *Chart {
	if c := w.CombinedChart(); c != nil && c.Visible {
		return c
	}
	for _, c := range w.Charts {
		if c.Visible && !c.Combined() {
			return c
		}
	}
	return nil
}

func (w *Widget) ensureChart(id string) (*Chart, bool) {
	if c := w.Chart(id); c != nil {
		return c, false
	}
	c := &Chart{ID: id, Sensor: w.Sensor}
	w.Charts = append(w.Charts, c)
	return c, true
}

// Scene is the retained widget map keyed by sensor name, iterated in insertion order.
type Scene struct {
	order   []string
	widgets map[string]*Widget
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{widgets: make(map[string]*Widget)}
}

// Widget returns the widget of sensor, or nil.
func (s *Scene) Widget(sensor string) *Widget {
	return s.widgets[sensor]
}

// Widgets returns the widgets in insertion order.
func (s *Scene) Widgets() []*Widget {
	out := make([]*Widget, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.widgets[name])
	}
	return out
}

// Order returns the sensor names in insertion order.
func (s *Scene) Order() []string {
	return slices.Clone(s.order)
}

// Len returns the number of widgets.
func (s *Scene) Len() int {
	return len(s.order)
}

func (s *Scene) ensure(sensor string) *Widget {
	if w, ok := s.widgets[sensor]; ok {
		return w
	}
	w := &Widget{Sensor: sensor}
	s.widgets[sensor] = w
	s.order = append(s.order, sensor)
	return w
}

func (s *Scene) remove(sensor string) {
	if _, ok := s.widgets[sensor]; !ok {
		return
	}
	delete(s.widgets, sensor)
	s.order = slices.DeleteFunc(s.order, func(name string) bool { return name == sensor })
}

func (s *Scene) clear() {
	s.order = nil
	s.widgets = make(map[string]*Widget)
}

func combinedID(sensor string) string {
	return "plot-" + sensor + "-XYZ"
}

func axisID(sensor, axis string) string {
	return "plot-" + sensor + "-" + axis
}

func axisLabel(axis string) string {
	return strings.ToUpper(axis)
}
