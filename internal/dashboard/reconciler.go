package dashboard

import (
	"fmt"
	"slices"
	"strings"

	"github.com/redmiedge/sensordash/internal/prefs"
	"github.com/redmiedge/sensordash/internal/sensor"
)

// Signature is the render key: the selected sensor mode and the pinned list in pin
// order. Two renders with equal signatures reuse the existing widgets.
type Signature struct {
	Mode   string
	Pinned []string
}

// String returns the comparable form of the signature.
func (s Signature) String() string {
	return s.Mode + "|" + strings.Join(s.Pinned, ",")
}

// Result describes one reconciliation.
type Result struct {
	// Rebuilt is true when every widget was dropped and recreated.
	Rebuilt bool
	// Order is the sequence in which sensors were plotted.
	Order []string
	// FellBack is true when the selected sensor was missing and the mode reset to all.
	FellBack bool
}

// Reconciler decides between updating existing widgets and rebuilding them.
type Reconciler struct {
	scene    *Scene
	renderer *Renderer
	prefs    *prefs.Store
	last     string
	rendered int
}

// NewReconciler creates a reconciler driving renderer over scene.
func NewReconciler(scene *Scene, renderer *Renderer, store *prefs.Store) *Reconciler {
	return &Reconciler{scene: scene, renderer: renderer, prefs: store}
}

// Signature returns the signature the current preferences produce.
func (r *Reconciler) Signature() Signature {
	return Signature{Mode: r.prefs.SelectedSensor(), Pinned: r.prefs.Pinned()}
}

// Invalidate forces the next Render to rebuild.
func (r *Reconciler) Invalidate() {
	r.last = ""
}

// Render reconciles the scene with snap. The returned error only reports a failure to
// persist the fallback to all sensors; rendering has happened regardless.
func (r *Reconciler) Render(snap *sensor.Snapshot) (Result, error) {
	var (
		res    Result
		err    error
		names  = snap.SensorNames()
		render []string
	)

	mode := r.prefs.SelectedSensor()
	switch {
	case mode == prefs.AllSensors:
		render = names
	case slices.Contains(names, mode):
		render = []string{mode}
	default:
		render = names
		res.FellBack = true
		if perr := r.prefs.SetSelectedSensor(prefs.AllSensors); perr != nil {
			err = fmt.Errorf("failed to persist sensor fallback: %w", perr)
		}
	}

	sig := r.Signature().String()
	if sig == r.last && r.rendered > 0 {
		for _, name := range render {
			r.renderer.Plot(name, snap)
		}
		res.Order = render
		return res, err
	}

	r.last = sig
	r.scene.clear()

	pinned := r.prefs.Pinned()
	ordered := make([]string, 0, len(render))
	for _, name := range pinned {
		if slices.Contains(render, name) {
			ordered = append(ordered, name)
		}
	}
	for _, name := range render {
		if !slices.Contains(pinned, name) {
			ordered = append(ordered, name)
		}
	}

	for _, name := range ordered {
		r.renderer.Plot(name, snap)
	}
	r.rendered = len(ordered)

	res.Rebuilt = true
	res.Order = ordered
	return res, err
}
