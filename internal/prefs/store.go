package prefs

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Persisted keys.
const (
	KeySelectedSensor = "selectedSensor"
	KeyPinnedSensors  = "pinnedSensors"
	viewModePrefix    = "viewMode-"
	axisFilterPrefix  = "axisFilter-"
)

// AllSensors is the selected-sensor mode that shows every sensor.
const AllSensors = "all"

// ViewMode selects how a sensor's axes are charted.
type ViewMode string

const (
	ViewCombined ViewMode = "combined"
	ViewSeparate ViewMode = "separate"
)

// AxisAll is the axis filter that shows every chart of the current view mode.
const AxisAll = "all"

// AxisFilters lists the selectable axis filters in display order.
var AxisFilters = []string{AxisAll, "X", "Y", "Z", "W", "E"}

// Store exposes typed accessors over a KV. The selected sensor and pinned list are
// read once at construction and kept in memory; view mode and axis filter are read
// through on every call. Dark mode is never persisted.
type Store struct {
	kv       KV
	selected string
	pinned   []string
	darkMode bool
}

// New creates a store on top of kv.
func New(kv KV) *Store {
	s := &Store{kv: kv, selected: AllSensors}
	if v, ok := kv.Get(KeySelectedSensor); ok && v != "" {
		s.selected = v
	}
	if v, ok := kv.Get(KeyPinnedSensors); ok {
		var pinned []string
		if err := json.Unmarshal([]byte(v), &pinned); err == nil {
			s.pinned = dedupe(pinned)
		}
	}
	return s
}

// SelectedSensor returns the selected sensor mode: AllSensors or a sensor name.
func (s *Store) SelectedSensor() string {
	return s.selected
}

// SetSelectedSensor updates and persists the selected sensor mode.
func (s *Store) SetSelectedSensor(sensor string) error {
	s.selected = sensor
	return s.kv.Set(KeySelectedSensor, sensor)
}

// DarkMode returns the in-memory dark-mode flag.
func (s *Store) DarkMode() bool {
	return s.darkMode
}

// SetDarkMode updates the dark-mode flag for this session.
func (s *Store) SetDarkMode(dark bool) {
	s.darkMode = dark
}

// Pinned returns a copy of the pinned sensors in pin order.
func (s *Store) Pinned() []string {
	return slices.Clone(s.pinned)
}

// IsPinned reports whether sensor is pinned.
func (s *Store) IsPinned(sensor string) bool {
	return slices.Contains(s.pinned, sensor)
}

// TogglePin unpins a pinned sensor or appends an unpinned one, then persists the list.
func (s *Store) TogglePin(sensor string) error {
	if i := slices.Index(s.pinned, sensor); i >= 0 {
		s.pinned = slices.Delete(s.pinned, i, i+1)
	} else {
		s.pinned = append(s.pinned, sensor)
	}

	data, err := json.Marshal(s.pinnedOrEmpty())
	if err != nil {
		return fmt.Errorf("failed to encode pinned sensors: %w", err)
	}
	return s.kv.Set(KeyPinnedSensors, string(data))
}

func (s *Store) pinnedOrEmpty() []string {
	if s.pinned == nil {
		return []string{}
	}
	return s.pinned
}

// View returns the saved view mode of sensor, combined by default.
func (s *Store) View(sensor string) ViewMode {
	if v, ok := s.kv.Get(viewModePrefix + sensor); ok && ViewMode(v) == ViewSeparate {
		return ViewSeparate
	}
	return ViewCombined
}

// SetView persists the view mode of sensor.
func (s *Store) SetView(sensor string, view ViewMode) error {
	return s.kv.Set(viewModePrefix+sensor, string(view))
}

// AxisFilter returns the saved axis filter of sensor, AxisAll by default.
func (s *Store) AxisFilter(sensor string) string {
	if v, ok := s.kv.Get(axisFilterPrefix + sensor); ok && v != "" {
		return v
	}
	return AxisAll
}

// SetAxisFilter persists the axis filter of sensor.
func (s *Store) SetAxisFilter(sensor, axis string) error {
	if !slices.Contains(AxisFilters, axis) {
		return fmt.Errorf("unknown axis filter %q", axis)
	}
	return s.kv.Set(axisFilterPrefix+sensor, axis)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
