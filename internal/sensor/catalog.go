package sensor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoSensors is returned when a device reports no sensors at all.
var ErrNoSensors = errors.New("no sensors detected")

// Spec describes one canonical sensor group: the device-name fragments that identify
// it and the axes it reports.
type Spec struct {
	Name       string   `yaml:"name"`
	Candidates []string `yaml:"candidates"`
	Axes       []string `yaml:"axes"`
}

// Catalog is the ordered set of sensor groups the sampler records.
type Catalog struct {
	Specs []Spec `yaml:"sensors"`
}

// DefaultCatalog returns the built-in sensor groups.
func DefaultCatalog() *Catalog {
	return &Catalog{Specs: []Spec{
		{Name: "Accelerometer", Candidates: []string{"accelerometer"}, Axes: []string{"X", "Y", "Z"}},
		{Name: "Gyroscope", Candidates: []string{"gyroscope"}, Axes: []string{"X", "Y", "Z"}},
		{Name: "Magnetometer", Candidates: []string{"magnetometer"}, Axes: []string{"X", "Y", "Z"}},
		{Name: "Gravity", Candidates: []string{"gravity"}, Axes: []string{"X", "Y", "Z"}},
		{Name: "Linear", Candidates: []string{"linear acceleration"}, Axes: []string{"X", "Y", "Z"}},
		{Name: "Rotation", Candidates: []string{"rotation vector"}, Axes: []string{"X", "Y", "Z", "W", "E"}},
		{Name: "GameRotation", Candidates: []string{"game rotation vector"}, Axes: []string{"X", "Y", "Z", "W"}},
		{Name: "GeoRotation", Candidates: []string{"geomagnetic rotation vector", "geomagnetic rotation"}, Axes: []string{"X", "Y", "Z", "W"}},
		{Name: "Orientation", Candidates: []string{"orientation"}, Axes: []string{"Azimuth", "Pitch", "Roll"}},
		{Name: "Light", Candidates: []string{"light", "alsps"}, Axes: []string{"Lux"}},
		{Name: "Proximity", Candidates: []string{"proximity", "alsps"}, Axes: []string{"Distance"}},
		{Name: "Step", Candidates: []string{"step counter"}, Axes: []string{"Count"}},
	}}
}

// LoadCatalog reads a YAML catalog file:
//
//	sensors:
//	  - name: Accelerometer
//	    candidates: [accelerometer]
//	    axes: [X, Y, Z]
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks that every group has a unique name, at least one candidate and at
// least one axis.
func (c *Catalog) Validate() error {
	if len(c.Specs) == 0 {
		return fmt.Errorf("catalog defines no sensors")
	}
	seen := make(map[string]bool)
	for i, spec := range c.Specs {
		if spec.Name == "" {
			return fmt.Errorf("sensor %d: name is required", i)
		}
		if strings.Contains(spec.Name, "_") {
			return fmt.Errorf("sensor %s: name must not contain '_'", spec.Name)
		}
		if seen[spec.Name] {
			return fmt.Errorf("sensor %s: duplicate name", spec.Name)
		}
		seen[spec.Name] = true
		if len(spec.Candidates) == 0 {
			return fmt.Errorf("sensor %s: at least one candidate is required", spec.Name)
		}
		if len(spec.Axes) == 0 {
			return fmt.Errorf("sensor %s: at least one axis is required", spec.Name)
		}
	}
	return nil
}

// Has reports whether group is a catalog sensor.
func (c *Catalog) Has(group string) bool {
	for _, spec := range c.Specs {
		if spec.Name == group {
			return true
		}
	}
	return false
}

// Columns returns the CSV log header: timestamp followed by Group_Axis columns.
func (c *Catalog) Columns() []string {
	cols := []string{"timestamp"}
	for _, spec := range c.Specs {
		for _, axis := range spec.Axes {
			cols = append(cols, spec.Name+"_"+axis)
		}
	}
	return cols
}

// Normalize splits a Group_Axis column into its catalog group and upper-cased axis.
// Columns without an axis suffix get axis X; group names that merely start with a
// catalog name collapse onto that name.
func (c *Catalog) Normalize(column string) (string, string) {
	group, axis, found := strings.Cut(column, "_")
	if !found {
		axis = "X"
	}
	for _, spec := range c.Specs {
		if strings.HasPrefix(group, spec.Name) {
			group = spec.Name
			break
		}
	}
	return group, strings.ToUpper(axis)
}
