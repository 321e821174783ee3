package sampler

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/TyphonHill/go-mermaid/diagrams/flowchart"
	"github.com/fatih/color"

	"github.com/redmiedge/sensordash/internal/sensor"
)

const notFound = "NOT FOUND"

// Assignment binds one catalog group to a device sensor. Device is empty when no
// device matched.
type Assignment struct {
	Group  string
	Device string
}

// Mapping is the catalog-ordered list of group assignments.
type Mapping []Assignment

// MatchSensor returns the first device whose name contains a candidate, trying the
// candidates in order. Matching is case-insensitive.
func MatchSensor(devices, candidates []string) string {
	for _, term := range candidates {
		term = strings.ToLower(term)
		for _, dev := range devices {
			if strings.Contains(strings.ToLower(dev), term) {
				return dev
			}
		}
	}
	return ""
}

// BuildMapping matches every catalog group against the device list.
func BuildMapping(cat *sensor.Catalog, devices []string) Mapping {
	m := make(Mapping, 0, len(cat.Specs))
	for _, spec := range cat.Specs {
		m = append(m, Assignment{Group: spec.Name, Device: MatchSensor(devices, spec.Candidates)})
	}
	return m
}

// Device returns the device mapped to group.
func (m Mapping) Device(group string) (string, bool) {
	for _, a := range m {
		if a.Group == group {
			return a.Device, a.Device != ""
		}
	}
	return "", false
}

// CallList returns the sorted, de-duplicated devices to read each sample.
func (m Mapping) CallList() []string {
	seen := make(map[string]bool)
	var list []string
	for _, a := range m {
		if a.Device != "" && !seen[a.Device] {
			seen[a.Device] = true
			list = append(list, a.Device)
		}
	}
	sort.Strings(list)
	return list
}

// WriteTable prints the canonical → device table.
func (m Mapping) WriteTable(w io.Writer) {
	found := color.New(color.FgGreen)
	missing := color.New(color.FgRed)
	for _, a := range m {
		fmt.Fprintf(w, " %-14s -> ", a.Group)
		if a.Device == "" {
			missing.Fprintln(w, notFound)
			continue
		}
		found.Fprintln(w, a.Device)
	}
}

// Mermaid renders the mapping as a flowchart from groups to devices. Devices shared by
// several groups appear once.
func (m Mapping) Mermaid() string {
	diagram := flowchart.NewFlowchart()
	diagram.EnableMarkdownFence()
	diagram.SetDirection(flowchart.FlowchartDirectionTopDown)

	deviceNodes := make(map[string]*flowchart.Node)
	var missingNode *flowchart.Node

	for _, a := range m {
		group := diagram.AddNode(a.Group)
		group.SetShape(flowchart.NodeShapeTerminal)

		if a.Device == "" {
			if missingNode == nil {
				missingNode = diagram.AddNode(notFound)
				missingNode.SetShape(flowchart.NodeShapeDecision)
				missingNode.SetStyle(nodeStyle("#ffebee", "#b71c1c"))
			}
			diagram.AddLink(group, missingNode)
			continue
		}

		dev, ok := deviceNodes[a.Device]
		if !ok {
			dev = diagram.AddNode(a.Device)
			dev.SetShape(flowchart.NodeShapeProcess)
			dev.SetStyle(nodeStyle("#e8f5e9", "#1b5e20"))
			deviceNodes[a.Device] = dev
		}
		diagram.AddLink(group, dev)
	}

	return diagram.String()
}

func nodeStyle(fill, stroke string) *flowchart.NodeStyle {
	style := flowchart.NewNodeStyle()
	style.StrokeWidth = 1
	style.Fill = fill
	style.Stroke = stroke
	return style
}
