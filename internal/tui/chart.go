package tui

import (
	"math"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/redmiedge/sensordash/internal/dashboard"
)

const (
	chartPrecision = 2
	legendRune     = "•"
)

// seriesColors mirror traceColors for the plot lines.
var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue,
	asciigraph.Orange,
	asciigraph.Green,
	asciigraph.Red,
	asciigraph.Violet,
}

// RenderChart draws c as a text line chart no taller than height. Missing readings
// leave gaps.
func RenderChart(c *dashboard.Chart, width, height int) string {
	if c == nil {
		return ""
	}
	canvas := chartStyle(c.Background)

	// title and legend take one line each
	plotH := height - 3
	if width < 20 || plotH < 2 {
		return canvas.Render(c.ID)
	}
	if !hasReadings(c.Traces) {
		return canvas.Render(chartTitle(c) + "\n" + MutedStyle.Render("no data"))
	}

	data := make([][]float64, 0, len(c.Traces))
	colors := make([]asciigraph.AnsiColor, 0, len(c.Traces))
	for i, tr := range c.Traces {
		if len(tr.Y) == 0 {
			continue
		}
		data = append(data, tr.Y)
		colors = append(colors, seriesColors[i%len(seriesColors)])
	}

	plot := asciigraph.PlotMany(data,
		asciigraph.Height(plotH),
		asciigraph.Width(width-12),
		asciigraph.Precision(chartPrecision),
		asciigraph.SeriesColors(colors...),
	)

	out := chartTitle(c) + "\n" + canvas.Render(plot) + "\n" + legend(c, canvas)
	return lipgloss.NewStyle().MaxHeight(height).Render(out)
}

func chartTitle(c *dashboard.Chart) string {
	title := c.Title
	if title == "" {
		title = c.Sensor
	}
	return HeaderStyle.Render(title) + MutedStyle.Render(" "+c.ID)
}

func legend(c *dashboard.Chart, canvas lipgloss.Style) string {
	parts := make([]string, 0, len(c.Traces))
	for i, tr := range c.Traces {
		style := canvas.Foreground(traceColors[i%len(traceColors)])
		parts = append(parts, style.Render(legendRune+" "+tr.Name))
	}
	return strings.Join(parts, "  ")
}

func hasReadings(traces []dashboard.Trace) bool {
	for _, tr := range traces {
		for _, v := range tr.Y {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}

// Sparkline renders the newest values as a one-row sparkline of the given width.
// Readings are shifted so the smallest one sits on the baseline.
func Sparkline(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	readings := make([]float64, 0, len(values))
	lo := math.Inf(1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		readings = append(readings, v)
		lo = math.Min(lo, v)
	}
	if len(readings) == 0 {
		return ""
	}
	for i := range readings {
		readings[i] -= lo
	}

	sl := sparkline.New(width, 1, sparkline.WithStyle(lipgloss.NewStyle().Foreground(secondaryColor)))
	sl.PushAll(readings)
	sl.Draw()
	return sl.View()
}
