package dashboard

import (
	"errors"
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// PNG export dimensions.
const (
	PNGWidth  = 1200
	PNGHeight = 800
)

// ErrNothingToExport is returned when a sensor has no visible chart.
var ErrNothingToExport = errors.New("no visible chart to export")

// PNGFileName is the download name of an exported chart.
func PNGFileName(c *Chart) string {
	return fmt.Sprintf("%s-%s.png", c.Sensor, c.ID)
}

// WritePNG renders c as a 1200x800 PNG using the chart's stored background.
func WritePNG(w io.Writer, c *Chart) error {
	if c == nil {
		return ErrNothingToExport
	}

	bg := backgroundColor(c.Background)
	fg := drawing.ColorBlack
	if c.Background == DarkBackground {
		fg = drawing.ColorWhite
	}

	var series []chart.Series
	for i, tr := range c.Traces {
		xs, ys := plotPoints(tr.Y)
		if len(xs) == 0 {
			continue
		}
		// go-chart needs two points to compute a range.
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}
		series = append(series, chart.ContinuousSeries{
			Name:    tr.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
		})
	}
	if len(series) == 0 {
		return ErrNothingToExport
	}

	axisStyle := chart.Style{FontColor: fg, StrokeColor: fg}
	ch := chart.Chart{
		Title:      c.Title,
		TitleStyle: chart.Style{FontColor: fg},
		Width:      PNGWidth,
		Height:     PNGHeight,
		Background: chart.Style{
			FillColor: bg,
			Padding:   chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		Canvas: chart.Style{FillColor: bg},
		XAxis:  chart.XAxis{Name: "sample", Style: axisStyle},
		YAxis:  chart.YAxis{Style: axisStyle},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart %s: %w", c.ID, err)
	}
	return nil
}

// plotPoints indexes values by sample position and drops missing readings.
func plotPoints(values []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(values))
	ys := make([]float64, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, v)
	}
	return xs, ys
}

func backgroundColor(hex string) drawing.Color {
	if hex == DarkBackground {
		return drawing.Color{R: 0x22, G: 0x22, B: 0x22, A: 0xff}
	}
	return drawing.ColorWhite
}
