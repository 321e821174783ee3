package sensor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("no data available for export")

// CSVFileName returns the export file name for the given moment.
func CSVFileName(now time.Time) string {
	return fmt.Sprintf("sensor-data-%d.csv", now.UnixMilli())
}

// WriteCSV writes the snapshot as a table: a `time,<sensor>_<axis>,...` header in
// sensor-then-axis order and one row per time index. Readings missing at an index are
// written as empty fields.
func WriteCSV(w io.Writer, snap *Snapshot) error {
	if snap == nil || len(snap.Sensors) == 0 {
		return ErrNoData
	}

	cw := csv.NewWriter(w)
	header := []string{"time"}
	for _, series := range snap.Sensors {
		for _, axis := range series.Axes {
			header = append(header, series.Name+"_"+axis.Name)
		}
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for idx, t := range snap.Time {
		row := make([]string, 0, len(header))
		row = append(row, t.Text)
		for _, series := range snap.Sensors {
			for _, axis := range series.Axes {
				row = append(row, csvValue(axis.Values, idx))
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", idx, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvValue(values []float64, idx int) string {
	if idx >= len(values) || math.IsNaN(values[idx]) {
		return ""
	}
	return strconv.FormatFloat(values[idx], 'f', -1, 64)
}
