package sensor

import (
	"strings"
)

// Trend arrows shown next to live values.
const (
	TrendUp   = "⬆️"
	TrendDown = "⬇️"
	TrendFlat = "➡️"
)

const defaultIcon = "📟"

var icons = map[string]string{
	"Accelerometer": "🧭",
	"Gyroscope":     "🌀",
	"Magnetometer":  "🧲",
	"Gravity":       "🌍",
	"Linear":        "📈",
	"Rotation":      "🔁",
	"GameRotation":  "🎮",
	"GeoRotation":   "🧭",
	"Orientation":   "🧭",
	"Light":         "💡",
	"Proximity":     "📡",
	"Step":          "🚶",
}

// IconFor returns the icon of a sensor name or Group_Axis key.
func IconFor(key string) string {
	base, _, _ := strings.Cut(key, "_")
	if icon, ok := icons[base]; ok {
		return icon
	}
	return defaultIcon
}

// TrendArrow compares a new value with the previous one.
func TrendArrow(newVal, oldVal float64) string {
	switch {
	case newVal > oldVal:
		return TrendUp
	case newVal < oldVal:
		return TrendDown
	default:
		return TrendFlat
	}
}

// LiveRow is one entry of the live value table.
type LiveRow struct {
	Key   string
	Icon  string
	Text  string
	Value float64
	Trend string
}

// Matches reports whether the row text contains the lower-cased query.
func (r LiveRow) Matches(query string) bool {
	if query == "" {
		return true
	}
	text := strings.ToLower(r.Icon + " " + r.Key + " " + r.Text)
	return strings.Contains(text, strings.ToLower(query))
}

// LiveRows builds the live table from the latest and previous rows. The timestamp
// column, keys containing a space and non-numeric values are skipped. A value with no
// previous reading is flat.
func LiveRows(latest, previous []Field) []LiveRow {
	prev := make(map[string]Field, len(previous))
	for _, f := range previous {
		prev[f.Key] = f
	}

	rows := make([]LiveRow, 0, len(latest))
	for _, f := range latest {
		if f.Key == "timestamp" || strings.Contains(f.Key, " ") {
			continue
		}
		v, ok := f.Float()
		if !ok {
			continue
		}
		old := v
		if p, found := prev[f.Key]; found {
			if pv, ok := p.Float(); ok {
				old = pv
			}
		}
		rows = append(rows, LiveRow{
			Key:   f.Key,
			Icon:  IconFor(f.Key),
			Text:  f.Text,
			Value: v,
			Trend: TrendArrow(v, old),
		})
	}
	return rows
}

// IsExempt reports whether a sensor legitimately reports long runs of zero (light and
// step counters) and must be shown regardless.
func IsExempt(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "light") || strings.Contains(lower, "step")
}

// IsValid reports whether at least one axis is non-empty and not entirely zero.
func IsValid(series *Series) bool {
	if series == nil {
		return false
	}
	for _, axis := range series.Axes {
		if len(axis.Values) == 0 {
			continue
		}
		for _, v := range axis.Values {
			if v != 0 {
				return true
			}
		}
	}
	return false
}

// ShouldRender applies the chart validity gate.
func ShouldRender(name string, series *Series) bool {
	if IsExempt(name) {
		return true
	}
	return IsValid(series)
}
