// Package sensor holds the sensor data model shared by the sampler, the proxy and the
// dashboard: snapshots, the sensor catalog and the small formatting helpers.
package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when a pushed payload cannot be decoded as a Snapshot.
var ErrMalformed = errors.New("malformed snapshot")

// Timestamp is one entry of the shared time axis. The literal text is kept so that
// numeric and string timestamps both survive a decode/encode round trip.
type Timestamp struct {
	Text    string
	Numeric bool
}

func (t Timestamp) String() string {
	return t.Text
}

// Axis is one named reading sequence of a sensor, index-aligned with Snapshot.Time.
type Axis struct {
	Name   string
	Values []float64
}

// Series holds all axes of one sensor in payload order.
type Series struct {
	Name string
	Axes []Axis
}

// Field is one scalar of a latest/previous row.
type Field struct {
	Key     string
	Text    string
	Numeric bool
}

// Float parses the field value as a number.
func (f Field) Float() (float64, bool) {
	v, err := strconv.ParseFloat(f.Text, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Snapshot is one complete pushed dataset. A new Snapshot replaces the previous one
// wholesale; sensor and axis order follow the key order of the payload.
type Snapshot struct {
	Time        []Timestamp
	Sensors     []Series
	LatestRow   []Field
	PreviousRow []Field
}

// SensorNames returns the sensor names in payload order.
func (s *Snapshot) SensorNames() []string {
	names := make([]string, 0, len(s.Sensors))
	for _, series := range s.Sensors {
		names = append(names, series.Name)
	}
	return names
}

// Sensor looks up a sensor by name.
func (s *Snapshot) Sensor(name string) (*Series, bool) {
	for i := range s.Sensors {
		if s.Sensors[i].Name == name {
			return &s.Sensors[i], true
		}
	}
	return nil, false
}

// HasSensor reports whether the snapshot carries the named sensor.
func (s *Snapshot) HasSensor(name string) bool {
	_, ok := s.Sensor(name)
	return ok
}

// Decode parses one pushed payload. Object key order is preserved for sensors, axes
// and row fields, which is why gjson is used instead of decoding into maps.
func Decode(data []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformed)
	}

	sensors := root.Get("sensors")
	if !sensors.Exists() || !sensors.IsObject() {
		return nil, fmt.Errorf("%w: missing sensors", ErrMalformed)
	}

	snap := &Snapshot{}
	root.Get("time").ForEach(func(_, v gjson.Result) bool {
		snap.Time = append(snap.Time, Timestamp{Text: v.String(), Numeric: v.Type == gjson.Number})
		return true
	})

	sensors.ForEach(func(name, axes gjson.Result) bool {
		series := Series{Name: name.String()}
		axes.ForEach(func(axisName, values gjson.Result) bool {
			axis := Axis{Name: axisName.String(), Values: []float64{}}
			values.ForEach(func(_, v gjson.Result) bool {
				axis.Values = append(axis.Values, readingValue(v))
				return true
			})
			series.Axes = append(series.Axes, axis)
			return true
		})
		snap.Sensors = append(snap.Sensors, series)
		return true
	})

	snap.LatestRow = decodeRow(root.Get("latest_row"))
	snap.PreviousRow = decodeRow(root.Get("previous_row"))
	return snap, nil
}

// readingValue maps a JSON reading to a float; null becomes NaN so exports can leave
// the cell empty.
func readingValue(v gjson.Result) float64 {
	if v.Type == gjson.Null {
		return math.NaN()
	}
	return v.Float()
}

func decodeRow(row gjson.Result) []Field {
	var fields []Field
	row.ForEach(func(k, v gjson.Result) bool {
		fields = append(fields, Field{Key: k.String(), Text: v.String(), Numeric: v.Type == gjson.Number})
		return true
	})
	return fields
}

// MarshalJSON encodes the snapshot in the wire layout, keeping key order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"time":[`)
	for i, t := range s.Time {
		if i > 0 {
			buf.WriteByte(',')
		}
		if t.Numeric {
			buf.WriteString(t.Text)
		} else {
			writeString(&buf, t.Text)
		}
	}
	buf.WriteString(`],"sensors":{`)
	for i, series := range s.Sensors {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(&buf, series.Name)
		buf.WriteString(":{")
		for j, axis := range series.Axes {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeString(&buf, axis.Name)
			buf.WriteString(":[")
			for k, v := range axis.Values {
				if k > 0 {
					buf.WriteByte(',')
				}
				buf.WriteString(formatNumber(v))
			}
			buf.WriteByte(']')
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`},"latest_row":`)
	writeRow(&buf, s.LatestRow)
	buf.WriteString(`,"previous_row":`)
	writeRow(&buf, s.PreviousRow)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeRow(buf *bytes.Buffer, fields []Field) {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, f.Key)
		buf.WriteByte(':')
		if f.Numeric {
			buf.WriteString(f.Text)
		} else {
			writeString(buf, f.Text)
		}
	}
	buf.WriteByte('}')
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// formatNumber renders a reading the way a JSON encoder would; NaN has no JSON
// spelling and becomes null.
func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "null"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NumberField builds a numeric row field.
func NumberField(key string, v float64) Field {
	return Field{Key: key, Text: formatNumber(v), Numeric: true}
}

// TextField builds a string row field.
func TextField(key, text string) Field {
	return Field{Key: key, Text: text}
}
