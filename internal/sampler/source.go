package sampler

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Source lists the sensors a device offers and reads one value set from each.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, devices []string) (map[string][]float64, error)
}

// DefaultTermuxCommand is the Termux:API binary used to talk to the phone sensors.
const DefaultTermuxCommand = "termux-sensor"

// TermuxSource reads sensors through the termux-sensor command.
type TermuxSource struct {
	Command string
	Timeout time.Duration
}

// NewTermuxSource returns a source running command, or termux-sensor when empty.
func NewTermuxSource(command string) *TermuxSource {
	if command == "" {
		command = DefaultTermuxCommand
	}
	return &TermuxSource{Command: command, Timeout: 10 * time.Second}
}

// List runs `termux-sensor -l`.
func (s *TermuxSource) List(ctx context.Context) ([]string, error) {
	out, err := s.run(ctx, "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	return ParseSensorList(out), nil
}

// Read runs `termux-sensor -s a,b -n 1`.
func (s *TermuxSource) Read(ctx context.Context, devices []string) (map[string][]float64, error) {
	if len(devices) == 0 {
		return map[string][]float64{}, nil
	}
	out, err := s.run(ctx, "-s", strings.Join(devices, ","), "-n", "1")
	if err != nil {
		return nil, fmt.Errorf("failed to read sensors: %w", err)
	}
	return ParseReadings(out)
}

func (s *TermuxSource) run(ctx context.Context, args ...string) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return exec.CommandContext(ctx, s.Command, args...).Output()
}

// ParseSensorList accepts either the JSON form {"sensors": [...]} or one sensor per
// line, where anything after a colon is a description.
func ParseSensorList(out []byte) []string {
	if gjson.ValidBytes(out) {
		list := gjson.GetBytes(out, "sensors")
		if list.IsArray() {
			var names []string
			for _, v := range list.Array() {
				names = append(names, v.String())
			}
			return names
		}
	}

	var names []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, _, _ := strings.Cut(line, ":")
		names = append(names, strings.TrimSpace(name))
	}
	return names
}

// ParseReadings decodes {"device": {"values": [...]}, ...}.
func ParseReadings(out []byte) (map[string][]float64, error) {
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("invalid sensor output")
	}
	readings := make(map[string][]float64)
	gjson.ParseBytes(out).ForEach(func(name, body gjson.Result) bool {
		var values []float64
		for _, v := range body.Get("values").Array() {
			values = append(values, v.Float())
		}
		readings[name.String()] = values
		return true
	})
	return readings, nil
}

// SimulatedDevices are the sensor names reported by SimulatedSource. There is no
// proximity device, so Proximity is derived from the light sensor.
var SimulatedDevices = []string{
	"LSM6DSO Accelerometer",
	"LSM6DSO Gyroscope",
	"AK09918 Magnetometer",
	"Gravity Sensor",
	"Linear Acceleration Sensor",
	"Rotation Vector",
	"Game Rotation Vector",
	"GeoMagnetic Rotation Vector",
	"Orientation Sensor",
	"TMD3725 Ambient Light",
	"Step Counter",
}

// SimulatedSource produces deterministic waves for development without a phone.
type SimulatedSource struct {
	mu   sync.Mutex
	tick int
}

// NewSimulatedSource returns a fresh simulated device.
func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{}
}

func (s *SimulatedSource) List(context.Context) ([]string, error) {
	return append([]string(nil), SimulatedDevices...), nil
}

func (s *SimulatedSource) Read(_ context.Context, devices []string) (map[string][]float64, error) {
	s.mu.Lock()
	t := float64(s.tick)
	s.tick++
	s.mu.Unlock()

	readings := make(map[string][]float64, len(devices))
	for i, dev := range devices {
		phase := float64(i)
		wave := func(k int, amp float64) float64 {
			return round(amp * math.Sin(t*0.3+phase+float64(k)))
		}
		name := strings.ToLower(dev)
		switch {
		case strings.Contains(name, "light"):
			readings[dev] = []float64{round(200 + 50*math.Sin(t*0.1)), 5}
		case strings.Contains(name, "step"):
			readings[dev] = []float64{t}
		case strings.Contains(name, "rotation"):
			readings[dev] = []float64{wave(0, 1), wave(1, 1), wave(2, 1), wave(3, 1), 0}
		default:
			readings[dev] = []float64{wave(0, 10), wave(1, 10), wave(2, 10)}
		}
	}
	return readings, nil
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
