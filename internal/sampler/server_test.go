package sampler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmiedge/sensordash/internal/metrics"
	"github.com/redmiedge/sensordash/internal/sensor"
	"github.com/redmiedge/sensordash/internal/sse"
)

func newSampledServer(t *testing.T, csvPath string) (*Sampler, *httptest.Server) {
	t.Helper()
	src := &fakeSource{
		devices:  []string{"BMI160 Accelerometer"},
		readings: map[string][]float64{"BMI160 Accelerometer": {0.5, 9.8, 0.1}},
	}
	s := newTestSampler(t, src, csvPath)
	_, err := s.Discover(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.SampleOnce(context.Background()))

	srv := httptest.NewServer(NewServer(s, metrics.New("sampler"), zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func get(t *testing.T, url string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServerSensorData(t *testing.T) {
	_, srv := newSampledServer(t, "")

	resp := get(t, srv.URL+"/sensor-data", map[string]string{"Origin": "http://phone.local"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	snap, err := sensor.Decode(body)
	require.NoError(t, err)
	acc, ok := snap.Sensor("Accelerometer")
	require.True(t, ok)
	assert.Equal(t, []float64{9.8}, acc.Axes[1].Values)
}

func TestServerStream(t *testing.T) {
	_, srv := newSampledServer(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sensor-stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, sse.ContentType, resp.Header.Get("Content-Type"))

	br := bufio.NewReader(resp.Body)
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "retry: 500\n", line)

	for ev, err := range sse.Read(br) {
		require.NoError(t, err)
		snap, err := sensor.Decode([]byte(ev.Data))
		require.NoError(t, err)
		assert.True(t, snap.HasSensor("Accelerometer"))
		return
	}
	t.Fatal("stream ended without a snapshot")
}

func TestServerExport(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		_, srv := newSampledServer(t, "")
		resp := get(t, srv.URL+"/export", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "CSV not available", body["error"])
	})

	t.Run("flushes pending rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sensor_log.csv")
		s, srv := newSampledServer(t, path)
		require.Equal(t, 1, s.csv.Pending())

		resp := get(t, srv.URL+"/export", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "sensor_log.csv")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[1], "2024-05-01 10:00:00,0.5,9.8,0.1"), lines[1])
		assert.Equal(t, 0, s.csv.Pending())
	})
}

func TestServerHealthAndMetrics(t *testing.T) {
	_, srv := newSampledServer(t, "")

	resp := get(t, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health struct {
		Status  string   `json:"status"`
		Sensors []string `json:"sensors"`
		Rows    int      `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, []string{"BMI160 Accelerometer"}, health.Sensors)
	assert.Equal(t, 1, health.Rows)

	resp = get(t, srv.URL+"/metrics", nil)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sensordash_sampler_http_requests_total{code="200",route="/health"} 1`)
}
