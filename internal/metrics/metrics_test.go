package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	reg := New("sampler")

	r := mux.NewRouter()
	r.Use(reg.Middleware)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.HandleFunc("/export", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	})

	for _, path := range []string{"/health", "/health", "/export"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Requests.WithLabelValues("/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Requests.WithLabelValues("/export", "404")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := New("proxy")
	reg.UpstreamErrors.WithLabelValues("/sensor-data").Inc()
	reg.Subscribers.Set(2)

	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `sensordash_proxy_upstream_errors_total{route="/sensor-data"} 1`), text)
	assert.Contains(t, text, "sensordash_proxy_stream_subscribers 2")
}
