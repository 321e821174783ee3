// Package metrics exposes Prometheus instrumentation for the sampler and proxy servers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensordash"

// Registry owns one server's collectors. Each server gets its own registry so tests
// can run several side by side.
type Registry struct {
	reg *prometheus.Registry

	Requests    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Subscribers prometheus.Gauge
	Events      prometheus.Counter

	// Sampler
	Samples      prometheus.Counter
	SampleErrors prometheus.Counter
	WindowRows   prometheus.Gauge
	CSVRows      prometheus.Counter

	// Proxy
	UpstreamErrors *prometheus.CounterVec
}

// New creates a registry for the named server, "sampler" or "proxy".
func New(subsystem string) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "http_request_duration_seconds",
			Help:    "Time to serve non-streaming HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "stream_subscribers",
			Help: "Open event-stream connections.",
		}),
		Events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "stream_events_total",
			Help: "Event-stream frames written to clients.",
		}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "samples_total",
			Help: "Sensor rows recorded.",
		}),
		SampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "sample_errors_total",
			Help: "Failed sensor reads.",
		}),
		WindowRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "window_rows",
			Help: "Rows currently held in the rolling window.",
		}),
		CSVRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "csv_rows_written_total",
			Help: "Rows flushed to the CSV history log.",
		}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "upstream_errors_total",
			Help: "Failed upstream requests by route.",
		}, []string{"route"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Requests, r.Duration, r.Subscribers, r.Events,
		r.Samples, r.SampleErrors, r.WindowRows, r.CSVRows,
		r.UpstreamErrors,
	)
	return r
}

// Gatherer returns the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Middleware counts requests per matched mux route template.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(req); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, req)

		r.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		r.Duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
