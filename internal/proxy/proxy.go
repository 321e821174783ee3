// Package proxy relays the phone sampler's endpoints to the desktop, so dashboards can
// connect to one stable address.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/redmiedge/sensordash/internal/metrics"
	"github.com/redmiedge/sensordash/internal/sse"
)

const chunkSize = 32 * 1024

// Server relays requests to an Upstream.
type Server struct {
	upstream *Upstream
	metrics  *metrics.Registry
	log      zerolog.Logger
}

// NewServer creates a proxy for up. reg may be nil.
func NewServer(up *Upstream, reg *metrics.Registry, log zerolog.Logger) *Server {
	return &Server{upstream: up, metrics: reg, log: log}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/sensor-stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/sensor-data", s.handleData).Methods(http.MethodGet)
	r.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// handleStream forwards the upstream event stream byte for byte. Failures are
// reported to the client as an error event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, _ := w.(http.Flusher)

	body, err := s.upstream.OpenStream(r.Context())
	if err != nil {
		s.streamError(w, flusher, err)
		return
	}
	defer body.Close()

	if s.metrics != nil {
		s.metrics.Subscribers.Inc()
		defer s.metrics.Subscribers.Dec()
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(r.Context().Err(), context.Canceled) {
				return
			}
			s.streamError(w, flusher, err)
			return
		}
	}
}

func (s *Server) streamError(w http.ResponseWriter, flusher http.Flusher, err error) {
	s.log.Warn().Err(err).Str("upstream", s.upstream.BaseURL()).Msg("Upstream stream failed")
	s.countUpstreamError("/sensor-stream")

	sse.WriteEvent(w, sse.Event{Type: "error", Data: err.Error()})
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	data, err := s.upstream.FetchSnapshot(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("Upstream snapshot failed")
		s.countUpstreamError("/sensor-data")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.upstream.ExportURL(), http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"phone_host": s.upstream.BaseURL(),
	})
}

func (s *Server) countUpstreamError(route string) {
	if s.metrics != nil {
		s.metrics.UpstreamErrors.WithLabelValues(route).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
