package sampler

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/redmiedge/sensordash/internal/metrics"
	"github.com/redmiedge/sensordash/internal/sse"
)

// Server exposes a Sampler over HTTP.
type Server struct {
	sampler *Sampler
	metrics *metrics.Registry
	log     zerolog.Logger
}

// NewServer wraps s. reg may be nil, in which case /metrics is not served.
func NewServer(s *Sampler, reg *metrics.Registry, log zerolog.Logger) *Server {
	return &Server{sampler: s, metrics: reg, log: log}
}

// Handler returns the routed handler with CORS open to every origin.
func (srv *Server) Handler() http.Handler {
	r := mux.NewRouter()
	if srv.metrics != nil {
		r.Use(srv.metrics.Middleware)
		r.Handle("/metrics", srv.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/sensor-stream", srv.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/sensor-data", srv.handleData).Methods(http.MethodGet)
	r.HandleFunc("/export", srv.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/health", srv.handleHealth).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(r)
}

func (srv *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, err := sse.Stream(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	interval := srv.sampler.Interval()
	if err := sse.WriteRetry(w, interval); err != nil {
		return
	}
	flusher.Flush()

	if srv.metrics != nil {
		srv.metrics.Subscribers.Inc()
		defer srv.metrics.Subscribers.Dec()
	}
	srv.log.Debug().Str("remote", r.RemoteAddr).Msg("Stream subscriber connected")
	defer srv.log.Debug().Str("remote", r.RemoteAddr).Msg("Stream subscriber disconnected")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		data, err := srv.sampler.Snapshot().MarshalJSON()
		if err != nil {
			srv.log.Error().Err(err).Msg("Failed to encode snapshot")
			return
		}
		if err := sse.WriteEvent(w, sse.Event{Data: string(data)}); err != nil {
			return
		}
		flusher.Flush()
		if srv.metrics != nil {
			srv.metrics.Events.Inc()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (srv *Server) handleData(w http.ResponseWriter, _ *http.Request) {
	data, err := srv.sampler.Snapshot().MarshalJSON()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (srv *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if _, err := srv.sampler.Flush(); err != nil {
		srv.log.Error().Err(err).Msg("Failed to flush CSV log before export")
	}

	path := srv.sampler.CSVPath()
	if path == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "CSV not available"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "CSV not available"})
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, path)
}

func (srv *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sensors": srv.sampler.Mapping().CallList(),
		"rows":    srv.sampler.Rows(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
