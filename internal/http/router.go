// Package http serves the monitor's control API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/erikprat61/supreme-memory/internal/observability/metrics"
	"github.com/erikprat61/supreme-memory/internal/service/monitor"
	"github.com/erikprat61/supreme-memory/internal/service/pipeline"
)

// Controller is the part of the monitor the API drives.
type Controller interface {
	Status() monitor.Status
	Flush() (bool, error)
}

// NewRouter constructs the HTTP router for the service. events serves the
// WebSocket event stream; nil leaves /v1/events unrouted.
func NewRouter(ctrl Controller, events http.Handler) http.Handler {
	r := chi.NewRouter()
	m := metrics.DefaultMetrics

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(m))

	r.Handle("/metrics", promhttp.Handler())

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if st := ctrl.Status(); !st.Running || !st.Capturing {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not capturing"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, ctrl.Status())
		})
		r.Post("/flush", func(w http.ResponseWriter, _ *http.Request) {
			submitted, err := ctrl.Flush()
			switch {
			case errors.Is(err, monitor.ErrNotStreaming), errors.Is(err, monitor.ErrStopped), errors.Is(err, pipeline.ErrClosed):
				m.RecordManualFlush("rejected")
				writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
				return
			case err != nil:
				m.RecordManualFlush("rejected")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if submitted {
				m.RecordManualFlush("submitted")
			} else {
				m.RecordManualFlush("empty")
			}
			writeJSON(w, http.StatusOK, map[string]bool{"submitted": submitted})
		})
		if events != nil {
			r.Handle("/events", events)
		}
	})

	return r
}

// instrument counts requests by route pattern and status.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordHTTPRequest(route, status)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
