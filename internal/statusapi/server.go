// Package statusapi exposes a running simulation's progress and
// accumulated statistics over HTTP: /status for liveness and simulated
// clock position, /stats for the live counters and derived averages,
// /metrics for Prometheus scraping, and /eventlog for querying the
// recorded trace.
package statusapi

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"repram/internal/engine"
	"repram/internal/eventlog"
	"repram/internal/stats"
)

// Clock reports the simulator's current position, so /status can show
// progress without the API needing to touch the scheduler directly.
type Clock interface {
	Now() engine.Time
}

// Server serves a running simulation's diagnostics surface.
type Server struct {
	counters *stats.Counters
	clock    Clock
	logPath  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	started         time.Time
	securityMW      *SecurityMiddleware
}

// NewServer wires a status API in front of counters, clock, and the event
// log file at logPath (empty disables /eventlog).
func NewServer(counters *stats.Counters, clock Clock, logPath string) *Server {
	requestTotal := registerCounterVec(prometheus.CounterOpts{
		Name: "pons_status_requests_total", Help: "Total number of status API HTTP requests",
	}, []string{"method", "endpoint", "status"})
	requestDuration := registerHistogramVec(prometheus.HistogramOpts{
		Name: "pons_status_request_duration_seconds", Help: "Status API HTTP request duration in seconds",
	}, []string{"method", "endpoint"})

	return &Server{
		counters:        counters,
		clock:           clock,
		logPath:         logPath,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		started:         time.Now(),
		securityMW:      NewSecurityMiddleware(100, 200, 1024*1024),
	}
}

// Router builds the mux.Router serving this status API.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.securityMW.Middleware)
	r.Use(TimeoutMiddleware(10 * time.Second))

	r.HandleFunc("/health", s.instrument("health", s.healthHandler)).Methods("GET")
	r.HandleFunc("/status", s.instrument("status", s.statusHandler)).Methods("GET")
	r.HandleFunc("/stats", s.instrument("stats", s.statsHandler)).Methods("GET")
	r.HandleFunc("/eventlog", s.instrument("eventlog", s.eventlogHandler)).Methods("GET")
	r.PathPrefix("/metrics").Handler(promhttp.Handler()).Methods("GET")

	return r
}

func (s *Server) instrument(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(wrapped, r)
		s.requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		s.requestTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(wrapped.statusCode)).Inc()
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "running",
		"uptime":    time.Since(s.started).String(),
		"sim_time":  float64(s.clock.Now()),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.counters.Snapshot())
}

// eventlogHandler serves ?category=NET,ROUTER&start=0&end=100 queries
// against the run's recorded trace.
func (s *Server) eventlogHandler(w http.ResponseWriter, r *http.Request) {
	if s.logPath == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event log not available"})
		return
	}
	f, err := os.Open(s.logPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer f.Close()

	start := parseTimeParam(r, "start", 0)
	end := parseTimeParam(r, "end", 0)
	var cats map[eventlog.Category]bool
	if q := r.URL.Query().Get("category"); q != "" {
		cats = make(map[eventlog.Category]bool)
		for _, c := range strings.Split(q, ",") {
			cats[eventlog.Category(strings.ToUpper(strings.TrimSpace(c)))] = true
		}
	}

	recs, err := eventlog.Load(f, start, end, cats)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func parseTimeParam(r *http.Request, name string, def engine.Time) engine.Time {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return engine.Time(f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Close releases the security middleware's background goroutines.
func (s *Server) Close() error {
	if s.securityMW != nil {
		s.securityMW.Close()
	}
	return nil
}
