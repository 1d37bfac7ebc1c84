package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"repram/internal/engine"
	"repram/internal/eventlog"
	"repram/internal/stats"
)

type fixedClock engine.Time

func (c fixedClock) Now() engine.Time { return engine.Time(c) }

func TestHealthHandler(t *testing.T) {
	s := NewServer(&stats.Counters{}, fixedClock(0), "")
	defer s.Close()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStatusHandlerReportsSimTime(t *testing.T) {
	s := NewServer(&stats.Counters{}, fixedClock(42.5), "")
	defer s.Close()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["sim_time"] != 42.5 {
		t.Fatalf("sim_time = %v, want 42.5", body["sim_time"])
	}
}

func TestStatsHandlerReturnsSnapshot(t *testing.T) {
	counters := &stats.Counters{}
	counters.Routing.Created = 3
	counters.Routing.Delivered = 2
	s := NewServer(counters, fixedClock(0), "")
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var snap stats.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.Routing.Created != 3 || snap.Routing.Delivered != 2 {
		t.Fatalf("snapshot = %+v, want created=3 delivered=2", snap.Routing)
	}
}

func TestEventlogHandlerWithoutLogPath(t *testing.T) {
	s := NewServer(&stats.Counters{}, fixedClock(0), "")
	defer s.Close()
	req := httptest.NewRequest(http.MethodGet, "/eventlog", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no event log configured", rec.Code)
	}
}

func TestEventlogHandlerFiltersByCategory(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "events-*.log")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	log := eventlog.New(f)
	log.Write(1, eventlog.Net, map[string]any{"kind": "tx"})
	log.Write(2, eventlog.Router, map[string]any{"kind": "rx"})
	f.Close()

	s := NewServer(&stats.Counters{}, fixedClock(0), f.Name())
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/eventlog?category=ROUTER", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var recs []eventlog.Record
	if err := json.NewDecoder(rec.Body).Decode(&recs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(recs) != 1 || recs[0].Category != eventlog.Router {
		t.Fatalf("recs = %+v, want one ROUTER record", recs)
	}
}
