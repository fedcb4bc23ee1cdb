package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iamwavecut/phishguard/internal/db"
)

type statsStub struct {
	stats db.AggregateStats
	err   error
}

func (s statsStub) GetAggregateStats(context.Context, time.Time) (db.AggregateStats, error) {
	return s.stats, s.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(":0", nil, nil).Handler(), "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatsJSON(t *testing.T) {
	t.Parallel()

	s := NewServer(":0", statsStub{stats: db.AggregateStats{TotalUsers: 5, ThreatsFound: 2}}, nil)
	rec := get(t, s.Handler(), "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var got db.AggregateStats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalUsers != 5 || got.ThreatsFound != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestStatsError(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(":0", statsStub{err: errors.New("locked")}, nil).Handler(), "/stats")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestMetricsMounted(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("phishguard_pipeline_runs_total 1"))
	})
	rec := get(t, NewServer(":0", nil, metrics).Handler(), "/metrics")
	if !strings.Contains(rec.Body.String(), "phishguard_pipeline_runs_total") {
		t.Fatalf("metrics handler not mounted: %s", rec.Body.String())
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0", nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
