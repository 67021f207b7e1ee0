package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/requirements-guard/internal/core/domain"
)

func TestAnalysisMetricsShareHTTPRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	analysis := NewAnalysisMetrics("api", httpMetrics.Registry())

	analysis.ObserveItem(domain.StatusAmbiguous)
	analysis.ObserveItem(domain.StatusAmbiguous)
	analysis.ObserveItem(domain.StatusClear)
	analysis.ObserveRun(domain.RunStopped, 3, 2*time.Second)
	analysis.SetKnowledgeChunks(42)

	if got := testutil.ToFloat64(analysis.itemsTotal.WithLabelValues("api", "ambiguous")); got != 2 {
		t.Fatalf("expected 2 ambiguous items, got %v", got)
	}
	if got := testutil.ToFloat64(analysis.runsTotal.WithLabelValues("api", "stopped")); got != 1 {
		t.Fatalf("expected 1 stopped run, got %v", got)
	}
	if got := testutil.ToFloat64(analysis.knowledgeChunks); got != 42 {
		t.Fatalf("expected chunk gauge 42, got %v", got)
	}

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "rg_knowledge_chunks") {
		t.Fatalf("expected analysis metrics on the shared endpoint")
	}
}

func TestMiddlewareNormalizesUnknownPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/123", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/analysis", nil))

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", "GET", "other", "404")); got != 1 {
		t.Fatalf("expected unknown path to collapse to other, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", "GET", "/v1/analysis", "404")); got != 1 {
		t.Fatalf("expected analysis path to be kept, got %v", got)
	}
}

func TestRecordSearchOutcomes(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordSearch("api", 3, time.Millisecond, nil)
	m.RecordSearch("api", 0, time.Millisecond, nil)
	m.RecordSearch("api", 0, 0, errors.New("boom"))

	for outcome, want := range map[string]float64{"hit": 1, "no_context": 1, "error": 1} {
		if got := testutil.ToFloat64(m.searchTotal.WithLabelValues("api", outcome)); got != want {
			t.Fatalf("outcome %s: got %v want %v", outcome, got, want)
		}
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartIngest()
	m.FinishIngest("worker", time.Second, 5, nil)
	m.StartIngest()
	m.FinishIngest("worker", time.Second, 0, errors.New("parse"))

	if got := testutil.ToFloat64(m.chunksAdded.WithLabelValues("worker")); got != 5 {
		t.Fatalf("expected 5 added chunks, got %v", got)
	}
	if got := testutil.ToFloat64(m.ingestInFlight); got != 0 {
		t.Fatalf("expected no in-flight ingestions, got %v", got)
	}
	if got := testutil.ToFloat64(m.ingestTotal.WithLabelValues("worker", "error")); got != 1 {
		t.Fatalf("expected one failed ingestion, got %v", got)
	}
}
