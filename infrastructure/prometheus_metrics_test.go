package infrastructure

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

func TestPrometheusMetricsRecordsActivity(t *testing.T) {
	m := NewPrometheusMetrics()

	m.JobQueued()
	m.JobQueued()
	m.JobDispatched()
	m.QueueState(1, 1)
	m.ClipRendered()
	m.ClipSkipped()
	m.ClipRendered()
	m.JobCompleted(domain.JobStatusFinished, 3*time.Second)
	m.HighlightCacheLookup(true)
	m.HighlightCacheLookup(false)
	m.HighlightCacheLookup(false)

	if got := testutil.ToFloat64(m.jobsQueued); got != 2 {
		t.Fatalf("queued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.queueLength); got != 1 {
		t.Fatalf("queue length = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.clips.WithLabelValues("rendered")); got != 2 {
		t.Fatalf("rendered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.jobsCompleted.WithLabelValues("finished")); got != 1 {
		t.Fatalf("finished = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("cache misses = %v, want 2", got)
	}
}

func TestPrometheusMetricsHandler(t *testing.T) {
	m := NewPrometheusMetrics()
	m.JobQueued()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "yapper_jobs_queued_total 1") {
		t.Fatalf("exposition missing counter:\n%s", rec.Body.String())
	}
}
