// infrastructure/prometheus_metrics.go
package infrastructure

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitovidale/yapper-shorts-service/domain"
	"github.com/vitovidale/yapper-shorts-service/usecase"
)

// PrometheusMetrics records scheduler and worker activity on its own registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	jobsQueued     prometheus.Counter
	jobsDispatched prometheus.Counter
	jobsCompleted  *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	clips          *prometheus.CounterVec
	queueLength    prometheus.Gauge
	activeJobs     prometheus.Gauge
	cacheLookups   *prometheus.CounterVec
}

func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		jobsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yapper_jobs_queued_total",
			Help: "Video generation jobs accepted into the queue.",
		}),
		jobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yapper_jobs_dispatched_total",
			Help: "Jobs handed to a worker.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yapper_jobs_completed_total",
			Help: "Jobs that reached a terminal status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yapper_job_duration_seconds",
			Help:    "Wall time from dispatch to terminal status.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"status"}),
		clips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yapper_clips_total",
			Help: "Highlight render attempts by outcome.",
		}, []string{"outcome"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yapper_queue_length",
			Help: "Jobs waiting for a worker.",
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yapper_active_jobs",
			Help: "Jobs currently downloading or generating.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yapper_highlight_cache_lookups_total",
			Help: "Highlight cache lookups by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsQueued, m.jobsDispatched, m.jobsCompleted, m.jobDuration,
		m.clips, m.queueLength, m.activeJobs, m.cacheLookups,
	)
	return m
}

func (m *PrometheusMetrics) JobQueued()     { m.jobsQueued.Inc() }
func (m *PrometheusMetrics) JobDispatched() { m.jobsDispatched.Inc() }

func (m *PrometheusMetrics) JobCompleted(status domain.JobStatus, elapsed time.Duration) {
	m.jobsCompleted.WithLabelValues(string(status)).Inc()
	m.jobDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

func (m *PrometheusMetrics) ClipRendered() { m.clips.WithLabelValues("rendered").Inc() }
func (m *PrometheusMetrics) ClipSkipped()  { m.clips.WithLabelValues("skipped").Inc() }

func (m *PrometheusMetrics) QueueState(queued, active int) {
	m.queueLength.Set(float64(queued))
	m.activeJobs.Set(float64(active))
}

func (m *PrometheusMetrics) HighlightCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ usecase.MetricsRecorder = (*PrometheusMetrics)(nil)
