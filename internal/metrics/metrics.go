// Package metrics defines and registers this process's Prometheus
// metrics, grounded on the teacher pack's own metrics package
// (prometheus/client_golang, a package-level var block registered once at
// init, plus a Timer helper for histogram observations).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectpack_runs_total",
			Help: "Total number of pipeline attempts by result",
		},
		[]string{"result"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inspectpack_run_duration_seconds",
			Help:    "Time taken to run one pipeline attempt, start to finish",
			Buckets: prometheus.DefBuckets,
		},
	)

	PhotoProcessingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectpack_photo_processing_total",
			Help: "Total photo slot processing outcomes by action",
		},
		[]string{"action"},
	)

	OverrideApplicationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspectpack_override_applications_total",
			Help: "Total override applications accepted by reason code",
		},
		[]string{"code"},
	)

	RetentionPurgeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inspectpack_retention_purge_duration_seconds",
			Help:    "Time taken to run one retention purge pass over a job's photo trash",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetentionBucketsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inspectpack_retention_buckets_evicted_total",
			Help: "Total trash buckets removed or archived by the retention purge",
		},
	)

	RenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inspectpack_render_duration_seconds",
			Help:    "Time taken to render one artefact, by kind (document, workbook)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(PhotoProcessingTotal)
	prometheus.MustRegister(OverrideApplicationsTotal)
	prometheus.MustRegister(RetentionPurgeDuration)
	prometheus.MustRegister(RetentionBucketsEvictedTotal)
	prometheus.MustRegister(RenderDuration)
}

// Handler returns the HTTP handler callers should expose at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing one operation and observing its
// elapsed duration to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
