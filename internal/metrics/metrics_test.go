package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimerObserveDurationRecordsNonZero(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_inspectpack_duration_seconds",
		Help:    "test histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(histogram)

	assert.Greater(t, timer.Duration().Nanoseconds(), int64(0))
}

func TestTimerObserveDurationVecRecordsUnderLabel(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_inspectpack_duration_vec_seconds",
			Help:    "test histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "document")

	assert.Greater(t, timer.Duration().Nanoseconds(), int64(0))
	assert.Equal(t, 1, testutil.CollectAndCount(histogramVec))
}

func TestPackageMetricsAreRegistered(t *testing.T) {
	assert.NotNil(t, RunsTotal)
	assert.NotNil(t, RunDuration)
	assert.NotNil(t, PhotoProcessingTotal)
	assert.NotNil(t, OverrideApplicationsTotal)

	for _, c := range []prometheus.Collector{RunsTotal, RunDuration, PhotoProcessingTotal, OverrideApplicationsTotal} {
		var are prometheus.AlreadyRegisteredError
		assert.ErrorAs(t, prometheus.Register(c), &are)
	}
}
