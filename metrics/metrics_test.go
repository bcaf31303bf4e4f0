package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_NilConfig(t *testing.T) {
	c, err := NewMetrics(nil)

	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewMetrics_Success(t *testing.T) {
	c, err := NewMetrics(&Config{Namespace: "test", Path: "/metrics"})

	require.NoError(t, err)
	assert.IsType(t, &PrometheusCollector{}, c)
	assert.Implements(t, (*Collector)(nil), c)
}

func TestMustNewMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.NotNil(t, MustNewMetrics(&Config{Namespace: "test"}))
	})
	assert.Panics(t, func() {
		MustNewMetrics(nil)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "/metrics", cfg.Path)
	assert.Equal(t, "scheduler", cfg.Namespace)
}

func TestPrometheusCollector_Counters(t *testing.T) {
	c := MustNewMetrics(&Config{Namespace: "test"})

	c.IncPendingJob("orders", "order-1_trigger")
	c.IncPendingJob("orders", "order-1_trigger")
	c.IncActiveJob("orders", "order-1")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.pendingJobs.WithLabelValues("orders", "order-1_trigger")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.activeJobs.WithLabelValues("orders", "order-1")))
}

func TestPrometheusCollector_Histograms(t *testing.T) {
	c := MustNewMetrics(&Config{Namespace: "test"})

	c.ObserveMisfire("orders", "order-1_trigger", 3*time.Second)
	c.ObserveMisfire("orders", "order-1_trigger", -time.Second)
	c.ObserveScheduling("orders", "order-1", time.Millisecond, nil)
	c.ObserveExecution("orders", "order-1", time.Millisecond, errors.New("boom"))

	families, err := c.registry.Gather()
	require.NoError(t, err)

	counts := make(map[string]uint64)
	sums := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				counts[mf.GetName()] += h.GetSampleCount()
				sums[mf.GetName()] += h.GetSampleSum()
			}
		}
	}

	assert.Equal(t, uint64(2), counts["test_execution_misfire_seconds"])
	assert.InDelta(t, 3.0, sums["test_execution_misfire_seconds"], 1e-9)
	assert.Equal(t, uint64(1), counts["test_scheduling_duration_seconds"])
	assert.Equal(t, uint64(1), counts["test_execution_duration_seconds"])
}

func TestPrometheusCollector_Handler(t *testing.T) {
	c := MustNewMetrics(&Config{Namespace: "test"})
	c.ObserveExecution("orders", "order-1", time.Millisecond, errors.New("boom"))

	rec := httptest.NewRecorder()
	c.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `test_execution_duration_seconds_count{job_group="orders",job_name="order-1",outcome="error"} 1`)
	assert.Equal(t, "/metrics", c.GetPath())
	assert.Equal(t, "/custom", MustNewMetrics(&Config{Path: "/custom"}).GetPath())
}

func TestNop(t *testing.T) {
	r := NewNop()

	assert.NotPanics(t, func() {
		r.IncPendingJob("g", "n")
		r.IncActiveJob("g", "n")
		r.ObserveMisfire("g", "n", time.Second)
		r.ObserveScheduling("g", "n", time.Second, nil)
		r.ObserveExecution("g", "n", time.Second, nil)
	})
}
