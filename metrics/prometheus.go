package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector Prometheus 指标收集器实现.
type PrometheusCollector struct {
	config *Config

	// 任务计数
	pendingJobs *prometheus.CounterVec
	activeJobs  *prometheus.CounterVec

	// 误触发
	misfireDelay *prometheus.HistogramVec

	// 流水线耗时
	schedulingDuration *prometheus.HistogramVec
	executionDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheus 创建 Prometheus 指标收集器.
func NewPrometheus(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "scheduler"
	}

	misfireBuckets := cfg.MisfireBuckets
	if len(misfireBuckets) == 0 {
		misfireBuckets = prometheus.ExponentialBuckets(0.5, 2, 12)
	}

	// 创建新的注册表，避免与默认注册表冲突
	registry := prometheus.NewRegistry()

	c := &PrometheusCollector{
		config:   cfg,
		registry: registry,
	}

	c.pendingJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "pending_total",
			Help:      "Total number of jobs scheduled for execution",
		},
		[]string{LabelTriggerGroup, LabelTriggerName},
	)

	c.activeJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "active_total",
			Help:      "Total number of jobs handed to a worker",
		},
		[]string{LabelJobGroup, LabelJobName},
	)

	c.misfireDelay = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "misfire_seconds",
			Help:      "Delay between expected and actual fire time of misfired triggers",
			Buckets:   misfireBuckets,
		},
		[]string{LabelTriggerGroup, LabelTriggerName},
	)

	c.schedulingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "duration_seconds",
			Help:      "Duration of engine submissions in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelJobGroup, LabelJobName, LabelOutcome},
	)

	c.executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Duration of job executions in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelJobGroup, LabelJobName, LabelOutcome},
	)

	collectors := []prometheus.Collector{
		c.pendingJobs,
		c.activeJobs,
		c.misfireDelay,
		c.schedulingDuration,
		c.executionDuration,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegisterMetric, err)
		}
	}

	return c, nil
}

// IncPendingJob 增加待执行任务计数.
func (c *PrometheusCollector) IncPendingJob(triggerGroup, triggerName string) {
	c.pendingJobs.WithLabelValues(triggerGroup, triggerName).Inc()
}

// IncActiveJob 增加正在执行任务计数.
func (c *PrometheusCollector) IncActiveJob(jobGroup, jobName string) {
	c.activeJobs.WithLabelValues(jobGroup, jobName).Inc()
}

// ObserveMisfire 记录误触发延迟，负值按 0 记录.
func (c *PrometheusCollector) ObserveMisfire(triggerGroup, triggerName string, delay time.Duration) {
	c.misfireDelay.WithLabelValues(triggerGroup, triggerName).Observe(max(delay, 0).Seconds())
}

// ObserveScheduling 记录提交耗时.
func (c *PrometheusCollector) ObserveScheduling(jobGroup, jobName string, duration time.Duration, err error) {
	c.schedulingDuration.WithLabelValues(jobGroup, jobName, outcome(err)).Observe(duration.Seconds())
}

// ObserveExecution 记录执行耗时.
func (c *PrometheusCollector) ObserveExecution(jobGroup, jobName string, duration time.Duration, err error) {
	c.executionDuration.WithLabelValues(jobGroup, jobName, outcome(err)).Observe(duration.Seconds())
}

// GetHandler 返回 metrics 的 HTTP 处理器.
func (c *PrometheusCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GetPath 返回 metrics 路径.
func (c *PrometheusCollector) GetPath() string {
	if c.config.Path == "" {
		return "/metrics"
	}
	return c.config.Path
}
