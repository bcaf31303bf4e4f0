// Package metrics 提供调度器的 Prometheus 指标收集功能.
//
// 所有记录方法都是即发即忘的，不返回错误，也不会阻塞调度流程.
package metrics

import (
	"net/http"
	"time"
)

// 指标标签名.
const (
	LabelJobGroup     = "job_group"
	LabelJobName      = "job_name"
	LabelTriggerGroup = "trigger_group"
	LabelTriggerName  = "trigger_name"
	LabelOutcome      = "outcome"
)

// 结果标签值.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Recorder 调度指标记录器接口.
type Recorder interface {
	// IncPendingJob 增加待执行任务计数，triggerName 应为去掉重调度后缀的基础 ID.
	IncPendingJob(triggerGroup, triggerName string)
	// IncActiveJob 增加正在执行任务计数.
	IncActiveJob(jobGroup, jobName string)
	// ObserveMisfire 记录误触发延迟.
	ObserveMisfire(triggerGroup, triggerName string, delay time.Duration)
	// ObserveScheduling 记录一次提交到引擎的耗时.
	ObserveScheduling(jobGroup, jobName string, duration time.Duration, err error)
	// ObserveExecution 记录一次任务执行的耗时.
	ObserveExecution(jobGroup, jobName string, duration time.Duration, err error)
}

// Collector 可暴露 HTTP 端点的记录器.
type Collector interface {
	Recorder

	GetHandler() http.Handler
	GetPath() string
}

// NewMetrics 创建指标收集器.
func NewMetrics(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	return NewPrometheus(cfg)
}

// MustNewMetrics 创建指标收集器，失败时 panic.
func MustNewMetrics(cfg *Config) *PrometheusCollector {
	c, err := NewMetrics(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
