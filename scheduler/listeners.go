package scheduler

import (
	"context"
	"time"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/logger"
	"github.com/Tsukikage7/scheduler-kit/metrics"
	"github.com/Tsukikage7/scheduler-kit/triggerid"
)

// MetricsListener 将引擎事件转发给指标记录器.
//
// 只做记录，不参与调度控制流.
type MetricsListener struct {
	recorder metrics.Recorder
	log      logger.Logger
}

var (
	_ engine.JobListener       = (*MetricsListener)(nil)
	_ engine.TriggerListener   = (*MetricsListener)(nil)
	_ engine.SchedulerListener = (*MetricsListener)(nil)
)

// NewMetricsListener 创建指标监听器.
func NewMetricsListener(recorder metrics.Recorder, log logger.Logger) *MetricsListener {
	if recorder == nil {
		recorder = metrics.NewNop()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &MetricsListener{recorder: recorder, log: log}
}

// Register 注册到引擎.
func (l *MetricsListener) Register(r engine.ListenerRegistry) {
	r.AddJobListener(l)
	r.AddTriggerListener(l)
	r.AddSchedulerListener(l)
}

// JobToBeExecuted 增加正在执行任务计数.
func (l *MetricsListener) JobToBeExecuted(ctx context.Context, exec *engine.Execution) {
	if exec == nil || exec.Job == nil {
		return
	}
	key := exec.Job.Key
	l.recorder.IncActiveJob(key.Group, key.Name)
	l.log.WithContext(ctx).With(logger.JobKey(key.Group, key.Name)).Debug("[Scheduler] 正在执行任务计数加一")
}

// TriggerMisfired 记录误触发延迟.
func (l *MetricsListener) TriggerMisfired(ctx context.Context, trigger engine.Trigger, expected, actual time.Time) {
	if trigger == nil {
		return
	}
	key := trigger.Base().Key
	delay := actual.Sub(expected)
	l.recorder.ObserveMisfire(key.Group, key.Name, delay)
	l.log.WithContext(ctx).With(logger.TriggerKey(key.Group, key.Name)).
		Infof("[Scheduler] 触发器误触发 [expected:%s] [delay:%s]", expected.Format(time.RFC3339), delay)
}

// JobScheduled 增加待执行任务计数，同一触发器的重调度计入同一序列.
func (l *MetricsListener) JobScheduled(ctx context.Context, trigger engine.Trigger) {
	if trigger == nil {
		return
	}
	key := trigger.Base().Key
	base := triggerid.BaseID(key.Name)
	l.recorder.IncPendingJob(key.Group, base)
	l.log.WithContext(ctx).With(logger.TriggerKey(key.Group, base)).Debug("[Scheduler] 待执行任务计数加一")
}
