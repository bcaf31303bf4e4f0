package scheduler

import (
	"maps"
	"time"

	"github.com/Tsukikage7/scheduler-kit/engine"
)

// 简单触发器默认值.
const (
	DefaultRepeatInterval     = time.Second
	DefaultRepeatCount        = 0
	DefaultMisfireInstruction = engine.MisfireFireOnceNow
)

// Trigger 引擎触发器的领域投影，具体类型只有 *SimpleTrigger 与 *CronTrigger.
type Trigger interface {
	Base() *TriggerBase
	trigger()
}

// TriggerBase 触发器公共字段.
type TriggerBase struct {
	JobGroup     JobGroup
	JobID        string
	TriggerGroup TriggerGroup
	TriggerID    string
	StartTime    time.Time

	MisfireInstruction int

	// Data 触发器级任务数据，触发时覆盖任务数据.
	Data map[string]any

	nextFireTime time.Time
}

// Base 实现 Trigger.
func (b *TriggerBase) Base() *TriggerBase {
	return b
}

// NextFireTime 返回下次触发时间，未设置时为 StartTime.
func (b *TriggerBase) NextFireTime() time.Time {
	if b.nextFireTime.IsZero() {
		return b.StartTime
	}
	return b.nextFireTime
}

// SetNextFireTime 设置下次触发时间.
func (b *TriggerBase) SetNextFireTime(t time.Time) {
	b.nextFireTime = t
}

// JobKey 返回引擎任务标识.
func (b *TriggerBase) JobKey() engine.JobKey {
	return engine.JobKey{Name: b.JobID, Group: string(b.JobGroup)}
}

// TriggerKey 返回引擎触发器标识.
func (b *TriggerBase) TriggerKey() engine.TriggerKey {
	return engine.TriggerKey{Name: b.TriggerID, Group: string(b.TriggerGroup)}
}

func newTriggerBase(jobGroup JobGroup, jobID string, triggerGroup TriggerGroup, triggerID string, start time.Time) TriggerBase {
	return TriggerBase{
		JobGroup:           jobGroup,
		JobID:              jobID,
		TriggerGroup:       triggerGroup,
		TriggerID:          triggerID,
		StartTime:          start,
		MisfireInstruction: DefaultMisfireInstruction,
	}
}

// SimpleTrigger 固定间隔触发器.
type SimpleTrigger struct {
	TriggerBase
	RepeatInterval time.Duration
	RepeatCount    int
}

func (*SimpleTrigger) trigger() {}

// NewSimpleTrigger 创建只触发一次的简单触发器.
func NewSimpleTrigger(jobGroup JobGroup, jobID string, triggerGroup TriggerGroup, triggerID string, start time.Time) *SimpleTrigger {
	return &SimpleTrigger{
		TriggerBase:    newTriggerBase(jobGroup, jobID, triggerGroup, triggerID, start),
		RepeatInterval: DefaultRepeatInterval,
		RepeatCount:    DefaultRepeatCount,
	}
}

// Successor 返回以 triggerID 和 start 开始的新触发器.
//
// 重复设置保留，误触发策略与下次触发时间恢复默认.
func (t *SimpleTrigger) Successor(triggerID string, start time.Time) *SimpleTrigger {
	next := NewSimpleTrigger(t.JobGroup, t.JobID, t.TriggerGroup, triggerID, start)
	next.RepeatInterval = t.RepeatInterval
	next.RepeatCount = t.RepeatCount
	next.Data = maps.Clone(t.Data)
	return next
}

// CronTrigger Cron 表达式触发器.
type CronTrigger struct {
	TriggerBase
	CronExpression string
}

func (*CronTrigger) trigger() {}

// NewCronTrigger 创建 Cron 触发器.
func NewCronTrigger(jobGroup JobGroup, jobID string, triggerGroup TriggerGroup, triggerID string, start time.Time, expr string) *CronTrigger {
	return &CronTrigger{
		TriggerBase:    newTriggerBase(jobGroup, jobID, triggerGroup, triggerID, start),
		CronExpression: expr,
	}
}
