package engine

import "time"

// Trigger 引擎原生触发器.
//
// 具体类型只有 *SimpleTrigger 与 *CronTrigger.
type Trigger interface {
	Base() *TriggerBase
}

// TriggerBase 触发器公共字段.
type TriggerBase struct {
	Key                TriggerKey
	JobKey             JobKey
	StartTime          time.Time
	NextFireTime       time.Time
	PreviousFireTime   time.Time
	MisfireInstruction int
	Data               JobData
}

// Base 实现 Trigger.
func (b *TriggerBase) Base() *TriggerBase {
	return b
}

// SimpleTrigger 固定间隔触发器.
//
// RepeatCount 为 0 表示只触发一次.
type SimpleTrigger struct {
	TriggerBase
	RepeatInterval time.Duration
	RepeatCount    int
	TimesTriggered int
}

// CronTrigger Cron 表达式触发器.
type CronTrigger struct {
	TriggerBase
	CronExpression string
	Location       *time.Location
}
