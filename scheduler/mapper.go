package scheduler

import (
	"fmt"
	"maps"
	"time"

	"github.com/Tsukikage7/scheduler-kit/engine"
)

// 触发器 ID 格式.
const (
	simpleTriggerIDFormat = "%s_trigger"
	cronTriggerIDFormat   = "%s_cron_trigger"
)

// ToTrigger 将调度指令转换为领域触发器.
//
// Cron 指令未指定开始时间时使用 now.
func ToTrigger(in Instruction, now time.Time) Trigger {
	switch in := in.(type) {
	case *RegularInstruction:
		id := in.CompositeJobID()
		return NewSimpleTrigger(in.JobGroup, id, in.TriggerGroup, fmt.Sprintf(simpleTriggerIDFormat, id), in.FireTime)
	case *CronInstruction:
		id := in.CompositeJobID()
		start := in.FireTime
		if start.IsZero() {
			start = now
		}
		return NewCronTrigger(in.JobGroup, id, in.TriggerGroup, fmt.Sprintf(cronTriggerIDFormat, id), start, in.CronExpression)
	default:
		panic(fmt.Sprintf("scheduler: unknown instruction type: %T", in))
	}
}

// ToEngineTrigger 将领域触发器转换为引擎触发器.
func ToEngineTrigger(t Trigger) engine.Trigger {
	switch t := t.(type) {
	case *SimpleTrigger:
		return &engine.SimpleTrigger{
			TriggerBase:    toEngineBase(&t.TriggerBase),
			RepeatInterval: t.RepeatInterval,
			RepeatCount:    t.RepeatCount,
		}
	case *CronTrigger:
		return &engine.CronTrigger{
			TriggerBase:    toEngineBase(&t.TriggerBase),
			CronExpression: t.CronExpression,
		}
	default:
		panic(fmt.Sprintf("scheduler: unknown trigger type: %T", t))
	}
}

// FromEngineTrigger 将引擎触发器转换为领域触发器.
//
// 未知的引擎触发器类型属于编程错误，直接 panic.
func FromEngineTrigger(t engine.Trigger) Trigger {
	switch t := t.(type) {
	case *engine.SimpleTrigger:
		st := NewSimpleTrigger(JobGroup(t.JobKey.Group), t.JobKey.Name, TriggerGroup(t.Key.Group), t.Key.Name, t.StartTime)
		st.RepeatInterval = t.RepeatInterval
		st.RepeatCount = t.RepeatCount
		fromEngineBase(&st.TriggerBase, &t.TriggerBase)
		return st
	case *engine.CronTrigger:
		ct := NewCronTrigger(JobGroup(t.JobKey.Group), t.JobKey.Name, TriggerGroup(t.Key.Group), t.Key.Name, t.StartTime, t.CronExpression)
		fromEngineBase(&ct.TriggerBase, &t.TriggerBase)
		return ct
	default:
		panic(fmt.Sprintf("scheduler: unknown trigger type: %T", t))
	}
}

func toEngineBase(b *TriggerBase) engine.TriggerBase {
	return engine.TriggerBase{
		Key:                b.TriggerKey(),
		JobKey:             b.JobKey(),
		StartTime:          b.StartTime,
		NextFireTime:       b.nextFireTime,
		MisfireInstruction: b.MisfireInstruction,
		Data:               maps.Clone(b.Data),
	}
}

func fromEngineBase(dst *TriggerBase, src *engine.TriggerBase) {
	dst.MisfireInstruction = src.MisfireInstruction
	dst.nextFireTime = src.NextFireTime
	dst.Data = maps.Clone(src.Data)
}
