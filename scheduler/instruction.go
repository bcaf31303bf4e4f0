package scheduler

import (
	"strconv"
	"time"

	"github.com/Tsukikage7/scheduler-kit/jobstore"
)

// JobGroup 任务分组.
type JobGroup string

// TriggerGroup 触发器分组.
type TriggerGroup string

// Instruction 调度指令，具体类型只有 *RegularInstruction 与 *CronInstruction.
type Instruction interface {
	Base() *InstructionBase
	instruction()
}

// InstructionBase 调度指令公共字段.
type InstructionBase struct {
	// JobID 调用方指定的逻辑任务 ID.
	JobID        string
	JobGroup     JobGroup
	TriggerGroup TriggerGroup

	// RetriedCount 重试代数，nil 表示首次调度.
	RetriedCount *int

	// Store 执行上下文.
	Store *jobstore.JobStore

	// SchedulerRef 负责该任务的调度器注册名.
	SchedulerRef string
}

// Base 实现 Instruction.
func (b *InstructionBase) Base() *InstructionBase {
	return b
}

// CompositeJobID 返回引擎层任务 ID，用于区分同一逻辑任务的重试代数.
func (b *InstructionBase) CompositeJobID() string {
	return compositeJobID(b.JobID, b.RetriedCount)
}

func compositeJobID(jobID string, retried *int) string {
	if retried == nil {
		return jobID
	}
	return jobID + "_" + strconv.Itoa(*retried)
}

// RegularInstruction 在指定时间触发一次.
type RegularInstruction struct {
	InstructionBase
	FireTime time.Time
}

func (*RegularInstruction) instruction() {}

// CronInstruction 按 Cron 表达式周期触发.
type CronInstruction struct {
	InstructionBase

	// FireTime 开始时间，零值表示当前时间.
	FireTime       time.Time
	CronExpression string
}

func (*CronInstruction) instruction() {}
