// Package engine 定义外部触发器持久化/触发引擎的契约.
//
// 引擎负责触发器存储、按时钟触发、误触发检测与工作线程池，
// 本仓库的调度核心只通过这里的接口与其交互.
package engine

import (
	"context"
	"fmt"
	"maps"
	"time"
)

// 误触发策略常量.
const (
	// MisfireIgnore 忽略误触发，按原计划补触发.
	MisfireIgnore = -1
	// MisfireSmartPolicy 由引擎根据触发器类型决定.
	MisfireSmartPolicy = 0
	// MisfireFireOnceNow 误触发后立即触发一次.
	MisfireFireOnceNow = 1
	// MisfireDoNothing 误触发后跳过，等待下一次计划时间.
	MisfireDoNothing = 2
)

// JobData 任务数据，扁平的字符串键映射.
type JobData map[string]any

// JobKey 任务标识.
type JobKey struct {
	Name  string
	Group string
}

func (k JobKey) String() string {
	return k.Group + "." + k.Name
}

// TriggerKey 触发器标识.
type TriggerKey struct {
	Name  string
	Group string
}

func (k TriggerKey) String() string {
	return k.Group + "." + k.Name
}

// JobDetail 引擎侧任务定义.
type JobDetail struct {
	Key              JobKey
	JobRef           string
	Durable          bool
	RequestsRecovery bool
	Data             JobData
}

// Job 由引擎在工作线程中同步调用的任务实现.
type Job interface {
	Execute(ctx context.Context, exec *Execution) error
}

// JobFunc 函数适配器.
type JobFunc func(ctx context.Context, exec *Execution) error

// Execute 实现 Job.
func (f JobFunc) Execute(ctx context.Context, exec *Execution) error {
	return f(ctx, exec)
}

// Execution 一次触发的执行上下文.
type Execution struct {
	FireInstanceID    string
	Job               *JobDetail
	Trigger           Trigger
	FireTime          time.Time
	ScheduledFireTime time.Time

	// MergedData 任务数据叠加触发器数据，触发器数据优先.
	MergedData JobData
}

// Engine 外部引擎契约.
type Engine interface {
	// CreateJob 构建任务定义，不会提交到引擎.
	CreateJob(jobRef string, durable bool, name, group string, data JobData) *JobDetail

	// ScheduleJob 原子地提交任务与触发器.
	// 触发器或任务已存在时返回 ErrObjectAlreadyExists.
	ScheduleJob(ctx context.Context, job *JobDetail, trigger Trigger) error

	// DeleteJob 删除任务及其全部触发器.
	DeleteJob(ctx context.Context, key JobKey) error

	// RescheduleJob 用 trigger 替换 key 对应的触发器，新触发器归属原任务.
	RescheduleJob(ctx context.Context, key TriggerKey, trigger Trigger) error

	// TriggerKeys 列出分组内的触发器标识.
	TriggerKeys(ctx context.Context, group string) ([]TriggerKey, error)

	// Trigger 读取单个触发器.
	Trigger(ctx context.Context, key TriggerKey) (Trigger, error)
}

// ListenerRegistry 监听器注册.
type ListenerRegistry interface {
	AddJobListener(l JobListener)
	AddTriggerListener(l TriggerListener)
	AddSchedulerListener(l SchedulerListener)
}

// JobListener 任务执行监听.
type JobListener interface {
	JobToBeExecuted(ctx context.Context, exec *Execution)
}

// TriggerListener 触发器监听.
type TriggerListener interface {
	TriggerMisfired(ctx context.Context, trigger Trigger, expected, actual time.Time)
}

// SchedulerListener 调度监听.
type SchedulerListener interface {
	JobScheduled(ctx context.Context, trigger Trigger)
}

// MergeData 合并任务数据与触发器数据，后者覆盖前者.
func MergeData(job, trigger JobData) JobData {
	merged := make(JobData, len(job)+len(trigger))
	maps.Copy(merged, job)
	maps.Copy(merged, trigger)
	return merged
}

// ErrorWithKey 为引擎错误附加任务标识.
func ErrorWithKey(err error, key fmt.Stringer) error {
	return fmt.Errorf("%w [%s]", err, key)
}
