// Package scheduler 提供基于外部触发引擎的任务调度与重试核心.
//
// 特性：
//   - 调度指令：Regular 一次性任务与 Cron 周期任务
//   - 重调度谱系：重试通过带 _rescheduled_{n} 后缀的新触发器布防
//   - 重试策略：显式装饰器包装执行函数，计数保存在 JobStore 中
//   - 注册表：按名称解析调度器，名称随任务数据持久化
//   - 指标与链路追踪：提交、执行、误触发均可观测
//
// 示例：
//
//	svc := scheduler.MustNewService(eng, scheduler.WithLogger(log))
//
//	orders := scheduler.MustNewRegularScheduler(scheduler.Definition{
//	    Name:         "order-timeout",
//	    JobGroup:     "orders",
//	    TriggerGroup: "orders",
//	}, svc, handleTimeout, scheduler.WithRetryPolicy(retry.NewPolicy(3)))
//
//	registry := scheduler.NewRegistry()
//	registry.MustRegister(orders)
//	eng.RegisterJob(scheduler.JobRef, scheduler.NewDefaultJob(registry))
//
//	store := jobstore.New()
//	store.Put(scheduler.JobIDKey, order.ID)
//	_ = orders.Schedule(ctx, store, time.Now().Add(30*time.Minute))
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/jobstore"
	"github.com/Tsukikage7/scheduler-kit/logger"
	"github.com/Tsukikage7/scheduler-kit/triggerid"
)

// JobIDKey 默认任务 ID 在 JobStore 中的键.
const JobIDKey = "jobId"

// ExecuteFunc 任务执行函数.
type ExecuteFunc func(ctx context.Context, store *jobstore.JobStore) error

// Scheduler 调度器接口.
type Scheduler interface {
	// Name 返回注册名，随任务数据持久化.
	Name() string

	// Schedule 在 fireTime 调度任务.
	Schedule(ctx context.Context, store *jobstore.JobStore, fireTime time.Time) error

	// Execute 执行任务.
	Execute(ctx context.Context, store *jobstore.JobStore) error

	// Cancel 删除 store 对应的任务.
	Cancel(ctx context.Context, store *jobstore.JobStore) error
}

// Rearmer 重试布防能力.
type Rearmer interface {
	// ScheduleRetry 以 Regular 指令提交下一代任务.
	ScheduleRetry(ctx context.Context, store *jobstore.JobStore, fireTime time.Time) error

	// Reschedule 用带谱系后缀的新触发器替换正在触发的触发器.
	Reschedule(ctx context.Context, next time.Time, newTriggerID string) error
}

// InitialScheduler 支持启动时无上下文注册的调度器.
type InitialScheduler interface {
	Scheduler

	// ScheduleInitial 使用全新的执行上下文提交 Cron 指令.
	ScheduleInitial(ctx context.Context, fireTime time.Time) error
}

// Definition 调度器定义.
type Definition struct {
	// Name 注册名，必填.
	Name string

	// JobGroup 任务分组，必填.
	JobGroup JobGroup

	// TriggerGroup 触发器分组，默认与 JobGroup 相同.
	TriggerGroup TriggerGroup

	// JobID 从执行上下文生成逻辑任务 ID.
	// Regular 默认读取 JobIDKey，不存在时生成 UUID 并写回；Cron 默认使用 Name.
	JobID func(store *jobstore.JobStore) string

	// CronExpression Cron 调度器必填.
	CronExpression string

	// FireTime Cron 调度器首次注册的开始时间，默认当前时间.
	FireTime func() time.Time
}

func (d *Definition) normalize() error {
	if d.Name == "" {
		return ErrSchedulerNameEmpty
	}
	if d.JobGroup == "" {
		return ErrJobGroupEmpty
	}
	if d.TriggerGroup == "" {
		d.TriggerGroup = TriggerGroup(d.JobGroup)
	}
	if d.JobID == nil {
		d.JobID = storedJobID
	}
	return nil
}

// storedJobID 读取或生成逻辑任务 ID.
func storedJobID(store *jobstore.JobStore) string {
	if id, err := store.GetString(JobIDKey); err == nil && id != "" {
		return id
	}
	id := uuid.NewString()
	store.Put(JobIDKey, id)
	return id
}

// RetriedCount 读取重试计数，不存在时返回 nil.
func RetriedCount(store *jobstore.JobStore) (*int, error) {
	if store == nil || !store.Contains(RetryCountKey) {
		return nil, nil
	}
	n, err := store.GetInt(RetryCountKey)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// RegularScheduler 一次性任务调度器.
type RegularScheduler struct {
	def     Definition
	svc     Orchestrator
	execute ExecuteFunc
	opts    *options
}

var (
	_ Scheduler = (*RegularScheduler)(nil)
	_ Rearmer   = (*RegularScheduler)(nil)
)

// NewRegularScheduler 创建一次性任务调度器.
func NewRegularScheduler(def Definition, svc Orchestrator, execute ExecuteFunc, opts ...Option) (*RegularScheduler, error) {
	return newRegularScheduler(def, svc, execute, applyOptions(opts))
}

// MustNewRegularScheduler 创建一次性任务调度器，失败时 panic.
func MustNewRegularScheduler(def Definition, svc Orchestrator, execute ExecuteFunc, opts ...Option) *RegularScheduler {
	s, err := NewRegularScheduler(def, svc, execute, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func newRegularScheduler(def Definition, svc Orchestrator, execute ExecuteFunc, o *options) (*RegularScheduler, error) {
	if err := def.normalize(); err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, ErrNilService
	}
	if execute == nil {
		return nil, ErrExecuteNil
	}

	s := &RegularScheduler{def: def, svc: svc, opts: o}
	s.execute = execute
	if o.retryPolicy != nil {
		if err := o.retryPolicy.Validate(); err != nil {
			return nil, err
		}
		s.execute = newEnforcer(def.Name, *o.retryPolicy, s, o).Wrap(execute)
	}
	return s, nil
}

// Name 返回注册名.
func (s *RegularScheduler) Name() string {
	return s.def.Name
}

// Definition 返回调度器定义.
func (s *RegularScheduler) Definition() Definition {
	return s.def
}

// Schedule 在 fireTime 调度任务，store 为空或 fireTime 为零值时返回 ErrNoJobStore.
func (s *RegularScheduler) Schedule(ctx context.Context, store *jobstore.JobStore, fireTime time.Time) error {
	if store == nil || fireTime.IsZero() {
		return &NoJobStoreError{Key: string(s.def.JobGroup)}
	}

	retried, err := RetriedCount(store)
	if err != nil {
		return err
	}

	return s.svc.ScheduleRegularJob(ctx, &RegularInstruction{
		InstructionBase: InstructionBase{
			JobID:        s.def.JobID(store),
			JobGroup:     s.def.JobGroup,
			TriggerGroup: s.def.TriggerGroup,
			RetriedCount: retried,
			Store:        store,
			SchedulerRef: s.def.Name,
		},
		FireTime: fireTime,
	})
}

// ScheduleRetry 以 Regular 指令提交下一代任务.
func (s *RegularScheduler) ScheduleRetry(ctx context.Context, store *jobstore.JobStore, fireTime time.Time) error {
	return s.Schedule(ctx, store, fireTime)
}

// Execute 执行任务，启用重试策略时经过重试装饰器.
func (s *RegularScheduler) Execute(ctx context.Context, store *jobstore.JobStore) error {
	if store == nil {
		return &NoJobStoreError{Key: string(s.def.JobGroup)}
	}
	return s.execute(ctx, store)
}

// Cancel 删除 store 对应代数的任务.
//
// 计数为 0 表示首次执行，重试装饰器会在执行前写入该值，此时同时删除不带代数的任务.
func (s *RegularScheduler) Cancel(ctx context.Context, store *jobstore.JobStore) error {
	if store == nil {
		return &NoJobStoreError{Key: string(s.def.JobGroup)}
	}

	retried, err := RetriedCount(store)
	if err != nil {
		return err
	}
	jobID := s.def.JobID(store)
	if retried != nil && *retried == 0 {
		if err := s.svc.DeleteJob(ctx, jobID, s.def.JobGroup); err != nil {
			return err
		}
	}
	return s.svc.DeleteJob(ctx, compositeJobID(jobID, retried), s.def.JobGroup)
}

// Reschedule 用新触发器替换 context 中正在触发的触发器.
//
// 新触发器 ID 由 triggerid.PrepareRescheduled 生成，newTriggerID 非空时作为新的基础 ID.
// context 中存在执行上下文时，其数据随新触发器一起提交.
func (s *RegularScheduler) Reschedule(ctx context.Context, next time.Time, newTriggerID string) error {
	exec, ok := ExecutionFromContext(ctx)
	if !ok || exec.Trigger == nil {
		return ErrNoExecution
	}

	current, ok := FromEngineTrigger(exec.Trigger).(*SimpleTrigger)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSimpleTrigger, exec.Trigger.Base().Key)
	}

	successor := current.Successor(triggerid.PrepareRescheduled(current.TriggerID, newTriggerID), next)
	if store, ok := jobStoreFromContext(ctx); ok {
		successor.Data = store.All()
	}

	s.opts.log(ctx,
		logger.JobKey(string(current.JobGroup), current.JobID),
		logger.TriggerKey(string(current.TriggerGroup), current.TriggerID),
	).Infof("[Scheduler] 重调度触发器 [next:%s] [at:%s]", successor.TriggerID, next.Format(time.RFC3339))

	return s.svc.Reschedule(ctx, current.TriggerID, successor)
}

// CronScheduler Cron 任务调度器.
type CronScheduler struct {
	*RegularScheduler
}

var (
	_ InitialScheduler = (*CronScheduler)(nil)
	_ Rearmer          = (*CronScheduler)(nil)
)

// NewCronScheduler 创建 Cron 任务调度器.
func NewCronScheduler(def Definition, svc Orchestrator, execute ExecuteFunc, opts ...Option) (*CronScheduler, error) {
	if _, err := engine.ParseCron(def.CronExpression); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, def.CronExpression, err)
	}
	if def.JobID == nil {
		name := def.Name
		def.JobID = func(*jobstore.JobStore) string { return name }
	}

	rs, err := newRegularScheduler(def, svc, execute, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return &CronScheduler{RegularScheduler: rs}, nil
}

// MustNewCronScheduler 创建 Cron 任务调度器，失败时 panic.
func MustNewCronScheduler(def Definition, svc Orchestrator, execute ExecuteFunc, opts ...Option) *CronScheduler {
	s, err := NewCronScheduler(def, svc, execute, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// CronExpression 返回 Cron 表达式.
func (s *CronScheduler) CronExpression() string {
	return s.def.CronExpression
}

// Schedule 有执行上下文时按 Regular 路径提交，
// 缺少上下文或触发时间时回退为 ScheduleInitial.
func (s *CronScheduler) Schedule(ctx context.Context, store *jobstore.JobStore, fireTime time.Time) error {
	err := s.ScheduleRetry(ctx, store, fireTime)
	if errors.Is(err, ErrNoJobStore) {
		return s.ScheduleInitial(ctx, fireTime)
	}
	return err
}

// ScheduleRetry 以 Regular 指令提交下一代任务，不会回退.
func (s *CronScheduler) ScheduleRetry(ctx context.Context, store *jobstore.JobStore, fireTime time.Time) error {
	return s.RegularScheduler.Schedule(ctx, store, fireTime)
}

// ScheduleInitial 使用全新的执行上下文提交 Cron 指令.
//
// fireTime 为零值时依次使用 Definition.FireTime 与当前时间.
func (s *CronScheduler) ScheduleInitial(ctx context.Context, fireTime time.Time) error {
	store := jobstore.New()
	if fireTime.IsZero() && s.def.FireTime != nil {
		fireTime = s.def.FireTime()
	}

	retried, err := RetriedCount(store)
	if err != nil {
		return err
	}

	return s.svc.ScheduleCronJob(ctx, &CronInstruction{
		InstructionBase: InstructionBase{
			JobID:        s.def.JobID(store),
			JobGroup:     s.def.JobGroup,
			TriggerGroup: s.def.TriggerGroup,
			RetriedCount: retried,
			Store:        store,
			SchedulerRef: s.def.Name,
		},
		FireTime:       fireTime,
		CronExpression: s.def.CronExpression,
	})
}
