package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/jobstore"
	"github.com/Tsukikage7/scheduler-kit/logger"
)

// DefaultJob 引擎触发任务的统一入口.
//
// 从任务数据重建执行上下文，按 SchedulerKey 解析调度器并同步执行.
// 调度信息缺失类错误默认记录后忽略，重试耗尽与业务错误返回给引擎.
// 前置钩子返回 ErrSkip 时跳过本次触发，其他前置钩子错误视为执行失败.
type DefaultJob struct {
	registry *Registry
	opts     *options
}

var _ engine.Job = (*DefaultJob)(nil)

// NewDefaultJob 创建任务入口.
func NewDefaultJob(registry *Registry, opts ...Option) *DefaultJob {
	return &DefaultJob{registry: registry, opts: applyOptions(opts)}
}

// Execute 实现 engine.Job，阻塞直到执行流程结束.
func (j *DefaultJob) Execute(ctx context.Context, exec *engine.Execution) error {
	if exec == nil || exec.Job == nil {
		return ErrNoExecution
	}

	key := exec.Job.Key
	log := j.opts.log(ctx, logger.JobKey(key.Group, key.Name))

	ctx, span := j.opts.tracer.Start(ctx, "scheduler.execute", trace.WithAttributes(
		append(jobAttributes(key), attribute.String("scheduler.fire_instance_id", exec.FireInstanceID))...,
	))
	defer span.End()
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = logger.ContextWithTraceID(ctx, sc.TraceID().String())
		log = log.WithContext(ctx)
	}

	log.Infof("[Scheduler] 开始执行任务 [fireTime:%s]", exec.FireTime.Format(time.RFC3339))
	start := time.Now()
	skipped, err := j.execute(ctx, exec)
	if skipped {
		log.Info("[Scheduler] 本次触发已跳过")
		span.SetAttributes(attribute.Bool("scheduler.skipped", true))
		return nil
	}
	j.opts.metrics.ObserveExecution(key.Group, key.Name, time.Since(start), err)

	switch {
	case err == nil:
		log.Info("[Scheduler] 任务执行成功")
		return nil
	case j.ignorable(err):
		log.With(logger.Err(err)).Error("[Scheduler] 任务调度信息缺失，忽略本次执行")
		span.SetAttributes(attribute.Bool("scheduler.ignored", true))
		return nil
	default:
		log.With(logger.Err(err)).Error("[Scheduler] 任务执行失败")
		recordSpanError(span, err)
		return err
	}
}

// execute 执行一次触发，skipped 表示被前置钩子跳过.
func (j *DefaultJob) execute(ctx context.Context, exec *engine.Execution) (skipped bool, err error) {
	key := exec.Job.Key
	if exec.MergedData == nil {
		return false, &NoJobStoreError{Key: key.String()}
	}

	store := jobstore.FromMap(exec.MergedData)
	store.Remove(key.Name + key.Group)
	if !store.Contains(SchedulerKey) {
		return false, &NoSchedulerKeyError{Key: SchedulerKey, Store: store}
	}
	name, err := store.GetString(SchedulerKey)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrNoSchedulerKey, err)
	}

	s, err := j.registry.Lookup(name)
	if err != nil {
		return false, err
	}
	j.opts.log(ctx, logger.JobKey(key.Group, key.Name)).Debugf("[Scheduler] 解析到调度器: %s", name)

	jc := &JobContext{
		Scheduler: name,
		Job:       key,
		Store:     store,
		FireTime:  exec.FireTime,
		StartTime: time.Now(),
	}
	if exec.Trigger != nil {
		jc.Trigger = exec.Trigger.Base().Key
	}

	ctx = ContextWithExecution(ctx, exec)
	if err := j.opts.hooks.runBefore(ctx, jc); err != nil {
		if errors.Is(err, ErrSkip) {
			jc.SkipReason = err
			j.opts.hooks.runSkip(ctx, jc)
			j.opts.log(ctx, logger.JobKey(key.Group, key.Name)).Debugf("[Scheduler] 前置钩子阻止任务执行 [error:%v]", err)
			return true, nil
		}
		jc.Error = fmt.Errorf("scheduler: before hook: %w", err)
		j.opts.hooks.runError(ctx, jc)
		return false, jc.Error
	}

	err = s.Execute(ctx, store)
	jc.Error = err
	jc.Duration = time.Since(jc.StartTime)
	if err != nil {
		j.opts.hooks.runError(ctx, jc)
	}
	j.opts.hooks.runAfter(ctx, jc)
	return false, err
}

// ignorable 判断错误是否为调度信息缺失类错误.
func (j *DefaultJob) ignorable(err error) bool {
	if j.opts.propagateMiss || errors.Is(err, ErrExhaustedJobRetry) {
		return false
	}
	return errors.Is(err, ErrNoSchedulerKey) ||
		errors.Is(err, ErrNoJobStore) ||
		errors.Is(err, ErrSchedulerNotRegistered)
}
