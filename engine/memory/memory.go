// Package memory 提供进程内的引擎实现，用于开发与测试.
//
// 触发器保存在内存中，按轮询间隔检查到期触发器并在有限的工作协程中执行.
// 支持误触发检测、监听器回调以及非持久任务在触发器全部完成后自动删除.
//
// 示例：
//
//	eng := memory.New(memory.WithLogger(log), memory.WithWorkers(4))
//	eng.RegisterJob(scheduler.JobRef, scheduler.NewDefaultJob(registry))
//	_ = eng.Start()
//	defer eng.Shutdown(ctx)
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/logger"
)

// 预定义错误.
var (
	// ErrUnsupportedTrigger 不支持的触发器类型.
	ErrUnsupportedTrigger = errors.New("memory: unsupported trigger type")

	// ErrTriggerBusy 触发器正在执行.
	ErrTriggerBusy = errors.New("memory: trigger is executing")
)

// Engine 进程内引擎.
type Engine struct {
	opts *options

	mu       sync.Mutex
	jobs     map[engine.JobKey]*engine.JobDetail
	triggers map[engine.TriggerKey]engine.Trigger
	inflight map[engine.TriggerKey]struct{}
	impls    map[string]engine.Job

	listenerMu         sync.RWMutex
	jobListeners       []engine.JobListener
	triggerListeners   []engine.TriggerListener
	schedulerListeners []engine.SchedulerListener

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var (
	_ engine.Engine           = (*Engine)(nil)
	_ engine.ListenerRegistry = (*Engine)(nil)
)

// New 创建进程内引擎.
func New(opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Engine{
		opts:     o,
		jobs:     make(map[engine.JobKey]*engine.JobDetail),
		triggers: make(map[engine.TriggerKey]engine.Trigger),
		inflight: make(map[engine.TriggerKey]struct{}),
		impls:    make(map[string]engine.Job),
	}
}

// RegisterJob 注册任务实现，ref 与 JobDetail.JobRef 对应.
func (e *Engine) RegisterJob(ref string, job engine.Job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.impls[ref] = job
}

// CreateJob 构建任务定义.
func (e *Engine) CreateJob(jobRef string, durable bool, name, group string, data engine.JobData) *engine.JobDetail {
	return engine.NewJobDetail(jobRef, durable, name, group, data)
}

// ScheduleJob 原子地保存任务与触发器.
func (e *Engine) ScheduleJob(ctx context.Context, job *engine.JobDetail, trigger engine.Trigger) error {
	if job == nil {
		return engine.ErrNilJob
	}
	if trigger == nil {
		return engine.ErrNilTrigger
	}

	t := cloneTrigger(trigger)
	if t == nil {
		return fmt.Errorf("%w: %T", ErrUnsupportedTrigger, trigger)
	}
	b := t.Base()
	b.JobKey = job.Key
	if err := e.initFireTime(t); err != nil {
		return err
	}

	e.mu.Lock()
	if _, exists := e.jobs[job.Key]; exists {
		e.mu.Unlock()
		return engine.ErrorWithKey(engine.ErrObjectAlreadyExists, job.Key)
	}
	if _, exists := e.triggers[b.Key]; exists {
		e.mu.Unlock()
		return engine.ErrorWithKey(engine.ErrObjectAlreadyExists, b.Key)
	}
	e.jobs[job.Key] = cloneJob(job)
	e.triggers[b.Key] = t
	snapshot := cloneTrigger(t)
	e.mu.Unlock()

	e.log(ctx, b).Debugf("[Engine] 触发器已保存 [nextFireTime:%s]", b.NextFireTime.Format(time.RFC3339))
	e.notifyScheduled(ctx, snapshot)
	return nil
}

// DeleteJob 删除任务及其全部触发器，任务不存在时直接返回.
func (e *Engine) DeleteJob(ctx context.Context, key engine.JobKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.jobs[key]; !ok {
		return nil
	}
	delete(e.jobs, key)
	for tk, t := range e.triggers {
		if t.Base().JobKey == key {
			delete(e.triggers, tk)
		}
	}
	e.opts.logger.WithContext(ctx).With(logger.JobKey(key.Group, key.Name)).Debug("[Engine] 任务已删除")
	return nil
}

// RescheduleJob 用 trigger 替换 key 对应的触发器.
//
// 新触发器归属原任务，正在执行的旧触发器完成后不会被再次处理.
func (e *Engine) RescheduleJob(ctx context.Context, key engine.TriggerKey, trigger engine.Trigger) error {
	if trigger == nil {
		return engine.ErrNilTrigger
	}
	t := cloneTrigger(trigger)
	if t == nil {
		return fmt.Errorf("%w: %T", ErrUnsupportedTrigger, trigger)
	}
	b := t.Base()
	b.NextFireTime = time.Time{}
	if err := e.initFireTime(t); err != nil {
		return err
	}

	e.mu.Lock()
	old, ok := e.triggers[key]
	if !ok {
		e.mu.Unlock()
		return engine.ErrorWithKey(engine.ErrTriggerNotFound, key)
	}
	if _, exists := e.triggers[b.Key]; exists && b.Key != key {
		e.mu.Unlock()
		return engine.ErrorWithKey(engine.ErrObjectAlreadyExists, b.Key)
	}
	b.JobKey = old.Base().JobKey
	delete(e.triggers, key)
	e.triggers[b.Key] = t
	snapshot := cloneTrigger(t)
	e.mu.Unlock()

	e.log(ctx, b).Debugf("[Engine] 触发器已替换 [old:%s] [nextFireTime:%s]", key, b.NextFireTime.Format(time.RFC3339))
	e.notifyScheduled(ctx, snapshot)
	return nil
}

// TriggerKeys 按名称排序列出分组内的触发器标识.
func (e *Engine) TriggerKeys(_ context.Context, group string) ([]engine.TriggerKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var keys []engine.TriggerKey
	for k := range e.triggers {
		if k.Group == group {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b engine.TriggerKey) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return keys, nil
}

// Trigger 返回触发器副本.
func (e *Engine) Trigger(_ context.Context, key engine.TriggerKey) (engine.Trigger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.triggers[key]
	if !ok {
		return nil, engine.ErrorWithKey(engine.ErrTriggerNotFound, key)
	}
	return cloneTrigger(t), nil
}

// Job 返回任务定义副本.
func (e *Engine) Job(key engine.JobKey) (*engine.JobDetail, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job, ok := e.jobs[key]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// AddJobListener 注册任务监听器.
func (e *Engine) AddJobListener(l engine.JobListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.jobListeners = append(e.jobListeners, l)
}

// AddTriggerListener 注册触发器监听器.
func (e *Engine) AddTriggerListener(l engine.TriggerListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.triggerListeners = append(e.triggerListeners, l)
}

// AddSchedulerListener 注册调度监听器.
func (e *Engine) AddSchedulerListener(l engine.SchedulerListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.schedulerListeners = append(e.schedulerListeners, l)
}

// initFireTime 计算首次触发时间.
func (e *Engine) initFireTime(t engine.Trigger) error {
	b := t.Base()
	if !b.NextFireTime.IsZero() {
		return nil
	}
	if b.StartTime.IsZero() {
		b.StartTime = e.opts.now()
	}

	switch t := t.(type) {
	case *engine.SimpleTrigger:
		b.NextFireTime = b.StartTime
	case *engine.CronTrigger:
		next, err := engine.NextCronTime(t.CronExpression, b.StartTime.Add(-time.Nanosecond), e.location(t))
		if err != nil {
			return fmt.Errorf("memory: cron expression %q: %w", t.CronExpression, err)
		}
		b.NextFireTime = next
	}
	return nil
}

// advance 推进触发器到下一次触发时间，没有下一次时为零值.
func (e *Engine) advance(t engine.Trigger, scheduled, now time.Time) {
	b := t.Base()
	b.PreviousFireTime = now

	switch t := t.(type) {
	case *engine.SimpleTrigger:
		t.TimesTriggered++
		if t.RepeatInterval > 0 && (t.RepeatCount < 0 || t.TimesTriggered <= t.RepeatCount) {
			b.NextFireTime = scheduled.Add(t.RepeatInterval)
		} else {
			b.NextFireTime = time.Time{}
		}
	case *engine.CronTrigger:
		next, err := engine.NextCronTime(t.CronExpression, now, e.location(t))
		if err != nil {
			e.opts.logger.Errorf("[Engine] 计算下次触发时间失败 [trigger:%s] [error:%v]", b.Key, err)
		}
		b.NextFireTime = next
	}
}

// skip 按 MisfireDoNothing 跳过误触发，推进到 now 之后的下一次触发时间.
func (e *Engine) skip(t engine.Trigger, now time.Time) {
	b := t.Base()
	switch t := t.(type) {
	case *engine.SimpleTrigger:
		if t.RepeatInterval <= 0 {
			b.NextFireTime = time.Time{}
			return
		}
		next := b.NextFireTime
		for !next.After(now) {
			next = next.Add(t.RepeatInterval)
			t.TimesTriggered++
		}
		if t.RepeatCount >= 0 && t.TimesTriggered > t.RepeatCount {
			next = time.Time{}
		}
		b.NextFireTime = next
	case *engine.CronTrigger:
		next, _ := engine.NextCronTime(t.CronExpression, now, e.location(t))
		b.NextFireTime = next
	}
}

func (e *Engine) location(t *engine.CronTrigger) *time.Location {
	if t.Location != nil {
		return t.Location
	}
	return e.opts.location
}

// pruneJob 删除已没有触发器的非持久任务，调用方持有锁.
func (e *Engine) pruneJob(key engine.JobKey) {
	job, ok := e.jobs[key]
	if !ok || job.Durable {
		return
	}
	for _, t := range e.triggers {
		if t.Base().JobKey == key {
			return
		}
	}
	delete(e.jobs, key)
}

func (e *Engine) log(ctx context.Context, b *engine.TriggerBase) logger.Logger {
	return e.opts.logger.WithContext(ctx).With(
		logger.JobKey(b.JobKey.Group, b.JobKey.Name),
		logger.TriggerKey(b.Key.Group, b.Key.Name),
	)
}

func (e *Engine) notifyScheduled(ctx context.Context, t engine.Trigger) {
	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()
	for _, l := range e.schedulerListeners {
		l.JobScheduled(ctx, t)
	}
}

func cloneTrigger(t engine.Trigger) engine.Trigger {
	switch t := t.(type) {
	case *engine.SimpleTrigger:
		c := *t
		c.Data = maps.Clone(t.Data)
		return &c
	case *engine.CronTrigger:
		c := *t
		c.Data = maps.Clone(t.Data)
		return &c
	default:
		return nil
	}
}

func cloneJob(job *engine.JobDetail) *engine.JobDetail {
	c := *job
	c.Data = maps.Clone(job.Data)
	return &c
}
