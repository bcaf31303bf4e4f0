package scheduler

import (
	"context"
	"time"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/jobstore"
)

// JobContext 一次触发的钩子上下文.
type JobContext struct {
	// Scheduler 负责执行的调度器注册名.
	Scheduler string

	// Job 引擎任务标识.
	Job engine.JobKey

	// Trigger 正在触发的触发器标识.
	Trigger engine.TriggerKey

	// Store 本次执行的执行上下文.
	Store *jobstore.JobStore

	// FireTime 实际触发时间.
	FireTime time.Time

	// StartTime 开始执行时间.
	StartTime time.Time

	// Error 执行错误，仅在 AfterJob/OnError 中有值.
	Error error

	// Duration 执行耗时，仅在 AfterJob/OnError 中有值.
	Duration time.Duration

	// SkipReason 被前置钩子阻止的原因.
	SkipReason error
}

// BeforeJobHook 执行前回调.
//
// 返回包装 ErrSkip 的错误时跳过本次执行，其他错误视为执行失败.
type BeforeJobHook func(ctx context.Context, jc *JobContext) error

// AfterJobHook 执行后回调，任务执行后无论成功失败都会调用，前置钩子阻止时不调用.
type AfterJobHook func(ctx context.Context, jc *JobContext)

// OnErrorHook 执行失败回调.
type OnErrorHook func(ctx context.Context, jc *JobContext)

// OnSkipHook 执行被阻止回调.
type OnSkipHook func(ctx context.Context, jc *JobContext)

// Hooks 任务钩子集合.
type Hooks struct {
	BeforeJob []BeforeJobHook
	AfterJob  []AfterJobHook
	OnError   []OnErrorHook
	OnSkip    []OnSkipHook
}

func (h *Hooks) runBefore(ctx context.Context, jc *JobContext) error {
	if h == nil {
		return nil
	}
	for _, hook := range h.BeforeJob {
		if err := hook(ctx, jc); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runAfter(ctx context.Context, jc *JobContext) {
	if h == nil {
		return
	}
	for _, hook := range h.AfterJob {
		hook(ctx, jc)
	}
}

func (h *Hooks) runError(ctx context.Context, jc *JobContext) {
	if h == nil {
		return
	}
	for _, hook := range h.OnError {
		hook(ctx, jc)
	}
}

func (h *Hooks) runSkip(ctx context.Context, jc *JobContext) {
	if h == nil {
		return
	}
	for _, hook := range h.OnSkip {
		hook(ctx, jc)
	}
}

// HooksBuilder 钩子构建器.
type HooksBuilder struct {
	hooks *Hooks
}

// NewHooks 创建钩子构建器.
func NewHooks() *HooksBuilder {
	return &HooksBuilder{hooks: &Hooks{}}
}

// BeforeJob 添加前置钩子.
func (b *HooksBuilder) BeforeJob(hook BeforeJobHook) *HooksBuilder {
	b.hooks.BeforeJob = append(b.hooks.BeforeJob, hook)
	return b
}

// AfterJob 添加后置钩子.
func (b *HooksBuilder) AfterJob(hook AfterJobHook) *HooksBuilder {
	b.hooks.AfterJob = append(b.hooks.AfterJob, hook)
	return b
}

// OnError 添加失败钩子.
func (b *HooksBuilder) OnError(hook OnErrorHook) *HooksBuilder {
	b.hooks.OnError = append(b.hooks.OnError, hook)
	return b
}

// OnSkip 添加跳过钩子.
func (b *HooksBuilder) OnSkip(hook OnSkipHook) *HooksBuilder {
	b.hooks.OnSkip = append(b.hooks.OnSkip, hook)
	return b
}

// Build 构建钩子.
func (b *HooksBuilder) Build() *Hooks {
	return b.hooks
}
