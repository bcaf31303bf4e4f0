package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/jobstore"
	"github.com/Tsukikage7/scheduler-kit/logger"
	"github.com/Tsukikage7/scheduler-kit/retry"
)

// RetryCountKey 重试计数在 JobStore 中的键.
const RetryCountKey = "retryCount"

// Enforcer 重试策略执行器，以装饰器形式包装 ExecuteFunc.
type Enforcer struct {
	name   string
	policy retry.Policy
	target Rearmer
	opts   *options
}

// NewEnforcer 创建重试策略执行器.
//
// name 仅用于日志与错误信息，target 负责重试布防.
func NewEnforcer(name string, policy retry.Policy, target Rearmer, opts ...Option) *Enforcer {
	return newEnforcer(name, policy, target, applyOptions(opts))
}

func newEnforcer(name string, policy retry.Policy, target Rearmer, o *options) *Enforcer {
	return &Enforcer{name: name, policy: policy, target: target, opts: o}
}

// Wrap 返回带重试策略的执行函数.
//
// 失败可重试且未耗尽时，计数加一并按策略布防下一次执行，然后返回原始错误；
// 已耗尽时返回 *ExhaustedRetryError，不再布防.
func (e *Enforcer) Wrap(next ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, store *jobstore.JobStore) error {
		if store == nil {
			return next(ctx, store)
		}
		if !store.Contains(RetryCountKey) {
			store.Put(RetryCountKey, 0)
		}
		retried, err := store.GetInt(RetryCountKey)
		if err != nil {
			return err
		}
		if retried > e.policy.MaxAttempts {
			return next(ctx, store)
		}

		ctx = contextWithJobStore(ctx, store)
		err = next(ctx, store)
		if err == nil {
			return nil
		}

		log := e.opts.log(ctx, logger.String("scheduler", e.name), logger.Int("retried", retried))
		log.With(logger.Err(err)).Error("[Scheduler] 任务执行失败")

		if !e.policy.CanRetry(err) {
			log.Info("[Scheduler] 错误不在重试范围内")
			return err
		}
		if e.policy.Exhausted(retried) {
			log.Errorf("[Scheduler] 重试次数耗尽 [maxAttempts:%d]", e.policy.MaxAttempts)
			return &ExhaustedRetryError{Job: e.name, Attempts: retried, Last: err}
		}

		attempt := retried + 1
		store.Put(RetryCountKey, attempt)
		fireTime := e.policy.NextFireTime(e.opts.now(), attempt)
		log.Infof("[Scheduler] 任务将于 %s 重试 [attempt:%d/%d]", fireTime.Format(time.RFC3339), attempt, e.policy.MaxAttempts)

		if rerr := e.rearm(ctx, store, fireTime); rerr != nil {
			log.With(logger.Err(rerr)).Error("[Scheduler] 重试布防失败")
			return fmt.Errorf("scheduler: rearm %s: %w", e.name, rerr)
		}
		return err
	}
}

// rearm 按策略布防下一次执行.
//
// 只有正在触发的是简单触发器时才替换触发器，Cron 触发器与无执行上下文时提交新任务.
func (e *Enforcer) rearm(ctx context.Context, store *jobstore.JobStore, fireTime time.Time) error {
	if e.policy.Rearm == retry.RearmReschedule {
		if exec, ok := ExecutionFromContext(ctx); ok {
			if _, simple := exec.Trigger.(*engine.SimpleTrigger); simple {
				return e.target.Reschedule(ctx, fireTime, "")
			}
		}
	}
	return e.target.ScheduleRetry(ctx, store, fireTime)
}
