package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tsukikage7/scheduler-kit/logger"
	"github.com/Tsukikage7/scheduler-kit/scheduler"
)

// GuardOption 执行互斥配置选项.
type GuardOption func(*guardOptions)

type guardOptions struct {
	ttl    time.Duration
	logger logger.Logger
}

// WithTTL 设置锁过期时间，应大于任务最长执行时间.
//
// 默认 10 分钟.
func WithTTL(ttl time.Duration) GuardOption {
	return func(o *guardOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) GuardOption {
	return func(o *guardOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

// Key 返回任务的锁键.
func Key(jc *scheduler.JobContext) string {
	return jc.Job.Group + ":" + jc.Job.Name
}

// Guard 向 b 注册获取锁的前置钩子与释放锁的后置钩子.
//
// 锁已被占用时前置钩子返回 ErrLocked，本次触发被跳过；
// 锁后端出错时返回包装 ErrAcquire 的错误，本次触发按失败上报给引擎.
func Guard(b *scheduler.HooksBuilder, locker Locker, opts ...GuardOption) *scheduler.HooksBuilder {
	o := &guardOptions{ttl: 10 * time.Minute, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	return b.
		BeforeJob(func(ctx context.Context, jc *scheduler.JobContext) error {
			acquired, err := locker.TryLock(ctx, Key(jc), o.ttl)
			if err != nil {
				o.logger.WithContext(ctx).
					With(logger.JobKey(jc.Job.Group, jc.Job.Name), logger.Err(err)).
					Error("[Lock] 获取锁失败")
				return fmt.Errorf("%w: %s: %w", ErrAcquire, Key(jc), err)
			}
			if !acquired {
				return ErrLocked
			}
			return nil
		}).
		AfterJob(func(ctx context.Context, jc *scheduler.JobContext) {
			err := locker.Unlock(context.WithoutCancel(ctx), Key(jc))
			if err == nil {
				return
			}
			log := o.logger.WithContext(ctx).With(logger.JobKey(jc.Job.Group, jc.Job.Name), logger.Err(err))
			if errors.Is(err, ErrNotHeld) {
				log.Warn("[Lock] 锁已过期或被其他持有者占用")
				return
			}
			log.Error("[Lock] 释放锁失败")
		})
}
