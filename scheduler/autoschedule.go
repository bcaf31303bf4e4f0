package scheduler

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Tsukikage7/scheduler-kit/logger"
)

// RegisterCronJobs 启动时注册全部 Cron 调度器.
//
// 名称在 excludes 中的调度器被跳过，单个失败记录日志后继续，
// 返回合并后的全部错误. 已存在的 Cron 任务视为成功，可重复调用.
func RegisterCronJobs(ctx context.Context, registry *Registry, excludes []string, opts ...Option) error {
	o := applyOptions(opts)

	var errs []error
	for _, s := range registry.List() {
		initial, ok := s.(InitialScheduler)
		if !ok {
			continue
		}

		log := o.log(ctx, logger.String("scheduler", s.Name()))
		if slices.Contains(excludes, s.Name()) {
			log.Info("[Scheduler] Cron 任务已排除，跳过注册")
			continue
		}

		if err := initial.ScheduleInitial(ctx, time.Time{}); err != nil {
			log.With(logger.Err(err)).Error("[Scheduler] Cron 任务注册失败")
			errs = append(errs, err)
			continue
		}
		log.Info("[Scheduler] Cron 任务已注册")
	}
	return errors.Join(errs...)
}
