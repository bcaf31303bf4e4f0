package memory

import (
	"time"

	"github.com/Tsukikage7/scheduler-kit/logger"
)

// Option 引擎配置选项.
type Option func(*options)

// options 引擎内部配置.
type options struct {
	logger           logger.Logger
	now              func() time.Time
	pollInterval     time.Duration
	misfireThreshold time.Duration
	workers          int
	location         *time.Location
}

// defaultOptions 返回默认配置.
func defaultOptions() *options {
	return &options{
		logger:           logger.NewNop(),
		now:              time.Now,
		pollInterval:     time.Second,
		misfireThreshold: time.Minute,
		workers:          10,
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithClock 设置时钟.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPollInterval 设置轮询间隔.
//
// 默认: 1 秒.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMisfireThreshold 设置误触发阈值，晚于计划时间超过该值视为误触发.
//
// 默认: 60 秒.
func WithMisfireThreshold(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.misfireThreshold = d
		}
	}
}

// WithWorkers 设置并发执行的最大任务数.
//
// 默认: 10.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLocation 设置 Cron 表达式时区.
//
// 默认使用触发时间所在时区.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}
