package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/scheduler-kit/logger"
	"github.com/Tsukikage7/scheduler-kit/metrics"
	"github.com/Tsukikage7/scheduler-kit/retry"
)

// instrumentationName 链路追踪仪表名.
const instrumentationName = "github.com/Tsukikage7/scheduler-kit/scheduler"

// Option 配置选项.
type Option func(*options)

// options 内部配置，由 Service、调度器、DefaultJob 共用.
type options struct {
	logger        logger.Logger
	metrics       metrics.Recorder
	tracer        trace.Tracer
	now           func() time.Time
	hooks         *Hooks
	retryPolicy   *retry.Policy
	propagateMiss bool
}

// defaultOptions 返回默认配置.
func defaultOptions() *options {
	return &options{
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
		tracer:  otel.Tracer(instrumentationName),
		now:     time.Now,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithMetrics 设置指标记录器.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.metrics = r
		}
	}
}

// WithTracer 设置链路追踪器.
//
// 默认使用全局 TracerProvider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock 设置时钟.
//
// 用于计算 Cron 默认开始时间与重试触发时间.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithHooks 设置任务钩子，仅对 DefaultJob 生效.
func WithHooks(hooks *Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithRetryPolicy 为调度器的执行函数启用重试策略.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) {
		o.retryPolicy = &p
	}
}

// WithPropagateMissingScheduler 设置 DefaultJob 是否向引擎返回调度信息缺失类错误.
//
// 默认记录日志后忽略，开启后用于排查问题.
func WithPropagateMissingScheduler(enabled bool) Option {
	return func(o *options) {
		o.propagateMiss = enabled
	}
}

func (o *options) log(ctx context.Context, fields ...logger.Field) logger.Logger {
	log := o.logger.WithContext(ctx)
	if len(fields) > 0 {
		log = log.With(fields...)
	}
	return log
}
