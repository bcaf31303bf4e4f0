// Command scheduler-example 在进程内引擎上运行完整的调度栈.
//
// 加载配置后构建日志、链路追踪、指标、引擎与调度服务，
// 注册一个带重试的订单超时调度器与一个 Cron 报表调度器，并通过 HTTP 暴露指标.
//
// 用法:
//
//	scheduler-example -config ./config.yaml -addr :9100
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tsukikage7/scheduler-kit/app"
	"github.com/Tsukikage7/scheduler-kit/config"
	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/engine/memory"
	"github.com/Tsukikage7/scheduler-kit/jobstore"
	"github.com/Tsukikage7/scheduler-kit/lock"
	"github.com/Tsukikage7/scheduler-kit/logger"
	"github.com/Tsukikage7/scheduler-kit/metrics"
	"github.com/Tsukikage7/scheduler-kit/retry"
	"github.com/Tsukikage7/scheduler-kit/scheduler"
	"github.com/Tsukikage7/scheduler-kit/tracing"
)

// errTransient 可重试的下游错误.
var errTransient = errors.New("downstream unavailable")

func main() {
	configPath := flag.String("config", "", "配置文件路径，为空时在默认目录查找 scheduler.yaml 等文件")
	addr := flag.String("addr", ":9100", "指标服务监听地址")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, addr string) error {
	props, err := loadProperties(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(&props.Logger)
	if err != nil {
		return err
	}

	tp, err := tracing.NewTracer(&props.Tracing)
	if err != nil {
		return err
	}

	collector, err := metrics.NewMetrics(&props.Metrics)
	if err != nil {
		return err
	}

	eng, runner, err := newEngine(props, log)
	if err != nil {
		return err
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithMetrics(collector),
		scheduler.WithTracer(tp.Tracer("scheduler-example")),
	}
	svc, err := scheduler.NewService(eng, opts...)
	if err != nil {
		return err
	}

	registry, err := newRegistry(svc, props, log, opts)
	if err != nil {
		return err
	}

	jobOpts := opts
	var cleanups []app.Option
	if props.Lock.Enabled {
		locker, closeLocker := newLocker(props, log)
		hooks := lock.Guard(scheduler.NewHooks(), locker, lock.WithTTL(props.Lock.TTL), lock.WithLogger(log)).Build()
		jobOpts = append(slices.Clone(opts), scheduler.WithHooks(hooks))
		cleanups = append(cleanups, app.WithCleanup("lock", closeLocker, 5))
	}
	if reg, ok := eng.(interface {
		RegisterJob(ref string, job engine.Job)
	}); ok {
		reg.RegisterJob(scheduler.JobRef, scheduler.NewDefaultJob(registry, jobOpts...))
	}
	if lr, ok := eng.(engine.ListenerRegistry); ok {
		scheduler.NewMetricsListener(collector, log).Register(lr)
	}

	hooks := app.NewHooks().
		BeforeStart(func(ctx context.Context) error {
			if !props.CronJob.SchedulingEnabled {
				return nil
			}
			return scheduler.RegisterCronJobs(ctx, registry, props.CronJob.SchedulingExcludes, opts...)
		}).
		AfterStart(func(ctx context.Context) error {
			return scheduleDemoOrder(ctx, registry)
		}).
		Build()

	mux := http.NewServeMux()
	mux.Handle(collector.GetPath(), collector.GetHandler())

	application := app.New(append([]app.Option{
		app.WithName("scheduler-example"),
		app.WithLogger(log),
		app.WithHooks(hooks),
		app.WithCleanup("tracer", tp.Shutdown, 0),
		app.WithCleanup("logger", func(context.Context) error { return log.Sync() }, 10),
	}, cleanups...)...)
	if runner != nil {
		application.Use(app.Engine("memory-engine", runner))
	}
	application.Use(app.NewHTTPServer(mux,
		app.WithHTTPName("metrics"),
		app.WithHTTPAddr(addr),
		app.WithHTTPLogger(log),
	))

	return application.Run()
}

// loadProperties 加载指定文件，未指定时在默认目录查找，都没有时使用默认配置.
func loadProperties(path string) (*config.Properties, error) {
	if path != "" {
		return config.LoadProperties(path)
	}
	props, err := config.SearchProperties(config.DefaultConfigName, config.DefaultSearchPaths)
	if errors.Is(err, config.ErrFileNotFound) {
		return config.LoadPropertiesFromBytes([]byte("{}"), "json")
	}
	return props, err
}

// newEngine 按配置选择进程内引擎或空引擎，空引擎没有需要管理的生命周期.
func newEngine(props *config.Properties, log logger.Logger) (engine.Engine, app.Runner, error) {
	if !props.Engine.Enabled {
		log.Warn("[App] 引擎已禁用，调度调用仅记录日志")
		return engine.NewNop(log), nil, nil
	}

	loc, err := props.Engine.TimeLocation()
	if err != nil {
		return nil, nil, err
	}
	eng := memory.New(
		memory.WithLogger(log),
		memory.WithPollInterval(props.Engine.PollInterval),
		memory.WithMisfireThreshold(props.Engine.MisfireThreshold),
		memory.WithWorkers(props.Engine.Workers),
		memory.WithLocation(loc),
	)
	return eng, eng, nil
}

// newLocker 配置了 Redis 地址时使用分布式锁，否则使用进程内锁.
func newLocker(props *config.Properties, log logger.Logger) (lock.Locker, app.CleanupFunc) {
	if props.Lock.RedisAddr == "" {
		return lock.NewMemory(), func(context.Context) error { return nil }
	}
	log.Infof("[App] 使用 Redis 任务锁 [addr:%s]", props.Lock.RedisAddr)
	client := redis.NewClient(&redis.Options{Addr: props.Lock.RedisAddr})
	return lock.NewRedis(client), func(context.Context) error { return client.Close() }
}

func newRegistry(svc *scheduler.Service, props *config.Properties, log logger.Logger, opts []scheduler.Option) (*scheduler.Registry, error) {
	policy := props.Retry.Policy(
		retry.WithInclude(retry.Is(errTransient)),
	)

	orders, err := scheduler.NewRegularScheduler(scheduler.Definition{
		Name:     "order-timeout",
		JobGroup: "orders",
	}, svc, func(ctx context.Context, store *jobstore.JobStore) error {
		id, _ := store.GetString(scheduler.JobIDKey)
		attempt, _ := store.GetInt(scheduler.RetryCountKey)
		log.WithContext(ctx).Infof("[App] 关闭超时订单 [order:%s] [attempt:%d]", id, attempt)
		if attempt == 0 {
			return errTransient
		}
		return nil
	}, append(opts, scheduler.WithRetryPolicy(policy))...)
	if err != nil {
		return nil, err
	}

	report, err := scheduler.NewCronScheduler(scheduler.Definition{
		Name:           "daily-report",
		JobGroup:       "reports",
		CronExpression: "@every 1m",
	}, svc, func(ctx context.Context, _ *jobstore.JobStore) error {
		log.WithContext(ctx).Info("[App] 生成报表")
		return nil
	}, append(opts, scheduler.WithRetryPolicy(policy))...)
	if err != nil {
		return nil, err
	}

	registry := scheduler.NewRegistry()
	if err := registry.Register(orders); err != nil {
		return nil, err
	}
	if err := registry.Register(report); err != nil {
		return nil, err
	}
	return registry, nil
}

// scheduleDemoOrder 提交一个五秒后触发的订单超时任务.
func scheduleDemoOrder(ctx context.Context, registry *scheduler.Registry) error {
	orders, err := registry.Lookup("order-timeout")
	if err != nil {
		return err
	}
	store := jobstore.New()
	store.Put(scheduler.JobIDKey, "order-1001")
	return orders.Schedule(ctx, store, time.Now().Add(5*time.Second))
}
