// Package app 提供调度应用的生命周期管理.
//
// Application 并发启动全部组件（引擎轮询、指标 HTTP 服务等），
// 收到退出信号、调用 Stop 或任一组件启动失败时按注册的逆序停止组件并执行清理任务.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Tsukikage7/scheduler-kit/logger"
)

// ErrRunning 应用正在运行.
var ErrRunning = errors.New("app: 应用正在运行")

// Component 由应用管理生命周期的组件.
//
// Start 可以阻塞直到 ctx 取消，Stop 在关闭阶段调用.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Application 调度应用.
type Application struct {
	opts       *options
	components []Component
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
}

// New 创建应用.
func New(opts ...Option) *Application {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Application{opts: o, ctx: ctx, cancel: cancel}
}

// Use 注册组件.
func (a *Application) Use(components ...Component) *Application {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.components = append(a.components, components...)
	return a
}

// Run 启动应用并阻塞到退出，返回启动钩子或组件启动的错误.
func (a *Application) Run() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrRunning
	}
	a.running = true
	components := slices.Clone(a.components)
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	log := a.opts.logger.With(
		logger.String("name", a.opts.name),
		logger.String("version", a.opts.version),
	)

	if err := a.opts.hooks.run(a.ctx, a.opts.hooks.beforeStart()); err != nil {
		log.With(logger.Err(err)).Error("[App] 启动前钩子执行失败")
		a.runCleanups(context.Background())
		return err
	}
	log.Info("[App] 应用启动")

	signals := a.opts.signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	sigCtx, stop := signal.NotifyContext(a.ctx, signals...)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	for _, c := range components {
		g.Go(func() error {
			a.opts.logger.With(logger.String("component", c.Name())).Info("[App] 启动组件")
			if err := c.Start(gctx); err != nil {
				a.opts.logger.With(logger.String("component", c.Name()), logger.Err(err)).Error("[App] 组件启动失败")
				return err
			}
			return nil
		})
	}

	if err := a.opts.hooks.run(a.ctx, a.opts.hooks.afterStart()); err != nil {
		log.With(logger.Err(err)).Error("[App] 启动后钩子执行失败")
	}

	<-gctx.Done()
	if sigCtx.Err() != nil && a.ctx.Err() == nil {
		log.Info("[App] 收到退出信号")
	}

	a.shutdown(components)
	return g.Wait()
}

// Stop 主动停止应用.
func (a *Application) Stop() {
	a.cancel()
}

// Name 返回应用名称.
func (a *Application) Name() string {
	return a.opts.name
}

// Version 返回应用版本.
func (a *Application) Version() string {
	return a.opts.version
}

func (a *Application) shutdown(components []Component) {
	a.opts.logger.With(logger.Duration("timeout", a.opts.gracefulTimeout)).Info("[App] 应用关闭中")

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.gracefulTimeout)
	defer cancel()

	if err := a.opts.hooks.run(ctx, a.opts.hooks.beforeStop()); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] 停止前钩子执行失败")
	}

	for _, c := range slices.Backward(components) {
		if err := c.Stop(ctx); err != nil {
			a.opts.logger.With(logger.String("component", c.Name()), logger.Err(err)).Error("[App] 组件停止失败")
			continue
		}
		a.opts.logger.With(logger.String("component", c.Name())).Info("[App] 组件已停止")
	}

	a.runCleanups(ctx)

	if err := a.opts.hooks.run(context.Background(), a.opts.hooks.afterStop()); err != nil {
		a.opts.logger.With(logger.Err(err)).Error("[App] 停止后钩子执行失败")
	}
	a.opts.logger.Info("[App] 应用已停止")
}

func (a *Application) runCleanups(ctx context.Context) {
	cleanups := slices.Clone(a.opts.cleanups)
	slices.SortStableFunc(cleanups, func(x, y Cleanup) int {
		return x.Priority - y.Priority
	})

	for _, c := range cleanups {
		if err := c.Fn(ctx); err != nil {
			a.opts.logger.With(logger.String("cleanup", c.Name), logger.Err(err)).Error("[App] 清理任务失败")
			continue
		}
		a.opts.logger.With(logger.String("cleanup", c.Name)).Debug("[App] 清理任务完成")
	}
}
