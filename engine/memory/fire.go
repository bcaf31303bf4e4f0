package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Tsukikage7/scheduler-kit/engine"
)

// firing 一次已领取的触发.
type firing struct {
	key     engine.TriggerKey
	trigger engine.Trigger
	impl    engine.Job
	exec    *engine.Execution
}

// misfire 一次误触发记录.
type misfire struct {
	trigger          engine.Trigger
	expected, actual time.Time
}

// FireDue 执行全部到期的触发器并等待完成，返回触发次数.
//
// 同时执行的任务数不超过 WithWorkers 设置的值.
func (e *Engine) FireDue(ctx context.Context) (int, error) {
	now := e.opts.now()
	firings, misfires := e.acquire(now)
	e.notifyMisfires(ctx, misfires)
	if len(firings) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.workers)
	for _, f := range firings {
		g.Go(func() error {
			_ = e.run(gctx, f)
			return nil
		})
	}
	return len(firings), g.Wait()
}

// Fire 立即执行指定触发器并返回任务错误.
func (e *Engine) Fire(ctx context.Context, key engine.TriggerKey) error {
	now := e.opts.now()

	e.mu.Lock()
	t, ok := e.triggers[key]
	if !ok {
		e.mu.Unlock()
		return engine.ErrorWithKey(engine.ErrTriggerNotFound, key)
	}
	if _, busy := e.inflight[key]; busy {
		e.mu.Unlock()
		return engine.ErrorWithKey(ErrTriggerBusy, key)
	}
	f := e.prepare(now, key, t)
	e.mu.Unlock()

	if f == nil {
		return engine.ErrorWithKey(engine.ErrJobNotFound, t.Base().JobKey)
	}
	return e.run(ctx, f)
}

// acquire 领取到期触发器并推进其状态.
func (e *Engine) acquire(now time.Time) ([]*firing, []misfire) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var due []engine.TriggerKey
	for key, t := range e.triggers {
		next := t.Base().NextFireTime
		if next.IsZero() || next.After(now) {
			continue
		}
		if _, busy := e.inflight[key]; busy {
			continue
		}
		due = append(due, key)
	}
	slices.SortFunc(due, func(a, b engine.TriggerKey) int {
		if c := e.triggers[a].Base().NextFireTime.Compare(e.triggers[b].Base().NextFireTime); c != 0 {
			return c
		}
		return cmp.Compare(a.String(), b.String())
	})

	var (
		firings  []*firing
		misfires []misfire
	)
	for _, key := range due {
		t := e.triggers[key]
		b := t.Base()
		expected := b.NextFireTime

		if now.Sub(expected) > e.opts.misfireThreshold && b.MisfireInstruction != engine.MisfireIgnore {
			misfires = append(misfires, misfire{trigger: cloneTrigger(t), expected: expected, actual: now})
			if b.MisfireInstruction == engine.MisfireDoNothing {
				e.skip(t, now)
				if b.NextFireTime.IsZero() {
					delete(e.triggers, key)
					e.pruneJob(b.JobKey)
				}
				continue
			}
		}

		if f := e.prepare(now, key, t); f != nil {
			firings = append(firings, f)
		}
	}
	return firings, misfires
}

// prepare 推进触发器并构建执行上下文，调用方持有锁.
func (e *Engine) prepare(now time.Time, key engine.TriggerKey, t engine.Trigger) *firing {
	b := t.Base()
	job, ok := e.jobs[b.JobKey]
	if !ok {
		delete(e.triggers, key)
		e.opts.logger.Warnf("[Engine] 触发器对应的任务不存在，已删除 [trigger:%s] [job:%s]", key, b.JobKey)
		return nil
	}

	scheduled := b.NextFireTime
	e.advance(t, scheduled, now)
	e.inflight[key] = struct{}{}

	return &firing{
		key:     key,
		trigger: t,
		impl:    e.impls[job.JobRef],
		exec: &engine.Execution{
			FireInstanceID:    uuid.NewString(),
			Job:               cloneJob(job),
			Trigger:           cloneTrigger(t),
			FireTime:          now,
			ScheduledFireTime: scheduled,
			MergedData:        engine.MergeData(job.Data, b.Data),
		},
	}
}

// run 执行任务并完成触发.
func (e *Engine) run(ctx context.Context, f *firing) (err error) {
	defer e.complete(f)

	e.listenerMu.RLock()
	listeners := slices.Clone(e.jobListeners)
	e.listenerMu.RUnlock()
	for _, l := range listeners {
		l.JobToBeExecuted(ctx, f.exec)
	}

	log := e.log(ctx, f.exec.Trigger.Base())
	if f.impl == nil {
		err = engine.ErrorWithKey(engine.ErrJobRefNotFound, f.exec.Job.Key)
		log.Errorf("[Engine] 任务实现未注册 [ref:%s]", f.exec.Job.JobRef)
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("memory: job panicked: %v", r)
			log.Errorf("[Engine] 任务执行 panic [fireInstanceId:%s] [panic:%v]", f.exec.FireInstanceID, r)
		}
	}()

	if err = f.impl.Execute(ctx, f.exec); err != nil {
		log.Warnf("[Engine] 任务执行返回错误 [fireInstanceId:%s] [error:%v]", f.exec.FireInstanceID, err)
		return err
	}
	log.Debugf("[Engine] 任务执行完成 [fireInstanceId:%s]", f.exec.FireInstanceID)
	return nil
}

// complete 删除已无下一次触发的触发器以及无触发器的非持久任务.
func (e *Engine) complete(f *firing) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.inflight, f.key)
	if cur, ok := e.triggers[f.key]; ok && cur == f.trigger && cur.Base().NextFireTime.IsZero() {
		delete(e.triggers, f.key)
	}
	e.pruneJob(f.exec.Job.Key)
}

func (e *Engine) notifyMisfires(ctx context.Context, misfires []misfire) {
	if len(misfires) == 0 {
		return
	}
	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()
	for _, m := range misfires {
		for _, l := range e.triggerListeners {
			l.TriggerMisfired(ctx, m.trigger, m.expected, m.actual)
		}
	}
}

// Start 启动轮询.
func (e *Engine) Start() error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	if e.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.loop(ctx, e.done)

	e.opts.logger.Debugf("[Engine] 引擎已启动 [pollInterval:%s] [workers:%d]", e.opts.pollInterval, e.opts.workers)
	return nil
}

// Running 检查是否运行中.
func (e *Engine) Running() bool {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	return e.cancel != nil
}

// Shutdown 停止轮询并等待正在执行的任务完成.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.loopMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.loopMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		e.opts.logger.Debug("[Engine] 引擎已停止")
		return nil
	case <-ctx.Done():
		e.opts.logger.Warn("[Engine] 等待任务完成超时")
		return ctx.Err()
	}
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.opts.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 已领取的任务在关闭时仍会执行完毕
			if _, err := e.FireDue(context.WithoutCancel(ctx)); err != nil {
				e.opts.logger.Errorf("[Engine] 触发任务失败 [error:%v]", err)
			}
		}
	}
}
