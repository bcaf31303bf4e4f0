package scheduler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/logger"
)

// JobRef DefaultJob 在引擎中注册的实现引用.
const JobRef = "scheduler.DefaultJob"

// SchedulerKey 任务数据中保存调度器注册名的键.
const SchedulerKey = "scheduler"

// Orchestrator 编排服务接口，调度器通过它与引擎交互.
type Orchestrator interface {
	// ScheduleRegularJob 提交一次性任务.
	ScheduleRegularJob(ctx context.Context, in *RegularInstruction) error

	// ScheduleCronJob 提交 Cron 任务，触发器已存在视为成功.
	ScheduleCronJob(ctx context.Context, in *CronInstruction) error

	// DeleteJob 删除任务及其触发器.
	DeleteJob(ctx context.Context, jobID string, group JobGroup) error

	// Reschedule 用 trigger 替换 triggerID 对应的触发器.
	Reschedule(ctx context.Context, triggerID string, trigger Trigger) error

	// Triggers 惰性列出分组内的触发器.
	Triggers(ctx context.Context, group TriggerGroup) iter.Seq2[Trigger, error]
}

// Service 编排服务，将调度指令转换为引擎调用.
type Service struct {
	engine engine.Engine
	opts   *options
}

var _ Orchestrator = (*Service)(nil)

// NewService 创建编排服务.
func NewService(eng engine.Engine, opts ...Option) (*Service, error) {
	if eng == nil {
		return nil, ErrNilEngine
	}
	return &Service{engine: eng, opts: applyOptions(opts)}, nil
}

// MustNewService 创建编排服务，失败时 panic.
func MustNewService(eng engine.Engine, opts ...Option) *Service {
	s, err := NewService(eng, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// ScheduleRegularJob 提交一次性任务，任务或触发器已存在时返回错误.
func (s *Service) ScheduleRegularJob(ctx context.Context, in *RegularInstruction) error {
	job := s.createJob(&in.InstructionBase)
	trigger := ToEngineTrigger(ToTrigger(in, s.opts.now()))
	log := s.opts.log(ctx,
		logger.JobKey(job.Key.Group, job.Key.Name),
		logger.TriggerKey(trigger.Base().Key.Group, trigger.Base().Key.Name),
		logger.Time("fireTime", in.FireTime),
	)

	log.Info("[Scheduler] 调度普通任务")
	if err := s.submit(ctx, job, trigger); err != nil {
		log.With(logger.Err(err)).Error("[Scheduler] 普通任务调度失败")
		return err
	}
	log.Info("[Scheduler] 普通任务已调度")
	return nil
}

// ScheduleCronJob 提交 Cron 任务.
//
// 触发器已存在视为成功，应用每次启动重复注册不会报错.
func (s *Service) ScheduleCronJob(ctx context.Context, in *CronInstruction) error {
	log := s.opts.log(ctx,
		logger.JobKey(string(in.JobGroup), in.CompositeJobID()),
		logger.String("cronExpression", in.CronExpression),
	)

	if _, err := engine.ParseCron(in.CronExpression); err != nil {
		err = fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, in.CronExpression, err)
		log.With(logger.Err(err)).Error("[Scheduler] Cron 任务调度失败")
		return err
	}

	job := s.createJob(&in.InstructionBase)
	trigger := ToEngineTrigger(ToTrigger(in, s.opts.now()))
	log = log.With(logger.TriggerKey(trigger.Base().Key.Group, trigger.Base().Key.Name))

	log.Info("[Scheduler] 调度 Cron 任务")
	err := s.submit(ctx, job, trigger, engine.ErrObjectAlreadyExists)
	switch {
	case err == nil:
		log.Info("[Scheduler] Cron 任务已调度")
		return nil
	case errors.Is(err, engine.ErrObjectAlreadyExists):
		log.Info("[Scheduler] Cron 任务已存在")
		return nil
	default:
		log.With(logger.Err(err)).Error("[Scheduler] Cron 任务调度失败")
		return err
	}
}

// DeleteJob 删除任务及其触发器.
func (s *Service) DeleteJob(ctx context.Context, jobID string, group JobGroup) error {
	key := engine.JobKey{Name: jobID, Group: string(group)}
	log := s.opts.log(ctx, logger.JobKey(key.Group, key.Name))

	ctx, span := s.opts.tracer.Start(ctx, "scheduler.delete", trace.WithAttributes(jobAttributes(key)...))
	defer span.End()

	log.Info("[Scheduler] 删除任务")
	if err := s.engine.DeleteJob(ctx, key); err != nil {
		recordSpanError(span, err)
		log.With(logger.Err(err)).Error("[Scheduler] 任务删除失败")
		return err
	}
	log.Info("[Scheduler] 任务已删除")
	return nil
}

// Reschedule 用 trigger 替换 triggerID 对应的触发器，触发器分组取自 trigger.
func (s *Service) Reschedule(ctx context.Context, triggerID string, trigger Trigger) error {
	b := trigger.Base()
	key := engine.TriggerKey{Name: triggerID, Group: string(b.TriggerGroup)}
	log := s.opts.log(ctx,
		logger.JobKey(string(b.JobGroup), b.JobID),
		logger.TriggerKey(key.Group, key.Name),
		logger.String("newTriggerName", b.TriggerID),
		logger.Time("startTime", b.StartTime),
	)

	ctx, span := s.opts.tracer.Start(ctx, "scheduler.reschedule", trace.WithAttributes(
		append(jobAttributes(b.JobKey()), triggerAttributes(key)...)...,
	))
	defer span.End()

	start := time.Now()
	err := s.engine.RescheduleJob(ctx, key, ToEngineTrigger(trigger))
	s.opts.metrics.ObserveScheduling(string(b.JobGroup), b.JobID, time.Since(start), err)
	if err != nil {
		recordSpanError(span, err)
		log.With(logger.Err(err)).Error("[Scheduler] 触发器重调度失败")
		return err
	}
	log.Info("[Scheduler] 触发器已重调度")
	return nil
}

// Triggers 惰性列出分组内的触发器.
//
// 每次迭代才读取对应触发器，出错时产出错误并结束迭代.
// 列举与读取之间被删除的触发器会被跳过.
func (s *Service) Triggers(ctx context.Context, group TriggerGroup) iter.Seq2[Trigger, error] {
	return func(yield func(Trigger, error) bool) {
		keys, err := s.engine.TriggerKeys(ctx, string(group))
		if err != nil {
			s.opts.log(ctx).Errorf("[Scheduler] 列举触发器失败 [group:%s] [error:%v]", group, err)
			yield(nil, err)
			return
		}

		for _, key := range keys {
			native, err := s.engine.Trigger(ctx, key)
			if errors.Is(err, engine.ErrTriggerNotFound) {
				continue
			}
			if err != nil {
				s.opts.log(ctx, logger.TriggerKey(key.Group, key.Name)).
					With(logger.Err(err)).Error("[Scheduler] 读取触发器失败")
				yield(nil, err)
				return
			}
			if !yield(FromEngineTrigger(native), nil) {
				return
			}
		}
	}
}

// createJob 构建引擎任务定义，任务数据中写入调度器注册名.
func (s *Service) createJob(in *InstructionBase) *engine.JobDetail {
	data := make(engine.JobData)
	if in.Store != nil {
		data = in.Store.All()
	}
	data[SchedulerKey] = in.SchedulerRef
	return s.engine.CreateJob(JobRef, false, in.CompositeJobID(), string(in.JobGroup), data)
}

// submit 提交任务与触发器并记录耗时，accepted 中的错误按成功统计.
func (s *Service) submit(ctx context.Context, job *engine.JobDetail, trigger engine.Trigger, accepted ...error) error {
	ctx, span := s.opts.tracer.Start(ctx, "scheduler.schedule", trace.WithAttributes(
		append(jobAttributes(job.Key), triggerAttributes(trigger.Base().Key)...)...,
	))
	defer span.End()

	start := time.Now()
	err := s.engine.ScheduleJob(ctx, job, trigger)

	outcome := err
	for _, target := range accepted {
		if errors.Is(err, target) {
			outcome = nil
			span.SetAttributes(attribute.Bool("scheduler.already_exists", true))
			break
		}
	}
	s.opts.metrics.ObserveScheduling(job.Key.Group, job.Key.Name, time.Since(start), outcome)
	recordSpanError(span, outcome)
	return err
}

func jobAttributes(key engine.JobKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("scheduler.job.group", key.Group),
		attribute.String("scheduler.job.name", key.Name),
	}
}

func triggerAttributes(key engine.TriggerKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("scheduler.trigger.group", key.Group),
		attribute.String("scheduler.trigger.name", key.Name),
	}
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
