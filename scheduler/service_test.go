package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/engine/memory"
	"github.com/Tsukikage7/scheduler-kit/jobstore"
)

type ServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *testClock
	engine   *memory.Engine
	recorder *mockRecorder
	spans    *tracetest.SpanRecorder
	svc      *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = newTestClock()
	s.engine = memory.New(memory.WithClock(s.clock.Now))
	s.recorder = &mockRecorder{}
	s.recorder.On("ObserveScheduling", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	s.spans = tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.spans))

	s.svc = MustNewService(s.engine,
		WithClock(s.clock.Now),
		WithMetrics(s.recorder),
		WithTracer(tp.Tracer("test")),
	)
}

func (s *ServiceTestSuite) regular(jobID string, retried *int) *RegularInstruction {
	store := jobstore.New()
	store.Put("orderId", jobID)
	return &RegularInstruction{
		InstructionBase: InstructionBase{
			JobID:        jobID,
			JobGroup:     "orders",
			TriggerGroup: "orders",
			RetriedCount: retried,
			Store:        store,
			SchedulerRef: "order-timeout",
		},
		FireTime: s.clock.Now().Add(time.Minute),
	}
}

func (s *ServiceTestSuite) cron(jobID, expr string) *CronInstruction {
	return &CronInstruction{
		InstructionBase: InstructionBase{
			JobID:        jobID,
			JobGroup:     "reports",
			TriggerGroup: "reports",
			Store:        jobstore.New(),
			SchedulerRef: jobID,
		},
		CronExpression: expr,
	}
}

func (s *ServiceTestSuite) TestNewService_NilEngine() {
	_, err := NewService(nil)
	s.ErrorIs(err, ErrNilEngine)
	s.Panics(func() { MustNewService(nil) })
}

func (s *ServiceTestSuite) TestScheduleRegularJob() {
	s.Require().NoError(s.svc.ScheduleRegularJob(s.ctx, s.regular("order-1", intPtr(1))))

	job, ok := s.engine.Job(engine.JobKey{Name: "order-1_1", Group: "orders"})
	s.Require().True(ok)
	s.Equal(JobRef, job.JobRef)
	s.Equal("order-timeout", job.Data[SchedulerKey])
	s.Equal("order-1", job.Data["orderId"])
	s.Equal(JobRef, job.Data["order-1_1orders"])

	trigger, err := s.engine.Trigger(s.ctx, engine.TriggerKey{Name: "order-1_1_trigger", Group: "orders"})
	s.Require().NoError(err)
	s.Equal(s.clock.Now().Add(time.Minute), trigger.Base().NextFireTime)

	ended := s.spans.Ended()
	s.Require().Len(ended, 1)
	s.Equal("scheduler.schedule", ended[0].Name())
	s.Equal(codes.Unset, ended[0].Status().Code)
	s.recorder.AssertCalled(s.T(), "ObserveScheduling", "orders", "order-1_1", mock.Anything, nil)
}

func (s *ServiceTestSuite) TestScheduleRegularJob_AlreadyExists() {
	s.Require().NoError(s.svc.ScheduleRegularJob(s.ctx, s.regular("order-1", nil)))

	err := s.svc.ScheduleRegularJob(s.ctx, s.regular("order-1", nil))
	s.ErrorIs(err, engine.ErrObjectAlreadyExists)

	ended := s.spans.Ended()
	s.Equal(codes.Error, ended[len(ended)-1].Status().Code)
}

func (s *ServiceTestSuite) TestScheduleCronJob_AlreadyExists() {
	s.Require().NoError(s.svc.ScheduleCronJob(s.ctx, s.cron("report", "0 0 * * * *")))
	s.NoError(s.svc.ScheduleCronJob(s.ctx, s.cron("report", "0 0 * * * *")), "重复注册视为成功")

	trigger, err := s.engine.Trigger(s.ctx, engine.TriggerKey{Name: "report_cron_trigger", Group: "reports"})
	s.Require().NoError(err)
	s.Equal(s.clock.Now(), trigger.Base().NextFireTime, "开始时间恰好命中表达式")

	ended := s.spans.Ended()
	s.Require().Len(ended, 2)
	s.Equal(codes.Unset, ended[1].Status().Code)
	s.recorder.AssertNumberOfCalls(s.T(), "ObserveScheduling", 2)
}

func (s *ServiceTestSuite) TestScheduleCronJob_InvalidExpression() {
	err := s.svc.ScheduleCronJob(s.ctx, s.cron("report", "every day"))
	s.ErrorIs(err, ErrInvalidCronExpression)

	keys, _ := s.engine.TriggerKeys(s.ctx, "reports")
	s.Empty(keys)
}

func (s *ServiceTestSuite) TestDeleteJob() {
	s.Require().NoError(s.svc.ScheduleRegularJob(s.ctx, s.regular("order-1", nil)))

	s.Require().NoError(s.svc.DeleteJob(s.ctx, "order-1", "orders"))
	_, ok := s.engine.Job(engine.JobKey{Name: "order-1", Group: "orders"})
	s.False(ok)
	s.NoError(s.svc.DeleteJob(s.ctx, "order-1", "orders"))
}

func (s *ServiceTestSuite) TestReschedule() {
	s.Require().NoError(s.svc.ScheduleRegularJob(s.ctx, s.regular("order-1", nil)))

	next := NewSimpleTrigger("orders", "order-1", "orders", "order-1_trigger_rescheduled_1", s.clock.Now().Add(time.Hour))
	s.Require().NoError(s.svc.Reschedule(s.ctx, "order-1_trigger", next))

	var ids []string
	for tr, err := range s.svc.Triggers(s.ctx, "orders") {
		s.Require().NoError(err)
		ids = append(ids, tr.Base().TriggerID)
	}
	s.Equal([]string{"order-1_trigger_rescheduled_1"}, ids)

	err := s.svc.Reschedule(s.ctx, "missing", next)
	s.ErrorIs(err, engine.ErrTriggerNotFound)
}

func (s *ServiceTestSuite) TestTriggers() {
	s.Require().NoError(s.svc.ScheduleRegularJob(s.ctx, s.regular("order-1", nil)))
	s.Require().NoError(s.svc.ScheduleRegularJob(s.ctx, s.regular("order-2", nil)))
	s.Require().NoError(s.svc.ScheduleCronJob(s.ctx, s.cron("report", "@daily")))

	var got []Trigger
	for tr, err := range s.svc.Triggers(s.ctx, "orders") {
		s.Require().NoError(err)
		got = append(got, tr)
	}
	s.Require().Len(got, 2)
	s.Equal("order-1_trigger", got[0].Base().TriggerID)
	s.IsType(&SimpleTrigger{}, got[0])

	// 提前结束迭代
	count := 0
	for range s.svc.Triggers(s.ctx, "orders") {
		count++
		break
	}
	s.Equal(1, count)

	for tr, err := range s.svc.Triggers(s.ctx, "reports") {
		s.Require().NoError(err)
		s.IsType(&CronTrigger{}, tr)
	}
}

func (s *ServiceTestSuite) TestTriggers_EngineError() {
	svc := MustNewService(&failingEngine{Nop: engine.NewNop(nil)})

	var errs []error
	for tr, err := range svc.Triggers(s.ctx, "orders") {
		s.Nil(tr)
		errs = append(errs, err)
	}
	s.Require().Len(errs, 1)
	s.EqualError(errs[0], "list failed")
}

// failingEngine 列举触发器失败的引擎.
type failingEngine struct {
	*engine.Nop
}

func (f *failingEngine) TriggerKeys(context.Context, string) ([]engine.TriggerKey, error) {
	return nil, errors.New("list failed")
}
