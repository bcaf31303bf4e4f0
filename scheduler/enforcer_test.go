package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/jobstore"
	"github.com/Tsukikage7/scheduler-kit/retry"
)

var (
	errTransient = errors.New("transient")
	errFatal     = errors.New("fatal")
)

func failing(err error) ExecuteFunc {
	return func(context.Context, *jobstore.JobStore) error { return err }
}

func TestEnforcer_ExhaustsAfterMaxAttempts(t *testing.T) {
	clock := newTestClock()
	target := &mockRearmer{}
	target.On("ScheduleRetry", mock.Anything, mock.Anything, clock.Now().Add(retry.DefaultBackoff)).Return(nil)

	enforcer := NewEnforcer("order-timeout", retry.NewPolicy(2), target, WithClock(clock.Now))
	execute := enforcer.Wrap(failing(errTransient))
	store := jobstore.New()
	ctx := context.Background()

	// 第一次失败：计数 0 -> 1 并布防
	err := execute(ctx, store)
	assert.ErrorIs(t, err, errTransient)
	assert.NotErrorIs(t, err, ErrExhaustedJobRetry)
	n, _ := store.GetInt(RetryCountKey)
	assert.Equal(t, 1, n)

	// 第二次失败：计数 1 -> 2 并布防
	err = execute(ctx, store)
	assert.ErrorIs(t, err, errTransient)
	n, _ = store.GetInt(RetryCountKey)
	assert.Equal(t, 2, n)

	// 第三次失败：重试耗尽，不再布防
	err = execute(ctx, store)
	require.ErrorIs(t, err, ErrExhaustedJobRetry)
	assert.ErrorIs(t, err, errTransient, "耗尽错误保留最后一次失败")
	var exhausted *ExhaustedRetryError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "order-timeout", exhausted.Job)
	assert.Equal(t, 2, exhausted.Attempts)

	n, _ = store.GetInt(RetryCountKey)
	assert.Equal(t, 2, n)
	target.AssertNumberOfCalls(t, "ScheduleRetry", 2)
	target.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnforcer_Retryability(t *testing.T) {
	tests := []struct {
		name      string
		policy    retry.Policy
		err       error
		wantRearm bool
	}{
		{"默认全部可重试", retry.NewPolicy(3), errFatal, true},
		{"排除类型不重试", retry.NewPolicy(3, retry.WithExclude(retry.Is(errFatal))), errFatal, false},
		{"排除优先于包含", retry.NewPolicy(3, retry.WithInclude(retry.Is(errFatal)), retry.WithExclude(retry.Is(errFatal))), errFatal, false},
		{"包含命中", retry.NewPolicy(3, retry.WithInclude(retry.Is(errTransient))), errTransient, true},
		{"包含未命中", retry.NewPolicy(3, retry.WithInclude(retry.Is(errTransient))), errFatal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &mockRearmer{}
			target.On("ScheduleRetry", mock.Anything, mock.Anything, mock.Anything).Return(nil)

			store := jobstore.New()
			err := NewEnforcer("s", tt.policy, target).Wrap(failing(tt.err))(context.Background(), store)
			assert.Equal(t, tt.err, err, "返回原始错误")

			n, _ := store.GetInt(RetryCountKey)
			if tt.wantRearm {
				assert.Equal(t, 1, n)
				target.AssertNumberOfCalls(t, "ScheduleRetry", 1)
			} else {
				assert.Equal(t, 0, n)
				target.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestEnforcer_Success(t *testing.T) {
	target := &mockRearmer{}
	store := jobstore.New()

	var seen bool
	err := NewEnforcer("s", retry.NewPolicy(1), target).Wrap(func(ctx context.Context, s *jobstore.JobStore) error {
		seen = s.Contains(RetryCountKey)
		return nil
	})(context.Background(), store)

	require.NoError(t, err)
	assert.True(t, seen, "执行前初始化重试计数")
	target.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnforcer_CounterBeyondMax(t *testing.T) {
	target := &mockRearmer{}
	store := jobstore.New()
	store.Put(RetryCountKey, 5)

	err := NewEnforcer("s", retry.NewPolicy(2), target).Wrap(failing(errTransient))(context.Background(), store)
	assert.Equal(t, errTransient, err, "超出预算后直接透传")
	target.AssertNotCalled(t, "ScheduleRetry", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnforcer_RearmMode(t *testing.T) {
	clock := newTestClock()
	next := clock.Now().Add(30 * time.Second)
	policy := retry.NewPolicy(3, retry.WithDelay(30*time.Second))

	simple := &engine.Execution{Trigger: &engine.SimpleTrigger{}}
	cron := &engine.Execution{Trigger: &engine.CronTrigger{CronExpression: "@daily"}}

	t.Run("简单触发器重调度", func(t *testing.T) {
		target := &mockRearmer{}
		target.On("Reschedule", mock.Anything, next, "").Return(nil).Once()

		ctx := ContextWithExecution(context.Background(), simple)
		err := NewEnforcer("s", policy, target, WithClock(clock.Now)).Wrap(failing(errTransient))(ctx, jobstore.New())
		assert.Equal(t, errTransient, err)
		target.AssertExpectations(t)
	})

	t.Run("Cron 触发器提交新任务", func(t *testing.T) {
		target := &mockRearmer{}
		target.On("ScheduleRetry", mock.Anything, mock.Anything, next).Return(nil).Once()

		ctx := ContextWithExecution(context.Background(), cron)
		_ = NewEnforcer("s", policy, target, WithClock(clock.Now)).Wrap(failing(errTransient))(ctx, jobstore.New())
		target.AssertExpectations(t)
	})

	t.Run("指定提交新任务", func(t *testing.T) {
		target := &mockRearmer{}
		target.On("ScheduleRetry", mock.Anything, mock.Anything, next).Return(nil).Once()

		p := policy
		p.Rearm = retry.RearmSchedule
		ctx := ContextWithExecution(context.Background(), simple)
		_ = NewEnforcer("s", p, target, WithClock(clock.Now)).Wrap(failing(errTransient))(ctx, jobstore.New())
		target.AssertExpectations(t)
		target.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("布防失败", func(t *testing.T) {
		target := &mockRearmer{}
		target.On("Reschedule", mock.Anything, next, "").Return(engine.ErrTriggerNotFound)

		ctx := ContextWithExecution(context.Background(), simple)
		err := NewEnforcer("s", policy, target, WithClock(clock.Now)).Wrap(failing(errTransient))(ctx, jobstore.New())
		assert.ErrorIs(t, err, engine.ErrTriggerNotFound)
		assert.NotErrorIs(t, err, errTransient)
	})
}

func TestEnforcer_StoreInContext(t *testing.T) {
	store := jobstore.New()
	var got *jobstore.JobStore
	_ = NewEnforcer("s", retry.NewPolicy(1), &mockRearmer{}).Wrap(func(ctx context.Context, _ *jobstore.JobStore) error {
		got, _ = jobStoreFromContext(ctx)
		return nil
	})(context.Background(), store)

	assert.Same(t, store, got)
}
