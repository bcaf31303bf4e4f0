package scheduler

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Tsukikage7/scheduler-kit/jobstore"
)

// mockOrchestrator 模拟编排服务.
type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) ScheduleRegularJob(ctx context.Context, in *RegularInstruction) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockOrchestrator) ScheduleCronJob(ctx context.Context, in *CronInstruction) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockOrchestrator) DeleteJob(ctx context.Context, jobID string, group JobGroup) error {
	return m.Called(ctx, jobID, group).Error(0)
}

func (m *mockOrchestrator) Reschedule(ctx context.Context, triggerID string, trigger Trigger) error {
	return m.Called(ctx, triggerID, trigger).Error(0)
}

func (m *mockOrchestrator) Triggers(ctx context.Context, group TriggerGroup) iter.Seq2[Trigger, error] {
	return m.Called(ctx, group).Get(0).(iter.Seq2[Trigger, error])
}

// mockRearmer 模拟重试布防.
type mockRearmer struct {
	mock.Mock
}

func (m *mockRearmer) ScheduleRetry(ctx context.Context, store *jobstore.JobStore, fireTime time.Time) error {
	return m.Called(ctx, store, fireTime).Error(0)
}

func (m *mockRearmer) Reschedule(ctx context.Context, next time.Time, newTriggerID string) error {
	return m.Called(ctx, next, newTriggerID).Error(0)
}

// mockRecorder 模拟指标记录器.
type mockRecorder struct {
	mock.Mock
	mu sync.Mutex
}

func (m *mockRecorder) IncPendingJob(triggerGroup, triggerName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(triggerGroup, triggerName)
}

func (m *mockRecorder) IncActiveJob(jobGroup, jobName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(jobGroup, jobName)
}

func (m *mockRecorder) ObserveMisfire(triggerGroup, triggerName string, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(triggerGroup, triggerName, delay)
}

func (m *mockRecorder) ObserveScheduling(jobGroup, jobName string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(jobGroup, jobName, d, err)
}

func (m *mockRecorder) ObserveExecution(jobGroup, jobName string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Called(jobGroup, jobName, d, err)
}

// fakeScheduler 记录执行的调度器.
type fakeScheduler struct {
	name     string
	err      error
	mu       sync.Mutex
	executed []*jobstore.JobStore
}

func (f *fakeScheduler) Name() string { return f.name }

func (f *fakeScheduler) Schedule(context.Context, *jobstore.JobStore, time.Time) error { return nil }

func (f *fakeScheduler) Execute(_ context.Context, store *jobstore.JobStore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, store)
	return f.err
}

func (f *fakeScheduler) Cancel(context.Context, *jobstore.JobStore) error { return nil }

// testClock 可控时钟.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func intPtr(n int) *int { return &n }
