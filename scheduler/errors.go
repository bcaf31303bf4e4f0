package scheduler

import (
	"errors"
	"fmt"

	"github.com/Tsukikage7/scheduler-kit/jobstore"
)

// 预定义错误.
var (
	// ErrNoJobStore 调度缺少执行上下文或触发时间.
	ErrNoJobStore = errors.New("scheduler: no job store found")

	// ErrNoSchedulerKey 任务数据中缺少调度器名称.
	ErrNoSchedulerKey = errors.New("scheduler: no scheduler key found")

	// ErrExhaustedJobRetry 重试次数耗尽.
	ErrExhaustedJobRetry = errors.New("scheduler: job retry exhausted")

	// ErrSchedulerNotRegistered 调度器未注册.
	ErrSchedulerNotRegistered = errors.New("scheduler: scheduler not registered")

	// ErrSchedulerExists 调度器已注册.
	ErrSchedulerExists = errors.New("scheduler: scheduler already registered")

	// ErrSchedulerNameEmpty 调度器名称为空.
	ErrSchedulerNameEmpty = errors.New("scheduler: scheduler name is required")

	// ErrJobGroupEmpty 任务分组为空.
	ErrJobGroupEmpty = errors.New("scheduler: job group is required")

	// ErrExecuteNil 任务执行函数为空.
	ErrExecuteNil = errors.New("scheduler: execute func is required")

	// ErrNilService 编排服务为空.
	ErrNilService = errors.New("scheduler: orchestration service is required")

	// ErrNilEngine 引擎为空.
	ErrNilEngine = errors.New("scheduler: engine is required")

	// ErrNoExecution context 中没有正在触发的执行.
	ErrNoExecution = errors.New("scheduler: no firing execution in context")

	// ErrNotSimpleTrigger 正在触发的触发器不是简单触发器.
	ErrNotSimpleTrigger = errors.New("scheduler: firing trigger is not a simple trigger")

	// ErrInvalidCronExpression 无效的 Cron 表达式.
	ErrInvalidCronExpression = errors.New("scheduler: invalid cron expression")

	// ErrSkip 前置钩子返回包装了 ErrSkip 的错误时，本次触发被跳过而不是失败.
	ErrSkip = errors.New("scheduler: job execution skipped")
)

// NoJobStoreError 缺少执行上下文.
type NoJobStoreError struct {
	Key string
}

func (e *NoJobStoreError) Error() string {
	return fmt.Sprintf("scheduler: no job store found for %s", e.Key)
}

// Is 支持 errors.Is(err, ErrNoJobStore).
func (e *NoJobStoreError) Is(target error) bool {
	return target == ErrNoJobStore
}

// NoSchedulerKeyError 任务数据缺少调度器名称.
type NoSchedulerKeyError struct {
	Key   string
	Store *jobstore.JobStore
}

func (e *NoSchedulerKeyError) Error() string {
	return fmt.Sprintf("scheduler: no scheduler key found for %s in %s", e.Key, e.Store)
}

// Is 支持 errors.Is(err, ErrNoSchedulerKey).
func (e *NoSchedulerKeyError) Is(target error) bool {
	return target == ErrNoSchedulerKey
}

// ExhaustedRetryError 重试耗尽，Last 为最后一次失败.
type ExhaustedRetryError struct {
	Job      string
	Attempts int
	Last     error
}

func (e *ExhaustedRetryError) Error() string {
	return fmt.Sprintf("scheduler: retry exhausted for job %s with %d attempts: %v", e.Job, e.Attempts, e.Last)
}

// Is 支持 errors.Is(err, ErrExhaustedJobRetry).
func (e *ExhaustedRetryError) Is(target error) bool {
	return target == ErrExhaustedJobRetry
}

func (e *ExhaustedRetryError) Unwrap() error {
	return e.Last
}
