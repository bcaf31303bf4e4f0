package engine

import "errors"

// 预定义错误.
var (
	// ErrObjectAlreadyExists 任务或触发器已存在.
	ErrObjectAlreadyExists = errors.New("engine: object already exists")

	// ErrJobNotFound 任务不存在.
	ErrJobNotFound = errors.New("engine: job not found")

	// ErrTriggerNotFound 触发器不存在.
	ErrTriggerNotFound = errors.New("engine: trigger not found")

	// ErrJobRefNotFound 任务实现引用未注册.
	ErrJobRefNotFound = errors.New("engine: job implementation not registered")

	// ErrNilJob 任务为空.
	ErrNilJob = errors.New("engine: job detail is required")

	// ErrNilTrigger 触发器为空.
	ErrNilTrigger = errors.New("engine: trigger is required")
)
