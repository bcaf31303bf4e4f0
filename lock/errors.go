package lock

import (
	"errors"
	"fmt"

	"github.com/Tsukikage7/scheduler-kit/scheduler"
)

// 预定义错误.
var (
	// ErrNotHeld 锁不由当前持有者占用.
	ErrNotHeld = errors.New("lock: 锁未被当前持有者占用")

	// ErrLocked 任务正在其他持有者处执行，包装 scheduler.ErrSkip.
	ErrLocked = fmt.Errorf("lock: 任务正在执行: %w", scheduler.ErrSkip)

	// ErrAcquire 锁后端不可用，本次触发按失败处理.
	ErrAcquire = errors.New("lock: 获取锁失败")

	// ErrNilClient Redis 客户端为空.
	ErrNilClient = errors.New("lock: Redis 客户端不能为空")
)
