// Package lock 提供任务执行互斥锁.
//
// 多个工作协程或多个实例共享同一引擎时，Guard 保证同一任务同一时刻只执行一次：
// 前置钩子获取锁，获取失败时跳过本次触发，执行结束后释放.
//
// 示例：
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	hooks := lock.Guard(scheduler.NewHooks(), lock.NewRedis(client), lock.WithTTL(5*time.Minute)).Build()
//	job := scheduler.NewDefaultJob(registry, scheduler.WithHooks(hooks))
package lock

import (
	"context"
	"time"
)

// Locker 锁接口.
type Locker interface {
	// TryLock 尝试获取锁，已被其他持有者占用时返回 false.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock 释放锁，锁不由当前持有者占用时返回 ErrNotHeld.
	Unlock(ctx context.Context, key string) error
}
