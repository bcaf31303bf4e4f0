package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// entry 已占用的锁.
type entry struct {
	owner    string
	deadline time.Time
}

// Memory 进程内锁，适用于单实例部署与测试.
type Memory struct {
	mu      sync.Mutex
	owner   string
	entries map[string]entry
	now     func() time.Time
}

var _ Locker = (*Memory)(nil)

// MemoryOption 进程内锁配置选项.
type MemoryOption func(*Memory)

// WithMemoryClock 设置时钟.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory 创建进程内锁.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		owner:   uuid.NewString(),
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TryLock 实现 Locker，过期的锁视为空闲.
func (m *Memory) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.deadline) {
		return false, nil
	}
	m.entries[key] = entry{owner: m.owner, deadline: now.Add(ttl)}
	return true, nil
}

// Unlock 实现 Locker.
func (m *Memory) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.owner != m.owner || !m.now().Before(e.deadline) {
		delete(m.entries, key)
		return ErrNotHeld
	}
	delete(m.entries, key)
	return nil
}
