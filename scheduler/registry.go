package scheduler

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry 调度器注册表，按注册名解析调度器.
type Registry struct {
	mu         sync.RWMutex
	schedulers map[string]Scheduler
}

// NewRegistry 创建注册表.
func NewRegistry() *Registry {
	return &Registry{schedulers: make(map[string]Scheduler)}
}

// Register 注册调度器.
func (r *Registry) Register(s Scheduler) error {
	name := s.Name()
	if name == "" {
		return ErrSchedulerNameEmpty
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schedulers[name]; exists {
		return fmt.Errorf("%w: %s", ErrSchedulerExists, name)
	}
	r.schedulers[name] = s
	return nil
}

// MustRegister 注册调度器，失败时 panic.
func (r *Registry) MustRegister(s ...Scheduler) {
	for _, sc := range s {
		if err := r.Register(sc); err != nil {
			panic(err)
		}
	}
}

// Lookup 按注册名查找调度器.
func (r *Registry) Lookup(name string) (Scheduler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedulers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSchedulerNotRegistered, name)
	}
	return s, nil
}

// List 按注册名排序返回全部调度器.
func (r *Registry) List() []Scheduler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Scheduler, 0, len(r.schedulers))
	for _, s := range r.schedulers {
		list = append(list, s)
	}
	slices.SortFunc(list, func(a, b Scheduler) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return list
}
