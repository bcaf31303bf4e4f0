// Package jobstore 提供任务执行上下文.
//
// JobStore 是字符串键到任意值的映射，每条调度指令创建一份，
// 在每次调度/执行周期中序列化进出引擎的任务数据.
// 重试计数等跨执行状态只能通过它传递，因为引擎每次触发都原样回传任务数据.
package jobstore

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/spf13/cast"
)

// JobStore 任务执行上下文.
//
// 并发安全，但同一次触发的流水线是顺序执行的，通常不会产生竞争.
type JobStore struct {
	mu   sync.RWMutex
	data map[string]any
}

// New 创建空的 JobStore.
func New() *JobStore {
	return &JobStore{data: make(map[string]any)}
}

// FromMap 从引擎任务数据构建 JobStore.
//
// 复制 m，之后对 JobStore 的修改不会影响 m.
func FromMap(m map[string]any) *JobStore {
	s := New()
	maps.Copy(s.data, m)
	return s
}

// Put 写入键值.
func (s *JobStore) Put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get 读取原始值.
func (s *JobStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Contains 检查键是否存在.
func (s *JobStore) Contains(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// GetString 读取字符串值.
//
// 数值、布尔、fmt.Stringer 会转换为字符串；其他类型返回 *TypeError.
// 键不存在时返回 ErrKeyNotFound.
func (s *JobStore) GetString(key string) (string, error) {
	v, ok := s.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	str, err := cast.ToStringE(v)
	if err != nil {
		return "", &TypeError{Key: key, Want: "string", Value: v, Cause: err}
	}
	return str, nil
}

// GetInt 读取整数值.
//
// 接受整数类型、整数值的浮点数（JSON 反序列化的结果）以及十进制数字字符串.
// 布尔和带小数部分的浮点数不做隐式截断，直接返回 *TypeError.
func (s *JobStore) GetInt(key string) (int, error) {
	v, ok := s.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	switch n := v.(type) {
	case bool, nil:
		return 0, &TypeError{Key: key, Want: "int", Value: v}
	case float32:
		if !isIntegral(float64(n)) {
			return 0, &TypeError{Key: key, Want: "int", Value: v}
		}
	case float64:
		if !isIntegral(n) {
			return 0, &TypeError{Key: key, Want: "int", Value: v}
		}
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, &TypeError{Key: key, Want: "int", Value: v, Cause: err}
		}
		return i, nil
	}

	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, &TypeError{Key: key, Want: "int", Value: v, Cause: err}
	}
	return i, nil
}

// Remove 删除键.
func (s *JobStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys 返回排序后的键列表.
func (s *JobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data))
}

// Len 返回键数量.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// All 返回数据快照，用于写回引擎任务数据.
func (s *JobStore) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

// Clear 清空所有数据.
func (s *JobStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
}

// String 实现 fmt.Stringer.
func (s *JobStore) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("JobStore%v", s.data)
}

func isIntegral(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}
