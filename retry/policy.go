// Package retry 定义任务重试策略.
//
// Policy 是纯值对象，描述最大重试次数、可重试/不可重试的失败类型、
// 退避时间以及重试时重新布防的方式，由 scheduler 包的重试装饰器执行.
package retry

import (
	"errors"
	"time"
)

// DefaultBackoff 默认固定退避时间.
const DefaultBackoff = 60 * time.Second

// RearmMode 重试布防方式.
type RearmMode int

const (
	// RearmReschedule 用带谱系后缀的新触发器替换当前触发器.
	RearmReschedule RearmMode = iota
	// RearmSchedule 提交新的 Regular 指令，任务 ID 携带重试代数.
	RearmSchedule
)

// String 返回布防方式字符串.
func (m RearmMode) String() string {
	switch m {
	case RearmReschedule:
		return "reschedule"
	case RearmSchedule:
		return "schedule"
	default:
		return "unknown"
	}
}

// Matcher 判断错误是否属于某种失败类型.
type Matcher func(err error) bool

// Is 按 errors.Is 匹配.
func Is(target error) Matcher {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}

// As 按 errors.As 匹配错误类型 T.
func As[T error]() Matcher {
	return func(err error) bool {
		var target T
		return errors.As(err, &target)
	}
}

// BackoffFunc 计算第 attempt 次重试（从 1 开始）的延迟.
type BackoffFunc func(attempt int, delay time.Duration) time.Duration

// FixedBackoff 固定延迟.
func FixedBackoff(_ int, delay time.Duration) time.Duration {
	return delay
}

// Policy 重试策略.
type Policy struct {
	// MaxAttempts 最大重试次数.
	MaxAttempts int

	// Include 可重试的失败类型，为空表示全部可重试.
	Include []Matcher

	// Exclude 不可重试的失败类型，优先于 Include.
	Exclude []Matcher

	// Delay 基础退避时间，默认 60s.
	Delay time.Duration

	// Backoff 退避函数，默认 FixedBackoff.
	Backoff BackoffFunc

	// Rearm 重试布防方式.
	Rearm RearmMode
}

// NewPolicy 创建策略.
func NewPolicy(maxAttempts int, opts ...Option) Policy {
	p := Policy{
		MaxAttempts: maxAttempts,
		Delay:       DefaultBackoff,
		Backoff:     FixedBackoff,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Validate 验证策略.
func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return ErrInvalidMaxAttempts
	}
	return nil
}

// CanRetry 判断失败是否可重试.
//
// 命中任一 Exclude 不可重试；否则 Include 为空或命中任一 Include 即可重试.
func (p Policy) CanRetry(err error) bool {
	if err == nil {
		return false
	}
	for _, m := range p.Exclude {
		if m(err) {
			return false
		}
	}
	if len(p.Include) == 0 {
		return true
	}
	for _, m := range p.Include {
		if m(err) {
			return true
		}
	}
	return false
}

// Exhausted 判断下一次重试是否超出预算.
func (p Policy) Exhausted(retried int) bool {
	return retried+1 > p.MaxAttempts
}

// NextFireTime 计算第 attempt 次重试的触发时间.
func (p Policy) NextFireTime(now time.Time, attempt int) time.Time {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultBackoff
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = FixedBackoff
	}
	return now.Add(backoff(attempt, delay))
}

// Option 策略选项.
type Option func(*Policy)

// WithInclude 追加可重试类型.
func WithInclude(m ...Matcher) Option {
	return func(p *Policy) {
		p.Include = append(p.Include, m...)
	}
}

// WithExclude 追加不可重试类型.
func WithExclude(m ...Matcher) Option {
	return func(p *Policy) {
		p.Exclude = append(p.Exclude, m...)
	}
}

// WithDelay 设置退避时间.
func WithDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.Delay = d
	}
}

// WithBackoff 设置退避函数.
func WithBackoff(fn BackoffFunc) Option {
	return func(p *Policy) {
		p.Backoff = fn
	}
}

// WithRearm 设置布防方式.
func WithRearm(mode RearmMode) Option {
	return func(p *Policy) {
		p.Rearm = mode
	}
}
