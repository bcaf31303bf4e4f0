package jobstore

import (
	"errors"
	"fmt"
)

// 预定义错误.
var (
	// ErrKeyNotFound 键不存在.
	ErrKeyNotFound = errors.New("jobstore: key not found")

	// ErrTypeMismatch 值无法解释为请求的类型.
	ErrTypeMismatch = errors.New("jobstore: value type mismatch")
)

// TypeError 类型不匹配错误.
type TypeError struct {
	Key   string
	Want  string
	Value any
	Cause error
}

func (e *TypeError) Error() string {
	msg := fmt.Sprintf("jobstore: value for key %q is not %s: %T(%v)", e.Key, e.Want, e.Value, e.Value)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is 支持 errors.Is(err, ErrTypeMismatch).
func (e *TypeError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func (e *TypeError) Unwrap() error {
	return e.Cause
}
