package retry

import "errors"

// ErrInvalidMaxAttempts 最大重试次数无效.
var ErrInvalidMaxAttempts = errors.New("retry: max attempts must not be negative")
