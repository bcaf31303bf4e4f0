package logger

import "time"

// String 创建字符串字段.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int 创建整数字段.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool 创建布尔字段.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Time 创建时间字段.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Duration 创建持续时间字段.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err 创建错误字段.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any 创建任意类型字段.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// JobKey 创建任务标识字段.
func JobKey(group, name string) Field {
	return Field{Key: "job", Value: []Field{String("jobGroup", group), String("jobName", name)}}
}

// TriggerKey 创建触发器标识字段.
func TriggerKey(group, name string) Field {
	return Field{Key: "trigger", Value: []Field{String("triggerGroup", group), String("triggerName", name)}}
}
