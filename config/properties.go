package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tsukikage7/scheduler-kit/logger"
	"github.com/Tsukikage7/scheduler-kit/metrics"
	"github.com/Tsukikage7/scheduler-kit/retry"
	"github.com/Tsukikage7/scheduler-kit/tracing"
)

// EnvPrefix 调度器配置的环境变量前缀，例如 SCHEDULER_ENGINE_WORKERS.
const EnvPrefix = "SCHEDULER"

// DefaultConfigName 未指定配置文件时查找的文件名，不含扩展名.
const DefaultConfigName = "scheduler"

// DefaultSearchPaths 未指定配置文件时的查找目录，按顺序匹配.
var DefaultSearchPaths = []string{".", "./config", "/etc/scheduler"}

// Properties 调度器配置.
type Properties struct {
	Engine  EngineProperties  `json:"engine" yaml:"engine" mapstructure:"engine"`
	CronJob CronJobProperties `json:"cron_job" yaml:"cron_job" mapstructure:"cron_job"`
	Retry   RetryProperties   `json:"retry" yaml:"retry" mapstructure:"retry"`
	Lock    LockProperties    `json:"lock" yaml:"lock" mapstructure:"lock"`
	Metrics metrics.Config    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Logger  logger.Config     `json:"logger" yaml:"logger" mapstructure:"logger"`
	Tracing tracing.Config    `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// EngineProperties 引擎配置.
type EngineProperties struct {
	// Enabled 为 false 时使用空引擎，所有调度调用直接成功
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// PollInterval 到期触发器的轮询间隔
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
	// MisfireThreshold 超过该延迟视为误触发
	MisfireThreshold time.Duration `json:"misfire_threshold" yaml:"misfire_threshold" mapstructure:"misfire_threshold"`
	// Workers 同时执行的任务数
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
	// Location Cron 表达式使用的时区，默认 Local
	Location string `json:"location" yaml:"location" mapstructure:"location"`
}

// TimeLocation 返回 Cron 时区.
func (e EngineProperties) TimeLocation() (*time.Location, error) {
	if e.Location == "" {
		return time.Local, nil
	}
	return time.LoadLocation(e.Location)
}

// CronJobProperties Cron 任务自动注册配置.
type CronJobProperties struct {
	// SchedulingEnabled 启动时是否注册全部 Cron 调度器
	SchedulingEnabled bool `json:"scheduling_enabled" yaml:"scheduling_enabled" mapstructure:"scheduling_enabled"`
	// SchedulingExcludes 不自动注册的调度器名称
	SchedulingExcludes []string `json:"scheduling_excludes" yaml:"scheduling_excludes" mapstructure:"scheduling_excludes"`
}

// RetryProperties 重试策略默认值.
type RetryProperties struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	Backoff     time.Duration `json:"backoff" yaml:"backoff" mapstructure:"backoff"`
}

// LockProperties 任务执行互斥配置.
type LockProperties struct {
	// Enabled 是否在执行前获取任务锁
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// TTL 锁过期时间
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	// RedisAddr 为空时使用进程内锁
	RedisAddr string `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr"`
}

// Policy 以配置值为默认构建重试策略，opts 可覆盖.
func (r RetryProperties) Policy(opts ...retry.Option) retry.Policy {
	return retry.NewPolicy(r.MaxAttempts, append([]retry.Option{retry.WithDelay(r.Backoff)}, opts...)...)
}

// PropertyDefaults 返回 Properties 的默认值，键为 viper 路径.
func PropertyDefaults() map[string]any {
	return map[string]any{
		"engine.enabled":               true,
		"engine.poll_interval":         time.Second,
		"engine.misfire_threshold":     time.Minute,
		"engine.workers":               10,
		"engine.location":              "",
		"cron_job.scheduling_enabled":  false,
		"cron_job.scheduling_excludes": []string{},
		"retry.max_attempts":           3,
		"retry.backoff":                retry.DefaultBackoff,
		"lock.enabled":                 false,
		"lock.ttl":                     10 * time.Minute,
		"lock.redis_addr":              "",
		"metrics.path":                 "/metrics",
		"metrics.namespace":            "scheduler",
		"logger.level":                 logger.LevelInfo,
		"logger.format":                logger.FormatJSON,
		"logger.output":                logger.OutputStdout,
		"logger.service_name":          "scheduler",
		"tracing.enabled":              false,
		"tracing.service_name":         "scheduler",
		"tracing.endpoint":             "localhost:4318",
		"tracing.insecure":             true,
		"tracing.sampling_rate":        1.0,
	}
}

// Validate 实现 Validatable.
func (p *Properties) Validate() error {
	var errs []error
	if p.Engine.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.poll_interval must be positive, got %s", p.Engine.PollInterval))
	}
	if p.Engine.MisfireThreshold < 0 {
		errs = append(errs, fmt.Errorf("engine.misfire_threshold must not be negative, got %s", p.Engine.MisfireThreshold))
	}
	if p.Engine.Workers <= 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be positive, got %d", p.Engine.Workers))
	}
	if _, err := p.Engine.TimeLocation(); err != nil {
		errs = append(errs, fmt.Errorf("engine.location: %w", err))
	}
	if err := p.Retry.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry.max_attempts: %w", err))
	}
	if p.Retry.Backoff <= 0 {
		errs = append(errs, fmt.Errorf("retry.backoff must be positive, got %s", p.Retry.Backoff))
	}
	if p.Lock.Enabled && p.Lock.TTL <= 0 {
		errs = append(errs, fmt.Errorf("lock.ttl must be positive, got %s", p.Lock.TTL))
	}
	if err := p.Logger.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadProperties 加载调度器配置.
//
// 未配置的项使用 PropertyDefaults，SCHEDULER_ 前缀的环境变量覆盖文件.
func LoadProperties(configPath string, opts ...Option) (*Properties, error) {
	return Load[Properties](configPath, propertyOptions(opts)...)
}

// SearchProperties 在 paths 中查找名为 name 的配置文件并加载调度器配置.
//
// 没有找到文件时返回 ErrFileNotFound.
func SearchProperties(name string, paths []string, opts ...Option) (*Properties, error) {
	return LoadWithSearch[Properties](name, paths, propertyOptions(opts)...)
}

// LoadPropertiesFromBytes 从字节数组加载调度器配置.
func LoadPropertiesFromBytes(data []byte, configType string, opts ...Option) (*Properties, error) {
	return LoadFromBytes[Properties](data, configType, propertyOptions(opts)...)
}

func propertyOptions(opts []Option) []Option {
	return append([]Option{WithDefaults(PropertyDefaults()), WithEnvPrefix(EnvPrefix)}, opts...)
}
