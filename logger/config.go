package logger

import (
	"fmt"
	"strings"
)

// Config 日志配置.
type Config struct {
	Level        string `json:"level" yaml:"level" mapstructure:"level"`
	Format       string `json:"format" yaml:"format" mapstructure:"format"`
	Output       string `json:"output" yaml:"output" mapstructure:"output"`
	FilePath     string `json:"file_path" yaml:"file_path" mapstructure:"file_path"`
	ServiceName  string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	EnableCaller bool   `json:"enable_caller" yaml:"enable_caller" mapstructure:"enable_caller"`
}

// ConfigError 配置错误.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("logger config error [%s]: %s", e.Field, e.Message)
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigError{Field: "config", Message: "config cannot be nil"}
	}

	switch strings.ToLower(c.Level) {
	case "", LevelDebug, LevelInfo, LevelWarn, "warning", LevelError:
	default:
		return &ConfigError{Field: "level", Message: "invalid log level: " + c.Level}
	}

	switch strings.ToLower(c.Format) {
	case "", FormatJSON, FormatConsole:
	default:
		return &ConfigError{Field: "format", Message: "invalid format: " + c.Format}
	}

	switch strings.ToLower(c.Output) {
	case "", OutputStdout, OutputStderr:
	case OutputFile:
		if c.FilePath == "" {
			return &ConfigError{Field: "file_path", Message: "file_path is required when output is file"}
		}
	default:
		return &ConfigError{Field: "output", Message: "invalid output: " + c.Output}
	}

	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = LevelInfo
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == "" {
		c.Output = OutputStdout
	}
	if c.ServiceName == "" {
		c.ServiceName = "scheduler"
	}
}

// DefaultConfig 返回默认配置.
func DefaultConfig() *Config {
	config := &Config{}
	config.ApplyDefaults()
	return config
}

// NewDevConfig 返回开发环境配置.
func NewDevConfig() *Config {
	return &Config{
		Level:        LevelDebug,
		Format:       FormatConsole,
		Output:       OutputStdout,
		EnableCaller: true,
	}
}
