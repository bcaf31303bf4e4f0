// Package tracing 提供 OpenTelemetry 链路追踪初始化.
//
// 调度流水线通过全局 TracerProvider 创建 span，未调用 NewTracer 时 span 为空操作.
package tracing

// Config 链路追踪配置.
type Config struct {
	// Enabled 是否启用链路追踪
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// ServiceName 服务名称
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion 服务版本[可选]
	ServiceVersion string `json:"service_version" yaml:"service_version" mapstructure:"service_version"`
	// Endpoint OTLP HTTP Collector 端点
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure 使用 HTTP 而不是 HTTPS
	Insecure bool `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
	// Headers 请求头[可选]
	Headers map[string]string `json:"headers" yaml:"headers" mapstructure:"headers"`
	// SamplingRate 采样率 (0.0-1.0)，超出范围按 1.0 处理
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate" mapstructure:"sampling_rate"`
}

// DefaultConfig 返回默认配置，默认不启用.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:  "scheduler",
		Endpoint:     "localhost:4318",
		Insecure:     true,
		SamplingRate: 1.0,
	}
}
