// Package config 提供配置加载和管理功能.
//
// Load 系列函数基于 viper 读取 yaml/json/toml 等格式并支持环境变量覆盖，
// Properties 为调度器的完整配置.
package config

import (
	"path/filepath"
	"strings"
)

// Validatable 可验证的配置接口.
type Validatable interface {
	Validate() error
}

// GetConfigType 根据文件扩展名获取配置类型.
func GetConfigType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	case ".env":
		return "env"
	case ".properties":
		return "properties"
	default:
		return ""
	}
}
