package config

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// Load 从文件加载配置.
//
// 格式优先取 WithConfigType，否则按扩展名识别，*T 实现 Validatable 时自动验证.
func Load[T any](configPath string, opts ...Option) (*T, error) {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, configPath)
	}

	v, o := newViper(opts)
	configType := cmp.Or(o.ConfigType, GetConfigType(configPath))
	if configType == "" {
		return nil, fmt.Errorf("%w: %s: 无法识别配置格式", ErrReadConfig, configPath)
	}
	v.SetConfigFile(configPath)
	v.SetConfigType(configType)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadConfig, configPath, err)
	}
	return decode[T](v)
}

// LoadFromBytes 从字节数组加载配置.
func LoadFromBytes[T any](data []byte, configType string, opts ...Option) (*T, error) {
	v, _ := newViper(opts)
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadConfig, err)
	}
	return decode[T](v)
}

// LoadWithSearch 按顺序在 searchPaths 中查找名为 configName 的配置文件，configName 不含扩展名.
//
// 所有目录都没有该文件时返回 ErrFileNotFound.
func LoadWithSearch[T any](configName string, searchPaths []string, opts ...Option) (*T, error) {
	v, o := newViper(opts)
	v.SetConfigName(configName)
	if o.ConfigType != "" {
		v.SetConfigType(o.ConfigType)
	}
	for _, path := range searchPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if errors.As(err, new(viper.ConfigFileNotFoundError)) {
			return nil, fmt.Errorf("%w: %s in %v", ErrFileNotFound, configName, searchPaths)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrReadConfig, configName, err)
	}
	return decode[T](v)
}

// newViper 按选项创建 viper 实例，默认值与环境变量绑定在读取前生效.
func newViper(opts []Option) (*viper.Viper, *Options) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	for key, value := range o.Defaults {
		v.SetDefault(key, value)
	}
	if o.EnvPrefix != "" {
		v.SetEnvPrefix(o.EnvPrefix)
	}
	if o.EnvKeyReplacer != nil {
		v.SetEnvKeyReplacer(o.EnvKeyReplacer)
	}
	if o.AutomaticEnv {
		v.AutomaticEnv()
	}
	return v, o
}

func decode[T any](v *viper.Viper) (*T, error) {
	config := new(T)
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnmarshal, err)
	}

	if validator, ok := any(config).(Validatable); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return config, nil
}
