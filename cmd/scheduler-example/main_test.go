package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsukikage7/scheduler-kit/config"
	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/engine/memory"
	"github.com/Tsukikage7/scheduler-kit/lock"
	"github.com/Tsukikage7/scheduler-kit/logger"
	"github.com/Tsukikage7/scheduler-kit/scheduler"
)

func loadDefaults(t *testing.T) *config.Properties {
	t.Helper()
	t.Chdir(t.TempDir())
	props, err := loadProperties("")
	require.NoError(t, err)
	return props
}

func TestLoadProperties(t *testing.T) {
	t.Run("默认目录查找", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "scheduler.yaml"), []byte("engine:\n  workers: 3\n"), 0o644))
		t.Chdir(dir)

		props, err := loadProperties("")
		require.NoError(t, err)
		assert.Equal(t, 3, props.Engine.Workers)
	})

	t.Run("未找到时使用默认值", func(t *testing.T) {
		props := loadDefaults(t)
		assert.True(t, props.Engine.Enabled)
	})

	t.Run("指定文件不存在", func(t *testing.T) {
		_, err := loadProperties(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, config.ErrFileNotFound)
	})
}

func TestNewEngine(t *testing.T) {
	t.Run("进程内引擎", func(t *testing.T) {
		eng, runner, err := newEngine(loadDefaults(t), logger.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &memory.Engine{}, eng)
		assert.NotNil(t, runner)
	})

	t.Run("禁用引擎", func(t *testing.T) {
		props := loadDefaults(t)
		props.Engine.Enabled = false

		eng, runner, err := newEngine(props, logger.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &engine.Nop{}, eng)
		assert.Nil(t, runner)
	})
}

func TestNewRegistry(t *testing.T) {
	props := loadDefaults(t)
	eng := memory.New()
	svc := scheduler.MustNewService(eng)

	registry, err := newRegistry(svc, props, logger.NewNop(), nil)
	require.NoError(t, err)
	assert.Len(t, registry.List(), 2)

	require.NoError(t, scheduleDemoOrder(context.Background(), registry))
	keys, err := eng.TriggerKeys(context.Background(), "orders")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, scheduler.RegisterCronJobs(context.Background(), registry, nil))
	keys, err = eng.TriggerKeys(context.Background(), "reports")
	require.NoError(t, err)
	assert.Equal(t, []engine.TriggerKey{{Name: "daily-report_cron_trigger", Group: "reports"}}, keys)
}

func TestNewLocker(t *testing.T) {
	props := loadDefaults(t)
	locker, closeLocker := newLocker(props, logger.NewNop())
	assert.IsType(t, &lock.Memory{}, locker)
	assert.NoError(t, closeLocker(context.Background()))

	props.Lock.RedisAddr = "127.0.0.1:6379"
	locker, closeLocker = newLocker(props, logger.NewNop())
	assert.IsType(t, &lock.Redis{}, locker)
	assert.NoError(t, closeLocker(context.Background()))
}
