package scheduler

import (
	"context"

	"github.com/Tsukikage7/scheduler-kit/engine"
	"github.com/Tsukikage7/scheduler-kit/jobstore"
)

type executionKey struct{}

type jobStoreKey struct{}

// ContextWithExecution 将正在触发的执行注入 context.
func ContextWithExecution(ctx context.Context, exec *engine.Execution) context.Context {
	return context.WithValue(ctx, executionKey{}, exec)
}

// ExecutionFromContext 读取正在触发的执行.
func ExecutionFromContext(ctx context.Context) (*engine.Execution, bool) {
	exec, ok := ctx.Value(executionKey{}).(*engine.Execution)
	return exec, ok && exec != nil
}

func contextWithJobStore(ctx context.Context, store *jobstore.JobStore) context.Context {
	return context.WithValue(ctx, jobStoreKey{}, store)
}

func jobStoreFromContext(ctx context.Context) (*jobstore.JobStore, bool) {
	store, ok := ctx.Value(jobStoreKey{}).(*jobstore.JobStore)
	return store, ok && store != nil
}
