package engine

import (
	"context"
	"maps"

	"github.com/Tsukikage7/scheduler-kit/logger"
)

// Nop 禁用引擎时使用的空实现.
//
// 所有调用记录日志后直接成功，TriggerKeys 返回空列表.
type Nop struct {
	log logger.Logger
}

var _ Engine = (*Nop)(nil)

// NewNop 创建空实现.
func NewNop(log logger.Logger) *Nop {
	if log == nil {
		log = logger.NewNop()
	}
	return &Nop{log: log}
}

func (n *Nop) CreateJob(jobRef string, durable bool, name, group string, data JobData) *JobDetail {
	n.log.With(logger.JobKey(group, name)).Debug("[Engine] 引擎未启用，创建任务定义")
	return NewJobDetail(jobRef, durable, name, group, data)
}

func (n *Nop) ScheduleJob(_ context.Context, job *JobDetail, trigger Trigger) error {
	n.log.With(
		logger.JobKey(job.Key.Group, job.Key.Name),
		logger.Time("startTime", trigger.Base().StartTime),
	).Info("[Engine] 引擎未启用，跳过任务调度")
	return nil
}

func (n *Nop) DeleteJob(_ context.Context, key JobKey) error {
	n.log.With(logger.JobKey(key.Group, key.Name)).Info("[Engine] 引擎未启用，跳过任务删除")
	return nil
}

func (n *Nop) RescheduleJob(_ context.Context, key TriggerKey, _ Trigger) error {
	n.log.With(logger.TriggerKey(key.Group, key.Name)).Info("[Engine] 引擎未启用，跳过重调度")
	return nil
}

func (n *Nop) TriggerKeys(_ context.Context, group string) ([]TriggerKey, error) {
	n.log.Debugf("[Engine] 引擎未启用，分组 %s 无触发器", group)
	return nil, nil
}

func (n *Nop) Trigger(_ context.Context, key TriggerKey) (Trigger, error) {
	return nil, ErrorWithKey(ErrTriggerNotFound, key)
}

// NewJobDetail 构建任务定义，同时在数据中记录 name+group -> jobRef.
func NewJobDetail(jobRef string, durable bool, name, group string, data JobData) *JobDetail {
	d := make(JobData, len(data)+1)
	maps.Copy(d, data)
	d[name+group] = jobRef
	return &JobDetail{
		Key:              JobKey{Name: name, Group: group},
		JobRef:           jobRef,
		Durable:          durable,
		RequestsRecovery: true,
		Data:             d,
	}
}
