// Package triggerid 提供触发器 ID 的重调度谱系编解码.
//
// 重调度后的触发器 ID 格式为 "{base}_rescheduled_{n}"，n 为累计重调度次数.
// 同一逻辑触发器的所有重调度代共享同一个 base，待执行任务指标按 base 聚合.
package triggerid

import (
	"fmt"
	"regexp"
	"strconv"
)

const rescheduledFormat = "%s_rescheduled_%d"

var (
	// baseRegexp 匹配整个 ID，捕获 base.
	baseRegexp = regexp.MustCompile(`^(.*)_rescheduled_\d+$`)

	// countRegexp 匹配整个 ID，捕获末尾计数.
	countRegexp = regexp.MustCompile(`^.*_rescheduled_(\d+)$`)
)

// PrepareRescheduled 生成下一代重调度触发器 ID.
//
// override 非空时作为新的 base，否则沿用 triggerID 剥离后缀后的 base.
// 计数始终基于 triggerID 当前的计数加一.
//
//	PrepareRescheduled("job", "")                  // job_rescheduled_1
//	PrepareRescheduled("job_rescheduled_1", "")    // job_rescheduled_2
//	PrepareRescheduled("job_rescheduled_1", "new") // new_rescheduled_2
func PrepareRescheduled(triggerID, override string) string {
	base := override
	if base == "" {
		base = BaseID(triggerID)
	}
	return fmt.Sprintf(rescheduledFormat, base, RescheduledCount(triggerID)+1)
}

// BaseID 剥离重调度后缀，未匹配时原样返回.
func BaseID(id string) string {
	m := baseRegexp.FindStringSubmatch(id)
	if m == nil {
		return id
	}
	return m[1]
}

// RescheduledCount 返回重调度计数，无后缀时返回 0.
//
// 计数超出 int 范围时同样视为无后缀.
func RescheduledCount(id string) int {
	m := countRegexp.FindStringSubmatch(id)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
