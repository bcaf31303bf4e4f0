package engine

import (
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser 支持可选秒字段与 @daily、@every 等描述符.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron 解析 Cron 表达式.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// NextCronTime 返回 after 之后的下一次触发时间.
//
// loc 为空时使用 after 的时区，表达式自带 CRON_TZ 时以表达式为准.
func NextCronTime(expr string, after time.Time, loc *time.Location) (time.Time, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	if loc != nil {
		after = after.In(loc)
	}
	return sched.Next(after), nil
}
