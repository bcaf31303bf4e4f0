package triggerid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRescheduledCount(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want int
	}{
		{"无后缀", "test", 0},
		{"单次重调度", "test_rescheduled_1", 1},
		{"多位计数", "order_42_trigger_rescheduled_17", 17},
		{"非数字计数", "test_rescheduled_x", 0},
		{"空计数", "test_rescheduled_", 0},
		{"后缀不在末尾", "test_rescheduled_1_trigger", 0},
		{"嵌套后缀取末尾", "a_rescheduled_1_rescheduled_2", 2},
		{"计数溢出", "test_rescheduled_99999999999999999999999", 0},
		{"空字符串", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RescheduledCount(tt.id))
		})
	}
}

func TestBaseID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"无后缀原样返回", "test", "test"},
		{"剥离后缀", "test_rescheduled_1", "test"},
		{"非数字计数原样返回", "test_rescheduled_x", "test_rescheduled_x"},
		{"只剥离最后一层", "a_rescheduled_1_rescheduled_2", "a_rescheduled_1"},
		{"带下划线的 base", "order_1_trigger_rescheduled_3", "order_1_trigger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseID(tt.id))
		})
	}
}

func TestPrepareRescheduled(t *testing.T) {
	t.Run("首次重调度", func(t *testing.T) {
		assert.Equal(t, "job_rescheduled_1", PrepareRescheduled("job", ""))
	})

	t.Run("累加计数", func(t *testing.T) {
		assert.Equal(t, "job_rescheduled_3", PrepareRescheduled("job_rescheduled_2", ""))
	})

	t.Run("覆盖 base 保留计数", func(t *testing.T) {
		assert.Equal(t, "other_rescheduled_3", PrepareRescheduled("job_rescheduled_2", "other"))
	})

	t.Run("连续应用 n 次", func(t *testing.T) {
		id := "job"
		for range 3 {
			id = PrepareRescheduled(id, "")
		}
		assert.Equal(t, "job_rescheduled_3", id)
		assert.Equal(t, 3, RescheduledCount(id))
	})
}

func TestLineagePreserved(t *testing.T) {
	ids := []string{
		"job",
		"job_trigger",
		"job_rescheduled_5",
		"job_rescheduled_x",
		"a_b_c_cron_trigger",
		"",
	}

	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			next := PrepareRescheduled(id, "")
			assert.Equal(t, BaseID(id), BaseID(next))
			assert.Equal(t, RescheduledCount(id)+1, RescheduledCount(next))
		})
	}
}
