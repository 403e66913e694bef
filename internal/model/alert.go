package model

import "time"

// 告警指标
const (
	MetricTaskStatus   = "task_status"
	MetricTaskPriority = "task_priority"
	MetricTaskOverdue  = "task_overdue"
	MetricBudgetUsage  = "budget_usage"
)

// 告警条件
const (
	ConditionChangesTo         = "changes_to"
	ConditionIs                = "is"
	ConditionBecomes           = "becomes"
	ConditionExceedsPercentage = "exceeds_percentage"
)

// AlertRule 项目配置中的告警规则
type AlertRule struct {
	ID        string `json:"id"`
	Metric    string `json:"metric"`
	Condition string `json:"condition"`
	Value     string `json:"value"`
	Label     string `json:"label"`
}

// ValidPair 指标与条件是否是支持的组合
func (r AlertRule) ValidPair() bool {
	switch r.Metric {
	case MetricTaskStatus:
		return r.Condition == ConditionChangesTo
	case MetricTaskPriority:
		return r.Condition == ConditionIs
	case MetricTaskOverdue:
		return r.Condition == ConditionBecomes
	case MetricBudgetUsage:
		return r.Condition == ConditionExceedsPercentage
	}
	return false
}

// ActiveAlert 单次评估产生的临时告警，不持久化
type ActiveAlert struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"rule_id"`
	Label       string    `json:"label"`
	Metric      string    `json:"metric"`
	Message     string    `json:"message"`
	TaskID      *int64    `json:"task_id,omitempty"`
	TriggeredAt time.Time `json:"triggered_at"`
}
